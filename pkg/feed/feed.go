// Package feed republishes prices whenever the reserve snapshot changes.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/RestinGreen/stable-pricer/pkg/logger"
	"github.com/RestinGreen/stable-pricer/pkg/types"
	"go.uber.org/zap"
)

// Quoter prices a token list. *router.Router implements it.
type Quoter interface {
	Quote(ctx context.Context, tokens []*types.Token) []types.Quote
}

// Notifier signals snapshot changes. *memory.Memory implements it.
type Notifier interface {
	Subscribe() (<-chan struct{}, func())
}

type Snapshot struct {
	Tokens []*types.Token
	Quotes []types.Quote
	At     time.Time
}

// Prices projects the snapshot to one price per token, nil when unavailable.
func (s Snapshot) Prices() []*types.Price {
	out := make([]*types.Price, len(s.Quotes))
	for i, q := range s.Quotes {
		out[i] = q.Price
	}
	return out
}

type Feed struct {
	quoter   Quoter
	notifier Notifier
	tokens   []*types.Token
	out      chan Snapshot
	now      func() time.Time
	log      *zap.Logger

	mu     sync.RWMutex
	latest *Snapshot
}

func New(quoter Quoter, notifier Notifier, tokens []*types.Token, log *zap.Logger) *Feed {
	return &Feed{
		quoter:   quoter,
		notifier: notifier,
		tokens:   append([]*types.Token(nil), tokens...),
		out:      make(chan Snapshot, 1),
		now:      time.Now,
		log:      logger.OrNop(log),
	}
}

// Snapshots delivers new snapshots. A reader that falls behind only sees the
// newest one. The channel is closed when Run returns.
func (f *Feed) Snapshots() <-chan Snapshot {
	return f.out
}

// Latest returns the last published snapshot.
func (f *Feed) Latest() (Snapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.latest == nil {
		return Snapshot{}, false
	}
	return *f.latest, true
}

// Run publishes once immediately and again after every change until ctx is
// done.
func (f *Feed) Run(ctx context.Context) {
	changes, unsubscribe := f.notifier.Subscribe()
	defer unsubscribe()
	defer close(f.out)

	f.publish(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			f.publish(ctx)
		}
	}
}

func (f *Feed) publish(ctx context.Context) {
	snapshot := Snapshot{
		Tokens: f.tokens,
		Quotes: f.quoter.Quote(ctx, f.tokens),
		At:     f.now(),
	}

	f.mu.Lock()
	f.latest = &snapshot
	f.mu.Unlock()

	// drop the unread snapshot so the newest one wins
	select {
	case <-f.out:
	default:
	}
	select {
	case f.out <- snapshot:
	default:
	}

	available := 0
	for _, q := range snapshot.Quotes {
		if q.Available() {
			available++
		}
	}
	f.log.Debug("prices published", zap.Int("tokens", len(f.tokens)), zap.Int("available", available))
}
