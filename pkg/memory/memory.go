package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/RestinGreen/stable-pricer/pkg/logger"
	"github.com/RestinGreen/stable-pricer/pkg/metrics"
	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Memory is the in process reserve snapshot. Readers always get copies, so a
// router pricing from it never races with reserve updates.
type Memory struct {
	mu         sync.RWMutex
	pairMemory *PairMemory

	subMu       sync.Mutex
	subscribers map[int]chan struct{}
	nextSub     int

	metrics *metrics.Metrics
	log     *zap.Logger
}

type Option func(*Memory)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mem *Memory) { mem.metrics = m }
}

func WithLogger(log *zap.Logger) Option {
	return func(mem *Memory) { mem.log = log }
}

func NewMemory(opts ...Option) *Memory {

	m := &Memory{
		pairMemory:  NewPairMemory(),
		subscribers: map[int]chan struct{}{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.OrNop(m.log)
	return m
}

// AddPair stores pair, or refreshes the reserves of the stored pair with the
// same tokens.
func (m *Memory) AddPair(pair *types.Pair) {

	key := pair.Key()
	stored := pair.Copy()

	m.mu.Lock()
	if old, exists := m.pairMemory.Pairs[key]; exists && old.PairAddress != stored.PairAddress {
		delete(m.pairMemory.PairMap, old.PairAddress)
	}
	m.pairMemory.Pairs[key] = stored
	if stored.PairAddress != (common.Address{}) {
		m.pairMemory.PairMap[stored.PairAddress] = key
	}
	n := len(m.pairMemory.Pairs)
	m.mu.Unlock()

	m.metrics.SetPairs(n)
	m.log.Debug("pair stored",
		zap.String("pair", stored.PairAddress.Hex()),
		zap.Stringer("token0", stored.Token0),
		zap.Stringer("token1", stored.Token1),
	)
	m.notify()
}

// UpdateReserves applies new reserves to the pair at pairAddress. It reports
// false when the pair is unknown or nothing changed. A zero lastUpdated keeps
// the stored timestamp.
func (m *Memory) UpdateReserves(pairAddress common.Address, reserve0, reserve1 *big.Int, lastUpdated int64) bool {

	m.mu.Lock()
	key, exists := m.pairMemory.PairMap[pairAddress]
	if !exists {
		m.mu.Unlock()
		return false
	}
	pair := m.pairMemory.Pairs[key]
	if pair.Reserve0.Cmp(reserve0) == 0 && pair.Reserve1.Cmp(reserve1) == 0 {
		if lastUpdated > pair.LastUpdated {
			pair.LastUpdated = lastUpdated
		}
		m.mu.Unlock()
		return false
	}
	pair.Reserve0 = new(big.Int).Set(reserve0)
	pair.Reserve1 = new(big.Int).Set(reserve1)
	if lastUpdated != 0 {
		pair.LastUpdated = lastUpdated
	}
	m.mu.Unlock()

	m.metrics.ObservePairUpdate()
	m.notify()
	return true
}

func (m *Memory) Pair(pairAddress common.Address) (*types.Pair, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, exists := m.pairMemory.PairMap[pairAddress]
	if !exists {
		return nil, false
	}
	return m.pairMemory.Pairs[key].Copy(), true
}

// GetPairs answers a router lookup from memory.
func (m *Memory) GetPairs(ctx context.Context, request []types.TokenPair) ([]*types.Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]*types.Pair, len(request))

	m.mu.RLock()
	defer m.mu.RUnlock()
	for i, tp := range request {
		if tp.Degenerate() {
			continue
		}
		if pair, exists := m.pairMemory.Pairs[tp.Key()]; exists {
			out[i] = pair.Copy()
		}
	}
	return out, nil
}

func (m *Memory) Pairs() []*types.Pair {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.Pair, 0, len(m.pairMemory.Pairs))
	for _, pair := range m.pairMemory.Pairs {
		out = append(out, pair.Copy())
	}
	return out
}

// PairAddresses lists the on-chain pairs that can be watched for updates.
func (m *Memory) PairAddresses() []common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]common.Address, 0, len(m.pairMemory.PairMap))
	for address := range m.pairMemory.PairMap {
		out = append(out, address)
	}
	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pairMemory.Pairs)
}

// Subscribe returns a channel that receives a value after memory changes.
// Notifications coalesce: a slow reader sees one pending signal, not one per
// change. The returned func unsubscribes and closes the channel.
func (m *Memory) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subscribers, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

func (m *Memory) notify() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
