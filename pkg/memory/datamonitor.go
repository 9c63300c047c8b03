package memory

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/RestinGreen/stable-pricer/pkg/assets"
	"github.com/RestinGreen/stable-pricer/pkg/logger"
	"github.com/RestinGreen/stable-pricer/pkg/router"
	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// SyncTopic is keccak256("Sync(uint112,uint112)").
var SyncTopic = common.HexToHash("0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1")

var (
	ErrNothingToWatch = errors.New("no pairs to watch")
	ErrShortSyncData  = errors.New("sync log data too short")
)

// PairSaver persists updated pairs.
type PairSaver interface {
	SavePair(ctx context.Context, pair *types.Pair) error
}

// DataMonitor keeps Memory in line with the chain: Load seeds it, Refresh
// re-reads every stored pair, and ListenPairSyncEvents applies Sync logs as
// they arrive.
type DataMonitor struct {
	Memory *Memory

	source   router.PairLookup
	filterer ethereum.LogFilterer
	saver    PairSaver
	log      *zap.Logger
}

type MonitorOption func(*DataMonitor)

func WithSaver(saver PairSaver) MonitorOption {
	return func(m *DataMonitor) { m.saver = saver }
}

func WithMonitorLogger(log *zap.Logger) MonitorOption {
	return func(m *DataMonitor) { m.log = log }
}

func NewDataMonitor(memory *Memory, source router.PairLookup, filterer ethereum.LogFilterer, opts ...MonitorOption) *DataMonitor {

	m := &DataMonitor{
		Memory:   memory,
		source:   source,
		filterer: filterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.OrNop(m.log)
	return m
}

// Load reads every candidate pair the router could need for tokens and stores
// the ones that exist. It returns the number of pairs stored.
func (m *DataMonitor) Load(ctx context.Context, network *assets.Network, tokens []*types.Token) (int, error) {

	seen := map[string]bool{}
	request := make([]types.TokenPair, 0, len(tokens)*router.NumCandidates)
	for _, token := range tokens {
		for _, tp := range router.Candidates(token, network) {
			if tp.Degenerate() || seen[tp.Key()] {
				continue
			}
			seen[tp.Key()] = true
			request = append(request, tp)
		}
	}
	if len(request) == 0 {
		return 0, nil
	}

	m.log.Info("loading pairs", zap.Int("requested", len(request)))
	pairs, err := m.source.GetPairs(ctx, request)
	if err != nil {
		return 0, fmt.Errorf("load pairs: %w", err)
	}

	loaded := 0
	for _, pair := range pairs {
		if pair == nil {
			continue
		}
		m.Memory.AddPair(pair)
		m.save(ctx, pair)
		loaded++
	}
	m.log.Info("loading pairs finished", zap.Int("loaded", loaded))
	return loaded, nil
}

// Refresh re-reads the reserves of every stored pair. Reads older than the
// stored state are ignored.
func (m *DataMonitor) Refresh(ctx context.Context) error {

	stored := m.Memory.Pairs()
	if len(stored) == 0 {
		return nil
	}
	request := make([]types.TokenPair, len(stored))
	for i, pair := range stored {
		request[i] = types.TokenPair{A: pair.Token0, B: pair.Token1}
	}

	fresh, err := m.source.GetPairs(ctx, request)
	if err != nil {
		return fmt.Errorf("refresh pairs: %w", err)
	}
	if len(fresh) < len(stored) {
		return fmt.Errorf("refresh pairs: got %d results for %d pairs", len(fresh), len(stored))
	}

	updated := 0
	for i, pair := range stored {
		next := fresh[i]
		if next == nil || next.LastUpdated < pair.LastUpdated {
			continue
		}
		if pair.PairAddress != next.PairAddress {
			m.Memory.AddPair(next)
			m.save(ctx, next)
			updated++
			continue
		}
		if m.Memory.UpdateReserves(next.PairAddress, next.Reserve0, next.Reserve1, next.LastUpdated) {
			m.save(ctx, next)
			updated++
		}
	}
	m.log.Debug("refresh finished", zap.Int("pairs", len(stored)), zap.Int("updated", updated))
	return nil
}

// ListenPairSyncEvents subscribes to Sync logs of every pair in memory and
// applies them until ctx is done or the subscription fails.
func (m *DataMonitor) ListenPairSyncEvents(ctx context.Context) error {

	watchlist := m.Memory.PairAddresses()
	if len(watchlist) == 0 {
		return ErrNothingToWatch
	}

	m.log.Info("watching pairs", zap.Int("pairs", len(watchlist)))
	query := ethereum.FilterQuery{
		Addresses: watchlist,
		Topics:    [][]common.Hash{{SyncTopic}},
	}

	logsCh := make(chan ethtypes.Log)
	subscription, err := m.filterer.SubscribeFilterLogs(ctx, query, logsCh)
	if err != nil {
		return fmt.Errorf("subscribe to sync events: %w", err)
	}
	defer subscription.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-subscription.Err():
			return fmt.Errorf("sync subscription: %w", err)
		case log := <-logsCh:
			if err := m.HandleSyncLog(ctx, log); err != nil {
				m.log.Warn("sync log skipped", zap.String("pair", log.Address.Hex()), zap.Error(err))
			}
		}
	}
}

// HandleSyncLog applies one Sync log. Removed logs are ignored.
func (m *DataMonitor) HandleSyncLog(ctx context.Context, log ethtypes.Log) error {
	if log.Removed {
		return nil
	}
	if len(log.Data) < 64 {
		return ErrShortSyncData
	}
	r0 := new(big.Int).SetBytes(log.Data[0:32])
	r1 := new(big.Int).SetBytes(log.Data[32:64])

	if !m.Memory.UpdateReserves(log.Address, r0, r1, 0) {
		return nil
	}
	m.log.Debug("pair updated", zap.String("pair", log.Address.Hex()), zap.Uint64("block", log.BlockNumber))
	if pair, ok := m.Memory.Pair(log.Address); ok {
		m.save(ctx, pair)
	}
	return nil
}

func (m *DataMonitor) save(ctx context.Context, pair *types.Pair) {
	if m.saver == nil {
		return
	}
	if err := m.saver.SavePair(ctx, pair); err != nil {
		m.log.Warn("failed to save pair", zap.String("pair", pair.PairAddress.Hex()), zap.Error(err))
	}
}
