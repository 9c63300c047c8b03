package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/RestinGreen/stable-pricer/pkg/assets"
	"github.com/RestinGreen/stable-pricer/pkg/metrics"
	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var (
	network, _ = assets.Default().Lookup(assets.CeloMainnet)
	cusd       = network.Reference
	celo       = network.Base
	ube        = network.Anchor
	moo        = types.NewToken(assets.CeloMainnet, common.HexToAddress("0x17700282592D6917F6A73D0bF8AcCf4D578c131e"), 18, "MOO", "Moola")

	celoCusdAddress = common.HexToAddress("0x1e593f1fe7b61c53874b54ec0c59fd0d5eb8621e")
	mooCeloAddress  = common.HexToAddress("0x69d5646e63c7ce63171f76eba89348b52c1d552b")
)

func pairAt(address common.Address, a, b *types.Token, reserveA, reserveB int64) *types.Pair {
	p := types.NewPair(a, b, big.NewInt(reserveA), big.NewInt(reserveB))
	p.PairAddress = address
	return p
}

type fakeSource struct {
	pairs     map[string]*types.Pair
	requested []types.TokenPair
	err       error
}

func newFakeSource(pairs ...*types.Pair) *fakeSource {
	f := &fakeSource{pairs: map[string]*types.Pair{}}
	for _, p := range pairs {
		f.pairs[p.Key()] = p
	}
	return f
}

func (f *fakeSource) GetPairs(_ context.Context, request []types.TokenPair) ([]*types.Pair, error) {
	f.requested = append(f.requested, request...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*types.Pair, len(request))
	for i, tp := range request {
		if p, ok := f.pairs[tp.Key()]; ok {
			out[i] = p.Copy()
		}
	}
	return out, nil
}

type fakeSubscription struct {
	errCh        chan error
	unsubscribed bool
}

func (s *fakeSubscription) Err() <-chan error { return s.errCh }
func (s *fakeSubscription) Unsubscribe()      { s.unsubscribed = true }

type fakeFilterer struct {
	query      ethereum.FilterQuery
	subscribed chan chan<- ethtypes.Log
	sub        *fakeSubscription
}

func newFakeFilterer() *fakeFilterer {
	return &fakeFilterer{
		subscribed: make(chan chan<- ethtypes.Log, 1),
		sub:        &fakeSubscription{errCh: make(chan error, 1)},
	}
}

func (f *fakeFilterer) FilterLogs(context.Context, ethereum.FilterQuery) ([]ethtypes.Log, error) {
	return nil, nil
}

func (f *fakeFilterer) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- ethtypes.Log) (ethereum.Subscription, error) {
	f.query = q
	f.subscribed <- ch
	return f.sub, nil
}

type recordingSaver struct {
	saved []*types.Pair
}

func (s *recordingSaver) SavePair(_ context.Context, pair *types.Pair) error {
	s.saved = append(s.saved, pair)
	return nil
}

func syncLog(address common.Address, reserve0, reserve1 int64) ethtypes.Log {
	data := make([]byte, 64)
	big.NewInt(reserve0).FillBytes(data[0:32])
	big.NewInt(reserve1).FillBytes(data[32:64])
	return ethtypes.Log{Address: address, Topics: []common.Hash{SyncTopic}, Data: data, BlockNumber: 100}
}

func TestAddPairAndGetPairs(t *testing.T) {
	require := require.New(t)

	m := NewMemory()
	m.AddPair(pairAt(celoCusdAddress, celo, cusd, 10, 20))
	require.Equal(1, m.Len())

	out, err := m.GetPairs(context.Background(), []types.TokenPair{
		{A: cusd, B: celo},
		{A: moo, B: celo},
		{A: celo, B: celo},
	})
	require.NoError(err)
	require.Len(out, 3)
	require.NotNil(out[0])
	require.Equal(celoCusdAddress, out[0].PairAddress)
	require.Nil(out[1])
	require.Nil(out[2])

	// callers get copies
	out[0].Reserve0.SetInt64(0)
	again, err := m.GetPairs(context.Background(), []types.TokenPair{{A: celo, B: cusd}})
	require.NoError(err)
	require.True(again[0].HasLiquidity())
}

func TestGetPairsHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().GetPairs(ctx, []types.TokenPair{{A: celo, B: cusd}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestUpdateReserves(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	mtr, err := metrics.New(reg)
	require.NoError(err)

	m := NewMemory(WithMetrics(mtr))
	m.AddPair(pairAt(celoCusdAddress, celo, cusd, 10, 20))

	require.False(m.UpdateReserves(mooCeloAddress, big.NewInt(1), big.NewInt(1), 0))

	p, ok := m.Pair(celoCusdAddress)
	require.True(ok)
	require.True(m.UpdateReserves(celoCusdAddress, p.Reserve1, p.Reserve0, 42))
	require.False(m.UpdateReserves(celoCusdAddress, p.Reserve1, p.Reserve0, 42))

	updated, ok := m.Pair(celoCusdAddress)
	require.True(ok)
	require.Equal(0, updated.Reserve0.Cmp(p.Reserve1))
	require.Equal(int64(42), updated.LastUpdated)

	require.Equal(float64(1), testutil.ToFloat64(mtr.PairUpdates))
	require.Equal(float64(1), testutil.ToFloat64(mtr.Pairs))
}

func TestAddPairReplacesAddress(t *testing.T) {
	require := require.New(t)

	m := NewMemory()
	m.AddPair(pairAt(celoCusdAddress, celo, cusd, 10, 20))
	m.AddPair(pairAt(mooCeloAddress, celo, cusd, 10, 20))

	require.Equal(1, m.Len())
	require.Equal([]common.Address{mooCeloAddress}, m.PairAddresses())
}

func TestSubscribeCoalesces(t *testing.T) {
	require := require.New(t)

	m := NewMemory()
	ch, unsubscribe := m.Subscribe()

	m.AddPair(pairAt(celoCusdAddress, celo, cusd, 10, 20))
	m.UpdateReserves(celoCusdAddress, big.NewInt(11), big.NewInt(20), 0)

	<-ch
	select {
	case <-ch:
		t.Fatal("expected a single pending notification")
	default:
	}

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	require.False(open)

	// no subscribers left, must not block
	m.UpdateReserves(celoCusdAddress, big.NewInt(12), big.NewInt(20), 0)
}

func TestLoadStoresCandidatePairs(t *testing.T) {
	require := require.New(t)

	source := newFakeSource(
		pairAt(celoCusdAddress, celo, cusd, 10, 20),
		pairAt(mooCeloAddress, moo, celo, 100, 40),
	)
	saver := &recordingSaver{}
	m := NewDataMonitor(NewMemory(), source, newFakeFilterer(), WithSaver(saver))

	loaded, err := m.Load(context.Background(), network, []*types.Token{moo, celo, cusd})
	require.NoError(err)
	require.Equal(2, loaded)
	require.Equal(2, m.Memory.Len())
	require.Len(saver.saved, 2)

	// shared and degenerate candidates are requested once at most
	seen := map[string]bool{}
	for _, tp := range source.requested {
		require.False(tp.Degenerate())
		require.False(seen[tp.Key()], "duplicate request %s", tp.Key())
		seen[tp.Key()] = true
	}
}

func TestLoadFailure(t *testing.T) {
	source := newFakeSource()
	source.err = errors.New("rpc down")
	m := NewDataMonitor(NewMemory(), source, newFakeFilterer())

	_, err := m.Load(context.Background(), network, []*types.Token{moo})
	require.ErrorIs(t, err, source.err)
}

func TestRefresh(t *testing.T) {
	require := require.New(t)

	stored := pairAt(celoCusdAddress, celo, cusd, 10, 20)
	stored.LastUpdated = 50
	stale := pairAt(mooCeloAddress, moo, celo, 100, 40)
	stale.LastUpdated = 50

	mem := NewMemory()
	mem.AddPair(stored)
	mem.AddPair(stale)

	fresh := pairAt(celoCusdAddress, celo, cusd, 11, 20)
	fresh.LastUpdated = 60
	older := pairAt(mooCeloAddress, moo, celo, 1, 1)
	older.LastUpdated = 40

	m := NewDataMonitor(mem, newFakeSource(fresh, older), newFakeFilterer())
	require.NoError(m.Refresh(context.Background()))

	p, _ := mem.Pair(celoCusdAddress)
	r, err := p.ReserveOf(celo)
	require.NoError(err)
	require.Equal(int64(11), r.Int64())
	require.Equal(int64(60), p.LastUpdated)

	p, _ = mem.Pair(mooCeloAddress)
	r, err = p.ReserveOf(moo)
	require.NoError(err)
	require.Equal(int64(100), r.Int64())
}

func TestHandleSyncLog(t *testing.T) {
	require := require.New(t)

	mem := NewMemory()
	mem.AddPair(pairAt(celoCusdAddress, celo, cusd, 10, 20))
	saver := &recordingSaver{}
	m := NewDataMonitor(mem, newFakeSource(), newFakeFilterer(), WithSaver(saver))

	stored, _ := mem.Pair(celoCusdAddress)
	require.NoError(m.HandleSyncLog(context.Background(), syncLog(celoCusdAddress, 7, 9)))
	p, _ := mem.Pair(celoCusdAddress)
	require.Equal(int64(7), p.Reserve0.Int64())
	require.Equal(int64(9), p.Reserve1.Int64())
	require.Equal(stored.LastUpdated, p.LastUpdated)
	require.Len(saver.saved, 1)

	removed := syncLog(celoCusdAddress, 1, 1)
	removed.Removed = true
	require.NoError(m.HandleSyncLog(context.Background(), removed))
	p, _ = mem.Pair(celoCusdAddress)
	require.Equal(int64(7), p.Reserve0.Int64())

	short := syncLog(celoCusdAddress, 1, 1)
	short.Data = short.Data[:32]
	require.ErrorIs(m.HandleSyncLog(context.Background(), short), ErrShortSyncData)
}

func TestListenPairSyncEvents(t *testing.T) {
	require := require.New(t)

	mem := NewMemory()
	mem.AddPair(pairAt(celoCusdAddress, celo, cusd, 10, 20))
	changes, unsubscribe := mem.Subscribe()
	defer unsubscribe()
	<-changes

	filterer := newFakeFilterer()
	m := NewDataMonitor(mem, newFakeSource(), filterer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.ListenPairSyncEvents(ctx) }()

	logs := <-filterer.subscribed
	require.Equal([]common.Address{celoCusdAddress}, filterer.query.Addresses)
	require.Equal([][]common.Hash{{SyncTopic}}, filterer.query.Topics)

	logs <- syncLog(celoCusdAddress, 5, 6)
	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("sync log was not applied")
	}
	p, _ := mem.Pair(celoCusdAddress)
	require.Equal(int64(5), p.Reserve0.Int64())

	cancel()
	require.NoError(<-done)
	require.True(filterer.sub.unsubscribed)
}

func TestListenPairSyncEventsSubscriptionError(t *testing.T) {
	mem := NewMemory()
	mem.AddPair(pairAt(celoCusdAddress, celo, cusd, 10, 20))
	filterer := newFakeFilterer()
	filterer.sub.errCh <- errors.New("connection lost")

	err := NewDataMonitor(mem, newFakeSource(), filterer).ListenPairSyncEvents(context.Background())
	require.ErrorContains(t, err, "connection lost")
}

func TestListenWithoutPairs(t *testing.T) {
	err := NewDataMonitor(NewMemory(), newFakeSource(), newFakeFilterer()).ListenPairSyncEvents(context.Background())
	require.ErrorIs(t, err, ErrNothingToWatch)
}
