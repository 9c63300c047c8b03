package feed

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/RestinGreen/stable-pricer/pkg/assets"
	"github.com/RestinGreen/stable-pricer/pkg/memory"
	"github.com/RestinGreen/stable-pricer/pkg/router"
	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var pairAddress = common.HexToAddress("0x1e593f1fe7b61c53874b54ec0c59fd0d5eb8621e")

func next(t *testing.T, snapshots <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-snapshots:
		require.True(t, ok, "feed closed")
		return s
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
	return Snapshot{}
}

func TestFeedFollowsMemory(t *testing.T) {
	require := require.New(t)

	registry := assets.Default()
	network, err := registry.Lookup(assets.CeloMainnet)
	require.NoError(err)
	cusd, celo := network.Reference, network.Base

	mem := memory.NewMemory()
	p := types.NewPair(celo, cusd, big.NewInt(10), big.NewInt(25))
	p.PairAddress = pairAddress
	mem.AddPair(p)

	r := router.New(mem, router.StaticSession(assets.CeloMainnet), registry)
	f := New(r, mem, []*types.Token{celo, cusd, nil}, nil)

	_, ok := f.Latest()
	require.False(ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	first := next(t, f.Snapshots())
	require.Len(first.Quotes, 3)
	require.Equal(types.RouteDirect, first.Quotes[0].Route)
	require.Equal(types.RouteIdentity, first.Quotes[1].Route)
	require.False(first.Quotes[2].Available())
	require.Zero(big.NewRat(5, 2).Cmp(first.Prices()[0].Adjusted()))
	require.Nil(first.Prices()[2])

	mem.UpdateReserves(pairAddress, big.NewInt(10), big.NewInt(30), 0)
	second := next(t, f.Snapshots())
	require.Zero(big.NewRat(3, 1).Cmp(second.Prices()[0].Adjusted()))

	latest, ok := f.Latest()
	require.True(ok)
	require.Equal(second.At, latest.At)

	cancel()
	<-done
	_, open := <-f.Snapshots()
	require.False(open)
}

type countingQuoter struct {
	calls int
}

func (q *countingQuoter) Quote(_ context.Context, tokens []*types.Token) []types.Quote {
	q.calls++
	return make([]types.Quote, len(tokens))
}

type manualNotifier struct {
	ch chan struct{}
}

func (n *manualNotifier) Subscribe() (<-chan struct{}, func()) {
	return n.ch, func() {}
}

func TestSlowReaderSeesNewest(t *testing.T) {
	require := require.New(t)

	quoter := &countingQuoter{}
	f := New(quoter, &manualNotifier{}, nil, nil)

	tick := time.Unix(0, 0)
	f.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	ctx := context.Background()
	f.publish(ctx)
	f.publish(ctx)
	f.publish(ctx)

	s := <-f.Snapshots()
	require.Equal(time.Unix(3, 0), s.At)
	select {
	case <-f.Snapshots():
		t.Fatal("only the newest snapshot is kept")
	default:
	}
	require.Equal(3, quoter.calls)
}

func TestRunStopsWhenNotifierCloses(t *testing.T) {
	notifier := &manualNotifier{ch: make(chan struct{})}
	f := New(&countingQuoter{}, notifier, nil, nil)

	close(notifier.ch)
	f.Run(context.Background())

	_, ok := f.Latest()
	require.True(t, ok)
}
