// Package router prices tokens in a network's stable reference asset by
// walking a fixed set of liquidity pairs.
package router

import (
	"context"

	"github.com/RestinGreen/stable-pricer/pkg/assets"
	"github.com/RestinGreen/stable-pricer/pkg/logger"
	"github.com/RestinGreen/stable-pricer/pkg/metrics"
	"github.com/RestinGreen/stable-pricer/pkg/types"
	"go.uber.org/zap"
)

// PairLookup returns the current pair for every requested token pair, in
// request order. Absent and degenerate requests yield nil.
type PairLookup interface {
	GetPairs(ctx context.Context, pairs []types.TokenPair) ([]*types.Pair, error)
}

// Router holds no state between calls; every call prices from a fresh
// lookup.
type Router struct {
	lookup   PairLookup
	session  Session
	registry *assets.Registry
	metrics  *metrics.Metrics
	log      *zap.Logger
}

type Option func(*Router)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Router) { r.log = log }
}

func New(lookup PairLookup, session Session, registry *assets.Registry, opts ...Option) *Router {

	r := &Router{
		lookup:   lookup,
		session:  session,
		registry: registry,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrNop(r.log)
	return r
}

// ComputePrice returns the price of token in the reference asset, or nil
// when it cannot be priced.
func (r *Router) ComputePrice(ctx context.Context, token *types.Token) *types.Price {
	return r.Quote(ctx, []*types.Token{token})[0].Price
}

// ComputePrices prices every token; result i belongs to tokens[i].
func (r *Router) ComputePrices(ctx context.Context, tokens []*types.Token) []*types.Price {
	quotes := r.Quote(ctx, tokens)
	out := make([]*types.Price, len(quotes))
	for i, q := range quotes {
		out[i] = q.Price
	}
	return out
}

// Quote is ComputePrices with the rule that produced each price.
func (r *Router) Quote(ctx context.Context, tokens []*types.Token) []types.Quote {
	out := make([]types.Quote, len(tokens))
	if len(tokens) == 0 {
		return out
	}

	network, ok := r.network()
	if !ok {
		r.observe(out)
		return out
	}

	request := make([]types.TokenPair, 0, len(tokens)*NumCandidates)
	for _, token := range tokens {
		candidates := Candidates(token, network)
		request = append(request, candidates[:]...)
	}

	pairs, err := r.lookup.GetPairs(ctx, request)
	if err != nil {
		r.log.Debug("pair lookup failed", zap.Uint64("chainId", network.ChainID), zap.Error(err))
		r.observe(out)
		return out
	}
	if len(pairs) != len(request) {
		r.log.Debug("pair lookup returned a short result",
			zap.Int("requested", len(request)),
			zap.Int("returned", len(pairs)),
		)
		r.observe(out)
		return out
	}

	for i, token := range tokens {
		var snapshot [NumCandidates]*types.Pair
		copy(snapshot[:], pairs[i*NumCandidates:(i+1)*NumCandidates])
		out[i] = Resolve(token, network, snapshot)
	}
	r.observe(out)
	return out
}

func (r *Router) network() (*assets.Network, bool) {
	if r.session == nil {
		return nil, false
	}
	chainID, ok := r.session.ChainID()
	if !ok {
		return nil, false
	}
	network, err := r.registry.Lookup(chainID)
	if err != nil {
		r.log.Debug("no routing table for network", zap.Uint64("chainId", chainID), zap.Error(err))
		return nil, false
	}
	return network, true
}

func (r *Router) observe(quotes []types.Quote) {
	for _, q := range quotes {
		r.metrics.ObserveRoute(q.Route)
	}
}
