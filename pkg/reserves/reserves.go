// Package reserves reads Uniswap V2 pair reserves straight from the chain.
package reserves

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/RestinGreen/stable-pricer/pkg/assets"
	"github.com/RestinGreen/stable-pricer/pkg/binding"
	"github.com/RestinGreen/stable-pricer/pkg/logger"
	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const defaultCacheSize = 1024

var ErrPairNotFound = errors.New("pair not found")

// PairSource is the contract surface the reader needs. *binding.Binding
// implements it.
type PairSource interface {
	GetPair(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error)
	GetReserves(ctx context.Context, pairAddress common.Address) (*binding.Reserves, error)
}

// Reader looks pairs up through the factory of the token's network. Pair
// addresses never change once created, so found addresses are cached.
// Missing pairs are not cached because they can be created later.
type Reader struct {
	source   PairSource
	registry *assets.Registry
	cache    *lru.Cache[string, common.Address]
	log      *zap.Logger
}

type Option func(*Reader) error

func WithCacheSize(size int) Option {
	return func(r *Reader) error {
		cache, err := lru.New[string, common.Address](size)
		if err != nil {
			return fmt.Errorf("pair address cache: %w", err)
		}
		r.cache = cache
		return nil
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Reader) error {
		r.log = log
		return nil
	}
}

func NewReader(source PairSource, registry *assets.Registry, opts ...Option) (*Reader, error) {

	r := &Reader{source: source, registry: registry}
	for _, opt := range append([]Option{WithCacheSize(defaultCacheSize)}, opts...) {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.log = logger.OrNop(r.log)
	return r, nil
}

// GetPairs reads every requested pair. Degenerate requests, missing pairs and
// pairs of unknown networks come back nil. Identical requests are read once.
// Any read failure fails the whole call.
func (r *Reader) GetPairs(ctx context.Context, request []types.TokenPair) ([]*types.Pair, error) {

	out := make([]*types.Pair, len(request))
	read := map[string]*types.Pair{}

	for i, tp := range request {
		if tp.Degenerate() {
			continue
		}
		key := tp.Key()
		if pair, done := read[key]; done {
			if pair != nil {
				out[i] = pair.Copy()
			}
			continue
		}

		pair, err := r.getPair(ctx, tp)
		switch {
		case errors.Is(err, ErrPairNotFound), errors.Is(err, assets.ErrUnknownNetwork):
			r.log.Debug("pair unavailable", zap.String("pair", key), zap.Error(err))
		case err != nil:
			return nil, err
		}
		read[key] = pair
		out[i] = pair
	}
	return out, nil
}

func (r *Reader) getPair(ctx context.Context, tp types.TokenPair) (*types.Pair, error) {

	network, err := r.registry.Lookup(tp.A.ChainID)
	if err != nil {
		return nil, err
	}

	token0, token1 := tp.Sorted()
	key := tp.Key()
	pairAddress, cached := r.cache.Get(key)
	if !cached {
		pairAddress, err = r.source.GetPair(ctx, network.Factory, token0.Address, token1.Address)
		if err != nil {
			return nil, fmt.Errorf("get pair %s: %w", key, err)
		}
		if pairAddress == (common.Address{}) {
			return nil, ErrPairNotFound
		}
		r.cache.Add(key, pairAddress)
	}

	reserves, err := r.source.GetReserves(ctx, pairAddress)
	if err != nil {
		return nil, fmt.Errorf("get reserves %s: %w", pairAddress.Hex(), err)
	}

	return &types.Pair{
		PairAddress: pairAddress,
		Token0:      token0,
		Token1:      token1,
		Reserve0:    orZero(reserves.Reserve0),
		Reserve1:    orZero(reserves.Reserve1),
		LastUpdated: int64(reserves.BlockTimestampLast),
	}, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
