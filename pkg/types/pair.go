package types

import (
	"errors"
	"math/big"

	"github.com/RestinGreen/stable-pricer/pkg/chain"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNoLiquidity    = errors.New("pair has no liquidity")
	ErrTokenNotInPair = errors.New("token is not part of the pair")
)

// Pair is a reserve snapshot of a Uniswap V2 style pool. Token0 always sorts
// before Token1.
type Pair struct {
	PairAddress common.Address
	Token0      *Token
	Token1      *Token
	Reserve0    *big.Int
	Reserve1    *big.Int
	LastUpdated int64
}

// NewPair sorts the tokens and their reserves into pool order.
func NewPair(tokenA, tokenB *Token, reserveA, reserveB *big.Int) *Pair {
	if reserveA == nil {
		reserveA = new(big.Int)
	}
	if reserveB == nil {
		reserveB = new(big.Int)
	}
	if tokenB.SortsBefore(tokenA) {
		tokenA, tokenB = tokenB, tokenA
		reserveA, reserveB = reserveB, reserveA
	}
	return &Pair{
		Token0:   tokenA,
		Token1:   tokenB,
		Reserve0: new(big.Int).Set(reserveA),
		Reserve1: new(big.Int).Set(reserveB),
	}
}

func (p *Pair) Key() string {
	return chain.PairKey(p.Token0.ChainID, p.Token0.Address, p.Token1.Address)
}

func (p *Pair) Involves(token *Token) bool {
	return p.Token0.Equals(token) || p.Token1.Equals(token)
}

// Matches reports whether the pair is the one requested by tp.
func (p *Pair) Matches(tp TokenPair) bool {
	return p.Involves(tp.A) && p.Involves(tp.B)
}

func (p *Pair) HasLiquidity() bool {
	return p.Reserve0 != nil && p.Reserve1 != nil && p.Reserve0.Sign() > 0 && p.Reserve1.Sign() > 0
}

func (p *Pair) ReserveOf(token *Token) (*big.Int, error) {
	switch {
	case p.Token0.Equals(token):
		return p.Reserve0, nil
	case p.Token1.Equals(token):
		return p.Reserve1, nil
	}
	return nil, ErrTokenNotInPair
}

// PriceOf returns the spot price of token expressed in the other pair token.
func (p *Pair) PriceOf(token *Token) (*Price, error) {
	if !p.HasLiquidity() {
		return nil, ErrNoLiquidity
	}
	switch {
	case p.Token0.Equals(token):
		return NewPrice(p.Token0, p.Token1, p.Reserve1, p.Reserve0), nil
	case p.Token1.Equals(token):
		return NewPrice(p.Token1, p.Token0, p.Reserve0, p.Reserve1), nil
	}
	return nil, ErrTokenNotInPair
}

// Copy returns a pair whose reserves can be read without holding any lock.
func (p *Pair) Copy() *Pair {
	c := *p
	if p.Reserve0 != nil {
		c.Reserve0 = new(big.Int).Set(p.Reserve0)
	}
	if p.Reserve1 != nil {
		c.Reserve1 = new(big.Int).Set(p.Reserve1)
	}
	return &c
}
