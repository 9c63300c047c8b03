package types

import (
	"github.com/RestinGreen/stable-pricer/pkg/chain"
	"github.com/ethereum/go-ethereum/common"
)

type Token struct {
	ChainID  uint64
	Address  common.Address
	Decimals uint8
	Symbol   string
	Name     string
}

func NewToken(chainID uint64, address common.Address, decimals uint8, symbol, name string) *Token {

	return &Token{
		ChainID:  chainID,
		Address:  address,
		Decimals: decimals,
		Symbol:   symbol,
		Name:     name,
	}
}

// Equals compares network and address only; metadata is ignored.
func (t *Token) Equals(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.ChainID == other.ChainID && t.Address == other.Address
}

// SortsBefore reports whether t is token0 of a pair made with other.
func (t *Token) SortsBefore(other *Token) bool {
	_, _, inverse := chain.SortAddress(t.Address, other.Address)
	return !inverse
}

func (t *Token) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}

// TokenPair is a request for the pair between A and B.
type TokenPair struct {
	A *Token
	B *Token
}

// Degenerate pairs are never looked up: a missing leg, a self pair or
// legs living on different networks.
func (p TokenPair) Degenerate() bool {
	if p.A == nil || p.B == nil {
		return true
	}
	return p.A.ChainID != p.B.ChainID || p.A.Address == p.B.Address
}

func (p TokenPair) Key() string {
	if p.A == nil || p.B == nil {
		return ""
	}
	return chain.PairKey(p.A.ChainID, p.A.Address, p.B.Address)
}

// Sorted returns the legs as token0, token1.
func (p TokenPair) Sorted() (*Token, *Token) {
	if p.A.SortsBefore(p.B) {
		return p.A, p.B
	}
	return p.B, p.A
}
