package types

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrTokenMismatch = errors.New("price tokens do not chain")
	ErrZeroPrice     = errors.New("price has a zero term")
)

// decimalPrecision is the number of fractional digits kept by Decimal.
const decimalPrecision = 18

// Price is Numerator/Denominator raw Quote units per raw Base unit.
type Price struct {
	Base        *Token
	Quote       *Token
	Numerator   *big.Int
	Denominator *big.Int
}

func NewPrice(base, quote *Token, numerator, denominator *big.Int) *Price {

	return &Price{
		Base:        base,
		Quote:       quote,
		Numerator:   new(big.Int).Set(numerator),
		Denominator: new(big.Int).Set(denominator),
	}
}

// Identity prices a token in itself, 1:1.
func Identity(token *Token) *Price {
	return NewPrice(token, token, big.NewInt(1), big.NewInt(1))
}

// Multiply composes p (A->B) with other (B->C) into A->C.
func (p *Price) Multiply(other *Price) (*Price, error) {
	if !p.Quote.Equals(other.Base) {
		return nil, ErrTokenMismatch
	}
	return &Price{
		Base:        p.Base,
		Quote:       other.Quote,
		Numerator:   new(big.Int).Mul(p.Numerator, other.Numerator),
		Denominator: new(big.Int).Mul(p.Denominator, other.Denominator),
	}, nil
}

func (p *Price) Invert() (*Price, error) {
	if p.Numerator.Sign() == 0 {
		return nil, ErrZeroPrice
	}
	return NewPrice(p.Quote, p.Base, p.Denominator, p.Numerator), nil
}

// Raw is the ratio of raw token units, ignoring decimals.
func (p *Price) Raw() *big.Rat {
	return new(big.Rat).SetFrac(p.Numerator, p.Denominator)
}

// Adjusted is the human readable ratio: whole Quote tokens per whole Base token.
func (p *Price) Adjusted() *big.Rat {
	num := new(big.Int).Mul(p.Numerator, pow10(p.Base.Decimals))
	den := new(big.Int).Mul(p.Denominator, pow10(p.Quote.Decimals))
	return new(big.Rat).SetFrac(num, den)
}

func (p *Price) Decimal() decimal.Decimal {
	num := decimal.NewFromBigInt(p.Numerator, int32(p.Base.Decimals))
	den := decimal.NewFromBigInt(p.Denominator, int32(p.Quote.Decimals))
	return num.DivRound(den, decimalPrecision)
}

func (p *Price) ToFixed(places int32) string {
	return p.Decimal().StringFixed(places)
}

// Convert turns a raw amount of Base into a raw amount of Quote, rounding down.
func (p *Price) Convert(amount *big.Int) (*big.Int, error) {
	if amount == nil || p.Denominator.Sign() == 0 {
		return nil, ErrZeroPrice
	}
	out := new(big.Int).Mul(amount, p.Numerator)
	return out.Quo(out, p.Denominator), nil
}

func (p *Price) Equal(other *Price) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Base.Equals(other.Base) && p.Quote.Equals(other.Quote) && p.Raw().Cmp(other.Raw()) == 0
}

func (p *Price) String() string {
	return p.ToFixed(6) + " " + p.Quote.String() + "/" + p.Base.String()
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
