package router

import (
	"errors"

	"github.com/RestinGreen/stable-pricer/pkg/assets"
	"github.com/RestinGreen/stable-pricer/pkg/types"
)

// Positions of the candidate pairs, in the order they are requested.
const (
	candidateDirect = iota
	candidateBase
	candidateBaseReference
	candidateAnchor
	candidateAnchorBase

	NumCandidates
)

var errMissingPair = errors.New("missing pair")

// Candidates lists the pairs needed to price token on network n. A leg
// between a token and itself is left degenerate and is never looked up.
func Candidates(token *types.Token, n *assets.Network) [NumCandidates]types.TokenPair {
	var out [NumCandidates]types.TokenPair
	out[candidateDirect] = leg(token, n.Reference)
	out[candidateBase] = leg(token, n.Base)
	out[candidateBaseReference] = types.TokenPair{A: n.Base, B: n.Reference}
	out[candidateAnchor] = leg(token, n.Anchor)
	out[candidateAnchorBase] = types.TokenPair{A: n.Anchor, B: n.Base}
	return out
}

func leg(token, hop *types.Token) types.TokenPair {
	if token.Equals(hop) {
		return types.TokenPair{B: hop}
	}
	return types.TokenPair{A: token, B: hop}
}

// Resolve prices token in the network's reference asset from the pairs
// fetched for Candidates(token, n). The first rule that is satisfied wins:
// identity, direct pair, via Base, via Anchor then Base.
func Resolve(token *types.Token, n *assets.Network, pairs [NumCandidates]*types.Pair) types.Quote {
	if token == nil {
		return types.Quote{Route: types.RouteUnavailable}
	}
	if token.Equals(n.Reference) {
		return types.Quote{Price: types.Identity(n.Reference), Route: types.RouteIdentity}
	}

	candidates := Candidates(token, n)
	usable := func(i int) *types.Pair {
		p := pairs[i]
		if p == nil || candidates[i].Degenerate() || !p.HasLiquidity() || !p.Matches(candidates[i]) {
			return nil
		}
		return p
	}

	if direct := usable(candidateDirect); direct != nil {
		if price, err := direct.PriceOf(token); err == nil {
			return types.Quote{Price: price, Route: types.RouteDirect}
		}
	}

	baseReference := usable(candidateBaseReference)
	if baseReference == nil {
		return types.Quote{Route: types.RouteUnavailable}
	}
	baseToReference, err := baseReference.PriceOf(n.Base)
	if err != nil {
		return types.Quote{Route: types.RouteUnavailable}
	}

	if toBase, err := legPrice(token, n.Base, usable(candidateBase)); err == nil {
		if price, err := toBase.Multiply(baseToReference); err == nil {
			return types.Quote{Price: price, Route: types.RouteBase}
		}
	}

	if n.Anchor == nil {
		return types.Quote{Route: types.RouteUnavailable}
	}
	anchorBase := usable(candidateAnchorBase)
	if anchorBase == nil {
		return types.Quote{Route: types.RouteUnavailable}
	}
	toAnchor, err := legPrice(token, n.Anchor, usable(candidateAnchor))
	if err != nil {
		return types.Quote{Route: types.RouteUnavailable}
	}
	anchorToBase, err := anchorBase.PriceOf(n.Anchor)
	if err != nil {
		return types.Quote{Route: types.RouteUnavailable}
	}
	price, err := multiply(toAnchor, anchorToBase, baseToReference)
	if err != nil {
		return types.Quote{Route: types.RouteUnavailable}
	}
	return types.Quote{Price: price, Route: types.RouteAnchor}
}

// legPrice prices token in hop through pair. A token that is the hop itself
// prices 1:1 and needs no pair.
func legPrice(token, hop *types.Token, pair *types.Pair) (*types.Price, error) {
	if token.Equals(hop) {
		return types.Identity(token), nil
	}
	if pair == nil {
		return nil, errMissingPair
	}
	return pair.PriceOf(token)
}

func multiply(first *types.Price, rest ...*types.Price) (*types.Price, error) {
	out := first
	for _, p := range rest {
		var err error
		out, err = out.Multiply(p)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
