// Package assets holds the fixed routing tokens of every supported network.
package assets

import (
	"errors"

	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

const (
	CeloMainnet   uint64 = 42220
	CeloAlfajores uint64 = 44787
)

var ErrUnknownNetwork = errors.New("unknown network")

// Network is the routing table of one chain. Reference is the unit of
// account, Base the primary hop and Anchor the fallback hop which routes
// through Base. Anchor may be nil.
type Network struct {
	ChainID   uint64
	Name      string
	Factory   common.Address
	Reference *types.Token
	Base      *types.Token
	Anchor    *types.Token
}

type Registry struct {
	networks map[uint64]*Network
}

func NewRegistry(networks ...*Network) *Registry {

	r := &Registry{networks: map[uint64]*Network{}}
	for _, n := range networks {
		r.networks[n.ChainID] = n
	}
	return r
}

// Default knows Celo mainnet and Alfajores with Ubeswap routing tokens.
func Default() *Registry {
	return NewRegistry(mainnet(), alfajores())
}

func (r *Registry) Lookup(chainID uint64) (*Network, error) {
	n, exists := r.networks[chainID]
	if !exists {
		return nil, ErrUnknownNetwork
	}
	return n, nil
}

// Tokens returns the routing tokens known on the network.
func (n *Network) Tokens() []*types.Token {
	out := []*types.Token{n.Reference, n.Base}
	if n.Anchor != nil {
		out = append(out, n.Anchor)
	}
	return out
}

// TokenByAddress resolves one of the routing tokens by address.
func (n *Network) TokenByAddress(address common.Address) (*types.Token, bool) {
	for _, t := range n.Tokens() {
		if t.Address == address {
			return t, true
		}
	}
	return nil, false
}

func mainnet() *Network {
	return &Network{
		ChainID:   CeloMainnet,
		Name:      "celo",
		Factory:   common.HexToAddress("0x62d5b84bE28a183aBB507E125B384122D2C25fAE"),
		Reference: types.NewToken(CeloMainnet, common.HexToAddress("0x765DE816845861e75A25fCA122bb6898B8B1282a"), 18, "cUSD", "Celo Dollar"),
		Base:      types.NewToken(CeloMainnet, common.HexToAddress("0x471EcE3750Da237f93B8E339c536989b8978a438"), 18, "CELO", "Celo"),
		Anchor:    types.NewToken(CeloMainnet, common.HexToAddress("0x00Be915B9dCf56a3CBE739D9B9c202ca692409EC"), 18, "UBE", "Ubeswap"),
	}
}

func alfajores() *Network {
	return &Network{
		ChainID:   CeloAlfajores,
		Name:      "alfajores",
		Factory:   common.HexToAddress("0x62d5b84bE28a183aBB507E125B384122D2C25fAE"),
		Reference: types.NewToken(CeloAlfajores, common.HexToAddress("0x874069Fa1Eb16D44d622F2e0Ca25eeA172369bC1"), 18, "cUSD", "Celo Dollar"),
		Base:      types.NewToken(CeloAlfajores, common.HexToAddress("0xF194afDf50B03e69Bd7D057c1Aa9e10c9954E4C9"), 18, "CELO", "Celo"),
		Anchor:    types.NewToken(CeloAlfajores, common.HexToAddress("0x00400FcbF0816bebB94654259de7273f4A05c762"), 18, "UBE", "Ubeswap"),
	}
}
