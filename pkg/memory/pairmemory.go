package memory

import (
	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

type PairMemory struct {
	//key is chain + sorted token0 + token1 -> pair data
	Pairs map[string]*types.Pair
	//key is pair address -> chain+t0+t1
	PairMap map[common.Address]string
}

func NewPairMemory() *PairMemory {

	return &PairMemory{
		Pairs:   map[string]*types.Pair{},
		PairMap: map[common.Address]string{},
	}
}
