package chain

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// SortAddress orders two addresses the way a Uniswap V2 factory does.
// The returned bool is true when the inputs were swapped.
func SortAddress(tokenA common.Address, tokenB common.Address) (common.Address, common.Address, bool) {

	if common.BytesToHash(tokenA.Bytes()).Big().Cmp(common.BytesToHash(tokenB.Bytes()).Big()) < 0 {
		return tokenA, tokenB, false
	} else {
		return tokenB, tokenA, true
	}
}

// PairKey is the order independent key of a token pair on one chain.
func PairKey(chainID uint64, tokenA, tokenB common.Address) string {
	token0, token1, _ := SortAddress(tokenA, tokenB)
	return strconv.FormatUint(chainID, 10) + ":" + token0.Hex() + token1.Hex()
}
