package binding

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/RestinGreen/stable-pricer/pkg/abihandler"
	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

var ErrUnexpectedOutput = errors.New("unexpected contract output")

type Reserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

// Binding reads Uniswap V2 factories, pairs and ERC-20 tokens. Bound
// contracts and token metadata are created once per address.
type Binding struct {
	caller bind.ContractCaller
	abis   *abihandler.AbiHandler

	mu        sync.Mutex
	Pairs     map[common.Address]*bind.BoundContract
	Factories map[common.Address]*bind.BoundContract
	Tokens    map[common.Address]*bind.BoundContract
	tokenInfo map[common.Address]*types.Token
}

func NewBinding(caller bind.ContractCaller, abis *abihandler.AbiHandler) *Binding {

	return &Binding{
		caller:    caller,
		abis:      abis,
		Pairs:     map[common.Address]*bind.BoundContract{},
		Factories: map[common.Address]*bind.BoundContract{},
		Tokens:    map[common.Address]*bind.BoundContract{},
		tokenInfo: map[common.Address]*types.Token{},
	}
}

func (b *Binding) bound(cache map[common.Address]*bind.BoundContract, address common.Address, parsed abi.ABI) *bind.BoundContract {
	b.mu.Lock()
	defer b.mu.Unlock()

	contract, exists := cache[address]
	if !exists {
		contract = bind.NewBoundContract(address, parsed, b.caller, nil, nil)
		cache[address] = contract
	}
	return contract
}

func (b *Binding) AddPairContract(pairAddress common.Address) *bind.BoundContract {
	return b.bound(b.Pairs, pairAddress, b.abis.UniV2PairAbi)
}

func (b *Binding) AddFactoryContract(factoryAddress common.Address) *bind.BoundContract {
	return b.bound(b.Factories, factoryAddress, b.abis.UniV2FactoryAbi)
}

func (b *Binding) AddTokenContract(tokenAddress common.Address) *bind.BoundContract {
	return b.bound(b.Tokens, tokenAddress, b.abis.ERC20Abi)
}

// GetPair returns the pair of tokenA and tokenB known to factory. The zero
// address means the pair does not exist.
func (b *Binding) GetPair(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error) {

	out, err := b.call(ctx, b.AddFactoryContract(factory), "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	pairAddress, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getPair: %w", ErrUnexpectedOutput)
	}
	return pairAddress, nil
}

func (b *Binding) GetReserves(ctx context.Context, pairAddress common.Address) (*Reserves, error) {

	out, err := b.call(ctx, b.AddPairContract(pairAddress), "getReserves")
	if err != nil {
		return nil, err
	}
	if len(out) < 3 {
		return nil, fmt.Errorf("getReserves: %w", ErrUnexpectedOutput)
	}
	r0, ok0 := out[0].(*big.Int)
	r1, ok1 := out[1].(*big.Int)
	ts, ok2 := out[2].(uint32)
	if !ok0 || !ok1 || !ok2 {
		return nil, fmt.Errorf("getReserves: %w", ErrUnexpectedOutput)
	}
	return &Reserves{Reserve0: r0, Reserve1: r1, BlockTimestampLast: ts}, nil
}

// TokenInfo reads decimals, symbol and name of an ERC-20 token. Decimals are
// required; a token without a string symbol or name keeps them empty.
func (b *Binding) TokenInfo(ctx context.Context, chainID uint64, tokenAddress common.Address) (*types.Token, error) {

	b.mu.Lock()
	token, exists := b.tokenInfo[tokenAddress]
	b.mu.Unlock()
	if exists && token.ChainID == chainID {
		return token, nil
	}

	contract := b.AddTokenContract(tokenAddress)
	out, err := b.call(ctx, contract, "decimals")
	if err != nil {
		return nil, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return nil, fmt.Errorf("decimals: %w", ErrUnexpectedOutput)
	}
	symbol := b.optionalString(ctx, contract, "symbol")
	name := b.optionalString(ctx, contract, "name")

	token = types.NewToken(chainID, tokenAddress, decimals, symbol, name)
	b.mu.Lock()
	b.tokenInfo[tokenAddress] = token
	b.mu.Unlock()
	return token, nil
}

func (b *Binding) optionalString(ctx context.Context, contract *bind.BoundContract, method string) string {
	out, err := b.call(ctx, contract, method)
	if err != nil {
		return ""
	}
	s, _ := out[0].(string)
	return s
}

func (b *Binding) call(ctx context.Context, contract *bind.BoundContract, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", method, ErrUnexpectedOutput)
	}
	return out, nil
}
