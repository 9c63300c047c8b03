package abihandler

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/*.json
var abiFiles embed.FS

type AbiHandler struct {
	UniV2FactoryAbi abi.ABI
	UniV2PairAbi    abi.ABI
	ERC20Abi        abi.ABI
}

func NewAbiHandler() (*AbiHandler, error) {
	var a AbiHandler
	var err error

	if a.UniV2FactoryAbi, err = load("abi/UniswapV2Factory.json"); err != nil {
		return nil, err
	}
	if a.UniV2PairAbi, err = load("abi/UniswapV2Pair.json"); err != nil {
		return nil, err
	}
	if a.ERC20Abi, err = load("abi/ERC20.json"); err != nil {
		return nil, err
	}
	return &a, nil
}

func load(name string) (abi.ABI, error) {
	fileBytes, err := abiFiles.ReadFile(name)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read %s: %w", name, err)
	}
	parsed, err := abi.JSON(bytes.NewReader(fileBytes))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return parsed, nil
}
