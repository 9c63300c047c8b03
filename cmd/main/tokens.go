package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/RestinGreen/stable-pricer/pkg/abihandler"
	"github.com/RestinGreen/stable-pricer/pkg/binding"
	"github.com/RestinGreen/stable-pricer/pkg/connection"
	"github.com/RestinGreen/stable-pricer/pkg/reserves"
	"github.com/RestinGreen/stable-pricer/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var errNoTokens = errors.New("no tokens given and PRICE_TOKENS is empty")

// chainAccess bundles everything that reads from the node.
type chainAccess struct {
	conn    *connection.Connection
	binding *binding.Binding
	reader  *reserves.Reader
}

func (a *app) dial(ctx context.Context) (*chainAccess, error) {

	if a.general.RpcEndpoint == "" {
		return nil, errors.New("RPC_ENDPOINT is not set")
	}
	conn, err := connection.NewConnection(ctx, a.general.RpcEndpoint)
	if err != nil {
		return nil, err
	}
	if chainID, err := conn.ChainID(ctx); err != nil {
		a.log.Warn("could not verify node chain", zap.Error(err))
	} else if chainID != a.network.ChainID {
		conn.Close()
		return nil, fmt.Errorf("node serves chain %d, configured %d", chainID, a.network.ChainID)
	}

	abis, err := abihandler.NewAbiHandler()
	if err != nil {
		conn.Close()
		return nil, err
	}
	b := binding.NewBinding(conn.EthClient, abis)
	reader, err := reserves.NewReader(b, a.registry, reserves.WithLogger(a.log))
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &chainAccess{conn: conn, binding: b, reader: reader}, nil
}

// resolveTokens turns addresses into tokens. Routing tokens come from the
// registry, anything else is read from its contract.
func (a *app) resolveTokens(ctx context.Context, b *binding.Binding, args []string) ([]*types.Token, error) {

	addresses, err := parseAddresses(args, a.general.PriceTokens)
	if err != nil {
		return nil, err
	}

	tokens := make([]*types.Token, len(addresses))
	for i, address := range addresses {
		if token, ok := a.network.TokenByAddress(address); ok {
			tokens[i] = token
			continue
		}
		token, err := b.TokenInfo(ctx, a.network.ChainID, address)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", address.Hex(), err)
		}
		tokens[i] = token
	}
	return tokens, nil
}

func parseAddresses(args []string, fallback []common.Address) ([]common.Address, error) {
	if len(args) == 0 {
		if len(fallback) == 0 {
			return nil, errNoTokens
		}
		return fallback, nil
	}
	out := make([]common.Address, len(args))
	for i, arg := range args {
		if !common.IsHexAddress(arg) {
			return nil, fmt.Errorf("invalid token address %q", arg)
		}
		out[i] = common.HexToAddress(arg)
	}
	return out, nil
}

