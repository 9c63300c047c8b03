package connection

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

type Connection struct {
	RpcClient *rpc.Client
	EthClient *ethclient.Client
}

// NewConnection dials endpoint once and shares the rpc client with ethclient.
// Log subscriptions need a websocket or ipc endpoint.
func NewConnection(ctx context.Context, endpoint string) (*Connection, error) {

	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("open rpc client connection: %w", err)
	}
	return &Connection{
		RpcClient: rpcClient,
		EthClient: ethclient.NewClient(rpcClient),
	}, nil
}

// ChainID asks the node which network it serves.
func (c *Connection) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.EthClient.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("read chain id: %w", err)
	}
	return id.Uint64(), nil
}

func (c *Connection) Close() {
	c.EthClient.Close()
}
