// Package ethereum provides go-ethereum adapters for the L1 chain context.
package ethereum

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	tracerName = "github.com/fd1az/nightfall-sdk/business/chain/infra/ethereum"
	meterName  = "github.com/fd1az/nightfall-sdk/business/chain/infra/ethereum"
)

// Backend is the subset of a node client the connection manager drives.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Listening(ctx context.Context) (bool, error)
	Close()
}

// Dialer opens a Backend for url.
type Dialer func(ctx context.Context, url string) (Backend, error)

// gethBackend adapts ethclient plus the raw RPC client for net_listening.
type gethBackend struct {
	*ethclient.Client
	rpc *rpc.Client
}

// DialBackend connects over websocket, HTTP or IPC depending on the URL scheme.
func DialBackend(ctx context.Context, url string) (Backend, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return &gethBackend{Client: ethclient.NewClient(rc), rpc: rc}, nil
}

func (b *gethBackend) Listening(ctx context.Context) (bool, error) {
	var listening bool
	if err := b.rpc.CallContext(ctx, &listening, "net_listening"); err != nil {
		return false, err
	}
	return listening, nil
}

func (b *gethBackend) Close() {
	b.Client.Close()
}
