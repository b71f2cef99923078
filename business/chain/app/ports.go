// Package app contains application services and port definitions for the L1 chain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/nightfall-sdk/business/chain/domain"
)

// ChainReader is the read side of the L1 connection.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	// BlockNumber queries the node for the latest block.
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Connection is a managed, long-lived L1 connection.
type Connection interface {
	ChainReader
	SendTransaction(ctx context.Context, tx *types.Transaction) error

	// CurrentBlockNumber returns the block number cached by the refresh
	// probe, querying the node when the cache is empty or stale.
	CurrentBlockNumber(ctx context.Context) (uint64, error)
	// IsAlive reports the connection flag maintained by the liveness probe.
	IsAlive() bool
	// IsListening asks the node directly and propagates failures.
	IsListening(ctx context.Context) (bool, error)
	Status() domain.ConnectionStatus
	Close() error
}

// GasEstimator produces safety-padded gas figures.
type GasEstimator interface {
	EstimateGasLimit(ctx context.Context, call domain.CallRequest) (uint64, error)
	EstimateGasPrice(ctx context.Context) (*domain.GasPrice, error)
}

// Signer signs transactions with a key held by this process.
type Signer interface {
	From() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// ExternalWallet signs and broadcasts on behalf of an address whose key
// this process never sees, such as a browser wallet.
type ExternalWallet interface {
	From() common.Address
	SendTransaction(ctx context.Context, call domain.CallRequest) (common.Hash, error)
}

// TransactionSubmitter turns an unsigned call into a confirmed receipt.
type TransactionSubmitter interface {
	Submit(ctx context.Context, account Account, call domain.CallRequest) (*domain.Receipt, error)
}
