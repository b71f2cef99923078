// Package app contains application services and port definitions for the protocol service context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/nightfall-sdk/business/protocol/domain"
)

// Gateway is the HTTP boundary to the protocol service. Every failure is an
// *apperror.AppError of the remote service kind, except input checks that
// fail before any request is made.
type Gateway interface {
	// HealthCheck reports whether the service answered with exactly 200.
	HealthCheck(ctx context.Context) (bool, error)
	ResolveContractAddress(ctx context.Context, name string) (common.Address, error)
	DeriveKeys(ctx context.Context, mnemonic string, addressIndex int) (*domain.ZkpKeySet, error)
	SubscribeIncomingViewingKeys(ctx context.Context, keys *domain.ZkpKeySet) error

	BuildDeposit(ctx context.Context, req domain.DepositRequest) (*domain.UnsignedTransactionIntent, error)
	// BuildTransfer fails with a no-suitable-commitments error when the
	// service cannot cover the value with spendable commitments.
	BuildTransfer(ctx context.Context, req domain.TransferRequest) (*domain.UnsignedTransactionIntent, error)
	BuildWithdrawal(ctx context.Context, req domain.WithdrawalRequest) (*domain.UnsignedTransactionIntent, error)
	BuildFinaliseWithdrawal(ctx context.Context, l2TxHash string) (*domain.UnsignedTransactionIntent, error)

	// FetchCommitmentsByKeys fails before any request when keys is empty.
	FetchCommitmentsByKeys(ctx context.Context, keys []string) ([]domain.Commitment, error)
	SaveCommitments(ctx context.Context, commitments []domain.Commitment) error

	FetchBalances(ctx context.Context, compressedKey string) (domain.Balances, error)
	FetchPendingDeposits(ctx context.Context, compressedKey string) (domain.Balances, error)
	FetchPendingSpent(ctx context.Context, compressedKey string) (domain.Balances, error)
}
