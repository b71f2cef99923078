// Package app contains application services and port definitions for the transfer orchestration context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/nightfall-sdk/business/transfer/domain"
)

// TokenInspector reads token contracts and encodes approval calls.
type TokenInspector interface {
	DetectStandard(ctx context.Context, token common.Address) (domain.ErcStandard, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	IsApprovedForAll(ctx context.Context, token, owner, operator common.Address) (bool, error)
	ApproveCallData(std domain.ErcStandard, spender common.Address, value *big.Int) ([]byte, error)
}

// TransitionObserver is notified of every operation state change.
type TransitionObserver interface {
	OnTransition(ctx context.Context, op *domain.Operation, t domain.Transition)
}

// TransitionObserverFunc adapts a function to TransitionObserver.
type TransitionObserverFunc func(ctx context.Context, op *domain.Operation, t domain.Transition)

func (f TransitionObserverFunc) OnTransition(ctx context.Context, op *domain.Operation, t domain.Transition) {
	f(ctx, op, t)
}
