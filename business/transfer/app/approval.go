package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	chainapp "github.com/fd1az/nightfall-sdk/business/chain/app"
	chaindomain "github.com/fd1az/nightfall-sdk/business/chain/domain"
	"github.com/fd1az/nightfall-sdk/business/transfer/domain"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
	"github.com/fd1az/nightfall-sdk/internal/logger"
)

const tracerName = "github.com/fd1az/nightfall-sdk/business/transfer/app"

// ApprovalGate decides whether the spender may already move the owner's
// tokens, and sends an approval when it may not. Decisions are never
// cached: allowances change outside this process.
type ApprovalGate struct {
	inspector TokenInspector
	submitter chainapp.TransactionSubmitter
	logger    logger.LoggerInterface
	tracer    trace.Tracer
}

// NewApprovalGate creates a new approval gate.
func NewApprovalGate(inspector TokenInspector, submitter chainapp.TransactionSubmitter, log logger.LoggerInterface) *ApprovalGate {
	return &ApprovalGate{
		inspector: inspector,
		submitter: submitter,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}
}

// Check reads the current approval of spender over owner's tokens. ERC20 is
// approved when the allowance covers value; ERC721 and ERC1155 when the
// spender is an approved operator.
func (g *ApprovalGate) Check(ctx context.Context, token domain.Token, owner, spender common.Address, value *big.Int) (domain.ApprovalDecision, error) {
	ctx, span := g.tracer.Start(ctx, "approval.check",
		trace.WithAttributes(
			attribute.String("token", token.Address.Hex()),
			attribute.String("standard", string(token.Standard)),
		),
	)
	defer span.End()

	if value == nil {
		value = new(big.Int)
	}
	decision := domain.ApprovalDecision{
		Token:   token.Address,
		Spender: spender,
	}

	switch {
	case token.Standard == domain.ERC20:
		allowance, err := g.inspector.Allowance(ctx, token.Address, owner, spender)
		if err != nil {
			return domain.ApprovalDecision{}, err
		}
		decision.Allowance = allowance
		decision.Approved = allowance.Cmp(value) >= 0
	case token.Standard.IsNFT():
		ok, err := g.inspector.IsApprovedForAll(ctx, token.Address, owner, spender)
		if err != nil {
			return domain.ApprovalDecision{}, err
		}
		decision.Approved = ok
	default:
		return domain.ApprovalDecision{}, apperror.Validation(apperror.CodeUnsupportedToken, string(token.Standard))
	}

	if !decision.Approved {
		data, err := g.inspector.ApproveCallData(token.Standard, spender, value)
		if err != nil {
			return domain.ApprovalDecision{}, err
		}
		decision.CallData = data
	}

	span.SetAttributes(attribute.Bool("approved", decision.Approved))
	return decision, nil
}

// EnsureApproved checks approval and, if missing, submits the approval
// call from account. Both held-key and external-wallet accounts are
// accepted.
func (g *ApprovalGate) EnsureApproved(ctx context.Context, token domain.Token, account chainapp.Account, spender common.Address, value *big.Int) (domain.ApprovalOutcome, error) {
	decision, err := g.Check(ctx, token, account.Address(), spender, value)
	if err != nil {
		return domain.ApprovalOutcome{}, err
	}
	if decision.Approved {
		g.logger.Debug(ctx, "approval already in place", "token", token.Address.Hex(), "spender", spender.Hex())
		return domain.ApprovalOutcome{Result: domain.AlreadyApproved}, nil
	}

	receipt, err := g.submitter.Submit(ctx, account, chaindomain.CallRequest{
		To:   token.Address,
		Data: decision.CallData,
	})
	if err != nil {
		return domain.ApprovalOutcome{}, apperror.Wrap(err, apperror.CodeTransactionSendFailed,
			fmt.Sprintf("approve %s for %s", token.Address.Hex(), spender.Hex()))
	}

	g.logger.Info(ctx, "approval submitted",
		"token", token.Address.Hex(), "spender", spender.Hex(), "tx", receipt.TxHash.Hex())

	return domain.ApprovalOutcome{Result: domain.ApprovalSubmitted, Receipt: receipt}, nil
}
