package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/nightfall-sdk/business/chain/app"
	"github.com/fd1az/nightfall-sdk/business/chain/domain"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
	"github.com/fd1az/nightfall-sdk/internal/logger"
)

// SubmitterConfig holds configuration for the transaction submitter.
type SubmitterConfig struct {
	ChainID            *big.Int
	ConfirmationBlocks uint64        // blocks on top of the inclusion block, inclusive
	BlockTimeout       uint64        // blocks to wait for inclusion before giving up
	PollInterval       time.Duration // receipt and block polling cadence
}

// DefaultSubmitterConfig returns the standard confirmation policy.
func DefaultSubmitterConfig(chainID *big.Int) SubmitterConfig {
	return SubmitterConfig{
		ChainID:            chainID,
		ConfirmationBlocks: 12,
		BlockTimeout:       750,
		PollInterval:       2 * time.Second,
	}
}

// submitBackend is the node surface the submitter needs.
type submitBackend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// submitterMetrics holds OTEL metric instruments.
type submitterMetrics struct {
	submitted   metric.Int64Counter
	failed      metric.Int64Counter
	confirmTime metric.Float64Histogram
}

// Submitter estimates, signs or delegates, broadcasts and then waits for a
// confirmed receipt.
type Submitter struct {
	config  SubmitterConfig
	backend submitBackend
	gas     app.GasEstimator
	logger  logger.LoggerInterface

	// Held-key sends read the pending nonce and broadcast under nonceMu so
	// concurrent submissions from one key do not reuse a nonce.
	nonceMu  sync.Mutex
	sequence atomic.Uint64

	tracer  trace.Tracer
	metrics *submitterMetrics
}

var _ app.TransactionSubmitter = (*Submitter)(nil)

// NewSubmitter creates a new submitter.
func NewSubmitter(cfg SubmitterConfig, backend submitBackend, gas app.GasEstimator, log logger.LoggerInterface) (*Submitter, error) {
	if cfg.ChainID == nil {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "submitter requires a chain id")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	s := &Submitter{
		config:  cfg,
		backend: backend,
		gas:     gas,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return s, nil
}

// initMetrics initializes OTEL metric instruments.
func (s *Submitter) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &submitterMetrics{}

	s.metrics.submitted, err = meter.Int64Counter(
		"eth_tx_submitted_total",
		metric.WithDescription("Transactions broadcast to L1"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.failed, err = meter.Int64Counter(
		"eth_tx_failed_total",
		metric.WithDescription("Transactions that failed to send, reverted or timed out"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.confirmTime, err = meter.Float64Histogram(
		"eth_tx_confirmation_seconds",
		metric.WithDescription("Time from broadcast to the required confirmations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Submit sends call from account and returns once the receipt has the
// configured number of confirmations.
func (s *Submitter) Submit(ctx context.Context, account app.Account, call domain.CallRequest) (*domain.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "eth.submit",
		trace.WithAttributes(
			attribute.String("from", account.Address().Hex()),
			attribute.String("to", call.To.Hex()),
			attribute.String("value", call.ValueOrZero().String()),
		),
	)
	defer span.End()

	if !account.Valid() {
		return nil, apperror.State(apperror.CodeSignerUnavailable, "submit transaction")
	}
	call.From = account.Address()

	limit, err := s.gas.EstimateGasLimit(ctx, call)
	if err != nil {
		s.fail(ctx, span, "estimate", err)
		return nil, err
	}
	price, err := s.gas.EstimateGasPrice(ctx)
	if err != nil {
		s.fail(ctx, span, "estimate", err)
		return nil, err
	}
	call.Gas = limit
	call.GasPrice = price.Wei

	startBlock, err := s.backend.BlockNumber(ctx)
	if err != nil {
		err = apperror.New(apperror.CodeEthereumRPCError, apperror.WithCause(err), apperror.WithContext("block number"))
		s.fail(ctx, span, "send", err)
		return nil, err
	}

	var hash common.Hash
	if signer, ok := account.Signer(); ok {
		hash, err = s.sendSigned(ctx, signer, call)
	} else {
		wallet, _ := account.Wallet()
		hash, err = wallet.SendTransaction(ctx, call)
	}
	if err != nil {
		if !apperror.IsAppError(err) {
			err = apperror.New(apperror.CodeTransactionSendFailed,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("to %s", call.To.Hex())))
		}
		s.fail(ctx, span, "send", err)
		return nil, err
	}

	seq := s.sequence.Add(1)
	submittedAt := time.Now()
	s.metrics.submitted.Add(ctx, 1)
	span.SetAttributes(
		attribute.String("tx_hash", hash.Hex()),
		attribute.Int64("sequence", int64(seq)),
		attribute.Int64("gas_limit", int64(limit)),
		attribute.Float64("gas_price_gwei", price.Gwei),
	)
	s.logger.Info(ctx, "transaction broadcast", "tx", hash.Hex(), "to", call.To.Hex(), "seq", seq)

	raw, err := s.waitForReceipt(ctx, hash, startBlock)
	if err != nil {
		s.fail(ctx, span, "receipt", err)
		return nil, err
	}

	receipt := &domain.Receipt{
		TxHash:            raw.TxHash,
		BlockHash:         raw.BlockHash,
		GasUsed:           raw.GasUsed,
		EffectiveGasPrice: raw.EffectiveGasPrice,
		Status:            raw.Status,
		From:              call.From,
		To:                call.To,
		Sequence:          seq,
		SubmittedAt:       submittedAt,
	}
	if raw.BlockNumber != nil {
		receipt.BlockNumber = raw.BlockNumber.Uint64()
	}

	if !receipt.Succeeded() {
		err := apperror.New(apperror.CodeTransactionReverted,
			apperror.WithContext(fmt.Sprintf("tx %s in block %d", hash.Hex(), receipt.BlockNumber)))
		s.fail(ctx, span, "revert", err)
		return nil, err
	}

	confirmations, err := s.waitForConfirmations(ctx, receipt.BlockNumber)
	if err != nil {
		s.fail(ctx, span, "confirm", err)
		return nil, err
	}
	receipt.Confirmations = confirmations
	receipt.ConfirmedAt = time.Now()

	s.metrics.confirmTime.Record(ctx, receipt.ConfirmedAt.Sub(submittedAt).Seconds())
	span.SetAttributes(attribute.Int64("block_number", int64(receipt.BlockNumber)))
	span.SetStatus(codes.Ok, "confirmed")

	s.logger.Info(ctx, "transaction confirmed",
		"tx", hash.Hex(), "block", receipt.BlockNumber, "confirmations", confirmations, "seq", seq)

	return receipt, nil
}

// sendSigned builds a legacy transaction with the pending nonce, signs it
// and broadcasts it.
func (s *Submitter) sendSigned(ctx context.Context, signer app.Signer, call domain.CallRequest) (common.Hash, error) {
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()

	nonce, err := s.backend.PendingNonceAt(ctx, signer.From())
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("pending nonce"))
	}

	to := call.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    call.ValueOrZero(),
		Gas:      call.Gas,
		GasPrice: call.GasPrice,
		Data:     call.Data,
	})

	signed, err := signer.SignTx(ctx, tx, s.config.ChainID)
	if err != nil {
		return common.Hash{}, apperror.New(apperror.CodeTransactionSendFailed,
			apperror.WithCause(err),
			apperror.WithContext("sign transaction"))
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

// waitForReceipt polls until the receipt is available. It gives up after
// BlockTimeout blocks past startBlock or when ctx is done.
func (s *Submitter) waitForReceipt(ctx context.Context, hash common.Hash, startBlock uint64) (*types.Receipt, error) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.logger.Debug(ctx, "receipt lookup failed", "tx", hash.Hex(), "error", err)
		}

		if s.config.BlockTimeout > 0 {
			if current, err := s.backend.BlockNumber(ctx); err == nil && current > startBlock+s.config.BlockTimeout {
				return nil, apperror.New(apperror.CodeTransactionTimeout,
					apperror.WithContext(fmt.Sprintf("tx %s not mined within %d blocks", hash.Hex(), s.config.BlockTimeout)))
			}
		}

		select {
		case <-ctx.Done():
			return nil, apperror.New(apperror.CodeTransactionTimeout,
				apperror.WithCause(ctx.Err()),
				apperror.WithContext(fmt.Sprintf("tx %s", hash.Hex())))
		case <-ticker.C:
		}
	}
}

// waitForConfirmations blocks until the chain head is ConfirmationBlocks
// deep over the inclusion block, counting the inclusion block itself.
func (s *Submitter) waitForConfirmations(ctx context.Context, included uint64) (uint64, error) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		current, err := s.backend.BlockNumber(ctx)
		if err == nil && current >= included {
			confirmations := current - included + 1
			if confirmations >= s.config.ConfirmationBlocks {
				return confirmations, nil
			}
		}

		select {
		case <-ctx.Done():
			return 0, apperror.New(apperror.CodeTransactionTimeout,
				apperror.WithCause(ctx.Err()),
				apperror.WithContext(fmt.Sprintf("waiting for %d confirmations of block %d", s.config.ConfirmationBlocks, included)))
		case <-ticker.C:
		}
	}
}

func (s *Submitter) fail(ctx context.Context, span trace.Span, stage string, err error) {
	s.metrics.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	span.RecordError(err)
	span.SetStatus(codes.Error, stage+" failed")
	s.logger.Warn(ctx, "transaction failed", "stage", stage, "error", err)
}
