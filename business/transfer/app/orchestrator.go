package app

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	chainapp "github.com/fd1az/nightfall-sdk/business/chain/app"
	chaindomain "github.com/fd1az/nightfall-sdk/business/chain/domain"
	protocolapp "github.com/fd1az/nightfall-sdk/business/protocol/app"
	protocoldomain "github.com/fd1az/nightfall-sdk/business/protocol/domain"
	"github.com/fd1az/nightfall-sdk/business/transfer/domain"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
	"github.com/fd1az/nightfall-sdk/internal/logger"
	"github.com/fd1az/nightfall-sdk/internal/units"
)

const meterName = "github.com/fd1az/nightfall-sdk/business/transfer/app"

// Credentials are the two identities of a session user.
type Credentials struct {
	Account chainapp.Account
	Keys    *protocoldomain.ZkpKeySet
}

// DepositInput describes a deposit. Value is in whole token units; Fee is
// the proposer fee in wei and defaults to "0".
type DepositInput struct {
	Token   common.Address
	TokenID string
	Value   string
	Fee     string
}

// Recipient is one L2 transfer output. Value is in whole token units.
type Recipient struct {
	CompressedZkpPublicKey string
	Value                  string
}

// TransferInput describes an L2 transfer.
type TransferInput struct {
	Token      common.Address
	TokenID    string
	Recipients []Recipient
	Fee        string
	OffChain   bool
}

// WithdrawInput describes a withdrawal to an L1 address.
type WithdrawInput struct {
	Token     common.Address
	TokenID   string
	Value     string
	Fee       string
	Recipient common.Address
	OffChain  bool
}

// OrchestratorConfig holds orchestration settings.
type OrchestratorConfig struct {
	ShieldContractName string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithTransitionObserver registers obs for every state change.
func WithTransitionObserver(obs TransitionObserver) OrchestratorOption {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// orchestratorMetrics holds OTEL metric instruments.
type orchestratorMetrics struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

// Orchestrator runs deposit, transfer, withdraw and finalise-withdrawal
// through Build → (Approve) → Submit/Skip → Correlate.
type Orchestrator struct {
	config    OrchestratorConfig
	gateway   protocolapp.Gateway
	submitter chainapp.TransactionSubmitter
	approvals *ApprovalGate
	tokens    *TokenResolver
	history   *domain.WithdrawalHistory
	observer  TransitionObserver
	logger    logger.LoggerInterface

	tracer  trace.Tracer
	metrics *orchestratorMetrics
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(
	cfg OrchestratorConfig,
	gateway protocolapp.Gateway,
	submitter chainapp.TransactionSubmitter,
	approvals *ApprovalGate,
	tokens *TokenResolver,
	log logger.LoggerInterface,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	if cfg.ShieldContractName == "" {
		cfg.ShieldContractName = "Shield"
	}

	o := &Orchestrator{
		config:    cfg,
		gateway:   gateway,
		submitter: submitter,
		approvals: approvals,
		tokens:    tokens,
		history:   &domain.WithdrawalHistory{},
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return o, nil
}

// initMetrics initializes OTEL metric instruments.
func (o *Orchestrator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &orchestratorMetrics{}

	o.metrics.operations, err = meter.Int64Counter(
		"nightfall_operations_total",
		metric.WithDescription("Operations by kind and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	o.metrics.duration, err = meter.Float64Histogram(
		"nightfall_operation_duration_seconds",
		metric.WithDescription("Operation duration from build to correlation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	return nil
}

// WithdrawalHistory returns the L2 hashes of withdrawals made in this
// session, oldest first.
func (o *Orchestrator) WithdrawalHistory() []string {
	return o.history.All()
}

// Deposit moves value of token from the account into L2. It is always
// on-chain and sends an approval first when the shield contract cannot yet
// move the tokens.
func (o *Orchestrator) Deposit(ctx context.Context, creds Credentials, in DepositInput) (*domain.ReceiptPair, error) {
	op := domain.NewOperation(domain.OpDeposit, false)
	ctx, span, done := o.begin(ctx, op)
	defer span.End()

	pair, err := o.deposit(ctx, op, creds, in)
	return done(pair, err)
}

func (o *Orchestrator) deposit(ctx context.Context, op *domain.Operation, creds Credentials, in DepositInput) (*domain.ReceiptPair, error) {
	if err := o.advance(ctx, op, domain.StateBuildingIntent); err != nil {
		return nil, err
	}
	if err := requireCredentials(creds, true); err != nil {
		return nil, err
	}

	if err := requireValue(in.Value, "deposit value"); err != nil {
		return nil, err
	}
	fee, err := parseFee(in.Fee)
	if err != nil {
		return nil, err
	}
	token, err := o.tokens.Resolve(ctx, in.Token)
	if err != nil {
		return nil, err
	}
	value, err := baseUnits(token, in.Value)
	if err != nil {
		return nil, err
	}
	var amount *big.Int
	if token.Standard == domain.ERC20 {
		if amount, err = parseBaseUnits(value); err != nil {
			return nil, err
		}
	}

	intent, err := o.gateway.BuildDeposit(ctx, protocoldomain.DepositRequest{
		ErcAddress: token.Address,
		TokenType:  string(token.Standard),
		Value:      value,
		TokenID:    tokenIDOrDefault(in.TokenID),
		Fee:        fee.String(),
		Keys:       creds.Keys,
	})
	if err != nil {
		return nil, err
	}
	data, err := intent.CallData()
	if err != nil {
		return nil, err
	}
	shield, err := o.gateway.ResolveContractAddress(ctx, o.config.ShieldContractName)
	if err != nil {
		return nil, err
	}

	if err := o.advance(ctx, op, domain.StateCheckingApproval); err != nil {
		return nil, err
	}
	approval, err := o.approvals.EnsureApproved(ctx, token, creds.Account, shield, amount)
	if err != nil {
		return nil, err
	}

	if err := o.advance(ctx, op, domain.StateSubmittingL1); err != nil {
		return nil, err
	}
	l1, err := o.submitter.Submit(ctx, creds.Account, chaindomain.CallRequest{
		To:    shield,
		Data:  data,
		Value: fee,
	})
	if err != nil {
		return nil, err
	}

	pair, err := o.correlate(ctx, op, intent, l1)
	if err != nil {
		return nil, err
	}
	pair.Approval = approval.Receipt
	return pair, nil
}

// Transfer sends value to L2 recipients. Off-chain transfers go straight
// to a proposer and never touch L1.
func (o *Orchestrator) Transfer(ctx context.Context, creds Credentials, in TransferInput) (*domain.ReceiptPair, error) {
	op := domain.NewOperation(domain.OpTransfer, in.OffChain)
	ctx, span, done := o.begin(ctx, op)
	defer span.End()

	pair, err := o.transfer(ctx, op, creds, in)
	return done(pair, err)
}

func (o *Orchestrator) transfer(ctx context.Context, op *domain.Operation, creds Credentials, in TransferInput) (*domain.ReceiptPair, error) {
	if err := o.advance(ctx, op, domain.StateBuildingIntent); err != nil {
		return nil, err
	}
	if err := requireCredentials(creds, !in.OffChain); err != nil {
		return nil, err
	}
	if len(in.Recipients) == 0 {
		return nil, apperror.Validation(apperror.CodeRequiredField, "at least one recipient")
	}
	for i, r := range in.Recipients {
		if r.CompressedZkpPublicKey == "" {
			return nil, apperror.Validation(apperror.CodeRequiredField, fmt.Sprintf("recipient %d compressed zkp public key", i))
		}
		if err := requireValue(r.Value, fmt.Sprintf("recipient %d value", i)); err != nil {
			return nil, err
		}
	}

	fee, err := parseFee(in.Fee)
	if err != nil {
		return nil, err
	}
	token, err := o.tokens.Resolve(ctx, in.Token)
	if err != nil {
		return nil, err
	}

	recipients := protocoldomain.RecipientData{
		RecipientCompressedZkpPublicKeys: make([]string, 0, len(in.Recipients)),
		Values:                           make([]string, 0, len(in.Recipients)),
	}
	for _, r := range in.Recipients {
		value, err := baseUnits(token, r.Value)
		if err != nil {
			return nil, err
		}
		recipients.RecipientCompressedZkpPublicKeys = append(recipients.RecipientCompressedZkpPublicKeys, r.CompressedZkpPublicKey)
		recipients.Values = append(recipients.Values, value)
	}

	intent, err := o.gateway.BuildTransfer(ctx, protocoldomain.TransferRequest{
		ErcAddress: token.Address,
		TokenID:    tokenIDOrDefault(in.TokenID),
		Recipients: recipients,
		Fee:        fee.String(),
		OffChain:   in.OffChain,
		Keys:       creds.Keys,
	})
	if err != nil {
		return nil, err
	}

	l1, err := o.submitIntent(ctx, op, creds.Account, intent, fee)
	if err != nil {
		return nil, err
	}
	return o.correlate(ctx, op, intent, l1)
}

// Withdraw moves value from L2 back to an L1 address. On success the L2
// hash is appended to the session withdrawal history.
func (o *Orchestrator) Withdraw(ctx context.Context, creds Credentials, in WithdrawInput) (*domain.ReceiptPair, error) {
	op := domain.NewOperation(domain.OpWithdraw, in.OffChain)
	ctx, span, done := o.begin(ctx, op)
	defer span.End()

	pair, err := o.withdraw(ctx, op, creds, in)
	return done(pair, err)
}

func (o *Orchestrator) withdraw(ctx context.Context, op *domain.Operation, creds Credentials, in WithdrawInput) (*domain.ReceiptPair, error) {
	if err := o.advance(ctx, op, domain.StateBuildingIntent); err != nil {
		return nil, err
	}
	if err := requireCredentials(creds, !in.OffChain); err != nil {
		return nil, err
	}

	if err := requireValue(in.Value, "withdrawal value"); err != nil {
		return nil, err
	}
	fee, err := parseFee(in.Fee)
	if err != nil {
		return nil, err
	}
	token, err := o.tokens.Resolve(ctx, in.Token)
	if err != nil {
		return nil, err
	}
	value, err := baseUnits(token, in.Value)
	if err != nil {
		return nil, err
	}

	recipient := in.Recipient
	if recipient == (common.Address{}) {
		recipient = creds.Account.Address()
	}
	if recipient == (common.Address{}) {
		return nil, apperror.Validation(apperror.CodeInvalidAddress, "withdrawal recipient")
	}

	intent, err := o.gateway.BuildWithdrawal(ctx, protocoldomain.WithdrawalRequest{
		ErcAddress:       token.Address,
		TokenType:        string(token.Standard),
		Value:            value,
		TokenID:          tokenIDOrDefault(in.TokenID),
		Fee:              fee.String(),
		RecipientAddress: recipient,
		OffChain:         in.OffChain,
		Keys:             creds.Keys,
	})
	if err != nil {
		return nil, err
	}

	l1, err := o.submitIntent(ctx, op, creds.Account, intent, fee)
	if err != nil {
		return nil, err
	}
	pair, err := o.correlate(ctx, op, intent, l1)
	if err != nil {
		return nil, err
	}

	o.history.Append(pair.L2Hash())
	return pair, nil
}

// FinaliseWithdrawal completes a withdrawal on L1 once its challenge period
// has passed. An empty l2TxHash selects the most recent withdrawal of this
// session.
func (o *Orchestrator) FinaliseWithdrawal(ctx context.Context, creds Credentials, l2TxHash string) (*domain.ReceiptPair, error) {
	op := domain.NewOperation(domain.OpFinaliseWithdrawal, false)
	ctx, span, done := o.begin(ctx, op)
	defer span.End()

	pair, err := o.finalise(ctx, op, creds, l2TxHash)
	return done(pair, err)
}

func (o *Orchestrator) finalise(ctx context.Context, op *domain.Operation, creds Credentials, l2TxHash string) (*domain.ReceiptPair, error) {
	if err := o.advance(ctx, op, domain.StateBuildingIntent); err != nil {
		return nil, err
	}
	if !creds.Account.Valid() {
		return nil, apperror.State(apperror.CodeSignerUnavailable, "finalise withdrawal")
	}

	hash := strings.TrimSpace(l2TxHash)
	if hash == "" {
		latest, ok := o.history.Latest()
		if !ok {
			return nil, apperror.State(apperror.CodeNoWithdrawalHash, "no withdrawal recorded in this session")
		}
		hash = latest
		o.logger.Info(ctx, "finalising most recent withdrawal", "l2_tx", hash)
	}

	intent, err := o.gateway.BuildFinaliseWithdrawal(ctx, hash)
	if err != nil {
		return nil, err
	}

	l1, err := o.submitIntent(ctx, op, creds.Account, intent, new(big.Int))
	if err != nil {
		return nil, err
	}
	pair, err := o.correlate(ctx, op, intent, l1)
	if err != nil {
		return nil, err
	}
	if pair.L2 == nil {
		pair.L2 = &protocoldomain.L2Transaction{TransactionHash: hash}
	}
	return pair, nil
}

// submitIntent sends the intent's call data to the shield contract, or
// skips L1 for off-chain operations.
func (o *Orchestrator) submitIntent(ctx context.Context, op *domain.Operation, account chainapp.Account, intent *protocoldomain.UnsignedTransactionIntent, fee *big.Int) (*chaindomain.Receipt, error) {
	if op.OffChain {
		return nil, nil
	}

	data, err := intent.CallData()
	if err != nil {
		return nil, err
	}
	shield, err := o.gateway.ResolveContractAddress(ctx, o.config.ShieldContractName)
	if err != nil {
		return nil, err
	}

	if err := o.advance(ctx, op, domain.StateSubmittingL1); err != nil {
		return nil, err
	}
	return o.submitter.Submit(ctx, account, chaindomain.CallRequest{
		To:    shield,
		Data:  data,
		Value: fee,
	})
}

// correlate packages the L1 receipt with the L2 transaction.
func (o *Orchestrator) correlate(ctx context.Context, op *domain.Operation, intent *protocoldomain.UnsignedTransactionIntent, l1 *chaindomain.Receipt) (*domain.ReceiptPair, error) {
	if err := o.advance(ctx, op, domain.StateCorrelating); err != nil {
		return nil, err
	}

	pair := &domain.ReceiptPair{
		OperationID: op.ID,
		L1:          l1,
		L2:          intent.Transaction,
	}
	if op.Kind != domain.OpFinaliseWithdrawal && pair.L2Hash() == "" {
		return nil, apperror.New(apperror.CodeMalformedResponse,
			apperror.WithContext(string(intent.Endpoint)+": missing transaction hash"))
	}

	if err := o.advance(ctx, op, domain.StateDone); err != nil {
		return nil, err
	}
	return pair, nil
}

// begin opens the operation span and returns the finaliser that records
// failure, metrics and the outcome log line.
func (o *Orchestrator) begin(ctx context.Context, op *domain.Operation) (context.Context, trace.Span, func(*domain.ReceiptPair, error) (*domain.ReceiptPair, error)) {
	ctx, span := o.tracer.Start(ctx, "transfer."+string(op.Kind),
		trace.WithAttributes(
			attribute.String("operation_id", op.ID),
			attribute.Bool("off_chain", op.OffChain),
		),
	)
	start := time.Now()

	done := func(pair *domain.ReceiptPair, err error) (*domain.ReceiptPair, error) {
		result := "done"
		if err != nil {
			result = "failed"
			if !op.State().Terminal() {
				_ = o.advanceWith(ctx, op, domain.StateFailed, err)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, string(op.Kind)+" failed")
			o.logger.Warn(ctx, "operation failed",
				"operation", op.Kind, "id", op.ID, "kind", apperror.KindOf(err), "error", err)
		} else {
			span.SetAttributes(attribute.String("l2_tx", pair.L2Hash()))
			if pair.L1 != nil {
				span.SetAttributes(attribute.String("l1_tx", pair.L1.TxHash.Hex()))
			}
			span.SetStatus(codes.Ok, "done")
			o.logger.Info(ctx, "operation done",
				"operation", op.Kind, "id", op.ID, "l2_tx", pair.L2Hash(), "on_chain", pair.OnChain())
		}

		attrs := metric.WithAttributes(
			attribute.String("operation", string(op.Kind)),
			attribute.String("result", result),
		)
		o.metrics.operations.Add(ctx, 1, attrs)
		o.metrics.duration.Record(ctx, time.Since(start).Seconds(), attrs)

		if err != nil {
			return nil, err
		}
		return pair, nil
	}

	return ctx, span, done
}

func (o *Orchestrator) advance(ctx context.Context, op *domain.Operation, next domain.State) error {
	return o.advanceWith(ctx, op, next, nil)
}

func (o *Orchestrator) advanceWith(ctx context.Context, op *domain.Operation, next domain.State, cause error) error {
	t, err := op.Advance(next, cause)
	if err != nil {
		return apperror.New(apperror.CodeInvalidState, apperror.WithCause(err), apperror.WithContext(op.ID))
	}

	trace.SpanFromContext(ctx).AddEvent("transition", trace.WithAttributes(
		attribute.String("from", string(t.From)),
		attribute.String("to", string(t.To)),
	))
	o.logger.Debug(ctx, "operation transition", "operation", op.Kind, "id", op.ID, "from", t.From, "to", t.To)

	if o.observer != nil {
		o.observer.OnTransition(ctx, op, t)
	}
	return nil
}

func requireCredentials(creds Credentials, onChain bool) error {
	if !creds.Keys.Complete() {
		return apperror.State(apperror.CodeInvalidState, "zkp keys not derived")
	}
	if onChain && !creds.Account.Valid() {
		return apperror.State(apperror.CodeSignerUnavailable, "on-chain operation")
	}
	return nil
}

func tokenIDOrDefault(id string) string {
	if id == "" {
		return domain.DefaultTokenID
	}
	return id
}

// requireValue rejects an empty amount before anything is resolved or built.
func requireValue(v, field string) error {
	if strings.TrimSpace(v) == "" {
		return apperror.Validation(apperror.CodeRequiredField, field)
	}
	return nil
}

// baseUnits converts a display amount for token. ERC20 amounts take the
// strict conversion; NFT amounts are counts and keep the legacy shim.
func baseUnits(token domain.Token, v string) (string, error) {
	if token.Standard == domain.ERC20 {
		wei, err := units.StringValueToWei(v, token.Decimals)
		if err != nil {
			return "", err
		}
		return wei.String(), nil
	}
	return units.ToBaseUnit(v, token.Decimals)
}

// parseFee reads a wei amount, defaulting to zero.
func parseFee(fee string) (*big.Int, error) {
	if fee == "" {
		return new(big.Int), nil
	}
	return parseBaseUnits(fee)
}

func parseBaseUnits(v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() < 0 {
		return nil, apperror.Validation(apperror.CodeInvalidValue, fmt.Sprintf("%q is not a non-negative integer", v))
	}
	return n, nil
}
