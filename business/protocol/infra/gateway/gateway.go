// Package gateway implements the protocol service HTTP gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/nightfall-sdk/business/protocol/app"
	"github.com/fd1az/nightfall-sdk/business/protocol/domain"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
	"github.com/fd1az/nightfall-sdk/internal/cache"
	"github.com/fd1az/nightfall-sdk/internal/circuitbreaker"
	"github.com/fd1az/nightfall-sdk/internal/httpclient"
	"github.com/fd1az/nightfall-sdk/internal/logger"
	"github.com/fd1az/nightfall-sdk/internal/ratelimit"
)

const tracerName = "github.com/fd1az/nightfall-sdk/business/protocol/infra/gateway"

// Config holds configuration for the gateway.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	AddressCacheTTL   time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		Timeout:           2 * time.Minute,
		RequestsPerMinute: 600,
		AddressCacheTTL:   10 * time.Minute,
	}
}

// Gateway talks to the protocol service. Every error it returns is an
// *apperror.AppError.
type Gateway struct {
	client    httpclient.Client
	config    Config
	logger    logger.LoggerInterface
	tracer    trace.Tracer
	cb        *circuitbreaker.CircuitBreaker[*httpclient.Response]
	addresses *cache.Cache[string, common.Address]
}

var _ app.Gateway = (*Gateway)(nil)

// New creates a gateway. The error decorator, default response handler and
// rate limiter are installed once on the underlying client.
func New(cfg Config, log logger.LoggerInterface) (*Gateway, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("protocol service url"))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 600
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("protocol-service"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
		httpclient.WithDefaultResponseErrorHandler(responseErrorHandler),
		httpclient.WithErrorDecorator(decorateError),
		httpclient.WithRateLimiter(ratelimit.New(rpm)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	g := &Gateway{
		client:    client,
		config:    cfg,
		logger:    log,
		tracer:    tracer,
		addresses: cache.New[string, common.Address](time.Minute),
	}

	cbCfg := circuitbreaker.DefaultConfig("protocol-service")
	cbCfg.IsSuccessful = isCallerFault
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	g.cb = circuitbreaker.New[*httpclient.Response](cbCfg)

	return g, nil
}

// Close stops the address cache janitor.
func (g *Gateway) Close() {
	g.addresses.Close()
}

// HealthCheck returns true iff the service answers 200. Other statuses are
// reported as false; only transport failures are errors.
func (g *Gateway) HealthCheck(ctx context.Context) (bool, error) {
	ctx, span := g.tracer.Start(ctx, "protocol.healthcheck")
	defer span.End()

	resp, err := g.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "healthcheck")),
		httpclient.WithResponseErrorHandler(func(int, []byte) error { return nil }),
	).
		SetHeader("X-Request-Id", uuid.NewString()).
		Get(ctx, healthcheckEndpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unreachable")
		return false, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode == http.StatusOK, nil
}

// ResolveContractAddress looks up a deployed contract by name. Results are
// cached for AddressCacheTTL.
func (g *Gateway) ResolveContractAddress(ctx context.Context, name string) (common.Address, error) {
	if name == "" {
		return common.Address{}, apperror.Validation(apperror.CodeRequiredField, "contract name")
	}
	if addr, ok := g.addresses.Get(ctx, name); ok {
		return addr, nil
	}

	ctx, span := g.tracer.Start(ctx, "protocol.contract_address",
		trace.WithAttributes(attribute.String("contract", name)),
	)
	defer span.End()

	var result contractAddressResponse
	if err := g.call(ctx, http.MethodGet, contractAddressEndpoint+url.PathEscape(name), "contract-address", nil, &result); err != nil {
		span.RecordError(err)
		return common.Address{}, err
	}

	if !common.IsHexAddress(result.Address) {
		err := apperror.New(apperror.CodeMalformedResponse,
			apperror.WithContext(fmt.Sprintf("contract %s: invalid address %q", name, result.Address)))
		span.RecordError(err)
		return common.Address{}, err
	}

	addr := common.HexToAddress(result.Address)
	g.addresses.Set(ctx, name, addr, g.config.AddressCacheTTL)
	span.SetAttributes(attribute.String("address", addr.Hex()))

	return addr, nil
}

// DeriveKeys asks the service for the key set of mnemonic at addressIndex.
func (g *Gateway) DeriveKeys(ctx context.Context, mnemonic string, addressIndex int) (*domain.ZkpKeySet, error) {
	if mnemonic == "" {
		return nil, apperror.Validation(apperror.CodeRequiredField, "mnemonic")
	}
	if addressIndex < 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "address index must be >= 0")
	}

	ctx, span := g.tracer.Start(ctx, "protocol.generate_keys")
	defer span.End()

	var keys domain.ZkpKeySet
	body := generateKeysRequest{Mnemonic: mnemonic, AddressIndex: addressIndex}
	if err := g.call(ctx, http.MethodPost, generateKeysEndpoint, "generate-zkp-keys", body, &keys); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !keys.Complete() {
		err := apperror.New(apperror.CodeMalformedResponse, apperror.WithContext("incomplete zkp key set"))
		span.RecordError(err)
		return nil, err
	}

	return &keys, nil
}

// SubscribeIncomingViewingKeys registers the keys so the service decrypts
// incoming transfers for them.
func (g *Gateway) SubscribeIncomingViewingKeys(ctx context.Context, keys *domain.ZkpKeySet) error {
	if !keys.Complete() {
		return apperror.Validation(apperror.CodeRequiredField, "zkp keys")
	}

	ctx, span := g.tracer.Start(ctx, "protocol.incoming_viewing_key")
	defer span.End()

	body := incomingViewingKeyRequest{
		ZkpPrivateKeys: []string{keys.ZkpPrivateKey},
		NullifierKeys:  []string{keys.NullifierKey},
	}
	if err := g.call(ctx, http.MethodPost, incomingViewingKeyEndpoint, "incoming-viewing-key", body, nil); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// BuildDeposit asks the service to build a deposit intent.
func (g *Gateway) BuildDeposit(ctx context.Context, req domain.DepositRequest) (*domain.UnsignedTransactionIntent, error) {
	if !req.Keys.Complete() {
		return nil, apperror.Validation(apperror.CodeRequiredField, "zkp keys")
	}
	body := depositRequest{
		ErcAddress:             req.ErcAddress.Hex(),
		TokenType:              req.TokenType,
		Value:                  req.Value,
		TokenID:                req.TokenID,
		CompressedZkpPublicKey: req.Keys.CompressedZkpPublicKey,
		NullifierKey:           req.Keys.NullifierKey,
		Fee:                    req.Fee,
	}
	return g.buildIntent(ctx, domain.EndpointDeposit, depositEndpoint, body, true)
}

// BuildTransfer asks the service to build a transfer intent.
func (g *Gateway) BuildTransfer(ctx context.Context, req domain.TransferRequest) (*domain.UnsignedTransactionIntent, error) {
	if !req.Keys.Complete() {
		return nil, apperror.Validation(apperror.CodeRequiredField, "zkp keys")
	}
	body := transferRequest{
		OffChain:      req.OffChain,
		ErcAddress:    req.ErcAddress.Hex(),
		TokenID:       req.TokenID,
		RootKey:       req.Keys.RootKey,
		RecipientData: req.Recipients,
		Fee:           req.Fee,
	}
	return g.buildIntent(ctx, domain.EndpointTransfer, transferEndpoint, body, !req.OffChain)
}

// BuildWithdrawal asks the service to build a withdrawal intent.
func (g *Gateway) BuildWithdrawal(ctx context.Context, req domain.WithdrawalRequest) (*domain.UnsignedTransactionIntent, error) {
	if !req.Keys.Complete() {
		return nil, apperror.Validation(apperror.CodeRequiredField, "zkp keys")
	}
	body := withdrawRequest{
		OffChain:         req.OffChain,
		ErcAddress:       req.ErcAddress.Hex(),
		TokenType:        req.TokenType,
		TokenID:          req.TokenID,
		Value:            req.Value,
		RecipientAddress: req.RecipientAddress.Hex(),
		RootKey:          req.Keys.RootKey,
		Fee:              req.Fee,
	}
	return g.buildIntent(ctx, domain.EndpointWithdraw, withdrawEndpoint, body, !req.OffChain)
}

// BuildFinaliseWithdrawal asks the service to build the L1 call that
// releases a withdrawal once its challenge period has passed.
func (g *Gateway) BuildFinaliseWithdrawal(ctx context.Context, l2TxHash string) (*domain.UnsignedTransactionIntent, error) {
	if l2TxHash == "" {
		return nil, apperror.Validation(apperror.CodeRequiredField, "withdrawal transaction hash")
	}
	body := finaliseRequest{TransactionHash: l2TxHash}
	return g.buildIntent(ctx, domain.EndpointFinaliseWithdrawal, finaliseEndpoint, body, true)
}

// buildIntent posts body and decodes the intent. When onChain is set the
// intent must carry call data.
func (g *Gateway) buildIntent(ctx context.Context, endpoint domain.Endpoint, path string, body any, onChain bool) (*domain.UnsignedTransactionIntent, error) {
	ctx, span := g.tracer.Start(ctx, "protocol.build_"+strings.ReplaceAll(string(endpoint), "-", "_"),
		trace.WithAttributes(attribute.Bool("on_chain", onChain)),
	)
	defer span.End()

	var intent domain.UnsignedTransactionIntent
	if err := g.call(ctx, http.MethodPost, path, string(endpoint), body, &intent); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		return nil, err
	}
	intent.Endpoint = endpoint

	if onChain && !intent.HasCallData() {
		err := apperror.New(apperror.CodeMalformedResponse,
			apperror.WithContext(string(endpoint)+": response has no txDataToSign"))
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("l2_tx_hash", intent.L2Hash()))
	g.logger.Debug(ctx, "intent built", "endpoint", endpoint, "l2_tx_hash", intent.L2Hash())

	return &intent, nil
}

// FetchCommitmentsByKeys returns every commitment held under keys.
func (g *Gateway) FetchCommitmentsByKeys(ctx context.Context, keys []string) ([]domain.Commitment, error) {
	if len(keys) == 0 {
		return nil, apperror.Validation(apperror.CodeEmptyKeyList, "fetch commitments")
	}

	ctx, span := g.tracer.Start(ctx, "protocol.commitments_by_keys",
		trace.WithAttributes(attribute.Int("keys", len(keys))),
	)
	defer span.End()

	var result commitmentsByKeysResponse
	if err := g.call(ctx, http.MethodPost, commitmentsByKeysEndpoint, "commitments-by-keys", keys, &result); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("commitments", len(result.Commitments)))
	if result.Commitments == nil {
		return []domain.Commitment{}, nil
	}
	return result.Commitments, nil
}

// SaveCommitments stores commitments with the service.
func (g *Gateway) SaveCommitments(ctx context.Context, commitments []domain.Commitment) error {
	ctx, span := g.tracer.Start(ctx, "protocol.save_commitments",
		trace.WithAttributes(attribute.Int("commitments", len(commitments))),
	)
	defer span.End()

	if err := g.call(ctx, http.MethodPost, saveCommitmentsEndpoint, "save-commitments", commitments, nil); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// FetchBalances returns settled balances for compressedKey.
func (g *Gateway) FetchBalances(ctx context.Context, compressedKey string) (domain.Balances, error) {
	return g.fetchBalances(ctx, balanceEndpoint, "balance", compressedKey)
}

// FetchPendingDeposits returns deposits not yet in an L2 block.
func (g *Gateway) FetchPendingDeposits(ctx context.Context, compressedKey string) (domain.Balances, error) {
	return g.fetchBalances(ctx, pendingDepositEndpoint, "pending-deposit", compressedKey)
}

// FetchPendingSpent returns commitments pending nullification.
func (g *Gateway) FetchPendingSpent(ctx context.Context, compressedKey string) (domain.Balances, error) {
	return g.fetchBalances(ctx, pendingSpentEndpoint, "pending-spent", compressedKey)
}

// fetchBalances returns an empty map when the service knows nothing about
// compressedKey.
func (g *Gateway) fetchBalances(ctx context.Context, path, label, compressedKey string) (domain.Balances, error) {
	if compressedKey == "" {
		return nil, apperror.Validation(apperror.CodeRequiredField, "compressedZkpPublicKey")
	}

	ctx, span := g.tracer.Start(ctx, "protocol."+strings.ReplaceAll(label, "-", "_"))
	defer span.End()

	var result balanceResponse
	err := g.call(ctx, http.MethodGet, path, label, nil, &result,
		func(r httpclient.Request) { r.SetQueryParam("compressedZkpPublicKey", compressedKey) })
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	for key, balances := range result.Balance {
		if strings.EqualFold(key, compressedKey) && balances != nil {
			return balances, nil
		}
	}
	return domain.Balances{}, nil
}

// call executes one request through the circuit breaker. A non-nil result
// must be decoded from the response body.
func (g *Gateway) call(ctx context.Context, method, path, label string, body, result any, customize ...func(httpclient.Request)) error {
	resp, err := g.cb.Execute(func() (*httpclient.Response, error) {
		req := g.client.NewRequestWithOptions(
			httpclient.WithLabels(httpclient.NewLabel("endpoint", label)),
		).SetHeader("X-Request-Id", uuid.NewString())

		if body != nil {
			req = req.SetBody(body)
		}
		if result != nil {
			req = req.SetResult(result)
		}
		for _, fn := range customize {
			fn(req)
		}

		switch method {
		case http.MethodPost:
			return req.Post(ctx, path)
		default:
			return req.Get(ctx, path)
		}
	})
	if err != nil {
		if !apperror.IsAppError(err) {
			err = apperror.New(apperror.CodeProtocolServiceError, apperror.WithCause(err), apperror.WithContext(label))
		}
		return err
	}

	if result != nil && resp.Result() == nil {
		return apperror.New(apperror.CodeMalformedResponse,
			apperror.WithStatusCode(resp.StatusCode),
			apperror.WithContext(fmt.Sprintf("%s: cannot decode %q", label, truncate(string(resp.Body()), 200))))
	}

	return nil
}

// responseErrorHandler maps service responses onto the error taxonomy. The
// no-suitable-commitments rejection is recognised whatever the status.
func responseErrorHandler(statusCode int, body []byte) error {
	e := parseErrorBody(body)

	if strings.Contains(e.Error, noSuitableCommitments) || strings.Contains(e.Message, noSuitableCommitments) {
		return apperror.New(apperror.CodeNoSuitableCommitments,
			apperror.WithStatusCode(statusCode),
			apperror.WithContext(noSuitableCommitments))
	}

	if statusCode < 400 {
		if e.Error != "" {
			return apperror.New(apperror.CodeProtocolServiceError,
				apperror.WithStatusCode(http.StatusUnprocessableEntity),
				apperror.WithContext(e.Error))
		}
		return nil
	}

	code := apperror.CodeProtocolServiceError
	if statusCode == http.StatusServiceUnavailable || statusCode == http.StatusBadGateway || statusCode == http.StatusGatewayTimeout {
		code = apperror.CodeProtocolServiceUnavailable
	}

	msg := e.Error
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		msg = truncate(string(body), 200)
	}

	return apperror.New(code,
		apperror.WithStatusCode(statusCode),
		apperror.WithContext(fmt.Sprintf("HTTP %d: %s", statusCode, msg)))
}

// decorateError gives transport and encoding failures the same shape as
// service errors.
func decorateError(err error, resp *httpclient.Response) error {
	if apperror.IsAppError(err) {
		return err
	}
	if resp == nil {
		code := apperror.CodeProtocolServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			code = apperror.CodeServiceTimeout
		}
		return apperror.New(code, apperror.WithCause(err))
	}
	return apperror.New(apperror.CodeProtocolServiceError,
		apperror.WithCause(err),
		apperror.WithStatusCode(resp.StatusCode))
}

// isCallerFault keeps business rejections and 4xx answers from tripping the
// breaker.
func isCallerFault(err error) bool {
	if err == nil || circuitbreaker.IsBusinessError(err) {
		return true
	}
	status := apperror.GetStatusCode(err)
	return apperror.GetCode(err) == apperror.CodeProtocolServiceError && status >= 400 && status < 500
}

// parseErrorBody extracts {error, message} from a JSON object body.
func parseErrorBody(body []byte) errorResponse {
	var e errorResponse
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return e
	}
	_ = json.Unmarshal(body, &e)
	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
