package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/nightfall-sdk/business/chain/app"
	"github.com/fd1az/nightfall-sdk/business/chain/domain"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
	"github.com/fd1az/nightfall-sdk/internal/circuitbreaker"
	"github.com/fd1az/nightfall-sdk/internal/logger"
)

// GasEstimatorConfig holds the safety factors applied to node estimates.
type GasEstimatorConfig struct {
	LimitFactor decimal.Decimal // multiplier for eth_estimateGas
	PriceFactor decimal.Decimal // multiplier for eth_gasPrice
	MaxGasPrice *big.Int        // optional cap applied after the factor
}

// DefaultGasEstimatorConfig doubles both the limit and the price.
func DefaultGasEstimatorConfig() GasEstimatorConfig {
	return GasEstimatorConfig{
		LimitFactor: decimal.NewFromInt(2),
		PriceFactor: decimal.NewFromInt(2),
	}
}

// gasBackend is the node surface the estimator needs.
type gasBackend interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// gasEstimatorMetrics holds OTEL metric instruments.
type gasEstimatorMetrics struct {
	estimates      metric.Int64Counter
	estimateErrors metric.Int64Counter
	gasPriceGwei   metric.Float64Gauge
	gasPriceCapped metric.Int64Counter
}

// GasEstimator pads node estimates with a safety factor and rounds up.
// There is no fallback value: if the node cannot estimate, the caller
// gets the error.
type GasEstimator struct {
	config  GasEstimatorConfig
	backend gasBackend
	logger  logger.LoggerInterface

	limitCB *circuitbreaker.CircuitBreaker[uint64]
	priceCB *circuitbreaker.CircuitBreaker[*big.Int]

	tracer  trace.Tracer
	metrics *gasEstimatorMetrics
}

var _ app.GasEstimator = (*GasEstimator)(nil)

// NewGasEstimator validates the factors and creates an estimator.
func NewGasEstimator(cfg GasEstimatorConfig, backend gasBackend, log logger.LoggerInterface) (*GasEstimator, error) {
	one := decimal.NewFromInt(1)
	if cfg.LimitFactor.LessThan(one) || cfg.PriceFactor.LessThan(one) {
		return nil, apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("gas factors must be >= 1, got limit=%s price=%s", cfg.LimitFactor, cfg.PriceFactor))
	}

	g := &GasEstimator{
		config:  cfg,
		backend: backend,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	g.initCircuitBreakers()

	return g, nil
}

// initMetrics initializes OTEL metric instruments.
func (g *GasEstimator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gasEstimatorMetrics{}

	g.metrics.estimates, err = meter.Int64Counter(
		"gas_estimate_total",
		metric.WithDescription("Total gas estimation calls"),
		metric.WithUnit("{estimate}"),
	)
	if err != nil {
		return err
	}

	g.metrics.estimateErrors, err = meter.Int64Counter(
		"gas_estimate_errors_total",
		metric.WithDescription("Gas estimation calls that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	g.metrics.gasPriceGwei, err = meter.Float64Gauge(
		"gas_price_gwei",
		metric.WithDescription("Padded gas price in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	g.metrics.gasPriceCapped, err = meter.Int64Counter(
		"gas_price_capped_total",
		metric.WithDescription("Times the padded gas price hit the configured cap"),
		metric.WithUnit("{cap}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// initCircuitBreakers initializes breakers for both node calls. Reverts
// describe the transaction, not the node, so they do not count.
func (g *GasEstimator) initCircuitBreakers() {
	onChange := func(name string, from, to gobreaker.State) {
		g.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	limitCfg := circuitbreaker.DefaultConfig("gas-limit")
	limitCfg.IsSuccessful = isCallerFault
	limitCfg.OnStateChange = onChange
	g.limitCB = circuitbreaker.New[uint64](limitCfg)

	priceCfg := circuitbreaker.DefaultConfig("gas-price")
	priceCfg.OnStateChange = onChange
	g.priceCB = circuitbreaker.New[*big.Int](priceCfg)
}

// EstimateGasLimit returns ceil(estimate * LimitFactor).
func (g *GasEstimator) EstimateGasLimit(ctx context.Context, call domain.CallRequest) (uint64, error) {
	ctx, span := g.tracer.Start(ctx, "gas.estimate_limit",
		trace.WithAttributes(
			attribute.String("to", call.To.Hex()),
			attribute.Int("data_len", len(call.Data)),
		),
	)
	defer span.End()

	g.metrics.estimates.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "limit")))

	to := call.To
	msg := ethereum.CallMsg{
		From:  call.From,
		To:    &to,
		Data:  call.Data,
		Value: call.ValueOrZero(),
	}

	raw, err := g.limitCB.Execute(func() (uint64, error) {
		return g.backend.EstimateGas(ctx, msg)
	})
	if err != nil {
		g.metrics.estimateErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "limit")))
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("estimate gas for %s", call.To.Hex())))
	}

	padded := ApplyFactor(new(big.Int).SetUint64(raw), g.config.LimitFactor)
	if !padded.IsUint64() {
		err := apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithContext(fmt.Sprintf("padded gas limit %s overflows uint64", padded)))
		span.RecordError(err)
		return 0, err
	}

	span.SetAttributes(
		attribute.Int64("gas_raw", int64(raw)),
		attribute.Int64("gas_limit", int64(padded.Uint64())),
	)
	span.SetStatus(codes.Ok, "estimated")

	return padded.Uint64(), nil
}

// EstimateGasPrice returns ceil(price * PriceFactor), capped by MaxGasPrice.
func (g *GasEstimator) EstimateGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.estimate_price")
	defer span.End()

	g.metrics.estimates.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "price")))

	wei, err := g.priceCB.Execute(func() (*big.Int, error) {
		return g.backend.SuggestGasPrice(ctx)
	})
	if err != nil {
		g.metrics.estimateErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "price")))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get gas price"))
	}

	padded := ApplyFactor(wei, g.config.PriceFactor)

	if g.config.MaxGasPrice != nil && padded.Cmp(g.config.MaxGasPrice) > 0 {
		span.AddEvent("gas_price_capped",
			trace.WithAttributes(attribute.String("wei", padded.String())))
		g.metrics.gasPriceCapped.Add(ctx, 1)
		g.logger.Warn(ctx, "gas price exceeds cap", "wei", padded.String(), "cap", g.config.MaxGasPrice.String())
		padded = new(big.Int).Set(g.config.MaxGasPrice)
	}

	price := domain.NewGasPrice(padded)
	g.metrics.gasPriceGwei.Record(ctx, price.Gwei)

	span.SetAttributes(attribute.Float64("gwei", price.Gwei))
	span.SetStatus(codes.Ok, "fetched")

	return price, nil
}

// Estimate returns both figures for call.
func (g *GasEstimator) Estimate(ctx context.Context, call domain.CallRequest) (*domain.GasEstimate, error) {
	limit, err := g.EstimateGasLimit(ctx, call)
	if err != nil {
		return nil, err
	}
	price, err := g.EstimateGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return domain.NewGasEstimate(limit, price), nil
}

// ApplyFactor returns ceil(v * factor).
func ApplyFactor(v *big.Int, factor decimal.Decimal) *big.Int {
	return decimal.NewFromBigInt(v, 0).Mul(factor).Ceil().BigInt()
}

// isCallerFault reports node errors caused by the transaction itself.
func isCallerFault(err error) bool {
	if err == nil {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "insufficient funds") ||
		strings.Contains(msg, "gas required exceeds allowance")
}
