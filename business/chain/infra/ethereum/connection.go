package ethereum

import (
	"context"
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

// ConnectionConfig holds configuration for the connection manager.
type ConnectionConfig struct {
	URL                  string
	LivenessInterval     time.Duration // how often the connected flag is checked
	BlockRefreshInterval time.Duration // how often the block number cache is refreshed
	RequestTimeout       time.Duration // upper bound for any single node request
}

// DefaultConnectionConfig returns the standard probe cadence.
func DefaultConnectionConfig(url string) ConnectionConfig {
	return ConnectionConfig{
		URL:                  url,
		LivenessInterval:     2 * time.Second,
		BlockRefreshInterval: 15 * time.Second,
		RequestTimeout:       time.Hour,
	}
}

// connectionMetrics holds OTEL metric instruments.
type connectionMetrics struct {
	connectionState metric.Int64Gauge
	blockNumber     metric.Int64Gauge
	reattaches      metric.Int64Counter
	probeFailures   metric.Int64Counter
}

// ConnectionOption customises a ConnectionManager.
type ConnectionOption func(*ConnectionManager)

// WithDialer replaces the go-ethereum dialer.
func WithDialer(d Dialer) ConnectionOption {
	return func(m *ConnectionManager) {
		m.dial = d
	}
}

// ConnectionManager owns the session's L1 connection. It runs a liveness
// probe that re-attaches a fresh backend when the connection drops and a
// block-refresh probe that caches the latest block number.
type ConnectionManager struct {
	config ConnectionConfig
	logger logger.LoggerInterface
	dial   Dialer

	// The backend is swapped only by reattach, under backendMu.
	backend    Backend
	backendMu  sync.RWMutex
	reattachMu sync.Mutex

	// State
	state      domain.ConnectionState
	stateMu    sync.RWMutex
	connected  atomic.Bool
	closed     atomic.Bool
	reattaches atomic.Int32

	// Block cache
	blockMu     sync.RWMutex
	lastBlock   uint64
	blockKnown  bool
	lastRefresh time.Time
	refreshErr  error

	// Probes
	cancel       context.CancelFunc
	livenessDone chan struct{}
	refreshDone  chan struct{}
	closeOnce    sync.Once

	// Observability
	tracer  trace.Tracer
	metrics *connectionMetrics
}

var _ app.Connection = (*ConnectionManager)(nil)

// Connect dials the node, primes the block cache and starts both probes.
// It fails with a chain connectivity error if the node is unreachable.
func Connect(ctx context.Context, cfg ConnectionConfig, log logger.LoggerInterface, opts ...ConnectionOption) (*ConnectionManager, error) {
	m := &ConnectionManager{
		config: cfg,
		logger: log,
		dial:   DialBackend,
		state:  domain.StateDisconnected,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	ctx, span := m.tracer.Start(ctx, "eth.connect",
		trace.WithAttributes(attribute.String("url", cfg.URL)),
	)
	defer span.End()

	backend, err := m.dial(ctx, cfg.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(cfg.URL))
	}

	callCtx, cancel := m.callContext(ctx)
	block, err := backend.BlockNumber(callCtx)
	cancel()
	if err != nil {
		backend.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "node unreachable")
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(cfg.URL))
	}

	m.backend = backend
	m.connected.Store(true)
	m.storeBlock(block)
	m.setState(domain.StateConnected)

	probeCtx, stop := context.WithCancel(context.Background())
	m.cancel = stop
	m.livenessDone = make(chan struct{})
	m.refreshDone = make(chan struct{})

	go m.runLivenessProbe(probeCtx)
	go m.runBlockRefreshProbe(probeCtx)

	span.SetAttributes(attribute.Int64("block_number", int64(block)))
	span.SetStatus(codes.Ok, "connected")
	m.logger.Info(ctx, "ethereum connection established", "url", cfg.URL, "block", block)

	return m, nil
}

// initMetrics initializes OTEL metric instruments.
func (m *ConnectionManager) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	m.metrics = &connectionMetrics{}

	m.metrics.connectionState, err = meter.Int64Gauge(
		"eth_connection_state",
		metric.WithDescription("L1 connection state (0=disconnected, 1=connected, 2=reattaching, 3=closed)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	m.metrics.blockNumber, err = meter.Int64Gauge(
		"eth_block_number",
		metric.WithDescription("Latest L1 block number seen by the refresh probe"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	m.metrics.reattaches, err = meter.Int64Counter(
		"eth_reattaches_total",
		metric.WithDescription("Times a fresh backend was attached after a dropped connection"),
		metric.WithUnit("{reattach}"),
	)
	if err != nil {
		return err
	}

	m.metrics.probeFailures, err = meter.Int64Counter(
		"eth_probe_failures_total",
		metric.WithDescription("Liveness and block refresh probe failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// runLivenessProbe checks the connected flag every LivenessInterval.
func (m *ConnectionManager) runLivenessProbe(ctx context.Context) {
	defer close(m.livenessDone)

	ticker := time.NewTicker(m.config.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkLiveness(ctx)
		}
	}
}

// checkLiveness re-attaches when the flag is down, then refreshes the flag.
// Failures are logged and never propagated.
func (m *ConnectionManager) checkLiveness(ctx context.Context) {
	if !m.connected.Load() {
		m.reattach(ctx)
		return
	}

	backend := m.currentBackend()
	if backend == nil {
		return
	}

	callCtx, cancel := m.callContext(ctx)
	listening, err := backend.Listening(callCtx)
	cancel()

	if err != nil || !listening {
		if ctx.Err() != nil {
			return
		}
		m.connected.Store(false)
		m.setState(domain.StateDisconnected)
		m.metrics.probeFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("probe", "liveness")))
		m.logger.Warn(ctx, "ethereum connection lost", "url", m.config.URL, "error", err)
	}
}

// reattach dials a new backend for the same URL and swaps it in. At most one
// reattach runs at a time.
func (m *ConnectionManager) reattach(ctx context.Context) {
	if !m.reattachMu.TryLock() {
		return
	}
	defer m.reattachMu.Unlock()

	ctx, span := m.tracer.Start(ctx, "eth.reattach")
	defer span.End()

	m.setState(domain.StateReattaching)

	backend, err := m.dial(ctx, m.config.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		m.setState(domain.StateDisconnected)
		m.metrics.probeFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("probe", "reattach")))
		m.logger.Warn(ctx, "ethereum reattach failed", "url", m.config.URL, "error", err)
		return
	}

	if m.closed.Load() || ctx.Err() != nil {
		backend.Close()
		return
	}

	m.backendMu.Lock()
	old := m.backend
	m.backend = backend
	m.backendMu.Unlock()

	if old != nil {
		old.Close()
	}

	m.connected.Store(true)
	m.reattaches.Add(1)
	m.metrics.reattaches.Add(ctx, 1)
	m.setState(domain.StateConnected)

	span.SetStatus(codes.Ok, "reattached")
	m.logger.Info(ctx, "ethereum connection reattached", "url", m.config.URL, "reattaches", m.reattaches.Load())
}

// runBlockRefreshProbe refreshes the block number cache every BlockRefreshInterval.
func (m *ConnectionManager) runBlockRefreshProbe(ctx context.Context) {
	defer close(m.refreshDone)

	ticker := time.NewTicker(m.config.BlockRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshBlock(ctx)
		}
	}
}

func (m *ConnectionManager) refreshBlock(ctx context.Context) {
	backend := m.currentBackend()
	if backend == nil {
		return
	}

	callCtx, cancel := m.callContext(ctx)
	block, err := backend.BlockNumber(callCtx)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.blockMu.Lock()
		m.refreshErr = err
		m.blockMu.Unlock()

		// The liveness probe re-attaches on its next tick.
		m.connected.Store(false)
		m.setState(domain.StateDisconnected)
		m.metrics.probeFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("probe", "block_refresh")))
		m.logger.Warn(ctx, "block number refresh failed", "error", err)
		return
	}

	m.storeBlock(block)
}

func (m *ConnectionManager) storeBlock(block uint64) {
	m.blockMu.Lock()
	m.lastBlock = block
	m.blockKnown = true
	m.lastRefresh = time.Now()
	m.refreshErr = nil
	m.blockMu.Unlock()

	m.metrics.blockNumber.Record(context.Background(), int64(block))
}

// CurrentBlockNumber returns the cached block number. When the cache is
// empty or the last refresh failed it queries the node and surfaces any
// failure as a chain connectivity error.
func (m *ConnectionManager) CurrentBlockNumber(ctx context.Context) (uint64, error) {
	if m.closed.Load() {
		return 0, errClosed()
	}

	m.blockMu.RLock()
	block, known, refreshErr := m.lastBlock, m.blockKnown, m.refreshErr
	m.blockMu.RUnlock()

	if known && refreshErr == nil {
		return block, nil
	}

	block, err := m.BlockNumber(ctx)
	if err != nil {
		return 0, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("current block number"))
	}

	m.storeBlock(block)
	return block, nil
}

// IsAlive reports the connected flag.
func (m *ConnectionManager) IsAlive() bool {
	return !m.closed.Load() && m.connected.Load()
}

// IsListening queries the node. Unlike the probe, failures reach the caller.
func (m *ConnectionManager) IsListening(ctx context.Context) (bool, error) {
	backend, err := m.use()
	if err != nil {
		return false, err
	}

	callCtx, cancel := m.callContext(ctx)
	defer cancel()

	listening, err := backend.Listening(callCtx)
	if err != nil {
		return false, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("net_listening"))
	}
	return listening, nil
}

// State returns the current connection state.
func (m *ConnectionManager) State() domain.ConnectionState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// Status returns a snapshot of the connection.
func (m *ConnectionManager) Status() domain.ConnectionStatus {
	m.blockMu.RLock()
	defer m.blockMu.RUnlock()

	status := domain.ConnectionStatus{
		State:       m.State(),
		LastBlock:   m.lastBlock,
		LastRefresh: m.lastRefresh,
		Reattaches:  int(m.reattaches.Load()),
	}
	if m.refreshErr != nil {
		status.LastError = m.refreshErr.Error()
	}
	return status
}

// Close stops the probes, waits for them to exit and then releases the
// backend. It is safe to call more than once.
func (m *ConnectionManager) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)

		if m.cancel != nil {
			m.cancel()
			<-m.refreshDone
			<-m.livenessDone
		}

		m.backendMu.Lock()
		if m.backend != nil {
			m.backend.Close()
			m.backend = nil
		}
		m.backendMu.Unlock()

		m.connected.Store(false)
		m.setState(domain.StateClosed)
		m.logger.Info(context.Background(), "ethereum connection closed", "url", m.config.URL)
	})
	return nil
}

// setState updates the connection state and records metrics.
func (m *ConnectionManager) setState(state domain.ConnectionState) {
	m.stateMu.Lock()
	m.state = state
	m.stateMu.Unlock()

	m.metrics.connectionState.Record(context.Background(), state.Gauge())
}

func (m *ConnectionManager) currentBackend() Backend {
	m.backendMu.RLock()
	defer m.backendMu.RUnlock()
	return m.backend
}

func (m *ConnectionManager) use() (Backend, error) {
	if m.closed.Load() {
		return nil, errClosed()
	}
	backend := m.currentBackend()
	if backend == nil {
		return nil, errClosed()
	}
	return backend, nil
}

func (m *ConnectionManager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, m.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func errClosed() error {
	return apperror.State(apperror.CodeSessionClosed, "ethereum connection closed")
}

// The methods below forward to whichever backend is attached, so callers
// never hold a reference that a reattach could invalidate. Node errors are
// returned as-is for the caller to classify.

func (m *ConnectionManager) ChainID(ctx context.Context) (*big.Int, error) {
	backend, err := m.use()
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return backend.ChainID(ctx)
}

func (m *ConnectionManager) BlockNumber(ctx context.Context) (uint64, error) {
	backend, err := m.use()
	if err != nil {
		return 0, err
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return backend.BlockNumber(ctx)
}

func (m *ConnectionManager) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	backend, err := m.use()
	if err != nil {
		return 0, err
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return backend.PendingNonceAt(ctx, account)
}

func (m *ConnectionManager) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	backend, err := m.use()
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return backend.SuggestGasPrice(ctx)
}

func (m *ConnectionManager) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	backend, err := m.use()
	if err != nil {
		return 0, err
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return backend.EstimateGas(ctx, msg)
}

func (m *ConnectionManager) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	backend, err := m.use()
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return backend.CallContract(ctx, msg, blockNumber)
}

func (m *ConnectionManager) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	backend, err := m.use()
	if err != nil {
		return err
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return backend.SendTransaction(ctx, tx)
}

func (m *ConnectionManager) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	backend, err := m.use()
	if err != nil {
		return nil, err
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return backend.TransactionReceipt(ctx, txHash)
}
