// Package main is the command line client for a Nightfall L2 session.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	chaindomain "github.com/fd1az/nightfall-sdk/business/chain/domain"
	"github.com/fd1az/nightfall-sdk/business/transfer/domain"
	"github.com/fd1az/nightfall-sdk/internal/apm"
	"github.com/fd1az/nightfall-sdk/internal/config"
	"github.com/fd1az/nightfall-sdk/internal/health"
	"github.com/fd1az/nightfall-sdk/internal/logger"
	"github.com/fd1az/nightfall-sdk/internal/metrics"
	"github.com/fd1az/nightfall-sdk/pkg/sdk"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// flags holds the parsed command line.
type flags struct {
	configPath string
	action     string
	token      string
	tokenID    string
	value      string
	fee        string
	recipient  string
	l2TxHash   string
	offChain   bool
	dir        string
	file       string
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&f.action, "action", "balances", "balances|deposit|transfer|withdraw|finalise|export|import|watch")
	flag.StringVar(&f.token, "token", "", "Token contract address")
	flag.StringVar(&f.tokenID, "token-id", "", "Token id for ERC721 and ERC1155")
	flag.StringVar(&f.value, "value", "", "Amount in display units")
	flag.StringVar(&f.fee, "fee", "", "Proposer fee in wei")
	flag.StringVar(&f.recipient, "recipient", "", "Compressed zkp public key (transfer) or L1 address (withdraw)")
	flag.StringVar(&f.l2TxHash, "tx", "", "L2 withdrawal hash to finalise, defaults to the latest")
	flag.BoolVar(&f.offChain, "offchain", false, "Send transfer or withdraw directly to proposers")
	flag.StringVar(&f.dir, "dir", ".", "Directory for commitment export and import")
	flag.StringVar(&f.file, "file", "commitments.json", "File name for commitment export and import")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("nightfall %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, f); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, traceID)
	log.Info(ctx, "starting nightfall client",
		"version", version,
		"environment", cfg.App.Environment,
		"action", f.action,
	)

	var registry *prom.Registry
	if cfg.Telemetry.Enabled {
		tp, reg, err := initTelemetry(ctx, cfg, log)
		if err != nil {
			return err
		}
		registry = reg
		defer tp.Stop()
	}

	user, err := sdk.NewUser(ctx, cfg, sdk.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer user.Close()

	if user.MnemonicGenerated() {
		fmt.Fprintf(os.Stderr, "generated mnemonic, store it safely:\n%s\n", user.Mnemonic())
	}

	switch f.action {
	case "balances":
		return printBalances(ctx, user)
	case "deposit":
		token, err := tokenAddress(f.token)
		if err != nil {
			return err
		}
		return printReceipt(user.Deposit(ctx, sdk.DepositInput{
			Token:   token,
			TokenID: f.tokenID,
			Value:   f.value,
			Fee:     f.fee,
		}))
	case "transfer":
		token, err := tokenAddress(f.token)
		if err != nil {
			return err
		}
		return printReceipt(user.Transfer(ctx, sdk.TransferInput{
			Token:      token,
			TokenID:    f.tokenID,
			Recipients: []sdk.Recipient{{CompressedZkpPublicKey: f.recipient, Value: f.value}},
			Fee:        f.fee,
			OffChain:   f.offChain,
		}))
	case "withdraw":
		token, err := tokenAddress(f.token)
		if err != nil {
			return err
		}
		in := sdk.WithdrawInput{
			Token:    token,
			TokenID:  f.tokenID,
			Value:    f.value,
			Fee:      f.fee,
			OffChain: f.offChain,
		}
		if f.recipient != "" {
			if !common.IsHexAddress(f.recipient) {
				return fmt.Errorf("invalid recipient address %q", f.recipient)
			}
			in.Recipient = common.HexToAddress(f.recipient)
		}
		return printReceipt(user.Withdraw(ctx, in))
	case "finalise":
		return printReceipt(user.FinaliseWithdrawal(ctx, f.l2TxHash))
	case "export":
		n, err := user.ExportCommitments(ctx, f.dir, f.file)
		if err != nil {
			return err
		}
		log.Info(ctx, "commitments exported", "count", n, "dir", f.dir, "file", f.file)
		return nil
	case "import":
		n, err := user.ImportCommitments(ctx, f.dir, f.file)
		if err != nil {
			return err
		}
		log.Info(ctx, "commitments imported", "count", n, "dir", f.dir, "file", f.file)
		return nil
	case "watch":
		return watch(ctx, cfg, user, registry, log)
	default:
		return fmt.Errorf("unknown action %q", f.action)
	}
}

// initTelemetry installs the trace and meter providers.
func initTelemetry(ctx context.Context, cfg *config.Config, log *logger.Logger) (apm.TraceProvider, *prom.Registry, error) {
	headers, err := apm.ParseHeaders(cfg.Telemetry.OTLPHeaders)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid otlp headers: %w", err)
	}

	provider := apm.Provider(cfg.Telemetry.TraceProvider)
	tp, err := apm.NewTraceProvider(log,
		apm.WithServiceName(cfg.Telemetry.ServiceName),
		apm.WithProvider(provider, cfg.Telemetry.OTLPEndpoint, headers, log),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start tracing: %w", err)
	}
	log.Info(ctx, "tracing initialized", "provider", provider, "endpoint", cfg.Telemetry.OTLPEndpoint)

	reg := prom.NewRegistry()
	if _, err := metrics.NewMetricProvider(
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.NewPrometheusConfig(reg)),
	); err != nil {
		tp.Stop()
		return nil, nil, fmt.Errorf("failed to start metrics: %w", err)
	}
	log.Info(ctx, "metrics initialized", "provider", metrics.PrometheusProvider)

	return tp, reg, nil
}

// watch keeps the session open, serving health and metrics and logging new
// blocks until ctx is cancelled.
func watch(ctx context.Context, cfg *config.Config, user *sdk.User, reg *prom.Registry, log *logger.Logger) error {
	server := health.NewServer(cfg.Telemetry.HealthPort, version, log)
	server.RegisterCheck("ethereum", func(ctx context.Context) (bool, string) {
		status := user.ChainStatus()
		return status.State == chaindomain.StateConnected, string(status.State)
	})
	server.RegisterCheck("protocol", func(ctx context.Context) (bool, string) {
		ok, err := user.ServiceHealthy(ctx)
		if err != nil {
			return false, err.Error()
		}
		if !ok {
			return false, "unhealthy"
		}
		return true, "ok"
	})
	if reg != nil {
		server.Handle("/metrics", metrics.Handler(reg))
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	log.Info(ctx, "health server started", "port", cfg.Telemetry.HealthPort)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Stop(stopCtx)
	}()

	interval := cfg.Ethereum.BlockRefreshInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			log.Info(ctx, "shutting down")
			return nil
		case <-ticker.C:
			block, err := user.CurrentBlock(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				log.Warn(ctx, "block refresh failed", "error", err)
				continue
			}
			if block != last {
				last = block
				log.Info(ctx, "new block", "number", block, "state", user.ChainStatus().State)
			}
		}
	}
}

func tokenAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid token address %q", s)
	}
	return common.HexToAddress(s), nil
}

func printBalances(ctx context.Context, user *sdk.User) error {
	out := map[string]any{"address": user.Address().Hex()}
	for name, fetch := range map[string]func(context.Context) (sdk.Balances, error){
		"balances":         user.Balances,
		"pending_deposits": user.PendingDeposits,
		"pending_spent":    user.PendingSpent,
	} {
		b, err := fetch(ctx)
		if err != nil {
			return err
		}
		out[name] = b
	}
	return printJSON(out)
}

func printReceipt(pair *domain.ReceiptPair, err error) error {
	if err != nil {
		return err
	}
	out := map[string]any{
		"operation": pair.OperationID,
		"l2_hash":   pair.L2Hash(),
	}
	if pair.L1 != nil {
		out["l1_hash"] = pair.L1.TxHash.Hex()
		out["l1_block"] = pair.L1.BlockNumber
	}
	if pair.Approval != nil {
		out["approval_hash"] = pair.Approval.TxHash.Hex()
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// traceID correlates log records with the active span.
func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
