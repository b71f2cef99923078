// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all SDK configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Protocol  ProtocolConfig  `mapstructure:"protocol"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Gas       GasConfig       `mapstructure:"gas"`
	Signer    SignerConfig    `mapstructure:"signer"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ProtocolConfig holds protocol service (client API) settings.
type ProtocolConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute  int           `mapstructure:"requests_per_minute"`
	ShieldContractName string        `mapstructure:"shield_contract_name"`
	AddressCacheTTL    time.Duration `mapstructure:"address_cache_ttl"`
}

// EthereumConfig holds L1 node and confirmation settings.
type EthereumConfig struct {
	WebSocketURL         string        `mapstructure:"websocket_url"`
	ChainID              uint64        `mapstructure:"chain_id"` // 0 = ask the node
	LivenessInterval     time.Duration `mapstructure:"liveness_interval"`
	BlockRefreshInterval time.Duration `mapstructure:"block_refresh_interval"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	ConfirmationBlocks   uint64        `mapstructure:"confirmation_blocks"`
	BlockTimeout         uint64        `mapstructure:"block_timeout"`
	ReceiptPollInterval  time.Duration `mapstructure:"receipt_poll_interval"`
}

// GasConfig holds the gas safety factors.
type GasConfig struct {
	LimitMultiplier string `mapstructure:"limit_multiplier"`
	PriceMultiplier string `mapstructure:"price_multiplier"`
	MaxGasPriceWei  string `mapstructure:"max_gas_price_wei"` // empty = uncapped
}

// LimitFactor returns the gas limit multiplier.
func (c GasConfig) LimitFactor() decimal.Decimal {
	return decimal.RequireFromString(c.LimitMultiplier)
}

// PriceFactor returns the gas price multiplier.
func (c GasConfig) PriceFactor() decimal.Decimal {
	return decimal.RequireFromString(c.PriceMultiplier)
}

// MaxGasPrice returns the gas price cap in wei, or nil when uncapped.
func (c GasConfig) MaxGasPrice() (*big.Int, error) {
	if c.MaxGasPriceWei == "" {
		return nil, nil
	}
	capWei, ok := new(big.Int).SetString(c.MaxGasPriceWei, 10)
	if !ok || capWei.Sign() < 0 {
		return nil, fmt.Errorf("invalid gas.max_gas_price_wei: %q is not a non-negative integer", c.MaxGasPriceWei)
	}
	return capWei, nil
}

// SignerConfig holds credentials. An empty private key means transactions
// are delegated to an external wallet supplied at runtime.
type SignerConfig struct {
	PrivateKey   string `mapstructure:"private_key"`
	Mnemonic     string `mapstructure:"mnemonic"`
	AddressIndex int    `mapstructure:"address_index"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("NF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "NF_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "NF_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "NF_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("protocol.base_url", "NF_CLIENT_URL", "CLIENT_API_URL")
	v.BindEnv("protocol.shield_contract_name", "NF_SHIELD_CONTRACT_NAME")

	v.BindEnv("ethereum.websocket_url", "NF_ETH_WS_URL", "ETH_WS_URL", "BLOCKCHAIN_WEBSOCKET_URL")
	v.BindEnv("ethereum.chain_id", "NF_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	v.BindEnv("signer.private_key", "NF_PRIVATE_KEY", "ETH_PRIVATE_KEY")
	v.BindEnv("signer.mnemonic", "NF_MNEMONIC")
	v.BindEnv("signer.address_index", "NF_ADDRESS_INDEX")

	v.BindEnv("telemetry.enabled", "NF_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "NF_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "NF_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "NF_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "nightfall-sdk")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("protocol.request_timeout", "2m")
	v.SetDefault("protocol.requests_per_minute", 600)
	v.SetDefault("protocol.shield_contract_name", "Shield")
	v.SetDefault("protocol.address_cache_ttl", "10m")

	v.SetDefault("ethereum.chain_id", 0)
	v.SetDefault("ethereum.liveness_interval", "2s")
	v.SetDefault("ethereum.block_refresh_interval", "15s")
	v.SetDefault("ethereum.request_timeout", "1h")
	v.SetDefault("ethereum.confirmation_blocks", 12)
	v.SetDefault("ethereum.block_timeout", 750)
	v.SetDefault("ethereum.receipt_poll_interval", "2s")

	v.SetDefault("gas.limit_multiplier", "2")
	v.SetDefault("gas.price_multiplier", "2")

	v.SetDefault("signer.address_index", 0)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "nightfall-sdk")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Protocol.BaseURL == "" {
		return fmt.Errorf("protocol.base_url is required")
	}
	if u, err := url.Parse(c.Protocol.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid protocol.base_url: %s", c.Protocol.BaseURL)
	}
	if c.Ethereum.WebSocketURL == "" {
		return fmt.Errorf("ethereum.websocket_url is required")
	}
	if c.Ethereum.LivenessInterval <= 0 || c.Ethereum.BlockRefreshInterval <= 0 {
		return fmt.Errorf("ethereum probe intervals must be positive")
	}
	if c.Ethereum.ReceiptPollInterval <= 0 {
		return fmt.Errorf("ethereum.receipt_poll_interval must be positive")
	}
	if c.Protocol.RequestsPerMinute <= 0 {
		return fmt.Errorf("protocol.requests_per_minute must be positive")
	}
	for name, raw := range map[string]string{
		"gas.limit_multiplier": c.Gas.LimitMultiplier,
		"gas.price_multiplier": c.Gas.PriceMultiplier,
	} {
		f, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %q", name, raw)
		}
		if f.LessThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%s must be >= 1, got %s", name, raw)
		}
	}
	if _, err := c.Gas.MaxGasPrice(); err != nil {
		return err
	}
	if c.Signer.AddressIndex < 0 {
		return fmt.Errorf("signer.address_index must be >= 0")
	}
	return nil
}
