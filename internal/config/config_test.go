package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fd1az/nightfall-sdk/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
protocol:
  base_url: http://localhost:8080
ethereum:
  websocket_url: ws://localhost:8546
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ethereum.LivenessInterval != 2*time.Second {
		t.Errorf("expected 2s liveness interval, got %s", cfg.Ethereum.LivenessInterval)
	}
	if cfg.Ethereum.BlockRefreshInterval != 15*time.Second {
		t.Errorf("expected 15s block refresh interval, got %s", cfg.Ethereum.BlockRefreshInterval)
	}
	if cfg.Ethereum.RequestTimeout != time.Hour {
		t.Errorf("expected 1h request timeout, got %s", cfg.Ethereum.RequestTimeout)
	}
	if !cfg.Gas.LimitFactor().Equal(cfg.Gas.PriceFactor()) || cfg.Gas.LimitFactor().String() != "2" {
		t.Errorf("expected both gas factors to default to 2, got %s/%s", cfg.Gas.LimitFactor(), cfg.Gas.PriceFactor())
	}
	if cfg.Protocol.ShieldContractName != "Shield" {
		t.Errorf("expected Shield contract name, got %q", cfg.Protocol.ShieldContractName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
protocol:
  base_url: http://localhost:8080
ethereum:
  websocket_url: ws://localhost:8546
`)
	t.Setenv("NF_MNEMONIC", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	t.Setenv("NF_CLIENT_URL", "http://client:8080")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Protocol.BaseURL != "http://client:8080" {
		t.Errorf("expected env base url, got %q", cfg.Protocol.BaseURL)
	}
	if cfg.Signer.Mnemonic == "" {
		t.Error("expected mnemonic from env")
	}
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Protocol: config.ProtocolConfig{BaseURL: "http://localhost:8080", RequestsPerMinute: 60},
			Ethereum: config.EthereumConfig{
				WebSocketURL:         "ws://localhost:8546",
				LivenessInterval:     time.Second,
				BlockRefreshInterval: time.Second,
				ReceiptPollInterval:  time.Second,
			},
			Gas: config.GasConfig{LimitMultiplier: "2", PriceMultiplier: "1.5"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"valid", func(*config.Config) {}, false},
		{"missing base url", func(c *config.Config) { c.Protocol.BaseURL = "" }, true},
		{"relative base url", func(c *config.Config) { c.Protocol.BaseURL = "localhost" }, true},
		{"missing ws url", func(c *config.Config) { c.Ethereum.WebSocketURL = "" }, true},
		{"factor below one", func(c *config.Config) { c.Gas.LimitMultiplier = "0.5" }, true},
		{"factor not a number", func(c *config.Config) { c.Gas.PriceMultiplier = "two" }, true},
		{"zero interval", func(c *config.Config) { c.Ethereum.LivenessInterval = 0 }, true},
		{"bad gas cap", func(c *config.Config) { c.Gas.MaxGasPriceWei = "lots" }, true},
		{"fractional gas cap", func(c *config.Config) { c.Gas.MaxGasPriceWei = "1.5" }, true},
		{"negative gas cap", func(c *config.Config) { c.Gas.MaxGasPriceWei = "-1" }, true},
		{"exponent gas cap", func(c *config.Config) { c.Gas.MaxGasPriceWei = "5e10" }, true},
		{"gas cap", func(c *config.Config) { c.Gas.MaxGasPriceWei = "50000000000" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGasConfig_MaxGasPrice(t *testing.T) {
	capWei, err := config.GasConfig{}.MaxGasPrice()
	if err != nil || capWei != nil {
		t.Fatalf("expected no cap, got %v, %v", capWei, err)
	}

	capWei, err = config.GasConfig{MaxGasPriceWei: "50000000000"}.MaxGasPrice()
	if err != nil {
		t.Fatalf("max gas price: %v", err)
	}
	if capWei.String() != "50000000000" {
		t.Errorf("expected 50000000000, got %s", capWei)
	}

	if _, err := (config.GasConfig{MaxGasPriceWei: "50 gwei"}).MaxGasPrice(); err == nil {
		t.Error("expected an error for a non-integer cap")
	}
}
