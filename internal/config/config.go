package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DeploymentConfig represents deployments.json as written by the deploy
// scripts.
type DeploymentConfig struct {
	ChainID   int64  `json:"chainId"`
	Deployer  string `json:"deployer"`
	Owner     string `json:"owner"`
	Contracts struct {
		DigitalWillFactory string `json:"DigitalWillFactory"`
	} `json:"contracts"`
}

// AppConfig is fixed for the lifetime of the process.
type AppConfig struct {
	Deployment DeploymentConfig
	Service    ServiceConfig
	Chain      ChainConfig
}

type ServiceConfig struct {
	HTTPPort             int
	HMACSecret           string
	HMACClockSkew        time.Duration
	IdempotencyWindow    time.Duration
	IdempotencyStorePath string
	PostgresDSN          string
}

type ChainConfig struct {
	ChainID         int64
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ReceiptPoll     time.Duration
}

// Simulated reports whether no live ledger is configured, in which case the
// process runs against the in-process ledger.
func (c ChainConfig) Simulated() bool {
	return c.RPCURL == "" || c.PrivateKey == ""
}

const (
	defaultDeploymentsPath = "deployments.json"
	defaultChainID         = 42161
)

// Load aggregates configuration from the environment and an optional
// deployments file. Environment values win over the file.
func Load() (*AppConfig, error) {
	deploymentsPath := envOr("DEPLOYMENTS_PATH", defaultDeploymentsPath)

	deployCfg, err := loadDeployments(deploymentsPath)
	if err != nil {
		return nil, fmt.Errorf("load deployments: %w", err)
	}

	chainID := int64(envOrInt("CHAIN_ID", 0))
	if chainID == 0 {
		chainID = deployCfg.ChainID
	}
	if chainID == 0 {
		chainID = defaultChainID
	}

	serviceCfg := ServiceConfig{
		HTTPPort:             envOrInt("API_HTTP_PORT", 3000),
		HMACSecret:           envOr("API_HMAC_SECRET", ""),
		HMACClockSkew:        time.Duration(envOrInt("HMAC_CLOCK_SKEW_SECONDS", 60)) * time.Second,
		IdempotencyWindow:    time.Duration(envOrInt("IDEMPOTENCY_WINDOW_SECONDS", 86400)) * time.Second,
		IdempotencyStorePath: envOr("IDEMPOTENCY_STORE_PATH", filepath.Join(os.TempDir(), "hera-idem.json")),
		PostgresDSN:          envOr("POSTGRES_DSN", ""),
	}

	chainCfg := ChainConfig{
		ChainID:         chainID,
		RPCURL:          envOr("CHAIN_RPC_URL", ""),
		ContractAddress: envOr("WILL_CONTRACT_ADDRESS", deployCfg.Contracts.DigitalWillFactory),
		PrivateKey:      envOr("CHAIN_PRIVATE_KEY", ""),
		ReadTimeout:     time.Duration(envOrInt("RPC_READ_TIMEOUT_MS", 10000)) * time.Millisecond,
		WriteTimeout:    time.Duration(envOrInt("RPC_WRITE_TIMEOUT_MS", 120000)) * time.Millisecond,
		ReceiptPoll:     time.Duration(envOrInt("RECEIPT_POLL_MS", 1000)) * time.Millisecond,
	}

	return &AppConfig{
		Deployment: *deployCfg,
		Service:    serviceCfg,
		Chain:      chainCfg,
	}, nil
}

// Validate reports every missing or placeholder value a live deployment
// needs. A simulated configuration only needs the HMAC secret.
func (c *AppConfig) Validate() error {
	var errs []error
	check := func(key, val string) {
		switch {
		case val == "":
			errs = append(errs, fmt.Errorf("%s is not set", key))
		case isPlaceholder(val):
			errs = append(errs, fmt.Errorf("%s still holds a placeholder value", key))
		}
	}
	check("API_HMAC_SECRET", c.Service.HMACSecret)
	if !c.Chain.Simulated() {
		check("CHAIN_RPC_URL", c.Chain.RPCURL)
		check("CHAIN_PRIVATE_KEY", c.Chain.PrivateKey)
		check("WILL_CONTRACT_ADDRESS", c.Chain.ContractAddress)
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Errorf("CHAIN_ID must be positive"))
	}
	if c.Service.IdempotencyWindow <= 0 {
		errs = append(errs, fmt.Errorf("IDEMPOTENCY_WINDOW_SECONDS must be positive"))
	}
	return errors.Join(errs...)
}

func isPlaceholder(v string) bool {
	v = strings.ToLower(v)
	return strings.HasPrefix(v, "your_") || strings.HasSuffix(v, "_here")
}

// loadDeployments tolerates a missing file; every value it carries can come
// from the environment instead.
func loadDeployments(path string) (*DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &DeploymentConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg DeploymentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
