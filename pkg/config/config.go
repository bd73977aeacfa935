// Package config loads the YAML configuration shared by the daemons and
// CLIs, with environment-variable fallbacks for deployment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reservebot/goreserve/reserve"
)

// TokenConfig names one listed token the tooling operates on.
type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals int    `yaml:"decimals"`
}

// FeedConfig points at the external price API the feeder reads.
type FeedConfig struct {
	RestBaseURL    string `yaml:"rest_base_url"`
	StreamURL      string `yaml:"stream_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryCount     int    `yaml:"retry_count"`
}

// FeederConfig tunes the rate-feeder daemon.
type FeederConfig struct {
	IntervalSeconds      int    `yaml:"interval_seconds"`       // cycle interval
	SpreadBps            int64  `yaml:"spread_bps"`             // half-spread applied around the mid quote
	MinDeviationBps      int64  `yaml:"min_deviation_bps"`      // skip submission when within this of the last one
	MaxSubmitsPerMinute  int    `yaml:"max_submits_per_minute"` // token-bucket cap
	MaxConsecutiveErrors int64  `yaml:"max_consecutive_errors"` // breaker threshold, <=0 disables
	CheckpointDir        string `yaml:"checkpoint_dir"`
}

// ServerConfig tunes the operator control-plane server.
type ServerConfig struct {
	Listen        string `yaml:"listen"`
	JournalDBPath string `yaml:"journal_db_path"`
}

// Config is the full application configuration.
type Config struct {
	RPCURL  string `yaml:"rpc_url"`
	ChainID int64  `yaml:"chain_id"`

	// Addresses of the deployed contract set. Empty sanity_rates means the
	// reserve runs without sanity bounds.
	Addresses reserve.AddressSet `yaml:"addresses"`

	// Operator signing key: either a keystore entry or a raw env key.
	KeystorePath string `yaml:"keystore_path"`
	OperatorName string `yaml:"operator_name"`

	Tokens []TokenConfig `yaml:"tokens"`
	Feed   FeedConfig    `yaml:"feed"`
	Feeder FeederConfig  `yaml:"feeder"`
	Server ServerConfig  `yaml:"server"`

	MetricsListen string `yaml:"metrics_listen"` // empty disables the debug listener

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

var (
	globalConfig   *Config
	configFilePath string
)

// SetConfigPath sets the file Load reads.
func SetConfigPath(path string) {
	configFilePath = path
}

// GetConfigPath returns the configured file path.
func GetConfigPath() string {
	return configFilePath
}

// Load reads the configured file, applies env fallbacks and defaults, and
// caches the result.
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile loads from an explicit path.
func LoadFromFile(filePath string) (*Config, error) {
	if globalConfig != nil && configFilePath == filePath {
		return globalConfig, nil
	}

	cfg := &Config{}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", filePath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", filePath, err)
		}
	}

	applyEnvFallbacks(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	configFilePath = filePath
	return cfg, nil
}

// Reset drops the cached config. Used by tests.
func Reset() {
	globalConfig = nil
	configFilePath = ""
}

func applyEnvFallbacks(cfg *Config) {
	cfg.RPCURL = getEnv("RESERVE_RPC_URL", cfg.RPCURL)
	cfg.ChainID = parseInt64Env("RESERVE_CHAIN_ID", cfg.ChainID)
	cfg.Addresses.Reserve = getEnv("RESERVE_ADDRESS", cfg.Addresses.Reserve)
	cfg.Addresses.ConversionRates = getEnv("RESERVE_CONVERSION_RATES_ADDRESS", cfg.Addresses.ConversionRates)
	cfg.Addresses.SanityRates = getEnv("RESERVE_SANITY_RATES_ADDRESS", cfg.Addresses.SanityRates)
	cfg.KeystorePath = getEnv("RESERVE_KEYSTORE_PATH", cfg.KeystorePath)
	cfg.OperatorName = getEnv("RESERVE_OPERATOR_NAME", cfg.OperatorName)
	cfg.Feed.RestBaseURL = getEnv("RESERVE_FEED_REST_URL", cfg.Feed.RestBaseURL)
	cfg.Feed.StreamURL = getEnv("RESERVE_FEED_STREAM_URL", cfg.Feed.StreamURL)
	cfg.LogLevel = getEnv("RESERVE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("RESERVE_LOG_FILE", cfg.LogFile)
}

func applyDefaults(cfg *Config) {
	if cfg.ChainID == 0 {
		cfg.ChainID = 1
	}
	if cfg.Feed.TimeoutSeconds <= 0 {
		cfg.Feed.TimeoutSeconds = 10
	}
	if cfg.Feed.RetryCount < 0 {
		cfg.Feed.RetryCount = 0
	}
	if cfg.Feeder.IntervalSeconds <= 0 {
		cfg.Feeder.IntervalSeconds = 30
	}
	if cfg.Feeder.SpreadBps <= 0 {
		cfg.Feeder.SpreadBps = 25
	}
	if cfg.Feeder.MinDeviationBps < 0 {
		cfg.Feeder.MinDeviationBps = 0
	}
	if cfg.Feeder.MaxSubmitsPerMinute <= 0 {
		cfg.Feeder.MaxSubmitsPerMinute = 4
	}
	if cfg.Feeder.MaxConsecutiveErrors == 0 {
		cfg.Feeder.MaxConsecutiveErrors = 5
	}
	if cfg.Feeder.CheckpointDir == "" {
		cfg.Feeder.CheckpointDir = "data/feeder"
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = "127.0.0.1:8087"
	}
	if cfg.Server.JournalDBPath == "" {
		cfg.Server.JournalDBPath = "data/journal.db"
	}
	if cfg.KeystorePath == "" {
		cfg.KeystorePath = "data/keystore.badger"
	}
	if cfg.OperatorName == "" {
		cfg.OperatorName = "default"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate checks the fields every command needs. Commands that do not touch
// the chain may skip calling it.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCURL) == "" {
		return fmt.Errorf("config: rpc_url is required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("config: chain_id must be positive, got %d", c.ChainID)
	}
	if strings.TrimSpace(c.Addresses.Reserve) == "" {
		return fmt.Errorf("config: addresses.reserve is required")
	}
	if strings.TrimSpace(c.Addresses.ConversionRates) == "" {
		return fmt.Errorf("config: addresses.conversion_rates is required")
	}
	seen := make(map[string]bool, len(c.Tokens))
	for i, tok := range c.Tokens {
		if strings.TrimSpace(tok.Symbol) == "" {
			return fmt.Errorf("config: tokens[%d].symbol is required", i)
		}
		if strings.TrimSpace(tok.Address) == "" {
			return fmt.Errorf("config: tokens[%d].address is required", i)
		}
		if tok.Decimals < 0 || tok.Decimals > 36 {
			return fmt.Errorf("config: tokens[%d].decimals out of range: %d", i, tok.Decimals)
		}
		if seen[tok.Symbol] {
			return fmt.Errorf("config: duplicate token symbol %q", tok.Symbol)
		}
		seen[tok.Symbol] = true
	}
	return nil
}

// Token looks up a configured token by symbol.
func (c *Config) Token(symbol string) (TokenConfig, bool) {
	for _, tok := range c.Tokens {
		if tok.Symbol == symbol {
			return tok, true
		}
	}
	return TokenConfig{}, false
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseInt64Env(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
