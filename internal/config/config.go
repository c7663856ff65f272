// Package config loads the papertrade YAML configuration and applies
// environment overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the papertrade backend.
type Config struct {
	Storage    Storage    `yaml:"storage"`
	Server     Server     `yaml:"server"`
	Market     Market     `yaml:"market"`
	Alpaca     Alpaca     `yaml:"alpaca"`
	Prediction Prediction `yaml:"prediction"`
	Logging    Logging    `yaml:"logging"`
	Trading    Trading    `yaml:"trading"`
}

// Storage holds persistence paths.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Market selects the price catalogue implementation: "static" serves
// the built-in demo catalogue, "alpaca" fetches latest trade prices.
type Market struct {
	Source          string `yaml:"source"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Alpaca holds market-data API credentials, used when market.source
// is "alpaca".
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Prediction configures the external forecast service client.
type Prediction struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryAttempts  int    `yaml:"retry_attempts"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Trading holds ledger parameters.
type Trading struct {
	// StartingCash is the buying power a new portfolio begins with,
	// as a decimal string.
	StartingCash string `yaml:"starting_cash"`
}

// Load reads the YAML file at path, fills in defaults, and applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/papertrade.db"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Market.Source == "" {
		c.Market.Source = "static"
	}
	if c.Market.RateLimitPerMin == 0 {
		c.Market.RateLimitPerMin = 200
	}
	if c.Alpaca.DataURL == "" {
		c.Alpaca.DataURL = "https://data.alpaca.markets"
	}
	if c.Prediction.BaseURL == "" {
		c.Prediction.BaseURL = "http://localhost:5001"
	}
	if c.Prediction.TimeoutSeconds == 0 {
		c.Prediction.TimeoutSeconds = 10
	}
	if c.Prediction.RetryAttempts == 0 {
		c.Prediction.RetryAttempts = 2
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Trading.StartingCash == "" {
		c.Trading.StartingCash = "5000.00"
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PAPERTRADE_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("PAPERTRADE_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("PREDICTION_SERVICE_URL"); v != "" {
		c.Prediction.BaseURL = v
	}
	if v := os.Getenv("PAPERTRADE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		c.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		c.Alpaca.APISecret = v
	}
}
