package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration. Risk parameters are NOT here — those
// live in the hot-reloadable control file so they can change while the bot
// runs. This file covers the things that only change with a restart.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	API     APIConfig     `yaml:"api"`
	Venue   VenueConfig   `yaml:"venue"`
	Storage StorageConfig `yaml:"storage"`
	Control ControlConfig `yaml:"control"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig controls the evaluation loop.
type EngineConfig struct {
	IntervalSeconds    int `yaml:"interval_seconds"`
	CallTimeoutSeconds int `yaml:"call_timeout_seconds"`
}

// APIConfig holds the market-data endpoints.
type APIConfig struct {
	DexScreenerBase  string `yaml:"dexscreener_base"`
	JupiterPriceBase string `yaml:"jupiter_price_base"`
	CoinGeckoURL     string `yaml:"coingecko_url"`
	CoinbaseURL      string `yaml:"coinbase_url"`
}

// VenueConfig holds the execution endpoints for real trading. The wallet key
// never goes in YAML — it comes from the WALLET_PRIVATE_KEY env var.
type VenueConfig struct {
	JupiterQuoteURL    string `yaml:"jupiter_quote_url"`
	JupiterSwapURL     string `yaml:"jupiter_swap_url"`
	SolanaRPCURL       string `yaml:"solana_rpc_url"`
	SendRetries        int    `yaml:"send_retries"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
}

// StorageConfig controls where the trade ledger is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// ControlConfig points at the hot-reloadable risk parameter file.
type ControlConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config and the .env file if present. Env vars override
// select YAML keys. A missing config file is not an error: the defaults run
// the bot in simulation with production endpoints.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to defaults
	case err != nil:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// PollInterval returns the evaluation interval as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.IntervalSeconds) * time.Second
}

// CallTimeout returns the per-call timeout as a time.Duration.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Engine.CallTimeoutSeconds) * time.Second
}

// WalletPrivateKey returns the base58 wallet key for real trading, empty when
// unset.
func WalletPrivateKey() string {
	return os.Getenv("WALLET_PRIVATE_KEY")
}

// applyEnvOverrides lets env vars win over YAML where both are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SOLANA_RPC_ENDPOINT"); v != "" {
		cfg.Venue.SolanaRPCURL = v
	}
}

// setDefaults fills anything the YAML left empty.
func setDefaults(cfg *Config) {
	if cfg.Engine.IntervalSeconds <= 0 {
		cfg.Engine.IntervalSeconds = 60
	}
	if cfg.Engine.CallTimeoutSeconds <= 0 {
		cfg.Engine.CallTimeoutSeconds = 30
	}
	if cfg.API.DexScreenerBase == "" {
		cfg.API.DexScreenerBase = "https://api.dexscreener.com/latest/dex"
	}
	if cfg.API.JupiterPriceBase == "" {
		cfg.API.JupiterPriceBase = "https://lite-api.jup.ag/price/v2"
	}
	if cfg.API.CoinGeckoURL == "" {
		cfg.API.CoinGeckoURL = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"
	}
	if cfg.API.CoinbaseURL == "" {
		cfg.API.CoinbaseURL = "https://api.coinbase.com/v2/prices/SOL-USD/spot"
	}
	if cfg.Venue.JupiterQuoteURL == "" {
		cfg.Venue.JupiterQuoteURL = "https://api.jup.ag/swap/v1/quote"
	}
	if cfg.Venue.JupiterSwapURL == "" {
		cfg.Venue.JupiterSwapURL = "https://api.jup.ag/swap/v1/swap"
	}
	if cfg.Venue.SolanaRPCURL == "" {
		cfg.Venue.SolanaRPCURL = "https://api.mainnet-beta.solana.com"
	}
	if cfg.Venue.SendRetries <= 0 {
		cfg.Venue.SendRetries = 3
	}
	if cfg.Venue.HTTPTimeoutSeconds <= 0 {
		cfg.Venue.HTTPTimeoutSeconds = 10
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "solbot.db"
	}
	if cfg.Control.Path == "" {
		cfg.Control.Path = "bot_control.json"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
