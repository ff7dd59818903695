package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultListenAddr      = "127.0.0.1:3000"
	DefaultDataDir         = "./data"
	DefaultLogLevel        = "info"
	DefaultPricePerByte    = 1.0 / (1024 * 1024) // 1 sat per MiB
	DefaultStorageDuration = 24 * 60 * 60        // seconds
	DefaultPruneInterval   = 60 * 60             // seconds
	DefaultPayoutInterval  = 60 * 60             // seconds
	DefaultPayoutThreshold = 1000                // sats

	configPathEnvKey    = "SATSTASH_CONFIG"
	dataDirEnvKey       = "SATSTASH_DATA_DIR"
	listenAddrEnvKey    = "SATSTASH_LISTEN_ADDR"
	payoutRequestEnvKey = "SATSTASH_PAYOUT_REQUEST"
	nostrKeyEnvKey      = "SATSTASH_PAYOUT_NOSTR_KEY"
	walletURLEnvKey     = "SATSTASH_WALLET_URL"
	pricePerByteEnvKey  = "SATSTASH_PRICE_PER_BYTE"

	defaultConfigFileName = "satstash.toml"
)

// Config defines runtime configuration for satstash.
type Config struct {
	ListenAddr string `toml:"listen_addr"`
	DataDir    string `toml:"data_dir"`
	PublicURL  string `toml:"public_url"`
	LogLevel   string `toml:"log_level"`

	PricePerByte        float64 `toml:"price_per_byte"`
	StorageDurationSecs int64   `toml:"storage_duration"`

	PruneIntervalSecs int64 `toml:"prune_interval"`

	PayoutIntervalSecs int64  `toml:"payout_interval"`
	PayoutThreshold    uint64 `toml:"payout_threshold"`
	PayoutRequest      string `toml:"payout_request"`
	PayoutNostrKey     string `toml:"payout_nostr_key"`

	WalletURL string `toml:"wallet_url"`

	AdminPasswordHash string `toml:"admin_password_hash"`

	// Path is where the config was loaded from, empty when defaults only.
	Path string `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		ListenAddr:          DefaultListenAddr,
		DataDir:             DefaultDataDir,
		LogLevel:            DefaultLogLevel,
		PricePerByte:        DefaultPricePerByte,
		StorageDurationSecs: DefaultStorageDuration,
		PruneIntervalSecs:   DefaultPruneInterval,
		PayoutIntervalSecs:  DefaultPayoutInterval,
		PayoutThreshold:     DefaultPayoutThreshold,
	}
}

// Load reads configuration from the config file (SATSTASH_CONFIG or
// ./satstash.toml) and applies environment overrides on top of defaults.
func Load() (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(os.Getenv(configPathEnvKey))
	explicit := path != ""
	if path == "" {
		path = defaultConfigFileName
	}

	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.Path = path
	case err != nil && !os.IsNotExist(err):
		return cfg, err
	case explicit:
		return cfg, fmt.Errorf("config file %s not found", path)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(dataDirEnvKey)); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(listenAddrEnvKey)); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(payoutRequestEnvKey)); v != "" {
		cfg.PayoutRequest = v
	}
	if v := strings.TrimSpace(os.Getenv(nostrKeyEnvKey)); v != "" {
		cfg.PayoutNostrKey = v
	}
	if v := strings.TrimSpace(os.Getenv(walletURLEnvKey)); v != "" {
		cfg.WalletURL = v
	}
	if v := strings.TrimSpace(os.Getenv(pricePerByteEnvKey)); v != "" {
		if price, err := strconv.ParseFloat(v, 64); err == nil && price > 0 {
			cfg.PricePerByte = price
		}
	}
}

// Validate checks that values a running server depends on are sane.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.PricePerByte <= 0 {
		return fmt.Errorf("price_per_byte must be positive")
	}
	if c.StorageDurationSecs <= 0 {
		return fmt.Errorf("storage_duration must be positive")
	}
	if c.PruneIntervalSecs <= 0 || c.PayoutIntervalSecs <= 0 {
		return fmt.Errorf("prune_interval and payout_interval must be positive")
	}
	if strings.TrimSpace(c.PayoutRequest) == "" {
		return fmt.Errorf("payout_request is required (set payout_request or %s)", payoutRequestEnvKey)
	}
	return nil
}

// BlobDir is the blob payload directory under the data dir.
func (c Config) BlobDir() string {
	return filepath.Join(c.DataDir, "blobs")
}

// DBPath is the sqlite ledger path under the data dir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "storage.db")
}

// StorageDuration is how long an accepted upload is kept.
func (c Config) StorageDuration() time.Duration {
	return time.Duration(c.StorageDurationSecs) * time.Second
}

// PruneInterval is the expiry sweep period.
func (c Config) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalSecs) * time.Second
}

// PayoutInterval is the payout reconciliation period.
func (c Config) PayoutInterval() time.Duration {
	return time.Duration(c.PayoutIntervalSecs) * time.Second
}
