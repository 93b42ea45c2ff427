// Package config centralizes the process-wide chain and wallet paths as
// configuration rather than hard-coded constants, loading overrides from a
// local .env file via godotenv so that parallel test processes and
// deployments can point at distinct data directories.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	// DefaultDataDir is the default chain store directory name.
	DefaultDataDir = "btc_data"

	// DefaultWalletFile is the default wallet bag path.
	DefaultWalletFile = "./wallet.dat"
)

const (
	envDataDir    = "BTC_DATA_DIR"
	envWalletFile = "BTC_WALLET_FILE"
)

// Config holds the process-wide paths used by the chain store and wallet.
type Config struct {
	DataDir    string
	WalletFile string
}

// Load reads a .env file if present (ignoring its absence) and returns a
// Config built from BTC_DATA_DIR / BTC_WALLET_FILE, falling back to the
// package defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		DataDir:    DefaultDataDir,
		WalletFile: DefaultWalletFile,
	}

	if v := os.Getenv(envDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(envWalletFile); v != "" {
		cfg.WalletFile = v
	}

	return cfg
}
