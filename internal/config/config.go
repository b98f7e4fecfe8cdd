// Package config loads runtime configuration from environment variables,
// with a .env file honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"bagwatch/internal/detection"
)

// Config holds the watcher's runtime configuration.
type Config struct {
	// RPCEndpoint is the Solana HTTP JSON-RPC endpoint.
	RPCEndpoint string

	// WSEndpoint is the Solana WebSocket endpoint.
	WSEndpoint string

	// UpdateAuthority is the launchpad metadata update authority to watch.
	UpdateAuthority string

	// PollInterval is the safety-net polling cadence.
	PollInterval time.Duration

	// PollSignatureLimit is how many recent signatures each poll fetches.
	PollSignatureLimit int

	// ReconnectDelay is the initial WebSocket reconnect delay.
	ReconnectDelay time.Duration

	// AdapterTimeout bounds each metadata adapter attempt.
	AdapterTimeout time.Duration

	// MaxRoyaltyPercent is the ceiling for accepted royalty values.
	MaxRoyaltyPercent float64

	// MetricsAddr is the listen address for /metrics and /health.
	MetricsAddr string

	// LogLevel is the logrus level name.
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		RPCEndpoint:        getEnv("RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
		WSEndpoint:         getEnv("WS_ENDPOINT", "wss://api.mainnet-beta.solana.com"),
		UpdateAuthority:    getEnv("BAGS_UPDATE_AUTHORITY", detection.DefaultUpdateAuthority),
		PollInterval:       time.Duration(getEnvAsInt("POLL_INTERVAL_SECONDS", 30)) * time.Second,
		PollSignatureLimit: getEnvAsInt("POLL_SIGNATURE_LIMIT", 3),
		ReconnectDelay:     time.Duration(getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)) * time.Second,
		AdapterTimeout:     time.Duration(getEnvAsInt("ADAPTER_TIMEOUT_SECONDS", 10)) * time.Second,
		MaxRoyaltyPercent:  getEnvAsFloat("MAX_ROYALTY_PERCENT", 50),
		MetricsAddr:        getEnv("METRICS_ADDR", ":9090"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("RPC_ENDPOINT is required")
	}
	if c.WSEndpoint == "" {
		return fmt.Errorf("WS_ENDPOINT is required")
	}
	if c.UpdateAuthority == "" {
		return fmt.Errorf("BAGS_UPDATE_AUTHORITY is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if c.PollSignatureLimit <= 0 {
		return fmt.Errorf("POLL_SIGNATURE_LIMIT must be positive")
	}
	if c.MaxRoyaltyPercent <= 0 || c.MaxRoyaltyPercent > 100 {
		return fmt.Errorf("MAX_ROYALTY_PERCENT must be in (0, 100]")
	}
	return nil
}

// Helper: get string from env
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Helper: get int from env
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

// Helper: get float from env
func getEnvAsFloat(key string, defaultVal float64) float64 {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return defaultVal
	}
	return val
}
