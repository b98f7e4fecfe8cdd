package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bagwatch/internal/detection"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, detection.DefaultUpdateAuthority, cfg.UpdateAuthority)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 3, cfg.PollSignatureLimit)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 10*time.Second, cfg.AdapterTimeout)
	assert.Equal(t, 50.0, cfg.MaxRoyaltyPercent)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RPC_ENDPOINT", "https://rpc.example")
	t.Setenv("POLL_INTERVAL_SECONDS", "7")
	t.Setenv("MAX_ROYALTY_PERCENT", "80")
	t.Setenv("POLL_SIGNATURE_LIMIT", "not-a-number")

	cfg := Load()

	assert.Equal(t, "https://rpc.example", cfg.RPCEndpoint)
	assert.Equal(t, 7*time.Second, cfg.PollInterval)
	assert.Equal(t, 80.0, cfg.MaxRoyaltyPercent)
	// Unparseable values fall back to the default.
	assert.Equal(t, 3, cfg.PollSignatureLimit)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"missing rpc", func(c *Config) { c.RPCEndpoint = "" }, false},
		{"missing ws", func(c *Config) { c.WSEndpoint = "" }, false},
		{"missing authority", func(c *Config) { c.UpdateAuthority = "" }, false},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, false},
		{"zero signature limit", func(c *Config) { c.PollSignatureLimit = 0 }, false},
		{"royalty over 100", func(c *Config) { c.MaxRoyaltyPercent = 150 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
