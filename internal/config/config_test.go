package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	// Set required env vars
	setEnv(t, "RAZORPAY_KEY_ID", "rzp_test_abc123")
	setEnv(t, "RAZORPAY_KEY_SECRET", "secret123")
	setEnv(t, "PORT", "9090")
	setEnv(t, "SWEEP_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DefaultHoldPeriodDays, cfg.HoldPeriodDays)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.False(t, cfg.StripeEnabled())
}

func TestLoad_MissingRazorpayCredentials(t *testing.T) {
	setEnv(t, "RAZORPAY_KEY_ID", "")
	setEnv(t, "RAZORPAY_KEY_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "RAZORPAY_KEY_ID")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		RazorpayKeyID:     "rzp_test_abc123",
		RazorpayKeySecret: "secret123",
		HoldPeriodDays:    7,
		SweepInterval:     5 * time.Minute,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing razorpay secret",
			mutate:  func(c *Config) { c.RazorpayKeySecret = "" },
			wantErr: "RAZORPAY_KEY_ID",
		},
		{
			name:    "stripe key without signing secret",
			mutate:  func(c *Config) { c.StripeAPIKey = "sk_test_abc" },
			wantErr: "STRIPE_SIGNING_SECRET",
		},
		{
			name:    "zero hold period",
			mutate:  func(c *Config) { c.HoldPeriodDays = 0 },
			wantErr: "HOLD_PERIOD_DAYS",
		},
		{
			name:    "sweep interval too short",
			mutate:  func(c *Config) { c.SweepInterval = 100 * time.Millisecond },
			wantErr: "SWEEP_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_StripeEnabled(t *testing.T) {
	cfg := &Config{StripeAPIKey: "sk_test_abc", StripeSigningSecret: "whsec_1"}
	assert.True(t, cfg.StripeEnabled())

	cfg.StripeAPIKey = ""
	assert.False(t, cfg.StripeEnabled())
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvDuration(t *testing.T) {
	setEnv(t, "TEST_DUR", "90s")
	setEnv(t, "TEST_DUR_INVALID", "ninety")

	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DUR", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("NONEXISTENT_VAR", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DUR_INVALID", time.Minute))
}
