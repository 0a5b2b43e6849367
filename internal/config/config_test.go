package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("COOPER_JWT_SECRET", "0123456789abcdef")
	t.Setenv("COOPER_PROVIDER_BASE_URL", "https://provider.example")
	t.Setenv("COOPER_PROVIDER_API_KEY", "key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "USD", cfg.Provider.Currency)
	assert.Equal(t, 10*time.Second, cfg.Provider.Timeout)
	assert.EqualValues(t, 5, cfg.Provider.BreakerFailures)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.ReleaseLease)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("COOPER_PROVIDER_TIMEOUT", "3s")
	t.Setenv("COOPER_SWEEP_INTERVAL", "15s")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := &Config{
		JWTSecret:     "short",
		JWTTTL:        time.Hour,
		DBPath:        "x.db",
		Provider:      ProviderConfig{BaseURL: "not a url", Timeout: time.Second},
		SweepInterval: time.Minute,
		SweepBatch:    10,
		ReleaseLease:  time.Minute,
		LogFormat:     "yaml",
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"COOPER_JWT_SECRET",
		"COOPER_PROVIDER_BASE_URL must be an absolute URL",
		"COOPER_PROVIDER_API_KEY is required",
		"LOG_FORMAT",
	} {
		assert.Contains(t, err.Error(), want)
	}
	assert.NotContains(t, err.Error(), "COOPER_SWEEP_INTERVAL")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("COOPER_JWT_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateReleaseLeaseCoversProviderTimeout(t *testing.T) {
	tests := []struct {
		name    string
		lease   time.Duration
		timeout time.Duration
		wantErr bool
	}{
		{"lease shorter than timeout", time.Second, 10 * time.Second, true},
		{"lease equal to timeout", 10 * time.Second, 10 * time.Second, true},
		{"lease just under twice timeout", 19 * time.Second, 10 * time.Second, true},
		{"lease twice timeout", 20 * time.Second, 10 * time.Second, false},
		{"defaults", 5 * time.Minute, 10 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				JWTSecret:     "0123456789abcdef",
				JWTTTL:        time.Hour,
				DBPath:        "x.db",
				Provider:      ProviderConfig{BaseURL: "https://provider.example", APIKey: "key", Timeout: tt.timeout},
				SweepInterval: time.Minute,
				SweepBatch:    10,
				ReleaseLease:  tt.lease,
				LogFormat:     "text",
			}
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "COOPER_RELEASE_LEASE must be at least twice COOPER_PROVIDER_TIMEOUT")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadRejectsShortReleaseLease(t *testing.T) {
	setRequired(t)
	t.Setenv("COOPER_RELEASE_LEASE", "5s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COOPER_RELEASE_LEASE")
}
