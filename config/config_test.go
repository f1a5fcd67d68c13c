package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"-token-secret", "s3cret"})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Plan.Period)
	assert.Equal(t, 7*24*time.Hour, cfg.Plan.Grace)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 4, cfg.WebhookWorkers)
	assert.Equal(t, 256, cfg.WebhookQueue)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 5.0, cfg.RateLimit)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.False(t, cfg.TrustProxy)
}

func TestParseFlags(t *testing.T) {
	cfg, err := Parse([]string{
		"-token-secret", "x",
		"-host", "127.0.0.1",
		"-port", "9000",
		"-base-url", "https://forms.example.com/",
		"-cors-origins", "https://a.example, https://b.example",
		"-grace-days", "3",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "https://forms.example.com", cfg.BaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 3*24*time.Hour, cfg.Plan.Grace)
}

func TestParseEnvFallback(t *testing.T) {
	t.Setenv("LEADFORM_TOKEN_SECRET", "from-env")
	t.Setenv("LEADFORM_PORT", "7070")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.TokenSecret)
	assert.Equal(t, "0.0.0.0:7070", cfg.Addr)
}

func TestParseProxyAndRateLimitEnv(t *testing.T) {
	t.Setenv("LEADFORM_TOKEN_SECRET", "from-env")
	t.Setenv("LEADFORM_TRUST_PROXY", "true")
	t.Setenv("LEADFORM_RATE_LIMIT", "2.5")
	t.Setenv("LEADFORM_RATE_BURST", "7")
	t.Setenv("LEADFORM_WEBHOOK_QUEUE", "32")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 7, cfg.RateBurst)
	assert.Equal(t, 32, cfg.WebhookQueue)

	cfg, err = Parse([]string{"-trust-proxy=false", "-rate-burst", "3"})
	require.NoError(t, err)
	assert.False(t, cfg.TrustProxy, "flags win over the environment")
	assert.Equal(t, 3, cfg.RateBurst)
}

func TestParseRequiresSecret(t *testing.T) {
	t.Setenv("LEADFORM_TOKEN_SECRET", "")
	_, err := Parse(nil)
	assert.EqualError(t, err, "missing parameter -token-secret")
}
