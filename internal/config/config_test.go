package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "MONGO_URI", "DB_NAME", "JWT_SECRET", "ACCESS_TOKEN_TTL", "REDIS_URL", "IDEMPOTENCY_TTL", "KAFKA_TOPIC", "OTEL_TRACES_STDOUT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "uglies", cfg.DBName)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "uglies.events", cfg.KafkaTopic)
	assert.False(t, cfg.TraceStdout)
	assert.Equal(t, 20.0, cfg.RateLimitRPS)
	assert.Equal(t, 40, cfg.RateLimitBurst)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "15")
	t.Setenv("IDEMPOTENCY_TTL", "not-a-number")
	t.Setenv("OTEL_TRACES_STDOUT", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("PUBLIC_BASE_URL", "https://cdn.example.com/")

	cfg := Load()
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.True(t, cfg.TraceStdout)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, "https://cdn.example.com", cfg.PublicBaseURL)
}

func TestValidate(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
	assert.Contains(t, err.Error(), "JWT_SECRET")

	assert.NoError(t, Config{MongoURI: "mongodb://localhost", JWTSecret: "s"}.Validate())
}
