package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("GO_ENV", "test")
		t.Setenv("DATABASE_URL", "")
		t.Setenv("PORT", "")
		t.Setenv("JWT_SECRET", "")
		t.Setenv("CORS_ALLOWED_ORIGINS", "")
		t.Setenv("CONTEXT_TIMEOUT", "")
		t.Setenv("SEAT_EVENTS_PROVIDER", "")
		t.Setenv("RABBITMQ_URL", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "test", cfg.Environment)
		assert.Contains(t, cfg.DBUrl, "claystudio")
		assert.Equal(t, "noop", cfg.SeatEventsProvider)
		assert.Equal(t, 5*time.Second, cfg.ContextTimeout)
		assert.Empty(t, cfg.CORSAllowedOrigins)
		assert.NotEmpty(t, cfg.JWTSecret)
	})

	t.Run("from environment", func(t *testing.T) {
		t.Setenv("GO_ENV", "test")
		t.Setenv("PORT", "9090")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://studio.example, http://localhost:3000 ,")
		t.Setenv("CONTEXT_TIMEOUT", "2s")
		t.Setenv("SEAT_EVENTS_PROVIDER", "RabbitMQ")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Port)
		assert.Equal(t, "s3cret", cfg.JWTSecret)
		assert.Equal(t, []string{"https://studio.example", "http://localhost:3000"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, 2*time.Second, cfg.ContextTimeout)
		assert.Equal(t, "rabbitmq", cfg.SeatEventsProvider)
	})

	t.Run("invalid timeout", func(t *testing.T) {
		t.Setenv("GO_ENV", "test")
		t.Setenv("CONTEXT_TIMEOUT", "soon")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("production requires jwt secret", func(t *testing.T) {
		t.Setenv("GO_ENV", "production")
		t.Setenv("JWT_SECRET", "")
		t.Setenv("CONTEXT_TIMEOUT", "")

		_, err := Load()
		require.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
