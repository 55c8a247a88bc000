package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("HOLD_TTL", "")
	t.Setenv("PENDING_ORDER_TTL", "")
	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("PORT", "")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 10*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 24*time.Hour, cfg.PendingOrderTTL)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
}

func TestLoad_Durations(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("HOLD_TTL", "5m")
	t.Setenv("PENDING_ORDER_TTL", "48h")
	t.Setenv("SWEEP_INTERVAL", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 48*time.Hour, cfg.PendingOrderTTL)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "jwt secret missing", env: map[string]string{"JWT_SECRET": ""}, want: "JWT_SECRET"},
		{name: "bad driver", env: map[string]string{"STORE_DRIVER": "sqlite"}, want: "STORE_DRIVER"},
		{name: "bad duration", env: map[string]string{"HOLD_TTL": "ten"}, want: "HOLD_TTL"},
		{name: "pending shorter than hold", env: map[string]string{"HOLD_TTL": "2h", "PENDING_ORDER_TTL": "1h"}, want: "PENDING_ORDER_TTL"},
		{name: "postgres without credentials", env: map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": "", "POSTGRES_PASSWORD": ""}, want: "DATABASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
