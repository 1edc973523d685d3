package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/einvoice-gateway/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "einvoice-gateway", cfg.App.Name)
	assert.Equal(t, "test", cfg.ANAF.Environment)
	assert.Equal(t, 60*time.Second, cfg.ANAF.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 10, cfg.DB.MaxConns)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("ANAF_ENVIRONMENT", "prod")
	t.Setenv("ANAF_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("WORKER_LEASE", "90")
	t.Setenv("KSEF_TIMEOUT", "45s")
	t.Setenv("DB_PORT", "6543")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.ANAF.Environment)
	assert.InDelta(t, 2.5, cfg.ANAF.RequestsPerSecond, 0.0001)
	assert.Equal(t, 90*time.Second, cfg.Worker.Lease)
	assert.Equal(t, 45*time.Second, cfg.KSeF.Timeout)
	assert.Equal(t, 6543, cfg.DB.Port)
}

func TestLoad_RejectsUnknownAnafEnvironment(t *testing.T) {
	t.Setenv("ANAF_ENVIRONMENT", "staging")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestDBConfig_ConnectionString(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss/word", DBName: "einvoice", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/einvoice?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}
