package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.SunatPollInterval)
	assert.Equal(t, 300*time.Second, cfg.SunatTimeout)
	assert.Equal(t, DefaultEncryptionSalt, cfg.EncryptionSalt)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SUNAT_MOCK", "true")
	t.Setenv("SUNAT_POLL_INTERVAL", "2s")
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.SunatMock)
	assert.Equal(t, 2*time.Second, cfg.SunatPollInterval)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.IsProduction())
}
