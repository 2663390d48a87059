package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	// empty values count as unset
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, "BLOOMPLAN_") {
			t.Setenv(k, "")
		}
	}
}

func TestLoadConfig_FlagsOverEnv(t *testing.T) {
	clearEnv(t)
	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte("BLOOMPLAN_SERVER_JWT_KEY=from-env\nBLOOMPLAN_SERVER_ADDR=:9000\n"), 0o600))
	t.Setenv("BLOOMPLAN_SERVER_ACCESS_TTL", "1h")

	cfg, err := loadConfig([]string{"--env-file", env, "--addr", ":7000", "--plaintext"})
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.JWTKey)
	require.Equal(t, ":7000", cfg.Addr)
	require.Equal(t, time.Hour, cfg.AccessTTL)
	require.True(t, cfg.Plaintext)
}

func TestLoadConfig_Invalid(t *testing.T) {
	clearEnv(t)
	_, err := loadConfig([]string{"--env-file", ""})
	require.ErrorContains(t, err, "jwt")

	_, err = loadConfig([]string{"--env-file", "", "--bogus"})
	require.Error(t, err)
}

func TestNewLogger_File(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "server.log")
	cfg, err := loadConfig([]string{"--env-file", "", "--jwt-key", "k", "--log-file", file})
	require.NoError(t, err)

	log, closeFn, err := newLogger(cfg)
	require.NoError(t, err)
	log.Info("started")
	closeFn()

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(b), "started")
}
