package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads, restoring them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "LOG_LEVEL", "DATABASE_TYPE", "DATABASE_URL",
		"JWT_SECRET", "TOKEN_TTL", "UPI_CURRENCY", "UPI_NOTE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "fairshare.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
log_level: debug
database:
  type: postgres
  url: postgres://localhost/fairshare
auth:
  jwt_secret: from-file
  token_ttl: 2h
upi:
  note: Trip Payment
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DatabasePostgres, cfg.Database.Type)
	assert.Equal(t, "postgres://localhost/fairshare", cfg.Database.URL)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "INR", cfg.UPI.Currency)
	assert.Equal(t, "Trip Payment", cfg.UPI.Note)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)

	require.NoError(t, os.WriteFile(".env", []byte("DATABASE_TYPE=memory\nUPI_CURRENCY=USD\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_TYPE")
		os.Unsetenv("UPI_CURRENCY")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DatabaseMemory, cfg.Database.Type)
	assert.Equal(t, "USD", cfg.UPI.Currency)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad port", env: map[string]string{"PORT": "eighty"}},
		{name: "port out of range", env: map[string]string{"PORT": "70000"}},
		{name: "bad ttl", env: map[string]string{"TOKEN_TTL": "forever"}},
		{name: "zero ttl", env: map[string]string{"TOKEN_TTL": "0s"}},
		{name: "unknown database", env: map[string]string{"DATABASE_TYPE": "mongo"}},
		{name: "unknown yaml key", file: "databse:\n  type: memory\n"},
		{name: "missing file", env: map[string]string{"CONFIG_FILE": "does-not-exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o600))
				t.Setenv("CONFIG_FILE", path)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
