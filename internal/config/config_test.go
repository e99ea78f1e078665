package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creditors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := writeFile(t, `
server_url: https://demo.example.com/creditors/1/wallet
database: /tmp/wallet.db
sync:
  max_parallel_fetches: 4
tasks:
  retry_delay: 30m
`)
	cfg, err := LoadWithEnv(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "https://demo.example.com/creditors/1/wallet", cfg.ServerURL)
	assert.Equal(t, "/tmp/wallet.db", cfg.Database)
	assert.Equal(t, 4, cfg.Sync.MaxParallelFetches)
	assert.Equal(t, 30*time.Minute, cfg.Tasks.RetryDelay)
	// Untouched settings keep their defaults.
	assert.Equal(t, Default().Sync.PageTimeout, cfg.Sync.PageTimeout)
	assert.Equal(t, Default().Tasks.BatchSize, cfg.Tasks.BatchSize)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeFile(t, "database: file.db\n")
	cfg, err := LoadWithEnv(path, env(map[string]string{
		EnvDatabase:  "env.db",
		EnvToken:     "secret",
		EnvDebug:     "true",
		EnvServerURL: "https://other.example.com/wallet",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://other.example.com/wallet", cfg.ServerURL)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"unknown field", "databse: x.db\n", nil},
		{"bad level", "log_level: loud\n", nil},
		{"zero parallelism", "sync:\n  max_parallel_fetches: 0\n", nil},
		{"bad server url", "server_url: ftp://example.com\n", nil},
		{"empty database", "database: \"\"\n", nil},
		{"both token sources", "token: a\ntoken_file: /tmp/t\n", nil},
		{"bad debug flag", "", map[string]string{EnvDebug: "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithEnv(writeFile(t, tt.content), env(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestResolveToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("abc.def.ghi\n"), 0o600))

	token, err := Config{TokenFile: path}.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	token, err = Config{Token: "inline"}.ResolveToken()
	require.NoError(t, err)
	assert.Equal(t, "inline", token)
}
