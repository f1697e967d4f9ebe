package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test.
// Equivalent to t.Chdir, which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, "8000", cfg.Server.Port)
	require.Equal(t, "mistral-small", cfg.LLM.Model)
	require.Equal(t, "https://docs.getgrist.com/api", cfg.Docs.BaseURL)
	require.True(t, cfg.History.Enabled)
	require.Equal(t, 5, cfg.History.MaxMessages)
	require.False(t, cfg.History.IncludeSystem)
	require.Equal(t, "requests.db", cfg.Store.Path)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  host: 127.0.0.1
  port: "9000"
llm:
  base_url: http://llm.local/v1
  api_key: secret
  model: big-model
history:
  enabled: false
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, "9000", cfg.Server.Port)
	require.Equal(t, "http://llm.local/v1", cfg.LLM.BaseURL)
	require.Equal(t, "big-model", cfg.LLM.Model)
	require.False(t, cfg.History.Enabled)
	require.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep their defaults.
	require.Equal(t, "requests.db", cfg.Store.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GRIDCHAT_LLM_MODEL", "env-model")
	t.Setenv("GRIDCHAT_SERVER_PORT", "9999")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "env-model", cfg.LLM.Model)
	require.Equal(t, "9999", cfg.Server.Port)
}
