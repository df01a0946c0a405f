package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, env, body string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", env+".yaml"), []byte(body), 0o600))

	t.Chdir(dir)
	t.Setenv("APP_ENV", env)
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	writeConfig(t, "test", "logger:\n  level: warn\n")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DIALOG_MAX_ACTIVE_ORDERS", "7")

	cfg, v, err := Load()
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, "123:abc", cfg.Bot.Token)
	assert.Equal(t, "polling", cfg.Bot.Mode)
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Dialog.MinTaskLength)
	assert.Equal(t, 7, cfg.Dialog.MaxActiveOrders)
	assert.Equal(t, 3, cfg.Dialog.MaxPhoneAttempts)
	assert.Equal(t, 6*time.Hour, cfg.Cleanup.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Cleanup.MaxAge)
	assert.False(t, cfg.IsProduction())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{
			name: "missing token",
			body: "bot:\n  mode: polling\n",
			env:  map[string]string{"BOT_TOKEN": ""},
		},
		{
			name: "webhook without url",
			body: "bot:\n  mode: webhook\n",
			env:  map[string]string{"BOT_TOKEN": "x"},
		},
		{
			name: "unknown notify channel",
			body: "notify:\n  channel: pigeon\n",
			env:  map[string]string{"BOT_TOKEN": "x"},
		},
		{
			name: "telegram channel without chat",
			body: "notify:\n  channel: telegram\n",
			env:  map[string]string{"BOT_TOKEN": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, "test", tt.body)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, _, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validate config")
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "nowhere")

	_, _, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
