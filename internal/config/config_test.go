package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
data:
  root: /srv/calendars
output:
  root: /srv/www
timezone: America/Chicago
log:
  level: debug
daemon:
  schedule: "0 5 * * 1-5"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/calendars", cfg.Data.Root)
	assert.Equal(t, "/srv/www", cfg.Output.Root)
	assert.Equal(t, "static", cfg.Output.StaticDir)
	assert.Equal(t, "America/Chicago", cfg.Timezone)
	assert.Equal(t, "debug", cfg.Log.GetLevel())
	assert.Equal(t, "0 5 * * 1-5", cfg.Daemon.GetSchedule())
	assert.True(t, cfg.Daemon.RunOnStart)
	assert.Equal(t, ":8080", cfg.Server.GetListen())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", loc.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "timezone: America/Chicago\n")
	t.Setenv("SCHOOL_STATUS_TIMEZONE", "UTC")
	t.Setenv("SCHOOL_STATUS_SERVER_LISTEN", "127.0.0.1:9000")
	t.Setenv("CAL_HOME", "/opt/cal")
	t.Setenv("SCHOOL_STATUS_DATA_ROOT", "$CAL_HOME/data")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.GetListen())
	assert.Equal(t, "/opt/cal/data", cfg.Data.Root)
}

func TestLoad_RemoteURL(t *testing.T) {
	cfg, err := Load(writeConfig(t, "data:\n  remote_url: https://calendars.example.org/data\n  http_timeout: 3s\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://calendars.example.org/data", cfg.Data.RemoteURL)
	assert.Equal(t, 3*time.Second, cfg.Data.GetHTTPTimeout())
	assert.Equal(t, "data", cfg.Data.Root)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown timezone", "timezone: Mars/Olympus_Mons\n"},
		{"bad level", "log:\n  level: chatty\n"},
		{"bad schedule", "daemon:\n  schedule: every night\n"},
		{"bad shutdown timeout", "server:\n  shutdown_timeout: soon\n"},
		{"empty data root", "data:\n  root: \"\"\n"},
		{"remote url without scheme", "data:\n  remote_url: calendars.example.org\n"},
		{"bad http timeout", "data:\n  http_timeout: fast\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestGetters_Defaults(t *testing.T) {
	var cfg Config

	assert.Equal(t, "info", cfg.Log.GetLevel())
	assert.Equal(t, "5 0 * * *", cfg.Daemon.GetSchedule())
	assert.Equal(t, ":8080", cfg.Server.GetListen())
	assert.Equal(t, 10*time.Second, cfg.Server.GetShutdownTimeout())
	assert.Equal(t, 10*time.Second, cfg.Data.GetHTTPTimeout())

	cfg.Data.HTTPTimeout = "2s"
	assert.Equal(t, 2*time.Second, cfg.Data.GetHTTPTimeout())

	cfg.Server.ShutdownTimeout = "30s"
	assert.Equal(t, 30*time.Second, cfg.Server.GetShutdownTimeout())
	cfg.Server.ShutdownTimeout = "garbage"
	assert.Equal(t, 10*time.Second, cfg.Server.GetShutdownTimeout())
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	require.NoError(t, WriteDefault(path, false))
	assert.Error(t, WriteDefault(path, false), "existing file must not be replaced")
	require.NoError(t, WriteDefault(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
