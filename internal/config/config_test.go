package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
log:
  level: debug
server:
  addr: ":9000"
display:
  name: lobby
  refresh_every: 90s
  broker: tcp://192.168.1.200:1883
  button_pin: 17
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "./data", cfg.Server.DataDir, "unset keys keep defaults")
	assert.Equal(t, "lobby", cfg.Display.Name)
	assert.Equal(t, 90*time.Second, cfg.Display.RefreshEvery)
	assert.Equal(t, 17, cfg.Display.ButtonPin)
	assert.Equal(t, 10*time.Second, cfg.Display.FetchTimeout)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "display:\n  refresh: 5m\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLogFormat(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "console", cfg.LogFormat())

	cfg.Environment = EnvProduction
	assert.Equal(t, "json", cfg.LogFormat())

	cfg.Log.Format = "console"
	assert.Equal(t, "console", cfg.LogFormat())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative rate limit", func(c *Config) { c.Server.WriteRateLimit = -1 }, "write_rate_limit"},
		{"rate limit without window", func(c *Config) { c.Server.WriteRateWindow = 0 }, "write_rate_window"},
		{"wildcard in name", func(c *Config) { c.Display.Name = "lobby/+" }, "display.name"},
		{"empty name", func(c *Config) { c.Display.Name = "" }, "display.name"},
		{"server url without scheme", func(c *Config) { c.Display.ServerURL = "localhost:3000" }, "server_url"},
		{"zero refresh", func(c *Config) { c.Display.RefreshEvery = 0 }, "refresh_every"},
		{"zero fetch timeout", func(c *Config) { c.Display.FetchTimeout = 0 }, "fetch_timeout"},
		{"bad broker", func(c *Config) { c.Display.Broker = "192.168.1.200" }, "display.broker"},
		{"negative heartbeat", func(c *Config) { c.Display.Heartbeat = -time.Second }, "heartbeat"},
		{"button without poll", func(c *Config) { c.Display.ButtonPin = 17; c.Display.ButtonPoll = 0 }, "button_poll"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Display.Name = ""
	cfg.Display.RefreshEvery = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "display.name")
	assert.Contains(t, err.Error(), "refresh_every")
}

func TestDisabledButtonSkipsButtonChecks(t *testing.T) {
	cfg := Default()
	cfg.Display.ButtonPin = -1
	cfg.Display.ButtonPoll = 0
	assert.NoError(t, cfg.Validate())
}
