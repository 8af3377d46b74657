// Package config loads the signage configuration: defaults, overlaid by an
// optional YAML file, overlaid by command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full configuration for both the server and display
// commands.
type Config struct {
	Environment string        `yaml:"environment"`
	Log         LogConfig     `yaml:"log"`
	Server      ServerConfig  `yaml:"server"`
	Display     DisplayConfig `yaml:"display"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json; empty picks by environment
}

// ServerConfig configures the content server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	DataDir   string `yaml:"data_dir"`
	AssetsDir string `yaml:"assets_dir"`

	// WriteRateLimit mutating requests per WriteRateWindow per client.
	// Zero disables the limit.
	WriteRateLimit  int           `yaml:"write_rate_limit"`
	WriteRateWindow time.Duration `yaml:"write_rate_window"`

	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// DisplayConfig configures a display client.
type DisplayConfig struct {
	Name         string        `yaml:"name"`
	ServerURL    string        `yaml:"server_url"`
	HTTPAddr     string        `yaml:"http_addr"` // empty disables the status server
	RefreshEvery time.Duration `yaml:"refresh_every"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	Broker     string        `yaml:"broker"` // empty disables MQTT
	Heartbeat  time.Duration `yaml:"heartbeat"`
	BufferSize int           `yaml:"mqtt_buffer"`

	ButtonPin      int           `yaml:"button_pin"` // negative disables the button
	ButtonPoll     time.Duration `yaml:"button_poll"`
	ButtonDebounce time.Duration `yaml:"button_debounce"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environment: EnvDevelopment,
		Log:         LogConfig{Level: "info"},
		Server: ServerConfig{
			Addr:            ":3000",
			DataDir:         "./data",
			AssetsDir:       "./public/assets",
			WriteRateLimit:  60,
			WriteRateWindow: time.Minute,
			WatchDebounce:   500 * time.Millisecond,
		},
		Display: DisplayConfig{
			Name:           "display",
			ServerURL:      "http://localhost:3000",
			HTTPAddr:       ":8080",
			RefreshEvery:   5 * time.Minute,
			FetchTimeout:   10 * time.Second,
			Heartbeat:      15 * time.Minute,
			BufferSize:     200,
			ButtonPin:      -1,
			ButtonPoll:     20 * time.Millisecond,
			ButtonDebounce: 50 * time.Millisecond,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected. The result is not validated; call Validate
// after applying flag overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LogFormat resolves the configured format, defaulting to console output
// in development and JSON elsewhere.
func (c Config) LogFormat() string {
	if c.Log.Format != "" {
		return c.Log.Format
	}
	if c.Environment == EnvDevelopment {
		return "console"
	}
	return "json"
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		add("log.format must be console or json, got %q", c.Log.Format)
	}

	if c.Server.WriteRateLimit < 0 {
		add("server.write_rate_limit must not be negative")
	}
	if c.Server.WriteRateLimit > 0 && c.Server.WriteRateWindow <= 0 {
		add("server.write_rate_window must be positive when a rate limit is set")
	}
	if c.Server.WatchDebounce < 0 {
		add("server.watch_debounce must not be negative")
	}

	d := c.Display
	if d.Name == "" || strings.ContainsAny(d.Name, "/+#") {
		add("display.name %q must be non-empty and must not contain '/', '+' or '#'", d.Name)
	}
	if u, err := url.Parse(d.ServerURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("display.server_url %q must be an http(s) URL", d.ServerURL)
	}
	if d.RefreshEvery <= 0 {
		add("display.refresh_every must be positive")
	}
	if d.FetchTimeout <= 0 {
		add("display.fetch_timeout must be positive")
	}
	if d.Broker != "" {
		if u, err := url.Parse(d.Broker); err != nil || u.Scheme == "" || u.Host == "" {
			add("display.broker %q must be a URL like tcp://host:1883", d.Broker)
		}
	}
	if d.Heartbeat < 0 {
		add("display.heartbeat must not be negative")
	}
	if d.ButtonPin >= 0 {
		if d.ButtonPoll <= 0 {
			add("display.button_poll must be positive when the button is enabled")
		}
		if d.ButtonDebounce < 0 {
			add("display.button_debounce must not be negative")
		}
	}

	return errors.Join(errs...)
}
