// Package config loads suite configuration from a TOML file, an optional
// .env file and TODOMVC_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPort is the port the application under test is served on.
const DefaultPort = 8000

// Environment overrides.
const (
	EnvPort        = "TODOMVC_PORT"
	EnvHost        = "TODOMVC_HOST"
	EnvRoot        = "TODOMVC_ROOT"
	EnvDriver      = "TODOMVC_DRIVER"
	EnvHeadless    = "TODOMVC_HEADLESS"
	EnvSnapshotDir = "TODOMVC_SNAPSHOT_DIR"
	EnvSnapshotURL = "TODOMVC_SNAPSHOT_ENDPOINT"
	EnvSnapshotKey = "TODOMVC_SNAPSHOT_TOKEN"
	EnvLogLevel    = "TODOMVC_LOG_LEVEL"
)

// Config is the full suite configuration.
type Config struct {
	Server struct {
		Host string `toml:"host" validate:"required"`
		Port int    `toml:"port" validate:"min=0,max=65535"`
		Root string `toml:"root"`
	} `toml:"server"`
	Browser struct {
		Driver    string `toml:"driver" validate:"oneof=rod chromedp"`
		Headless  bool   `toml:"headless"`
		Bin       string `toml:"bin"`
		NoSandbox bool   `toml:"no_sandbox"`
		Width     int    `toml:"width" validate:"min=0"`
		Height    int    `toml:"height" validate:"min=0"`
	} `toml:"browser"`
	Display struct {
		Enabled bool   `toml:"enabled"`
		Num     int    `toml:"num" validate:"min=0"`
		Screen  string `toml:"screen"`
	} `toml:"display"`
	Run struct {
		StepTimeout     Duration `toml:"step_timeout"`
		ScenarioTimeout Duration `toml:"scenario_timeout"`
		Parallel        int      `toml:"parallel" validate:"min=1"`
		Builtin         bool     `toml:"builtin"`
		ScenarioFiles   []string `toml:"scenario_files"`
		Preflight       bool     `toml:"preflight"`
	} `toml:"run"`
	Snapshot struct {
		Dir      string `toml:"dir"`
		Endpoint string `toml:"endpoint" validate:"omitempty,url"`
		Token    string `toml:"token"`
	} `toml:"snapshot"`
	Log struct {
		Level string `toml:"level" validate:"oneof=trace debug info warn error"`
	} `toml:"log"`
	Metrics struct {
		File string `toml:"file"`
	} `toml:"metrics"`
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration time.Duration

// UnmarshalText parses "10s", "1m30s" and so on.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.Server.Host = "localhost"
	c.Server.Port = DefaultPort
	c.Browser.Driver = "rod"
	c.Browser.Headless = true
	c.Browser.NoSandbox = true
	c.Browser.Width = 1280
	c.Browser.Height = 720
	c.Display.Num = 99
	c.Display.Screen = "1280x720x24"
	c.Run.StepTimeout = Duration(10 * time.Second)
	c.Run.Parallel = 1
	c.Run.Builtin = true
	c.Run.Preflight = true
	c.Log.Level = "info"
	return &c
}

// Load builds the configuration: defaults, then the TOML file at path (if
// path is non-empty), then the .env file at envFile (if it exists), then
// TODOMVC_* variables. The result is validated.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if envFile != "" {
		// Variables already set in the environment win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvHost); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(EnvRoot); v != "" {
		c.Server.Root = v
	}
	if v := os.Getenv(EnvDriver); v != "" {
		c.Browser.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(EnvHeadless); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvHeadless, v, err)
		}
		c.Browser.Headless = b
	}
	if v := os.Getenv(EnvSnapshotDir); v != "" {
		c.Snapshot.Dir = v
	}
	if v := os.Getenv(EnvSnapshotURL); v != "" {
		c.Snapshot.Endpoint = v
	}
	if v := os.Getenv(EnvSnapshotKey); v != "" {
		c.Snapshot.Token = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Run.StepTimeout <= 0 {
		return errors.New("invalid config: run.step_timeout must be positive")
	}
	return nil
}

// ListenAddr returns the address the static server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// BaseURL returns the URL browsers load the application from.
func (c *Config) BaseURL() string {
	return "http://" + c.ListenAddr()
}
