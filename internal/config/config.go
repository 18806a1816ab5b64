// Package config loads the console's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/guseggert/pyconsole/internal/files"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the config file searched for from the working directory upward.
const FileName = ".pyconsole.yaml"

const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"

	ThemeDark  = "dark"
	ThemeLight = "light"
)

type Config struct {
	BackendURL  string `yaml:"backend_url"`
	Transport   string `yaml:"transport"`
	RetryMax    int    `yaml:"retry_max"`
	SaveDir     string `yaml:"save_dir"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"` // used by the TUI, which owns the terminal
	Theme       string `yaml:"theme"`
	EchoPrompts bool   `yaml:"echo_prompts"`

	// ResponseTimeout bounds the wait for a backend's response headers. Zero disables it.
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	// WaitTimeout is how long "run" waits for the backend to come up. Zero skips the wait.
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	Backend BackendConfig `yaml:"backend"`
}

// BackendConfig configures the reference backend started by "serve".
type BackendConfig struct {
	ListenAddr  string        `yaml:"listen_addr"`
	Interpreter []string      `yaml:"interpreter"`
	Settle      time.Duration `yaml:"settle"`
	// LogLevel raises the backend's log level above the global one. Empty keeps the global level.
	LogLevel string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		BackendURL:  "http://localhost:5000",
		Transport:   TransportHTTP,
		RetryMax:    3,
		SaveDir:     ".",
		LogLevel:    "info",
		LogFile:     "pyconsole.log",
		Theme:       ThemeDark,
		EchoPrompts: true,

		ResponseTimeout: 30 * time.Second,
		WaitTimeout:     10 * time.Second,

		Backend: BackendConfig{
			ListenAddr:  "127.0.0.1:5000",
			Interpreter: []string{"python3", "-u", "-c"},
			Settle:      300 * time.Millisecond,
		},
	}
}

// Find returns the path of the nearest config file at or above dir, or "" if there is none.
func Find(dir string) (string, error) {
	path, err := files.FindUp(FileName, dir)
	if err != nil {
		return "", fmt.Errorf("searching for %s: %w", FileName, err)
	}
	return path, nil
}

// Load reads the config at path over the defaults.
// An empty path, or a path that doesn't exist, yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config file %q: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("backend_url must be set")
	}
	switch c.Transport {
	case TransportHTTP, TransportWebSocket:
	default:
		return fmt.Errorf("unknown transport %q, expected %q or %q", c.Transport, TransportHTTP, TransportWebSocket)
	}
	switch c.Theme {
	case ThemeDark, ThemeLight:
	default:
		return fmt.Errorf("unknown theme %q, expected %q or %q", c.Theme, ThemeDark, ThemeLight)
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("retry_max must not be negative, got %d", c.RetryMax)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.ResponseTimeout < 0 {
		return fmt.Errorf("response_timeout must not be negative, got %s", c.ResponseTimeout)
	}
	if c.WaitTimeout < 0 {
		return fmt.Errorf("wait_timeout must not be negative, got %s", c.WaitTimeout)
	}
	if c.Backend.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.Backend.LogLevel); err != nil {
			return fmt.Errorf("backend.log_level: %w", err)
		}
	}
	if len(c.Backend.Interpreter) == 0 {
		return errors.New("backend.interpreter must not be empty")
	}
	if c.Backend.Settle <= 0 {
		return fmt.Errorf("backend.settle must be positive, got %s", c.Backend.Settle)
	}
	return nil
}
