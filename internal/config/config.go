package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for commentflow.
type Config struct {
	General   GeneralConfig   `json:"general" yaml:"general"`
	Browser   BrowserConfig   `json:"browser" yaml:"browser"`
	Prefs     PrefsConfig     `json:"prefs" yaml:"prefs"`
	Extractor ExtractorConfig `json:"extractor" yaml:"extractor"`
	Delivery  DeliveryConfig  `json:"delivery" yaml:"delivery"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Panel     PanelConfig     `json:"panel" yaml:"panel"`
}

type GeneralConfig struct {
	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"` // "text" | "json"
	LogFile   string `json:"logFile,omitempty" yaml:"logFile,omitempty"`     // optional log file path
}

type BrowserConfig struct {
	ProfileDir string          `json:"profileDir" yaml:"profileDir"`
	Headless   bool            `json:"headless" yaml:"headless"`
	MeetURL    string          `json:"meetURL" yaml:"meetURL"`
	Selectors  SelectorsConfig `json:"selectors,omitempty" yaml:"selectors,omitempty"`
}

// SelectorsConfig overrides the meeting page selectors. Empty fields keep
// the built-in values.
type SelectorsConfig struct {
	Popup      string   `json:"popup,omitempty" yaml:"popup,omitempty"`
	Chat       string   `json:"chat,omitempty" yaml:"chat,omitempty"`
	Sender     string   `json:"sender,omitempty" yaml:"sender,omitempty"`
	Avatars    []string `json:"avatars,omitempty" yaml:"avatars,omitempty"`
	Styled     string   `json:"styled,omitempty" yaml:"styled,omitempty"`
	FullScreen string   `json:"fullScreen,omitempty" yaml:"fullScreen,omitempty"`
}

type PrefsConfig struct {
	DBPath string `json:"dbPath" yaml:"dbPath"`
}

type ExtractorConfig struct {
	PacingMs int    `json:"pacingMs" yaml:"pacingMs"` // delay between messages found in one cycle
	Shortcut string `json:"shortcut" yaml:"shortcut"` // streaming toggle, e.g. "Ctrl+Shift+S"
}

type DeliveryConfig struct {
	IntervalMs int `json:"intervalMs" yaml:"intervalMs"` // retry tick while a comment is pending
	BurstSize  int `json:"burstSize" yaml:"burstSize"`   // 1 = single overwriting slot
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// PanelConfig configures the local settings page.
type PanelConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// DefaultConfigDir returns the default config directory (~/.commentflow).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".commentflow"
	}
	return filepath.Join(home, ".commentflow")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	ExpandPaths(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}

	if cfg.Prefs.DBPath == "" {
		errs = append(errs, "prefs.dbPath is required")
	}
	if cfg.Extractor.PacingMs < 0 {
		errs = append(errs, "extractor.pacingMs must be >= 0")
	}
	if cfg.Extractor.Shortcut == "" {
		errs = append(errs, "extractor.shortcut is required")
	}
	if cfg.Delivery.IntervalMs < 100 {
		errs = append(errs, "delivery.intervalMs must be >= 100")
	}
	if cfg.Delivery.BurstSize < 1 || cfg.Delivery.BurstSize > 100 {
		errs = append(errs, "delivery.burstSize must be between 1 and 100")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}
	if cfg.Panel.Enabled && cfg.Panel.Addr == "" {
		errs = append(errs, "panel.addr is required when the panel is enabled")
	}
	if cfg.Panel.Enabled && cfg.Metrics.Enabled && cfg.Panel.Addr == cfg.Metrics.Addr {
		errs = append(errs, "panel.addr and metrics.addr must differ")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
