package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FileName is the optional config file read from the working directory
const FileName = "flow-editor.toml"

// EnvPrefix prefixes environment overrides, e.g. FLOW_EDITOR_PORT=9090
const EnvPrefix = "FLOW_EDITOR_"

// Storage backends
const (
	StorageFile   = "file"
	StorageMemory = "memory"
)

// Config holds all configuration for the editor backend
type Config struct {
	Storage     string        `koanf:"storage"`
	Dir         string        `koanf:"dir"`
	Key         string        `koanf:"key"`
	Port        int           `koanf:"port"`
	SaveDelay   time.Duration `koanf:"save_delay"`
	Watch       bool          `koanf:"watch"`
	OpenBrowser bool          `koanf:"open"`
	Verbosity   string        `koanf:"verbosity"`
	VerboseCnt  int           `koanf:"verbose"`
	JSONLogs    bool          `koanf:"json_logs"`
	Report      bool          `koanf:"report"`
}

// Defaults returns the built-in configuration
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"storage":    StorageFile,
		"dir":        ".flow-editor",
		"key":        "flow-state",
		"port":       8080,
		"save_delay": "1s",
		"watch":      true,
		"open":       false,
		"verbosity":  "",
		"verbose":    0,
		"json_logs":  false,
		"report":     false,
	}
}

// RegisterFlags declares the command-line flags Load understands
func RegisterFlags(f *pflag.FlagSet) {
	f.String("storage", StorageFile, "Storage backend: file or memory")
	f.String("dir", ".flow-editor", "Directory holding the stored document")
	f.String("key", "flow-state", "Storage key of the graph document")
	f.Int("port", 8080, "Port for the canvas host")
	f.Duration("save_delay", time.Second, "Debounce window before saving changes")
	f.Bool("watch", true, "Reload when the stored document is edited externally")
	f.Bool("open", false, "Open the editor in a browser")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	f.Bool("json_logs", false, "Emit JSON logs")
	f.Bool("report", false, "Print a report of the stored graph and exit")
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(f, FileName)
}

// LoadFile is Load with an explicit config file path
func LoadFile(f *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// The file is optional
	_ = k.Load(file.Provider(path), toml.Parser())

	// FLOW_EDITOR_SAVE_DELAY -> save_delay
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// posflag only overrides with flags the user actually set
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the editor cannot run with
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageFile:
		if c.Dir == "" {
			return fmt.Errorf("invalid config: dir is required for file storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid config: unknown storage %q", c.Storage)
	}
	if c.Key == "" {
		return fmt.Errorf("invalid config: key must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid config: port %d out of range", c.Port)
	}
	if c.SaveDelay <= 0 {
		return fmt.Errorf("invalid config: save_delay must be positive")
	}
	return nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
