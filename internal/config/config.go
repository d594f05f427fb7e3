package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Config is the root configuration for vlog, stored in ~/.vlog/config.yaml.
type Config struct {
	Storage StorageConfig `koanf:"storage"`
	View    ViewConfig    `koanf:"view"`
	Log     LogConfig     `koanf:"log"`
}

// StorageConfig selects where and how entries are persisted.
type StorageConfig struct {
	// Backend is one of "json", "bolt" or "sqlite".
	Backend string `koanf:"backend"`
	// Dir holds the data files. Empty = the directory of the config file.
	Dir string `koanf:"dir"`
}

// ViewConfig holds list presentation settings.
type ViewConfig struct {
	PerPage int `koanf:"per_page"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `koanf:"level"`
}

const (
	// EnvPrefix prefixes environment overrides, e.g. VLOG_STORAGE_BACKEND.
	EnvPrefix = "VLOG_"

	DefaultBackend  = "json"
	DefaultPerPage  = 10
	DefaultLogLevel = "warn"
)

// SupportedBackends lists the accepted values of storage.backend.
var SupportedBackends = []string{"json", "bolt", "sqlite"}

// configTemplate is the annotated config written on first run.
const configTemplate = `# vlog configuration - ~/.vlog/config.yaml
#
# All settings are optional; the defaults below work out of the box.
# Every key can be overridden from the environment, e.g.
#   VLOG_STORAGE_BACKEND=sqlite vlog list

storage:
  # Where entries and profiles are kept:
  #   json   - a single human-readable volunteer_log.json (default)
  #   bolt   - an embedded key/value file, volunteer_log.bolt
  #   sqlite - an embedded relational database, volunteer_log.db
  backend: json

  # Data directory. Leave empty to use the directory of this file.
  dir: ""

view:
  # Entries shown per page by "vlog list".
  per_page: 10

log:
  # debug, info, warn or error. --debug forces debug.
  level: warn
`

// DefaultDir returns the root data directory (~/.vlog).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".vlog"), nil
}

// DefaultPath returns the path to ~/.vlog/config.yaml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// defaultConfig returns a Config pre-filled with defaults for a config file
// located in dir.
func defaultConfig(dir string) Config {
	return Config{
		Storage: StorageConfig{Backend: DefaultBackend, Dir: dir},
		View:    ViewConfig{PerPage: DefaultPerPage},
		Log:     LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads the config file at path (DefaultPath when empty), creating it
// with annotated defaults on first run, then applies VLOG_* environment
// overrides.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	dir := filepath.Dir(path)

	k := koanf.New(".")

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return defaultConfig(dir), fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return defaultConfig(dir), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}

	// VLOG_STORAGE_BACKEND -> storage.backend, VLOG_VIEW_PER_PAGE -> view.per_page.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		parts := strings.SplitN(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", 2)
		if len(parts) == 1 {
			return parts[0]
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return defaultConfig(dir), fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return defaultConfig(dir), fmt.Errorf("decoding config: %w", err)
	}

	// Fill zero-value fields with built-in defaults so callers always get
	// a usable Config even if the user only partially fills in the file.
	def := defaultConfig(dir)
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = def.Storage.Backend
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = def.Storage.Dir
	}
	if cfg.View.PerPage == 0 {
		cfg.View.PerPage = def.View.PerPage
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings no component can honour.
func (c Config) Validate() error {
	if !slices.Contains(SupportedBackends, c.Storage.Backend) {
		return fmt.Errorf("unsupported storage.backend %q (want one of %s)", c.Storage.Backend, strings.Join(SupportedBackends, ", "))
	}
	if c.View.PerPage <= 0 {
		return fmt.Errorf("view.per_page must be positive, got %d", c.View.PerPage)
	}
	return nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
