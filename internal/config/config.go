// Package config loads schemasync settings from defaults, a YAML file,
// SCHEMASYNC_ environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "SCHEMASYNC_"

// Storage drivers
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the resolved configuration
type Config struct {
	Dialect  string        `koanf:"dialect"`
	Debounce time.Duration `koanf:"debounce"`
	Project  string        `koanf:"project"`
	Log      LogConfig     `koanf:"log"`
	Storage  StorageConfig `koanf:"storage"`
	Server   ServerConfig  `koanf:"server"`
}

// LogConfig selects the logger flavour
type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// StorageConfig selects where projects are persisted.
// Path is a directory for the file driver and a database file for sqlite.
type StorageConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
	DSN    string `koanf:"dsn"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string   `koanf:"addr"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

var defaults = map[string]interface{}{
	"dialect":                "standard",
	"debounce":               "1s",
	"project":                "default",
	"log.level":              "info",
	"log.development":        false,
	"storage.driver":         DriverFile,
	"storage.path":           ".schemasync",
	"storage.dsn":            "",
	"server.addr":            ":8080",
	"server.allowed_origins": []string{"*"},
}

// flagKeys maps command line flags onto config keys
var flagKeys = map[string]string{
	"dialect":         "dialect",
	"debounce":        "debounce",
	"project":         "project",
	"log-level":       "log.level",
	"log-development": "log.development",
	"storage-driver":  "storage.driver",
	"storage-path":    "storage.path",
	"storage-dsn":     "storage.dsn",
	"addr":            "server.addr",
	"allowed-origins": "server.allowed_origins",
}

// sections are the nested config blocks reachable from env vars
var sections = []string{"log", "storage", "server"}

// findConfigFile returns the explicit path or the first schemasync.y(a)ml in the working directory
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"schemasync.yaml", "schemasync.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey turns SCHEMASYNC_STORAGE_DRIVER into storage.driver
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// Load resolves the configuration.
// Precedence (highest to lowest): changed flags > env vars > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Server.AllowedOrigins = splitOrigins(cfg.Server.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be expressed by types alone
func (c *Config) Validate() error {
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", c.Debounce)
	}
	if strings.TrimSpace(c.Project) == "" {
		return errors.New("project name is required")
	}
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the %s driver", c.Storage.Driver)
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q (expected file, sqlite or postgres)", c.Storage.Driver)
	}
	return nil
}

// splitOrigins flattens comma separated entries and drops blanks
func splitOrigins(in []string) []string {
	out := []string{}
	for _, entry := range in {
		for _, origin := range strings.Split(entry, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				out = append(out, origin)
			}
		}
	}
	return out
}
