package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v9"
)

// Config holds the environment defaults for the generator. Command-line
// flags override every value.
type Config struct {
	Output      string `env:"SEGMENTGEN_OUTPUT" envDefault:"-"`
	LogLevel    string `env:"SEGMENTGEN_LOG_LEVEL" envDefault:"INFO"`
	LogFile     string `env:"SEGMENTGEN_LOG_FILE"`
	MetricsFile string `env:"SEGMENTGEN_METRICS_FILE"`
	Database    DatabaseConfig
}

// DatabaseConfig selects an optional SQL table of mappings.
type DatabaseConfig struct {
	Driver string `env:"SEGMENTGEN_DB_DRIVER" envDefault:"mysql"`
	DSN    string `env:"SEGMENTGEN_DB_DSN"`
	Table  string `env:"SEGMENTGEN_DB_TABLE" envDefault:"address_mapping"`
}

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	// Nested structs such as Database are parsed too.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing generator config: %w", err)
	}

	return cfg, nil
}

// Enabled reports whether a database DSN was configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.DSN != ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	if c.Output == "" {
		return fmt.Errorf("output path must not be empty (use - for stdout)")
	}

	if c.Database.Enabled() {
		switch c.Database.Driver {
		case "mysql", "sqlite3":
		default:
			return fmt.Errorf("unsupported database driver %q (expected mysql or sqlite3)", c.Database.Driver)
		}
		if !tableNameRegex.MatchString(c.Database.Table) {
			return fmt.Errorf("invalid database table name %q", c.Database.Table)
		}
	}

	return nil
}
