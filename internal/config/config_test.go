package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "-", cfg.Output)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "address_mapping", cfg.Database.Table)
	assert.False(t, cfg.Database.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SEGMENTGEN_OUTPUT", "/etc/logstash/conf.d/segments.conf")
	t.Setenv("SEGMENTGEN_LOG_LEVEL", "debug")
	t.Setenv("SEGMENTGEN_DB_DRIVER", "sqlite3")
	t.Setenv("SEGMENTGEN_DB_DSN", "mappings.db")
	t.Setenv("SEGMENTGEN_DB_TABLE", "segment_map")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/etc/logstash/conf.d/segments.conf", cfg.Output)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "segment_map", cfg.Database.Table)
	assert.True(t, cfg.Database.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Output: "-", LogLevel: "INFO", Database: DatabaseConfig{Driver: "mysql", Table: "address_mapping"}}
	}

	cfg := base()
	cfg.LogLevel = "TRACE"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Output = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.DSN = "user:pw@tcp(db:3306)/netmaps"
	cfg.Database.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.DSN = "user:pw@tcp(db:3306)/netmaps"
	cfg.Database.Table = "address_mapping; DROP TABLE users"
	assert.Error(t, cfg.Validate())

	// Database settings are ignored without a DSN.
	cfg = base()
	cfg.Database.Driver = "postgres"
	assert.NoError(t, cfg.Validate())
}
