package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "localhost:8080", c.ListenAddress())
	assert.Equal(t, BackendMemory, c.Store.Backend)
	assert.Equal(t, 4*time.Hour, c.Rooms.TTLDuration)
	assert.Equal(t, time.Minute, c.Store.SweepIntervalDuration)
	assert.Equal(t, 10*time.Second, c.Server.ShutdownTimeoutDuration)
}

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "downforce.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  address      = "0.0.0.0"
  port         = 9090
  cors_origins = ["https://downforce.example"]
  rate_limit   = 2.5
}

store {
  snapshot_path  = "/var/lib/downforce/rooms.snapshot"
  sweep_interval = "30s"
}

rooms {
  ttl = "2h"
}
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "0.0.0.0:9090", c.ListenAddress())
	assert.Equal(t, []string{"https://downforce.example"}, c.Server.CORSOrigins)
	assert.Equal(t, 2.5, c.Server.RateLimit)
	assert.Equal(t, 20, c.Server.RateBurst)
	assert.Equal(t, "/var/lib/downforce/rooms.snapshot", c.Store.SnapshotPath)
	assert.Equal(t, 30*time.Second, c.Store.SweepIntervalDuration)
	assert.Equal(t, 2*time.Hour, c.Rooms.TTLDuration)
	assert.Equal(t, 8, c.Rooms.MaxAttempts)
}

func TestEnvVariables(t *testing.T) {
	t.Setenv("DOWNFORCE_TEST_DB", "postgres://u:p@db/downforce")

	c, err := Parse([]byte(`
store {
  backend      = "postgres"
  database_url = env.DOWNFORCE_TEST_DB
}
`), "env.hcl")
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, "postgres://u:p@db/downforce", c.Store.DatabaseURL)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `server {`},
		{"unknown attribute", `server { colour = "red" }`},
		{"bad duration", `rooms { ttl = "forever" }`},
		{"missing env", `store { database_url = env.DOWNFORCE_SURELY_UNSET_VARIABLE }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.hcl")
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"burst", func(c *Config) { c.Server.RateBurst = -1 }},
		{"backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"postgres without url", func(c *Config) { c.Store.Backend = BackendPostgres }},
		{"postgres with snapshot", func(c *Config) {
			c.Store.Backend = BackendPostgres
			c.Store.DatabaseURL = "postgres://localhost/downforce"
			c.Store.SnapshotPath = "rooms.snapshot"
		}},
		{"ttl", func(c *Config) { c.Rooms.TTLDuration = 0 }},
		{"attempts", func(c *Config) { c.Rooms.MaxAttempts = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
