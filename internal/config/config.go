// Package config loads the server's HCL configuration file.
//
// A minimal downforce.hcl:
//
//	server {
//	  address = "0.0.0.0"
//	  port    = 8080
//	}
//
//	store {
//	  backend      = "postgres"
//	  database_url = env.DATABASE_URL
//	}
//
// Environment variables are available as env.NAME.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config is the complete server configuration.
type Config struct {
	Server ServerSettings
	Store  StoreSettings
	Rooms  RoomSettings
}

// fileConfig mirrors Config with every block optional.
type fileConfig struct {
	Server *ServerSettings `hcl:"server,block"`
	Store  *StoreSettings  `hcl:"store,block"`
	Rooms  *RoomSettings   `hcl:"rooms,block"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Address         string   `hcl:"address,optional"`
	Port            int      `hcl:"port,optional"`
	LogLevel        string   `hcl:"log_level,optional"`
	CORSOrigins     []string `hcl:"cors_origins,optional"`
	RateLimit       float64  `hcl:"rate_limit,optional"` // requests per second per client
	RateBurst       int      `hcl:"rate_burst,optional"`
	ShutdownTimeout string   `hcl:"shutdown_timeout,optional"`

	ShutdownTimeoutDuration time.Duration
}

// StoreSettings selects and configures the room store.
type StoreSettings struct {
	Backend       string `hcl:"backend,optional"`
	DatabaseURL   string `hcl:"database_url,optional"`
	SnapshotPath  string `hcl:"snapshot_path,optional"`
	SweepInterval string `hcl:"sweep_interval,optional"`

	SweepIntervalDuration time.Duration
}

// RoomSettings tunes the room service.
type RoomSettings struct {
	TTL          string `hcl:"ttl,optional"`
	MaxAttempts  int    `hcl:"max_attempts,optional"`
	CodeAttempts int    `hcl:"code_attempts,optional"`

	TTLDuration time.Duration
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	_ = c.parseDurations()
	return c
}

// Load reads filename. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	src, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(src, filename)
}

// Parse decodes HCL source. filename is only used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw fileConfig
	diags = gohcl.DecodeBody(f.Body, evalContext(), &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	var c Config
	if raw.Server != nil {
		c.Server = *raw.Server
	}
	if raw.Store != nil {
		c.Store = *raw.Store
	}
	if raw.Rooms != nil {
		c.Rooms = *raw.Rooms
	}

	c.applyDefaults()
	if err := c.parseDurations(); err != nil {
		return nil, err
	}
	return &c, nil
}

func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if ok && name != "" {
			env[name] = cty.StringVal(value)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 10
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 20
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.SweepInterval == "" {
		c.Store.SweepInterval = "1m"
	}

	if c.Rooms.TTL == "" {
		c.Rooms.TTL = "4h"
	}
	if c.Rooms.MaxAttempts == 0 {
		c.Rooms.MaxAttempts = 8
	}
	if c.Rooms.CodeAttempts == 0 {
		c.Rooms.CodeAttempts = 100
	}
}

func (c *Config) parseDurations() error {
	var err error
	if c.Server.ShutdownTimeoutDuration, err = time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("server.shutdown_timeout: %w", err)
	}
	if c.Store.SweepIntervalDuration, err = time.ParseDuration(c.Store.SweepInterval); err != nil {
		return fmt.Errorf("store.sweep_interval: %w", err)
	}
	if c.Rooms.TTLDuration, err = time.ParseDuration(c.Rooms.TTL); err != nil {
		return fmt.Errorf("rooms.ttl: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 1 {
		return fmt.Errorf("rate limit must be positive with a burst of at least 1")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store: postgres backend requires database_url")
		}
		if c.Store.SnapshotPath != "" {
			return fmt.Errorf("store: snapshot_path only applies to the memory backend")
		}
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}
	if c.Store.SweepIntervalDuration <= 0 {
		return fmt.Errorf("store: sweep_interval must be positive")
	}

	if c.Rooms.TTLDuration <= 0 {
		return fmt.Errorf("rooms: ttl must be positive")
	}
	if c.Rooms.MaxAttempts < 1 || c.Rooms.CodeAttempts < 1 {
		return fmt.Errorf("rooms: attempt limits must be positive")
	}
	return nil
}

// ListenAddress returns host:port for the HTTP listener.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
