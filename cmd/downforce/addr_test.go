package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/downforce/internal/config"
)

func TestSplitHostPort(t *testing.T) {
	host, port, err := splitHostPort(":9090")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", host)
	assert.Equal(t, 9090, port)

	host, port, err = splitHostPort("127.0.0.1:8081")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 8081, port)

	_, _, err = splitHostPort("nope")
	assert.Error(t, err)
	_, _, err = splitHostPort("host:http")
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	cmd := ServerCmd{
		Addr:        ":9000",
		Backend:     config.BackendPostgres,
		DatabaseURL: "postgres://localhost/downforce",
		Debug:       true,
	}
	require.NoError(t, cmd.applyOverrides(cfg))

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddress())
	assert.Equal(t, config.BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "postgres://localhost/downforce", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestApplyOverridesRejectsBadAddr(t *testing.T) {
	for _, addr := range []string{"8080", "localhost:http"} {
		t.Run(addr, func(t *testing.T) {
			cfg := config.Default()
			cmd := ServerCmd{Addr: addr, Backend: config.BackendPostgres}

			err := cmd.applyOverrides(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid --addr")
			assert.Equal(t, "localhost:8080", cfg.ListenAddress(), "config must be untouched")
			assert.Equal(t, config.BackendMemory, cfg.Store.Backend)
		})
	}
}
