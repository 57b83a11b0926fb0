package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(nil, env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvThenFlags(t *testing.T) {
	// GIVEN: Port and interval in the environment
	// WHEN: A flag also sets the port
	// THEN: The flag wins and the env interval is kept

	cfg, err := load([]string{"-port", "9090", "-origins", "https://hr.example.com, https://admin.example.com"}, env(map[string]string{
		"LEDGER_PORT":               "7070",
		"LEDGER_DB_PATH":            ":memory:",
		"LEDGER_SCHEDULER_INTERVAL": "15m",
		"LEDGER_SCHEDULER_ENABLED":  "false",
		"LEDGER_LOG_FORMAT":         "json",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, 15*time.Minute, cfg.SchedulerInterval)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://hr.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"bad port env", nil, map[string]string{"LEDGER_PORT": "eighty"}},
		{"bad interval env", nil, map[string]string{"LEDGER_SCHEDULER_INTERVAL": "hourly"}},
		{"bad bool env", nil, map[string]string{"LEDGER_SCHEDULER_ENABLED": "sometimes"}},
		{"port out of range", []string{"-port", "70000"}, nil},
		{"interval too short", []string{"-scheduler-interval", "10ms"}, nil},
		{"unknown level", []string{"-log-level", "loud"}, nil},
		{"unknown format", []string{"-log-format", "xml"}, nil},
		{"unknown flag", []string{"-verbose"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(tt.args, env(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestConfig_Logger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	logger, err := cfg.Logger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"
	logger, err = cfg.Logger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(0))
}
