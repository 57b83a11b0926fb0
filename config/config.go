/*
Package config loads server configuration.

SOURCES (later wins):
  1. Defaults
  2. .env file in the working directory (optional)
  3. Environment variables
  4. Command-line flags

VARIABLES:
  LEDGER_PORT                HTTP port (default 8080)                -port
  LEDGER_DB_PATH             SQLite path, ":memory:" allowed         -db
  LEDGER_POLICY_FILE         YAML policies installed at startup      -policies
  LEDGER_SCHEDULER_INTERVAL  Period of schedule + sweep runs (1h)    -scheduler-interval
  LEDGER_SCHEDULER_ENABLED   Run the periodic scheduler (true)       -scheduler
  LEDGER_LOG_LEVEL           debug, info, warn, error (info)         -log-level
  LEDGER_LOG_FORMAT          console or json (console)               -log-format
  LEDGER_ALLOWED_ORIGINS     Comma separated CORS origins            -origins
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Port              int
	DBPath            string
	PolicyFile        string
	SchedulerInterval time.Duration
	SchedulerEnabled  bool
	LogLevel          string
	LogFormat         string
	AllowedOrigins    []string
}

func Default() Config {
	return Config{
		Port:              8080,
		DBPath:            "ledger.db",
		SchedulerInterval: time.Hour,
		SchedulerEnabled:  true,
		LogLevel:          "info",
		LogFormat:         "console",
		AllowedOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Load builds the configuration from .env, the environment and args
// (os.Args[1:] in production).
func Load(args []string) (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return load(args, os.LookupEnv)
}

func load(args []string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("leave-ledger", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (\":memory:\" for in-memory)")
	fs.StringVar(&cfg.PolicyFile, "policies", cfg.PolicyFile, "YAML policy file installed at startup")
	fs.DurationVar(&cfg.SchedulerInterval, "scheduler-interval", cfg.SchedulerInterval, "interval between grant schedule runs")
	fs.BoolVar(&cfg.SchedulerEnabled, "scheduler", cfg.SchedulerEnabled, "run the periodic grant scheduler")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console or json)")
	origins := fs.String("origins", strings.Join(cfg.AllowedOrigins, ","), "comma separated CORS origins")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.AllowedOrigins = splitList(*origins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("LEDGER_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LEDGER_PORT: %w", err)
		}
		c.Port = port
	}
	if v, ok := lookup("LEDGER_DB_PATH"); ok {
		c.DBPath = v
	}
	if v, ok := lookup("LEDGER_POLICY_FILE"); ok {
		c.PolicyFile = v
	}
	if v, ok := lookup("LEDGER_SCHEDULER_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LEDGER_SCHEDULER_INTERVAL: %w", err)
		}
		c.SchedulerInterval = d
	}
	if v, ok := lookup("LEDGER_SCHEDULER_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LEDGER_SCHEDULER_ENABLED: %w", err)
		}
		c.SchedulerEnabled = b
	}
	if v, ok := lookup("LEDGER_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("LEDGER_LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := lookup("LEDGER_ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}
	return nil
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.SchedulerEnabled && c.SchedulerInterval < time.Second {
		errs = append(errs, fmt.Errorf("scheduler interval %s is too short", c.SchedulerInterval))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Logger builds the process logger: development output for console,
// production JSON otherwise.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if c.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
