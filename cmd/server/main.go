/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, LEDGER_* environment, flags)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Install policies and holidays (policy file, or the built-in presets)
  5. Create ledger service, scheduler, handler and router
  6. Serve HTTP and run the scheduler until SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -port                HTTP server port (default: 8080)
  -db                  SQLite database path (default: ledger.db)
                       Use ":memory:" for in-memory database
  -policies            YAML policy file (default: built-in presets)
  -scheduler           Run the daily jobs in the background (default: true)
  -scheduler-interval  How often the daily jobs are checked (default: 1h)
  -log-level           debug | info | warn | error
  -log-format          console | json
  -origins             Comma-separated CORS origins

  Every flag has a LEDGER_* environment equivalent; see config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler after its in-flight run
  4. Close database connection

EXAMPLES:
  ./server -db="./data/ledger.db" -policies=./configs/policies.yaml
  LEDGER_LOG_FORMAT=json ./server -port=3000

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/leave-ledger/api"
	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/ledger"
	"github.com/warp/leave-ledger/store/sqlite"
	"github.com/warp/leave-ledger/timeoff"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := ledger.SystemClock{}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath, sqlite.WithClock(clock), sqlite.WithLogger(logger.Named("store")))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	svc := ledger.NewService(store, store, clock,
		ledger.WithLogger(logger.Named("ledger")),
		ledger.WithCalendar(store))

	if err := installPolicies(ctx, cfg.PolicyFile, svc, store, logger); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := api.NewMetrics(reg)

	scheduler := api.NewGrantScheduler(svc, store, metrics, clock, logger)
	scheduler.CheckInterval = cfg.SchedulerInterval
	scheduler.Enabled = cfg.SchedulerEnabled

	handler := api.NewHandler(svc, store, scheduler, metrics, clock, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("db", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		scheduler.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// installPolicies defines the configured policies and holidays. Policies
// already referenced by grants are left as they are.
func installPolicies(ctx context.Context, path string, svc *ledger.Service, store *sqlite.Store, logger *zap.Logger) error {
	policies := timeoff.DefaultPolicies()
	holidays := timeoff.DefaultHolidays()
	if path != "" {
		bundle, err := factory.NewPolicyFactory().LoadPolicyFile(path)
		if err != nil {
			return err
		}
		policies, holidays = bundle.Policies, bundle.Holidays
	}

	for _, p := range policies {
		_, err := svc.DefinePolicy(ctx, p)
		switch {
		case errors.Is(err, ledger.ErrPolicyImmutable):
			logger.Info("policy in use, keeping stored definition", zap.String("policy_id", string(p.ID)))
		case err != nil:
			return fmt.Errorf("policy %s: %w", p.ID, err)
		}
	}
	for _, h := range holidays {
		if err := store.SaveHoliday(ctx, h); err != nil {
			return fmt.Errorf("holiday %s: %w", h.ID, err)
		}
	}
	logger.Info("policies installed", zap.Int("policies", len(policies)), zap.Int("holidays", len(holidays)))
	return nil
}
