/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shop ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store
  3. Connect Redis if configured (totals cache + party locks)
  4. Build the hook dispatcher (log, alert, cache, email)
  5. Create the three ledgers and the API handler
  6. Start the overdue scheduler and the HTTP server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and drain pending hooks
  4. Close Redis and the database

SEE ALSO:
  - config/config.go: Flags and environment variables
  - api/server.go: Router configuration
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

	"github.com/sirupsen/logrus"
	"github.com/warp/shop-ledger/advances"
	"github.com/warp/shop-ledger/api"
	"github.com/warp/shop-ledger/cache"
	"github.com/warp/shop-ledger/config"
	"github.com/warp/shop-ledger/generic"
	"github.com/warp/shop-ledger/notify"
	"github.com/warp/shop-ledger/payments"
	"github.com/warp/shop-ledger/receivables"
	"github.com/warp/shop-ledger/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logg := config.NewLogger(cfg.LogLevel, cfg.LogJSON)
	generic.DefaultPhoneRegion = cfg.PhoneRegion

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logg.Fatalf("failed to initialize database: %v", err)
	}
	defer store.Close()

	// Redis is optional
	var (
		redisCache *cache.Redis
		locker     generic.Locker = generic.NewLocalLocker()
	)
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisCache, err = cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		cancel()
		if err != nil {
			config.LogError(logg, "main", "main", "redis unavailable, running without cache", cfg.RedisAddr, err)
			redisCache = nil
		} else {
			locker = cache.NewLocker(redisCache.Client(), cfg.LockTTL)
			defer redisCache.Close()
		}
	}

	hooks := buildHooks(cfg, logg, redisCache)

	newLedger := func(l *generic.Ledger) {
		l.Hooks = hooks
		l.Locker = locker
		l.Rules.AlertThreshold = cfg.AlertThreshold
	}
	adv := advances.NewLedger(store, store)
	newLedger(adv.Ledger)
	rec := receivables.NewLedger(store, store)
	newLedger(rec.Ledger)
	pay := payments.NewLedger(store, store)
	newLedger(pay.Ledger)

	handler := api.NewHandler(store, adv, rec, pay, logg)
	handler.Cache = redisCache

	scheduler := api.NewOverdueScheduler(rec.Ledger, hooks, logg)
	scheduler.CheckInterval = cfg.OverdueInterval
	handler.Scheduler = scheduler
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		config.LogError(logg, "main", "main", "forced shutdown", nil, err)
	}
	scheduler.Stop()
	hooks.Wait()

	logg.Info("server stopped")
}

// buildHooks registers the post-commit hooks in the order they run.
func buildHooks(cfg *config.Config, logg *logrus.Logger, redisCache *cache.Redis) *generic.Dispatcher {
	hooks := generic.NewDispatcher(logg,
		notify.LogHook{Log: logg},
		notify.AlertHook{Log: logg},
	).Async()

	if redisCache != nil {
		hooks.Register(notify.CacheHook{Cache: redisCache})
	}
	if cfg.SMTPHost != "" && cfg.AlertEmail != "" {
		hooks.Register(notify.EmailHook{
			Mailer: &notify.SMTPMailer{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUser,
				Password: cfg.SMTPPassword,
			},
			To: cfg.AlertEmail,
		})
	}
	return hooks
}
