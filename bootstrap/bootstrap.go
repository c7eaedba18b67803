// Package bootstrap wires all dependencies and starts the application.
// Configuration is loaded from a YAML file with environment overrides; the
// provider API key comes only from the environment and never touches disk.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/clock"
	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/idgen"
	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/memory"
	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/metrics"
	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/sqlite"
	"github.com/Terry-Mathew/youtube-filter-sub001/adapters/youtube"
	"github.com/Terry-Mathew/youtube-filter-sub001/app"
	"github.com/Terry-Mathew/youtube-filter-sub001/config"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/breaker"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/retry"
	"github.com/Terry-Mathew/youtube-filter-sub001/ports"
	"github.com/Terry-Mathew/youtube-filter-sub001/web"
)

// App represents the wired, runnable application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Gateway    *app.Gateway
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Ledger     ports.UsageStore

	holder    *config.Holder
	quota     *app.QuotaManager
	rateLimit *app.RateLimiter
	breaker   *app.CircuitBreaker
	retryer   *app.Retryer
	stopReset chan struct{}
}

// New loads configuration and constructs the full object graph. configPath
// may be empty, in which case defaults plus environment overrides apply.
func New(configPath string) (*App, error) {
	var (
		cfg    *config.Config
		holder *config.Holder
		err    error
	)
	if configPath != "" {
		holder, err = config.NewHolder(configPath, zerolog.Nop())
		if err != nil {
			return nil, err
		}
		cfg = holder.Get()
	} else {
		cfg, err = config.Load("")
		if err != nil {
			return nil, err
		}
	}

	logger := setupLogger(cfg.Logging)

	a := &App{
		Logger:    logger,
		Config:    cfg,
		holder:    holder,
		stopReset: make(chan struct{}),
	}
	if err := a.wire(cfg); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) wire(cfg *config.Config) error {
	clk := clock.Real{}
	ids := idgen.UUID{}
	collector := metrics.New()
	a.Metrics = collector

	// Usage ledger: sqlite when configured, in-memory otherwise.
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate database: %w", err)
		}
		a.DB = db
		a.Ledger = sqlite.NewUsageStore(db)
	default:
		a.Ledger = memory.NewUsageStore(10000)
	}

	resetLoc, err := cfg.ResetLocation()
	if err != nil {
		return fmt.Errorf("quota reset timezone: %w", err)
	}

	a.quota = app.NewQuotaManager(app.QuotaDeps{
		Ledger:  a.Ledger,
		Clock:   clk,
		IDGen:   ids,
		Metrics: collector,
		Logger:  a.Logger,
	}, app.QuotaConfig{
		DailyLimit: cfg.Quota.DailyLimit,
		Costs:      cfg.CostTable(),
		ResetLoc:   resetLoc,
	})

	a.rateLimit = app.NewRateLimiter(app.RateLimiterConfig{
		MaxPerSecond:  cfg.RateLimit.MaxPerSecond,
		Burst:         cfg.RateLimit.Burst,
		MaxPerMinute:  cfg.RateLimit.MaxPerMinute,
		MaxConcurrent: cfg.RateLimit.MaxConcurrent,
		QueueLimit:    cfg.RateLimit.QueueLimit,
	}, collector, a.Logger)

	a.breaker = app.NewCircuitBreaker(breakerConfig(cfg), clk, collector, a.Logger)
	a.retryer = app.NewRetryer(retryPolicy(cfg), clk, collector, a.Logger)

	transport, err := youtube.New(youtube.Config{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.APIKey(),
		CallTimeout: cfg.Provider.CallTimeout,
	})
	if err != nil {
		return fmt.Errorf("provider transport: %w", err)
	}

	a.Gateway = app.NewGateway(app.GatewayDeps{
		Quota:     a.quota,
		RateLimit: a.rateLimit,
		Breaker:   a.breaker,
		Retry:     a.retryer,
		Transport: transport,
		Clock:     clk,
		Metrics:   collector,
		Logger:    a.Logger,
	})

	handler := web.NewHandler(a.Gateway, a.Ledger, clk, a.Logger)
	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return nil
}

// Run starts the HTTP server and blocks until a signal or server error.
func (a *App) Run() error {
	if a.holder != nil {
		a.holder.OnChange(a.applyReload)
		if err := a.holder.Watch(); err != nil {
			a.Logger.Warn().Err(err).Msg("config watch unavailable")
		}
	}

	// Keep the quota window and gauges fresh even when the gateway is idle.
	go a.resetLoop()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting ops server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// applyReload pushes reloaded tunables into the running services. Structural
// settings (database driver, server address, provider endpoint) keep their
// boot values until a restart.
func (a *App) applyReload(cfg *config.Config) {
	if err := a.quota.UpdateConfig(cfg.Quota.DailyLimit, cfg.CostTable()); err != nil {
		a.Logger.Error().Err(err).Msg("reloaded cost table rejected, keeping old one")
	}
	a.rateLimit.UpdateConfig(app.RateLimiterConfig{
		MaxPerSecond:  cfg.RateLimit.MaxPerSecond,
		Burst:         cfg.RateLimit.Burst,
		MaxPerMinute:  cfg.RateLimit.MaxPerMinute,
		MaxConcurrent: cfg.RateLimit.MaxConcurrent,
		QueueLimit:    cfg.RateLimit.QueueLimit,
	})
	a.breaker.UpdateConfig(breakerConfig(cfg))
	a.retryer.UpdatePolicy(retryPolicy(cfg))
	a.Logger.Info().Msg("tunables applied from reloaded configuration")
}

func breakerConfig(cfg *config.Config) breaker.Config {
	return breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
		Window:           cfg.Breaker.Window,
	}
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    cfg.Retry.BaseDelay,
		Multiplier:   cfg.Retry.Multiplier,
		MaxDelay:     cfg.Retry.MaxDelay,
		JitterFactor: cfg.Retry.JitterFactor,
		MaxElapsed:   cfg.Retry.MaxElapsed,
	}
}

func (a *App) resetLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.quota.Status()
		case <-a.stopReset:
			return
		}
	}
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(a.stopReset)

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.rateLimit != nil {
		a.rateLimit.Close()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
