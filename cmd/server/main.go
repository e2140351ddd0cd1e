package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/grx1242064203-bit/fund-calendar/internal/audit"
	"github.com/grx1242064203-bit/fund-calendar/internal/config"
	"github.com/grx1242064203-bit/fund-calendar/internal/database"
	"github.com/grx1242064203-bit/fund-calendar/internal/handler"
	"github.com/grx1242064203-bit/fund-calendar/internal/metrics"
	"github.com/grx1242064203-bit/fund-calendar/internal/queue"
	"github.com/grx1242064203-bit/fund-calendar/internal/repository"
	"github.com/grx1242064203-bit/fund-calendar/internal/router"
	"github.com/grx1242064203-bit/fund-calendar/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	logger := newLogger(cfg.App)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(app config.AppConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(app.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if app.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "fund-calendar").Logger()
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info().Str("host", cfg.DB.Host).Str("database", cfg.DB.Name).Msg("connected to mysql")

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info().Msg("schema migrated")
	}

	rdb := config.NewRedisClient(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	} else if cfg.Redis.Addr != "" {
		logger.Warn().Str("addr", cfg.Redis.Addr).Msg("redis unreachable, using in-process rate limiting")
	}

	metrics.Register()

	users := repository.NewUserRepo(db)
	products := repository.NewProductRepo(db)
	holidays := repository.NewHolidayRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	auditLog, stopAudit := newAuditLogger(ctx, cfg.Audit, auditRepo, logger)

	e := router.New(handler.Deps{
		Config:   *cfg,
		Users:    users,
		Products: products,
		Holidays: holidays,
		Logs:     auditRepo,
		Calendar: service.NewCalendarService(holidays, products, cfg.Calendar, logger),
		Audit:    auditLog,
		Log:      logger,
	}, router.Options{
		Redis:  rdb,
		Checks: readinessChecks(db, rdb),
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.Port
		logger.Info().Str("addr", addr).Str("env", cfg.App.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			stopAudit()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := auditLog.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pending audit entries dropped")
	}
	stopAudit()
	return nil
}

// newAuditLogger builds the audit logger for the configured sink. With the
// amqp sink a consumer goroutine drains the queue into the database. The
// returned stop function releases broker resources.
func newAuditLogger(ctx context.Context, cfg config.AuditConfig, store *repository.AuditRepo, logger zerolog.Logger) (*audit.Logger, func()) {
	if cfg.Sink != "amqp" {
		return audit.New(store, "db", cfg.WriteTimeout, logger), func() {}
	}

	pub := queue.NewPublisher(cfg.AMQPURL, cfg.Queue, logger)
	consumer := queue.NewConsumer(cfg.AMQPURL, cfg.Queue, store, cfg.WriteTimeout, logger)
	consumeCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Run(consumeCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("audit consumer stopped")
		}
	}()
	return audit.New(pub, "amqp", cfg.WriteTimeout, logger), func() {
		cancel()
		<-done
		_ = pub.Close()
	}
}

func readinessChecks(db *sqlx.DB, rdb *redis.Client) map[string]handler.Check {
	checks := map[string]handler.Check{
		"mysql": db.PingContext,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
