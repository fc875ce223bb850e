package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/api"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/audit"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/cache"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/calendar"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/client"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/config"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/ingest"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/logger"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/metrics"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/recipient"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/repo"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/scheduler"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("dispatcher stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	loc, err := time.LoadLocation(cfg.Dispatch.Timezone)
	if err != nil {
		return err
	}

	store, err := repo.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close database", slog.Any("error", err))
		}
	}()
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	cal := calendar.New(store, log.With(slog.String("component", "calendar")))
	if cfg.Calendar.PopulateOnStart {
		n, err := cal.Populate(ctx, time.Now().In(loc), cfg.Calendar.YearsAhead)
		if err != nil {
			log.Error("calendar populate failed, falling back to weekly rest day only", slog.Any("error", err))
		} else if n > 0 {
			log.Info("calendar populated", slog.Int("days", n))
		}
	}

	resolver := recipient.NewResolver(store, cal, loc, log.With(slog.String("component", "recipients")))

	params, err := client.ParseParams(cfg.Provider.Params)
	if err != nil {
		return err
	}
	gateway, err := client.NewProviderClient(client.ProviderConfig{
		Endpoint:    cfg.Provider.Endpoint,
		Method:      cfg.Provider.Method,
		ContentType: cfg.Provider.ContentType,
		Params:      params,
		Username:    cfg.Provider.Username,
		Password:    cfg.Provider.Password,
		SenderName:  cfg.Provider.SenderName,
		Timeout:     cfg.Provider.Timeout,
	}, log.With(slog.String("component", "gateway")))
	if err != nil {
		return err
	}

	recorder := audit.NewRecorder(store, audit.Options{Attempts: cfg.Audit.WriteAttempts}, log.With(slog.String("component", "audit")))

	engine := service.NewEngine(service.Config{
		RateLimit:       cfg.Dispatch.RateLimit,
		RateWindow:      cfg.Dispatch.RateWindow,
		DuplicateWindow: cfg.Dispatch.DuplicateWindow,
		Location:        loc,
		IdleDelay:       cfg.Dispatch.IdleDelay,
		DrainTimeout:    cfg.Dispatch.DrainTimeout,
	}, resolver, gateway, recorder, log.With(slog.String("component", "engine")))

	if cfg.Dispatch.RateLimitMode == config.RateLimitToken {
		engine.WithPermitPool(service.NewTokenBucketPool(cfg.Dispatch.RateLimit, cfg.Dispatch.RateWindow))
	}

	if cfg.Redis.Enabled && cfg.Dispatch.DuplicateWindow > 0 {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		tracker := cache.NewRedisDedupTracker(rdb, cfg.Dispatch.DuplicateWindow, cfg.Redis.KeyPrefix)
		if err := tracker.Ping(ctx); err != nil {
			log.Warn("redis unavailable, using in-memory duplicate tracking", slog.Any("error", err))
		} else {
			engine.WithDuplicateTracker(tracker)
		}
	}

	var purge *scheduler.Scheduler
	if cfg.Audit.PurgeSchedule != "" {
		sched, err := scheduler.Parse(cfg.Audit.PurgeSchedule)
		if err != nil {
			return err
		}
		days := cfg.Audit.RetentionDays
		purge, err = scheduler.New("audit-purge", sched, func(ctx context.Context) {
			if _, err := recorder.Purge(ctx, days); err != nil {
				log.Error("audit purge failed", slog.Any("error", err))
			}
		}, log.With(slog.String("component", "scheduler")))
		if err != nil {
			return err
		}
		purge.Start()
	}

	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()
	engineErr := make(chan error, 1)
	go func() { engineErr <- engine.Run(engineCtx) }()

	var consumerDone chan struct{}
	stopConsumer := func() {}
	if cfg.Kafka.Enabled {
		var consumerCtx context.Context
		consumerCtx, stopConsumer = context.WithCancel(context.Background())
		consumerDone = make(chan struct{})

		reader := ingest.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
		consumer := ingest.NewConsumer(reader, engine, log.With(slog.String("component", "ingest")))
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(consumerCtx); err != nil {
				log.Error("alarm event consumer stopped", slog.Any("error", err))
			}
		}()
	}

	h := api.NewHandler(engine, recorder, cal, api.Options{
		HealthThreshold: cfg.Dispatch.HealthThreshold,
		Location:        loc,
		RetentionDays:   cfg.Audit.RetentionDays,
		YearsAhead:      cfg.Calendar.YearsAhead,
	}, log.With(slog.String("component", "api"))).
		WithDirectory(store).
		WithCalendarTable(store)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           loggingMiddleware(api.Router(h)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("dispatcher listening",
			slog.String("addr", cfg.Server.Address),
			slog.Int("rate_limit", cfg.Dispatch.RateLimit),
			slog.String("rate_mode", cfg.Dispatch.RateLimitMode),
			slog.Bool("dedup", engine.DedupEnabled()),
			slog.Bool("kafka", cfg.Kafka.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		runErr = err
	case err := <-engineErr:
		engineErr <- err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", slog.Any("error", err))
	}

	stopConsumer()
	if consumerDone != nil {
		<-consumerDone
	}

	stopEngine()
	if err := <-engineErr; err != nil {
		runErr = errors.Join(runErr, err)
	}

	if purge != nil {
		purge.Stop()
	}

	log.Info("dispatcher stopped")
	return runErr
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		slog.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
