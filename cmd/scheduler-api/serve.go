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

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/handler"
	"github.com/noah-isme/clinic-scheduler-api/internal/middleware"
	"github.com/noah-isme/clinic-scheduler-api/internal/repository"
	"github.com/noah-isme/clinic-scheduler-api/internal/server"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
	"github.com/noah-isme/clinic-scheduler-api/pkg/cache"
	"github.com/noah-isme/clinic-scheduler-api/pkg/tracer"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	rt, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logr := rt.cfg, rt.logger

	tp, err := tracer.Init(ctx, cfg.Tracing, cfg.Env)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logr.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	metrics := service.NewMetricsService()
	bookings := repository.NewBookingRepository(rt.db)
	users := repository.NewUserRepository(rt.db)
	providers := repository.NewProviderRepository(rt.db)

	var windowCache *service.CacheService
	if rt.redis != nil && cfg.Availability.CacheEnabled {
		cacheRepo := repository.NewCacheRepository(rt.redis, logr)
		windowCache = service.NewCacheService(cacheRepo, metrics, cfg.Availability.CacheTTL, logr, true)
	}
	index := service.NewAvailabilityIndex(providers, windowCache, cfg.Availability.CacheTTL, logr)

	params := service.SchedulingServiceParams{
		Ledger:       bookings,
		Providers:    providers,
		Patients:     users,
		Availability: index,
		Metrics:      metrics,
		Tracer:       tp.Tracer("clinic-scheduler"),
		Logger:       logr,
		Config: service.SchedulingConfig{
			SlotMinutes:        cfg.Scheduling.SlotMinutes,
			Location:           cfg.Scheduling.Location(),
			RejectElapsedToday: cfg.Scheduling.RejectElapsedToday,
			NotesMaxLength:     cfg.Scheduling.NotesMaxLength,
		},
	}

	if cfg.Notifications.Enabled {
		notifier, closeNotifier := buildNotifier(rt, metrics)
		defer closeNotifier()
		notifier.Start(ctx)
		defer notifier.Stop()
		params.Observer = notifier
	} else if cfg.Reminders.Enabled {
		logr.Warn("reminders require notifications; reminders disabled")
	}

	scheduling := service.NewSchedulingService(params)
	auth := service.NewAuthService(users, providers, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})
	reports := service.NewReportService(providers, bookings, logr)
	exports := service.NewExportService(scheduling, reports, logr)

	checks := map[string]handler.Pinger{"postgres": rt.db}
	if rt.redis != nil {
		checks["redis"] = cache.Pinger{Client: rt.redis}
	}

	router := server.NewRouter(server.Deps{
		Config:  cfg,
		Logger:  logr,
		Auth:    auth,
		Metrics: metrics,
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RPS,
			Burst:             cfg.RateLimit.Burst,
		}, logr),
		Bookings:     handler.NewBookingHandler(scheduling, nil),
		Availability: handler.NewAvailabilityHandler(scheduling, exports),
		Reports:      handler.NewReportHandler(reports, exports, nil),
		Observe:      handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildNotifier wires the event publisher and, when enabled, the asynq
// reminder scheduler. The returned func releases the asynq client.
func buildNotifier(rt *app, metrics *service.MetricsService) (*service.NotificationService, func()) {
	cfg := rt.cfg
	ncfg := service.NotificationConfig{
		Channel:    cfg.Notifications.Channel,
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
	}
	if !cfg.Reminders.Enabled {
		return service.NewNotificationService(rt.publisher(), nil, ncfg, metrics, rt.logger), func() {}
	}

	client := asynq.NewClient(cache.AsynqOpt(cfg.Redis, cfg.Reminders.RedisDB))
	reminders := service.NewReminderService(client, cfg.Reminders.LeadTime, cfg.Scheduling.Location(), rt.logger)
	notifier := service.NewNotificationService(rt.publisher(), reminders, ncfg, metrics, rt.logger)
	return notifier, func() { _ = client.Close() }
}
