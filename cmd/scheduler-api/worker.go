package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-scheduler-api/internal/repository"
	"github.com/noah-isme/clinic-scheduler-api/internal/service"
	"github.com/noah-isme/clinic-scheduler-api/pkg/cache"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process booking reminder tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(context.Background())
		},
	}
}

func runWorker(ctx context.Context) error {
	rt, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.cfg

	reminders := service.NewReminderHandler(
		repository.NewBookingRepository(rt.db),
		rt.publisher(),
		cfg.Notifications.Channel,
		rt.logger,
	)

	srv := asynq.NewServer(cache.AsynqOpt(cfg.Redis, cfg.Reminders.RedisDB), asynq.Config{
		Concurrency: cfg.Reminders.Concurrency,
		Logger:      rt.logger.Sugar(),
	})
	mux := asynq.NewServeMux()
	mux.Handle(service.TypeBookingReminder, reminders)

	rt.logger.Info("starting reminder worker", zap.Int("concurrency", cfg.Reminders.Concurrency))
	if err := srv.Run(mux); err != nil {
		return fmt.Errorf("run worker: %w", err)
	}
	return nil
}
