package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/litigo-hq/litigo/internal/app"
	"github.com/litigo-hq/litigo/internal/audit"
	jobmetrics "github.com/litigo-hq/litigo/internal/jobs"
	"github.com/litigo-hq/litigo/internal/platform/db"
	"github.com/litigo-hq/litigo/jobs"
)

// logMailer is a stand-in delivery channel until an SMTP relay is wired in.
type logMailer struct {
	logger *slog.Logger
}

func (m logMailer) Send(_ context.Context, to, subject, _ string) error {
	m.logger.Info("notification delivery", slog.String("to", to), slog.String("subject", subject))
	return nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditRepo := audit.NewRepository(db.NewTenantScope(pool, logger))
	metrics := jobmetrics.NewMetrics(nil)

	archiveTask, err := jobs.NewAuditArchiveTask(jobs.AuditArchivePayload{RetentionDays: cfg.AuditRetentionDays})
	if err != nil {
		logger.Error("build archive task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeAuditArchive, Handler: jobs.AuditArchiveHandler(auditRepo, logger, metrics)},
			{Type: jobs.TaskTypeSendNotification, Handler: jobs.SendNotificationHandler(logMailer{logger: logger}, logger, metrics)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: archiveTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
