package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/litigo-hq/litigo/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditArchive moves aged audit entries to the archive table.
	TaskTypeAuditArchive = "audit:archive"
	// TaskTypeSendNotification delivers transactional notifications.
	TaskTypeSendNotification = "notify:send"
)

// Archiver is the audit repository slice the archive task needs.
type Archiver interface {
	Archive(ctx context.Context, olderThanDays int) (int64, error)
}

// Mailer delivers a single notification.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// AuditArchivePayload configures one archive run.
type AuditArchivePayload struct {
	RetentionDays int `json:"retentionDays"`
}

// NotificationPayload describes a notification to deliver.
type NotificationPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewAuditArchiveTask constructs the periodic archive task.
func NewAuditArchiveTask(payload AuditArchivePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditArchive, data), nil
}

// NewSendNotificationTask constructs a notification task.
func NewSendNotificationTask(payload NotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendNotification, data), nil
}

// AuditArchiveHandler returns the handler for TaskTypeAuditArchive. Archiving
// moves rows, it never deletes them outright, so retries are safe.
func AuditArchiveHandler(archiver Archiver, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeAuditArchive)
		var payload AuditArchivePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if payload.RetentionDays <= 0 {
			return tracker.End(asynq.SkipRetry)
		}
		moved, err := archiver.Archive(ctx, payload.RetentionDays)
		if err != nil {
			return tracker.End(err)
		}
		logger.Info("audit archive complete",
			slog.Int("retention_days", payload.RetentionDays),
			slog.Int64("moved", moved),
		)
		return tracker.End(nil)
	}
}

// SendNotificationHandler returns the handler for TaskTypeSendNotification.
func SendNotificationHandler(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeSendNotification)
		var payload NotificationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if err := mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
			return tracker.End(err)
		}
		logger.Info("notification sent", slog.String("to", payload.To))
		return tracker.End(nil)
	}
}
