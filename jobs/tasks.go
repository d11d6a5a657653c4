package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ladtc/ladtc/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// Sender delivers one e-mail.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SendEmailJob processes TaskTypeSendEmail tasks.
type SendEmailJob struct {
	Sender  Sender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSendEmailJob wires the mail handler.
func NewSendEmailJob(sender Sender, logger *slog.Logger, metrics *jobmetrics.Metrics) *SendEmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendEmailJob{Sender: sender, Logger: logger, Metrics: metrics}
}

// Handle decodes the payload and sends the e-mail. Malformed payloads are not
// retried; delivery failures are.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Sender == nil {
		return errors.New("send email: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("send email: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.To) == "" {
		return fmt.Errorf("send email: empty recipient: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskTypeSendEmail)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Sender.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		j.Logger.Warn("send email failed", slog.Any("error", err), slog.String("subject", payload.Subject))
		return err
	}
	j.Logger.Info("email sent", slog.String("subject", payload.Subject))
	return nil
}
