package renewal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ladtc/ladtc/internal/jobs"
)

// TaskScan is the asynq task type of the reminder scan.
const TaskScan = "renewal:scan"

// ScanPayload parameterises a scan. Zero uses the job's configured window.
type ScanPayload struct {
	WindowDays int `json:"window_days"`
}

// NewScanTask builds a renewal scan task.
func NewScanTask(windowDays int) (*asynq.Task, error) {
	data, err := json.Marshal(ScanPayload{WindowDays: windowDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScan, data), nil
}

// ScanJob runs the notifier from the worker.
type ScanJob struct {
	Notifier   *Notifier
	WindowDays int
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewScanJob wires the scan handler.
func NewScanJob(notifier *Notifier, windowDays int, logger *slog.Logger, metrics *jobmetrics.Metrics) *ScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanJob{
		Notifier:   notifier,
		WindowDays: windowDays,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskScan tasks.
func (j *ScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Notifier == nil {
		return errors.New("renewal scan: handler not configured")
	}
	var payload ScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	window := payload.WindowDays
	if window <= 0 {
		window = j.WindowDays
	}

	tracker := j.Metrics.Track(TaskScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	summary, err := j.Notifier.Run(ctx, j.clock(), window)
	if err != nil {
		j.Logger.Error("renewal scan failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("renewal scan completed", slog.Int("window_days", window), slog.Int("due", summary.Due), slog.Int("sent", summary.Sent))
	return nil
}
