package renewal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/ladtc/ladtc/internal/jobs"
	"github.com/ladtc/ladtc/internal/membership"
	"github.com/ladtc/ladtc/jobs"
)

// DefaultWindowDays is the reminder look-ahead.
const DefaultWindowDays = 30

const notifyConcurrency = 4

var (
	// ErrNoRecipient is returned when a membership holder has no e-mail address.
	ErrNoRecipient = errors.New("renewal: member has no e-mail address")
	// ErrAlreadyReminded is returned when the ledger already holds the reminder.
	ErrAlreadyReminded = errors.New("renewal: reminder already sent for this cycle")
)

// Source lists stored memberships by status.
type Source interface {
	ListByStatus(ctx context.Context, status membership.Status) ([]membership.Membership, error)
}

// Mailer hands e-mails to the delivery queue.
type Mailer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Summary reports the outcome of one reminder run.
type Summary struct {
	Due     int
	Sent    int
	Skipped int
	Failed  int
}

// Notifier sends renewal reminders. Without a ledger delivery is
// at-least-once: a member can be reminded again on a later run.
type Notifier struct {
	source   Source
	mailer   Mailer
	composer Composer
	ledger   Ledger
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewNotifier wires the notifier's collaborators.
func NewNotifier(source Source, mailer Mailer, composer Composer, logger *slog.Logger, metrics *jobmetrics.Metrics) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{source: source, mailer: mailer, composer: composer, logger: logger, metrics: metrics}
}

// WithLedger makes reminders once per membership and renewal cycle.
func (n *Notifier) WithLedger(ledger Ledger) *Notifier {
	n.ledger = ledger
	return n
}

// DueForReminder returns effectively ACTIVE memberships renewing within
// [now, now+windowDays].
func (n *Notifier) DueForReminder(ctx context.Context, now time.Time, windowDays int) ([]membership.Membership, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	active, err := n.source.ListByStatus(ctx, membership.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("renewal: list active memberships: %w", err)
	}
	until := now.AddDate(0, 0, windowDays)
	due := make([]membership.Membership, 0)
	for _, m := range active {
		m = membership.Effective(m, now)
		if m.Status != membership.StatusActive || m.RenewalDate == nil {
			continue
		}
		if m.RenewalDate.Before(now) || m.RenewalDate.After(until) {
			continue
		}
		due = append(due, m)
	}
	return due, nil
}

// Notify enqueues the reminder e-mail for m.
func (n *Notifier) Notify(ctx context.Context, m membership.Membership, now time.Time) error {
	msg := n.composer.Compose(m, now)
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	if n.mailer == nil {
		return errors.New("renewal: mailer not configured")
	}

	key, claimed := ReminderKey(m), false
	if n.ledger != nil {
		ok, err := n.ledger.Claim(ctx, key)
		switch {
		case err != nil:
			n.logger.Warn("reminder ledger unavailable, sending anyway", slog.Any("error", err))
		case !ok:
			return ErrAlreadyReminded
		default:
			claimed = true
		}
	}

	if _, err := n.mailer.EnqueueSendEmail(ctx, jobs.SendEmailPayload{To: msg.To, Subject: msg.Subject, Body: msg.Body}); err != nil {
		if claimed {
			if relErr := n.ledger.Release(ctx, key); relErr != nil {
				n.logger.Warn("release reminder claim", slog.Any("error", relErr))
			}
		}
		return fmt.Errorf("renewal: enqueue reminder: %w", err)
	}
	return nil
}

// Run reminds every due member. Per-member failures are logged and counted;
// only a failed query aborts the run.
func (n *Notifier) Run(ctx context.Context, now time.Time, windowDays int) (Summary, error) {
	due, err := n.DueForReminder(ctx, now, windowDays)
	if err != nil {
		return Summary{}, err
	}
	var sent, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(notifyConcurrency)
	for _, m := range due {
		g.Go(func() error {
			err := n.Notify(gctx, m, now)
			if errors.Is(err, ErrAlreadyReminded) {
				skipped.Add(1)
				return nil
			}
			if err != nil {
				failed.Add(1)
				n.logger.Warn("renewal reminder failed",
					slog.Any("error", err),
					slog.String("membership_id", m.ID.String()),
					slog.String("user_id", m.UserID),
				)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{Due: len(due), Sent: int(sent.Load()), Skipped: int(skipped.Load()), Failed: int(failed.Load())}
	n.metrics.AddReminders(summary.Sent, summary.Failed)
	n.logger.Info("renewal reminders processed",
		slog.Int("due", summary.Due),
		slog.Int("sent", summary.Sent),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
	)
	return summary, nil
}
