package renewal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/ladtc/ladtc/internal/jobs"
	"github.com/ladtc/ladtc/internal/membership"
	"github.com/ladtc/ladtc/jobs"
)

type stubSource struct {
	rows []membership.Membership
	err  error
}

func (s stubSource) ListByStatus(_ context.Context, status membership.Status) ([]membership.Membership, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []membership.Membership
	for _, m := range s.rows {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

type recordingMailer struct {
	mu       sync.Mutex
	payloads []jobs.SendEmailPayload
	failFor  string
}

func (m *recordingMailer) EnqueueSendEmail(_ context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payload.To == m.failFor {
		return nil, errors.New("redis: connection refused")
	}
	m.payloads = append(m.payloads, payload)
	return &asynq.TaskInfo{ID: uuid.NewString()}, nil
}

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.payloads))
	for _, p := range m.payloads {
		out = append(out, p.To)
	}
	sort.Strings(out)
	return out
}

func at(y int, mo time.Month, d int) *time.Time {
	t := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func member(userID, email string, status membership.Status, renewal *time.Time) membership.Membership {
	return membership.Membership{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      status,
		AmountPaid:  50,
		RenewalDate: renewal,
		Holder:      membership.Holder{Name: userID, Email: email},
	}
}

var now = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func fixture() stubSource {
	return stubSource{rows: []membership.Membership{
		member("soon", "soon@example.org", membership.StatusActive, at(2025, time.June, 20)),
		member("edge", "edge@example.org", membership.StatusActive, at(2025, time.July, 1)),
		member("today", "today@example.org", membership.StatusActive, at(2025, time.June, 1)),
		member("later", "later@example.org", membership.StatusActive, at(2025, time.August, 1)),
		member("lapsed", "lapsed@example.org", membership.StatusActive, at(2025, time.May, 1)),
		member("suspended", "suspended@example.org", membership.StatusInactive, at(2025, time.June, 10)),
		member("pending", "pending@example.org", membership.StatusPending, nil),
	}}
}

func TestDueForReminderWindow(t *testing.T) {
	n := NewNotifier(fixture(), nil, NewComposer(""), nil, nil)

	due, err := n.DueForReminder(context.Background(), now, 30)
	require.NoError(t, err)
	users := make([]string, 0, len(due))
	for _, m := range due {
		users = append(users, m.UserID)
	}
	sort.Strings(users)
	assert.Equal(t, []string{"edge", "soon", "today"}, users)
}

func TestDueForReminderPropagatesQueryFailure(t *testing.T) {
	n := NewNotifier(stubSource{err: errors.New("db down")}, nil, NewComposer(""), nil, nil)
	_, err := n.DueForReminder(context.Background(), now, 30)
	require.Error(t, err)

	_, err = n.Run(context.Background(), now, 30)
	require.Error(t, err)
}

func TestRunCountsFailuresWithoutAborting(t *testing.T) {
	source := fixture()
	source.rows = append(source.rows, member("nomail", "", membership.StatusActive, at(2025, time.June, 15)))
	mailer := &recordingMailer{failFor: "edge@example.org"}
	n := NewNotifier(source, mailer, NewComposer("https://club.example.org"), nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	summary, err := n.Run(context.Background(), now, 30)
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 4, Sent: 2, Failed: 2}, summary)
	assert.Equal(t, []string{"soon@example.org", "today@example.org"}, mailer.recipients())
}

func TestRunIsAtLeastOnce(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(fixture(), mailer, NewComposer(""), nil, nil)

	_, err := n.Run(context.Background(), now, 30)
	require.NoError(t, err)
	_, err = n.Run(context.Background(), now, 30)
	require.NoError(t, err)
	assert.Len(t, mailer.recipients(), 6)
}

func TestNotifyWithoutEmail(t *testing.T) {
	n := NewNotifier(fixture(), &recordingMailer{}, NewComposer(""), nil, nil)
	err := n.Notify(context.Background(), member("x", "", membership.StatusActive, at(2025, time.June, 10)), now)
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestComposeFrenchReminder(t *testing.T) {
	m := member("u1", "marie@example.org", membership.StatusActive, at(2025, time.June, 21))
	m.Holder.Name = "Marie"
	msg := NewComposer("https://club.example.org/").Compose(m, now)

	assert.Equal(t, "marie@example.org", msg.To)
	assert.Equal(t, "Renouvellement de votre adhésion", msg.Subject)
	assert.Contains(t, msg.Body, "Bonjour Marie,")
	assert.Contains(t, msg.Body, "le 21/06/2025 (dans 20 jours)")
	assert.Contains(t, msg.Body, "https://club.example.org/members")
}

func TestScanJobUsesConfiguredWindow(t *testing.T) {
	mailer := &recordingMailer{}
	job := NewScanJob(NewNotifier(fixture(), mailer, NewComposer(""), nil, nil), 30, nil, nil)
	job.clock = func() time.Time { return now }

	task, err := NewScanTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Len(t, mailer.recipients(), 3)

	mailer2 := &recordingMailer{}
	job.Notifier = NewNotifier(fixture(), mailer2, NewComposer(""), nil, nil)
	task, _ = NewScanTask(90)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Len(t, mailer2.recipients(), 4)
}

func TestScanJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewScanJob(NewNotifier(fixture(), &recordingMailer{}, NewComposer(""), nil, nil), 30, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskScan, []byte("nope")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
