package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	to, subject, body string
	err               error
	calls             int
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	s.calls++
	s.to, s.subject, s.body = to, subject, body
	return s.err
}

func TestSendEmailJobDelivers(t *testing.T) {
	sender := &recordingSender{}
	task, err := NewSendEmailTask(SendEmailPayload{To: "marie@example.org", Subject: "Rappel", Body: "Bonjour"})
	require.NoError(t, err)
	assert.Equal(t, TaskTypeSendEmail, task.Type())

	require.NoError(t, NewSendEmailJob(sender, nil, nil).Handle(context.Background(), task))
	assert.Equal(t, "marie@example.org", sender.to)
	assert.Equal(t, "Rappel", sender.subject)
	assert.Equal(t, "Bonjour", sender.body)
}

func TestSendEmailJobSkipsRetryOnBadPayload(t *testing.T) {
	sender := &recordingSender{}
	job := NewSendEmailJob(sender, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	data, _ := json.Marshal(SendEmailPayload{Subject: "x"})
	err = job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, data))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, sender.calls)
}

func TestSendEmailJobRetriesDeliveryFailures(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay unavailable")}
	task, _ := NewSendEmailTask(SendEmailPayload{To: "marie@example.org"})

	err := NewSendEmailJob(sender, nil, nil).Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthReportsQueue(t *testing.T) {
	h := NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}}, nil)
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, queueHealth{Queue: QueueDefault, Pending: 3, Retry: 1}, body)
}

func TestHealthUnavailable(t *testing.T) {
	h := NewHandler(stubInspector{err: errors.New("redis down")}, nil)
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
