package renewal

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLedger(client, 0), mr
}

func TestRedisLedgerClaimOnce(t *testing.T) {
	ledger, mr := newTestLedger(t)
	ctx := context.Background()

	ok, err := ledger.Claim(ctx, "m-1:2025-06-20")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.Claim(ctx, "m-1:2025-06-20")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, DefaultLedgerTTL, mr.TTL(ledgerPrefix+"m-1:2025-06-20"))

	require.NoError(t, ledger.Release(ctx, "m-1:2025-06-20"))
	ok, err = ledger.Claim(ctx, "m-1:2025-06-20")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLedgerClaimExpires(t *testing.T) {
	ledger, mr := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Claim(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(DefaultLedgerTTL + time.Second)

	ok, err := ledger.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunWithLedgerRemindsOncePerCycle(t *testing.T) {
	ledger, _ := newTestLedger(t)
	source := fixture()
	mailer := &recordingMailer{}
	n := NewNotifier(source, mailer, NewComposer(""), nil, nil).WithLedger(ledger)

	first, err := n.Run(context.Background(), now, 30)
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 3, Sent: 3}, first)

	second, err := n.Run(context.Background(), now, 30)
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 3, Skipped: 3}, second)
	assert.Len(t, mailer.recipients(), 3)
}

func TestRunWithLedgerReleasesFailedEnqueue(t *testing.T) {
	ledger, _ := newTestLedger(t)
	source := fixture()
	mailer := &recordingMailer{failFor: "soon@example.org"}
	n := NewNotifier(source, mailer, NewComposer(""), nil, nil).WithLedger(ledger)

	summary, err := n.Run(context.Background(), now, 30)
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 3, Sent: 2, Failed: 1}, summary)

	mailer.failFor = ""
	summary, err = n.Run(context.Background(), now, 30)
	require.NoError(t, err)
	assert.Equal(t, Summary{Due: 3, Sent: 1, Skipped: 2}, summary)
}

func TestRunSendsWhenLedgerIsDown(t *testing.T) {
	ledger, mr := newTestLedger(t)
	mr.Close()
	mailer := &recordingMailer{}
	n := NewNotifier(fixture(), mailer, NewComposer(""), nil, nil).WithLedger(ledger)

	summary, err := n.Run(context.Background(), now, 30)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Sent)
}
