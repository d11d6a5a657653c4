package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ladtc/ladtc/internal/shared"
)

// Writer persists audit entries.
type Writer interface {
	Insert(ctx context.Context, entry Entry) error
}

// Reader queries the audit trail.
type Reader interface {
	Window(ctx context.Context, arg WindowParams) ([]Entry, error)
}

// WindowParams selects a slice of the timeline. Null fields do not filter.
type WindowParams struct {
	FromAt     pgtype.Timestamptz
	ToAt       pgtype.Timestamptz
	Actor      pgtype.Text
	TargetKind pgtype.Text
	Action     pgtype.Text
	OffsetRows int32
	LimitRows  pgtype.Int4
}

// PGStore implements Writer and Reader on audit_logs.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a new PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Insert appends the entry. Failures wrap shared.ErrAuditWriteFailed.
func (s *PGStore) Insert(ctx context.Context, entry Entry) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("%w: store not initialised", shared.ErrAuditWriteFailed)
	}
	id, err := uuid.Parse(entry.ID)
	if err != nil {
		id = uuid.New()
	}
	diffJSON, err := json.Marshal(entry.Diff)
	if err != nil {
		return fmt.Errorf("%w: encode diff: %v", shared.ErrAuditWriteFailed, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, actor_id, action, target_kind, target_id, diff, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		id, entry.ActorID, entry.Action, entry.TargetKind, entry.TargetID, diffJSON, toPgTime(entry.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuditWriteFailed, err)
	}
	return nil
}

const windowQuery = `SELECT id, actor_id, action, target_kind, target_id, diff, occurred_at
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR target_kind = $4)
  AND ($5::text IS NULL OR action = $5)
ORDER BY occurred_at DESC, id
OFFSET $6 LIMIT $7`

// Window returns entries newest first.
func (s *PGStore) Window(ctx context.Context, arg WindowParams) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, windowQuery,
		arg.FromAt, arg.ToAt, arg.Actor, arg.TargetKind, arg.Action, arg.OffsetRows, arg.LimitRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			id       uuid.UUID
			entry    Entry
			diffJSON []byte
		)
		if err := rows.Scan(&id, &entry.ActorID, &entry.Action, &entry.TargetKind, &entry.TargetID, &diffJSON, &entry.OccurredAt); err != nil {
			return nil, err
		}
		entry.ID = id.String()
		if len(diffJSON) > 0 {
			if err := json.Unmarshal(diffJSON, &entry.Diff); err != nil {
				return nil, fmt.Errorf("audit: decode diff of %s: %w", entry.ID, err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
