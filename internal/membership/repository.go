package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ladtc/ladtc/internal/platform/db"
	"github.com/ladtc/ladtc/internal/shared"
)

// Repository defines persistence operations for memberships.
type Repository interface {
	GetByUserID(ctx context.Context, userID string) (Membership, error)
	Create(ctx context.Context, m Membership) error
	Transition(ctx context.Context, id uuid.UUID, apply TransitionFunc) (before, after Membership, err error)
	List(ctx context.Context) ([]Membership, error)
	ListByStatus(ctx context.Context, status Status) ([]Membership, error)
}

// TransitionFunc computes the next state of a locked membership.
type TransitionFunc func(current Membership) (Membership, error)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectMembership = `SELECT m.id, m.user_id, m.status, m.amount_paid::float8, m.renewal_date, m.created_at, m.updated_at, u.name, u.email
FROM memberships m
JOIN "user" u ON u.id = m.user_id`

// GetByUserID fetches the membership owned by userID.
func (r *PGRepository) GetByUserID(ctx context.Context, userID string) (Membership, error) {
	return r.getOne(ctx, selectMembership+` WHERE m.user_id = $1`, userID)
}

// Create inserts a new membership. ErrConflict is returned when the user
// already owns one.
func (r *PGRepository) Create(ctx context.Context, m Membership) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO memberships (id, user_id, status, amount_paid, renewal_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.UserID, string(m.Status), m.AmountPaid, toPgTime(m.RenewalDate), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("membership: create: %w", err)
	}
	return nil
}

// Transition locks the row, applies fn and writes the result in one
// transaction. Concurrent transitions on the same id are serialised, so fn
// always sees the last committed state.
func (r *PGRepository) Transition(ctx context.Context, id uuid.UUID, apply TransitionFunc) (before, after Membership, err error) {
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanMembership(tx.QueryRow(ctx, selectMembership+` WHERE m.id = $1 FOR UPDATE OF m`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("membership: lock %s: %w", id, err)
		}
		before = current
		next, err := apply(current)
		if err != nil {
			return err
		}
		after = next
		if !Changed(current, next) {
			return nil
		}
		_, err = tx.Exec(ctx,
			`UPDATE memberships SET status = $2, amount_paid = $3, renewal_date = $4, updated_at = $5 WHERE id = $1`,
			id, string(next.Status), next.AmountPaid, toPgTime(next.RenewalDate), next.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("membership: update %s: %w", id, err)
		}
		return nil
	})
	return before, after, err
}

// List returns every membership ordered by holder name.
func (r *PGRepository) List(ctx context.Context) ([]Membership, error) {
	return r.getMany(ctx, selectMembership+` ORDER BY u.name, m.created_at`)
}

// ListByStatus returns memberships whose stored status equals status.
func (r *PGRepository) ListByStatus(ctx context.Context, status Status) ([]Membership, error) {
	return r.getMany(ctx, selectMembership+` WHERE m.status = $1 ORDER BY m.renewal_date NULLS LAST`, string(status))
}

func (r *PGRepository) getOne(ctx context.Context, query string, args ...any) (Membership, error) {
	m, err := scanMembership(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, shared.ErrNotFound
		}
		return Membership{}, fmt.Errorf("membership: get: %w", err)
	}
	return m, nil
}

func (r *PGRepository) getMany(ctx context.Context, query string, args ...any) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("membership: list: %w", err)
	}
	defer rows.Close()
	var out []Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("membership: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("membership: list: %w", err)
	}
	return out, nil
}

func scanMembership(row pgx.Row) (Membership, error) {
	var (
		m       Membership
		status  string
		renewal pgtype.Timestamptz
	)
	if err := row.Scan(&m.ID, &m.UserID, &status, &m.AmountPaid, &renewal, &m.CreatedAt, &m.UpdatedAt, &m.Holder.Name, &m.Holder.Email); err != nil {
		return Membership{}, err
	}
	m.Status, _ = ParseStatus(status)
	if renewal.Valid {
		t := renewal.Time
		m.RenewalDate = &t
	}
	return m, nil
}

func toPgTime(t *time.Time) pgtype.Timestamptz {
	if t == nil || t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

var _ Repository = (*PGRepository)(nil)
