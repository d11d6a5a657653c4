package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ladtc/ladtc/internal/platform/db"
	"github.com/ladtc/ladtc/internal/rbac"
	"github.com/ladtc/ladtc/internal/shared"
)

// Mutation edits a locked user row in place.
type Mutation func(u *User) error

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
	Get(ctx context.Context, id string) (User, error)
	Mutate(ctx context.Context, id string, apply Mutation) (before, after User, err error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, name, email, email_verified, image, role, committee_role, created_at, updated_at`

// List returns one page of users ordered by name, with the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	role := pgtype.Text{}
	if filter.Role != "" {
		role = pgtype.Text{String: string(filter.Role), Valid: true}
	}
	search := pgtype.Text{}
	if s := strings.TrimSpace(filter.Search); s != "" {
		search = pgtype.Text{String: "%" + strings.ToLower(s) + "%", Valid: true}
	}

	const where = `WHERE ($1::text IS NULL OR role = $1)
  AND ($2::text IS NULL OR lower(name) LIKE $2 OR lower(email) LIKE $2)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM "user" `+where, role, search).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM "user" `+where+` ORDER BY name, id OFFSET $3 LIMIT $4`,
		role, search, (page-1)*perPage, perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	users := make([]User, 0, perPage)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Get returns the user with id.
func (r *Repository) Get(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM "user" WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	return u, err
}

// Mutate locks the row, applies fn and writes the result in one transaction.
func (r *Repository) Mutate(ctx context.Context, id string, apply Mutation) (before, after User, err error) {
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM "user" WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return err
		}
		before = current
		next := current
		if err := apply(&next); err != nil {
			return err
		}
		if next == current {
			after = current
			return nil
		}
		after, err = scanUser(tx.QueryRow(ctx,
			`UPDATE "user" SET name = $2, image = $3, role = COALESCE($4, role), committee_role = $5, updated_at = NOW()
			 WHERE id = $1 RETURNING `+userColumns,
			id, next.Name, nullableText(next.Image), roleColumn(current, next), nullableText(next.CommitteeRole)))
		if err != nil {
			return fmt.Errorf("users: update %s: %w", id, err)
		}
		return nil
	})
	return before, after, err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u             User
		image         pgtype.Text
		role          string
		committeeRole pgtype.Text
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.EmailVerified, &image, &role, &committeeRole, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Image = image.String
	u.Role, _ = rbac.ParseRole(role)
	u.CommitteeRole = committeeRole.String
	return u, nil
}

// roleColumn returns the role to store, or NULL to leave the stored value
// untouched. Stored roles outside the known set read as MEMBER but are only
// overwritten by an explicit role change.
func roleColumn(current, next User) pgtype.Text {
	if next.Role == current.Role {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(next.Role), Valid: true}
}

func nullableText(value string) pgtype.Text {
	if strings.TrimSpace(value) == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
