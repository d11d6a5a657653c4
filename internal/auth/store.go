package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ladtc/ladtc/internal/shared"
)

// SessionStore looks up a session by token. Implementations return
// shared.ErrNotFound for unknown tokens and wrap infrastructure failures with
// shared.ErrSessionStoreUnavailable.
type SessionStore interface {
	LookupSession(ctx context.Context, token string) (SessionRecord, error)
}

// PGSessionStore reads sessions written by the authentication service into
// PostgreSQL.
type PGSessionStore struct {
	pool *pgxpool.Pool
}

// NewPGSessionStore constructs a PostgreSQL session store.
func NewPGSessionStore(pool *pgxpool.Pool) *PGSessionStore {
	return &PGSessionStore{pool: pool}
}

const lookupSessionSQL = `SELECT s.token, s.expires_at, u.id, u.name, u.email, u.role, u.committee_role
FROM session s
JOIN "user" u ON u.id = s.user_id
WHERE s.token = $1`

// LookupSession fetches the session and its user in one round trip.
func (s *PGSessionStore) LookupSession(ctx context.Context, token string) (SessionRecord, error) {
	var (
		rec           SessionRecord
		committeeRole pgtype.Text
	)
	err := s.pool.QueryRow(ctx, lookupSessionSQL, token).Scan(
		&rec.Token, &rec.ExpiresAt, &rec.UserID, &rec.Name, &rec.Email, &rec.Role, &committeeRole,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SessionRecord{}, shared.ErrNotFound
		}
		return SessionRecord{}, fmt.Errorf("%w: %v", shared.ErrSessionStoreUnavailable, err)
	}
	if committeeRole.Valid {
		rec.CommitteeRole = committeeRole.String
	}
	return rec, nil
}

// RedisSessionStore reads session snapshots cached in Redis under
// "session:<token>" as JSON.
type RedisSessionStore struct {
	client *redis.Client
}

type redisSessionPayload struct {
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	CommitteeRole string    `json:"committee_role,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// NewRedisSessionStore constructs a Redis backed session store.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

// LookupSession loads the snapshot stored for token.
func (s *RedisSessionStore) LookupSession(ctx context.Context, token string) (SessionRecord, error) {
	payload, err := s.client.Get(ctx, RedisSessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionRecord{}, shared.ErrNotFound
		}
		return SessionRecord{}, fmt.Errorf("%w: %v", shared.ErrSessionStoreUnavailable, err)
	}
	var stored redisSessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		// A corrupt entry cannot authenticate anyone.
		return SessionRecord{}, shared.ErrNotFound
	}
	return SessionRecord{
		Token:         token,
		ExpiresAt:     stored.ExpiresAt,
		UserID:        stored.UserID,
		Name:          stored.Name,
		Email:         stored.Email,
		Role:          stored.Role,
		CommitteeRole: stored.CommitteeRole,
	}, nil
}

// RedisSessionKey returns the key a session snapshot is stored under.
func RedisSessionKey(token string) string {
	return "session:" + token
}

var (
	_ SessionStore = (*PGSessionStore)(nil)
	_ SessionStore = (*RedisSessionStore)(nil)
)
