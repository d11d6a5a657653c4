package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ladtc/ladtc/internal/shared"
)

// Audit action tags recorded by the service.
const (
	ActionPaymentConfirmed = "MEMBERSHIP_PAYMENT_CONFIRMED"
	ActionSuspended        = "MEMBERSHIP_SUSPENDED"
	ActionReactivated      = "MEMBERSHIP_REACTIVATED"

	auditTargetKind = "membership"
)

// AuditRecorder receives privileged mutations after they commit.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, targetKind, targetID string, diff map[string]any)
}

// ListFilter narrows a membership listing. Status filters on effective status.
type ListFilter struct {
	Status  Status
	Page    int
	PerPage int
}

// Stats summarises memberships for the committee dashboard.
type Stats struct {
	Total         int       `json:"total"`
	Pending       int       `json:"pending"`
	Active        int       `json:"active"`
	Expiring      int       `json:"expiring"`
	Expired       int       `json:"expired"`
	Inactive      int       `json:"inactive"`
	ActiveRevenue float64   `json:"activeRevenue"`
	AsOf          time.Time `json:"asOf"`
}

// Service wraps membership lifecycle rules.
type Service struct {
	repo           Repository
	machine        Machine
	audit          AuditRecorder
	expiringWindow time.Duration
	now            func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, machine Machine, audit AuditRecorder, expiringWindow time.Duration) *Service {
	return &Service{
		repo:           repo,
		machine:        machine,
		audit:          audit,
		expiringWindow: expiringWindow,
		now:            time.Now,
	}
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// ExpiringWindow returns the look-ahead used for the expiring flag.
func (s *Service) ExpiringWindow() time.Duration {
	return s.expiringWindow
}

// Get returns the member's dues record with its effective status.
func (s *Service) Get(ctx context.Context, userID string) (Membership, error) {
	m, err := s.repo.GetByUserID(ctx, strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Membership{}, shared.ErrNoMembership
		}
		return Membership{}, err
	}
	return Effective(m, s.Now()), nil
}

// HasActiveDues reports whether userID currently has ACTIVE dues. A user
// without a membership has none.
func (s *Service) HasActiveDues(ctx context.Context, userID string) (bool, error) {
	m, err := s.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNoMembership) {
			return false, nil
		}
		return false, err
	}
	return m.Status == StatusActive, nil
}

// List returns memberships with effective statuses, optionally filtered.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Membership, shared.Pagination, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	now := s.Now()
	filtered := make([]Membership, 0, len(all))
	for _, m := range all {
		m = Effective(m, now)
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		filtered = append(filtered, m)
	}
	paging := shared.NewPagination(filter.Page, filter.PerPage, len(filtered))
	start := min(max(paging.Offset(), 0), len(filtered))
	end := min(start+paging.PerPage, len(filtered))
	return filtered[start:end], paging, nil
}

// Stats computes dashboard KPIs from effective statuses.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	now := s.Now()
	stats := Stats{Total: len(all), AsOf: now}
	for _, m := range all {
		switch EffectiveStatus(m, now) {
		case StatusPending:
			stats.Pending++
		case StatusActive:
			stats.Active++
			stats.ActiveRevenue += m.AmountPaid
			if IsExpiring(m, now, s.expiringWindow) {
				stats.Expiring++
			}
		case StatusExpired:
			stats.Expired++
		case StatusInactive:
			stats.Inactive++
		}
	}
	return stats, nil
}

// ConfirmPayment activates the member's dues, creating the record when the
// member has none yet.
func (s *Service) ConfirmPayment(ctx context.Context, actorID, userID string, amount float64) (Membership, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Membership{}, fmt.Errorf("membership: %w: user id required", shared.ErrValidation)
	}
	now := s.Now()

	current, err := s.repo.GetByUserID(ctx, userID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		created := Membership{ID: uuid.New(), UserID: userID, Status: StatusPending, CreatedAt: now, UpdatedAt: now}
		next, err := s.machine.Advance(created, PaymentConfirmed(amount), now)
		if err != nil {
			return Membership{}, err
		}
		err = s.repo.Create(ctx, next)
		if errors.Is(err, ErrConflict) {
			// Lost the race against another confirmation; apply to the winner's record.
			return s.ConfirmPayment(ctx, actorID, userID, amount)
		}
		if err != nil {
			return Membership{}, err
		}
		s.record(ctx, actorID, ActionPaymentConfirmed, created, next)
		return next, nil
	case err != nil:
		return Membership{}, err
	}

	return s.apply(ctx, actorID, current.ID, PaymentConfirmed(amount), ActionPaymentConfirmed)
}

// Suspend administratively suspends a membership. Suspending an INACTIVE
// membership succeeds without change.
func (s *Service) Suspend(ctx context.Context, actorID string, id uuid.UUID) (Membership, error) {
	return s.apply(ctx, actorID, id, AdminSuspend(), ActionSuspended)
}

// Reactivate restores an INACTIVE or EXPIRED membership with a renewal date
// counted from now.
func (s *Service) Reactivate(ctx context.Context, actorID string, id uuid.UUID) (Membership, error) {
	return s.apply(ctx, actorID, id, AdminReactivate(), ActionReactivated)
}

func (s *Service) apply(ctx context.Context, actorID string, id uuid.UUID, ev Event, action string) (Membership, error) {
	now := s.Now()
	current, next, err := s.repo.Transition(ctx, id, func(current Membership) (Membership, error) {
		return s.machine.Advance(current, ev, now)
	})
	if err != nil {
		return Membership{}, err
	}
	from := Effective(current, now)
	// The sweep-only part of a transition is not an operator action.
	if Changed(current, next) && (next.Status != from.Status || ev.Kind == EventPaymentConfirmed) {
		s.record(ctx, actorID, action, from, next)
	}
	return next, nil
}

func (s *Service) record(ctx context.Context, actorID, action string, before, after Membership) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, actorID, action, auditTargetKind, after.ID.String(), map[string]any{
		"user_id": after.UserID,
		"before":  snapshot(before),
		"after":   snapshot(after),
	})
}

func snapshot(m Membership) map[string]any {
	out := map[string]any{
		"status":      string(m.Status),
		"amount_paid": m.AmountPaid,
	}
	if m.RenewalDate != nil {
		out["renewal_date"] = m.RenewalDate.UTC().Format(time.RFC3339)
	}
	return out
}
