package membership

import (
	"fmt"
	"math"
	"time"

	"github.com/ladtc/ladtc/internal/shared"
)

// DefaultPeriodMonths is the length of a paid membership.
const DefaultPeriodMonths = 12

// Machine applies lifecycle events to memberships. It holds no state besides
// the membership period and is safe for concurrent use.
type Machine struct {
	periodMonths int
}

// NewMachine builds a Machine; non-positive periods use DefaultPeriodMonths.
func NewMachine(periodMonths int) Machine {
	if periodMonths <= 0 {
		periodMonths = DefaultPeriodMonths
	}
	return Machine{periodMonths: periodMonths}
}

// RenewalFrom returns the renewal date of a membership activated at now.
func (m Machine) RenewalFrom(now time.Time) time.Time {
	months := m.periodMonths
	if months <= 0 {
		months = DefaultPeriodMonths
	}
	return now.AddDate(0, months, 0)
}

// Advance applies ev to ms as observed at now and returns the new record.
// The input is never modified. Every event is defined for every state; only a
// payment with a non-positive amount fails.
func (m Machine) Advance(ms Membership, ev Event, now time.Time) (Membership, error) {
	current := Effective(ms, now)
	next := current

	switch ev.Kind {
	case EventPaymentConfirmed:
		if !(ev.Amount > 0) || math.IsInf(ev.Amount, 0) {
			return ms, fmt.Errorf("membership: %w (got %v)", shared.ErrInvalidPayment, ev.Amount)
		}
		next.Status = StatusActive
		next.AmountPaid = ev.Amount
		next.RenewalDate = timePtr(m.RenewalFrom(now))
	case EventAdminSuspend:
		if current.Status == StatusActive || current.Status == StatusPending {
			next.Status = StatusInactive
		}
	case EventAdminReactivate:
		if current.Status == StatusInactive || current.Status == StatusExpired {
			next.Status = StatusActive
			next.RenewalDate = timePtr(m.RenewalFrom(now))
		}
	case EventTimeSweep:
		// Effective already applied the sweep.
	default:
		return ms, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}

	if Changed(ms, next) {
		next.UpdatedAt = now
	}
	return next, nil
}

// EffectiveStatus recomputes the status of ms at now: an ACTIVE record whose
// renewal date has passed reads as EXPIRED.
func EffectiveStatus(ms Membership, now time.Time) Status {
	status, _ := ParseStatus(string(ms.Status))
	if status == StatusActive && (ms.RenewalDate == nil || now.After(*ms.RenewalDate)) {
		return StatusExpired
	}
	return status
}

// Effective returns ms with its status recomputed at now.
func Effective(ms Membership, now time.Time) Membership {
	ms.Status = EffectiveStatus(ms, now)
	return ms
}

// IsExpiring reports whether ms is effectively ACTIVE and renews within window.
func IsExpiring(ms Membership, now time.Time, window time.Duration) bool {
	if EffectiveStatus(ms, now) != StatusActive || ms.RenewalDate == nil {
		return false
	}
	return !ms.RenewalDate.After(now.Add(window))
}

// Changed reports whether a transition altered persisted fields.
func Changed(before, after Membership) bool {
	if before.Status != after.Status || before.AmountPaid != after.AmountPaid {
		return true
	}
	switch {
	case before.RenewalDate == nil && after.RenewalDate == nil:
		return false
	case before.RenewalDate == nil || after.RenewalDate == nil:
		return true
	default:
		return !before.RenewalDate.Equal(*after.RenewalDate)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
