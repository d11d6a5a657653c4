package membership

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a dues record.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusExpired  Status = "EXPIRED"
)

// Valid reports whether s belongs to the closed enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusExpired:
		return true
	}
	return false
}

// ParseStatus normalises a stored status. Unknown values map to
// StatusInactive so they never count as current dues.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if s.Valid() {
		return s, true
	}
	return StatusInactive, false
}

// Holder carries the contact details of the member owning the record.
type Holder struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Membership is a member's dues record. At most one exists per user.
type Membership struct {
	ID          uuid.UUID
	UserID      string
	Status      Status
	AmountPaid  float64
	RenewalDate *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Holder      Holder
}

// EventKind enumerates the inputs of the state machine.
type EventKind string

const (
	EventPaymentConfirmed EventKind = "PAYMENT_CONFIRMED"
	EventAdminSuspend     EventKind = "ADMIN_SUSPEND"
	EventAdminReactivate  EventKind = "ADMIN_REACTIVATE"
	EventTimeSweep        EventKind = "TIME_SWEEP"
)

// Event is a state machine input. Amount is only meaningful for payments.
type Event struct {
	Kind   EventKind
	Amount float64
}

// PaymentConfirmed builds a payment confirmation event.
func PaymentConfirmed(amount float64) Event {
	return Event{Kind: EventPaymentConfirmed, Amount: amount}
}

// AdminSuspend builds an administrative suspension event.
func AdminSuspend() Event { return Event{Kind: EventAdminSuspend} }

// AdminReactivate builds an administrative reactivation event.
func AdminReactivate() Event { return Event{Kind: EventAdminReactivate} }

// TimeSweep builds the time-driven expiry event.
func TimeSweep() Event { return Event{Kind: EventTimeSweep} }

// ErrUnknownEvent rejects events outside the closed vocabulary.
var ErrUnknownEvent = errors.New("membership: unknown event")

// ErrConflict indicates a concurrent writer created the record first.
var ErrConflict = errors.New("membership: record already exists")
