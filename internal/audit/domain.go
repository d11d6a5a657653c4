package audit

import "time"

// Action tags for privileged mutations. Record accepts any string; these are
// the ones the application emits.
const (
	ActionUserRoleUpdated            = "USER_ROLE_UPDATED"
	ActionUserImageUpdated           = "USER_IMAGE_UPDATED"
	ActionUserProfileUpdated         = "USER_PROFILE_UPDATED"
	ActionMembershipPaymentConfirmed = "MEMBERSHIP_PAYMENT_CONFIRMED"
	ActionMembershipSuspended        = "MEMBERSHIP_SUSPENDED"
	ActionMembershipReactivated      = "MEMBERSHIP_REACTIVATED"
)

// Actions lists the emitted vocabulary in a stable order.
func Actions() []string {
	return []string{
		ActionUserRoleUpdated,
		ActionUserImageUpdated,
		ActionUserProfileUpdated,
		ActionMembershipPaymentConfirmed,
		ActionMembershipSuspended,
		ActionMembershipReactivated,
	}
}

// Entry is one append-only audit record.
type Entry struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actorId"`
	Action     string         `json:"action"`
	TargetKind string         `json:"targetKind"`
	TargetID   string         `json:"targetId"`
	Diff       map[string]any `json:"diff,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// TimelineFilters narrows the audit timeline. To is exclusive.
type TimelineFilters struct {
	From       time.Time
	To         time.Time
	Actor      string
	TargetKind string
	Action     string
	Page       int
	PageSize   int
}

// PagingInfo carries simple previous/next paging metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}
