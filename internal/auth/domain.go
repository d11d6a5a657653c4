package auth

import (
	"time"

	"github.com/ladtc/ladtc/internal/rbac"
)

// Identity is the authenticated principal resolved from a session.
type Identity struct {
	UserID        string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          rbac.Role `json:"role"`
	CommitteeRole string    `json:"committeeRole,omitempty"`

	authenticated bool
}

// Anonymous is the identity of a caller without a valid session.
var Anonymous = Identity{}

// NewIdentity builds an authenticated identity. Invalid roles are mapped to
// rbac.RoleMember.
func NewIdentity(userID, name, email string, role rbac.Role, committeeRole string) Identity {
	if !role.Valid() {
		role = rbac.RoleMember
	}
	return Identity{
		UserID:        userID,
		Name:          name,
		Email:         email,
		Role:          role,
		CommitteeRole: committeeRole,
		authenticated: true,
	}
}

// GetID implements rbac.Principal.
func (i Identity) GetID() string { return i.UserID }

// GetRole implements rbac.Principal.
func (i Identity) GetRole() rbac.Role { return i.Role }

// IsAuthenticated implements rbac.Principal.
func (i Identity) IsAuthenticated() bool { return i.authenticated }

// SessionRecord is what a session store returns for a token: the session
// expiry joined with the owning user's snapshot. Role is the raw stored value.
type SessionRecord struct {
	Token         string
	ExpiresAt     time.Time
	UserID        string
	Name          string
	Email         string
	Role          string
	CommitteeRole string
}

var _ rbac.Principal = Identity{}
