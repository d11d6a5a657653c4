package users

import (
	"time"

	"github.com/ladtc/ladtc/internal/rbac"
)

// User is a club account as seen by administration.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Image         string    `json:"image,omitempty"`
	Role          rbac.Role `json:"role"`
	CommitteeRole string    `json:"committeeRole,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Profile is the self-service view of a user.
type Profile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Image         string    `json:"image,omitempty"`
	Role          rbac.Role `json:"role"`
	CommitteeRole string    `json:"committeeRole,omitempty"`
}

// ProfileOf projects u onto its self-service view.
func ProfileOf(u User) Profile {
	return Profile{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Image:         u.Image,
		Role:          u.Role,
		CommitteeRole: u.CommitteeRole,
	}
}

// ListFilter narrows the administration listing.
type ListFilter struct {
	Role    rbac.Role
	Search  string
	Page    int
	PerPage int
}

// RoleChange is an administrative role assignment.
type RoleChange struct {
	Role          rbac.Role
	CommitteeRole string
}

// ProfileChange carries self-service edits. Nil fields are left untouched.
type ProfileChange struct {
	Name *string
}
