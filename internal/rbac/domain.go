package rbac

import (
	"sort"
	"strings"
)

// Role is the closed set of club roles.
type Role string

const (
	RoleMember    Role = "MEMBER"
	RoleCoach     Role = "COACH"
	RoleCommittee Role = "COMMITTEE"
	RoleAdmin     Role = "ADMIN"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleMember, RoleCoach, RoleCommittee, RoleAdmin}
}

// Valid reports whether r belongs to the closed enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleCoach, RoleCommittee, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalises a stored role string. Unknown values resolve to
// RoleMember (least privilege) and ok is false so callers can log them.
func ParseRole(raw string) (role Role, ok bool) {
	candidate := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if candidate.Valid() {
		return candidate, true
	}
	return RoleMember, false
}

// Principal describes the authenticated actor.
type Principal interface {
	GetID() string
	GetRole() Role
	IsAuthenticated() bool
}

// Action names an operation guarded by the policy.
type Action string

const (
	ActionContentRead        Action = "content.read"
	ActionTeamRead           Action = "team.read"
	ActionProfileSelfService Action = "profile.self_service"
	ActionMembershipSelfView Action = "membership.self_view"
	ActionShopCheckout       Action = "shop.checkout"
	ActionDashboardRead      Action = "dashboard.read"
	ActionStatsRead          Action = "stats.read"
	ActionUsersList          Action = "users.list"
	ActionUserRoleUpdate     Action = "users.role.update"
	ActionUserImageUpdate    Action = "users.image.update"
	ActionUserProfileUpdate  Action = "users.profile.update"
	ActionMembershipManage   Action = "membership.manage"
	ActionAuditRead          Action = "audit.read"
	ActionJobsView           Action = "jobs.view"
)

// Access classifies a requirement.
type Access uint8

const (
	// AccessPublic needs no session.
	AccessPublic Access = iota
	// AccessAuthenticated needs any valid session.
	AccessAuthenticated
	// AccessRoles needs a session whose role is in the permitted set.
	AccessRoles
)

// Requirement is the permitted-role set of an action or route.
type Requirement struct {
	access Access
	roles  map[Role]struct{}
}

// Public builds a requirement open to anonymous callers.
func Public() Requirement {
	return Requirement{access: AccessPublic}
}

// Authenticated builds a requirement satisfied by any valid session.
func Authenticated() Requirement {
	return Requirement{access: AccessAuthenticated}
}

// AnyOf builds a requirement satisfied by membership in the given role set.
func AnyOf(roles ...Role) Requirement {
	set := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		if r.Valid() {
			set[r] = struct{}{}
		}
	}
	return Requirement{access: AccessRoles, roles: set}
}

// Access returns the requirement class.
func (r Requirement) Access() Access {
	return r.access
}

// Protected reports whether a session is needed at all.
func (r Requirement) Protected() bool {
	return r.access != AccessPublic
}

// Roles returns the permitted roles in a stable order.
func (r Requirement) Roles() []Role {
	out := make([]Role, 0, len(r.roles))
	for role := range r.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Allows tests set membership for role.
func (r Requirement) Allows(role Role) bool {
	switch r.access {
	case AccessPublic, AccessAuthenticated:
		return true
	default:
		_, ok := r.roles[role]
		return ok
	}
}

// Satisfied evaluates the requirement against a principal.
func (r Requirement) Satisfied(p Principal) bool {
	if r.access == AccessPublic {
		return true
	}
	if p == nil || !p.IsAuthenticated() {
		return false
	}
	return r.Allows(p.GetRole())
}
