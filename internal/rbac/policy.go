package rbac

import "strings"

// Decision is the outcome of an authorization check.
type Decision uint8

const (
	Denied Decision = iota
	Allowed
)

// Allowed reports whether the decision grants access.
func (d Decision) Allowed() bool {
	return d == Allowed
}

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// Policy maps actions to permitted-role sets. It is immutable once built and
// safe for concurrent use.
type Policy struct {
	rules map[Action]Requirement
}

// NewPolicy copies rules into a new Policy.
func NewPolicy(rules map[Action]Requirement) Policy {
	copied := make(map[Action]Requirement, len(rules))
	for action, req := range rules {
		copied[action] = req
	}
	return Policy{rules: copied}
}

// DefaultPolicy returns the club capability table.
func DefaultPolicy() Policy {
	return NewPolicy(map[Action]Requirement{
		ActionContentRead:        Public(),
		ActionTeamRead:           Public(),
		ActionProfileSelfService: Authenticated(),
		ActionMembershipSelfView: Authenticated(),
		ActionShopCheckout:       Authenticated(),
		ActionDashboardRead:      AnyOf(RoleCommittee, RoleAdmin),
		ActionStatsRead:          AnyOf(RoleCommittee, RoleAdmin),
		ActionUsersList:          AnyOf(RoleAdmin),
		ActionUserRoleUpdate:     AnyOf(RoleAdmin),
		ActionUserImageUpdate:    AnyOf(RoleAdmin),
		ActionUserProfileUpdate:  AnyOf(RoleAdmin),
		ActionMembershipManage:   AnyOf(RoleAdmin),
		ActionAuditRead:          AnyOf(RoleAdmin),
		ActionJobsView:           AnyOf(RoleAdmin),
	})
}

// Requirement returns the rule for action.
func (p Policy) Requirement(action Action) (Requirement, bool) {
	req, ok := p.rules[action]
	return req, ok
}

// Authorize checks role-set membership. Unknown actions are denied.
func (p Policy) Authorize(principal Principal, action Action) Decision {
	req, ok := p.rules[action]
	if !ok {
		return Denied
	}
	if req.Satisfied(principal) {
		return Allowed
	}
	return Denied
}

// IsOwner reports whether principal owns the resource identified by ownerID.
func IsOwner(principal Principal, ownerID string) bool {
	if principal == nil || !principal.IsAuthenticated() {
		return false
	}
	id := strings.TrimSpace(principal.GetID())
	return id != "" && id == strings.TrimSpace(ownerID)
}

// AuthorizeOwned grants access to the resource owner regardless of role and
// falls back to the role set of action otherwise.
func (p Policy) AuthorizeOwned(principal Principal, action Action, ownerID string) Decision {
	if IsOwner(principal, ownerID) {
		return Allowed
	}
	return p.Authorize(principal, action)
}
