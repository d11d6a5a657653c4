package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPrincipal struct {
	id   string
	role Role
	anon bool
}

func (p testPrincipal) GetID() string         { return p.id }
func (p testPrincipal) GetRole() Role         { return p.role }
func (p testPrincipal) IsAuthenticated() bool { return !p.anon }

var anonymous = testPrincipal{anon: true}

func TestParseRoleLeastPrivilege(t *testing.T) {
	cases := map[string]struct {
		want Role
		ok   bool
	}{
		"ADMIN":       {RoleAdmin, true},
		" committee ": {RoleCommittee, true},
		"coach":       {RoleCoach, true},
		"MEMBER":      {RoleMember, true},
		"SUPERADMIN":  {RoleMember, false},
		"":            {RoleMember, false},
		"admin;drop":  {RoleMember, false},
	}
	for raw, tc := range cases {
		got, ok := ParseRole(raw)
		assert.Equal(t, tc.want, got, raw)
		assert.Equal(t, tc.ok, ok, raw)
	}
}

func TestDefaultPolicyRoleSets(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		action  Action
		allowed []Role
	}{
		{ActionDashboardRead, []Role{RoleCommittee, RoleAdmin}},
		{ActionStatsRead, []Role{RoleCommittee, RoleAdmin}},
		{ActionUsersList, []Role{RoleAdmin}},
		{ActionUserRoleUpdate, []Role{RoleAdmin}},
		{ActionUserImageUpdate, []Role{RoleAdmin}},
		{ActionMembershipManage, []Role{RoleAdmin}},
		{ActionProfileSelfService, Roles()},
		{ActionContentRead, Roles()},
	}
	for _, tc := range cases {
		allowed := make(map[Role]bool, len(tc.allowed))
		for _, r := range tc.allowed {
			allowed[r] = true
		}
		for _, role := range Roles() {
			got := policy.Authorize(testPrincipal{id: "u1", role: role}, tc.action)
			assert.Equal(t, allowed[role], got.Allowed(), "%s as %s", tc.action, role)
		}
	}
}

func TestAuthorizeAnonymous(t *testing.T) {
	policy := DefaultPolicy()

	require.True(t, policy.Authorize(anonymous, ActionContentRead).Allowed())
	require.False(t, policy.Authorize(anonymous, ActionProfileSelfService).Allowed())
	require.False(t, policy.Authorize(anonymous, ActionDashboardRead).Allowed())
	require.False(t, policy.Authorize(nil, ActionDashboardRead).Allowed())
}

func TestAuthorizeUnknownActionDenied(t *testing.T) {
	policy := DefaultPolicy()
	admin := testPrincipal{id: "a", role: RoleAdmin}
	require.Equal(t, Denied, policy.Authorize(admin, Action("shop.refund")))
}

func TestAuthorizeOwnedOwnerEscapeHatch(t *testing.T) {
	policy := DefaultPolicy()
	member := testPrincipal{id: "user-1", role: RoleMember}

	// Avatar mutation needs ADMIN, but the owner is always allowed.
	assert.True(t, policy.AuthorizeOwned(member, ActionUserImageUpdate, "user-1").Allowed())
	assert.False(t, policy.AuthorizeOwned(member, ActionUserImageUpdate, "user-2").Allowed())

	admin := testPrincipal{id: "admin-1", role: RoleAdmin}
	assert.True(t, policy.AuthorizeOwned(admin, ActionUserImageUpdate, "user-2").Allowed())

	committee := testPrincipal{id: "c-1", role: RoleCommittee}
	assert.False(t, policy.AuthorizeOwned(committee, ActionUserImageUpdate, "user-2").Allowed())
}

func TestIsOwnerRequiresAuthentication(t *testing.T) {
	assert.False(t, IsOwner(testPrincipal{id: "user-1", anon: true}, "user-1"))
	assert.False(t, IsOwner(testPrincipal{id: "", role: RoleMember}, ""))
	assert.True(t, IsOwner(testPrincipal{id: "user-1", role: RoleMember}, "user-1"))
}

func TestNewPolicyIsolatedFromInput(t *testing.T) {
	rules := map[Action]Requirement{ActionStatsRead: AnyOf(RoleAdmin)}
	policy := NewPolicy(rules)
	rules[ActionStatsRead] = Public()

	require.False(t, policy.Authorize(testPrincipal{id: "m", role: RoleMember}, ActionStatsRead).Allowed())
}

func TestRequirementRolesStableOrder(t *testing.T) {
	req := AnyOf(RoleCommittee, RoleAdmin, Role("BOGUS"))
	require.Equal(t, []Role{RoleAdmin, RoleCommittee}, req.Roles())
	require.True(t, req.Protected())
	require.False(t, Public().Protected())
}
