package guard

import (
	"sort"
	"strings"

	"github.com/ladtc/ladtc/internal/rbac"
)

// Surface distinguishes browser-navigable pages from programmatic endpoints.
type Surface string

const (
	SurfaceUI  Surface = "ui"
	SurfaceAPI Surface = "api"
)

// Rule binds a path prefix to its access requirement.
type Rule struct {
	Prefix      string
	Surface     Surface
	Requirement rbac.Requirement
}

// RoutePolicy classifies request paths. It is immutable once built and safe
// for concurrent use.
type RoutePolicy struct {
	rules []Rule
}

// NewRoutePolicy builds a policy from rules. Prefixes are normalised and
// matched on path segment boundaries, the longest prefix winning. A rule
// without a surface is API when its prefix lives under /api.
func NewRoutePolicy(rules ...Rule) RoutePolicy {
	normalised := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		rule.Prefix = normalisePath(rule.Prefix)
		if rule.Surface == "" {
			rule.Surface = surfaceOf(rule.Prefix)
		}
		normalised = append(normalised, rule)
	}
	sort.SliceStable(normalised, func(i, j int) bool {
		return len(normalised[i].Prefix) > len(normalised[j].Prefix)
	})
	return RoutePolicy{rules: normalised}
}

// DefaultRoutePolicy returns the club's route classification.
func DefaultRoutePolicy() RoutePolicy {
	staff := rbac.AnyOf(rbac.RoleCommittee, rbac.RoleAdmin)
	admin := rbac.AnyOf(rbac.RoleAdmin)
	member := rbac.Authenticated()
	return NewRoutePolicy(
		Rule{Prefix: "/admin", Requirement: staff},
		Rule{Prefix: "/admin/users", Requirement: admin},
		Rule{Prefix: "/members", Requirement: member},
		Rule{Prefix: "/profile", Requirement: member},
		Rule{Prefix: "/shop/checkout", Requirement: member},
		Rule{Prefix: "/api/admin", Requirement: admin},
		Rule{Prefix: "/api/admin/stats", Requirement: staff},
		Rule{Prefix: "/api/memberships", Requirement: member},
		Rule{Prefix: "/api/users", Requirement: member},
		Rule{Prefix: "/api/checkout", Requirement: member},
	)
}

// Classify returns the rule governing path. Paths no rule covers are public
// and reported with ok=false.
func (p RoutePolicy) Classify(path string) (Rule, bool) {
	path = normalisePath(path)
	for _, rule := range p.rules {
		if matches(rule.Prefix, path) {
			return rule, true
		}
	}
	return Rule{Prefix: path, Surface: surfaceOf(path), Requirement: rbac.Public()}, false
}

// Rules returns a copy of the rules, longest prefix first.
func (p RoutePolicy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

func matches(prefix, path string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func surfaceOf(path string) Surface {
	if matches("/api", path) {
		return SurfaceAPI
	}
	return SurfaceUI
}

func normalisePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
