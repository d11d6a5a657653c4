package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/ladtc/ladtc/internal/rbac"
	"github.com/ladtc/ladtc/internal/shared"
)

// Audit action tags recorded by the service.
const (
	ActionRoleUpdated    = "USER_ROLE_UPDATED"
	ActionImageUpdated   = "USER_IMAGE_UPDATED"
	ActionProfileUpdated = "USER_PROFILE_UPDATED"

	auditTargetKind = "user"
)

// AuditRecorder receives privileged mutations after they commit.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, targetKind, targetID string, diff map[string]any)
}

// Service handles user administration and self-service.
type Service struct {
	repo   RepositoryPort
	policy rbac.Policy
	audit  AuditRecorder
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, policy rbac.Policy, audit AuditRecorder) *Service {
	return &Service{repo: repo, policy: policy, audit: audit}
}

// List returns one page of users.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, shared.Pagination, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, shared.Pagination{}, fmt.Errorf("users: %w: unknown role %q", shared.ErrValidation, filter.Role)
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Profile returns the profile of userID to its owner or an administrator.
func (s *Service) Profile(ctx context.Context, actor rbac.Principal, userID string) (Profile, error) {
	if err := s.authorizeOwned(actor, rbac.ActionUserProfileUpdate, userID); err != nil {
		return Profile{}, err
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return ProfileOf(u), nil
}

// UpdateProfile applies self-service edits. The owner is always allowed.
func (s *Service) UpdateProfile(ctx context.Context, actor rbac.Principal, userID string, change ProfileChange) (Profile, error) {
	if err := s.authorizeOwned(actor, rbac.ActionUserProfileUpdate, userID); err != nil {
		return Profile{}, err
	}
	before, after, err := s.repo.Mutate(ctx, userID, func(u *User) error {
		if change.Name != nil {
			name := strings.TrimSpace(*change.Name)
			if name == "" {
				return fmt.Errorf("users: %w: name required", shared.ErrValidation)
			}
			u.Name = name
		}
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	if before.Name != after.Name {
		s.record(ctx, actor, ActionProfileUpdated, userID, map[string]any{
			"before": map[string]any{"name": before.Name},
			"after":  map[string]any{"name": after.Name},
		})
	}
	return ProfileOf(after), nil
}

// UpdateImage replaces the avatar. Owners may change their own; anyone else
// needs ADMIN.
func (s *Service) UpdateImage(ctx context.Context, actor rbac.Principal, userID, image string) (User, error) {
	if err := s.authorizeOwned(actor, rbac.ActionUserImageUpdate, userID); err != nil {
		return User{}, err
	}
	image = strings.TrimSpace(image)
	before, after, err := s.repo.Mutate(ctx, userID, func(u *User) error {
		u.Image = image
		return nil
	})
	if err != nil {
		return User{}, err
	}
	if before.Image != after.Image {
		s.record(ctx, actor, ActionImageUpdated, userID, map[string]any{
			"before": map[string]any{"image": before.Image},
			"after":  map[string]any{"image": after.Image},
		})
	}
	return after, nil
}

// UpdateRole assigns a role. Administrators cannot change their own role.
// The committee sub-role is only kept for COMMITTEE members.
func (s *Service) UpdateRole(ctx context.Context, actor rbac.Principal, userID string, change RoleChange) (User, error) {
	if err := authzError(actor, s.policy.Authorize(actor, rbac.ActionUserRoleUpdate)); err != nil {
		return User{}, err
	}
	if !change.Role.Valid() {
		return User{}, fmt.Errorf("users: %w: unknown role %q", shared.ErrValidation, change.Role)
	}
	if rbac.IsOwner(actor, userID) {
		return User{}, fmt.Errorf("users: %w: cannot change own role", shared.ErrValidation)
	}
	committeeRole := strings.TrimSpace(change.CommitteeRole)
	if change.Role != rbac.RoleCommittee {
		committeeRole = ""
	}
	before, after, err := s.repo.Mutate(ctx, userID, func(u *User) error {
		u.Role = change.Role
		u.CommitteeRole = committeeRole
		return nil
	})
	if err != nil {
		return User{}, err
	}
	if before.Role != after.Role || before.CommitteeRole != after.CommitteeRole {
		s.record(ctx, actor, ActionRoleUpdated, userID, map[string]any{
			"before": map[string]any{"role": string(before.Role), "committee_role": before.CommitteeRole},
			"after":  map[string]any{"role": string(after.Role), "committee_role": after.CommitteeRole},
		})
	}
	return after, nil
}

func (s *Service) authorizeOwned(actor rbac.Principal, action rbac.Action, ownerID string) error {
	return authzError(actor, s.policy.AuthorizeOwned(actor, action, ownerID))
}

func authzError(actor rbac.Principal, decision rbac.Decision) error {
	if decision.Allowed() {
		return nil
	}
	if actor == nil || !actor.IsAuthenticated() {
		return shared.ErrUnauthenticated
	}
	return shared.ErrForbidden
}

func (s *Service) record(ctx context.Context, actor rbac.Principal, action, userID string, diff map[string]any) {
	if s.audit == nil {
		return
	}
	actorID := ""
	if actor != nil {
		actorID = actor.GetID()
	}
	s.audit.Record(ctx, actorID, action, auditTargetKind, userID, diff)
}
