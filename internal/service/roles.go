package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"bitwise74/marketplace-auth/internal/model"
	"bitwise74/marketplace-auth/internal/repository"
	"bitwise74/marketplace-auth/pkg/util"
)

// Slugs of the roles seeded by db.Migrate
const (
	RoleManager    = "role-manager"
	NetworkManager = "network-manager"
)

var ErrRoleExists = errors.New("role already exists")

// Roles answers membership questions and manages the role catalog
type Roles struct {
	roles repository.RoleStore
	users repository.UserStore
}

func NewRoles(roles repository.RoleStore, users repository.UserStore) *Roles {
	return &Roles{roles: roles, users: users}
}

func (s *Roles) ensureUser(ctx context.Context, userID int64) error {
	_, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}

	return err
}

func (s *Roles) ensureRole(ctx context.Context, roleID int64) error {
	_, err := s.roles.GetByID(ctx, roleID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}

	return err
}

func (s *Roles) ListRoles(ctx context.Context, userID int64) ([]model.Role, error) {
	return s.roles.ListForUser(ctx, userID)
}

// AddRole is idempotent
func (s *Roles) AddRole(ctx context.Context, userID, roleID int64) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}

	if err := s.ensureRole(ctx, roleID); err != nil {
		return err
	}

	return s.roles.AddMember(ctx, userID, roleID)
}

// RemoveRole is idempotent and never fails for a role the user does not hold
func (s *Roles) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.roles.RemoveMember(ctx, userID, roleID)
}

func (s *Roles) RemoveAllRoles(ctx context.Context, userID int64) error {
	return s.roles.RemoveAllMembers(ctx, userID)
}

// SyncRoles makes roleIDs the full role set of userID in one transaction
func (s *Roles) SyncRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}

	ids := slices.Clone(roleIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	for _, id := range ids {
		if err := s.ensureRole(ctx, id); err != nil {
			return fmt.Errorf("role %d, %w", id, err)
		}
	}

	return s.roles.ReplaceMembers(ctx, userID, ids)
}

func (s *Roles) HasRole(ctx context.Context, userID, roleID int64) (bool, error) {
	return s.roles.IsMember(ctx, userID, roleID)
}

// HasRoleBySlug fails closed: an unknown slug is reported as not held
func (s *Roles) HasRoleBySlug(ctx context.Context, userID int64, slug string) (bool, error) {
	role, err := s.roles.GetBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return s.roles.IsMember(ctx, userID, role.ID)
}

func (s *Roles) CreateRole(ctx context.Context, slug, name string) (*model.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidArgument(errors.New("role name can't be empty"))
	}

	if slug == "" {
		slug = util.Slugify(name)
	}

	if slug != util.Slugify(slug) {
		return nil, invalidArgument(fmt.Errorf("%q is not a valid slug", slug))
	}

	role := &model.Role{Slug: slug, Name: name}
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRoleExists
		}

		return nil, err
	}

	return role, nil
}

func (s *Roles) GetRoleBySlug(ctx context.Context, slug string) (*model.Role, error) {
	role, err := s.roles.GetBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}

	return role, err
}

func (s *Roles) ListAllRoles(ctx context.Context) ([]model.Role, error) {
	return s.roles.List(ctx)
}

func (s *Roles) DeleteRole(ctx context.Context, roleID int64) error {
	err := s.roles.Delete(ctx, roleID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}

	return err
}
