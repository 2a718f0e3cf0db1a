package tenant

import (
	"context"
	"time"

	"github.com/tendant/simple-rbac/pkg/adapter"
	"github.com/tendant/simple-rbac/pkg/audit"
	"github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/hooks"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/utils"
)

// AssignRoleToUser grants one role to a user inside a tenant. Users are
// opaque host identifiers; no user record is checked or stored. A
// duplicate assignment of the same (user, tenant, role) triple is
// ALREADY_EXIST. Status defaults to active.
func (s *Service) AssignRoleToUser(ctx context.Context, tenantID, userID, roleIdentifier, status string) (model.UserRole, error) {
	if userID == "" {
		return model.UserRole{}, errors.Validation("userId", "userId is required")
	}
	if status == "" {
		status = model.StatusActive
	}
	if status != model.StatusActive && status != model.StatusPending {
		return model.UserRole{}, errors.Validation("status", "status must be active or pending")
	}
	if _, err := s.FindByID(ctx, tenantID, true); err != nil {
		return model.UserRole{}, err
	}
	role, err := s.roles.Find(ctx, tenantID, roleIdentifier)
	if err != nil {
		return model.UserRole{}, err
	}

	existing, _, err := s.FindUserRole(ctx, tenantID, userID, role.ID)
	if err != nil {
		return model.UserRole{}, err
	}
	if existing.ID != "" {
		return model.UserRole{}, errors.AlreadyExists("user role", role.Slug)
	}

	s.hooks.Emit(hooks.BeforeRoleAssign, hooks.Payload{
		"tenantId": tenantID,
		"userId":   userID,
		"roleId":   role.ID,
		"status":   status,
	})

	now := time.Now().UTC()
	assignment := model.UserRole{
		UserID:    userID,
		TenantID:  tenantID,
		RoleID:    role.ID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec, err := s.cfg.Adapter.Create(ctx, s.cfg.Models.UserRoles, assignment.Record(s.cfg.Keys))
	if err != nil {
		return model.UserRole{}, errors.Fatal(err, "failed to assign role")
	}
	created := model.UserRoleFromRecord(rec, s.cfg.Keys)

	s.hooks.Emit(hooks.AfterRoleAssign, hooks.Payload{
		"tenantId": tenantID,
		"userId":   userID,
		"roleId":   role.ID,
		"userRole": created,
	})
	s.trail.Emit(audit.Event{
		Action:   audit.ActionUserRoleAssign,
		TenantID: tenantID,
		Model:    s.cfg.Models.UserRoles,
		RecordID: created.ID,
		After:    map[string]any(rec),
		Metadata: map[string]any{"userId": userID, "roleId": role.ID},
	})
	return created, nil
}

// FindUserRole returns the assignment row for (user, tenant, role), or
// a zero value with found false.
func (s *Service) FindUserRole(ctx context.Context, tenantID, userID, roleID string) (model.UserRole, bool, error) {
	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.UserRoles, adapter.Where{
		s.cfg.Keys.TenantID: tenantID,
		s.cfg.Keys.UserID:   userID,
		s.cfg.Keys.RoleID:   roleID,
	})
	if err != nil {
		return model.UserRole{}, false, errors.Fatal(err, "failed to find user role")
	}
	if rec == nil {
		return model.UserRole{}, false, nil
	}
	return model.UserRoleFromRecord(rec, s.cfg.Keys), true, nil
}

// UserHasRole reports whether the user holds the role identified by
// slug or title inside the tenant.
func (s *Service) UserHasRole(ctx context.Context, tenantID, userID, roleIdentifier string) (bool, error) {
	role, err := s.roles.Find(ctx, tenantID, roleIdentifier)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotExist) {
			return false, nil
		}
		return false, err
	}
	_, found, err := s.FindUserRole(ctx, tenantID, userID, role.ID)
	return found, err
}

// GetUserRoles returns the roles the user holds through active
// assignments inside a tenant. Assignments pointing at deleted roles
// are skipped.
func (s *Service) GetUserRoles(ctx context.Context, tenantID, userID string) (model.UserRoles, error) {
	assignments, err := s.findAssignments(ctx, tenantID, userID)
	if err != nil {
		return model.UserRoles{}, err
	}
	roles := make([]model.Role, 0, len(assignments))
	for _, a := range assignments {
		role, err := s.roles.FindByID(ctx, tenantID, a.RoleID, false)
		if err != nil {
			return model.UserRoles{}, err
		}
		if role.ID == "" {
			s.logger.Warn("skipping assignment to deleted role",
				"tenantId", tenantID, "userId", userID, "roleId", a.RoleID)
			continue
		}
		roles = append(roles, role)
	}
	return model.UserRoles{UserID: userID, Roles: roles}, nil
}

// GetUserRolesAndPermissions pairs each of the user's active roles with
// the permissions that role grants. Inactive roles contribute nothing.
func (s *Service) GetUserRolesAndPermissions(ctx context.Context, tenantID, userID string) (model.UserRolesAndPermissions, error) {
	userRoles, err := s.GetUserRoles(ctx, tenantID, userID)
	if err != nil {
		return model.UserRolesAndPermissions{}, err
	}
	out := model.UserRolesAndPermissions{
		UserID: userID,
		Roles:  make([]model.RoleWithPermissions, 0, len(userRoles.Roles)),
	}
	for _, role := range userRoles.Roles {
		if !role.IsActive {
			continue
		}
		perms, err := s.permissionsForRole(ctx, role.ID)
		if err != nil {
			return model.UserRolesAndPermissions{}, err
		}
		out.Roles = append(out.Roles, model.RoleWithPermissions{Role: role, Permissions: perms})
	}
	return out, nil
}

// GetUserPermissions flattens the user's roles into the effective
// permission set, de-duplicated by permission id. Every role and
// permission is re-verified against storage, so deletions take effect
// on the next call.
func (s *Service) GetUserPermissions(ctx context.Context, tenantID, userID string) (model.UserPermissions, error) {
	rolesAndPerms, err := s.GetUserRolesAndPermissions(ctx, tenantID, userID)
	if err != nil {
		return model.UserPermissions{}, err
	}
	seen := make(map[string]struct{})
	out := model.UserPermissions{UserID: userID, Permissions: []model.Permission{}}
	for _, role := range rolesAndPerms.Roles {
		for _, perm := range role.Permissions {
			if _, ok := seen[perm.ID]; ok {
				continue
			}
			seen[perm.ID] = struct{}{}
			out.Permissions = append(out.Permissions, perm)
		}
	}
	return out, nil
}

// RevokeRoleFromUser removes the user's assignment of one role and
// returns the number of rows deleted. Revoking a role the user never
// held deletes nothing and is not an error.
func (s *Service) RevokeRoleFromUser(ctx context.Context, tenantID, userID, roleIdentifier string) (int64, error) {
	role, err := s.roles.Find(ctx, tenantID, roleIdentifier)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotExist) {
			return 0, nil
		}
		return 0, err
	}
	count, err := s.cfg.Adapter.Delete(ctx, s.cfg.Models.UserRoles, adapter.Where{
		s.cfg.Keys.TenantID: tenantID,
		s.cfg.Keys.UserID:   userID,
		s.cfg.Keys.RoleID:   role.ID,
	})
	if err != nil {
		return 0, errors.Fatal(err, "failed to revoke role")
	}
	s.trail.Emit(audit.Event{
		Action:   audit.ActionUserRoleRevoke,
		TenantID: tenantID,
		Model:    s.cfg.Models.UserRoles,
		Metadata: map[string]any{"userId": userID, "roleId": role.ID, "deleted": count},
	})
	return count, nil
}

// SyncUserRoles replaces the user's assignments inside a tenant with
// exactly the given roles. Resolution is strict: every identifier must
// name an existing role or the whole call fails before anything is
// touched. An empty role list is VALIDATION_ERROR; revoking everything
// is an explicit revoke, not a sync.
func (s *Service) SyncUserRoles(ctx context.Context, tenantID, userID string, roleIdentifiers []string, status string) ([]model.UserRole, error) {
	if userID == "" {
		return nil, errors.Validation("userId", "userId is required")
	}
	roleIdentifiers = utils.UniqueStrings(roleIdentifiers)
	if len(roleIdentifiers) == 0 {
		return nil, errors.Validation("roles", "at least one role is required")
	}
	if status == "" {
		status = model.StatusActive
	}
	if _, err := s.FindByID(ctx, tenantID, true); err != nil {
		return nil, err
	}

	roles := make([]model.Role, 0, len(roleIdentifiers))
	for _, identifier := range roleIdentifiers {
		role, err := s.roles.Find(ctx, tenantID, identifier)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}

	roleIDs := make([]string, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}
	s.hooks.Emit(hooks.BeforeRoleSync, hooks.Payload{
		"tenantId": tenantID,
		"userId":   userID,
		"roleIds":  roleIDs,
	})

	now := time.Now().UTC()
	data := make([]adapter.Record, 0, len(roles))
	for _, role := range roles {
		assignment := model.UserRole{
			UserID:    userID,
			TenantID:  tenantID,
			RoleID:    role.ID,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		}
		data = append(data, assignment.Record(s.cfg.Keys))
	}

	var created []adapter.Record
	err := adapter.InTransaction(ctx, s.cfg.Adapter, func(ctx context.Context) error {
		if _, err := s.cfg.Adapter.Delete(ctx, s.cfg.Models.UserRoles, adapter.Where{
			s.cfg.Keys.TenantID: tenantID,
			s.cfg.Keys.UserID:   userID,
		}); err != nil {
			return errors.Fatal(err, "failed to clear user roles")
		}
		var err error
		created, err = adapter.CreateAll(ctx, s.cfg.Adapter, s.cfg.Models.UserRoles, data)
		if err != nil {
			return errors.Fatal(err, "failed to create user roles")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hooks.Emit(hooks.AfterRoleSync, hooks.Payload{
		"tenantId": tenantID,
		"userId":   userID,
		"roleIds":  roleIDs,
	})
	s.trail.Emit(audit.Event{
		Action:   audit.ActionUserRoleSync,
		TenantID: tenantID,
		Model:    s.cfg.Models.UserRoles,
		Metadata: map[string]any{"userId": userID, "roleIds": roleIDs},
	})

	out := make([]model.UserRole, 0, len(created))
	for _, rec := range created {
		out = append(out, model.UserRoleFromRecord(rec, s.cfg.Keys))
	}
	return out, nil
}

// FindUsersByRole returns the distinct user ids assigned a role inside
// a tenant.
func (s *Service) FindUsersByRole(ctx context.Context, tenantID, roleIdentifier string) ([]string, error) {
	role, err := s.roles.Find(ctx, tenantID, roleIdentifier)
	if err != nil {
		return nil, err
	}
	return s.FindUsersByRoleID(ctx, tenantID, role.ID)
}

// FindUsersByRoleID is FindUsersByRole for a known role id.
func (s *Service) FindUsersByRoleID(ctx context.Context, tenantID, roleID string) ([]string, error) {
	recs, err := s.cfg.Adapter.FindMany(ctx, s.cfg.Models.UserRoles, adapter.Where{
		s.cfg.Keys.TenantID: tenantID,
		s.cfg.Keys.RoleID:   roleID,
	})
	if err != nil {
		return nil, errors.Fatal(err, "failed to list role holders")
	}
	users := make([]string, 0, len(recs))
	for _, rec := range recs {
		users = append(users, model.UserRoleFromRecord(rec, s.cfg.Keys).UserID)
	}
	return utils.UniqueStrings(users), nil
}

// findAssignments returns the user's active assignments only; pending
// ones grant nothing until activated.
func (s *Service) findAssignments(ctx context.Context, tenantID, userID string) ([]model.UserRole, error) {
	recs, err := s.cfg.Adapter.FindMany(ctx, s.cfg.Models.UserRoles, adapter.Where{
		s.cfg.Keys.TenantID: tenantID,
		s.cfg.Keys.UserID:   userID,
		"status":            model.StatusActive,
	})
	if err != nil {
		return nil, errors.Fatal(err, "failed to list user roles")
	}
	out := make([]model.UserRole, 0, len(recs))
	for _, rec := range recs {
		out = append(out, model.UserRoleFromRecord(rec, s.cfg.Keys))
	}
	return out, nil
}
