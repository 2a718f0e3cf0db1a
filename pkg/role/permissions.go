package role

import (
	"context"

	"github.com/tendant/simple-rbac/pkg/adapter"
	"github.com/tendant/simple-rbac/pkg/audit"
	"github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/hooks"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/utils"
)

// GrantPermissions links the resolved permissions to a role. Unknown
// permission identifiers are dropped, already-linked permissions are
// skipped, and the full post-grant link set is returned.
func (s *Service) GrantPermissions(ctx context.Context, tenantID, roleIdentifier string, permissionIdentifiers []string) ([]model.RolePermission, error) {
	role, err := s.Find(ctx, tenantID, roleIdentifier)
	if err != nil {
		return nil, err
	}
	permissionIDs, err := s.permissions.ResolveIDs(ctx, utils.UniqueStrings(permissionIdentifiers))
	if err != nil {
		return nil, err
	}
	if err := s.grant(ctx, role, permissionIDs); err != nil {
		return nil, err
	}
	s.trail.Emit(audit.Event{
		Action:   audit.ActionRolePermissionsGrant,
		TenantID: tenantID,
		Model:    s.cfg.Models.RolePermissions,
		RecordID: role.ID,
		Metadata: map[string]any{"permissionIds": permissionIDs},
	})
	return s.FindRolePermissions(ctx, role.ID)
}

func (s *Service) grant(ctx context.Context, role model.Role, permissionIDs []string) error {
	existing, err := s.FindRolePermissions(ctx, role.ID)
	if err != nil {
		return err
	}
	linked := make(map[string]struct{}, len(existing))
	for _, link := range existing {
		linked[link.PermissionID] = struct{}{}
	}

	data := make([]adapter.Record, 0, len(permissionIDs))
	for _, pid := range permissionIDs {
		if _, ok := linked[pid]; ok {
			continue
		}
		link := model.RolePermission{RoleID: role.ID, PermissionID: pid}
		data = append(data, link.Record(s.cfg.Keys))
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := adapter.CreateAll(ctx, s.cfg.Adapter, s.cfg.Models.RolePermissions, data); err != nil {
		return errors.Fatal(err, "failed to create role permissions")
	}
	return nil
}

// SyncPermissions replaces the role's permission set with exactly the
// resolved identifiers, deleting stale links and inserting missing ones
// in one transaction when the adapter supports it.
func (s *Service) SyncPermissions(ctx context.Context, tenantID, roleIdentifier string, permissionIdentifiers []string) ([]model.RolePermission, error) {
	identifiers := utils.UniqueStrings(permissionIdentifiers)
	if len(identifiers) == 0 {
		return nil, errors.Validation("permissions", "at least one permission is required")
	}
	role, err := s.Find(ctx, tenantID, roleIdentifier)
	if err != nil {
		return nil, err
	}
	permissionIDs, err := s.permissions.ResolveIDs(ctx, identifiers)
	if err != nil {
		return nil, err
	}

	s.hooks.Emit(hooks.BeforePermissionSync, hooks.Payload{
		"tenantId":      tenantID,
		"roleId":        role.ID,
		"permissionIds": permissionIDs,
	})

	err = adapter.InTransaction(ctx, s.cfg.Adapter, func(ctx context.Context) error {
		if _, err := s.cfg.Adapter.Delete(ctx, s.cfg.Models.RolePermissions,
			adapter.Where{s.cfg.Keys.RoleID: role.ID}); err != nil {
			return errors.Fatal(err, "failed to clear role permissions")
		}
		return s.grant(ctx, role, permissionIDs)
	})
	if err != nil {
		return nil, err
	}

	s.hooks.Emit(hooks.AfterPermissionSync, hooks.Payload{
		"tenantId":      tenantID,
		"roleId":        role.ID,
		"permissionIds": permissionIDs,
	})
	s.trail.Emit(audit.Event{
		Action:   audit.ActionRolePermissionsSync,
		TenantID: tenantID,
		Model:    s.cfg.Models.RolePermissions,
		RecordID: role.ID,
		Metadata: map[string]any{"permissionIds": permissionIDs},
	})
	return s.FindRolePermissions(ctx, role.ID)
}

// RevokePermissions removes the links between a role and the resolved
// permissions, returning the number of links deleted. Revoking
// permissions that were never granted deletes nothing and is not an
// error.
func (s *Service) RevokePermissions(ctx context.Context, tenantID, roleIdentifier string, permissionIdentifiers []string) (int64, error) {
	role, err := s.Find(ctx, tenantID, roleIdentifier)
	if err != nil {
		return 0, err
	}
	permissionIDs, err := s.permissions.ResolveIDs(ctx, utils.UniqueStrings(permissionIdentifiers))
	if err != nil {
		return 0, err
	}
	if len(permissionIDs) == 0 {
		return 0, nil
	}
	count, err := s.cfg.Adapter.Delete(ctx, s.cfg.Models.RolePermissions, adapter.Where{
		s.cfg.Keys.RoleID:       role.ID,
		s.cfg.Keys.PermissionID: permissionIDs,
	})
	if err != nil {
		return 0, errors.Fatal(err, "failed to revoke role permissions")
	}
	s.trail.Emit(audit.Event{
		Action:   audit.ActionRolePermissionsRevoke,
		TenantID: tenantID,
		Model:    s.cfg.Models.RolePermissions,
		RecordID: role.ID,
		Metadata: map[string]any{"permissionIds": permissionIDs, "deleted": count},
	})
	return count, nil
}

// FindRolePermissions returns the raw link rows for a role.
func (s *Service) FindRolePermissions(ctx context.Context, roleID string) ([]model.RolePermission, error) {
	recs, err := s.cfg.Adapter.FindMany(ctx, s.cfg.Models.RolePermissions,
		adapter.Where{s.cfg.Keys.RoleID: roleID})
	if err != nil {
		return nil, errors.Fatal(err, "failed to list role permissions")
	}
	out := make([]model.RolePermission, 0, len(recs))
	for _, rec := range recs {
		out = append(out, model.RolePermissionFromRecord(rec, s.cfg.Keys))
	}
	return out, nil
}

// FindRolePermission returns the link row between a role and a
// permission, or (zero, nil) when none exists.
func (s *Service) FindRolePermission(ctx context.Context, roleID, permissionID string) (model.RolePermission, bool, error) {
	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.RolePermissions, adapter.Where{
		s.cfg.Keys.RoleID:       roleID,
		s.cfg.Keys.PermissionID: permissionID,
	})
	if err != nil {
		return model.RolePermission{}, false, errors.Fatal(err, "failed to find role permission")
	}
	if rec == nil {
		return model.RolePermission{}, false, nil
	}
	return model.RolePermissionFromRecord(rec, s.cfg.Keys), true, nil
}

// RoleHasPermission reports whether the role identified by slug or
// title holds a permission identified by slug or title.
func (s *Service) RoleHasPermission(ctx context.Context, tenantID, roleIdentifier, permissionIdentifier string) (bool, error) {
	role, err := s.Find(ctx, tenantID, roleIdentifier)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotExist) {
			return false, nil
		}
		return false, err
	}
	permissionIDs, err := s.permissions.ResolveIDs(ctx, []string{permissionIdentifier})
	if err != nil {
		return false, err
	}
	if len(permissionIDs) == 0 {
		return false, nil
	}
	_, found, err := s.FindRolePermission(ctx, role.ID, permissionIDs[0])
	if err != nil {
		return false, err
	}
	return found, nil
}
