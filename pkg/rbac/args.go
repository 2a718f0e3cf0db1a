package rbac

import (
	"context"

	"github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/model"
)

// Args carries operation arguments keyed by the host's configured key
// names, so a host that renamed tenantId to workspaceId passes
// {"workspaceId": ...}. Canonical names are accepted as a fallback
// whichever way the keys are configured.
type Args map[string]any

func (a Args) str(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func (a Args) strs(key string) ([]string, bool) {
	switch v := a[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// resolveKey reads the configured key first, then the canonical name.
func (a Args) resolveKey(configured, canonical string) (string, error) {
	if s, ok := a.str(configured); ok {
		return s, nil
	}
	if s, ok := a.str(canonical); ok {
		return s, nil
	}
	msg := "missing configured key " + configured
	if canonical != configured {
		msg += " (canonical " + canonical + ")"
	}
	return "", errors.Validation(configured, msg)
}

func (r *RBAC) argTenantID(a Args) (string, error) {
	return a.resolveKey(r.cfg.Keys.TenantID, "tenantId")
}

func (r *RBAC) argUserID(a Args) (string, error) {
	return a.resolveKey(r.cfg.Keys.UserID, "userId")
}

func (r *RBAC) argRoleID(a Args) (string, error) {
	return a.resolveKey(r.cfg.Keys.RoleID, "roleId")
}

func (r *RBAC) argPermissionID(a Args) (string, error) {
	return a.resolveKey(r.cfg.Keys.PermissionID, "permissionId")
}

// FindUserRoleArgs looks an assignment row up by configured ids.
func (r *RBAC) FindUserRoleArgs(ctx context.Context, args Args) (model.UserRole, bool, error) {
	tenantID, err := r.argTenantID(args)
	if err != nil {
		return model.UserRole{}, false, err
	}
	userID, err := r.argUserID(args)
	if err != nil {
		return model.UserRole{}, false, err
	}
	roleID, err := r.argRoleID(args)
	if err != nil {
		return model.UserRole{}, false, err
	}
	return r.Tenants.FindUserRole(ctx, tenantID, userID, roleID)
}

// FindRolePermissionArgs looks a role-permission link up by configured
// ids.
func (r *RBAC) FindRolePermissionArgs(ctx context.Context, args Args) (model.RolePermission, bool, error) {
	roleID, err := r.argRoleID(args)
	if err != nil {
		return model.RolePermission{}, false, err
	}
	permissionID, err := r.argPermissionID(args)
	if err != nil {
		return model.RolePermission{}, false, err
	}
	return r.Roles.FindRolePermission(ctx, roleID, permissionID)
}

// AuthorizeArgs is Authorize over a configured-key argument map. The
// permission is read from "permission".
func (r *RBAC) AuthorizeArgs(ctx context.Context, args Args) (bool, error) {
	tenantID, err := r.argTenantID(args)
	if err != nil {
		return false, err
	}
	userID, err := r.argUserID(args)
	if err != nil {
		return false, err
	}
	perm, ok := args.str("permission")
	if !ok {
		return false, errors.Validation("permission", "missing configured key permission")
	}
	return r.Authorize(ctx, tenantID, userID, perm)
}

// AssignRoleArgs is AssignRole over a configured-key argument map. The
// role identifier is read from "role".
func (r *RBAC) AssignRoleArgs(ctx context.Context, args Args) (model.UserRole, error) {
	tenantID, err := r.argTenantID(args)
	if err != nil {
		return model.UserRole{}, err
	}
	userID, err := r.argUserID(args)
	if err != nil {
		return model.UserRole{}, err
	}
	roleIdentifier, ok := args.str("role")
	if !ok {
		return model.UserRole{}, errors.Validation("role", "missing configured key role")
	}
	return r.AssignRole(ctx, tenantID, userID, roleIdentifier)
}

// RevokeRoleArgs is RevokeRole over a configured-key argument map.
func (r *RBAC) RevokeRoleArgs(ctx context.Context, args Args) (int64, error) {
	tenantID, err := r.argTenantID(args)
	if err != nil {
		return 0, err
	}
	userID, err := r.argUserID(args)
	if err != nil {
		return 0, err
	}
	roleIdentifier, ok := args.str("role")
	if !ok {
		return 0, errors.Validation("role", "missing configured key role")
	}
	return r.RevokeRole(ctx, tenantID, userID, roleIdentifier)
}

// SyncUserRolesArgs is SyncUserRoles over a configured-key argument
// map. Role identifiers are read from "roles".
func (r *RBAC) SyncUserRolesArgs(ctx context.Context, args Args) ([]model.UserRole, error) {
	tenantID, err := r.argTenantID(args)
	if err != nil {
		return nil, err
	}
	userID, err := r.argUserID(args)
	if err != nil {
		return nil, err
	}
	roles, ok := args.strs("roles")
	if !ok {
		return nil, errors.Validation("roles", "missing configured key roles")
	}
	return r.SyncUserRoles(ctx, tenantID, userID, roles)
}
