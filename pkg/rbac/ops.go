package rbac

import (
	"context"

	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/permission"
	"github.com/tendant/simple-rbac/pkg/role"
	"github.com/tendant/simple-rbac/pkg/tenant"
)

// Tenant operations.

// CreateTenant makes (or idempotently returns) a tenant by name.
func (r *RBAC) CreateTenant(ctx context.Context, p tenant.CreateParams, returnIfFound bool) (model.Tenant, error) {
	return r.Tenants.Create(ctx, p, r.slugCase, returnIfFound)
}

// GetTenant resolves a tenant by slug or name.
func (r *RBAC) GetTenant(ctx context.Context, identifier string) (model.Tenant, error) {
	return r.Tenants.Find(ctx, identifier, true)
}

// GetTenantGraph returns the tenant -> active roles -> permissions tree.
func (r *RBAC) GetTenantGraph(ctx context.Context, identifier string) (model.TenantGraph, error) {
	return r.Tenants.GetTenantWithRolesAndPermissions(ctx, identifier)
}

// UpdateTenant applies a partial update. Deactivating a tenant purges
// the cache so its users lose access within one call, not one TTL.
func (r *RBAC) UpdateTenant(ctx context.Context, tenantID string, p tenant.UpdateParams) (model.Tenant, error) {
	updated, err := r.Tenants.Update(ctx, tenantID, p, r.slugCase)
	if err != nil {
		return model.Tenant{}, err
	}
	if p.IsActive != nil && !*p.IsActive {
		r.PurgeCache()
	}
	return updated, nil
}

// DeleteTenant removes an active tenant and purges the cache.
func (r *RBAC) DeleteTenant(ctx context.Context, tenantID string) (model.Tenant, error) {
	deleted, err := r.Tenants.Delete(ctx, tenantID)
	if err != nil {
		return model.Tenant{}, err
	}
	r.PurgeCache()
	return deleted, nil
}

// Permission operations.

// CreatePermissions makes global permissions from titles.
func (r *RBAC) CreatePermissions(ctx context.Context, params []permission.CreateParams) ([]model.Permission, error) {
	return r.Permissions.Create(ctx, params, r.slugCase)
}

// EnsurePermissions is the idempotent form of CreatePermissions.
func (r *RBAC) EnsurePermissions(ctx context.Context, params []permission.CreateParams) ([]model.Permission, error) {
	return r.Permissions.EnsureMany(ctx, params, r.slugCase)
}

// UpdatePermission updates one permission and purges the cache: any
// user in any tenant may hold it.
func (r *RBAC) UpdatePermission(ctx context.Context, permissionID string, p permission.UpdateParams) (model.Permission, error) {
	updated, err := r.Permissions.Update(ctx, permissionID, p, r.slugCase)
	if err != nil {
		return model.Permission{}, err
	}
	r.PurgeCache()
	return updated, nil
}

// DeletePermission removes one permission and purges the cache.
func (r *RBAC) DeletePermission(ctx context.Context, identifier string) (model.Permission, error) {
	deleted, err := r.Permissions.Delete(ctx, identifier)
	if err != nil {
		return model.Permission{}, err
	}
	r.PurgeCache()
	return deleted, nil
}

// Role operations.

// CreateRoles find-or-creates roles inside a tenant.
func (r *RBAC) CreateRoles(ctx context.Context, tenantIdentifier string, params []role.CreateParams) ([]model.Role, error) {
	return r.Roles.Create(ctx, tenantIdentifier, params, r.slugCase)
}

// UpdateRole updates a role and evicts its holders from the cache.
func (r *RBAC) UpdateRole(ctx context.Context, tenantID, roleID string, p role.UpdateParams) (model.Role, error) {
	updated, err := r.Roles.Update(ctx, tenantID, roleID, p, r.slugCase)
	if err != nil {
		return model.Role{}, err
	}
	r.invalidateRoleHolders(ctx, tenantID, updated.ID)
	return updated, nil
}

// DeleteRole removes a role. Holders are enumerated before the delete
// so their cached permissions can still be evicted.
func (r *RBAC) DeleteRole(ctx context.Context, tenantID, roleID string) error {
	users, err := r.Tenants.FindUsersByRoleID(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if err := r.Roles.Delete(ctx, tenantID, roleID); err != nil {
		return err
	}
	for _, userID := range users {
		r.InvalidateUser(tenantID, userID)
	}
	return nil
}

// GrantPermissions links permissions to a role and evicts its holders.
func (r *RBAC) GrantPermissions(ctx context.Context, tenantID, roleIdentifier string, permissionIdentifiers []string) ([]model.RolePermission, error) {
	links, err := r.Roles.GrantPermissions(ctx, tenantID, roleIdentifier, permissionIdentifiers)
	if err != nil {
		return nil, err
	}
	r.invalidateHoldersOf(ctx, tenantID, roleIdentifier)
	return links, nil
}

// SyncPermissions replaces a role's permission set and evicts its
// holders.
func (r *RBAC) SyncPermissions(ctx context.Context, tenantID, roleIdentifier string, permissionIdentifiers []string) ([]model.RolePermission, error) {
	links, err := r.Roles.SyncPermissions(ctx, tenantID, roleIdentifier, permissionIdentifiers)
	if err != nil {
		return nil, err
	}
	r.invalidateHoldersOf(ctx, tenantID, roleIdentifier)
	return links, nil
}

// RevokePermissions unlinks permissions from a role and evicts its
// holders.
func (r *RBAC) RevokePermissions(ctx context.Context, tenantID, roleIdentifier string, permissionIdentifiers []string) (int64, error) {
	count, err := r.Roles.RevokePermissions(ctx, tenantID, roleIdentifier, permissionIdentifiers)
	if err != nil {
		return 0, err
	}
	r.invalidateHoldersOf(ctx, tenantID, roleIdentifier)
	return count, nil
}

func (r *RBAC) invalidateHoldersOf(ctx context.Context, tenantID, roleIdentifier string) {
	role, err := r.Roles.Find(ctx, tenantID, roleIdentifier)
	if err != nil {
		r.logger.Warn("failed to resolve role for invalidation, purging cache",
			"tenantId", tenantID, "role", roleIdentifier, "err", err)
		r.cache.Purge()
		return
	}
	r.invalidateRoleHolders(ctx, tenantID, role.ID)
}

// User-role operations.

// AssignRole grants a role to a user and evicts that user's cache
// entry.
func (r *RBAC) AssignRole(ctx context.Context, tenantID, userID, roleIdentifier string) (model.UserRole, error) {
	assigned, err := r.Tenants.AssignRoleToUser(ctx, tenantID, userID, roleIdentifier, model.StatusActive)
	if err != nil {
		return model.UserRole{}, err
	}
	r.InvalidateUser(tenantID, userID)
	return assigned, nil
}

// RevokeRole removes a user's role. The eviction makes the revocation
// observable on the next check even with cache TTL remaining.
func (r *RBAC) RevokeRole(ctx context.Context, tenantID, userID, roleIdentifier string) (int64, error) {
	count, err := r.Tenants.RevokeRoleFromUser(ctx, tenantID, userID, roleIdentifier)
	if err != nil {
		return 0, err
	}
	r.InvalidateUser(tenantID, userID)
	return count, nil
}

// SyncUserRoles replaces the user's role set and evicts the user's
// cache entry.
func (r *RBAC) SyncUserRoles(ctx context.Context, tenantID, userID string, roleIdentifiers []string) ([]model.UserRole, error) {
	assignments, err := r.Tenants.SyncUserRoles(ctx, tenantID, userID, roleIdentifiers, model.StatusActive)
	if err != nil {
		return nil, err
	}
	r.InvalidateUser(tenantID, userID)
	return assignments, nil
}

// GetUserRoles returns the user's roles inside a tenant.
func (r *RBAC) GetUserRoles(ctx context.Context, tenantID, userID string) (model.UserRoles, error) {
	return r.Tenants.GetUserRoles(ctx, tenantID, userID)
}

// GetUserRolesAndPermissions returns the user's roles, each with its
// permissions.
func (r *RBAC) GetUserRolesAndPermissions(ctx context.Context, tenantID, userID string) (model.UserRolesAndPermissions, error) {
	return r.Tenants.GetUserRolesAndPermissions(ctx, tenantID, userID)
}

// UserHasRole reports whether the user holds a role inside a tenant.
func (r *RBAC) UserHasRole(ctx context.Context, tenantID, userID, roleIdentifier string) (bool, error) {
	return r.Tenants.UserHasRole(ctx, tenantID, userID, roleIdentifier)
}

// RoleHasPermission reports whether a role grants a permission.
func (r *RBAC) RoleHasPermission(ctx context.Context, tenantID, roleIdentifier, permissionIdentifier string) (bool, error) {
	return r.Roles.RoleHasPermission(ctx, tenantID, roleIdentifier, permissionIdentifier)
}
