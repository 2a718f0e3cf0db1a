package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-rbac/pkg/adapter/memory"
	"github.com/tendant/simple-rbac/pkg/config"
	"github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/permission"
	"github.com/tendant/simple-rbac/pkg/role"
	"github.com/tendant/simple-rbac/pkg/tenant"
)

func newTestRBAC(t *testing.T, opts ...Option) *RBAC {
	t.Helper()
	r, err := New(config.Config{
		Adapter:  memory.New(),
		CacheTTL: time.Minute,
	}, opts...)
	require.NoError(t, err)
	return r
}

// seed builds tenant acme with role auditor granting read:invoice.
func seed(t *testing.T, r *RBAC) model.Tenant {
	t.Helper()
	ctx := context.Background()

	acme, err := r.CreateTenant(ctx, tenant.CreateParams{Name: "Acme", IsActive: true}, false)
	require.NoError(t, err)
	_, err = r.EnsurePermissions(ctx, []permission.CreateParams{
		{Title: "read:invoice", IsActive: true},
		{Title: "write:invoice", IsActive: true},
	})
	require.NoError(t, err)
	_, err = r.CreateRoles(ctx, "acme", []role.CreateParams{{Title: "Auditor", IsActive: true}})
	require.NoError(t, err)
	_, err = r.SyncPermissions(ctx, acme.ID, "auditor", []string{"read:invoice"})
	require.NoError(t, err)
	return acme
}

func TestGrantAndCheck(t *testing.T) {
	r := newTestRBAC(t)
	ctx := context.Background()
	acme := seed(t, r)

	_, err := r.AssignRole(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)

	ok, err := r.Authorize(ctx, acme.ID, "u1", "read:invoice")
	require.NoError(t, err)
	assert.True(t, ok)

	// slug form resolves the same permission
	ok, err = r.Authorize(ctx, acme.ID, "u1", "read-invoice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Authorize(ctx, acme.ID, "u1", "write:invoice")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, r.MustAuthorize(ctx, acme.ID, "u1", "read:invoice"))
	err = r.MustAuthorize(ctx, acme.ID, "u1", "write:invoice")
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
}

func TestPendingAssignmentDoesNotAuthorize(t *testing.T) {
	r := newTestRBAC(t)
	ctx := context.Background()
	acme := seed(t, r)

	_, err := r.Tenants.AssignRoleToUser(ctx, acme.ID, "u-pending", "auditor", model.StatusPending)
	require.NoError(t, err)

	ok, err := r.Authorize(ctx, acme.ID, "u-pending", "read:invoice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeactivatedRoleDoesNotAuthorize(t *testing.T) {
	r := newTestRBAC(t)
	ctx := context.Background()
	acme := seed(t, r)

	_, err := r.AssignRole(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)

	ok, err := r.Authorize(ctx, acme.ID, "u1", "read:invoice")
	require.NoError(t, err)
	assert.True(t, ok)

	auditor, err := r.Roles.Find(ctx, acme.ID, "auditor")
	require.NoError(t, err)
	inactive := false
	_, err = r.UpdateRole(ctx, acme.ID, auditor.ID,
		role.UpdateParams{Title: auditor.Title, IsActive: &inactive})
	require.NoError(t, err)

	// holder invalidation makes the deactivation visible immediately
	ok, err = r.Authorize(ctx, acme.ID, "u1", "read:invoice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTenantIsolation(t *testing.T) {
	r := newTestRBAC(t)
	ctx := context.Background()
	acme := seed(t, r)

	globex, err := r.CreateTenant(ctx, tenant.CreateParams{Name: "Globex", IsActive: true}, false)
	require.NoError(t, err)
	_, err = r.CreateRoles(ctx, "globex", []role.CreateParams{{Title: "Auditor", IsActive: true}})
	require.NoError(t, err)
	_, err = r.SyncPermissions(ctx, globex.ID, "auditor", []string{"write:invoice"})
	require.NoError(t, err)

	_, err = r.AssignRole(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)

	// u1's acme role grants nothing inside globex
	ok, err := r.Authorize(ctx, globex.ID, "u1", "read:invoice")
	require.NoError(t, err)
	assert.False(t, ok)

	// same role slug in the two tenants carries different permissions
	has, err := r.RoleHasPermission(ctx, acme.ID, "auditor", "read:invoice")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = r.RoleHasPermission(ctx, globex.ID, "auditor", "read:invoice")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRevocationVisibleDespiteTTL(t *testing.T) {
	r := newTestRBAC(t)
	ctx := context.Background()
	acme := seed(t, r)

	_, err := r.AssignRole(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)

	// prime the cache
	ok, err := r.Authorize(ctx, acme.ID, "u1", "read:invoice")
	require.NoError(t, err)
	require.True(t, ok)

	count, err := r.RevokeRole(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// eviction beats the remaining TTL
	ok, err = r.Authorize(ctx, acme.ID, "u1", "read:invoice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncPermissionsInvalidatesHolders(t *testing.T) {
	r := newTestRBAC(t)
	ctx := context.Background()
	acme := seed(t, r)

	_, err := r.AssignRole(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)

	ok, err := r.Authorize(ctx, acme.ID, "u1", "write:invoice")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = r.SyncPermissions(ctx, acme.ID, "auditor", []string{"write:invoice"})
	require.NoError(t, err)

	ok, err = r.Authorize(ctx, acme.ID, "u1", "write:invoice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Authorize(ctx, acme.ID, "u1", "read:invoice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBulkSyncUserRoles(t *testing.T) {
	r := newTestRBAC(t)
	ctx := context.Background()
	acme := seed(t, r)

	_, err := r.CreateRoles(ctx, "acme", []role.CreateParams{
		{Title: "Clerk", IsActive: true},
		{Title: "Manager", IsActive: true},
	})
	require.NoError(t, err)

	_, err = r.AssignRole(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)

	assignments, err := r.SyncUserRoles(ctx, acme.ID, "u1", []string{"clerk", "manager"})
	require.NoError(t, err)
	assert.Len(t, assignments, 2)

	userRoles, err := r.GetUserRoles(ctx, acme.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, userRoles.Roles, 2)

	ok, err := r.UserHasRole(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeletePermissionPurgesCache(t *testing.T) {
	r := newTestRBAC(t)
	ctx := context.Background()
	acme := seed(t, r)

	_, err := r.AssignRole(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)

	ok, err := r.Authorize(ctx, acme.ID, "u1", "read:invoice")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = r.DeletePermission(ctx, "read:invoice")
	require.NoError(t, err)

	// dangling link is skipped on the rebuilt view
	ok, err = r.Authorize(ctx, acme.ID, "u1", "read:invoice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRoleInvalidatesHolders(t *testing.T) {
	r := newTestRBAC(t)
	ctx := context.Background()
	acme := seed(t, r)

	_, err := r.AssignRole(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)

	ok, err := r.Authorize(ctx, acme.ID, "u1", "read:invoice")
	require.NoError(t, err)
	require.True(t, ok)

	auditor, err := r.Roles.Find(ctx, acme.ID, "auditor")
	require.NoError(t, err)
	require.NoError(t, r.DeleteRole(ctx, acme.ID, auditor.ID))

	ok, err = r.Authorize(ctx, acme.ID, "u1", "read:invoice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnderscoreSlugStrategy(t *testing.T) {
	r := newTestRBAC(t, WithUnderscoreSlugs())
	ctx := context.Background()

	perms, err := r.EnsurePermissions(ctx, []permission.CreateParams{
		{Title: "read:invoice", IsActive: true},
	})
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "read_invoice", perms[0].Slug)
}

func TestRenamedModelsAndKeys(t *testing.T) {
	store := memory.New()
	r, err := New(config.Config{
		Adapter: store,
		Models:  config.Models{Tenants: "workspaces", UserRoles: "memberships"},
		Keys:    config.Keys{TenantID: "workspaceId", UserID: "memberId"},
	})
	require.NoError(t, err)

	ctx := context.Background()
	acme := seed(t, r)

	_, err = r.AssignRole(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)

	ok, err := r.Authorize(ctx, acme.ID, "u1", "read:invoice")
	require.NoError(t, err)
	assert.True(t, ok)

	// the configured physical names are what actually got written
	recs, err := store.FindMany(ctx, "memberships", nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "u1", recs[0]["memberId"])
	assert.Equal(t, acme.ID, recs[0]["workspaceId"])
}
