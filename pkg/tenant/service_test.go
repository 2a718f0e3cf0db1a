package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-rbac/pkg/adapter/memory"
	"github.com/tendant/simple-rbac/pkg/config"
	"github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/hooks"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/permission"
	"github.com/tendant/simple-rbac/pkg/role"
)

type testEnv struct {
	tenants     *Service
	roles       *role.Service
	permissions *permission.Service
}

func newTestEnv(t *testing.T, opts ...Option) testEnv {
	t.Helper()
	cfg, err := config.Config{Adapter: memory.New()}.Resolve()
	require.NoError(t, err)

	perms := permission.NewService(cfg)
	tenants := NewService(cfg, perms, opts...)
	roles := role.NewService(cfg, tenants, perms)
	tenants.SetRoleResolver(roles)

	return testEnv{tenants: tenants, roles: roles, permissions: perms}
}

// seed creates a tenant with one active role holding one permission.
func (env testEnv) seed(t *testing.T, ctx context.Context) model.Tenant {
	t.Helper()
	acme, err := env.tenants.Create(ctx, CreateParams{Name: "Acme", IsActive: true}, true, false)
	require.NoError(t, err)
	_, err = env.permissions.Create(ctx,
		[]permission.CreateParams{{Title: "read:invoice", IsActive: true}}, true)
	require.NoError(t, err)
	_, err = env.roles.CreateOne(ctx, "acme", role.CreateParams{Title: "Auditor", IsActive: true}, true)
	require.NoError(t, err)
	_, err = env.roles.GrantPermissions(ctx, acme.ID, "auditor", []string{"read:invoice"})
	require.NoError(t, err)
	return acme
}

func TestCreateIdempotencyByName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.tenants.Create(ctx, CreateParams{Name: "Acme Corp", IsActive: true}, true, false)
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", first.Slug)

	// same name again: returned as-is with returnIfFound
	second, err := env.tenants.Create(ctx, CreateParams{Name: "Acme Corp", IsActive: true}, true, true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// and rejected without it
	_, err = env.tenants.Create(ctx, CreateParams{Name: "Acme Corp", IsActive: true}, true, false)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists))
}

func TestCreateIdempotencyBySlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.tenants.Create(ctx, CreateParams{Name: "Acme", IsActive: true}, true, false)
	require.NoError(t, err)
	assert.Equal(t, "acme", first.Slug)

	// a different name sharing the derived slug resolves to the
	// existing tenant instead of minting a duplicate
	second, err := env.tenants.Create(ctx, CreateParams{Name: "acme", IsActive: true}, true, true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = env.tenants.Create(ctx, CreateParams{Name: "ACME", IsActive: true}, true, false)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists))
}

func TestFindBySlugThenName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.tenants.Create(ctx, CreateParams{Name: "Acme Corp", IsActive: true}, true, false)
	require.NoError(t, err)

	bySlug, err := env.tenants.Find(ctx, "acme-corp", true)
	require.NoError(t, err)
	assert.Equal(t, created.ID, bySlug.ID)

	byName, err := env.tenants.Find(ctx, "Acme Corp", true)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	// soft miss
	missing, err := env.tenants.Find(ctx, "ghost", false)
	require.NoError(t, err)
	assert.Empty(t, missing.ID)

	// hard miss
	_, err = env.tenants.Find(ctx, "ghost", true)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotExist))
}

func TestUpdateRederivesSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.tenants.Create(ctx, CreateParams{Name: "Acme", IsActive: true}, true, false)
	require.NoError(t, err)

	name := "Acme International"
	updated, err := env.tenants.Update(ctx, created.ID, UpdateParams{Name: &name}, true)
	require.NoError(t, err)
	assert.Equal(t, "acme-international", updated.Slug)

	// description-only update leaves the slug alone
	desc := "widgets"
	updated, err = env.tenants.Update(ctx, created.ID, UpdateParams{Description: &desc}, true)
	require.NoError(t, err)
	assert.Equal(t, "acme-international", updated.Slug)
	assert.Equal(t, "widgets", updated.Description)
}

func TestDeleteInactiveTenantForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.tenants.Create(ctx, CreateParams{Name: "Acme", IsActive: false}, true, false)
	require.NoError(t, err)

	_, err = env.tenants.Delete(ctx, created.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))

	active := true
	_, err = env.tenants.Update(ctx, created.ID, UpdateParams{IsActive: &active}, true)
	require.NoError(t, err)

	deleted, err := env.tenants.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)
}

func TestAssignRoleDuplicateRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	assigned, err := env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "auditor", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, assigned.Status)

	_, err = env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "auditor", "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists))
}

func TestAssignRoleFiresHooks(t *testing.T) {
	emitter := hooks.NewEmitter(nil)
	var events []hooks.Event
	emitter.Subscribe(hooks.BeforeRoleAssign, func(hooks.Payload) {
		events = append(events, hooks.BeforeRoleAssign)
	})
	emitter.Subscribe(hooks.AfterRoleAssign, func(hooks.Payload) {
		events = append(events, hooks.AfterRoleAssign)
	})

	env := newTestEnv(t, WithHooks(emitter))
	ctx := context.Background()
	acme := env.seed(t, ctx)

	_, err := env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "auditor", "")
	require.NoError(t, err)
	assert.Equal(t, []hooks.Event{hooks.BeforeRoleAssign, hooks.AfterRoleAssign}, events)
}

func TestGetUserPermissionsFlattensAndDedupes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	// second role sharing a permission with the first
	_, err := env.permissions.Create(ctx,
		[]permission.CreateParams{{Title: "write:invoice", IsActive: true}}, true)
	require.NoError(t, err)
	_, err = env.roles.CreateOne(ctx, "acme", role.CreateParams{Title: "Clerk", IsActive: true}, true)
	require.NoError(t, err)
	_, err = env.roles.GrantPermissions(ctx, acme.ID, "clerk",
		[]string{"read:invoice", "write:invoice"})
	require.NoError(t, err)

	_, err = env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "auditor", "")
	require.NoError(t, err)
	_, err = env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "clerk", "")
	require.NoError(t, err)

	perms, err := env.tenants.GetUserPermissions(ctx, acme.ID, "u1")
	require.NoError(t, err)

	slugs := make([]string, 0, len(perms.Permissions))
	for _, p := range perms.Permissions {
		slugs = append(slugs, p.Slug)
	}
	assert.ElementsMatch(t, []string{"read-invoice", "write-invoice"}, slugs)
}

func TestGetUserPermissionsSkipsDanglingRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	_, err := env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "auditor", "")
	require.NoError(t, err)

	auditor, err := env.roles.Find(ctx, acme.ID, "auditor")
	require.NoError(t, err)
	require.NoError(t, env.roles.Delete(ctx, acme.ID, auditor.ID))

	// the stale assignment row is skipped, not an error
	perms, err := env.tenants.GetUserPermissions(ctx, acme.ID, "u1")
	require.NoError(t, err)
	assert.Empty(t, perms.Permissions)
}

func TestPendingAssignmentGrantsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	_, err := env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "auditor", model.StatusPending)
	require.NoError(t, err)

	userRoles, err := env.tenants.GetUserRoles(ctx, acme.ID, "u1")
	require.NoError(t, err)
	assert.Empty(t, userRoles.Roles)

	perms, err := env.tenants.GetUserPermissions(ctx, acme.ID, "u1")
	require.NoError(t, err)
	assert.Empty(t, perms.Permissions)
}

func TestInactiveRoleGrantsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	_, err := env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "auditor", "")
	require.NoError(t, err)

	auditor, err := env.roles.Find(ctx, acme.ID, "auditor")
	require.NoError(t, err)
	inactive := false
	_, err = env.roles.Update(ctx, acme.ID, auditor.ID,
		role.UpdateParams{Title: auditor.Title, IsActive: &inactive}, true)
	require.NoError(t, err)

	perms, err := env.tenants.GetUserPermissions(ctx, acme.ID, "u1")
	require.NoError(t, err)
	assert.Empty(t, perms.Permissions)
}

func TestInactivePermissionGrantsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	_, err := env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "auditor", "")
	require.NoError(t, err)

	perm, err := env.permissions.Find(ctx, "read:invoice")
	require.NoError(t, err)
	inactive := false
	_, err = env.permissions.Update(ctx, perm.ID,
		permission.UpdateParams{Title: perm.Title, IsActive: &inactive}, true)
	require.NoError(t, err)

	perms, err := env.tenants.GetUserPermissions(ctx, acme.ID, "u1")
	require.NoError(t, err)
	assert.Empty(t, perms.Permissions)
}

func TestRevokeRoleFromUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	_, err := env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "auditor", "")
	require.NoError(t, err)

	count, err := env.tenants.RevokeRoleFromUser(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// revoking again is a zero-count no-op
	count, err = env.tenants.RevokeRoleFromUser(ctx, acme.ID, "u1", "auditor")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSyncUserRolesReplaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	_, err := env.roles.CreateOne(ctx, "acme", role.CreateParams{Title: "Clerk", IsActive: true}, true)
	require.NoError(t, err)
	_, err = env.roles.CreateOne(ctx, "acme", role.CreateParams{Title: "Manager", IsActive: true}, true)
	require.NoError(t, err)

	_, err = env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "auditor", "")
	require.NoError(t, err)

	assignments, err := env.tenants.SyncUserRoles(ctx, acme.ID, "u1",
		[]string{"clerk", "manager"}, "")
	require.NoError(t, err)
	assert.Len(t, assignments, 2)

	userRoles, err := env.tenants.GetUserRoles(ctx, acme.ID, "u1")
	require.NoError(t, err)
	slugs := make([]string, 0, len(userRoles.Roles))
	for _, r := range userRoles.Roles {
		slugs = append(slugs, r.Slug)
	}
	assert.ElementsMatch(t, []string{"clerk", "manager"}, slugs)
}

func TestSyncUserRolesEmptyIsValidationError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	_, err := env.tenants.SyncUserRoles(ctx, acme.ID, "u1", nil, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestSyncUserRolesStrictResolution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	_, err := env.tenants.AssignRoleToUser(ctx, acme.ID, "u1", "auditor", "")
	require.NoError(t, err)

	// one unknown identifier fails the whole sync before any change
	_, err = env.tenants.SyncUserRoles(ctx, acme.ID, "u1", []string{"auditor", "ghost"}, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotExist))

	userRoles, err := env.tenants.GetUserRoles(ctx, acme.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, userRoles.Roles, 1)
}

func TestGetTenantGraphActiveRolesOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	_, err := env.roles.CreateOne(ctx, "acme", role.CreateParams{Title: "Dormant", IsActive: false}, true)
	require.NoError(t, err)

	graph, err := env.tenants.GetTenantWithRolesAndPermissions(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, acme.ID, graph.ID)
	require.Len(t, graph.Roles, 1)
	assert.Equal(t, "auditor", graph.Roles[0].Slug)
	require.Len(t, graph.Roles[0].Permissions, 1)
	assert.Equal(t, "read-invoice", graph.Roles[0].Permissions[0].Slug)
}

func TestFindUsersByRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	acme := env.seed(t, ctx)

	for _, u := range []string{"u1", "u2"} {
		_, err := env.tenants.AssignRoleToUser(ctx, acme.ID, u, "auditor", "")
		require.NoError(t, err)
	}

	users, err := env.tenants.FindUsersByRole(ctx, acme.ID, "auditor")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, users)
}
