package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-rbac/pkg/adapter/memory"
	"github.com/tendant/simple-rbac/pkg/errors"
)

func TestResolveDefaults(t *testing.T) {
	cfg := Config{Adapter: memory.New()}
	resolved, err := cfg.Resolve()
	require.NoError(t, err)

	assert.Equal(t, "tenants", resolved.Models.Tenants)
	assert.Equal(t, "users", resolved.Models.Users)
	assert.Equal(t, "roles", resolved.Models.Roles)
	assert.Equal(t, "permissions", resolved.Models.Permissions)
	assert.Equal(t, "user_roles", resolved.Models.UserRoles)
	assert.Equal(t, "role_permissions", resolved.Models.RolePermissions)

	assert.Equal(t, "userId", resolved.Keys.UserID)
	assert.Equal(t, "tenantId", resolved.Keys.TenantID)
	assert.Equal(t, "roleId", resolved.Keys.RoleID)
	assert.Equal(t, "permissionId", resolved.Keys.PermissionID)

	assert.Equal(t, 30*time.Second, resolved.CacheTTL)
	assert.Equal(t, 4096, resolved.CacheSize)
}

func TestResolvePartialOverride(t *testing.T) {
	cfg := Config{
		Adapter: memory.New(),
		Models:  Models{Tenants: "workspaces"},
		Keys:    Keys{TenantID: "workspaceId"},
	}
	resolved, err := cfg.Resolve()
	require.NoError(t, err)

	// overridden names stick, everything else keeps its default
	assert.Equal(t, "workspaces", resolved.Models.Tenants)
	assert.Equal(t, "roles", resolved.Models.Roles)
	assert.Equal(t, "workspaceId", resolved.Keys.TenantID)
	assert.Equal(t, "userId", resolved.Keys.UserID)
}

func TestResolveRequiresAdapter(t *testing.T) {
	_, err := Config{}.Resolve()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RBAC_MODEL_TENANTS", "orgs")
	t.Setenv("RBAC_KEY_TENANT_ID", "orgId")
	t.Setenv("RBAC_CACHE_TTL", "5s")

	cfg, err := LoadEnv()
	require.NoError(t, err)
	cfg.Adapter = memory.New()

	resolved, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "orgs", resolved.Models.Tenants)
	assert.Equal(t, "orgId", resolved.Keys.TenantID)
	assert.Equal(t, 5*time.Second, resolved.CacheTTL)
}
