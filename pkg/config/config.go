package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/simple-rbac/pkg/adapter"
	"github.com/tendant/simple-rbac/pkg/errors"
)

// Models maps the six logical model names to the physical table or
// collection names a deployment uses. Zero-valued fields resolve to the
// defaults below.
type Models struct {
	Users           string `env:"RBAC_MODEL_USERS" yaml:"users"`
	Tenants         string `env:"RBAC_MODEL_TENANTS" yaml:"tenants"`
	Roles           string `env:"RBAC_MODEL_ROLES" yaml:"roles"`
	Permissions     string `env:"RBAC_MODEL_PERMISSIONS" yaml:"permissions"`
	UserRoles       string `env:"RBAC_MODEL_USER_ROLES" yaml:"userRoles"`
	RolePermissions string `env:"RBAC_MODEL_ROLE_PERMISSIONS" yaml:"rolePermissions"`
}

// Keys maps the four foreign-key field names. A host that stores tenants
// as "workspaces" typically remaps tenantId to workspaceId here.
type Keys struct {
	UserID       string `env:"RBAC_KEY_USER_ID" yaml:"userId"`
	TenantID     string `env:"RBAC_KEY_TENANT_ID" yaml:"tenantId"`
	RoleID       string `env:"RBAC_KEY_ROLE_ID" yaml:"roleId"`
	PermissionID string `env:"RBAC_KEY_PERMISSION_ID" yaml:"permissionId"`
}

// DefaultModels returns the fixed default model names.
func DefaultModels() Models {
	return Models{
		Users:           "users",
		Tenants:         "tenants",
		Roles:           "roles",
		Permissions:     "permissions",
		UserRoles:       "user_roles",
		RolePermissions: "role_permissions",
	}
}

// DefaultKeys returns the fixed default foreign-key field names.
func DefaultKeys() Keys {
	return Keys{
		UserID:       "userId",
		TenantID:     "tenantId",
		RoleID:       "roleId",
		PermissionID: "permissionId",
	}
}

// Config is the sparse configuration a host hands to rbac.New. Only the
// adapter is required; models, keys and cache settings fall back to
// defaults during Resolve.
type Config struct {
	Adapter   adapter.Adapter `yaml:"-"`
	Models    Models          `yaml:"models"`
	Keys      Keys            `yaml:"keys"`
	CacheTTL  time.Duration   `env:"RBAC_CACHE_TTL" env-default:"30s" yaml:"cacheTTL"`
	CacheSize int             `env:"RBAC_CACHE_SIZE" env-default:"4096" yaml:"cacheSize"`
}

// Resolved is a fully-specified configuration: every model and key name
// populated, every service call site reads names from here instead of
// hardcoding them.
type Resolved struct {
	Adapter   adapter.Adapter
	Models    Models
	Keys      Keys
	CacheTTL  time.Duration
	CacheSize int
}

// Resolve merges the sparse config over the fixed defaults. A nil
// adapter is a validation error; everything else has a default.
func (c Config) Resolve() (Resolved, error) {
	if c.Adapter == nil {
		return Resolved{}, errors.Validation("adapter", "storage adapter is required")
	}
	r := Resolved{
		Adapter:   c.Adapter,
		Models:    mergeModels(DefaultModels(), c.Models),
		Keys:      mergeKeys(DefaultKeys(), c.Keys),
		CacheTTL:  c.CacheTTL,
		CacheSize: c.CacheSize,
	}
	if r.CacheTTL <= 0 {
		r.CacheTTL = 30 * time.Second
	}
	if r.CacheSize <= 0 {
		r.CacheSize = 4096
	}
	return r, nil
}

// LoadEnv fills model/key overrides and cache settings from environment
// variables. The adapter still has to be supplied by the host.
func LoadEnv() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, errors.Fatal(err, "failed to read rbac config from environment")
	}
	return cfg, nil
}

func mergeModels(base, override Models) Models {
	if override.Users != "" {
		base.Users = override.Users
	}
	if override.Tenants != "" {
		base.Tenants = override.Tenants
	}
	if override.Roles != "" {
		base.Roles = override.Roles
	}
	if override.Permissions != "" {
		base.Permissions = override.Permissions
	}
	if override.UserRoles != "" {
		base.UserRoles = override.UserRoles
	}
	if override.RolePermissions != "" {
		base.RolePermissions = override.RolePermissions
	}
	return base
}

func mergeKeys(base, override Keys) Keys {
	if override.UserID != "" {
		base.UserID = override.UserID
	}
	if override.TenantID != "" {
		base.TenantID = override.TenantID
	}
	if override.RoleID != "" {
		base.RoleID = override.RoleID
	}
	if override.PermissionID != "" {
		base.PermissionID = override.PermissionID
	}
	return base
}
