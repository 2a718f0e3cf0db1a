package rbac

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-rbac/pkg/audit"
	"github.com/tendant/simple-rbac/pkg/cache"
	"github.com/tendant/simple-rbac/pkg/config"
	"github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/hooks"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/permission"
	"github.com/tendant/simple-rbac/pkg/role"
	"github.com/tendant/simple-rbac/pkg/tenant"
)

// RBAC is the facade over the three services. It owns the effective
// permission cache and keeps it coherent across mutations; hosts that
// call the services directly bypass the cache and must invalidate
// themselves.
type RBAC struct {
	cfg      config.Resolved
	slugCase bool

	Tenants     *tenant.Service
	Roles       *role.Service
	Permissions *permission.Service
	Audit       *audit.Trail
	Hooks       *hooks.Emitter

	cache  *cache.TTL[model.UserPermissions]
	logger *slog.Logger
}

// Option configures the facade.
type Option func(*RBAC)

// WithLogger overrides the default logger for the facade and every
// service it constructs.
func WithLogger(l *slog.Logger) Option {
	return func(r *RBAC) { r.logger = l }
}

// WithUnderscoreSlugs derives slugs with underscores (read_invoice)
// instead of hyphens (read-invoice).
func WithUnderscoreSlugs() Option {
	return func(r *RBAC) { r.slugCase = false }
}

// New resolves the configuration and wires the services, audit trail,
// hook emitter and cache together.
func New(cfg config.Config, opts ...Option) (*RBAC, error) {
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	r := &RBAC{
		cfg:      resolved,
		slugCase: true,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.Audit = audit.NewTrail(r.logger)
	r.Hooks = hooks.NewEmitter(r.logger)
	r.cache = cache.New[model.UserPermissions](resolved.CacheSize, resolved.CacheTTL)

	r.Permissions = permission.NewService(resolved,
		permission.WithAudit(r.Audit), permission.WithLogger(r.logger))
	r.Tenants = tenant.NewService(resolved, r.Permissions,
		tenant.WithAudit(r.Audit), tenant.WithHooks(r.Hooks), tenant.WithLogger(r.logger))
	r.Roles = role.NewService(resolved, r.Tenants, r.Permissions,
		role.WithAudit(r.Audit), role.WithHooks(r.Hooks), role.WithLogger(r.logger))
	r.Tenants.SetRoleResolver(r.Roles)

	return r, nil
}

// Config exposes the resolved configuration.
func (r *RBAC) Config() config.Resolved { return r.cfg }

func cacheKey(tenantID, userID string) string { return tenantID + "/" + userID }

// ListEffectivePermissions returns the user's flattened permission set
// inside a tenant, served from the TTL cache when fresh.
func (r *RBAC) ListEffectivePermissions(ctx context.Context, tenantID, userID string) (model.UserPermissions, error) {
	key := cacheKey(tenantID, userID)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}
	perms, err := r.Tenants.GetUserPermissions(ctx, tenantID, userID)
	if err != nil {
		return model.UserPermissions{}, err
	}
	r.cache.Set(key, perms)
	return perms, nil
}

// Authorize reports whether the user holds a permission, identified by
// slug or title, inside a tenant.
func (r *RBAC) Authorize(ctx context.Context, tenantID, userID, permissionIdentifier string) (bool, error) {
	perms, err := r.ListEffectivePermissions(ctx, tenantID, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms.Permissions {
		if p.Slug == permissionIdentifier || p.Title == permissionIdentifier {
			return true, nil
		}
	}
	return false, nil
}

// MustAuthorize is Authorize returning FORBIDDEN when the permission is
// not held.
func (r *RBAC) MustAuthorize(ctx context.Context, tenantID, userID, permissionIdentifier string) error {
	ok, err := r.Authorize(ctx, tenantID, userID, permissionIdentifier)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Forbidden("user does not hold permission " + permissionIdentifier)
	}
	return nil
}

// InvalidateUser evicts one user's cached permissions in one tenant.
func (r *RBAC) InvalidateUser(tenantID, userID string) {
	r.cache.Delete(cacheKey(tenantID, userID))
}

// PurgeCache drops every cached permission set. Catalog-level mutations
// use this; per-user invalidation is not worth enumerating the blast
// radius of a permission or tenant change.
func (r *RBAC) PurgeCache() { r.cache.Purge() }

// invalidateRoleHolders evicts every user currently assigned the role.
func (r *RBAC) invalidateRoleHolders(ctx context.Context, tenantID, roleID string) {
	users, err := r.Tenants.FindUsersByRoleID(ctx, tenantID, roleID)
	if err != nil {
		r.logger.Warn("failed to enumerate role holders, purging cache",
			"tenantId", tenantID, "roleId", roleID, "err", err)
		r.cache.Purge()
		return
	}
	for _, userID := range users {
		r.InvalidateUser(tenantID, userID)
	}
}
