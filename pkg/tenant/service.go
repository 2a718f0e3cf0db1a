package tenant

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tendant/simple-rbac/pkg/adapter"
	"github.com/tendant/simple-rbac/pkg/audit"
	"github.com/tendant/simple-rbac/pkg/config"
	"github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/hooks"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/utils"
)

// RoleResolver is the slice of the role service this package needs for
// user-role assignments and the tenant graph. The facade injects the
// concrete role service after construction via SetRoleResolver, which
// keeps the two packages from importing each other.
type RoleResolver interface {
	Find(ctx context.Context, tenantID, identifier string) (model.Role, error)
	FindByID(ctx context.Context, tenantID, roleID string, rejectIfNotFound bool) (model.Role, error)
	FindMany(ctx context.Context, tenantID string, identifiers []string) ([]model.Role, error)
	List(ctx context.Context, tenantID string) ([]model.Role, error)
	FindRolePermissions(ctx context.Context, roleID string) ([]model.RolePermission, error)
}

// PermissionLookup resolves permission ids for the effective-permission
// joins.
type PermissionLookup interface {
	FindByID(ctx context.Context, permissionID string, rejectIfNotFound bool) (model.Permission, error)
}

// Service owns tenants and user-role assignments.
type Service struct {
	cfg         config.Resolved
	roles       RoleResolver
	permissions PermissionLookup
	trail       *audit.Trail
	hooks       *hooks.Emitter
	logger      *slog.Logger
	validate    *validator.Validate
}

// Option configures a Service.
type Option func(*Service)

// WithAudit attaches an audit trail.
func WithAudit(t *audit.Trail) Option {
	return func(s *Service) { s.trail = t }
}

// WithHooks attaches a lifecycle hook emitter.
func WithHooks(h *hooks.Emitter) Option {
	return func(s *Service) { s.hooks = h }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a tenant service over the resolved configuration.
// Call SetRoleResolver before using role-dependent operations.
func NewService(cfg config.Resolved, permissions PermissionLookup, opts ...Option) *Service {
	s := &Service{
		cfg:         cfg,
		permissions: permissions,
		logger:      slog.Default(),
		validate:    validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRoleResolver injects the role service dependency.
func (s *Service) SetRoleResolver(r RoleResolver) { s.roles = r }

// CreateParams is the payload for creating a tenant.
type CreateParams struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

// UpdateParams is the payload for updating a tenant. The slug is
// re-derived when Name changes.
type UpdateParams struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// Create makes a tenant, treating the name and its derived slug as the
// idempotency key: a tenant whose slug or name matches either blocks
// the create. When one exists: with returnIfFound it is returned as-is,
// otherwise the call fails with ALREADY_EXIST.
func (s *Service) Create(ctx context.Context, p CreateParams, slugCase, returnIfFound bool) (model.Tenant, error) {
	if err := s.validate.Struct(p); err != nil {
		return model.Tenant{}, errors.Validation("tenant.name", "name is required")
	}

	slug := utils.SlugFor(p.Name, slugCase)
	existing, err := s.Find(ctx, p.Name, false)
	if err != nil {
		return model.Tenant{}, err
	}
	if existing.ID == "" && slug != p.Name {
		existing, err = s.Find(ctx, slug, false)
		if err != nil {
			return model.Tenant{}, err
		}
	}
	if existing.ID != "" {
		if returnIfFound {
			return existing, nil
		}
		return model.Tenant{}, errors.AlreadyExists("tenant", p.Name)
	}

	now := time.Now().UTC()
	tenant := model.Tenant{
		Name:        p.Name,
		Slug:        slug,
		Description: p.Description,
		IsActive:    p.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec, err := s.cfg.Adapter.Create(ctx, s.cfg.Models.Tenants, tenant.Record())
	if err != nil {
		return model.Tenant{}, errors.Fatal(err, "failed to create tenant")
	}
	created := model.TenantFromRecord(rec)
	s.trail.Emit(audit.Event{
		Action:   audit.ActionTenantCreate,
		TenantID: created.ID,
		Model:    s.cfg.Models.Tenants,
		RecordID: created.ID,
		After:    map[string]any(rec),
	})
	return created, nil
}

// Find resolves a tenant by slug first, then by name. With
// rejectIfNotFound false, absence returns a zero Tenant and nil error.
func (s *Service) Find(ctx context.Context, identifier string, rejectIfNotFound bool) (model.Tenant, error) {
	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Tenants, adapter.Where{"slug": identifier})
	if err != nil {
		return model.Tenant{}, errors.Fatal(err, "failed to find tenant")
	}
	if rec == nil {
		rec, err = s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Tenants, adapter.Where{"name": identifier})
		if err != nil {
			return model.Tenant{}, errors.Fatal(err, "failed to find tenant")
		}
	}
	if rec == nil {
		if rejectIfNotFound {
			return model.Tenant{}, errors.NotExist("tenant", identifier)
		}
		return model.Tenant{}, nil
	}
	return model.TenantFromRecord(rec), nil
}

// FindByID looks a tenant up by id.
func (s *Service) FindByID(ctx context.Context, tenantID string, rejectIfNotFound bool) (model.Tenant, error) {
	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Tenants, adapter.Where{"id": tenantID})
	if err != nil {
		return model.Tenant{}, errors.Fatal(err, "failed to find tenant")
	}
	if rec == nil {
		if rejectIfNotFound {
			return model.Tenant{}, errors.NotExist("tenant", tenantID)
		}
		return model.Tenant{}, nil
	}
	return model.TenantFromRecord(rec), nil
}

// List returns all tenants.
func (s *Service) List(ctx context.Context) ([]model.Tenant, error) {
	recs, err := s.cfg.Adapter.FindMany(ctx, s.cfg.Models.Tenants, adapter.Where{})
	if err != nil {
		return nil, errors.Fatal(err, "failed to list tenants")
	}
	out := make([]model.Tenant, 0, len(recs))
	for _, rec := range recs {
		out = append(out, model.TenantFromRecord(rec))
	}
	return out, nil
}

// Update applies a partial update and returns the tenant re-read from
// storage. Updating a missing tenant is NOT_EXIST.
func (s *Service) Update(ctx context.Context, tenantID string, p UpdateParams, slugCase bool) (model.Tenant, error) {
	where := adapter.Where{"id": tenantID}
	existing, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Tenants, where)
	if err != nil {
		return model.Tenant{}, errors.Fatal(err, "failed to load tenant")
	}
	if existing == nil {
		return model.Tenant{}, errors.NotExist("tenant", tenantID)
	}

	data := adapter.Record{"updatedAt": time.Now().UTC()}
	if p.Name != nil {
		if *p.Name == "" {
			return model.Tenant{}, errors.Validation("tenant.name", "name cannot be empty")
		}
		data["name"] = *p.Name
		data["slug"] = utils.SlugFor(*p.Name, slugCase)
	}
	if p.Description != nil {
		data["description"] = *p.Description
	}
	if p.IsActive != nil {
		data["isActive"] = *p.IsActive
	}
	if _, err := s.cfg.Adapter.Update(ctx, s.cfg.Models.Tenants, where, data); err != nil {
		return model.Tenant{}, errors.Fatal(err, "failed to update tenant")
	}

	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Tenants, where)
	if err != nil {
		return model.Tenant{}, errors.Fatal(err, "failed to re-read tenant")
	}
	if rec == nil {
		return model.Tenant{}, errors.NotExist("tenant", tenantID)
	}
	s.trail.Emit(audit.Event{
		Action:   audit.ActionTenantUpdate,
		TenantID: tenantID,
		Model:    s.cfg.Models.Tenants,
		RecordID: tenantID,
		Before:   map[string]any(existing),
		After:    map[string]any(rec),
	})
	return model.TenantFromRecord(rec), nil
}

// Delete removes an active tenant and returns its pre-delete state.
// Deleting an inactive tenant is FORBIDDEN; deactivate-then-delete is
// the required order of operations for a hard stop.
func (s *Service) Delete(ctx context.Context, tenantID string) (model.Tenant, error) {
	tenant, err := s.FindByID(ctx, tenantID, true)
	if err != nil {
		return model.Tenant{}, err
	}
	if !tenant.IsActive {
		return model.Tenant{}, errors.Forbidden("cannot delete an inactive tenant")
	}
	if _, err := s.cfg.Adapter.Delete(ctx, s.cfg.Models.Tenants, adapter.Where{"id": tenantID}); err != nil {
		return model.Tenant{}, errors.Fatal(err, "failed to delete tenant")
	}
	s.trail.Emit(audit.Event{
		Action:   audit.ActionTenantDelete,
		TenantID: tenantID,
		Model:    s.cfg.Models.Tenants,
		RecordID: tenantID,
		Before:   map[string]any(tenant.Record()),
	})
	return tenant, nil
}

// GetTenantWithRolesAndPermissions builds the administrative tenant ->
// roles -> permissions tree. Only active roles are included; dangling
// permission links are skipped.
func (s *Service) GetTenantWithRolesAndPermissions(ctx context.Context, identifier string) (model.TenantGraph, error) {
	tenant, err := s.Find(ctx, identifier, true)
	if err != nil {
		return model.TenantGraph{}, err
	}
	roles, err := s.roles.List(ctx, tenant.ID)
	if err != nil {
		return model.TenantGraph{}, err
	}

	graph := model.TenantGraph{Tenant: tenant, Roles: make([]model.RoleWithPermissions, 0, len(roles))}
	for _, role := range roles {
		if !role.IsActive {
			continue
		}
		perms, err := s.permissionsForRole(ctx, role.ID)
		if err != nil {
			return model.TenantGraph{}, err
		}
		graph.Roles = append(graph.Roles, model.RoleWithPermissions{Role: role, Permissions: perms})
	}
	return graph, nil
}

// permissionsForRole resolves a role's links to permission records,
// dropping links whose permission no longer exists.
func (s *Service) permissionsForRole(ctx context.Context, roleID string) ([]model.Permission, error) {
	links, err := s.roles.FindRolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	perms := make([]model.Permission, 0, len(links))
	for _, link := range links {
		perm, err := s.permissions.FindByID(ctx, link.PermissionID, false)
		if err != nil {
			return nil, err
		}
		if perm.ID == "" {
			s.logger.Warn("skipping dangling permission link",
				"roleId", roleID, "permissionId", link.PermissionID)
			continue
		}
		if !perm.IsActive {
			continue
		}
		perms = append(perms, perm)
	}
	return perms, nil
}
