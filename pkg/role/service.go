package role

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

// TenantResolver is the slice of the tenant service this package needs.
// The facade wires the concrete service in; keeping the dependency as a
// consumer-side interface avoids an import cycle between the two
// services.
type TenantResolver interface {
	Find(ctx context.Context, identifier string, rejectIfNotFound bool) (model.Tenant, error)
	FindByID(ctx context.Context, tenantID string, rejectIfNotFound bool) (model.Tenant, error)
}

// PermissionResolver resolves permission identifiers (slug or title) to
// ids, silently dropping identifiers that match nothing.
type PermissionResolver interface {
	ResolveIDs(ctx context.Context, identifiers []string) ([]string, error)
}

// Service owns tenant-scoped roles and the role-permission link table.
type Service struct {
	cfg         config.Resolved
	tenants     TenantResolver
	permissions PermissionResolver
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

// NewService creates a role service over the resolved configuration.
func NewService(cfg config.Resolved, tenants TenantResolver, permissions PermissionResolver, opts ...Option) *Service {
	s := &Service{
		cfg:         cfg,
		tenants:     tenants,
		permissions: permissions,
		logger:      slog.Default(),
		validate:    validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams is the payload for creating a role.
type CreateParams struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

// UpdateParams is the payload for updating a role. The slug is
// re-derived from Title.
type UpdateParams struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// Create resolves the tenant by slug or name and find-or-creates each
// role on (tenantId, slug, title), so repeated calls with identical
// input are idempotent.
func (s *Service) Create(ctx context.Context, tenantIdentifier string, params []CreateParams, slugCase bool) ([]model.Role, error) {
	tenant, err := s.tenants.Find(ctx, tenantIdentifier, false)
	if err != nil {
		return nil, err
	}
	if tenant.ID == "" {
		return nil, errors.NotExist("tenant", tenantIdentifier)
	}

	out := make([]model.Role, 0, len(params))
	for _, p := range params {
		role, err := s.findOrCreate(ctx, tenant.ID, p, slugCase)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}

// CreateOne is the single-payload form of Create.
func (s *Service) CreateOne(ctx context.Context, tenantIdentifier string, p CreateParams, slugCase bool) (model.Role, error) {
	roles, err := s.Create(ctx, tenantIdentifier, []CreateParams{p}, slugCase)
	if err != nil {
		return model.Role{}, err
	}
	return roles[0], nil
}

func (s *Service) findOrCreate(ctx context.Context, tenantID string, p CreateParams, slugCase bool) (model.Role, error) {
	if err := s.validate.Struct(p); err != nil {
		return model.Role{}, errors.Validation("role.title", "title is required")
	}
	slug := utils.SlugFor(p.Title, slugCase)

	existing, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Roles, adapter.Where{
		s.cfg.Keys.TenantID: tenantID,
		"slug":              slug,
		"title":             p.Title,
	})
	if err != nil {
		return model.Role{}, errors.Fatal(err, "failed to find role")
	}
	if existing != nil {
		return model.RoleFromRecord(existing, s.cfg.Keys), nil
	}

	now := time.Now().UTC()
	role := model.Role{
		TenantID:    tenantID,
		Title:       p.Title,
		Slug:        slug,
		Description: p.Description,
		IsActive:    p.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec, err := s.cfg.Adapter.Create(ctx, s.cfg.Models.Roles, role.Record(s.cfg.Keys))
	if err != nil {
		return model.Role{}, errors.Fatal(err, "failed to create role")
	}
	created := model.RoleFromRecord(rec, s.cfg.Keys)
	s.trail.Emit(audit.Event{
		Action:   audit.ActionRoleCreate,
		TenantID: tenantID,
		Model:    s.cfg.Models.Roles,
		RecordID: created.ID,
		After:    map[string]any(rec),
	})
	return created, nil
}

// Upsert finds a role by derived slug then title within the tenant,
// creating it only when neither matches.
func (s *Service) Upsert(ctx context.Context, tenantIdentifier string, p CreateParams, slugCase bool) (model.Role, error) {
	tenant, err := s.tenants.Find(ctx, tenantIdentifier, true)
	if err != nil {
		return model.Role{}, err
	}
	if err := s.validate.Struct(p); err != nil {
		return model.Role{}, errors.Validation("role.title", "title is required")
	}
	slug := utils.SlugFor(p.Title, slugCase)

	existing, err := s.findOneScoped(ctx, tenant.ID, adapter.Where{"slug": slug})
	if err != nil {
		return model.Role{}, err
	}
	if existing == nil {
		existing, err = s.findOneScoped(ctx, tenant.ID, adapter.Where{"title": p.Title})
		if err != nil {
			return model.Role{}, err
		}
	}
	if existing != nil {
		return model.RoleFromRecord(existing, s.cfg.Keys), nil
	}
	return s.findOrCreate(ctx, tenant.ID, p, slugCase)
}

// Update applies a partial update to a role. A role id that belongs to
// a different tenant is NotExist, never cross-tenant visible. The
// post-update record is obtained by re-read.
func (s *Service) Update(ctx context.Context, tenantID, roleID string, p UpdateParams, slugCase bool) (model.Role, error) {
	if err := s.validate.Struct(p); err != nil {
		return model.Role{}, errors.Validation("role.title", "title is required")
	}
	where := adapter.Where{"id": roleID, s.cfg.Keys.TenantID: tenantID}
	existing, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Roles, where)
	if err != nil {
		return model.Role{}, errors.Fatal(err, "failed to load role")
	}
	if existing == nil {
		return model.Role{}, errors.NotExist("role", roleID)
	}

	data := adapter.Record{
		"title":     p.Title,
		"slug":      utils.SlugFor(p.Title, slugCase),
		"updatedAt": time.Now().UTC(),
	}
	if p.Description != nil {
		data["description"] = *p.Description
	}
	if p.IsActive != nil {
		data["isActive"] = *p.IsActive
	}
	if _, err := s.cfg.Adapter.Update(ctx, s.cfg.Models.Roles, where, data); err != nil {
		return model.Role{}, errors.Fatal(err, "failed to update role")
	}

	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Roles, where)
	if err != nil {
		return model.Role{}, errors.Fatal(err, "failed to re-read role")
	}
	if rec == nil {
		return model.Role{}, errors.NotExist("role", roleID)
	}
	s.trail.Emit(audit.Event{
		Action:   audit.ActionRoleUpdate,
		TenantID: tenantID,
		Model:    s.cfg.Models.Roles,
		RecordID: roleID,
		Before:   map[string]any(existing),
		After:    map[string]any(rec),
	})
	return model.RoleFromRecord(rec, s.cfg.Keys), nil
}

// List returns all roles of a tenant.
func (s *Service) List(ctx context.Context, tenantID string) ([]model.Role, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}
	recs, err := s.cfg.Adapter.FindMany(ctx, s.cfg.Models.Roles,
		adapter.Where{s.cfg.Keys.TenantID: tenant.ID})
	if err != nil {
		return nil, errors.Fatal(err, "failed to list roles")
	}
	out := make([]model.Role, 0, len(recs))
	for _, rec := range recs {
		out = append(out, model.RoleFromRecord(rec, s.cfg.Keys))
	}
	return out, nil
}

// Find resolves an identifier within a tenant, trying slug, then title,
// then id. A match in a different tenant is never returned.
func (s *Service) Find(ctx context.Context, tenantID, identifier string) (model.Role, error) {
	for _, field := range []string{"slug", "title", "id"} {
		rec, err := s.findOneScoped(ctx, tenantID, adapter.Where{field: identifier})
		if err != nil {
			return model.Role{}, err
		}
		if rec != nil {
			return model.RoleFromRecord(rec, s.cfg.Keys), nil
		}
	}
	return model.Role{}, errors.NotExist("role", identifier)
}

// FindByID looks a role up by id within a tenant. With rejectIfNotFound
// false, absence returns a zero Role and a nil error.
func (s *Service) FindByID(ctx context.Context, tenantID, roleID string, rejectIfNotFound bool) (model.Role, error) {
	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Roles,
		adapter.Where{"id": roleID, s.cfg.Keys.TenantID: tenantID})
	if err != nil {
		return model.Role{}, errors.Fatal(err, "failed to find role")
	}
	if rec == nil {
		if rejectIfNotFound {
			return model.Role{}, errors.NotExist("role", roleID)
		}
		return model.Role{}, nil
	}
	return model.RoleFromRecord(rec, s.cfg.Keys), nil
}

// FindMany resolves a batch of slug/title identifiers, de-duplicated by
// id. An empty result is NotExist.
func (s *Service) FindMany(ctx context.Context, tenantID string, identifiers []string) ([]model.Role, error) {
	identifiers = utils.UniqueStrings(identifiers)

	out := make([]model.Role, 0, len(identifiers))
	seen := make(map[string]struct{}, len(identifiers))
	for _, identifier := range identifiers {
		rec, err := s.findOneScoped(ctx, tenantID, adapter.Where{"slug": identifier})
		if err != nil {
			return nil, err
		}
		if rec == nil {
			rec, err = s.findOneScoped(ctx, tenantID, adapter.Where{"title": identifier})
			if err != nil {
				return nil, err
			}
		}
		if rec == nil {
			continue
		}
		role := model.RoleFromRecord(rec, s.cfg.Keys)
		if _, ok := seen[role.ID]; ok {
			continue
		}
		seen[role.ID] = struct{}{}
		out = append(out, role)
	}
	if len(out) == 0 {
		return nil, errors.NotExist("roles", "none of the identifiers resolved")
	}
	return out, nil
}

func (s *Service) findOneScoped(ctx context.Context, tenantID string, where adapter.Where) (adapter.Record, error) {
	scoped := adapter.Where{s.cfg.Keys.TenantID: tenantID}
	for k, v := range where {
		scoped[k] = v
	}
	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Roles, scoped)
	if err != nil {
		return nil, errors.Fatal(err, "failed to find role")
	}
	return rec, nil
}

// Delete removes a role after an existence check. Links and assignments
// are not cascaded; query-time joins treat them as absent.
func (s *Service) Delete(ctx context.Context, tenantID, roleID string) error {
	role, err := s.FindByID(ctx, tenantID, roleID, true)
	if err != nil {
		return err
	}
	if _, err := s.cfg.Adapter.Delete(ctx, s.cfg.Models.Roles, adapter.Where{"id": role.ID}); err != nil {
		return errors.Fatal(err, "failed to delete role")
	}
	s.trail.Emit(audit.Event{
		Action:   audit.ActionRoleDelete,
		TenantID: tenantID,
		Model:    s.cfg.Models.Roles,
		RecordID: role.ID,
		Before:   map[string]any(role.Record(s.cfg.Keys)),
	})
	return nil
}
