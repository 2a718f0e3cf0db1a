package permission

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tendant/simple-rbac/pkg/adapter"
	"github.com/tendant/simple-rbac/pkg/audit"
	"github.com/tendant/simple-rbac/pkg/config"
	"github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/utils"
)

// Service owns the global permission catalog. Permissions are shared
// across tenants; only roles are tenant-scoped.
type Service struct {
	cfg      config.Resolved
	trail    *audit.Trail
	logger   *slog.Logger
	validate *validator.Validate
}

// Option configures a Service.
type Option func(*Service)

// WithAudit attaches an audit trail.
func WithAudit(t *audit.Trail) Option {
	return func(s *Service) { s.trail = t }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a permission service over the resolved configuration.
func NewService(cfg config.Resolved, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		logger:   slog.Default(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams is the payload for creating a permission.
type CreateParams struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

// UpdateParams is the payload for updating a permission. The slug is
// re-derived from Title.
type UpdateParams struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// Create stores one permission per payload item, unconditionally: no
// existence check is made, so callers wanting idempotence use Upsert or
// EnsureMany instead.
func (s *Service) Create(ctx context.Context, params []CreateParams, slugCase bool) ([]model.Permission, error) {
	out := make([]model.Permission, 0, len(params))
	for _, p := range params {
		created, err := s.CreateOne(ctx, p, slugCase)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

// CreateOne stores a single permission.
func (s *Service) CreateOne(ctx context.Context, p CreateParams, slugCase bool) (model.Permission, error) {
	if err := s.validate.Struct(p); err != nil {
		return model.Permission{}, errors.Validation("permission.title", "title is required")
	}
	now := time.Now().UTC()
	perm := model.Permission{
		Title:       p.Title,
		Slug:        utils.SlugFor(p.Title, slugCase),
		Description: p.Description,
		IsActive:    p.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec, err := s.cfg.Adapter.Create(ctx, s.cfg.Models.Permissions, perm.Record())
	if err != nil {
		return model.Permission{}, errors.Fatal(err, "failed to create permission")
	}
	created := model.PermissionFromRecord(rec)
	s.trail.Emit(audit.Event{
		Action:   audit.ActionPermissionCreate,
		Model:    s.cfg.Models.Permissions,
		RecordID: created.ID,
		After:    map[string]any(rec),
	})
	return created, nil
}

// Update applies a partial update to an existing permission. The
// post-update record is obtained by an independent re-read so callers
// never see the adapter's pre/post ambiguity.
func (s *Service) Update(ctx context.Context, permissionID string, p UpdateParams, slugCase bool) (model.Permission, error) {
	if permissionID == "" {
		return model.Permission{}, errors.Validation("permissionId", "must not be empty")
	}
	if err := s.validate.Struct(p); err != nil {
		return model.Permission{}, errors.Validation("permission.title", "title is required")
	}

	where := adapter.Where{"id": permissionID}
	existing, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Permissions, where)
	if err != nil {
		return model.Permission{}, errors.Fatal(err, "failed to load permission")
	}
	if existing == nil {
		return model.Permission{}, errors.NotExist("permission", permissionID)
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
	if _, err := s.cfg.Adapter.Update(ctx, s.cfg.Models.Permissions, where, data); err != nil {
		return model.Permission{}, errors.Fatal(err, "failed to update permission")
	}

	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Permissions, where)
	if err != nil {
		return model.Permission{}, errors.Fatal(err, "failed to re-read permission")
	}
	if rec == nil {
		return model.Permission{}, errors.NotExist("permission", permissionID)
	}

	s.trail.Emit(audit.Event{
		Action:   audit.ActionPermissionUpdate,
		Model:    s.cfg.Models.Permissions,
		RecordID: permissionID,
		Before:   map[string]any(existing),
		After:    map[string]any(rec),
	})
	return model.PermissionFromRecord(rec), nil
}

// List returns all active permissions.
func (s *Service) List(ctx context.Context) ([]model.Permission, error) {
	recs, err := s.cfg.Adapter.FindMany(ctx, s.cfg.Models.Permissions, adapter.Where{"isActive": true})
	if err != nil {
		return nil, errors.Fatal(err, "failed to list permissions")
	}
	out := make([]model.Permission, 0, len(recs))
	for _, rec := range recs {
		out = append(out, model.PermissionFromRecord(rec))
	}
	return out, nil
}

// Find resolves an identifier against active permissions, trying slug
// first and then title.
func (s *Service) Find(ctx context.Context, identifier string) (model.Permission, error) {
	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Permissions,
		adapter.Where{"slug": identifier, "isActive": true})
	if err != nil {
		return model.Permission{}, errors.Fatal(err, "failed to find permission")
	}
	if rec == nil {
		rec, err = s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Permissions,
			adapter.Where{"title": identifier, "isActive": true})
		if err != nil {
			return model.Permission{}, errors.Fatal(err, "failed to find permission")
		}
	}
	if rec == nil {
		return model.Permission{}, errors.NotExist("permission", identifier)
	}
	return model.PermissionFromRecord(rec), nil
}

// FindByID looks an active permission up by id. With rejectIfNotFound
// false, absence returns a zero Permission and a nil error.
func (s *Service) FindByID(ctx context.Context, permissionID string, rejectIfNotFound bool) (model.Permission, error) {
	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Permissions,
		adapter.Where{"id": permissionID, "isActive": true})
	if err != nil {
		return model.Permission{}, errors.Fatal(err, "failed to find permission")
	}
	if rec == nil {
		if rejectIfNotFound {
			return model.Permission{}, errors.NotExist("permission", permissionID)
		}
		return model.Permission{}, nil
	}
	return model.PermissionFromRecord(rec), nil
}

// Upsert returns the existing permission matching the derived slug or
// the title, creating it only when neither matches.
func (s *Service) Upsert(ctx context.Context, p CreateParams, slugCase bool) (model.Permission, error) {
	if err := s.validate.Struct(p); err != nil {
		return model.Permission{}, errors.Validation("permission.title", "title is required")
	}
	slug := utils.SlugFor(p.Title, slugCase)

	rec, err := s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Permissions, adapter.Where{"slug": slug})
	if err != nil {
		return model.Permission{}, errors.Fatal(err, "failed to find permission")
	}
	if rec == nil {
		rec, err = s.cfg.Adapter.FindOne(ctx, s.cfg.Models.Permissions, adapter.Where{"title": p.Title})
		if err != nil {
			return model.Permission{}, errors.Fatal(err, "failed to find permission")
		}
	}
	if rec != nil {
		return model.PermissionFromRecord(rec), nil
	}
	return s.CreateOne(ctx, p, slugCase)
}

// EnsureMany upserts every item, for idempotent catalog seeding.
func (s *Service) EnsureMany(ctx context.Context, params []CreateParams, slugCase bool) ([]model.Permission, error) {
	out := make([]model.Permission, 0, len(params))
	for _, p := range params {
		perm, err := s.Upsert(ctx, p, slugCase)
		if err != nil {
			return nil, err
		}
		out = append(out, perm)
	}
	return out, nil
}

// Delete resolves the identifier via Find and removes the permission.
// The pre-delete record is returned.
func (s *Service) Delete(ctx context.Context, identifier string) (model.Permission, error) {
	if identifier == "" {
		return model.Permission{}, errors.Validation("identifier", "must not be empty")
	}
	perm, err := s.Find(ctx, identifier)
	if err != nil {
		return model.Permission{}, err
	}
	if _, err := s.cfg.Adapter.Delete(ctx, s.cfg.Models.Permissions, adapter.Where{"id": perm.ID}); err != nil {
		return model.Permission{}, errors.Fatal(err, "failed to delete permission")
	}
	s.trail.Emit(audit.Event{
		Action:   audit.ActionPermissionDelete,
		Model:    s.cfg.Models.Permissions,
		RecordID: perm.ID,
		Before:   map[string]any(perm.Record()),
	})
	return perm, nil
}

// ResolveIDs maps a batch of slug-or-title identifiers to permission
// ids. Identifiers that resolve to nothing are silently dropped; grants
// are best-effort over the resolvable subset.
func (s *Service) ResolveIDs(ctx context.Context, identifiers []string) ([]string, error) {
	identifiers = utils.UniqueStrings(identifiers)
	if len(identifiers) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(identifiers))
	seen := make(map[string]struct{}, len(identifiers))
	collect := func(recs []adapter.Record) {
		for _, rec := range recs {
			perm := model.PermissionFromRecord(rec)
			if _, ok := seen[perm.ID]; ok {
				continue
			}
			seen[perm.ID] = struct{}{}
			ids = append(ids, perm.ID)
		}
	}

	bySlug, err := s.cfg.Adapter.FindMany(ctx, s.cfg.Models.Permissions,
		adapter.Where{"slug": identifiers})
	if err != nil {
		return nil, errors.Fatal(err, "failed to resolve permissions by slug")
	}
	collect(bySlug)

	byTitle, err := s.cfg.Adapter.FindMany(ctx, s.cfg.Models.Permissions,
		adapter.Where{"title": identifiers})
	if err != nil {
		return nil, errors.Fatal(err, "failed to resolve permissions by title")
	}
	collect(byTitle)

	return ids, nil
}
