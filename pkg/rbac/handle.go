package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	"github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/permission"
	"github.com/tendant/simple-rbac/pkg/role"
	"github.com/tendant/simple-rbac/pkg/tenant"
)

// Handle is the optional HTTP surface over the facade. Hosts that embed
// the library in-process never need it.
type Handle struct {
	rbac   *RBAC
	logger *slog.Logger
}

func NewHandle(r *RBAC) Handle {
	return Handle{rbac: r, logger: r.logger}
}

// Routes mounts the authorization endpoints on a chi router.
func Routes(r chi.Router, h Handle) {
	r.Route("/tenants", func(r chi.Router) {
		r.Post("/", h.PostTenant)
		r.Get("/{tenantId}", h.GetTenant)
		r.Put("/{tenantId}", h.PutTenant)
		r.Delete("/{tenantId}", h.DeleteTenant)

		r.Route("/{tenantId}/roles", func(r chi.Router) {
			r.Post("/", h.PostRoles)
			r.Put("/{roleId}", h.PutRole)
			r.Delete("/{roleId}", h.DeleteRole)
			r.Post("/{roleId}/permissions", h.GrantRolePermissions)
			r.Put("/{roleId}/permissions", h.SyncRolePermissions)
			r.Delete("/{roleId}/permissions", h.RevokeRolePermissions)
		})

		r.Route("/{tenantId}/users/{userId}", func(r chi.Router) {
			r.Get("/roles", h.GetUserRoles)
			r.Post("/roles", h.PostUserRole)
			r.Put("/roles", h.PutUserRoles)
			r.Delete("/roles/{roleId}", h.DeleteUserRole)
			r.Get("/permissions", h.GetUserPermissions)
			r.Get("/authorize", h.GetAuthorize)
		})
	})

	r.Route("/permissions", func(r chi.Router) {
		r.Post("/", h.PostPermissions)
		r.Put("/{permissionId}", h.PutPermission)
		r.Delete("/{permissionId}", h.DeletePermission)
	})
}

func (h Handle) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := errors.MapErrorCodeToHTTPStatus(code)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = "internal error"
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]any{"code": string(code), "message": msg})
}

func (h Handle) respond(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

type PostTenantRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	IsActive      bool   `json:"isActive"`
	ReturnIfFound bool   `json:"returnIfFound"`
}

// Create a tenant
// (POST /tenants)
func (h Handle) PostTenant(w http.ResponseWriter, r *http.Request) {
	data := PostTenantRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		h.respondErr(w, r, errors.Validation("body", "unable to parse body"))
		return
	}
	params := tenant.CreateParams{}
	copier.Copy(&params, data)
	created, err := h.rbac.CreateTenant(r.Context(), params, data.ReturnIfFound)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, created)
}

// Get a tenant with its roles and permissions. The path segment takes a
// slug or name as well as an id; resolution tries slug then name.
// (GET /tenants/{tenantId})
func (h Handle) GetTenant(w http.ResponseWriter, r *http.Request) {
	graph, err := h.rbac.GetTenantGraph(r.Context(), chi.URLParam(r, "tenantId"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, graph)
}

// Update a tenant
// (PUT /tenants/{tenantId})
func (h Handle) PutTenant(w http.ResponseWriter, r *http.Request) {
	data := tenant.UpdateParams{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		h.respondErr(w, r, errors.Validation("body", "unable to parse body"))
		return
	}
	updated, err := h.rbac.UpdateTenant(r.Context(), chi.URLParam(r, "tenantId"), data)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, updated)
}

// Delete a tenant
// (DELETE /tenants/{tenantId})
func (h Handle) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.rbac.DeleteTenant(r.Context(), chi.URLParam(r, "tenantId"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, deleted)
}

// Create global permissions
// (POST /permissions)
func (h Handle) PostPermissions(w http.ResponseWriter, r *http.Request) {
	data := []permission.CreateParams{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		h.respondErr(w, r, errors.Validation("body", "unable to parse body"))
		return
	}
	created, err := h.rbac.CreatePermissions(r.Context(), data)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, created)
}

// Update a permission
// (PUT /permissions/{permissionId})
func (h Handle) PutPermission(w http.ResponseWriter, r *http.Request) {
	data := permission.UpdateParams{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		h.respondErr(w, r, errors.Validation("body", "unable to parse body"))
		return
	}
	updated, err := h.rbac.UpdatePermission(r.Context(), chi.URLParam(r, "permissionId"), data)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, updated)
}

// Delete a permission
// (DELETE /permissions/{permissionId})
func (h Handle) DeletePermission(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.rbac.DeletePermission(r.Context(), chi.URLParam(r, "permissionId"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, deleted)
}

// Create roles in a tenant
// (POST /tenants/{tenantId}/roles)
func (h Handle) PostRoles(w http.ResponseWriter, r *http.Request) {
	data := []role.CreateParams{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		h.respondErr(w, r, errors.Validation("body", "unable to parse body"))
		return
	}
	created, err := h.rbac.CreateRoles(r.Context(), chi.URLParam(r, "tenantId"), data)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, created)
}

// Update a role
// (PUT /tenants/{tenantId}/roles/{roleId})
func (h Handle) PutRole(w http.ResponseWriter, r *http.Request) {
	data := role.UpdateParams{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		h.respondErr(w, r, errors.Validation("body", "unable to parse body"))
		return
	}
	updated, err := h.rbac.UpdateRole(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "roleId"), data)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, updated)
}

// Delete a role
// (DELETE /tenants/{tenantId}/roles/{roleId})
func (h Handle) DeleteRole(w http.ResponseWriter, r *http.Request) {
	err := h.rbac.DeleteRole(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "roleId"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, map[string]any{"deleted": true})
}

type permissionIdentifiersRequest struct {
	Permissions []string `json:"permissions"`
}

// Grant permissions to a role
// (POST /tenants/{tenantId}/roles/{roleId}/permissions)
func (h Handle) GrantRolePermissions(w http.ResponseWriter, r *http.Request) {
	data := permissionIdentifiersRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		h.respondErr(w, r, errors.Validation("body", "unable to parse body"))
		return
	}
	links, err := h.rbac.GrantPermissions(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "roleId"), data.Permissions)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, links)
}

// Replace a role's permissions
// (PUT /tenants/{tenantId}/roles/{roleId}/permissions)
func (h Handle) SyncRolePermissions(w http.ResponseWriter, r *http.Request) {
	data := permissionIdentifiersRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		h.respondErr(w, r, errors.Validation("body", "unable to parse body"))
		return
	}
	links, err := h.rbac.SyncPermissions(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "roleId"), data.Permissions)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, links)
}

// Revoke permissions from a role
// (DELETE /tenants/{tenantId}/roles/{roleId}/permissions)
func (h Handle) RevokeRolePermissions(w http.ResponseWriter, r *http.Request) {
	data := permissionIdentifiersRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		h.respondErr(w, r, errors.Validation("body", "unable to parse body"))
		return
	}
	count, err := h.rbac.RevokePermissions(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "roleId"), data.Permissions)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, map[string]any{"deleted": count})
}

// Get a user's roles
// (GET /tenants/{tenantId}/users/{userId}/roles)
func (h Handle) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.rbac.GetUserRoles(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "userId"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, roles)
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

// Assign a role to a user
// (POST /tenants/{tenantId}/users/{userId}/roles)
func (h Handle) PostUserRole(w http.ResponseWriter, r *http.Request) {
	data := assignRoleRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		h.respondErr(w, r, errors.Validation("body", "unable to parse body"))
		return
	}
	assigned, err := h.rbac.AssignRole(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "userId"), data.Role)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, assigned)
}

type syncRolesRequest struct {
	Roles []string `json:"roles"`
}

// Replace a user's roles
// (PUT /tenants/{tenantId}/users/{userId}/roles)
func (h Handle) PutUserRoles(w http.ResponseWriter, r *http.Request) {
	data := syncRolesRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		h.respondErr(w, r, errors.Validation("body", "unable to parse body"))
		return
	}
	assignments, err := h.rbac.SyncUserRoles(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "userId"), data.Roles)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, assignments)
}

// Revoke a role from a user
// (DELETE /tenants/{tenantId}/users/{userId}/roles/{roleId})
func (h Handle) DeleteUserRole(w http.ResponseWriter, r *http.Request) {
	count, err := h.rbac.RevokeRole(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "userId"), chi.URLParam(r, "roleId"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, map[string]any{"deleted": count})
}

// Get a user's effective permissions
// (GET /tenants/{tenantId}/users/{userId}/permissions)
func (h Handle) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.rbac.ListEffectivePermissions(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "userId"))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, perms)
}

// Check a single permission
// (GET /tenants/{tenantId}/users/{userId}/authorize?permission=...)
func (h Handle) GetAuthorize(w http.ResponseWriter, r *http.Request) {
	perm := r.URL.Query().Get("permission")
	if perm == "" {
		h.respondErr(w, r, errors.Validation("permission", "permission query parameter is required"))
		return
	}
	ok, err := h.rbac.Authorize(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "userId"), perm)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, map[string]any{"authorized": ok})
}
