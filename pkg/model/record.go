package model

import (
	"time"

	"github.com/tendant/simple-rbac/pkg/adapter"
	"github.com/tendant/simple-rbac/pkg/config"
)

// Record mapping is Keys-aware because foreign-key field names are
// configurable per deployment: a Role's tenant id may live under
// "tenantId" in one store and "workspaceId" in another. Fixed fields
// (id, name, slug, title, description, isActive, status, timestamps)
// always keep their canonical names.

// TenantFromRecord decodes a stored tenant record.
func TenantFromRecord(rec adapter.Record) Tenant {
	return Tenant{
		ID:          recString(rec, "id"),
		Name:        recString(rec, "name"),
		Slug:        recString(rec, "slug"),
		Description: recString(rec, "description"),
		IsActive:    recBool(rec, "isActive"),
		CreatedAt:   recTime(rec, "createdAt"),
		UpdatedAt:   recTime(rec, "updatedAt"),
	}
}

// Record encodes the tenant for storage.
func (t Tenant) Record() adapter.Record {
	return adapter.Record{
		"id":          t.ID,
		"name":        t.Name,
		"slug":        t.Slug,
		"description": t.Description,
		"isActive":    t.IsActive,
		"createdAt":   t.CreatedAt,
		"updatedAt":   t.UpdatedAt,
	}
}

// PermissionFromRecord decodes a stored permission record.
func PermissionFromRecord(rec adapter.Record) Permission {
	return Permission{
		ID:          recString(rec, "id"),
		Title:       recString(rec, "title"),
		Slug:        recString(rec, "slug"),
		Description: recString(rec, "description"),
		IsActive:    recBool(rec, "isActive"),
		CreatedAt:   recTime(rec, "createdAt"),
		UpdatedAt:   recTime(rec, "updatedAt"),
	}
}

// Record encodes the permission for storage.
func (p Permission) Record() adapter.Record {
	return adapter.Record{
		"id":          p.ID,
		"title":       p.Title,
		"slug":        p.Slug,
		"description": p.Description,
		"isActive":    p.IsActive,
		"createdAt":   p.CreatedAt,
		"updatedAt":   p.UpdatedAt,
	}
}

// RoleFromRecord decodes a stored role record using the configured
// foreign-key names.
func RoleFromRecord(rec adapter.Record, keys config.Keys) Role {
	return Role{
		ID:          recString(rec, "id"),
		TenantID:    recString(rec, keys.TenantID),
		Title:       recString(rec, "title"),
		Slug:        recString(rec, "slug"),
		Description: recString(rec, "description"),
		IsActive:    recBool(rec, "isActive"),
		CreatedAt:   recTime(rec, "createdAt"),
		UpdatedAt:   recTime(rec, "updatedAt"),
	}
}

// Record encodes the role for storage under the configured key names.
func (r Role) Record(keys config.Keys) adapter.Record {
	return adapter.Record{
		"id":          r.ID,
		keys.TenantID: r.TenantID,
		"title":       r.Title,
		"slug":        r.Slug,
		"description": r.Description,
		"isActive":    r.IsActive,
		"createdAt":   r.CreatedAt,
		"updatedAt":   r.UpdatedAt,
	}
}

// RolePermissionFromRecord decodes a stored role-permission link.
func RolePermissionFromRecord(rec adapter.Record, keys config.Keys) RolePermission {
	return RolePermission{
		ID:           recString(rec, "id"),
		RoleID:       recString(rec, keys.RoleID),
		PermissionID: recString(rec, keys.PermissionID),
	}
}

// Record encodes the link for storage under the configured key names.
func (rp RolePermission) Record(keys config.Keys) adapter.Record {
	return adapter.Record{
		"id":              rp.ID,
		keys.RoleID:       rp.RoleID,
		keys.PermissionID: rp.PermissionID,
	}
}

// UserRoleFromRecord decodes a stored user-role assignment.
func UserRoleFromRecord(rec adapter.Record, keys config.Keys) UserRole {
	return UserRole{
		ID:        recString(rec, "id"),
		UserID:    recString(rec, keys.UserID),
		TenantID:  recString(rec, keys.TenantID),
		RoleID:    recString(rec, keys.RoleID),
		Status:    recString(rec, "status"),
		CreatedAt: recTime(rec, "createdAt"),
		UpdatedAt: recTime(rec, "updatedAt"),
	}
}

// Record encodes the assignment for storage under the configured key names.
func (ur UserRole) Record(keys config.Keys) adapter.Record {
	return adapter.Record{
		"id":          ur.ID,
		keys.UserID:   ur.UserID,
		keys.TenantID: ur.TenantID,
		keys.RoleID:   ur.RoleID,
		"status":      ur.Status,
		"createdAt":   ur.CreatedAt,
		"updatedAt":   ur.UpdatedAt,
	}
}

func recString(rec adapter.Record, field string) string {
	if v, ok := rec[field].(string); ok {
		return v
	}
	return ""
}

func recBool(rec adapter.Record, field string) bool {
	if v, ok := rec[field].(bool); ok {
		return v
	}
	return false
}

func recTime(rec adapter.Record, field string) time.Time {
	switch v := rec[field].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
