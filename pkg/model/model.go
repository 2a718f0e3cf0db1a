package model

import (
	"time"
)

// UserRole assignment statuses.
const (
	StatusPending = "pending"
	StatusActive  = "active"
)

// Tenant is the top-level isolation boundary. Every role and assignment
// belongs to exactly one tenant.
type Tenant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Permission is a global named capability, shared across tenants.
type Permission struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Role is a tenant-scoped named bundle of permissions. The pair
// (TenantID, Slug) is the natural key.
type Role struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RolePermission links a role to a permission it grants.
type RolePermission struct {
	ID           string `json:"id"`
	RoleID       string `json:"roleId"`
	PermissionID string `json:"permissionId"`
}

// UserRole connects an opaque host-owned user identity to a role inside
// a tenant. This system never stores user profile data.
type UserRole struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TenantID  string    `json:"tenantId"`
	RoleID    string    `json:"roleId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RoleWithPermissions is a read-only view of a role and the permissions
// reachable through its links.
type RoleWithPermissions struct {
	Role
	Permissions []Permission `json:"permissions"`
}

// TenantGraph is the administrative tenant -> roles -> permissions tree.
type TenantGraph struct {
	Tenant
	Roles []RoleWithPermissions `json:"roles"`
}

// UserRoles is the roles view for one user inside one tenant.
type UserRoles struct {
	UserID string `json:"userId"`
	Roles  []Role `json:"roles"`
}

// UserRolesAndPermissions pairs each of the user's roles with that
// role's permissions.
type UserRolesAndPermissions struct {
	UserID string                `json:"userId"`
	Roles  []RoleWithPermissions `json:"roles"`
}

// UserPermissions is the flattened effective-permission view.
type UserPermissions struct {
	UserID      string       `json:"userId"`
	Permissions []Permission `json:"permissions"`
}
