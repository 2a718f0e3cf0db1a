package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-rbac/pkg/adapter"
	"github.com/tendant/simple-rbac/pkg/config"
)

func TestRoleRecordUsesConfiguredKeys(t *testing.T) {
	keys := config.Keys{
		UserID: "memberId", TenantID: "workspaceId",
		RoleID: "roleId", PermissionID: "permissionId",
	}
	role := Role{ID: "r1", TenantID: "w1", Title: "Auditor", Slug: "auditor", IsActive: true}

	rec := role.Record(keys)
	assert.Equal(t, "w1", rec["workspaceId"])
	_, hasCanonical := rec["tenantId"]
	assert.False(t, hasCanonical)

	decoded := RoleFromRecord(rec, keys)
	assert.Equal(t, role.ID, decoded.ID)
	assert.Equal(t, role.TenantID, decoded.TenantID)
	assert.Equal(t, role.Slug, decoded.Slug)
	assert.True(t, decoded.IsActive)
}

func TestUserRoleRecordRoundTrip(t *testing.T) {
	keys := config.DefaultKeys()
	now := time.Now().UTC().Truncate(time.Second)
	ur := UserRole{
		ID: "a1", UserID: "u1", TenantID: "t1", RoleID: "r1",
		Status: StatusActive, CreatedAt: now, UpdatedAt: now,
	}

	decoded := UserRoleFromRecord(ur.Record(keys), keys)
	assert.Equal(t, ur, decoded)
}

func TestTimestampsDecodeFromStrings(t *testing.T) {
	// adapters backed by JSON stores hand timestamps back as strings
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := adapter.Record{
		"id":        "t1",
		"name":      "Acme",
		"slug":      "acme",
		"isActive":  true,
		"createdAt": now.Format(time.RFC3339Nano),
		"updatedAt": now,
	}

	tenant := TenantFromRecord(rec)
	assert.Equal(t, now, tenant.CreatedAt)
	assert.Equal(t, now, tenant.UpdatedAt)
}
