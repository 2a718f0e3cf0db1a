// Package config resolves the sparse per-deployment schema configuration
// against fixed defaults. A host can rename every table/collection and
// every foreign-key field without touching business logic; services look
// names up through the Resolved configuration at every call site.
//
//	cfg := config.Config{
//		Adapter: pg,
//		Models:  config.Models{Tenants: "workspaces"},
//		Keys:    config.Keys{TenantID: "workspaceId"},
//	}
//	resolved, err := cfg.Resolve()
//
// Overrides can also come from the environment via LoadEnv (cleanenv
// tags: RBAC_MODEL_*, RBAC_KEY_*, RBAC_CACHE_TTL, RBAC_CACHE_SIZE).
package config
