// Package tenant manages tenants and the assignment of roles to
// host-owned user identities. It also computes the effective permission
// views (user roles, user permissions, tenant graph) by joining through
// the role and permission services at query time.
package tenant
