// Package role manages tenant-scoped roles and the links between roles
// and global permissions. Role identifiers (slug or plain title) only
// ever resolve within a single tenant.
package role
