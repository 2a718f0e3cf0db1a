// Package rbac is the facade over the tenant, role and permission
// services. It wires them against one storage adapter and resolved
// configuration, caches effective permission sets with a TTL, and keeps
// the cache coherent across every mutation it performs. An optional
// chi-based HTTP surface is provided for hosts that want one.
package rbac
