// Package adapter defines the storage contract the authorization core is
// written against. Any backing store (SQL, document store, in-memory)
// plugs in by implementing Adapter; optional capabilities (bulk create,
// transactions) are separate interfaces probed at the call site.
//
// # Capability tiers
//
// The base contract is single-record CRUD plus filtered reads. On top of
// it an adapter may implement:
//
//   - BulkCreator: batch inserts. CreateAll probes for it and falls back
//     to sequential Create calls, preserving input order.
//   - Transactor or TxBeginner: atomicity for replace-all operations.
//     InTransaction accepts either shape and degrades to running the
//     callback without isolation when neither is offered.
//
// # Wiring an adapter
//
//	cfg := config.Config{Adapter: memory.New()}
//	engine, err := rbac.New(cfg)
//
// Services never see a concrete adapter type; they address it with
// (logical model name, where-clause) pairs built from the resolved
// schema configuration.
package adapter
