package adapter

import (
	"context"
)

// Record is a single stored row/document, keyed by field name. Field
// names follow the resolved schema configuration, so foreign keys appear
// under whatever name the deployment configured (tenantId, workspaceId, ...).
type Record map[string]any

// Where is a conjunction of field conditions. A scalar value means
// equality; a []string or []any value means membership.
type Where map[string]any

// Matches reports whether a record satisfies every condition in the
// where-clause. An empty or nil Where matches everything. This defines
// the contract-level matching semantics adapters must honor.
func (w Where) Matches(rec Record) bool {
	for field, expected := range w {
		got, ok := rec[field]
		if !ok {
			return false
		}
		switch want := expected.(type) {
		case []string:
			if !containsAny(got, toAnySlice(want)) {
				return false
			}
		case []any:
			if !containsAny(got, want) {
				return false
			}
		default:
			if got != expected {
				return false
			}
		}
	}
	return true
}

func containsAny(got any, want []any) bool {
	for _, v := range want {
		if got == v {
			return true
		}
	}
	return false
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// Adapter is the base capability set any backing store must implement.
// All operations address a logical model name resolved from the schema
// configuration, never a physical table name hardcoded by a caller.
//
// Absence is signalled by a nil Record with a nil error: FindOne returns
// (nil, nil) when nothing matches, and Update returns (nil, nil) when
// there was nothing to update. Errors are reserved for store failures.
type Adapter interface {
	// FindOne returns the first record matching where, or (nil, nil).
	FindOne(ctx context.Context, model string, where Where) (Record, error)
	// FindMany returns all records matching where. A nil or empty where
	// means "all records of this model".
	FindMany(ctx context.Context, model string, where Where) ([]Record, error)
	// Create stores a new record, assigning identity when data carries no id,
	// and returns the stored record including the assigned id.
	Create(ctx context.Context, model string, data Record) (Record, error)
	// Update applies data to the first record matching where and returns
	// the resulting record, or (nil, nil) when nothing matched. Callers
	// that need the post-update state must not rely on the returned value
	// and should re-read instead; implementations differ on whether the
	// pre- or post-update record is returned.
	Update(ctx context.Context, model string, where Where, data Record) (Record, error)
	// Delete removes all records matching where and returns the count removed.
	Delete(ctx context.Context, model string, where Where) (int64, error)
}

// BulkCreator is the optional batch-create capability. Adapters that can
// insert many records at once implement it; callers go through CreateAll
// which falls back to sequential creates otherwise.
type BulkCreator interface {
	CreateMany(ctx context.Context, model string, data []Record) ([]Record, error)
}

// Transactor is the single-function transaction capability. The callback
// receives a context that carries the transaction; adapter calls made
// with that context participate in it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Tx is an in-flight transaction from a TxBeginner adapter.
type Tx interface {
	// Context returns a context that routes adapter calls through this
	// transaction.
	Context(ctx context.Context) context.Context
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxBeginner is the begin/commit/rollback transaction capability.
type TxBeginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// CreateAll inserts records preserving input order in the result. It uses
// the adapter's bulk capability when present and falls back to sequential
// creates otherwise. A failure mid-fallback aborts the batch; partial
// results are not reported.
func CreateAll(ctx context.Context, a Adapter, model string, data []Record) ([]Record, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if bulk, ok := a.(BulkCreator); ok {
		return bulk.CreateMany(ctx, model, data)
	}
	out := make([]Record, 0, len(data))
	for _, item := range data {
		created, err := a.Create(ctx, model, item)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

// InTransaction runs fn atomically when the adapter supports either
// transaction shape. When the adapter offers neither, fn runs with no
// isolation and atomicity is best-effort only; replace-all operations
// document this degradation rather than failing.
func InTransaction(ctx context.Context, a Adapter, fn func(ctx context.Context) error) error {
	if tr, ok := a.(Transactor); ok {
		return tr.WithTransaction(ctx, fn)
	}
	if tb, ok := a.(TxBeginner); ok {
		tx, err := tb.Begin(ctx)
		if err != nil {
			return err
		}
		txCtx := tx.Context(ctx)
		if err := fn(txCtx); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		return tx.Commit(ctx)
	}
	return fn(ctx)
}
