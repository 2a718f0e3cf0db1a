package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tendant/simple-rbac/pkg/adapter"
)

// Adapter implements the storage contract with in-memory storage. It is
// the reference adapter used throughout the test suite.
//
// It deliberately offers no transaction capability: replace-all
// operations run without isolation against it, which mirrors how the
// core degrades on any non-transactional store.
type Adapter struct {
	mu     sync.RWMutex
	models map[string][]adapter.Record
}

// New creates an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{
		models: make(map[string][]adapter.Record),
	}
}

// FindOne returns the first record matching where, or (nil, nil).
func (a *Adapter) FindOne(ctx context.Context, model string, where adapter.Where) (adapter.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, rec := range a.models[model] {
		if where.Matches(rec) {
			return cloneRecord(rec), nil
		}
	}
	return nil, nil
}

// FindMany returns all records matching where.
func (a *Adapter) FindMany(ctx context.Context, model string, where adapter.Where) ([]adapter.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []adapter.Record
	for _, rec := range a.models[model] {
		if where.Matches(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

// Create stores a new record, assigning a uuid identity when absent.
func (a *Adapter) Create(ctx context.Context, model string, data adapter.Record) (adapter.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.createLocked(model, data), nil
}

// CreateMany stores a batch of records preserving input order.
func (a *Adapter) CreateMany(ctx context.Context, model string, data []adapter.Record) ([]adapter.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]adapter.Record, 0, len(data))
	for _, item := range data {
		out = append(out, a.createLocked(model, item))
	}
	return out, nil
}

func (a *Adapter) createLocked(model string, data adapter.Record) adapter.Record {
	rec := cloneRecord(data)
	if id, ok := rec["id"].(string); !ok || id == "" {
		rec["id"] = uuid.New().String()
	}
	a.models[model] = append(a.models[model], rec)
	return cloneRecord(rec)
}

// Update applies data to the first matching record and returns the
// post-update record, or (nil, nil) when nothing matched.
func (a *Adapter) Update(ctx context.Context, model string, where adapter.Where, data adapter.Record) (adapter.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, rec := range a.models[model] {
		if where.Matches(rec) {
			for k, v := range data {
				rec[k] = v
			}
			a.models[model][i] = rec
			return cloneRecord(rec), nil
		}
	}
	return nil, nil
}

// Delete removes all matching records and returns the count removed.
func (a *Adapter) Delete(ctx context.Context, model string, where adapter.Where) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows := a.models[model]
	kept := rows[:0:0]
	for _, rec := range rows {
		if !where.Matches(rec) {
			kept = append(kept, rec)
		}
	}
	a.models[model] = kept
	return int64(len(rows) - len(kept)), nil
}

// Reset drops all stored records (for tests).
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.models = make(map[string][]adapter.Record)
}

// Records returned to callers are copies so callers can't mutate the
// store behind the lock.
func cloneRecord(rec adapter.Record) adapter.Record {
	out := make(adapter.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
