// Package postgres implements the storage adapter contract over a pgx
// connection pool with dynamically built SQL. Model and key names come
// from the resolved configuration, so every table and column identifier
// is sanitized before it reaches a statement.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-rbac/pkg/adapter"
)

// Adapter is a Postgres-backed storage adapter. It implements the base
// contract plus BulkCreator and Transactor.
type Adapter struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. The caller owns the pool lifecycle.
func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type txKey struct{}

// q returns the transaction carried in ctx when WithTransaction is
// active, the pool otherwise.
func (a *Adapter) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return a.pool
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// buildWhere renders a WHERE clause with positional parameters starting
// at argOffset+1. Slice values become IN lists. Keys are sorted so the
// generated SQL is deterministic.
func buildWhere(where adapter.Where, argOffset int) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	n := argOffset
	for _, k := range keys {
		switch v := where[k].(type) {
		case []string:
			if len(v) == 0 {
				clauses = append(clauses, "FALSE")
				continue
			}
			ph := make([]string, 0, len(v))
			for _, item := range v {
				n++
				ph = append(ph, fmt.Sprintf("$%d", n))
				args = append(args, item)
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", ident(k), strings.Join(ph, ", ")))
		case []any:
			if len(v) == 0 {
				clauses = append(clauses, "FALSE")
				continue
			}
			ph := make([]string, 0, len(v))
			for _, item := range v {
				n++
				ph = append(ph, fmt.Sprintf("$%d", n))
				args = append(args, item)
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", ident(k), strings.Join(ph, ", ")))
		default:
			n++
			clauses = append(clauses, fmt.Sprintf("%s = $%d", ident(k), n))
			args = append(args, v)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// FindOne returns the first matching row, or (nil, nil) when none
// matches.
func (a *Adapter) FindOne(ctx context.Context, model string, where adapter.Where) (adapter.Record, error) {
	clause, args := buildWhere(where, 0)
	sql := fmt.Sprintf("SELECT * FROM %s%s LIMIT 1", ident(model), clause)
	rows, err := a.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", model, err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", model, err)
	}
	return adapter.Record(rec), nil
}

// FindMany returns every matching row.
func (a *Adapter) FindMany(ctx context.Context, model string, where adapter.Where) ([]adapter.Record, error) {
	clause, args := buildWhere(where, 0)
	sql := fmt.Sprintf("SELECT * FROM %s%s", ident(model), clause)
	rows, err := a.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", model, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", model, err)
	}
	out := make([]adapter.Record, 0, len(maps))
	for _, m := range maps {
		out = append(out, adapter.Record(m))
	}
	return out, nil
}

// insertSQL renders an INSERT ... RETURNING * statement. An absent or
// empty id is left to the column default. Columns are sorted for
// deterministic SQL.
func insertSQL(model string, data adapter.Record) (string, []any) {
	keys := make([]string, 0, len(data))
	for k, v := range data {
		if k == "id" {
			if s, ok := v.(string); ok && s == "" {
				continue
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, 0, len(keys))
	ph := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		cols = append(cols, ident(k))
		ph = append(ph, fmt.Sprintf("$%d", i+1))
		args = append(args, data[k])
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		ident(model), strings.Join(cols, ", "), strings.Join(ph, ", "))
	return sql, args
}

// Create inserts one row and returns it as stored.
func (a *Adapter) Create(ctx context.Context, model string, data adapter.Record) (adapter.Record, error) {
	sql, args := insertSQL(model, data)
	rows, err := a.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", model, err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", model, err)
	}
	return adapter.Record(rec), nil
}

// CreateMany inserts all rows in a single pipelined batch, preserving
// input order in the returned records.
func (a *Adapter) CreateMany(ctx context.Context, model string, data []adapter.Record) ([]adapter.Record, error) {
	if len(data) == 0 {
		return []adapter.Record{}, nil
	}
	batch := &pgx.Batch{}
	for _, item := range data {
		sql, args := insertSQL(model, item)
		batch.Queue(sql, args...)
	}
	results := a.q(ctx).SendBatch(ctx, batch)
	defer results.Close()

	out := make([]adapter.Record, 0, len(data))
	for range data {
		rows, err := results.Query()
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", model, err)
		}
		rec, err := pgx.CollectOneRow(rows, pgx.RowToMap)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", model, err)
		}
		out = append(out, adapter.Record(rec))
	}
	return out, nil
}

// Update modifies the first matching row and returns it post-update,
// or (nil, nil) when nothing matches. The single-row restriction is
// enforced with a ctid subquery.
func (a *Adapter) Update(ctx context.Context, model string, where adapter.Where, data adapter.Record) (adapter.Record, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		sets = append(sets, fmt.Sprintf("%s = $%d", ident(k), i+1))
		args = append(args, data[k])
	}
	clause, whereArgs := buildWhere(where, len(args))
	args = append(args, whereArgs...)

	table := ident(model)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE ctid = (SELECT ctid FROM %s%s LIMIT 1) RETURNING *",
		table, strings.Join(sets, ", "), table, clause)
	rows, err := a.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", model, err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("update %s: %w", model, err)
	}
	return adapter.Record(rec), nil
}

// Delete removes every matching row and returns the count.
func (a *Adapter) Delete(ctx context.Context, model string, where adapter.Where) (int64, error) {
	clause, args := buildWhere(where, 0)
	sql := fmt.Sprintf("DELETE FROM %s%s", ident(model), clause)
	tag, err := a.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", model, err)
	}
	return tag.RowsAffected(), nil
}

// WithTransaction runs fn inside one database transaction. The
// transaction rides in the context fn receives, so adapter calls made
// through that context share it.
func (a *Adapter) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}
