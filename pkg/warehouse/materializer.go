package warehouse

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// MaterializeOptions controls target placement and the overwrite policy.
type MaterializeOptions struct {
	// Schema overrides the warehouse default schema for the target.
	Schema string
	// Overwrite drops an existing table under the target name before
	// creating the new one. Without it an existing target is an error.
	Overwrite bool
	// Temporary creates a session-scoped table. Temporary tables are not
	// schema-qualified.
	Temporary bool
}

// TableHandle names a persisted table together with the statement that
// defined it. The handle is itself usable as a relation, so materialized
// results can feed further composition.
type TableHandle struct {
	Identifier QualifiedIdentifier
	Definition string
	Temporary  bool
	CreatedAt  time.Time

	w *Warehouse
}

// Relation returns a lazy relation reading the materialized table.
func (h *TableHandle) Relation() Relation {
	return Relation{w: h.w, stmt: "SELECT * FROM " + h.Identifier.Quoted()}
}

// Materialize persists a relation as a named table.
//
// The target is resolved and checked for existence before anything runs:
// an existing table without Overwrite fails with TableExistsError and no
// statement is issued. With Overwrite the old table is dropped first.
// Drop-then-create is not atomic; a failed create after a drop leaves the
// target name empty. Callers needing durability should materialize into a
// staging name and swap, which fern does not do.
func (w *Warehouse) Materialize(ctx context.Context, rel Relation, target string, opts MaterializeOptions) (*TableHandle, error) {
	ctx, span := tracing.StartSpan(ctx, "warehouse.Materialize")
	defer span.End()

	schema := opts.Schema
	if schema == "" {
		schema = w.schema
	}
	if opts.Temporary {
		schema = ""
	}

	id, err := w.resolver.Resolve(target, schema)
	if err != nil {
		return nil, err
	}

	exists, err := w.tableExists(ctx, id, opts.Temporary)
	if err != nil {
		return nil, err
	}

	if exists {
		if !opts.Overwrite {
			return nil, &TableExistsError{Name: id.String()}
		}

		w.logger.WithContext(ctx).WithField("table", id.String()).Info("Dropping existing table before overwrite")
		if _, err := w.conn.ExecContext(ctx, "DROP TABLE "+id.Quoted()); err != nil {
			return nil, err
		}
	}

	stmt := "CREATE TABLE " + id.Quoted() + " AS (\n" + rel.SQL() + "\n) WITH DATA"
	if opts.Temporary {
		stmt = "CREATE TEMPORARY TABLE " + id.Quoted() + " AS (\n" + rel.SQL() + "\n) WITH DATA"
	}

	if _, err := w.conn.ExecContext(ctx, stmt); err != nil {
		w.logger.WithContext(ctx).WithError(err).WithField("table", id.String()).Error("Materialization failed")
		return nil, err
	}

	w.logger.WithContext(ctx).WithFields(map[string]any{
		"table":     id.String(),
		"temporary": opts.Temporary,
	}).Info("Materialized table")

	return &TableHandle{
		Identifier: id,
		Definition: rel.SQL(),
		Temporary:  opts.Temporary,
		CreatedAt:  time.Now().UTC(),
		w:          w,
	}, nil
}

func (w *Warehouse) tableExists(ctx context.Context, id QualifiedIdentifier, temporary bool) (bool, error) {
	var exists bool
	if temporary {
		query := "SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1 AND table_schema LIKE 'pg_temp%')"
		if err := w.conn.GetContext(ctx, &exists, query, id.Table); err != nil {
			return false, err
		}
		return exists, nil
	}

	query := "SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)"
	if err := w.conn.GetContext(ctx, &exists, query, id.Schema, id.Table); err != nil {
		return false, err
	}
	return exists, nil
}
