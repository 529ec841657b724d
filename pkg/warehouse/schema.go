package warehouse

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// EnsureSchema creates a schema if it is absent. With replace the schema
// is dropped and recreated, discarding any tables inside it. The call is
// idempotent: an already-existing schema without replace is a logged no-op.
func (w *Warehouse) EnsureSchema(ctx context.Context, name string, replace bool) error {
	ctx, span := tracing.StartSpan(ctx, "warehouse.EnsureSchema")
	defer span.End()

	folded := w.resolver.Fold(name)
	quoted := QuoteIdent(folded)

	if replace {
		if _, err := w.conn.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+quoted+" CASCADE"); err != nil {
			return err
		}
		if _, err := w.conn.ExecContext(ctx, "CREATE SCHEMA "+quoted); err != nil {
			return err
		}
		w.logger.WithContext(ctx).WithField("schema", folded).Info("Replaced schema")
		return nil
	}

	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)"
	if err := w.conn.GetContext(ctx, &exists, query, folded); err != nil {
		return err
	}

	if exists {
		w.logger.WithContext(ctx).WithField("schema", folded).Debug("Schema already exists")
		return nil
	}

	if _, err := w.conn.ExecContext(ctx, "CREATE SCHEMA "+quoted); err != nil {
		return err
	}

	w.logger.WithContext(ctx).WithField("schema", folded).Info("Created schema")
	return nil
}
