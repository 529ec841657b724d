package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Relation is a lazy relation: a SQL definition bound to one warehouse
// connection. Composing relations performs no I/O; only Count, Collect and
// Materialize force execution.
type Relation struct {
	w    *Warehouse
	stmt string
}

// SQL returns the relation's standalone statement text.
func (r Relation) SQL() string {
	return r.stmt
}

// As renders the relation as a parenthesized table expression with an alias,
// usable in FROM and JOIN clauses.
func (r Relation) As(alias string) string {
	return "(" + r.stmt + ") AS " + alias
}

// IsZero reports whether the relation is unbound.
func (r Relation) IsZero() bool {
	return r.w == nil
}

// UnionAll combines relations with UNION ALL. All relations must be bound
// to the same warehouse.
func UnionAll(rels ...Relation) (Relation, error) {
	if len(rels) == 0 {
		return Relation{}, fmt.Errorf("union requires at least one relation")
	}

	w := rels[0].w
	parts := make([]string, 0, len(rels))
	for _, rel := range rels {
		if rel.w != w {
			return Relation{}, fmt.Errorf("cannot union relations bound to different connections")
		}
		parts = append(parts, rel.stmt)
	}

	if len(parts) == 1 {
		return rels[0], nil
	}

	return Relation{w: w, stmt: strings.Join(parts, "\nUNION ALL\n")}, nil
}

// Count executes SELECT COUNT(*) over the relation.
func (r Relation) Count(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "warehouse.Relation.Count")
	defer span.End()

	var count int
	query := "SELECT COUNT(*) FROM (" + r.stmt + ") AS counted"
	if err := r.w.conn.GetContext(ctx, &count, query); err != nil {
		return 0, err
	}
	return count, nil
}

// Collect executes the relation and scans all rows into dest, which must
// be a pointer to a slice of structs with db tags.
func (r Relation) Collect(ctx context.Context, dest any) error {
	ctx, span := tracing.StartSpan(ctx, "warehouse.Relation.Collect")
	defer span.End()

	return r.w.conn.SelectContext(ctx, dest, r.stmt)
}

// CollectMaps executes the relation and returns rows as generic maps.
// Used for relations whose column set is only known at run time, such as
// pivoted covariate tables.
func (r Relation) CollectMaps(ctx context.Context) ([]map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "warehouse.Relation.CollectMaps")
	defer span.End()

	rows, err := r.w.conn.QueryxContext(ctx, r.stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []map[string]any
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		results = append(results, row)
	}

	return results, rows.Err()
}
