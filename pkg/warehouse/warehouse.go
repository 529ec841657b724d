package warehouse

import (
	"context"
	"database/sql"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/Ramsey-B/fern/pkg/logging"
)

// Conn is the subset of the database connection the warehouse layer needs.
// It is satisfied by database.DB.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

// Warehouse binds relations to one connection and carries the identifier
// convention and default schema. Relations created by different Warehouse
// instances must not be composed together.
type Warehouse struct {
	conn     Conn
	resolver Resolver
	schema   string
	logger   logging.Logger
}

func New(conn Conn, resolver Resolver, schema string, logger logging.Logger) *Warehouse {
	return &Warehouse{
		conn:     conn,
		resolver: resolver,
		schema:   resolver.Fold(schema),
		logger:   logger,
	}
}

// Resolver returns the identifier resolver in use.
func (w *Warehouse) Resolver() Resolver {
	return w.resolver
}

// Schema returns the folded default schema name.
func (w *Warehouse) Schema() string {
	return w.schema
}

// Table returns a lazy relation over a table in the default schema.
func (w *Warehouse) Table(table string) (Relation, error) {
	return w.TableIn(table, w.schema)
}

// TableIn returns a lazy relation over a table in an explicit schema.
func (w *Warehouse) TableIn(table, schema string) (Relation, error) {
	id, err := w.resolver.Resolve(table, schema)
	if err != nil {
		return Relation{}, err
	}
	return Relation{w: w, stmt: "SELECT * FROM " + id.Quoted()}, nil
}

// FromSelect lowers a composed select builder into a lazy relation. The
// builder's arguments are interpolated so the relation is a standalone
// statement that can be nested or rendered into a create-as-select.
func (w *Warehouse) FromSelect(sb *sqlbuilder.SelectBuilder) (Relation, error) {
	query, args := sb.Build()
	stmt, err := sqlbuilder.PostgreSQL.Interpolate(query, args)
	if err != nil {
		return Relation{}, err
	}
	return Relation{w: w, stmt: stmt}, nil
}

// FromSQL wraps an already-rendered statement as a lazy relation.
func (w *Warehouse) FromSQL(stmt string) Relation {
	return Relation{w: w, stmt: stmt}
}
