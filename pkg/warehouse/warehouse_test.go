package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/logging"
)

// fakeConn records statements and serves canned scalar reads. Queryx is
// unsupported; tests forcing row iteration run against a real database.
type fakeConn struct {
	execs   []string
	execErr error

	// exists values are consumed in order by GetContext(*bool).
	exists []bool
	count  int
	getErr error
}

func (f *fakeConn) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.execs = append(f.execs, query)
	if f.execErr != nil {
		return nil, f.execErr
	}
	return driver.RowsAffected(0), nil
}

func (f *fakeConn) GetContext(_ context.Context, dest any, _ string, _ ...any) error {
	if f.getErr != nil {
		return f.getErr
	}
	switch d := dest.(type) {
	case *bool:
		if len(f.exists) > 0 {
			*d = f.exists[0]
			f.exists = f.exists[1:]
		}
	case *int:
		*d = f.count
	}
	return nil
}

func (f *fakeConn) SelectContext(_ context.Context, _ any, _ string, _ ...any) error {
	return nil
}

func (f *fakeConn) QueryxContext(_ context.Context, _ string, _ ...any) (*sqlx.Rows, error) {
	return nil, nil
}

func newTestWarehouse(conn Conn) *Warehouse {
	return New(conn, NewResolver(FoldLower), "analysis", logging.NewNop())
}

func Test_Warehouse_Table(t *testing.T) {
	wh := newTestWarehouse(&fakeConn{})

	t.Run("default schema", func(t *testing.T) {
		rel, err := wh.Table("cohort")

		require.NoError(t, err)
		assert.Equal(t, `SELECT * FROM "analysis"."cohort"`, rel.SQL())
	})

	t.Run("explicit schema is folded", func(t *testing.T) {
		rel, err := wh.TableIn("Cohort", "Raw")

		require.NoError(t, err)
		assert.Equal(t, `SELECT * FROM "raw"."cohort"`, rel.SQL())
	})

	t.Run("empty table is rejected", func(t *testing.T) {
		_, err := wh.Table("")

		assert.Error(t, err)
	})
}

func Test_Relation_Compose(t *testing.T) {
	wh := newTestWarehouse(&fakeConn{})
	other := newTestWarehouse(&fakeConn{})

	a := wh.FromSQL("SELECT 1 AS n")
	b := wh.FromSQL("SELECT 2 AS n")

	t.Run("as renders a parenthesized alias", func(t *testing.T) {
		assert.Equal(t, "(SELECT 1 AS n) AS x", a.As("x"))
	})

	t.Run("union all joins statements", func(t *testing.T) {
		rel, err := UnionAll(a, b)

		require.NoError(t, err)
		assert.Equal(t, "SELECT 1 AS n\nUNION ALL\nSELECT 2 AS n", rel.SQL())
	})

	t.Run("union of one relation is that relation", func(t *testing.T) {
		rel, err := UnionAll(a)

		require.NoError(t, err)
		assert.Equal(t, a.SQL(), rel.SQL())
	})

	t.Run("union across warehouses is rejected", func(t *testing.T) {
		_, err := UnionAll(a, other.FromSQL("SELECT 3 AS n"))

		assert.Error(t, err)
	})

	t.Run("union of nothing is rejected", func(t *testing.T) {
		_, err := UnionAll()

		assert.Error(t, err)
	})
}

func Test_Relation_Count(t *testing.T) {
	conn := &fakeConn{count: 12}
	wh := newTestWarehouse(conn)

	count, err := wh.FromSQL("SELECT * FROM somewhere").Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

func Test_Warehouse_EnsureSchema(t *testing.T) {
	t.Run("creates an absent schema", func(t *testing.T) {
		conn := &fakeConn{exists: []bool{false}}
		wh := newTestWarehouse(conn)

		require.NoError(t, wh.EnsureSchema(context.Background(), "analysis", false))
		require.Len(t, conn.execs, 1)
		assert.Equal(t, `CREATE SCHEMA "analysis"`, conn.execs[0])
	})

	t.Run("existing schema without replace is a no-op", func(t *testing.T) {
		conn := &fakeConn{exists: []bool{true}}
		wh := newTestWarehouse(conn)

		require.NoError(t, wh.EnsureSchema(context.Background(), "analysis", false))
		assert.Empty(t, conn.execs)
	})

	t.Run("replace drops then creates", func(t *testing.T) {
		conn := &fakeConn{}
		wh := newTestWarehouse(conn)

		require.NoError(t, wh.EnsureSchema(context.Background(), "analysis", true))
		require.Len(t, conn.execs, 2)
		assert.Equal(t, `DROP SCHEMA IF EXISTS "analysis" CASCADE`, conn.execs[0])
		assert.Equal(t, `CREATE SCHEMA "analysis"`, conn.execs[1])
	})
}

func Test_Warehouse_Materialize(t *testing.T) {
	definition := "SELECT subject_id FROM cohort"

	t.Run("creates the target from the relation definition", func(t *testing.T) {
		conn := &fakeConn{exists: []bool{false}}
		wh := newTestWarehouse(conn)

		handle, err := wh.Materialize(context.Background(), wh.FromSQL(definition), "first_events", MaterializeOptions{})

		require.NoError(t, err)
		require.Len(t, conn.execs, 1)
		assert.Equal(t, "CREATE TABLE \"analysis\".\"first_events\" AS (\n"+definition+"\n) WITH DATA", conn.execs[0])
		assert.Equal(t, "analysis.first_events", handle.Identifier.String())
		assert.Equal(t, definition, handle.Definition)
		assert.False(t, handle.Temporary)
	})

	t.Run("existing target without overwrite fails before any statement", func(t *testing.T) {
		conn := &fakeConn{exists: []bool{true}}
		wh := newTestWarehouse(conn)

		_, err := wh.Materialize(context.Background(), wh.FromSQL(definition), "first_events", MaterializeOptions{})

		require.Error(t, err)
		assert.True(t, IsTableExists(err))
		assert.Empty(t, conn.execs)
	})

	t.Run("overwrite drops the old table first", func(t *testing.T) {
		conn := &fakeConn{exists: []bool{true}}
		wh := newTestWarehouse(conn)

		_, err := wh.Materialize(context.Background(), wh.FromSQL(definition), "first_events", MaterializeOptions{Overwrite: true})

		require.NoError(t, err)
		require.Len(t, conn.execs, 2)
		assert.Equal(t, `DROP TABLE "analysis"."first_events"`, conn.execs[0])
		assert.True(t, strings.HasPrefix(conn.execs[1], `CREATE TABLE "analysis"."first_events" AS (`))
	})

	t.Run("temporary targets are unqualified", func(t *testing.T) {
		conn := &fakeConn{exists: []bool{false}}
		wh := newTestWarehouse(conn)

		handle, err := wh.Materialize(context.Background(), wh.FromSQL(definition), "scratch", MaterializeOptions{Temporary: true})

		require.NoError(t, err)
		require.Len(t, conn.execs, 1)
		assert.True(t, strings.HasPrefix(conn.execs[0], `CREATE TEMPORARY TABLE "scratch" AS (`))
		assert.Equal(t, "scratch", handle.Identifier.String())
		assert.True(t, handle.Temporary)
	})

	t.Run("schema override", func(t *testing.T) {
		conn := &fakeConn{exists: []bool{false}}
		wh := newTestWarehouse(conn)

		handle, err := wh.Materialize(context.Background(), wh.FromSQL(definition), "first_events", MaterializeOptions{Schema: "Scratch"})

		require.NoError(t, err)
		assert.Equal(t, "scratch.first_events", handle.Identifier.String())
	})

	t.Run("handle reads back as a relation", func(t *testing.T) {
		conn := &fakeConn{exists: []bool{false}}
		wh := newTestWarehouse(conn)

		handle, err := wh.Materialize(context.Background(), wh.FromSQL(definition), "first_events", MaterializeOptions{})

		require.NoError(t, err)
		assert.Equal(t, `SELECT * FROM "analysis"."first_events"`, handle.Relation().SQL())
	})
}
