// Package extract composes the per-source event extraction query: source
// rows joined to a staged codelist, projected onto the shared clinical
// event shape.
package extract

import (
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/codelist"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/warehouse"
)

// ColumnMapping names the source table columns carrying the subject
// identifier, clinical code and event date.
type ColumnMapping struct {
	SubjectID string
	Code      string
	EventDate string
}

func (m ColumnMapping) validate() error {
	if m.SubjectID == "" || m.Code == "" || m.EventDate == "" {
		return errors.New("column mapping must name subject_id, code and event_date columns")
	}
	return nil
}

// Extractor builds lazy extraction relations against one warehouse.
type Extractor struct {
	wh     *warehouse.Warehouse
	logger logging.Logger
}

func New(wh *warehouse.Warehouse, logger logging.Logger) *Extractor {
	return &Extractor{
		wh:     wh,
		logger: logger,
	}
}

// Events joins a source relation to a staged codelist relation and
// projects the matches onto the shared event shape: subject_id, code,
// phenotype, event_date, source_name, source_priority. The raw code
// column is normalized in SQL per the coding system, so matching is exact
// equality against the normalized staged codes. No I/O runs; the result
// is a lazy relation.
//
// A code mapped to several phenotypes produces one event row per
// phenotype, so every phenotype sees the event independently.
func (e *Extractor) Events(source, codes warehouse.Relation, mapping ColumnMapping, system codelist.CodingSystem, name string, priority int) (warehouse.Relation, error) {
	if err := mapping.validate(); err != nil {
		return warehouse.Relation{}, err
	}
	if source.IsZero() || codes.IsZero() {
		return warehouse.Relation{}, errors.New("source and codelist relations must be bound")
	}

	fold := e.wh.Resolver().Fold
	codeExpr := system.NormalizeSQL("src." + warehouse.QuoteIdent(fold(mapping.Code)))

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"src."+warehouse.QuoteIdent(fold(mapping.SubjectID))+" AS subject_id",
		codeExpr+" AS code",
		"cl.phenotype AS phenotype",
		"src."+warehouse.QuoteIdent(fold(mapping.EventDate))+" AS event_date",
		sb.As(sb.Var(name), "source_name"),
		sb.As(sb.Var(priority), "source_priority"),
	)
	sb.From(source.As("src"))
	sb.JoinWithOption(
		sqlbuilder.InnerJoin,
		codes.As("cl"),
		codeExpr+" = cl.code",
	)
	sb.Where(sb.Equal("cl.coding_system", string(system)))

	rel, err := e.wh.FromSelect(sb)
	if err != nil {
		return warehouse.Relation{}, errors.Wrapf(err, "failed to build extraction for source %s", name)
	}

	e.logger.WithFields(map[string]any{
		"source":        name,
		"coding_system": system,
		"priority":      priority,
	}).Debug("Composed extraction relation")

	return rel, nil
}
