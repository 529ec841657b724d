// Package aggregate resolves each subject's earliest qualifying event per
// phenotype and pivots the results into one wide covariate row per subject.
package aggregate

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/warehouse"
)

// Aggregator composes the first-event resolution and pivot query against
// one warehouse. Composition performs no I/O.
type Aggregator struct {
	wh     *warehouse.Warehouse
	logger logging.Logger
}

func New(wh *warehouse.Warehouse, logger logging.Logger) *Aggregator {
	return &Aggregator{
		wh:     wh,
		logger: logger,
	}
}

// Covariates builds the full resolution pipeline over an extracted event
// relation and a subject relation:
//
//  1. events are restricted to each subject's observation window,
//     date_of_birth <= event_date <= study_start_date, both inclusive
//  2. events are ranked per (subject, phenotype) by event date, then
//     source priority, then code, then source name, so ties resolve
//     deterministically regardless of storage order
//  3. rank-one events pivot into flag/date/code/source columns, one
//     column group per phenotype in sorted order
//
// Every subject appears in the output exactly once; subjects with no
// qualifying events carry NULLs in all four columns of every phenotype,
// never a missing row.
//
// Phenotype labels must yield distinct column stems; labels that collapse
// to the same stem are rejected before any SQL is composed.
func (a *Aggregator) Covariates(events, subjects warehouse.Relation, phenotypes []string) (warehouse.Relation, error) {
	if events.IsZero() || subjects.IsZero() {
		return warehouse.Relation{}, errors.New("event and subject relations must be bound")
	}
	if len(phenotypes) == 0 {
		return warehouse.Relation{}, errors.New("at least one phenotype is required")
	}

	sorted := make([]string, len(phenotypes))
	copy(sorted, phenotypes)
	sort.Strings(sorted)

	stems := make(map[string]string, len(sorted))
	for _, phenotype := range sorted {
		stem := a.columnStem(phenotype)
		if stem == "" {
			return warehouse.Relation{}, errors.Errorf("phenotype %q yields an empty column name", phenotype)
		}
		if prev, ok := stems[stem]; ok {
			return warehouse.Relation{}, errors.Errorf("phenotypes %q and %q collapse to the same column name %q", prev, phenotype, stem)
		}
		stems[stem] = phenotype
	}

	var b strings.Builder
	b.WriteString("WITH source_events AS (\n")
	b.WriteString(events.SQL())
	b.WriteString("\n), windowed_events AS (\n")
	b.WriteString("SELECT ev.*\n")
	b.WriteString("FROM source_events AS ev\n")
	b.WriteString("INNER JOIN " + subjects.As("coh") + " ON ev.subject_id = coh.subject_id\n")
	b.WriteString("WHERE ev.event_date >= coh.date_of_birth\n")
	b.WriteString("AND ev.event_date <= coh.study_start_date\n")
	b.WriteString("), ranked_events AS (\n")
	b.WriteString("SELECT *, ROW_NUMBER() OVER (\n")
	b.WriteString("PARTITION BY subject_id, phenotype\n")
	b.WriteString("ORDER BY event_date ASC, source_priority ASC, code ASC, source_name ASC\n")
	b.WriteString(") AS event_rank\n")
	b.WriteString("FROM windowed_events\n")
	b.WriteString("), first_events AS (\n")
	b.WriteString("SELECT * FROM ranked_events WHERE event_rank = 1\n")
	b.WriteString(")\n")
	b.WriteString("SELECT coh.subject_id")

	for _, phenotype := range sorted {
		condition := "fe.phenotype = " + quoteLiteral(phenotype)
		columns := models.PhenotypeColumns(a.columnStem(phenotype))

		b.WriteString(",\nMAX(CASE WHEN " + condition + " THEN 1 END) AS " + warehouse.QuoteIdent(columns[0]))
		b.WriteString(",\nMAX(CASE WHEN " + condition + " THEN fe.event_date END) AS " + warehouse.QuoteIdent(columns[1]))
		b.WriteString(",\nMAX(CASE WHEN " + condition + " THEN fe.code END) AS " + warehouse.QuoteIdent(columns[2]))
		b.WriteString(",\nMAX(CASE WHEN " + condition + " THEN fe.source_name END) AS " + warehouse.QuoteIdent(columns[3]))
	}

	b.WriteString("\nFROM " + subjects.As("coh") + "\n")
	b.WriteString("LEFT JOIN first_events AS fe ON fe.subject_id = coh.subject_id\n")
	b.WriteString("GROUP BY coh.subject_id\n")
	b.WriteString("ORDER BY coh.subject_id")

	a.logger.WithField("phenotypes", len(sorted)).Debug("Composed covariate relation")

	return a.wh.FromSQL(b.String()), nil
}

// columnStem turns a phenotype label into a safe column name stem: folded
// per the warehouse convention with non-alphanumeric runs collapsed to
// underscores.
func (a *Aggregator) columnStem(phenotype string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range phenotype {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return a.wh.Resolver().Fold(strings.Trim(b.String(), "_"))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
