// Package warehouse holds fern's lazy relation abstraction and the
// materialization contract against the relational warehouse. Relations are
// composed as SQL definitions and executed only when a result is forced.
package warehouse

import (
	"fmt"
	"strings"
)

// Folding is the case-folding rule applied to unquoted identifiers before
// they are rendered into statements. The resolver's canonical default is
// upper; deployments against engines that lower-fold unquoted identifiers
// (PostgreSQL) configure lower.
type Folding string

const (
	FoldUpper Folding = "upper"
	FoldLower Folding = "lower"
	FoldNone  Folding = "none"
)

// ParseFolding validates a folding rule from configuration.
func ParseFolding(s string) (Folding, error) {
	switch Folding(strings.ToLower(s)) {
	case FoldUpper:
		return FoldUpper, nil
	case FoldLower:
		return FoldLower, nil
	case FoldNone:
		return FoldNone, nil
	}
	return "", fmt.Errorf("unknown identifier folding rule %q", s)
}

// QualifiedIdentifier is a schema-and-table pair already case-folded per
// the warehouse convention. Quoting is applied separately at render time.
type QualifiedIdentifier struct {
	Schema string
	Table  string
}

// String returns the folded, unquoted schema.table form.
func (q QualifiedIdentifier) String() string {
	if q.Schema == "" {
		return q.Table
	}
	return q.Schema + "." + q.Table
}

// Quoted renders the identifier through the warehouse quoting convention.
func (q QualifiedIdentifier) Quoted() string {
	if q.Schema == "" {
		return QuoteIdent(q.Table)
	}
	return QuoteIdent(q.Schema) + "." + QuoteIdent(q.Table)
}

// QuoteIdent double-quotes a single identifier, escaping embedded quotes.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Resolver normalizes (table, schema) pairs into warehouse-qualified,
// case-folded identifiers. Pure; the only failure is an empty table name.
type Resolver struct {
	folding Folding
}

func NewResolver(folding Folding) Resolver {
	if folding == "" {
		folding = FoldUpper
	}
	return Resolver{folding: folding}
}

// Resolve folds both parts of the identifier. Schema may be empty, in
// which case the identifier is unqualified.
func (r Resolver) Resolve(table, schema string) (QualifiedIdentifier, error) {
	if table == "" {
		return QualifiedIdentifier{}, fmt.Errorf("table name is required")
	}
	return QualifiedIdentifier{
		Schema: r.Fold(schema),
		Table:  r.Fold(table),
	}, nil
}

// Fold applies the configured case-folding rule to one identifier part.
func (r Resolver) Fold(s string) string {
	switch r.folding {
	case FoldUpper:
		return strings.ToUpper(s)
	case FoldLower:
		return strings.ToLower(s)
	default:
		return s
	}
}
