package codelist

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/warehouse"
)

// codelistFileSchema is the declared layout of every codelist CSV: one
// code → phenotype mapping per row. The coding system comes from the
// file name, not the file body.
var codelistFileSchema = FileSchema{
	{Name: "code", Type: TypeCharacter},
	{Name: "phenotype", Type: TypeCharacter},
}

// insertBatchSize caps values per INSERT when staging entries.
const insertBatchSize = 500

// Loader reads codelist files, validates them against the declared schema
// and stages the normalized entries into the warehouse codelist table.
type Loader struct {
	conn   warehouse.Conn
	wh     *warehouse.Warehouse
	table  string
	logger logging.Logger
}

func NewLoader(conn warehouse.Conn, wh *warehouse.Warehouse, table string, logger logging.Logger) *Loader {
	return &Loader{
		conn:   conn,
		wh:     wh,
		table:  table,
		logger: logger,
	}
}

// LoadFile reads one codelist CSV. Codes are normalized for the given
// coding system; rows with an empty code or phenotype after trimming are
// rejected.
func (l *Loader) LoadFile(path string, system CodingSystem) ([]models.CodelistEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open codelist %s", path)
	}
	defer f.Close()

	return l.parse(f, filepath.Base(path), system)
}

// LoadDir reads every CSV in a directory. Each file's base name must be a
// known coding system, e.g. icd10.csv or read_v2.csv.
func (l *Loader) LoadDir(dir string) ([]models.CodelistEntry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var entries []models.CodelistEntry
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".csv")
		system, ok := ParseCodingSystem(name)
		if !ok {
			return nil, errors.Errorf("codelist file %s does not name a known coding system", path)
		}

		fileEntries, err := l.LoadFile(path, system)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}

	return entries, nil
}

func (l *Loader) parse(r io.Reader, file string, system CodingSystem) ([]models.CodelistEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read header of %s", file)
	}

	if err := l.checkHeader(header, file); err != nil {
		return nil, err
	}

	var entries []models.CodelistEntry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", file)
		}

		row := map[string]any{}
		for i, def := range codelistFileSchema {
			value, err := Convert(record[i], def.Type)
			if err != nil {
				annotate(err, file, def.Name)
				return nil, err
			}
			row[def.Name] = value
		}

		code := system.Normalize(row["code"].(string))
		phenotype := strings.TrimSpace(row["phenotype"].(string))
		if code == "" || phenotype == "" {
			return nil, errors.Errorf("empty code or phenotype in %s", file)
		}

		entries = append(entries, models.CodelistEntry{
			Code:         code,
			Phenotype:    phenotype,
			CodingSystem: string(system),
		})
	}

	l.logger.WithFields(map[string]any{
		"file":          file,
		"coding_system": string(system),
		"entries":       len(entries),
	}).Info("Loaded codelist file")

	return entries, nil
}

// checkHeader compares the file header against the declared schema.
// Column order is not significant for the mismatch report, but the
// declared order is enforced for parsing.
func (l *Loader) checkHeader(header []string, file string) error {
	declared := map[string]bool{}
	for _, def := range codelistFileSchema {
		declared[def.Name] = true
	}

	seen := map[string]bool{}
	var extra []string
	for _, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		seen[name] = true
		if !declared[name] {
			extra = append(extra, name)
		}
	}

	var missing []string
	for _, def := range codelistFileSchema {
		if !seen[def.Name] {
			missing = append(missing, def.Name)
		}
	}

	if len(missing) > 0 || len(extra) > 0 {
		return &SchemaMismatchError{File: file, Missing: missing, Extra: extra}
	}

	for i, def := range codelistFileSchema {
		if strings.ToLower(strings.TrimSpace(header[i])) != def.Name {
			return &SchemaMismatchError{File: file, Missing: []string{def.Name}, Extra: []string{header[i]}}
		}
	}

	return nil
}

func annotate(err error, file, column string) {
	switch e := err.(type) {
	case *TypeConversionError:
		e.File = file
		e.Column = column
	case *UnknownTypeConversionError:
		e.File = file
		e.Column = column
	}
}

// Stage replaces the warehouse codelist table contents with the given
// entries and returns a lazy relation over them. Entries are inserted in
// batches so large codelists do not exceed statement parameter limits.
func (l *Loader) Stage(ctx context.Context, entries []models.CodelistEntry) (warehouse.Relation, error) {
	ctx, span := tracing.StartSpan(ctx, "codelist.Stage")
	defer span.End()

	id, err := l.wh.Resolver().Resolve(l.table, l.wh.Schema())
	if err != nil {
		return warehouse.Relation{}, err
	}

	if _, err := l.conn.ExecContext(ctx, "DELETE FROM "+id.Quoted()); err != nil {
		return warehouse.Relation{}, errors.Wrap(err, "failed to clear codelist table")
	}

	for start := 0; start < len(entries); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(entries) {
			end = len(entries)
		}

		ib := database.NewInsertBuilder().
			InsertInto(id.Quoted()).
			Cols("code", "phenotype", "coding_system")
		for _, entry := range entries[start:end] {
			ib = ib.Values(entry.Code, entry.Phenotype, entry.CodingSystem)
		}

		query, args := ib.Build()
		if _, err := l.conn.ExecContext(ctx, query, args...); err != nil {
			return warehouse.Relation{}, errors.Wrap(err, "failed to stage codelist entries")
		}
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{
		"table":   id.String(),
		"entries": len(entries),
	}).Info("Staged codelist entries")

	return l.wh.TableIn(l.table, l.wh.Schema())
}

// Phenotypes returns the sorted distinct phenotype labels in a codelist.
// The order fixes pivot column order during aggregation.
func Phenotypes(entries []models.CodelistEntry) []string {
	seen := map[string]bool{}
	var names []string
	for _, entry := range entries {
		if !seen[entry.Phenotype] {
			seen[entry.Phenotype] = true
			names = append(names, entry.Phenotype)
		}
	}
	sort.Strings(names)
	return names
}
