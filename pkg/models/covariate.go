package models

import "fmt"

// CovariateRow is one wide per-subject row from a materialized covariate
// table. Column names depend on the loaded phenotypes, so the row is a
// generic map keyed by column name.
type CovariateRow map[string]any

// PhenotypeColumns lists the four column names generated for a phenotype.
func PhenotypeColumns(phenotype string) []string {
	return []string{
		fmt.Sprintf("%s_flag", phenotype),
		fmt.Sprintf("%s_date", phenotype),
		fmt.Sprintf("%s_code", phenotype),
		fmt.Sprintf("%s_source", phenotype),
	}
}
