package models

// CodelistEntry maps one clinical code (within a coding system) to a
// phenotype label. Entries are immutable within a pipeline run.
type CodelistEntry struct {
	Code         string `db:"code" json:"code"`
	Phenotype    string `db:"phenotype" json:"phenotype"`
	CodingSystem string `db:"coding_system" json:"coding_system"`
}
