package database

import "github.com/SwapnilGautama/HaloQuality/internal/dataset"

// TableImport is one dataset to store, with the files it was read from and
// the number of rows dropped while reading them.
type TableImport struct {
	Table   *dataset.Table
	Sources []string
	Skipped int
}

// Import is one recorded dataset import.
type Import struct {
	ID         int64
	ImportID   string
	Dataset    string
	Sources    []string
	RowCount   int
	Skipped    int
	ImportedAt *string
}

// DatasetStat summarizes the stored snapshot of one dataset.
type DatasetStat struct {
	Dataset    string
	Columns    int
	Rows       int
	ImportedAt *string
}
