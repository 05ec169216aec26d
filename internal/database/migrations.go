package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "dataset snapshot tables",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS imports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    import_id TEXT UNIQUE NOT NULL,
    dataset TEXT NOT NULL,
    sources TEXT NOT NULL DEFAULT '[]',
    row_count INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    imported_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dataset_tables (
    dataset TEXT PRIMARY KEY,
    import_id INTEGER NOT NULL REFERENCES imports(id),
    columns TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dataset_rows (
    dataset TEXT NOT NULL REFERENCES dataset_tables(dataset) ON DELETE CASCADE,
    row_idx INTEGER NOT NULL,
    cells TEXT NOT NULL,
    PRIMARY KEY (dataset, row_idx)
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "index import history by dataset",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_imports_dataset ON imports(dataset, imported_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
