package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
	"github.com/SwapnilGautama/HaloQuality/internal/logger"
)

// SaveTable replaces the stored snapshot of t.Name with t and records the
// import.
func (db *DB) SaveTable(t *dataset.Table, sources []string, skipped int) (*Import, error) {
	imps, err := db.SaveTables([]TableImport{{Table: t, Sources: sources, Skipped: skipped}})
	if err != nil {
		return nil, err
	}
	return imps[0], nil
}

// SaveTables replaces every given dataset and records one import each.
// Readers see either all of the new tables or none of them: the whole batch
// is one transaction.
func (db *DB) SaveTables(batch []TableImport) ([]*Import, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	imps := make([]*Import, 0, len(batch))
	for _, ti := range batch {
		imp, err := saveTable(tx, ti)
		if err != nil {
			return nil, fmt.Errorf("saving %s: %w", ti.Table.Name, err)
		}
		imps = append(imps, imp)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save: %w", err)
	}
	for _, imp := range imps {
		db.log.Info("Stored dataset",
			logger.String("dataset", imp.Dataset),
			logger.Int("rows", imp.RowCount),
			logger.String("import_id", imp.ImportID),
		)
	}
	return imps, nil
}

func saveTable(tx *sql.Tx, ti TableImport) (*Import, error) {
	t := ti.Table
	cols, err := json.Marshal(t.Columns)
	if err != nil {
		return nil, fmt.Errorf("encoding columns: %w", err)
	}
	sources := ti.Sources
	if sources == nil {
		sources = []string{}
	}
	srcJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("encoding sources: %w", err)
	}

	imp := &Import{ImportID: uuid.NewString(), Dataset: t.Name, Sources: sources, RowCount: t.Len(), Skipped: ti.Skipped}
	res, err := tx.Exec(
		`INSERT INTO imports (import_id, dataset, sources, row_count, skipped) VALUES (?, ?, ?, ?, ?)`,
		imp.ImportID, imp.Dataset, string(srcJSON), imp.RowCount, imp.Skipped,
	)
	if err != nil {
		return nil, fmt.Errorf("recording import: %w", err)
	}
	if imp.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec("DELETE FROM dataset_rows WHERE dataset = ?", t.Name); err != nil {
		return nil, fmt.Errorf("clearing rows: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO dataset_tables (dataset, import_id, columns) VALUES (?, ?, ?)`,
		t.Name, imp.ID, string(cols),
	); err != nil {
		return nil, fmt.Errorf("storing table: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO dataset_rows (dataset, row_idx, cells) VALUES (?, ?, ?)")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	for i, row := range t.Rows {
		cells, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encoding row %d: %w", i, err)
		}
		if _, err := stmt.Exec(t.Name, i, string(cells)); err != nil {
			return nil, fmt.Errorf("storing row %d: %w", i, err)
		}
	}
	return imp, nil
}

// LoadTables reads every stored dataset, rows in import order. All tables
// come from one read transaction, so a concurrent import is seen whole or
// not at all.
func (db *DB) LoadTables(ctx context.Context) ([]*dataset.Table, error) {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT dataset, columns FROM dataset_tables ORDER BY dataset")
	if err != nil {
		return nil, err
	}
	var tables []*dataset.Table
	for rows.Next() {
		var name, cols string
		if err := rows.Scan(&name, &cols); err != nil {
			rows.Close()
			return nil, err
		}
		t := &dataset.Table{Name: name}
		if err := json.Unmarshal([]byte(cols), &t.Columns); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decoding columns of %s: %w", name, err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, t := range tables {
		if t.Rows, err = loadRows(ctx, tx, t.Name); err != nil {
			return nil, err
		}
	}
	return tables, tx.Commit()
}

func loadRows(ctx context.Context, tx *sql.Tx, name string) ([][]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT cells FROM dataset_rows WHERE dataset = ? ORDER BY row_idx", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, err
		}
		var row []string
		if err := json.Unmarshal([]byte(cells), &row); err != nil {
			return nil, fmt.Errorf("decoding row of %s: %w", name, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LoadSnapshot reads every stored dataset into a fresh immutable snapshot.
func (db *DB) LoadSnapshot(ctx context.Context) (*dataset.Snapshot, error) {
	tables, err := db.LoadTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return dataset.NewSnapshot(tables...), nil
}

// GetImports returns the most recent imports, newest first.
func (db *DB) GetImports(limit int) ([]Import, error) {
	rows, err := db.conn.Query(
		`SELECT id, import_id, dataset, sources, row_count, skipped, imported_at
		FROM imports ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		var imp Import
		var sources string
		if err := rows.Scan(&imp.ID, &imp.ImportID, &imp.Dataset, &sources,
			&imp.RowCount, &imp.Skipped, &imp.ImportedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sources), &imp.Sources); err != nil {
			return nil, fmt.Errorf("decoding sources of import %s: %w", imp.ImportID, err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// GetStats summarizes each stored dataset.
func (db *DB) GetStats() ([]DatasetStat, error) {
	rows, err := db.conn.Query(
		`SELECT t.dataset, t.columns, i.imported_at,
			(SELECT COUNT(*) FROM dataset_rows r WHERE r.dataset = t.dataset)
		FROM dataset_tables t JOIN imports i ON i.id = t.import_id
		ORDER BY t.dataset`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []DatasetStat
	for rows.Next() {
		var s DatasetStat
		var cols string
		var importedAt sql.NullString
		if err := rows.Scan(&s.Dataset, &cols, &importedAt, &s.Rows); err != nil {
			return nil, err
		}
		var names []string
		if err := json.Unmarshal([]byte(cols), &names); err != nil {
			return nil, fmt.Errorf("decoding columns of %s: %w", s.Dataset, err)
		}
		s.Columns = len(names)
		if importedAt.Valid {
			s.ImportedAt = &importedAt.String
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
