package database

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
	"github.com/SwapnilGautama/HaloQuality/internal/logger"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func casesTable(rows ...[]string) *dataset.Table {
	return &dataset.Table{
		Name:    dataset.Cases,
		Columns: []string{"Case ID", "Create Date", "Portfolio"},
		Rows:    rows,
	}
}

func TestSaveAndLoadTable(t *testing.T) {
	db := openTestDB(t)
	in := casesTable(
		[]string{"C1", "2025-06-01", "Retail"},
		[]string{"C2", "45823", "Wealth, North"},
		[]string{"C3", "2025-06-03"},
	)
	imp, err := db.SaveTable(in, []string{"cases/2025-06.xlsx"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imp.ID == 0 || imp.ImportID == "" {
		t.Errorf("expected import ids to be set, got %+v", imp)
	}
	if imp.RowCount != 3 {
		t.Errorf("expected 3 rows, got %d", imp.RowCount)
	}

	tables, err := db.LoadTables(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	if !reflect.DeepEqual(tables[0], in) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", tables[0], in)
	}
}

func TestSaveTableReplaces(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.SaveTable(casesTable([]string{"C1", "2025-05-01", "Retail"}, []string{"C2", "2025-05-02", "Retail"}), nil, 0); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := db.SaveTable(casesTable([]string{"C9", "2025-06-01", "Retail"}), nil, 0); err != nil {
		t.Fatalf("second save: %v", err)
	}

	snap, err := db.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	tbl, err := snap.Get(dataset.Cases)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tbl.Len() != 1 || tbl.Cell(0, 0) != "C9" {
		t.Errorf("expected only the second import, got %v", tbl.Rows)
	}

	imports, err := db.GetImports(10)
	if err != nil {
		t.Fatalf("GetImports: %v", err)
	}
	if len(imports) != 2 {
		t.Fatalf("expected 2 imports, got %d", len(imports))
	}
	if imports[0].RowCount != 1 {
		t.Errorf("expected newest import first, got %+v", imports[0])
	}
	if imports[1].Sources == nil {
		t.Error("expected empty, non-nil sources")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	db.SaveTable(casesTable([]string{"C1", "2025-06-01", "Retail"}), nil, 0)
	db.SaveTable(&dataset.Table{
		Name:    dataset.Complaints,
		Columns: []string{"Report Date"},
		Rows:    [][]string{{"2025-06-01"}, {"2025-06-02"}},
	}, nil, 0)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 datasets, got %d", len(stats))
	}
	if stats[0].Dataset != dataset.Cases || stats[0].Rows != 1 || stats[0].Columns != 3 {
		t.Errorf("unexpected cases stats: %+v", stats[0])
	}
	if stats[1].Dataset != dataset.Complaints || stats[1].Rows != 2 {
		t.Errorf("unexpected complaints stats: %+v", stats[1])
	}
	if stats[0].ImportedAt == nil {
		t.Error("expected import timestamp")
	}
}

func TestLoadSnapshotEmpty(t *testing.T) {
	db := openTestDB(t)
	snap, err := db.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Names()) != 0 {
		t.Errorf("expected empty snapshot, got %v", snap.Names())
	}
}

func TestSaveTablesIsAtomic(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.SaveTable(casesTable([]string{"C1", "2025-05-01", "Retail"}), nil, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := db.conn.Exec(`CREATE TRIGGER reject_complaints BEFORE INSERT ON dataset_tables
		WHEN NEW.dataset = 'complaints' BEGIN SELECT RAISE(ABORT, 'rejected'); END`); err != nil {
		t.Fatalf("creating trigger: %v", err)
	}

	_, err := db.SaveTables([]TableImport{
		{Table: casesTable([]string{"C9", "2025-06-01", "Retail"})},
		{Table: &dataset.Table{Name: dataset.Complaints, Columns: []string{"Report Date"}, Rows: [][]string{{"2025-06-02"}}}},
	})
	if err == nil {
		t.Fatal("expected the batch to fail")
	}

	tables, err := db.LoadTables(context.Background())
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}
	if len(tables) != 1 || tables[0].Cell(0, 0) != "C1" {
		t.Errorf("expected the seeded cases only, got %+v", tables)
	}
	imports, err := db.GetImports(10)
	if err != nil {
		t.Fatalf("GetImports: %v", err)
	}
	if len(imports) != 1 {
		t.Errorf("expected the failed batch to record no imports, got %d", len(imports))
	}
}

func TestSaveTablesBatch(t *testing.T) {
	db := openTestDB(t)
	imps, err := db.SaveTables([]TableImport{
		{Table: casesTable([]string{"C1", "2025-06-01", "Retail"}), Sources: []string{"cases.csv"}},
		{Table: &dataset.Table{Name: dataset.Complaints, Columns: []string{"Report Date"}, Rows: [][]string{{"2025-06-02"}}}, Skipped: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(imps) != 2 || imps[0].Dataset != dataset.Cases || imps[1].Skipped != 2 {
		t.Errorf("unexpected imports: %+v", imps)
	}
	if imps[0].ImportID == imps[1].ImportID {
		t.Error("expected one import id per dataset")
	}

	snap, err := db.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got := snap.RowCounts(); got[dataset.Cases] != 1 || got[dataset.Complaints] != 1 {
		t.Errorf("unexpected row counts: %v", got)
	}
}

func TestLoadTablesHonoursContext(t *testing.T) {
	db := openTestDB(t)
	db.SaveTable(casesTable([]string{"C1", "2025-06-01", "Retail"}), nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := db.LoadSnapshot(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
