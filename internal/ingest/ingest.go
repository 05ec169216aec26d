// Package ingest reads source spreadsheets (.xlsx, .csv) into dataset tables.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
)

// ErrNoFiles is returned when none of the configured paths yield a readable file.
var ErrNoFiles = errors.New("no source files found")

var supported = map[string]bool{".xlsx": true, ".xlsm": true, ".csv": true}

// ReadDataset reads every file named by paths (directories are expanded to
// their spreadsheet files, sorted) and merges them into one table.
func ReadDataset(name string, paths []string) (*dataset.Table, []string, error) {
	files, err := expand(paths)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w for %s in %s", ErrNoFiles, name, strings.Join(paths, ", "))
	}

	parts := make([]*dataset.Table, 0, len(files))
	for _, f := range files {
		t, err := ReadFile(name, f)
		if err != nil {
			return nil, nil, err
		}
		parts = append(parts, t)
	}
	return Merge(name, parts...), files, nil
}

// ReadFile reads a single .xlsx or .csv file.
func ReadFile(name, path string) (*dataset.Table, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer fh.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		t, err := ReadCSV(name, fh)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
		}
		return t, nil
	case ".xlsx", ".xlsm":
		t, err := ReadXLSX(name, fh)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

// ReadXLSX reads the first sheet of a workbook. Cell values are taken raw so
// date cells arrive as Excel serial numbers rather than locale-formatted text.
func ReadXLSX(name string, r io.Reader) (*dataset.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	return fromRows(name, rows)
}

// ReadCSV reads a comma-separated file with a header row.
func ReadCSV(name string, r io.Reader) (*dataset.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	return fromRows(name, rows)
}

func fromRows(name string, rows [][]string) (*dataset.Table, error) {
	if len(rows) == 0 {
		return nil, errors.New("file has no header row")
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	t := &dataset.Table{Name: name, Columns: header}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Merge concatenates tables, aligning rows on the union of their columns.
// Column order follows first appearance.
func Merge(name string, parts ...*dataset.Table) *dataset.Table {
	out := &dataset.Table{Name: name}
	pos := make(map[string]int)
	for _, p := range parts {
		for _, c := range p.Columns {
			if _, ok := pos[c]; !ok {
				pos[c] = len(out.Columns)
				out.Columns = append(out.Columns, c)
			}
		}
	}
	for _, p := range parts {
		for _, row := range p.Rows {
			aligned := make([]string, len(out.Columns))
			for i, c := range p.Columns {
				if i < len(row) {
					aligned[pos[c]] = row[i]
				}
			}
			out.Rows = append(out.Rows, aligned)
		}
	}
	return out
}

func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("checking %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			// Skip Excel lock files such as "~$cases.xlsx".
			if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
				continue
			}
			if supported[strings.ToLower(filepath.Ext(e.Name()))] {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
