package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SwapnilGautama/HaloQuality/internal/database"
	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
	"github.com/SwapnilGautama/HaloQuality/internal/logger"
	"github.com/SwapnilGautama/HaloQuality/internal/metrics"
	"github.com/SwapnilGautama/HaloQuality/internal/question"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func casesTable(counts map[string]int) *dataset.Table {
	t := &dataset.Table{Name: dataset.Cases, Columns: []string{"Case ID", "Create Date", "Portfolio"}}
	for m, n := range counts {
		for i := 0; i < n; i++ {
			t.Rows = append(t.Rows, []string{fmt.Sprintf("%s-%d", m, i), m + "-10", "retail"})
		}
	}
	return t
}

func complaintsTable(counts map[string]int) *dataset.Table {
	t := &dataset.Table{Name: dataset.Complaints, Columns: []string{"Report Date", "Portfolio", "RCA1"}}
	for m, n := range counts {
		for i := 0; i < n; i++ {
			t.Rows = append(t.Rows, []string{m + "-15", "retail", "Delay"})
		}
	}
	return t
}

func scenarioSnapshot() *dataset.Snapshot {
	return dataset.NewSnapshot(
		casesTable(map[string]int{"2025-04": 10, "2025-05": 12, "2025-06": 9}),
		complaintsTable(map[string]int{"2025-05": 3, "2025-06": 6, "2025-07": 2}),
	)
}

func newTestServer(t *testing.T, snap *dataset.Snapshot, db *database.DB) *Server {
	t.Helper()
	m := metrics.New()
	engine := question.NewEngine(question.Default(), question.WithObserver(m))
	srv, err := New(engine, dataset.NewStore(snap), db, m, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestQuestionList(t *testing.T) {
	srv := newTestServer(t, scenarioSnapshot(), nil)
	rec := get(t, srv, "/question/list")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	want := []string{"complaints_per_1000", "unique_cases_mom", "complaint_volume", "complaint_analysis", "reason_mix", "top_contributors", "watchlist"}
	if strings.Join(body.Questions, ",") != strings.Join(want, ",") {
		t.Errorf("questions = %v, want %v", body.Questions, want)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestQuestionPayload(t *testing.T) {
	srv := newTestServer(t, scenarioSnapshot(), nil)
	rec := get(t, srv, "/question/complaints_per_1000?group_by=")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var p question.Payload
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if p.ID != "complaints_per_1000" || p.Version != question.Version {
		t.Errorf("unexpected id/version: %s %s", p.ID, p.Version)
	}
	rates, ok := p.Table("rates")
	if !ok {
		t.Fatal("expected rates table")
	}
	if len(rates.Data.Rows) != 2 {
		t.Fatalf("expected 2 joined months, got %d", len(rates.Data.Rows))
	}
	if got := rates.Data.Rows[1]["complaints_per_1000"]; got != 666.67 {
		t.Errorf("2025-06 rate = %v, want 666.67", got)
	}
}

func TestQuestionErrors(t *testing.T) {
	srv := newTestServer(t, scenarioSnapshot(), nil)

	tests := []struct {
		path string
		code int
	}{
		{"/question/nope", http.StatusNotFound},
		{"/question/complaints_per_1000?month=June", http.StatusBadRequest},
		{"/question/complaints_per_1000?last_n=0", http.StatusBadRequest},
		{"/question/complaints_per_1000?start=2025-06", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := get(t, srv, tt.path)
		if rec.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"error"`) {
			t.Errorf("%s: expected error body, got %s", tt.path, rec.Body.String())
		}
	}

	// A failed lookup leaves the list untouched.
	if rec := get(t, srv, "/question/list"); !strings.Contains(rec.Body.String(), "reason_mix") {
		t.Error("list changed after unknown question")
	}

	rec := get(t, srv, "/metrics")
	if !strings.Contains(rec.Body.String(), `haloqa_question_runs_total{outcome="unknown",question="unknown"} 1`) {
		t.Errorf("expected unknown run in metrics, got:\n%s", rec.Body.String())
	}
}

func TestQuestionSchemaError(t *testing.T) {
	bad := &dataset.Table{Name: dataset.Cases, Columns: []string{"Identifier"}, Rows: [][]string{{"x"}}}
	srv := newTestServer(t, dataset.NewSnapshot(bad), nil)
	rec := get(t, srv, "/question/unique_cases_mom")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestSchemaErrorLoggedOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	log, err := logger.New(logger.Config{Level: "error", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}
	bad := &dataset.Table{Name: dataset.Cases, Columns: []string{"Identifier"}, Rows: [][]string{{"x"}}}
	engine := question.NewEngine(question.Default(), question.WithLogger(log))
	srv, err := New(engine, dataset.NewStore(dataset.NewSnapshot(bad)), nil, nil, log)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	req := httptest.NewRequest("GET", "/question/unique_cases_mom", nil)
	req.Header.Set("X-Request-ID", "req-42")
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)
	log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one error line, got %d:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], "Upstream data drift") || !strings.Contains(lines[0], `"request_id":"req-42"`) {
		t.Errorf("expected request-scoped drift log, got %s", lines[0])
	}
}

func TestQuestionNoData(t *testing.T) {
	snap := dataset.NewSnapshot(
		casesTable(map[string]int{"2025-01": 4}),
		complaintsTable(map[string]int{"2025-03": 1}),
	)
	srv := newTestServer(t, snap, nil)
	rec := get(t, srv, "/question/complaints_per_1000")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var nd question.NoData
	if err := json.Unmarshal(rec.Body.Bytes(), &nd); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !nd.NoData || nd.Message == "" {
		t.Errorf("expected noData with message, got %+v", nd)
	}

	rec = get(t, srv, "/view/complaints_per_1000")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No overlap") {
		t.Error("expected empty state in view")
	}
}

func TestIndexRoute(t *testing.T) {
	srv := newTestServer(t, scenarioSnapshot(), nil)
	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Complaints per 1,000 cases", "/view/reason_mix", "cases</strong>: 31 rows"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in index", want)
		}
	}

	if rec := get(t, srv, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown page, got %d", rec.Code)
	}
}

func TestViewRoute(t *testing.T) {
	srv := newTestServer(t, scenarioSnapshot(), nil)
	rec := get(t, srv, "/view/complaints_per_1000?group_by=")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<strong>Jun 2025</strong>") {
		t.Error("expected insights rendered as markdown")
	}
	if !strings.Contains(body, "666.67") {
		t.Error("expected rate in view")
	}
	if !strings.Contains(body, "/view/complaints_per_1000/table/rates.csv?group_by=") {
		t.Error("expected CSV link carrying the query")
	}

	if rec := get(t, srv, "/view/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestViewHeatmap(t *testing.T) {
	srv := newTestServer(t, scenarioSnapshot(), nil)
	rec := get(t, srv, "/view/reason_mix?group_by=")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `class="data heatmap"`) {
		t.Error("expected heatmap matrix")
	}
}

func TestTableCSV(t *testing.T) {
	srv := newTestServer(t, scenarioSnapshot(), nil)
	rec := get(t, srv, "/view/complaints_per_1000/table/rates.csv?group_by=")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", lines)
	}
	if !strings.HasPrefix(lines[1], `"2025-05"`) {
		t.Errorf("expected JSON-encoded month cell, got %q", lines[1])
	}

	if rec := get(t, srv, "/view/complaints_per_1000/table/nope.csv"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown table, got %d", rec.Code)
	}
	if rec := get(t, srv, "/view/complaints_per_1000/table/rates"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without .csv, got %d", rec.Code)
	}
}

func TestReload(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, nil, db)

	if rec := get(t, srv, "/question/unique_cases_mom"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"noData":true`) {
		t.Fatalf("expected noData before import, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := db.SaveTable(casesTable(map[string]int{"2025-05": 2}), []string{"cases.csv"}, 0); err != nil {
		t.Fatalf("saving table: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/reload", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = get(t, srv, "/health")
	if !strings.Contains(rec.Body.String(), `"cases":2`) {
		t.Errorf("expected reloaded counts in health, got %s", rec.Body.String())
	}
	if rec := get(t, srv, "/question/unique_cases_mom"); strings.Contains(rec.Body.String(), `"noData":true`) {
		t.Errorf("expected payload after reload, got %s", rec.Body.String())
	}
}

func TestReloadWithoutDB(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/reload", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
