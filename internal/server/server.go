// Package server exposes questions over HTTP: a JSON API, a small HTML
// dashboard that renders any payload generically, and operational endpoints.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/yuin/goldmark"

	"github.com/SwapnilGautama/HaloQuality/internal/database"
	"github.com/SwapnilGautama/HaloQuality/internal/dataset"
	"github.com/SwapnilGautama/HaloQuality/internal/logger"
	"github.com/SwapnilGautama/HaloQuality/internal/metrics"
	"github.com/SwapnilGautama/HaloQuality/internal/question"
	"github.com/SwapnilGautama/HaloQuality/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for questions.
type Server struct {
	engine  *question.Engine
	store   *dataset.Store
	db      *database.DB
	metrics *metrics.Metrics
	log     logger.Logger
	pages   map[string]*template.Template
	mux     *http.ServeMux
}

// New creates a new Server. db and m may be nil: reload then answers 503
// and /metrics is not mounted.
func New(engine *question.Engine, store *dataset.Store, db *database.DB, m *metrics.Metrics, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NewNop()
	}
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so {{define "content"}} does not collide.
	pageNames := []string{"index.html", "view.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		engine:  engine,
		store:   store,
		db:      db,
		metrics: m,
		log:     log,
		pages:   pages,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.requestID(s.mux)
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// JSON API
	s.mux.HandleFunc("GET /question/list", s.handleList)
	s.mux.HandleFunc("GET /question/{id}", s.handleQuestion)
	s.mux.HandleFunc("POST /reload", s.handleReload)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// HTML
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /view/{id}", s.handleView)
	s.mux.HandleFunc("GET /view/{id}/table/{file}", s.handleTableCSV)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"questions": s.engine.Registry().List()})
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	res, err := s.run(r)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res.Value())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no snapshot database configured"})
		return
	}
	snap, err := s.db.LoadSnapshot(r.Context())
	if s.metrics != nil {
		s.metrics.ObserveReload(err)
	}
	if err != nil {
		logFor(r, s.log).Error("Snapshot reload failed", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reload failed"})
		return
	}
	s.store.Swap(snap)
	counts := snap.RowCounts()
	if s.metrics != nil {
		s.metrics.SetDatasetRows(counts)
	}
	logFor(r, s.log).Info("Snapshot reloaded", logger.Any("datasets", counts))
	writeJSON(w, http.StatusOK, map[string]any{
		"datasets":  counts,
		"loaded_at": snap.LoadedAt().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"datasets":  snap.RowCounts(),
		"loaded_at": snap.LoadedAt().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	s.render(w, r, "index.html", map[string]any{
		"Questions": s.engine.Registry().Describe(),
		"Datasets":  snap.RowCounts(),
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	res, err := s.run(r)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	q, _ := s.engine.Registry().Get(r.PathValue("id"))
	s.render(w, r, "view.html", buildView(q.Title(), template.URL(r.URL.RawQuery), question.RawFromQuery(r.URL.Query()), res))
}

func (s *Server) handleTableCSV(w http.ResponseWriter, r *http.Request) {
	name, ok := trimCSV(r.PathValue("file"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	res, err := s.run(r)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if res.Empty() {
		http.Error(w, res.NoData.Message, http.StatusNotFound)
		return
	}
	tbl, ok := res.Payload.Table(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	if err := render.WriteCSV(&buf, tbl); err != nil {
		logFor(r, s.log).Error("Encoding CSV", logger.String("table", name), logger.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Payload.ID+"_"+name+".csv"))
	w.Write(buf.Bytes())
}

// run executes the question named in the path against the current snapshot.
func (s *Server) run(r *http.Request) (*question.Result, error) {
	id := r.PathValue("id")
	res, err := s.engine.Run(r.Context(), s.store.Snapshot(), id, question.RawFromQuery(r.URL.Query()))
	if errors.Is(err, question.ErrSchema) {
		logFor(r, s.log).Error("Upstream data drift", logger.String("question", id), logger.Error(err))
	}
	return res, err
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, question.ErrUnknownQuestion):
		return http.StatusNotFound
	case errors.Is(err, question.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		logFor(r, s.log).Error("Template not found", logger.String("template", name))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		logFor(r, s.log).Error("Rendering template", logger.String("template", name), logger.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server listening", logger.String("addr", "http://"+addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}
