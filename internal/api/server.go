// Package api serves the analysis corpus, the aggregates and the run history
// as a read-only JSON feed for the dashboard.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pbaille/reportcard/internal/corpus"
	"github.com/pbaille/reportcard/internal/domain"
	"github.com/pbaille/reportcard/internal/knowledge"
	"github.com/pbaille/reportcard/internal/logger"
	"github.com/pbaille/reportcard/internal/store"
)

// Corpus is the read side of the corpus store.
type Corpus interface {
	Dates() ([]string, error)
	Get(date string) (*domain.DailyAnalysis, error)
	LoadAggregate(name string, v any) error
}

// RunLister lists recorded runs.
type RunLister interface {
	ListRuns(limit int) ([]domain.RunReport, error)
	GetRun(idPrefix string) (*domain.RunReport, error)
}

// Knowledge exposes the learned mappings.
type Knowledge interface {
	Stats() knowledge.Stats
	ActivityEntries() []knowledge.Entry
	TrainingEntries() []knowledge.Entry
}

// Server handles HTTP requests for the dashboard feed
type Server struct {
	corpus Corpus
	runs   RunLister
	kb     Knowledge
	addr   string
	log    logger.Logger
}

// New creates a new API server. runs and kb may be nil; their routes then
// answer 404.
func New(c Corpus, runs RunLister, kb Knowledge, addr string, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{corpus: c, runs: runs, kb: kb, addr: addr, log: log}
}

// Handler returns the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Daily analyses
	mux.HandleFunc("GET /analyses", s.listAnalyses)
	mux.HandleFunc("GET /analyses/{date}", s.getAnalysis)

	// Aggregates
	mux.HandleFunc("GET /aggregates/{name}", s.getAggregate)

	// Run history
	mux.HandleFunc("GET /runs", s.listRuns)
	mux.HandleFunc("GET /runs/{id}", s.getRun)

	// Knowledge base
	mux.HandleFunc("GET /knowledge", s.getKnowledge)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", logger.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

// withCORS adds CORS headers for the dashboard
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	dates, err := s.corpus.Dates()
	if err != nil {
		s.internalError(w, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dates": dates,
		"count": len(dates),
	})
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !domain.ValidDate(date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	a, err := s.corpus.Get(date)
	if errors.Is(err, corpus.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (s *Server) getAggregate(w http.ResponseWriter, r *http.Request) {
	var doc json.RawMessage
	err := s.corpus.LoadAggregate(r.PathValue("name"), &doc)
	if errors.Is(err, corpus.ErrNotFound) {
		writeError(w, http.StatusNotFound, "aggregate not found")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if runs == nil {
		runs = []domain.RunReport{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"limit": limit,
	})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return
	}

	// Support prefix matching
	run, err := s.runs.GetRun(r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case errors.Is(err, store.ErrAmbiguousRun):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (s *Server) getKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.kb == nil {
		writeError(w, http.StatusNotFound, "knowledge base is not loaded")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":      s.kb.Stats(),
		"activities": s.kb.ActivityEntries(),
		"training":   s.kb.TrainingEntries(),
	})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("request failed", logger.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
