package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pauljones0/offnbuy-bot/internal/processor"
)

const defaultPruneKeep = 50

// Pruner deletes old posts from a channel that supports it.
type Pruner interface {
	Prune(ctx context.Context, keep int) (int, error)
}

// ListingCounter reports how many listings the document store holds.
type ListingCounter interface {
	CountListings(ctx context.Context) (int64, error)
}

type Server struct {
	processor processor.Processor
	pruner    Pruner
	counter   ListingCounter
	metrics   http.Handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/deals/{source}", s.ProcessDealsHandler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /stats", s.StatsHandler)
	mux.HandleFunc("POST /notifications/prune", s.PruneHandler)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// ProcessDealsHandler runs one batch synchronously and reports its summary.
func (s *Server) ProcessDealsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	source := r.PathValue("source")
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	summary, err := s.processor.ProcessBatch(r.Context(), source, page)
	switch {
	case err == nil, errors.Is(err, processor.ErrRunInProgress):
		writeJSON(w, http.StatusOK, summary)
	case errors.Is(err, processor.ErrUnknownSource):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		slog.Error("Error processing deals", "source", source, "page", page, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to process deals"})
	}
}

// PruneHandler deletes page posts beyond the newest ?keep=N.
func (s *Server) PruneHandler(w http.ResponseWriter, r *http.Request) {
	if s.pruner == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no prunable channel configured"})
		return
	}
	keep := defaultPruneKeep
	if v := r.URL.Query().Get("keep"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "keep must be a non-negative integer"})
			return
		}
		keep = n
	}

	deleted, err := s.pruner.Prune(r.Context(), keep)
	if err != nil {
		slog.Error("Error pruning notifications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to prune notifications"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted, "kept": keep})
}

// StatsHandler reports the number of stored listings.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if s.counter == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no listing store configured"})
		return
	}
	n, err := s.counter.CountListings(r.Context())
	if err != nil {
		slog.Error("Error counting listings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count listings"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"listings": n})
}

// serve runs srv on ln until ctx is cancelled, then waits up to grace for
// in-flight requests to finish. It returns only after Shutdown returned.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
