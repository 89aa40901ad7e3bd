// Package server exposes the query router over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/workaholic-kv/workaholic/internal/plugins"
	"github.com/workaholic-kv/workaholic/internal/query"
)

const (
	imageCacheControl = "public, max-age=31536000"
	shutdownTimeout   = 10 * time.Second
)

// Server serves queries, negotiated images and metrics.
type Server struct {
	router   *query.Router
	gatherer prometheus.Gatherer
	log      zerolog.Logger
	addr     string
}

// New creates a Server listening on addr.
func New(router *query.Router, gatherer prometheus.Gatherer, log zerolog.Logger, addr string) *Server {
	return &Server{router: router, gatherer: gatherer, log: log, addr: addr}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /query/{namespace}", s.handleQuery)
	mux.HandleFunc("GET /query/{namespace}/{key...}", s.handleQuery)
	mux.HandleFunc("GET /images/{key...}", s.handleImage)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return s.withLogging(mux)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	namespace := r.PathValue("namespace")
	if namespace == plugins.NamespaceImages {
		s.handleImage(w, r)
		return
	}

	result, err := s.router.Query(r.Context(), namespace, r.PathValue("key"), query.Options{Accept: r.Header.Get("Accept")})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	result, err := s.router.Query(r.Context(), plugins.NamespaceImages, r.PathValue("key"), query.Options{Accept: r.Header.Get("Accept")})
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	image, ok := result.(*plugins.Image)
	if !ok || image == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	defer image.Body.Close()

	header := w.Header()
	header.Set("Vary", "Accept")
	header.Set("Cache-Control", imageCacheControl)
	if image.ETag != "" {
		etag := `"` + image.ETag + `"`
		header.Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	header.Set("Content-Type", image.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, image.Body); err != nil {
		s.log.Warn().Str("key", image.Key).Err(err).Msg("Image response interrupted")
	}
}

func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrUnknownNamespace) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Error().Err(err).Msg("Query failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(started)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
