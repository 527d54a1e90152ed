package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rubiojr/annots/pkg/core"
	"github.com/rubiojr/annots/pkg/importer"
	"github.com/rubiojr/annots/pkg/log"
	"github.com/rubiojr/annots/pkg/search"
	"github.com/rubiojr/annots/pkg/storage"
)

var logger = log.ForService("api")

// StatsProvider reports store statistics for GET /api/stats.
type StatsProvider interface {
	Stats(ctx context.Context) (*storage.Stats, error)
}

type Server struct {
	service  *search.Service
	registry *core.Registry
	stats    StatsProvider
	importer *importer.Importer
	apiKey   string
}

// Option configures a Server.
type Option func(*Server)

// WithStats enables GET /api/stats.
func WithStats(p StatsProvider) Option {
	return func(s *Server) { s.stats = p }
}

// WithImporter enables POST /api/import, authenticated with a bearer
// apiKey. An empty key leaves the endpoint disabled.
func WithImporter(imp *importer.Importer, apiKey string) Option {
	return func(s *Server) {
		if apiKey == "" {
			return
		}
		s.importer = imp
		s.apiKey = apiKey
	}
}

func NewServer(service *search.Service, registry *core.Registry, opts ...Option) *Server {
	s := &Server{
		service:  service,
		registry: registry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API routes wrapped with CORS, gzip compression and
// request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return requestLogger(CorsMiddleware(gzhttp.GzipHandler(mux)))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

// writeQueryError maps query failures to a status: invalid queries are the
// caller's fault, anything else is ours.
func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		s.writeError(w, http.StatusBadRequest, "Invalid query", err.Error())
	case errors.Is(err, core.ErrUnknownOperation):
		s.writeError(w, http.StatusNotFound, "Unknown operation", err.Error())
	case errors.Is(err, context.Canceled):
		logger.Debugf("%s %s canceled", r.Method, r.URL.Path)
	default:
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		s.writeError(w, http.StatusInternalServerError, "Query failed", err.Error())
	}
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeError(w, http.StatusUnauthorized, "missing_auth", "Authorization header required")
			return
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.writeError(w, http.StatusUnauthorized, "invalid_auth", "Authorization header must be 'Bearer <token>'")
			return
		}

		if parts[1] != s.apiKey {
			s.writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid API token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debugf("%s %s %d %s", r.Method, r.URL.RequestURI(), rec.status, time.Since(start).Round(time.Microsecond))
	})
}
