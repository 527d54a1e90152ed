package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/pages", s.HandlePage)
	mux.HandleFunc("GET /api/days", s.HandleDays)
	mux.HandleFunc("GET /api/ops", s.HandleListOperations)
	mux.HandleFunc("POST /api/ops/{name}", s.HandleOperation)
	mux.HandleFunc("GET /api/stats", s.HandleStats)
	mux.HandleFunc("GET /health", s.HandleHealth)

	if s.importer != nil {
		mux.Handle("POST /api/import", s.authMiddleware(http.HandlerFunc(s.HandleImport)))
	}
}
