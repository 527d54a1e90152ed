package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rubiojr/annots/pkg/importer"
	"github.com/rubiojr/annots/pkg/search"
	"github.com/rubiojr/annots/pkg/version"
)

// maxImportSize bounds the body of POST /api/import.
const maxImportSize = 64 << 20

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	params, err := search.ParseSearchParams(r.URL.Query(), s.service.Location())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		return
	}

	pages, err := s.service.SearchAnnots(r.Context(), params)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, SearchResponse{
		Terms:      params.TermsInc,
		Pages:      pages,
		PageCount:  pages.Len(),
		TotalCount: pages.Count(),
		Limit:      params.Limit,
		Skip:       params.Skip,
	})
}

func (s *Server) HandlePage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params, err := search.ParseSearchParams(query, s.service.Location())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		return
	}

	multiplier := 0
	if raw := query.Get("multiplier"); raw != "" {
		multiplier, err = strconv.Atoi(raw)
		if err != nil || multiplier < 1 {
			s.writeError(w, http.StatusBadRequest, "Invalid parameters", "multiplier must be a positive integer")
			return
		}
	}

	annots, err := s.service.ListAnnotsByPage(r.Context(), params, multiplier)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, PageResponse{
		URL:         params.URL,
		Annotations: annots,
		Count:       len(annots),
		Limit:       params.Limit,
		Skip:        params.Skip,
	})
}

func (s *Server) HandleDays(w http.ResponseWriter, r *http.Request) {
	params, err := search.ParseSearchParams(r.URL.Query(), s.service.Location())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		return
	}

	days, err := s.service.ListAnnotsByDay(r.Context(), params)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	response := DaysResponse{
		Days:       days,
		DayCount:   days.Len(),
		TotalCount: days.Count(),
		Limit:      params.Limit,
		Skip:       params.Skip,
	}
	if ordered := days.Days(); len(ordered) > 0 && len(ordered) >= params.Limit {
		oldest := ordered[len(ordered)-1]
		response.NextEndDate = oldest.AddDate(0, 0, -1).Format(time.DateOnly)
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleListOperations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, OperationsResponse{Operations: s.registry.Names()})
}

// HandleOperation dispatches to a registered operation. Arguments are read
// from the query string and, for form posts, the request body.
func (s *Server) HandleOperation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
		return
	}

	result, err := s.registry.Call(r.Context(), name, r.Form)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, OperationResponse{Operation: name, Result: result})
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		s.writeError(w, http.StatusNotFound, "Not available", "stats are not available for this store")
		return
	}

	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		logger.Errorf("reading stats: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to get stats", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleImport(w http.ResponseWriter, r *http.Request) {
	var export importer.Export
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportSize)).Decode(&export); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_json", "Failed to parse export: "+err.Error())
		return
	}

	result, err := s.importer.ImportExport(r.Context(), export)
	if err != nil {
		logger.Errorf("importing export: %v", err)
		s.writeError(w, http.StatusInternalServerError, "import_failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}
