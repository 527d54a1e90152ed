package api

import (
	"time"

	"github.com/rubiojr/annots/pkg/core"
	"github.com/rubiojr/annots/pkg/search"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type SearchResponse struct {
	Terms      []string             `json:"terms"`
	Pages      *search.PageClusters `json:"pages"`
	PageCount  int                  `json:"page_count"`
	TotalCount int                  `json:"total_count"`
	Limit      int                  `json:"limit"`
	Skip       int                  `json:"skip"`
}

type PageResponse struct {
	URL         string            `json:"url"`
	Annotations []core.Annotation `json:"annotations"`
	Count       int               `json:"count"`
	Limit       int               `json:"limit"`
	Skip        int               `json:"skip"`
}

type DaysResponse struct {
	Days       *search.DayClusters `json:"days"`
	DayCount   int                 `json:"day_count"`
	TotalCount int                 `json:"total_count"`
	Limit      int                 `json:"limit"`
	Skip       int                 `json:"skip"`
	// NextEndDate is the end_date that requests the following page of days.
	// Empty when fewer than limit days were returned.
	NextEndDate string `json:"next_end_date,omitempty"`
}

type OperationResponse struct {
	Operation string `json:"operation"`
	Result    any    `json:"result"`
}

type OperationsResponse struct {
	Operations []string `json:"operations"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
