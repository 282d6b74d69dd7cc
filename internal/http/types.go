package http

import (
	"github.com/fyrsmithlabs/quotecheck/internal/embedstore"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// FindRequest is the request body for POST /api/v1/find.
type FindRequest struct {
	Quote string `json:"quote"`
}

// ConfidenceRequest is the request body for POST /api/v1/confidence.
type ConfidenceRequest struct {
	Claim string `json:"claim"`
	Quote string `json:"quote"`
}

// ConfidenceResponse is the response body for POST /api/v1/confidence.
type ConfidenceResponse struct {
	Score float64 `json:"score"`
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResponse is the response body for POST /api/v1/search.
type SearchResponse struct {
	Results []embedstore.SearchResult `json:"results"`
	Skipped int                       `json:"skipped"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
