package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Additional fields for extensibility
	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON custom marshaler to include extensions
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})

	// Add standard fields
	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status

	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}

	// Add extensions
	for k, v := range pd.Extensions {
		data[k] = v
	}

	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// MapSnapshotError maps reconciliation errors to HTTP problem details.
// No-data is the only domain failure a snapshot request can end in; adapter
// saturation and partial source outages degrade the snapshot instead of
// failing the request, so they never reach this mapping.
func MapSnapshotError(err error, ticker, traceID string) render.Renderer {
	instance := fmt.Sprintf("/api/v1/etfs/%s#trace-%s", ticker, traceID)

	var noData *NoDataAvailableError
	if errors.As(err, &noData) {
		problem := NewProblemDetails(
			http.StatusNotFound,
			TypeNoData,
			"No Data Available",
			fmt.Sprintf("No usable market data for %s: every configured source failed or returned nothing.", ticker),
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "NO_DATA_AVAILABLE").
			WithExtension("ticker", noData.Ticker)
		if len(noData.Failures) > 0 {
			problem.WithExtension("source_failures", noData.Failures)
		}
		return problem
	}

	if errors.Is(err, ErrNoData) {
		return NewProblemDetails(
			http.StatusNotFound,
			TypeNoData,
			"No Data Available",
			fmt.Sprintf("No usable market data for %s from any source.", ticker),
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "NO_DATA_AVAILABLE")
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return NewProblemDetails(
			apiErr.StatusCode,
			TypeInternal,
			http.StatusText(apiErr.StatusCode),
			apiErr.Message,
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", apiErr.ErrorCode)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while reconciling market data.",
		instance,
	).WithExtension("trace_id", traceID).
		WithExtension("error_code", "INTERNAL_ERROR")
}
