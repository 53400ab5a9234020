package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfcli/internal/shared/testutil"
	"etfcli/pkg/contracts/domain"
)

func TestNewErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		includeStack bool
	}{
		{
			name:         "create handler with stack traces",
			includeStack: true,
		},
		{
			name:         "create handler without stack traces",
			includeStack: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)

			handler := NewErrorHandler(logger, tt.includeStack)

			assert.NotNil(t, handler)
			assert.Equal(t, tt.includeStack, handler.includeStack)
			assert.NotNil(t, handler.logger)
		})
	}
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantTitle  string
	}{
		{
			name:       "handle nil error",
			err:        nil,
			wantStatus: 0, // No response written
		},
		{
			name:       "handle context deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
			wantTitle:  "Request Timeout",
		},
		{
			name:       "handle context canceled",
			err:        context.Canceled,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
			wantTitle:  "Request Timeout",
		},
		{
			name:       "handle APIError",
			err:        ErrInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantTitle:  "Bad Request",
		},
		{
			name:       "handle no data available",
			err:        NewNoDataAvailable("VTI", nil, nil),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNoData,
			wantTitle:  "No Data Available",
		},
		{
			name:       "handle not found error",
			err:        fmt.Errorf("resource not found"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
			wantTitle:  "Resource Not Found",
		},
		{
			name:       "handle generic error",
			err:        fmt.Errorf("something went wrong"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
			wantTitle:  "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logHandler := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, true)

			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/test", nil)

			handler.HandleError(w, r, tt.err)

			if tt.err == nil {
				// Should not write any response for nil error
				assert.Equal(t, 200, w.Code)
				assert.Zero(t, w.Body.Len())
				return
			}

			assert.Equal(t, tt.wantStatus, w.Code)

			// Parse response body
			var problem ProblemDetails
			err := json.NewDecoder(w.Body).Decode(&problem)
			require.NoError(t, err)

			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, tt.wantTitle, problem.Title)
			assert.Equal(t, tt.wantStatus, problem.Status)

			// Check that error was logged
			assert.True(t, logHandler.ContainsMessage("request failed"))
		})
	}
}

func TestErrorHandler_ErrorToProblem(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "convert context deadline exceeded",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "convert APIError validation failed",
			err:        ErrValidationFailed,
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "convert APIError unknown field",
			err:        UnknownFieldError("nav_premium"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeUnknownField,
		},
		{
			name:       "convert APIError not found",
			err:        ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "convert APIError no data available",
			err:        ErrNoDataAvailable,
			wantStatus: http.StatusNotFound,
			wantType:   TypeNoData,
		},
		{
			name:       "convert APIError rate limit",
			err:        ErrRateLimitExceeded,
			wantStatus: http.StatusTooManyRequests,
			wantType:   TypeRateLimit,
		},
		{
			name:       "convert APIError export failed",
			err:        ExportError("xlsx", assert.AnError),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeExportFailed,
		},
		{
			name:       "convert string error with 'not found'",
			err:        fmt.Errorf("ticker not found"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "convert string error with 'rate limit'",
			err:        fmt.Errorf("source rate limit exceeded"),
			wantStatus: http.StatusTooManyRequests,
			wantType:   TypeRateLimit,
		},
		{
			name:       "convert unknown error",
			err:        fmt.Errorf("mystery failure"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)
			r := httptest.NewRequest("GET", "/api/v1/etfs/VTI", nil)

			problem := handler.ErrorToProblem(tt.err, r)

			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/api/v1/etfs/VTI", problem.Instance)
		})
	}
}

func TestErrorHandler_ErrorToProblem_NoDataDetails(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)
	r := httptest.NewRequest("GET", "/api/v1/etfs/ARKK", nil)

	failures := []domain.SourceFailure{
		{Source: "quotefeed", Kind: "timeout", Message: "deadline exceeded"},
		{Source: "fundfacts", Kind: "not_found", Message: "unknown ticker"},
	}
	err := NewNoDataAvailable("ARKK", domain.KnownFields(), failures)

	problem := handler.ErrorToProblem(err, r)

	assert.Equal(t, http.StatusNotFound, problem.Status)
	assert.Equal(t, TypeNoData, problem.Type)
	assert.Equal(t, "NO_DATA_AVAILABLE", problem.Extensions["error_code"])
	assert.Equal(t, "ARKK", problem.Extensions["ticker"])
	assert.Equal(t, failures, problem.Extensions["source_failures"])
}

func TestErrorHandler_ErrorToProblem_WrappedNoData(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)
	r := httptest.NewRequest("GET", "/api/v1/etfs/SPY", nil)

	// Wrapped sentinel without the typed error still maps to 404
	err := fmt.Errorf("snapshot: %w", ErrNoData)

	problem := handler.ErrorToProblem(err, r)

	assert.Equal(t, http.StatusNotFound, problem.Status)
	assert.Equal(t, TypeNoData, problem.Type)
}

func TestErrorHandler_ErrorToProblem_AppError(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
		wantType   string
	}{
		{
			name:       "validation app error",
			err:        NewAppValidationError("bad fields"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "not found app error",
			err:        NewNotFoundError("calendar"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "source app error",
			err:        NewSourceError("fetch failed", assert.AnError),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeSourceFailure,
		},
		{
			name:       "market app error",
			err:        NewMarketError("calendar unreadable", assert.AnError),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeCalendarDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)
			r := httptest.NewRequest("GET", "/test", nil)

			problem := handler.ErrorToProblem(tt.err, r)

			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, string(tt.err.Type), problem.Extensions["error_type"])
		})
	}
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	tests := []struct {
		name         string
		recovered    interface{}
		includeStack bool
	}{
		{
			name:         "string panic with stack",
			recovered:    "boom",
			includeStack: true,
		},
		{
			name:         "error panic without stack",
			recovered:    assert.AnError,
			includeStack: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logHandler := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, tt.includeStack)

			w := httptest.NewRecorder()
			r := httptest.NewRequest("POST", "/api/v1/analysis/costs", nil)

			handler.HandlePanic(w, r, tt.recovered)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.True(t, logHandler.ContainsMessage("panic recovered"))

			var problem ProblemDetails
			require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
			assert.Equal(t, TypeInternal, problem.Type)
		})
	}
}

func TestErrorHandler_NotFound(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/nope", nil)

	handler.NotFound(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var problem ProblemDetails
	require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
	assert.Equal(t, TypeNotFound, problem.Type)
	assert.Equal(t, "/nope", problem.Instance)
}

func TestErrorHandler_MethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("DELETE", "/api/v1/etfs/VTI", nil)

	handler.MethodNotAllowed(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	var problem ProblemDetails
	require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
	assert.Contains(t, problem.Detail, "DELETE")
}

func TestErrorHandler_Middleware_PanicRecovery(t *testing.T) {
	logger, logHandler := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/test", nil)

	handler.Middleware(panicky).ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, logHandler.ContainsMessage("panic recovered"))
}

func TestErrorHandler_Middleware_LogsErrorResponses(t *testing.T) {
	logger, logHandler := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/test", nil)

	handler.Middleware(failing).ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.True(t, logHandler.ContainsMessage("error response"))
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNoData,
		"No Data Available",
		"every source failed",
		"/api/v1/etfs/VTI",
	).WithExtension("ticker", "VTI").
		WithExtension("error_code", "NO_DATA_AVAILABLE")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, TypeNoData, decoded["type"])
	assert.Equal(t, "No Data Available", decoded["title"])
	assert.Equal(t, float64(http.StatusNotFound), decoded["status"])
	assert.Equal(t, "every source failed", decoded["detail"])
	assert.Equal(t, "/api/v1/etfs/VTI", decoded["instance"])
	assert.Equal(t, "VTI", decoded["ticker"])
	assert.Equal(t, "NO_DATA_AVAILABLE", decoded["error_code"])
}

func TestMapSnapshotError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "typed no data error",
			err:        NewNoDataAvailable("VTI", nil, nil),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "wrapped sentinel",
			err:        fmt.Errorf("engine: %w", ErrNoData),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "api error passthrough",
			err:        ErrInvalidTicker,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("mystery"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := MapSnapshotError(tt.err, "VTI", "trace-1")

			problem, ok := renderer.(*ProblemDetails)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, "trace-1", problem.Extensions["trace_id"])
		})
	}
}
