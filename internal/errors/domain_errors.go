package errors

import (
	"errors"
	"fmt"

	"etfcli/pkg/contracts/domain"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeSource     ErrorType = "SOURCE"
	ErrTypeNetwork    ErrorType = "NETWORK"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeMarket     ErrorType = "MARKET"
)

// Reconciliation sentinel errors (using errors package for sentinel errors)
var (
	// ErrNoData is returned when every source failed or returned nothing for
	// every requested field and no cached or last-known value exists.
	ErrNoData = errors.New("no data available")

	// ErrCacheMiss signals that a snapshot cache lookup found no valid entry.
	// It is an internal control-flow signal, never surfaced to callers.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCalendarUnavailable signals that the market calendar could not be
	// consulted; snapshots proceed with unknown market status.
	ErrCalendarUnavailable = errors.New("market calendar unavailable")
)

// NoDataAvailableError carries the per-source failures behind an ErrNoData so
// transport can report what actually went wrong upstream.
type NoDataAvailableError struct {
	Ticker   string
	Fields   []domain.Field
	Failures []domain.SourceFailure
}

// Error implements the error interface
func (e *NoDataAvailableError) Error() string {
	return fmt.Sprintf("no data available for %s: all %d sources failed or returned nothing",
		e.Ticker, len(e.Failures))
}

// Unwrap makes errors.Is(err, ErrNoData) hold for every NoDataAvailableError.
func (e *NoDataAvailableError) Unwrap() error {
	return ErrNoData
}

// NewNoDataAvailable creates the engine-level error for a request with zero
// usable values across all requested fields.
func NewNoDataAvailable(ticker string, fields []domain.Field, failures []domain.SourceFailure) *NoDataAvailableError {
	return &NoDataAvailableError{
		Ticker:   ticker,
		Fields:   fields,
		Failures: failures,
	}
}

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Helper functions for common error types

// NewSourceError creates a data-source adapter error
func NewSourceError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSource, message, cause)
}

// NewNetworkError creates a network-related error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewMarketError creates a market calendar or session error
func NewMarketError(message string, cause error) *AppError {
	return NewAppError(ErrTypeMarket, message, cause)
}
