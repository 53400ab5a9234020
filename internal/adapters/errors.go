package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"etfcli/pkg/contracts/domain"
)

// ErrorKind classifies why a source could not deliver. Kinds feed the
// SourceFailure diagnostics on a snapshot; they never abort reconciliation.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindParse       ErrorKind = "parse_failure"
	KindNotFound    ErrorKind = "not_found"
	KindNetwork     ErrorKind = "network"
)

// Error is a classified adapter failure attributed to one source.
type Error struct {
	Source domain.SourceID
	Kind   ErrorKind
	Err    error
}

// NewError wraps err as a classified failure of the given source.
func NewError(source domain.SourceID, kind ErrorKind, err error) *Error {
	return &Error{Source: source, Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Failure converts the error into the diagnostic record a snapshot carries.
func (e *Error) Failure(at time.Time) domain.SourceFailure {
	message := string(e.Kind)
	if e.Err != nil {
		message = e.Err.Error()
	}
	return domain.SourceFailure{
		Source:     e.Source,
		Kind:       string(e.Kind),
		Message:    message,
		OccurredAt: at,
	}
}

// Classify attributes an arbitrary fetch error to a source with a best-effort
// kind. Already-classified errors pass through with their source corrected if
// unset.
func Classify(source domain.SourceID, err error) *Error {
	var adapterErr *Error
	if errors.As(err, &adapterErr) {
		if adapterErr.Source == "" {
			adapterErr.Source = source
		}
		return adapterErr
	}

	kind := KindNetwork
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &urlErr) && urlErr.Timeout():
		kind = KindTimeout
	}
	return NewError(source, kind, err)
}
