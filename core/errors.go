package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL indicates a submitted URL is malformed or not http(s).
	ErrInvalidURL = errors.New("invalid url")

	// ErrFetchStatus indicates the page server answered with a non-success status.
	ErrFetchStatus = errors.New("fetch returned non-success status")

	// ErrFetchUnavailable indicates a network failure or timeout while fetching.
	ErrFetchUnavailable = errors.New("fetch unavailable")

	// ErrExtraction indicates a document could not be turned into a record.
	ErrExtraction = errors.New("extraction failed")

	// ErrMissingField indicates a source field is absent from the document.
	ErrMissingField = errors.New("missing field")

	// ErrIncompleteRecord indicates a required record field is empty after extraction.
	ErrIncompleteRecord = errors.New("incomplete record")

	// ErrEmbeddingUnavailable indicates a network, timeout or 5xx failure of the embedding service.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrInvalidEmbedding indicates the embedding service answered with an unusable vector.
	ErrInvalidEmbedding = errors.New("invalid embedding response")

	// ErrEmbeddingRejected indicates the embedding service refused the input.
	ErrEmbeddingRejected = errors.New("embedding input rejected")

	// ErrIndexUnavailable indicates a transient failure of the vector index.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrInvalidKey indicates an empty or malformed index key.
	ErrInvalidKey = errors.New("invalid index key")

	// ErrDimensionMismatch indicates a vector length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrGenerationUnavailable indicates the generation service could not start a completion.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrGenerationInterrupted indicates a completion stream ended early.
	ErrGenerationInterrupted = errors.New("generation interrupted")

	// ErrServiceRefused marks a failure where a service answered but refused
	// the request for a reason resubmitting will not change: bad credentials,
	// an unknown model or index, a payload over the service's limits. It is
	// joined to the call's ...Unavailable kind and makes the error non-transient.
	ErrServiceRefused = errors.New("request refused by service")
)

// FieldError reports which record field caused an extraction failure.
type FieldError struct {
	Field string
	Err   error // ErrMissingField or ErrIncompleteRecord
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrExtraction, e.Err, e.Field)
}

func (e *FieldError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// MissingField returns an extraction error for an absent source field.
func MissingField(field string) error {
	return &FieldError{Field: field, Err: ErrMissingField}
}

// IncompleteField returns an extraction error for a field that is empty after extraction.
func IncompleteField(field string) error {
	return &FieldError{Field: field, Err: ErrIncompleteRecord}
}

// FetchStatusError carries the HTTP status a page server answered with.
type FetchStatusError struct {
	URL        string
	StatusCode int
}

func (e *FetchStatusError) Error() string {
	return fmt.Sprintf("%s: %d from %s", ErrFetchStatus, e.StatusCode, e.URL)
}

func (e *FetchStatusError) Unwrap() error {
	return ErrFetchStatus
}

// IsUserError reports whether err was caused by the caller's input rather
// than by a failing service. User errors should not be retried.
func IsUserError(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *FetchStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500
	}
	return errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrExtraction) ||
		errors.Is(err, ErrEmbeddingRejected) ||
		errors.Is(err, ErrInvalidKey)
}

// IsTransient reports whether err indicates a temporarily unavailable service.
// Only transient errors are worth retrying.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrServiceRefused) {
		return false
	}
	var statusErr *FetchStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode >= 500 {
		return true
	}
	return errors.Is(err, ErrFetchUnavailable) ||
		errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrIndexUnavailable) ||
		errors.Is(err, ErrGenerationUnavailable)
}
