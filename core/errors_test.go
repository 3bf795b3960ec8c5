package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldError(t *testing.T) {
	err := MissingField("name")

	assert.ErrorIs(t, err, ErrExtraction)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.NotErrorIs(t, err, ErrIncompleteRecord)
	assert.Contains(t, err.Error(), "name")

	var fieldErr *FieldError
	assert.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "name", fieldErr.Field)
}

func TestIsUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "invalid url", err: fmt.Errorf("%w: ftp://x", ErrInvalidURL), want: true},
		{name: "missing field", err: MissingField("department"), want: true},
		{name: "incomplete", err: IncompleteField("rating"), want: true},
		{name: "fetch 404", err: &FetchStatusError{URL: "http://x", StatusCode: 404}, want: true},
		{name: "fetch 503", err: &FetchStatusError{URL: "http://x", StatusCode: 503}, want: false},
		{name: "rejected input", err: ErrEmbeddingRejected, want: true},
		{name: "invalid key", err: ErrInvalidKey, want: true},
		{name: "embedding unavailable", err: ErrEmbeddingUnavailable, want: false},
		{name: "refused credentials", err: fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, ErrServiceRefused), want: false},
		{name: "unknown", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUserError(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "fetch unavailable", err: fmt.Errorf("%w: %w", ErrFetchUnavailable, context.DeadlineExceeded), want: true},
		{name: "fetch 502", err: &FetchStatusError{StatusCode: 502}, want: true},
		{name: "fetch 404", err: &FetchStatusError{StatusCode: 404}, want: false},
		{name: "embedding unavailable", err: ErrEmbeddingUnavailable, want: true},
		{name: "index unavailable", err: ErrIndexUnavailable, want: true},
		{name: "generation unavailable", err: ErrGenerationUnavailable, want: true},
		{name: "invalid embedding", err: ErrInvalidEmbedding, want: false},
		{name: "dimension mismatch", err: ErrDimensionMismatch, want: false},
		{name: "refused embedding call", err: fmt.Errorf("%w: %w: 401", ErrEmbeddingUnavailable, ErrServiceRefused), want: false},
		{name: "refused index write", err: fmt.Errorf("%w: %w: 400", ErrIndexUnavailable, ErrServiceRefused), want: false},
		{name: "refused generation", err: fmt.Errorf("%w: %w", ErrGenerationUnavailable, ErrServiceRefused), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
