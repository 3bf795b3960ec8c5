package core

import (
	"errors"
	"math"
	"testing"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name      string
		record    *InstructorRecord
		wantErr   error
		wantField string
	}{
		{
			name: "valid record",
			record: &InstructorRecord{
				Name:           "J. Doe",
				Department:     "Computer Science",
				RatingRaw:      "4.5",
				ReviewSnippets: []string{"Great lectures"},
			},
		},
		{
			name: "valid record without reviews",
			record: &InstructorRecord{
				Name:       "J. Doe",
				Department: "Computer Science",
				RatingRaw:  "4.5",
			},
		},
		{
			name:      "nil record",
			record:    nil,
			wantErr:   ErrIncompleteRecord,
			wantField: "record",
		},
		{
			name:      "blank name",
			record:    &InstructorRecord{Name: "  ", Department: "Math", RatingRaw: "3"},
			wantErr:   ErrIncompleteRecord,
			wantField: "name",
		},
		{
			name:      "empty department",
			record:    &InstructorRecord{Name: "A", RatingRaw: "3"},
			wantErr:   ErrIncompleteRecord,
			wantField: "department",
		},
		{
			name:      "empty rating",
			record:    &InstructorRecord{Name: "A", Department: "Math"},
			wantErr:   ErrIncompleteRecord,
			wantField: "rating",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateRecord() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateRecord() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrExtraction) {
				t.Errorf("ValidateRecord() error = %v, should wrap ErrExtraction", err)
			}
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) || fieldErr.Field != tt.wantField {
				t.Errorf("ValidateRecord() field = %v, want %q", fieldErr, tt.wantField)
			}
		})
	}
}

func TestValidateVector(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name    string
		vector  Vector
		minDim  int
		wantErr bool
	}{
		{name: "valid", vector: Vector{0.1, 0.2, 0.3}, minDim: 3},
		{name: "no dimension requirement", vector: Vector{0.1}, minDim: 0},
		{name: "nil", vector: nil, wantErr: true},
		{name: "empty", vector: Vector{}, wantErr: true},
		{name: "undersized", vector: Vector{0.1, 0.2}, minDim: 3, wantErr: true},
		{name: "NaN component", vector: Vector{0.1, nan}, wantErr: true},
		{name: "Inf component", vector: Vector{inf}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVector(tt.vector, tt.minDim)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEmbedding) {
					t.Errorf("ValidateVector() error = %v, want ErrInvalidEmbedding", err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateVector() error = %v, want nil", err)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     ConversationMessage
		wantErr error
	}{
		{name: "user message", msg: ConversationMessage{Role: RoleUser, Content: "hi"}},
		{name: "empty assistant message", msg: ConversationMessage{Role: RoleAssistant}},
		{name: "empty user message", msg: ConversationMessage{Role: RoleUser, Content: " "}, wantErr: ErrInvalidMessage},
		{name: "unknown role", msg: ConversationMessage{Role: "system", Content: "x"}, wantErr: ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.msg)
			if tt.wantErr == nil && err != nil {
				t.Errorf("ValidateMessage() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
