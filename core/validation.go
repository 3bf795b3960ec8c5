// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidMessage indicates a ConversationMessage failed validation.
	ErrInvalidMessage = errors.New("invalid conversation message")

	// ErrInvalidRole indicates a role other than user or assistant.
	ErrInvalidRole = errors.New("invalid role")
)

// ValidateRecord validates an InstructorRecord according to domain rules.
//
// Validation rules:
//   - Name must not be blank
//   - Department must not be blank
//   - RatingRaw must not be blank
//
// NOT validated:
//   - ReviewSnippets (a page may carry no reviews yet)
//   - RatingRaw format (free-form score text)
func ValidateRecord(record *InstructorRecord) error {
	if record == nil {
		return IncompleteField("record")
	}
	if strings.TrimSpace(record.Name) == "" {
		return IncompleteField("name")
	}
	if strings.TrimSpace(record.Department) == "" {
		return IncompleteField("department")
	}
	if strings.TrimSpace(record.RatingRaw) == "" {
		return IncompleteField("rating")
	}
	return nil
}

// ValidateVector checks that v is usable as an embedding.
// A positive minDim additionally rejects vectors shorter than minDim.
func ValidateVector(v Vector, minDim int) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}
	if minDim > 0 && len(v) < minDim {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrInvalidEmbedding, len(v), minDim)
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("%w: non-numeric component at %d", ErrInvalidEmbedding, i)
		}
	}
	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}

// ValidateMessage validates a single conversation message.
// Assistant messages may be empty (a turn that produced no text); user messages may not.
func ValidateMessage(msg ConversationMessage) error {
	if err := ValidateRole(msg.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Role == RoleUser && strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("%w: empty user message", ErrInvalidMessage)
	}
	return nil
}
