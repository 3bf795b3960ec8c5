package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash returns a stable hex digest of the given parts using BLAKE2b.
// Identical inputs always produce identical hashes. Parts are separated by a
// NUL byte so ("ab", "c") and ("a", "bc") never collide.
func ContentHash(parts ...string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// InstructorRecord is the canonical unit stored in and retrieved from the index.
// Name doubles as the index key.
type InstructorRecord struct {
	Name           string   `json:"name"`
	Department     string   `json:"department"`
	RatingRaw      string   `json:"rating"` // Score text as scraped, not guaranteed numeric
	ReviewSnippets []string `json:"reviews"` // Scrape order
	SourceURL      string   `json:"source_url,omitempty"`
}

// FirstReview returns the first review snippet, or "" if there is none.
func (r *InstructorRecord) FirstReview() string {
	if len(r.ReviewSnippets) == 0 {
		return ""
	}
	return r.ReviewSnippets[0]
}

// Clone returns a deep copy of the record.
func (r *InstructorRecord) Clone() *InstructorRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.ReviewSnippets != nil {
		c.ReviewSnippets = append([]string(nil), r.ReviewSnippets...)
	}
	return &c
}

// Vector is a fixed-dimension embedding produced by the embedding service.
type Vector []float32

// IndexEntry is one key's current state in the vector index.
// The index keeps only the most recently upserted entry per key.
type IndexEntry struct {
	Key       string
	Vector    Vector
	Record    InstructorRecord
	UpdatedAt time.Time
}

// ScoredRecord is a single retrieval hit.
type ScoredRecord struct {
	Key    string
	Record InstructorRecord
	Score  float32
}

// RetrievalResult holds retrieval hits ordered by descending score.
type RetrievalResult []ScoredRecord

// Records returns the records in result order.
func (r RetrievalResult) Records() []InstructorRecord {
	out := make([]InstructorRecord, len(r))
	for i, hit := range r {
		out[i] = hit.Record
	}
	return out
}

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a human asking questions.
	RoleUser Role = "user"
	// RoleAssistant is the generation service's side of the conversation.
	RoleAssistant Role = "assistant"
)

// ConversationMessage is a single turn in a conversation.
type ConversationMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}
