// Package memory defines the long-term memory record model and the
// Store contract shared by the SQLite and in-memory backends.
package memory

import (
	"errors"
	"time"
)

// Category classifies what kind of knowledge a record holds.
type Category string

// Category values. The enumeration is closed; anything else is rejected
// at the validation boundary.
const (
	CategoryFact       Category = "fact"
	CategoryPreference Category = "preference"
	CategoryEvent      Category = "event"
	CategoryCorrection Category = "correction"
	CategoryContext    Category = "context"
)

// Categories lists every valid category in declaration order.
var Categories = []Category{
	CategoryFact,
	CategoryPreference,
	CategoryEvent,
	CategoryCorrection,
	CategoryContext,
}

// Valid reports whether c is a member of the closed enumeration.
func (c Category) Valid() bool {
	switch c {
	case CategoryFact, CategoryPreference, CategoryEvent, CategoryCorrection, CategoryContext:
		return true
	}
	return false
}

// Label returns a human-readable label for prompt formatting.
func (c Category) Label() string {
	switch c {
	case CategoryFact:
		return "Facts"
	case CategoryPreference:
		return "Preferences"
	case CategoryEvent:
		return "Events"
	case CategoryCorrection:
		return "Corrections"
	case CategoryContext:
		return "Context"
	default:
		return string(c)
	}
}

// Importance bounds. Values outside the range are clamped on write.
const (
	MinImportance = 1
	MaxImportance = 10
)

// ClampImportance forces v into [MinImportance, MaxImportance].
func ClampImportance(v int) int {
	if v < MinImportance {
		return MinImportance
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}

// Record is the durable unit of long-term knowledge about the user.
// Keywords are derived from Content at write time and recomputed
// whenever Content changes; they are a search aid, never authoritative.
type Record struct {
	ID             string            `json:"id"`
	Content        string            `json:"content"`
	Category       Category          `json:"category"`
	Importance     int               `json:"importance"`
	Keywords       []string          `json:"keywords,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	AccessCount    int               `json:"access_count"`
	Valid          bool              `json:"valid"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ScoredRecord pairs a record with its relevance score for one query.
type ScoredRecord struct {
	Record
	Score float64 `json:"score"`
}

// Patch describes a partial update. Nil fields are left untouched.
type Patch struct {
	Content    *string
	Importance *int
	Category   *Category
	Valid      *bool
}

// Sentinel errors for store operations.
var (
	// ErrInvalidContent indicates an empty or missing content field.
	ErrInvalidContent = errors.New("memory: content is required")

	// ErrInvalidCategory indicates a category outside the closed enumeration.
	ErrInvalidCategory = errors.New("memory: invalid category")

	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("memory: record not found")

	// ErrStoreUnavailable indicates the underlying persistent store failed
	// to open or to execute a transaction.
	ErrStoreUnavailable = errors.New("memory: store unavailable")
)
