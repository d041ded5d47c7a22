// Package transform maps secondary-store documents to the canonical entity
// shape the frontend consumes, and back to the write shape the store owns.
// Both directions are pure; the write-shape projection is stable under
// round-trip.
package transform

import (
	"fmt"
	"strings"

	"github.com/yourorg/crmbridge/internal/domain"
)

// Transformer reconciles one entity's document shape.
type Transformer interface {
	// ToCanonical maps a raw store document to the canonical record. A nil
	// document maps to a nil record.
	ToCanonical(doc domain.Document) domain.Record
	// ToStoreShape strips client-only fields and passes through only the
	// fields the store's schema owns.
	ToStoreShape(record domain.Record) map[string]any
	// SearchField is the designated attribute for substring search.
	SearchField() string
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func list(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{}
}

func number(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	default:
		return 0
	}
}

func subDocument(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func joinName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
