// Package reconcile merges extraction results into clinical notes.
//
// Two precedence rules exist and are kept as separate functions: analyzer
// output is authoritative and overwrites (Reconcile), heuristic output only
// fills gaps (MergeHeuristic).
package reconcile

import (
	"strings"

	"medscribe/internal/domain"
)

// Meaningful reports whether value carries information, i.e. it is neither
// blank nor the analyzer's no-data sentinel.
func Meaningful(value string) bool {
	trimmed := strings.TrimSpace(value)
	return trimmed != "" && !strings.EqualFold(trimmed, domain.NoDataSentinel)
}

// Normalize returns value, or "" when it carries no information.
func Normalize(value string) string {
	if !Meaningful(value) {
		return ""
	}
	return value
}

// NormalizeResult clears every sentinel or blank field of an extraction result.
func NormalizeResult(result domain.ExtractionResult) domain.ExtractionResult {
	for _, field := range domain.AllFields {
		result.Set(field, Normalize(result.Get(field)))
	}
	return result
}

// Reconcile overlays incoming onto current field by field. A meaningful
// incoming value replaces the current one; anything else keeps current.
func Reconcile(current domain.Fields, incoming domain.ExtractionResult) domain.Fields {
	out := current
	for _, field := range domain.AllFields {
		if value := incoming.Get(field); Meaningful(value) {
			out.Set(field, value)
		}
	}
	return out
}

// MergeHeuristic fills only the empty fields of existing from parsed. A field
// that already holds a value is never overwritten.
func MergeHeuristic(existing domain.Fields, parsed domain.ExtractionResult) domain.Fields {
	out := existing
	for _, field := range domain.AllFields {
		if existing.Get(field) != "" {
			continue
		}
		if value := parsed.Get(field); Meaningful(value) {
			out.Set(field, value)
		}
	}
	return out
}
