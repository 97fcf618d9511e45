// Package core implements the revision domain logic for entryrev including
// field diffing, revision capture, and restore operations.
package core

import "github.com/kilupskalvis/entryrev/internal/models"

// DiffFields returns the entries of next whose value differs from prev under
// LooseEqual. Keys only present in next are always included; keys only
// present in prev are never reported.
func DiffFields(prev, next models.FieldMap) models.FieldMap {
	changed := models.FieldMap{}
	for key, value := range next {
		if old, ok := prev[key]; ok && LooseEqual(old, value) {
			continue
		}
		changed[key] = value
	}
	return changed
}

// StripReserved returns a copy of fields without revision metadata keys
func StripReserved(fields models.FieldMap) models.FieldMap {
	out := make(models.FieldMap, len(fields))
	for k, v := range fields {
		if models.IsReserved(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// stripReservedAttrs is StripReserved for record attributes. The result is
// never nil so it always replaces the stored attributes on write.
func stripReservedAttrs(attrs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		if models.IsReserved(k) {
			continue
		}
		out[k] = v
	}
	return out
}
