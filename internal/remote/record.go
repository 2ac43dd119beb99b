package remote

import (
	"github.com/splitsync/splitsync/internal/models"
)

// Record is one decoded JSON object returned by a query. Accessor methods
// normalize the wire's dynamic shapes so callers never branch on them.
type Record map[string]any

// Int reads an integer field. JSON numbers decode as float64; unset or
// false-valued fields (the wire's null convention) read as 0.
func (r Record) Int(field string) int64 {
	switch v := r[field].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

// Float reads a numeric field, 0 if unset.
func (r Record) Float(field string) float64 {
	if v, ok := r[field].(float64); ok {
		return v
	}
	return 0
}

// String reads a text field. The wire sends false for empty text fields,
// which reads as "".
func (r Record) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Bool reads a boolean field, false if unset.
func (r Record) Bool(field string) bool {
	if v, ok := r[field].(bool); ok {
		return v
	}
	return false
}

// Ref reads a single-reference field. The wire delivers either a bare id,
// an [id, name] pair, or false for an empty reference; all normalize to
// models.Ref here.
func (r Record) Ref(field string) models.Ref {
	return refFromValue(r[field])
}

// Refs reads a multi-reference field. The wire delivers a list of ids, a
// list of [id, name] pairs, or false for an empty set.
func (r Record) Refs(field string) []models.Ref {
	list, ok := r[field].([]any)
	if !ok {
		return nil
	}
	refs := make([]models.Ref, 0, len(list))
	for _, v := range list {
		if ref := refFromValue(v); !ref.IsZero() {
			refs = append(refs, ref)
		}
	}
	return refs
}

func refFromValue(v any) models.Ref {
	switch val := v.(type) {
	case float64:
		return models.Ref{ID: int64(val)}
	case []any:
		// [id, name] pair
		ref := models.Ref{}
		if len(val) > 0 {
			if id, ok := val[0].(float64); ok {
				ref.ID = int64(id)
			}
		}
		if len(val) > 1 {
			if name, ok := val[1].(string); ok {
				ref.Name = name
			}
		}
		return ref
	case map[string]any:
		// {id: ..., name: ...} object
		ref := models.Ref{}
		if id, ok := val["id"].(float64); ok {
			ref.ID = int64(id)
		}
		if name, ok := val["name"].(string); ok {
			ref.Name = name
		}
		return ref
	default:
		// false, null, or anything else means no reference
		return models.Ref{}
	}
}

// ReplaceCommand encodes a multi-reference write as the wire's replace
// command: [[6, 0, ids]].
func ReplaceCommand(ids []int64) []any {
	raw := make([]any, len(ids))
	for i, id := range ids {
		raw[i] = id
	}
	return []any{[]any{6, 0, raw}}
}
