package models

// Ref is a normalized reference to a remote record.
//
// The remote API delivers relational fields in three shapes: a bare id, an
// [id, name] pair, or a list of either. The remote client collapses all of
// them into Ref on read so the rest of the system never branches on shape.
type Ref struct {
	ID   int64
	Name string
}

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool {
	return r.ID == 0 && r.Name == ""
}

// RefIDs extracts the ids from a reference list, preserving order.
func RefIDs(refs []Ref) []int64 {
	ids := make([]int64, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}
