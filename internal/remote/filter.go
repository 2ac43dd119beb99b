package remote

// Condition is one comparison in a query filter.
type Condition struct {
	Field string
	Op    string
	Value any
}

// Filter is a conjunction of conditions, marshaled to the remote API's
// domain format: a list of [field, op, value] triples.
type Filter []Condition

// Domain returns the wire representation of the filter.
func (f Filter) Domain() []any {
	domain := make([]any, len(f))
	for i, c := range f {
		domain[i] = []any{c.Field, c.Op, c.Value}
	}
	return domain
}

// IDGreaterThan filters for records with id strictly above the given value,
// the shape of an incremental pull.
func IDGreaterThan(id int64) Filter {
	return Filter{{Field: "id", Op: ">", Value: id}}
}

// ByGroup filters records belonging to one expense group.
func ByGroup(groupID int64) Filter {
	return Filter{{Field: "group_id", Op: "=", Value: groupID}}
}
