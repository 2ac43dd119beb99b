package models

// Person represents a member of the expense-sharing group.
//
// People are remote master data: this system only ever reads them, so the
// cached copy is immutable from our perspective and refreshed wholesale on
// each pull.
type Person struct {
	// ID is the remote identifier.
	ID int64

	// DisplayName is the name shown in balances and settlements.
	DisplayName string

	// IsDefaultParticipant marks people pre-selected when recording a new
	// expense.
	IsDefaultParticipant bool
}

// Group represents a reusable set of people that expenses can belong to.
// Read-mostly: groups can be created and edited locally, but the remote
// copy is authoritative once synced.
type Group struct {
	// Key is the cache primary key (local key or decimal remote id).
	Key string

	// RemoteID is the server-assigned id, 0 if the group was never synced.
	RemoteID int64

	// DisplayName is the group's name (e.g. "Flatmates").
	DisplayName string

	// Members references the people in this group.
	Members []Ref

	// SyncState is the group's sync lifecycle state.
	SyncState SyncState
}
