package models

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// SyncState describes where a cached record stands relative to the remote
// system.
type SyncState string

const (
	// SyncStateSynced means the record matches a server-confirmed copy and
	// carries a remote id.
	SyncStateSynced SyncState = "synced"

	// SyncStatePending means the record has local changes that have not yet
	// reached the server.
	SyncStatePending SyncState = "pending"

	// SyncStateFailed means the last attempt to upload the record failed.
	SyncStateFailed SyncState = "failed"
)

// EntityType identifies a remote collection.
type EntityType string

const (
	EntityExpense EntityType = "expense"
	EntityGroup   EntityType = "group"
	EntityPerson  EntityType = "person"
)

// LocalKeyPrefix marks cache keys generated on this device for records that
// have never been synced. Remote ids are plain decimal strings.
const LocalKeyPrefix = "local-"

// NewLocalKey returns a fresh cache key for a record created offline.
func NewLocalKey() string {
	return LocalKeyPrefix + uuid.New().String()
}

// IsLocalKey reports whether key was generated locally (vs. a remote id).
func IsLocalKey(key string) bool {
	return len(key) > len(LocalKeyPrefix) && key[:len(LocalKeyPrefix)] == LocalKeyPrefix
}

// RemoteKey returns the cache key for a remote id.
func RemoteKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ExpenseRecord represents one shared expense in the local cache.
//
// Key is the cache primary key: either a local-only key (offline create,
// SyncState pending) or the decimal remote id once synced. RemoteID is zero
// until the server has assigned an id.
type ExpenseRecord struct {
	// Key is the cache primary key (local key or decimal remote id).
	Key string

	// RemoteID is the server-assigned id, 0 if the record was never synced.
	RemoteID int64

	// Description is the human-readable expense description.
	Description string

	// Amount is the expense total. Never negative.
	Amount float64

	// Payer references the person who paid.
	Payer Ref

	// Participants are the people splitting the expense. A valid record has
	// at least one participant.
	Participants []Ref

	// Date is the expense date in ISO form (YYYY-MM-DD), matching the wire
	// format of the remote API.
	Date string

	// Category is a free-form tag (e.g. "groceries").
	Category string

	// Group optionally references the expense group this record belongs to.
	// A zero Ref means no group.
	Group Ref

	// Settled marks expenses already accounted for in a past settlement.
	Settled bool

	// SyncState is the record's sync lifecycle state.
	SyncState SyncState
}

// Validate checks the structural invariants of a record.
func (e *ExpenseRecord) Validate() error {
	if e.Key == "" {
		return fmt.Errorf("expense record has no key")
	}
	if e.Amount < 0 {
		return fmt.Errorf("expense amount must not be negative, got %v", e.Amount)
	}
	if len(e.Participants) == 0 {
		return fmt.Errorf("expense must have at least one participant")
	}
	if e.SyncState == SyncStateSynced && e.RemoteID == 0 {
		return fmt.Errorf("synced expense %q has no remote id", e.Key)
	}
	return nil
}
