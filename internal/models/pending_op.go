package models

import "encoding/json"

// OpKind is the type of a queued mutation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// OpStatus is the queue lifecycle state of a pending operation.
type OpStatus string

const (
	// OpStatusPending means the operation has not been attempted yet (or is
	// waiting for the next drain after a failure reset).
	OpStatusPending OpStatus = "pending"

	// OpStatusInFlight means the operation is being dispatched right now.
	OpStatusInFlight OpStatus = "in_flight"

	// OpStatusFailed means the last dispatch failed; the operation will be
	// retried until it hits the retry ceiling.
	OpStatusFailed OpStatus = "failed"
)

// PendingOp is one queued mutation that must eventually reach the remote
// system. The queue is the single source of truth for outstanding work; the
// sync engine never infers pending mutations from cache contents.
type PendingOp struct {
	// ID is the local auto-increment queue id.
	ID int64

	// Kind is the mutation type.
	Kind OpKind

	// Entity is the remote collection the mutation targets.
	Entity EntityType

	// Payload holds the remote field map for create/update operations,
	// encoded as JSON. Empty for deletes.
	Payload json.RawMessage

	// LocalKey links a create operation back to the cache record whose key
	// must be rewritten once the server assigns an id. Empty otherwise.
	LocalKey string

	// RemoteID targets update/delete operations. Zero for creates.
	RemoteID int64

	// EnqueuedAt is the Unix timestamp (milliseconds) when the operation was
	// queued; it defines drain order.
	EnqueuedAt int64

	// Status is the queue lifecycle state.
	Status OpStatus

	// RetryCount is the number of failed dispatch attempts so far.
	RetryCount int

	// LastError is the message of the most recent failure, empty if none.
	LastError string
}
