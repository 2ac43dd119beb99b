// Package remote defines the typed wrapper around the remote CRUD API and
// normalizes its relational field shapes at the boundary.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/splitsync/splitsync/internal/models"
)

// Client is a stateless request/response wrapper around the remote CRUD API.
// Each call is a single request/response with no partial results: it succeeds
// as a unit or fails as a unit.
type Client interface {
	// Create inserts a record and returns the server-assigned id.
	Create(ctx context.Context, entity models.EntityType, fields map[string]any) (int64, error)

	// Update writes a partial field set to an existing record.
	Update(ctx context.Context, entity models.EntityType, id int64, fields map[string]any) error

	// Delete removes a record by id.
	Delete(ctx context.Context, entity models.EntityType, id int64) error

	// SearchRead runs a filtered query with a field projection.
	SearchRead(ctx context.Context, entity models.EntityType, filter Filter, fields []string) ([]Record, error)

	// SearchCount returns the number of records matching the filter.
	SearchCount(ctx context.Context, entity models.EntityType, filter Filter) (int, error)
}

// NetworkError wraps transport failures and malformed responses: the remote
// system was unreachable or returned something undecodable. Background sync
// treats these as retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError reports that the remote system rejected a payload. The
// message is opaque at this layer; the queue surfaces it in aggregate.
type ValidationError struct {
	Op      string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("remote rejected %s: %s", e.Op, e.Message)
}

// IsNetwork reports whether err is (or wraps) a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
