// Package models defines the core domain models for splitsync.
//
// # Models
//
//   - ExpenseRecord: a shared expense held in the local cache, either
//     synced with the remote system or pending upload
//   - Person: read-only reference entity cached from remote master data
//   - Group: a named set of people that expenses can belong to
//   - PendingOp: a queued mutation that must eventually reach the remote
//     system
//   - Ref: a normalized reference to a remote record (id plus optional
//     display name)
//
// # Design Principles
//
//  1. Records carry their own sync lifecycle (SyncState) so the cache can
//     distinguish local-only data from server-confirmed data.
//  2. Relational fields always use Ref; the three wire shapes the remote
//     API uses (bare id, id/name pair, lists of either) are normalized at
//     the remote client boundary and never leak above it.
//  3. A record created offline gets an opaque local key; the key is
//     replaced by the remote id after a successful upload and is never
//     reused as a remote id.
package models
