// Package sync implements the remote side of a content sync.
//
// A sync request carries a batch of client-proposed file operations. The
// Reconciler decides per file whether to apply it, three-way merge it with the
// remote's edits, or report one of the conflict shapes of model.SyncStatus.
// The Differ finds remote changes the client has not seen, and the Engine
// assembles both into a model.SyncResponse.
//
// # Batches
//
// A batch is all or nothing. Every tree and version-file mutation is recorded
// in a journal; when any write, removal or the log append fails the journal is
// replayed backwards and nothing is appended to the edit log. Conflicts are
// results, not failures, and never cause a rollback.
//
// # Locking
//
// Each package is served by one Engine holding a mutex around the critical
// section:
//
//	load log -> derive manifest -> reconcile -> write versions -> append -> assemble
//
// Ancestor and "theirs" contents are prefetched concurrently before the lock
// is taken. Stored versions never change, so prefetched bytes stay valid; any
// content the reconciler needs that was not prefetched is read inside the lock.
package sync
