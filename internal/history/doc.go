// Package history holds the append-only edit log of a content package.
//
// Every manifest is derived from the log: the manifest maps each path to the
// edit with the highest version recorded for it. Deleted files keep their
// entry (with Operation == model.Deleted) so a later add of the same path
// continues the version sequence instead of restarting it.
//
// The log is persisted either as a text ledger (see Serialize and Parse) or in
// a SQLite table; both implement Store.
package history
