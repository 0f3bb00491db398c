// Package itemstore persists per-item annotations (star rating, color tag)
// keyed by archive path.
//
// Two interchangeable backends implement Store: SQLiteStore (WAL-mode
// SQLite, the default for the gallery service) and BoltStore (pure-file
// bbolt, for deployments that cannot carry cgo). Records that return to
// their zero state are pruned rather than kept as empty rows.
//
// Accessor binds a Store to one item path and is the write-through target
// the metadata tracker uses.
package itemstore
