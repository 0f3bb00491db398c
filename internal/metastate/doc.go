// Package metastate tracks one tile's mutable annotations: star rating,
// color tag, and selection.
//
// The tracker is the authoritative in-memory view; committed rating and
// color changes write through to the externally-owned item record. Every
// change appends a bounded history record that RollbackLast can revert.
// An optional batch mode coalesces rapid rating/color edits into a single
// write-through and notification; selection always commits immediately.
package metastate
