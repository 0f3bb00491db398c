// Package tile composes one gallery tile: thumbnail loading, metadata
// tracking, and interaction handling, wired over a private event bus and
// registered in the shared resource pool.
//
// The controller translates collaborator notifications into outward
// signals (preview requested, archive open requested, rating changed, and
// so on) so callers never touch the collaborators directly.
package tile
