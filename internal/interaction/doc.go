// Package interaction classifies raw pointer and keyboard input on a tile
// into semantic gestures: thumbnail clicks, filename clicks, context-menu
// requests, and drag initiation.
//
// Drag recognition is a three-state machine (idle, press-detected,
// drag-active) driven by the Manhattan distance from the press position.
// The tracker runs on the UI loop and is not goroutine-safe.
package interaction
