// Command tilemeta is a maintenance CLI for the gallery's annotation
// store: show, set, and list ratings and color tags without running the
// service.
package main
