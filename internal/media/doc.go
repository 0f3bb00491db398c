// Package media provides the image-codec collaborator and the item-pairing
// logic of the tile engine.
//
// It decodes and scales preview images (with an optional libvips fast path
// and a pure-Go fallback), sniffs formats from file headers, and pairs
// archive files with their sibling preview images into immutable Handles.
package media
