// Package checkpoint discovers save files, derives their sortable image names
// and session grouping, and imports saves from the game's save directory.
//
// An Artifact is created at discovery time. Its raster flags reflect what is
// already on disk and are only flipped afterwards by a successful acquisition.
package checkpoint
