// Package browser acquires checkpoints by driving the interactive map in a
// Chromium instance through go-rod.
//
// Each scheduler worker owns one browser for its lifetime. A job opens a
// fresh page, uploads the save, waits for the loader to disappear, strips the
// map down to the factory layer, zooms, and captures two rasters: a clipped
// screenshot of the map element and the overlay canvas re-aligned to that
// screenshot so both share one coordinate system.
package browser
