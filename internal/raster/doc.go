// Package raster holds the pure image analysis used by the time-lapse:
// sentinel-color region detection on a reference screenshot, alpha-based zoom
// tracking on transparency overlays, and PNG load/save helpers.
//
// Detection is exact-match. Renders are assumed to be pixel-reproducible and
// free of anti-aliasing along the sentinel edges; no tolerance is applied.
//
// The session region is deliberately left unclamped: padding may push it to
// negative coordinates or past the raster edge, and callers treat the area
// outside the screenshot as transparent. Zoom windows are always clamped
// inside the region.
package raster
