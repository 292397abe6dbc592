// Package config loads, normalizes, and validates cartolapse configuration data.
//
// It supplies repository defaults (padding, frame timing, worker counts),
// expands user paths including tilde shortcuts, reads TOML files, and honours
// environment fallbacks such as CARTOLAPSE_GAME_SAVES and
// CARTOLAPSE_BROWSER_URL. Derived locations for screenshots, overlays, frame
// dumps, the catalog, and the run lock all hang off the output directory.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
