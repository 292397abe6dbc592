// Package preflight provides readiness checks for the filesystem paths and
// external binaries cartolapse depends on.
//
// The pipeline calls RunAll before acquiring anything so a missing ffmpeg or a
// read-only output tree is reported up front instead of after an hour of
// browser work. The status command reuses the individual checks.
package preflight
