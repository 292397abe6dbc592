// Package catalog persists what cartolapse knows about each checkpoint in a
// SQLite database under the output directory.
//
// Rows are keyed by image name. Sync records newly discovered artifacts and
// refreshes the on-disk raster flags, the scheduler hooks flip rows to
// acquired or failed, and the status command lists the result. The catalog is
// a record, not the source of truth: raster files on disk always win at Sync.
package catalog
