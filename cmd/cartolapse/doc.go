// Package main hosts the cartolapse CLI entrypoint and command graph.
//
// Running `cartolapse` with no subcommand renders the time-lapse for the
// configured (or most recent) checkpoint session. Subcommands inspect the
// catalog, import saves from the game, check the environment, and scaffold
// configuration. Flags on the root command override the matching TOML
// settings for a single run.
//
// Keep this package lean: the pipeline lives in internal/timelapse and its
// components; commands here only resolve configuration and render output.
package main
