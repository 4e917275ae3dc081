// Package main hosts the hlscache CLI.
//
// `hlscache serve` runs the HTTP cache and its maintenance loop. The other
// commands operate directly on the record store and cache directories named in
// the configuration file, so they work whether or not a server is running:
// one-off eviction passes, usage reports, store initialization and listing,
// source backend verification, and configuration scaffolding.
package main
