// Package config loads, normalizes, and validates hlscache configuration data.
//
// It supplies repository defaults (matching the long-standing cache
// thresholds), expands user paths, reads TOML files, loads optional .env
// files, and applies HLSCACHE_<SECTION>_<OPTION> environment overrides. The
// Config value is passed explicitly into every component constructor; nothing
// reads configuration through package-level state.
package config
