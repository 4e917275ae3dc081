// Package source retrieves original media files into the local input cache.
//
// A Fetcher is selected once from configuration by New: Filesystem copies
// from a local directory, HTTP streams from a web server with a bounded
// timeout, and S3 downloads from an S3-compatible bucket. Every fetcher
// writes to a temporary file beside the destination and renames it into
// place, so a partially retrieved file is never visible under the cache key.
// A missing source is reported as services.ErrNotFound.
//
// PickSample and Verify back the `hlscache source verify` command, which
// checks that a fetched copy is byte-identical to its source.
package source
