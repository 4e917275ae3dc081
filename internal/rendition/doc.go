// Package rendition orchestrates lazy generation of HLS output.
//
// A Unit covers one rendition: it makes the source available locally,
// invokes the segmenter when the media playlist is missing, and touches the
// record store so eviction knows the entry is in use. An Aggregator groups
// units behind a master playlist and tolerates missing sources as long as
// at least one rendition is available.
//
// Units and aggregators live for one request. The Factory carries the
// shared collaborators (settings, record store, fetcher, segmenter) so
// nothing is resolved from package state.
//
// Concurrent misses for the same rendition are not coalesced: two requests
// racing on a cold key both run the segmenter, and the last writer wins.
package rendition
