// Package services defines shared utilities consumed by the cache, rendition,
// and HTTP layers.
//
// Key responsibilities:
//   - Context helpers that stamp request correlation identifiers and the
//     rendition being served for logging.
//   - Structured error markers plus the Wrap helper so failures keep a
//     classifiable cause (not found, encoding, configuration) as they cross
//     package boundaries.
//   - HTTPStatus, which turns those markers into response codes.
//
// Wrap errors at the boundary where the classification is known; callers
// further up should only need errors.Is.
package services
