// Package eviction reclaims cache space in two sweeps per namespace.
//
// The age sweep deletes every entry whose record is older than the
// namespace age threshold. The capacity sweep then deletes the least
// recently touched entry, one at a time, while the namespace root holds more
// than its threshold percentage of the configured capacity. Usage is
// recomputed with a full directory walk before every capacity decision.
//
// Deleting an entry removes its file or directory tree, then its record,
// then any directories left empty between the entry and the namespace root.
// The root itself is never removed.
//
// Failures are contained: a missing namespace root is logged at critical
// level and only that namespace is skipped, and a failed deletion is logged
// and excluded from the rest of the pass. Clean only returns an error when
// its context is cancelled.
//
// Use `hlscache cache stats` to inspect usage and `hlscache clean` to run a
// single pass by hand.
package eviction
