// Package recordstore persists cache bookkeeping records in SQLite.
//
// Each namespace (segment outputs, mirrored inputs) is a table of
// (key, last_touched) rows. A Store holds only the database path: every
// operation opens a connection, executes, commits and closes, so any number
// of processes can share the file. Init must run once outside the request
// path to switch the database into WAL mode and create the conventional
// namespaces.
//
// Namespace names are reduced to ASCII letters and digits. When that changes
// the requested name a warning is logged and the sanitized name is used, so
// callers must not assume the literal name reached the database.
package recordstore
