// Package history journals every executed conversion in a SQLite database
// under the state directory.
//
// The journal is append-only during a run and read by `mvx history`. Writes
// retry on SQLITE_BUSY so concurrent mvx processes can share one database.
package history
