// Package credential persists the bearer credential that gates every
// protected call, the Go counterpart of the browser's local storage entry.
//
// Two backends implement Store:
//
//   - FileStore: a single token file, by default ~/.config/tutorchat/token
//   - SQLiteStore: a key/value "local_storage" table in a SQLite database
//
// MemoryStore is provided for tests and ephemeral sessions.
//
// The credential is stored under the fixed key "token". Callers never read
// the store from deep components; the session package owns it.
package credential
