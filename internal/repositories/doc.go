// Package repositories implements the durable key/value slots behind [models.KVStore].
//
// Key Implementations:
//   - [SQLiteStore] : Rows in the kv_store table (default driver, migrations in the shared package)
//   - [FileStore] : A single JSON file on an afero filesystem, written via temp file + rename
//   - [MemoryStore] : Process-local map, used by tests and the "memory" driver
//
// [OpenStore] selects an implementation from the cache section of the configuration.
// Every implementation treats Set as an overwrite and Delete of a missing key as a no-op, which is what the token cache relies on when it supersedes or clears its slot.
package repositories
