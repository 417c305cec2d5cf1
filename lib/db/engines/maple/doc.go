// Package maple implements an in-memory key-value database (KVDB) holding string
// and hash values. It provides a complete implementation of the db.KVDB interface.
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It manages the
//     shards and a monotonically increasing write index. The write index is not
//     generated by the database itself, the caller passes it with every write
//     (e.g. the raft log index of the proposal that carried the write).
//
//   - Shard: A partition of the key space backed by an xsync.MapOf. Keys are mapped
//     to shards by hashing them with FNV-1a and right-shifting the hash by 7 bits.
//
//   - Entry: A value with metadata. An entry is either a string (Value) or a hash
//     (Fields). Entries are never modified in place, hash updates store a new copy.
//
// Concurrency:
//
// Single-key operations run concurrently and rely on the atomic Compute of the shard map.
// Operations spanning several keys (RenameIfUnset, Apply, Load) hold an exclusive gate,
// so a batch applied with Apply is never observed half-done.
//
// Apply records the previous entry of every key before touching it. If a command of the
// batch fails (e.g. a hash operation on a string key) all recorded entries are restored
// and the error is returned.
//
// Stale writes, whose write index is lower than the index stored with the entry, are ignored.
//
// Persistence Format:
//  1. Magic number "MAPLEDB\x00"
//  2. Version number (currently 4)
//  3. Number of entries
//  4. For each entry: key, kind, index, then the value (strings) or the field count
//     followed by field/value pairs (hashes)
//
// Entries are written in key order so equal databases produce equal snapshots.
package maple
