// Package db provides a standardized interface for key-value database implementations.
// It defines the KVDB interface that allows for consistent interaction with various
// database backends while abstracting implementation details.
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     Every key holds either a string value or a hash (fields mapped to values). It provides
//     methods for string operations (Set, SetIfUnset, Get, Delete, Has), hash operations
//     (HSetIfUnset, HGet, HDelete), key operations (RenameIfUnset, Keys), atomic batches
//     (Apply) and persistence (Save, Load).
//
//   - Command: A single write operation with a compact binary encoding. Lists of commands
//     are applied atomically with KVDB.Apply and travel through the raft log as one entry
//     (EncodeBatch, DecodeBatch).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure reports key counts, the
//     implementation type and implementation-specific metadata.
//
// Note on Write Indices:
//   - All write operations take a write-index that serves as a logical timestamp. It is
//     stored with the entry and used to ignore stale writes.
//   - The write-index of a database only increases. Attempts to set a lower index are ignored.
//
// Related Packages:
//
// The engines/maple package provides a sharded in-memory implementation of the KVDB interface.
//
// The testing package provides a conformance suite (RunKVDBTests) and benchmarks
// (RunKVDBBenchmarks) for implementations of the KVDB interface.
package db
