// Package store provides a high-level interface for key-value storage operations
// with unified error handling. It serves as an abstraction layer over the lower-level
// db.KVDB implementations, adding write index management and standardized error reporting.
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations for interacting with
//     a key-value store holding string and hash values. Besides single operations it
//     offers Exec, which applies a list of db.Command atomically. The migration runner
//     commits its batches through Exec.
//
//   - Error System: A structured error reporting mechanism using typed return codes
//     and descriptive messages. Errors of the db layer are converted with FromDBError;
//     a wrong-type error still matches db.ErrWrongType with errors.Is after it crossed
//     the network.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances.
//
// Implementations:
//
//   - Local Store (lstore): A single-node implementation that directly uses a db.KVDB
//     instance and manages the write index with an atomic counter.
//
//   - Distributed Store (dstore): An implementation built on the Dragonboat RAFT
//     consensus library. Every write (including a whole Exec batch) is one raft
//     proposal, so all replicas apply a batch as a unit.
//
// The rpc/client package provides a third implementation that talks to a remote server.
package store
