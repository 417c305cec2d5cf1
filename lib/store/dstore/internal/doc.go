// Package internal provides the query structures of the dstore package.
//
// Write operations do not need their own types here: every write is a list of
// db.Command encoded with db.EncodeBatch and proposed to the RAFT cluster as one
// log entry. A single Set is a batch with one command.
//
// Queries (Get, Has, HGet, Keys, GetDBInfo) are executed locally on the state machine
// via SyncRead or StaleRead and therefore are passed as plain Go values without
// serialization.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
package internal
