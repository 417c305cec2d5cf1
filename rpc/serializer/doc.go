// Package serializer converts rpc messages to bytes and back.
//
// Implementations:
//
//   - Binary (NewBinarySerializer): a flag based format that only encodes the fields
//     present in a message. Commands of an Exec request use the same encoding as the
//     raft log entries of the replicated store (db.EncodeBatch). Smallest and fastest.
//   - JSON (NewJSONSerializer): human readable, useful for debugging with curl.
//   - GOB (NewGOBSerializer): Go's gob encoding.
//
// Client and server must use the same serializer. All implementations are stateless
// and safe for concurrent use.
package serializer
