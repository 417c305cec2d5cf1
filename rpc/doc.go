// Package rpc makes stores reachable over the network, so migrations and the kv
// commands can run against a remote server.
//
// Subpackages:
//
//   - common: the Message protocol, configuration and logging.
//   - serializer: converts messages to bytes (binary, JSON or GOB).
//   - transport: moves the bytes of a request to a shard and back (HTTP, TCP or unix sockets).
//   - server: dispatches requests to the store of a shard (local or raft replicated).
//   - client: implements store.IStore on top of a transport and a serializer.
package rpc
