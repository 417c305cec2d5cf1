// Package transport defines how serialized rpc requests reach a shard and how the
// response gets back. A server transport receives requests and routes them to the
// registered ServerHandleFunc together with the shard ID, a client transport sends
// requests to one of its endpoints.
//
// Implementations:
//
//   - http: one POST per request, also serves the metrics endpoint.
//   - tcp, unix: framed requests multiplexed over pooled sockets (see the base subpackage).
package transport
