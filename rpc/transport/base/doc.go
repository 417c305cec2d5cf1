// Package base implements the socket transports of the rpc layer independent of the
// network (tcp or unix sockets). The tcp and unix packages only add a connector that
// dials, listens and tunes the sockets.
//
// Requests and responses are frames on a stream:
//
//	8 bytes shard ID | 8 bytes request ID | 4 bytes payload length | payload
//
// The request ID correlates a response with its request, so one connection carries
// many requests at once. Payloads are limited to 64 MB.
//
// The client keeps ConnectionsPerEndpoint connections to every endpoint and picks
// them round-robin. A connection that breaks fails the requests waiting on it and is
// dialed again when it is picked next. A failed request is retried on the next
// connection after an exponential backoff (50 ms, doubled per attempt, +-10% jitter).
//
// The server reads the requests of a connection in one goroutine and answers up to
// WorkersPerConn of them concurrently. Payload buffers come from a sync.Pool.
package base
