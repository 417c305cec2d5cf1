// Package server implements the RPC server of kvmig. It decodes the requests a transport
// receives, executes them against the store of the addressed shard and encodes the response.
//
// Every shard is backed by a store.IStore:
//
//   - local:  an in-memory lstore on this node
//   - remote: a dstore replicated with raft (dragonboat) across the cluster members
//
// Usage Example:
//
//	config := common.ServerConfig{
//		Shards:      []common.ServerShard{{ShardID: 100, Type: common.ShardTypeLocalIStore}},
//		Endpoint:    "0.0.0.0:8080",
//		MetricsPath: "/metrics",
//		LogLevel:    "info",
//	}
//
//	s := server.NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewBinarySerializer())
//	if err := s.Serve(); err != nil {
//		log.Fatal(err)
//	}
//
// Errors of a store are never turned into transport errors: the response carries the return code
// and message of the *store.Error, so the client can restore it. Requests for unknown shards and
// requests that cannot be decoded are answered with an error message.
//
// Every request is counted in kvmig_rpc_requests_total{type,status} and timed in
// kvmig_rpc_request_duration_seconds{type}.
package server
