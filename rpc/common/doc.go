// Package common holds the types shared by the rpc client, server and transports.
//
//   - Message: the single request and response type of the protocol. Which fields are
//     set depends on the MessageType. Errors of a store travel as return code and message
//     and are restored as *store.Error on the client (Message.AsError), so
//     errors.Is(err, db.ErrWrongType) works across the network.
//
//   - ServerConfig and ClientConfig: configuration of servers (shards, raft parameters,
//     endpoint, metrics) and clients (endpoints, timeout, retries).
//
//   - Logger: an implementation of dragonboat's logger.ILogger used for all packages of
//     the module. Call InitLoggers once at startup.
package common
