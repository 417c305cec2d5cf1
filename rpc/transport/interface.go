package transport

import (
	"github.com/ValentinKolb/kvmig/rpc/common"
)

// ServerHandleFunc handles one serialized request for a shard and returns the serialized response.
// Errors are part of the response, a handler always returns a response.
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport receives requests and passes them to the registered handler.
type IRPCServerTransport interface {
	// RegisterHandler sets the handler requests are passed to. It must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen serves requests on config.Endpoint and blocks until the server stops
	Listen(config common.ServerConfig) error
}

// IRPCClientTransport sends requests to the endpoints of a client configuration.
type IRPCClientTransport interface {
	// Connect prepares the transport for the endpoints of the configuration
	Connect(config common.ClientConfig) error
	// Send sends a request for the shard and returns the response.
	// An error means the request did not reach any endpoint, not that the store failed.
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close releases idle connections
	Close() error
}
