package server

import (
	"github.com/ValentinKolb/kvmig/lib/store"
	"github.com/ValentinKolb/kvmig/rpc/common"
)

// IRPCServerAdapter translates requests into calls of a store.
type IRPCServerAdapter interface {
	// Handle executes the request against the store and returns the response.
	// Errors are returned inside the response, never as a nil response.
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}
