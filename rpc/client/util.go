package client

import (
	"fmt"

	"github.com/ValentinKolb/kvmig/rpc/common"
	"github.com/ValentinKolb/kvmig/rpc/serializer"
	"github.com/ValentinKolb/kvmig/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter holds everything a client needs to send requests to one shard
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends the request and returns the response.
// Errors returned by the remote store are restored as *store.Error.
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	respBytes, err := a.transport.Send(a.shardId, reqBytes)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", req.MsgType, err)
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("rpc %s: invalid response: %w", req.MsgType, err)
	}

	if err := resp.AsError(); err != nil {
		return nil, err
	}

	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("rpc %s: unexpected response type %s", req.MsgType, resp.MsgType)
	}
	return resp, nil
}
