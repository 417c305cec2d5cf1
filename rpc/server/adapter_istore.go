package server

import (
	"fmt"

	"github.com/ValentinKolb/kvmig/lib/store"
	"github.com/ValentinKolb/kvmig/rpc/common"
)

// NewIStoreServerAdapter returns the adapter exposing all store.IStore operations
func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTKVSet:
		return common.NewResponse(req.MsgType, s.Set(req.Key, req.Value))
	case common.MsgTKVSetIfUnset:
		return common.NewResponse(req.MsgType, s.SetIfUnset(req.Key, req.Value))
	case common.MsgTKVDelete:
		return common.NewResponse(req.MsgType, s.Delete(req.Key))
	case common.MsgTKVHSetIfUnset:
		return common.NewResponse(req.MsgType, s.HSetIfUnset(req.Key, req.Field, req.Value))
	case common.MsgTKVHDelete:
		return common.NewResponse(req.MsgType, s.HDelete(req.Key, req.Field))
	case common.MsgTKVRenameIfUnset:
		return common.NewResponse(req.MsgType, s.RenameIfUnset(req.Key, req.Target))
	case common.MsgTKVGet:
		val, ok, err := s.Get(req.Key)
		return common.NewValueResponse(req.MsgType, val, ok, err)
	case common.MsgTKVHGet:
		val, ok, err := s.HGet(req.Key, req.Field)
		return common.NewValueResponse(req.MsgType, val, ok, err)
	case common.MsgTKVHas:
		ok, err := s.Has(req.Key)
		return common.NewHasResponse(ok, err)
	case common.MsgTKVKeys:
		keys, err := s.Keys(req.Key)
		return common.NewKeysResponse(keys, err)
	case common.MsgTKVExec:
		results, err := s.Exec(req.Commands)
		return common.NewExecResponse(results, err)
	case common.MsgTKVInfo:
		info, err := s.GetDBInfo()
		return common.NewInfoResponse(info, err)
	default:
		return common.NewErrorResponse(fmt.Sprintf("unsupported message type: %s", req.MsgType))
	}
}
