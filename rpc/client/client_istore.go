package client

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/lib/store"
	"github.com/ValentinKolb/kvmig/rpc/common"
	"github.com/ValentinKolb/kvmig/rpc/serializer"
	"github.com/ValentinKolb/kvmig/rpc/transport"
)

// NewRPCStore connects the transport and returns a store.IStore for the shard
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *rpcStore) Set(key string, value []byte) error {
	_, err := s.invoke(common.NewSetRequest(key, value))
	return err
}

func (s *rpcStore) SetIfUnset(key string, value []byte) error {
	_, err := s.invoke(common.NewSetIfUnsetRequest(key, value))
	return err
}

func (s *rpcStore) Delete(key string) error {
	_, err := s.invoke(common.NewDeleteRequest(key))
	return err
}

func (s *rpcStore) HSetIfUnset(key, field string, value []byte) error {
	_, err := s.invoke(common.NewHSetIfUnsetRequest(key, field, value))
	return err
}

func (s *rpcStore) HDelete(key, field string) error {
	_, err := s.invoke(common.NewHDeleteRequest(key, field))
	return err
}

func (s *rpcStore) RenameIfUnset(key, newKey string) error {
	_, err := s.invoke(common.NewRenameIfUnsetRequest(key, newKey))
	return err
}

func (s *rpcStore) Get(key string) ([]byte, bool, error) {
	resp, err := s.invoke(common.NewGetRequest(key))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (s *rpcStore) HGet(key, field string) ([]byte, bool, error) {
	resp, err := s.invoke(common.NewHGetRequest(key, field))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (s *rpcStore) Has(key string) (bool, error) {
	resp, err := s.invoke(common.NewHasRequest(key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *rpcStore) Keys(pattern string) ([]string, error) {
	resp, err := s.invoke(common.NewKeysRequest(pattern))
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

func (s *rpcStore) Exec(cmds []db.Command) ([]db.Result, error) {
	resp, err := s.invoke(common.NewExecRequest(cmds))
	if err != nil {
		return nil, err
	}
	if len(resp.Results) != len(cmds) {
		return nil, fmt.Errorf("rpc exec: got %d results for %d commands", len(resp.Results), len(cmds))
	}
	return resp.Results, nil
}

func (s *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := s.invoke(common.NewInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return db.DatabaseInfo{}, fmt.Errorf("rpc info: %w", err)
	}
	return info, nil
}
