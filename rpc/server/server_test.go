package server

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/lib/db/engines/maple"
	"github.com/ValentinKolb/kvmig/lib/store"
	"github.com/ValentinKolb/kvmig/lib/store/lstore"
	"github.com/ValentinKolb/kvmig/rpc/common"
	"github.com/ValentinKolb/kvmig/rpc/serializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShard = 100

func newTestServer(t *testing.T, s serializer.IRPCSerializer) *RPCServer {
	t.Helper()
	srv := NewRPCServer(common.ServerConfig{}, nil, s)
	srv.AddShard(testShard, lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }))
	return srv
}

// roundTrip serializes the request, lets the server handle it and decodes the response
func roundTrip(t *testing.T, srv *RPCServer, s serializer.IRPCSerializer, shardId uint64, req *common.Message) *common.Message {
	t.Helper()
	data, err := s.Serialize(*req)
	require.NoError(t, err)

	var resp common.Message
	require.NoError(t, s.Deserialize(srv.Handle(shardId, data), &resp))
	return &resp
}

func TestHandle(t *testing.T) {
	for name, s := range map[string]serializer.IRPCSerializer{
		"binary": serializer.NewBinarySerializer(),
		"json":   serializer.NewJSONSerializer(),
		"gob":    serializer.NewGOBSerializer(),
	} {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, s)

			resp := roundTrip(t, srv, s, testShard, common.NewSetRequest("app:user:1:username", []byte("u1")))
			require.NoError(t, resp.AsError())
			assert.Equal(t, common.MsgTKVSet, resp.MsgType)

			resp = roundTrip(t, srv, s, testShard, common.NewGetRequest("app:user:1:username"))
			require.NoError(t, resp.AsError())
			assert.True(t, resp.Ok)
			assert.Equal(t, []byte("u1"), resp.Value)

			resp = roundTrip(t, srv, s, testShard, common.NewExecRequest([]db.Command{
				{Type: db.CommandTHSetIfUnset, Key: "app:user:1:properties", Field: "username", Value: []byte("u1")},
				{Type: db.CommandTDelete, Key: "app:user:1:username"},
			}))
			require.NoError(t, resp.AsError())
			require.Len(t, resp.Results, 2)
			assert.True(t, resp.Results[0].Applied)

			resp = roundTrip(t, srv, s, testShard, common.NewKeysRequest("app:user:*"))
			require.NoError(t, resp.AsError())
			assert.Equal(t, []string{"app:user:1:properties"}, resp.Keys)

			resp = roundTrip(t, srv, s, testShard, common.NewHGetRequest("app:user:1:properties", "username"))
			require.NoError(t, resp.AsError())
			assert.Equal(t, []byte("u1"), resp.Value)

			resp = roundTrip(t, srv, s, testShard, common.NewInfoRequest())
			require.NoError(t, resp.AsError())
			assert.NotEmpty(t, resp.Meta)
		})
	}
}

func TestHandleWrongType(t *testing.T) {
	s := serializer.NewBinarySerializer()
	srv := newTestServer(t, s)

	roundTrip(t, srv, s, testShard, common.NewSetRequest("k", []byte("v")))
	resp := roundTrip(t, srv, s, testShard, common.NewHGetRequest("k", "f"))

	err := resp.AsError()
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrWrongType))

	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, store.RetCWrongType, storeErr.Code)
}

func TestHandleUnknownShard(t *testing.T) {
	s := serializer.NewBinarySerializer()
	srv := newTestServer(t, s)

	resp := roundTrip(t, srv, s, 7, common.NewGetRequest("k"))
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Contains(t, resp.Err, "shard 7 not found")
}

func TestHandleInvalidRequest(t *testing.T) {
	s := serializer.NewBinarySerializer()
	srv := newTestServer(t, s)

	var resp common.Message
	require.NoError(t, s.Deserialize(srv.Handle(testShard, []byte{1}), &resp))
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Error(t, resp.AsError())

	resp = *roundTrip(t, srv, s, testShard, &common.Message{MsgType: common.MsgTCustom})
	assert.Contains(t, resp.Err, "unsupported message type")
}
