package lstore

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/lib/db/engines/maple"
	"github.com/ValentinKolb/kvmig/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() store.IStore {
	return NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
}

func TestStringOperations(t *testing.T) {
	s := newStore()

	require.NoError(t, s.Set("k", []byte("v1")))
	require.NoError(t, s.SetIfUnset("k", []byte("v2")))

	v, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	has, err := s.Has("k")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.RenameIfUnset("k", "k2"))
	require.NoError(t, s.RenameIfUnset("missing", "k3"))

	keys, err := s.Keys("k*")
	require.NoError(t, err)
	assert.Equal(t, []string{"k2"}, keys)

	require.NoError(t, s.Delete("k2"))
	require.NoError(t, s.Delete("k2"))

	_, ok, err = s.Get("k2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashOperations(t *testing.T) {
	s := newStore()

	require.NoError(t, s.HSetIfUnset("h", "f", []byte("v")))
	require.NoError(t, s.HSetIfUnset("h", "f", []byte("other")))

	v, ok, err := s.HGet("h", "f")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, s.HDelete("h", "f"))
	has, err := s.Has("h")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestWrongTypeError(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Set("string", []byte("v")))

	err := s.HSetIfUnset("string", "f", []byte("v"))
	require.Error(t, err)

	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.RetCWrongType, storeErr.Code)
	assert.ErrorIs(t, err, db.ErrWrongType)

	_, _, err = s.Get("string")
	assert.NoError(t, err)
	_, _, err = s.HGet("string", "f")
	assert.ErrorIs(t, err, db.ErrWrongType)
}

func TestExec(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Set("app:user:1:username", []byte("username1")))

	results, err := s.Exec([]db.Command{
		{Type: db.CommandTHSetIfUnset, Key: "app:user:1:properties", Field: "username", Value: []byte("username1")},
		{Type: db.CommandTDelete, Key: "app:user:1:username"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Applied)
	assert.True(t, results[1].Applied)

	v, ok, err := s.HGet("app:user:1:properties", "username")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("username1"), v)

	has, err := s.Has("app:user:1:username")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestExecIsAtomic(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Set("a", []byte("a")))
	require.NoError(t, s.Set("string", []byte("s")))

	results, err := s.Exec([]db.Command{
		{Type: db.CommandTDelete, Key: "a"},
		{Type: db.CommandTHSetIfUnset, Key: "string", Field: "f", Value: []byte("v")},
	})
	assert.ErrorIs(t, err, db.ErrWrongType)
	assert.Nil(t, results)

	has, err := s.Has("a")
	require.NoError(t, err)
	assert.True(t, has, "failed batch must not delete keys")
}

func TestExecRejectsUnknownCommand(t *testing.T) {
	s := newStore()

	_, err := s.Exec([]db.Command{{Type: db.CommandType(200), Key: "a"}})
	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.RetCInvalidOperation, storeErr.Code)
}
