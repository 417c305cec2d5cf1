package migration

import (
	"errors"
	"regexp"
	"testing"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{CmdMoveHashFieldsToKeys, CmdMoveKeysToHashFields, CmdRenameKeys}, r.Names())
	assert.True(t, r.Has(CmdRenameKeys))
	assert.False(t, r.Has("dropKeys"))

	_, ok := r.Lookup(CmdMoveKeysToHashFields)
	assert.True(t, ok)

	err := r.Register(CmdRenameKeys, CommandFunc(renameKeys))
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	called := false
	require.NoError(t, r.Register("noop", CommandFunc(func(SourceSpec, DestSpec, []string, *Batch) error {
		called = true
		return nil
	})))
	cmd, ok := r.Lookup("noop")
	require.True(t, ok)
	require.NoError(t, cmd.Apply(SourceSpec{}, DestSpec{}, nil, nil))
	assert.True(t, called)
}

func TestMoveKeysToHashFields(t *testing.T) {
	s := newFixtureStore(t)
	batch := NewBatch(s)

	src := SourceSpec{Key: regexp.MustCompile(`(app:user:[12]):username`)}
	dst := DestSpec{Key: "$1:properties", Field: "username"}
	keys := []string{"app:user:1:username", "app:user:2:username"}

	require.NoError(t, moveKeysToHashFields(src, dst, keys, batch))

	assert.Equal(t, []db.Command{
		{Type: db.CommandTHSetIfUnset, Key: "app:user:1:properties", Field: "username", Value: []byte("username1")},
		{Type: db.CommandTDelete, Key: "app:user:1:username"},
		{Type: db.CommandTHSetIfUnset, Key: "app:user:2:properties", Field: "username", Value: []byte("username2")},
		{Type: db.CommandTDelete, Key: "app:user:2:username"},
	}, batch.Commands())
}

func TestMoveKeysToHashFieldsSkipsNonMatchingKeys(t *testing.T) {
	s := newFixtureStore(t)
	batch := NewBatch(s)

	src := SourceSpec{Key: regexp.MustCompile(`(app:user:[12]):username`)}
	dst := DestSpec{Key: "$1:properties", Field: "username"}
	keys := []string{"app:user:3:username", "app:user:1:address", "app:post:1:content"}

	require.NoError(t, moveKeysToHashFields(src, dst, keys, batch))
	assert.Equal(t, 0, batch.Len())
}

func TestMoveKeysToHashFieldsRequiresDestinationField(t *testing.T) {
	for _, keys := range [][]string{nil, {}, {"app:user:1:username"}} {
		rec := newRecordingStore(newFixtureStore(t))
		batch := NewBatch(rec)

		err := moveKeysToHashFields(
			SourceSpec{Key: regexp.MustCompile(`(app:user:\d+):username`)},
			DestSpec{Key: "$1:properties"},
			keys, batch)

		assert.ErrorIs(t, err, ErrMissingDestinationField)
		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, CmdMoveKeysToHashFields, cmdErr.Cmd)
		assert.Empty(t, cmdErr.Key)
		assert.Equal(t, 0, rec.getCalls, "no key may be examined")
		assert.Equal(t, 0, batch.Len())
	}
}

func TestMoveKeysToHashFieldsReadError(t *testing.T) {
	rec := newRecordingStore(newFixtureStore(t))
	readErr := errors.New("connection lost")
	rec.getErr = readErr
	batch := NewBatch(rec)

	err := moveKeysToHashFields(
		SourceSpec{Key: regexp.MustCompile(`(app:user:\d+):username`)},
		DestSpec{Key: "$1:properties", Field: "username"},
		[]string{"app:user:1:username", "app:user:2:username"}, batch)

	assert.ErrorIs(t, err, readErr)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "app:user:1:username", cmdErr.Key)
	assert.Equal(t, 1, rec.getCalls, "processing stops at the first error")
}

func TestMoveKeysToHashFieldsSkipsVanishedKeys(t *testing.T) {
	s := newFixtureStore(t)
	batch := NewBatch(s)

	err := moveKeysToHashFields(
		SourceSpec{Key: regexp.MustCompile(`(app:user:\d+):username`)},
		DestSpec{Key: "$1:properties", Field: "username"},
		[]string{"app:user:9:username", "app:user:1:username"}, batch)

	require.NoError(t, err)
	assert.Equal(t, 2, batch.Len())
	assert.Equal(t, "app:user:1:properties", batch.Commands()[0].Key)
}

func TestMoveHashFieldsToKeys(t *testing.T) {
	s := newFixtureStore(t)
	require.NoError(t, s.HSetIfUnset("app:user:1:properties", "address", []byte("user1 address")))
	require.NoError(t, s.HSetIfUnset("app:user:2:properties", "username", []byte("username2")))
	batch := NewBatch(s)

	src := SourceSpec{Key: regexp.MustCompile(`(app:user:\d+):properties`), Field: "address"}
	dst := DestSpec{Key: "$1:address"}
	keys := []string{"app:user:1:properties", "app:user:2:properties", "app:user:1:address"}

	require.NoError(t, moveHashFieldsToKeys(src, dst, keys, batch))

	// user 2 has no address field
	assert.Equal(t, []db.Command{
		{Type: db.CommandTSet, Key: "app:user:1:address", Value: []byte("user1 address")},
		{Type: db.CommandTHDelete, Key: "app:user:1:properties", Field: "address"},
	}, batch.Commands())
}

func TestMoveHashFieldsToKeysRequiresSourceField(t *testing.T) {
	batch := NewBatch(newFixtureStore(t))

	err := moveHashFieldsToKeys(
		SourceSpec{Key: regexp.MustCompile(`(app:user:\d+):properties`)},
		DestSpec{Key: "$1:address"},
		nil, batch)

	assert.ErrorIs(t, err, ErrMissingSourceField)
}

func TestMoveHashFieldsToKeysWrongType(t *testing.T) {
	batch := NewBatch(newFixtureStore(t))

	err := moveHashFieldsToKeys(
		SourceSpec{Key: regexp.MustCompile(`(app:user:\d+):username`), Field: "x"},
		DestSpec{Key: "$1:name"},
		[]string{"app:user:1:username"}, batch)

	assert.ErrorIs(t, err, db.ErrWrongType)
}

func TestRenameKeys(t *testing.T) {
	batch := NewBatch(newFixtureStore(t))

	src := SourceSpec{Key: regexp.MustCompile(`(app:post:\d+):lastModifiedTimestamp`)}
	dst := DestSpec{Key: "$1:lastModified"}
	keys := []string{"app:post:1:content", "app:post:1:lastModifiedTimestamp", "app:post:2:lastModifiedTimestamp"}

	require.NoError(t, renameKeys(src, dst, keys, batch))

	assert.Equal(t, []db.Command{
		{Type: db.CommandTRenameIfUnset, Key: "app:post:1:lastModifiedTimestamp", Target: "app:post:1:lastModified"},
		{Type: db.CommandTRenameIfUnset, Key: "app:post:2:lastModifiedTimestamp", Target: "app:post:2:lastModified"},
	}, batch.Commands())
}
