package migration

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/lib/db/engines/maple"
	"github.com/ValentinKolb/kvmig/lib/store"
	"github.com/ValentinKolb/kvmig/lib/store/lstore"
	"github.com/stretchr/testify/require"
)

var userData = map[string]string{
	"app:user:1:username": "username1",
	"app:user:2:username": "username2",
	"app:user:3:username": "username3",
	"app:user:1:address":  "user1 address",
	"app:user:2:address":  "user2 address",
	"app:user:3:address":  "user3 address",
}

var postData = map[string]string{
	"app:post:1:content":               "post1 content",
	"app:post:2:content":               "post2 content",
	"app:post:3:content":               "post3 content",
	"app:post:1:lastModifiedTimestamp": "1397825120",
	"app:post:2:lastModifiedTimestamp": "1397825130",
	"app:post:3:lastModifiedTimestamp": "1397825140",
}

// newFixtureStore returns a local store holding the user and post fixtures
func newFixtureStore(t *testing.T) store.IStore {
	t.Helper()
	s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
	for _, data := range []map[string]string{userData, postData} {
		for k, v := range data {
			require.NoError(t, s.Set(k, []byte(v)))
		}
	}
	return s
}

// dump returns all string keys and hash fields of the store, hash fields as "key[field]"
func dump(t *testing.T, s store.IStore) map[string]string {
	t.Helper()
	keys, err := s.Keys("*")
	require.NoError(t, err)

	out := make(map[string]string)
	for _, key := range keys {
		value, ok, err := s.Get(key)
		if err == nil {
			require.True(t, ok)
			out[key] = string(value)
			continue
		}
		// hash, check the fields used by the tests
		for _, field := range []string{"username", "address", "content"} {
			v, ok, err := s.HGet(key, field)
			require.NoError(t, err)
			if ok {
				out[fmt.Sprintf("%s[%s]", key, field)] = string(v)
			}
		}
	}
	return out
}

func entry(cmd, srcKey, srcField, dstKey, dstField string) map[string]any {
	return NewEntry(cmd,
		SourceSpec{Key: regexp.MustCompile(srcKey), Field: srcField},
		DestSpec{Key: dstKey, Field: dstField})
}

// userPropertiesMigration moves username and address of every user into a properties hash
func userPropertiesMigration() *Migration {
	return &Migration{
		Name: "user-properties",
		Up: []any{
			entry(CmdMoveKeysToHashFields, `(app:user:\d+):username`, "", "$1:properties", "username"),
			entry(CmdMoveKeysToHashFields, `(app:user:\d+):address`, "", "$1:properties", "address"),
		},
		Down: []any{
			entry(CmdMoveHashFieldsToKeys, `(app:user:\d+):properties`, "username", "$1:username", ""),
			entry(CmdMoveHashFieldsToKeys, `(app:user:\d+):properties`, "address", "$1:address", ""),
		},
	}
}

// --------------------------------------------------------------------------
// Recording store
// --------------------------------------------------------------------------

// recordingStore counts the calls the runner makes and can inject errors
type recordingStore struct {
	store.IStore

	keysCalls []string
	execCalls int
	getCalls  int

	keysErr error
	getErr  error
	execErr error
}

func newRecordingStore(s store.IStore) *recordingStore {
	return &recordingStore{IStore: s}
}

func (r *recordingStore) Keys(pattern string) ([]string, error) {
	r.keysCalls = append(r.keysCalls, pattern)
	if r.keysErr != nil {
		return nil, r.keysErr
	}
	return r.IStore.Keys(pattern)
}

func (r *recordingStore) Get(key string) ([]byte, bool, error) {
	r.getCalls++
	if r.getErr != nil {
		return nil, false, r.getErr
	}
	return r.IStore.Get(key)
}

func (r *recordingStore) Exec(cmds []db.Command) ([]db.Result, error) {
	r.execCalls++
	if r.execErr != nil {
		return nil, r.execErr
	}
	return r.IStore.Exec(cmds)
}
