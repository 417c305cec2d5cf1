package migration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunUpAndDown(t *testing.T) {
	s := newFixtureStore(t)
	runner := NewRunner(s, nil)
	m := userPropertiesMigration()

	before := dump(t, s)

	report, err := runner.Up(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, report.State)
	assert.Equal(t, Up, report.Direction)
	assert.Equal(t, 12, report.Queued)
	assert.Equal(t, 12, report.Committed)

	after := dump(t, s)
	assert.Equal(t, map[string]string{
		"app:user:1:properties[username]": "username1",
		"app:user:1:properties[address]":  "user1 address",
		"app:user:2:properties[username]": "username2",
		"app:user:2:properties[address]":  "user2 address",
		"app:user:3:properties[username]": "username3",
		"app:user:3:properties[address]":  "user3 address",
		"app:post:1:content":               "post1 content",
		"app:post:2:content":               "post2 content",
		"app:post:3:content":               "post3 content",
		"app:post:1:lastModifiedTimestamp": "1397825120",
		"app:post:2:lastModifiedTimestamp": "1397825130",
		"app:post:3:lastModifiedTimestamp": "1397825140",
	}, after)

	report, err = runner.Down(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, report.State)
	assert.Equal(t, before, dump(t, s))
}

func TestRunBuildsExactBatch(t *testing.T) {
	s := newFixtureStore(t)
	m := &Migration{
		Up:   []any{entry(CmdMoveKeysToHashFields, `(app:user:[12]):username`, "", "$1:properties", "username")},
		Down: []any{},
	}

	report, err := NewRunner(s, nil).Run(context.Background(), m, Up)
	require.NoError(t, err)

	assert.Equal(t, []db.Command{
		{Type: db.CommandTHSetIfUnset, Key: "app:user:1:properties", Field: "username", Value: []byte("username1")},
		{Type: db.CommandTDelete, Key: "app:user:1:username"},
		{Type: db.CommandTHSetIfUnset, Key: "app:user:2:properties", Field: "username", Value: []byte("username2")},
		{Type: db.CommandTDelete, Key: "app:user:2:username"},
	}, report.Commands)

	// user 3 is discovered by app:user:* but filtered by the expression
	has, err := s.Has("app:user:3:username")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRunRenameIsIdempotent(t *testing.T) {
	s := newFixtureStore(t)
	runner := NewRunner(s, nil)
	m := &Migration{
		Up:   []any{entry(CmdRenameKeys, `(app:post:\d+):lastModifiedTimestamp`, "", "$1:lastModified", "")},
		Down: []any{entry(CmdRenameKeys, `(app:post:\d+):lastModified$`, "", "$1:lastModifiedTimestamp", "")},
	}

	report, err := runner.Up(context.Background(), m)
	require.NoError(t, err)
	for _, r := range report.Results {
		assert.True(t, r.Applied)
	}

	// old writers recreate the source keys, the destinations already exist
	for k := range postData {
		if strings.HasSuffix(k, "Timestamp") {
			require.NoError(t, s.Set(k, []byte("stale")))
		}
	}
	before := dump(t, s)

	report, err = runner.Up(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, report.State)
	require.Len(t, report.Results, 3)
	for _, r := range report.Results {
		assert.Equal(t, db.CommandTRenameIfUnset, r.Type)
		assert.False(t, r.Applied, "rename onto an existing key must be a no-op")
	}
	assert.Equal(t, before, dump(t, s))

	v, _, err := s.Get("app:post:1:lastModified")
	require.NoError(t, err)
	assert.Equal(t, []byte("1397825120"), v)
}

func TestRunInvalidActionNeverTouchesStore(t *testing.T) {
	rec := newRecordingStore(newFixtureStore(t))
	m := userPropertiesMigration()
	m.Up = entry(CmdRenameKeys, `(app:post:\d+):x`, "", "$1:y", "")

	report, err := NewRunner(rec, nil).Up(context.Background(), m)
	assert.ErrorIs(t, err, ErrInvalidActionShape)
	assert.Equal(t, StateFailed, report.State)
	assert.Empty(t, rec.keysCalls)
	assert.Equal(t, 0, rec.getCalls)
	assert.Equal(t, 0, rec.execCalls)
}

func TestRunValidatesBothActions(t *testing.T) {
	rec := newRecordingStore(newFixtureStore(t))
	m := userPropertiesMigration()
	m.Down = []any{map[string]any{"cmd": "dropKeys", "src": "x", "dst": "y"}}

	_, err := NewRunner(rec, nil).Up(context.Background(), m)
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Empty(t, rec.keysCalls)
}

func TestRunMemoizesDiscovery(t *testing.T) {
	rec := newRecordingStore(newFixtureStore(t))

	report, err := NewRunner(rec, nil).Up(context.Background(), userPropertiesMigration())
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, report.State)
	assert.Equal(t, []string{"app:user:*"}, rec.keysCalls)
	assert.Equal(t, 1, rec.execCalls)
}

func TestRunCommandErrorIsNotCommitted(t *testing.T) {
	rec := newRecordingStore(newFixtureStore(t))
	before := dump(t, rec)

	m := &Migration{
		Up: []any{
			entry(CmdRenameKeys, `(app:post:\d+):lastModifiedTimestamp`, "", "$1:lastModified", ""),
			entry(CmdMoveKeysToHashFields, `(app:user:\d+):address`, "", "$1:properties", ""),
		},
		Down: []any{},
	}

	report, err := NewRunner(rec, nil).Up(context.Background(), m)
	assert.ErrorIs(t, err, ErrMissingDestinationField)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, 0, rec.execCalls)
	assert.Equal(t, before, dump(t, rec))
}

func TestRunPatternError(t *testing.T) {
	rec := newRecordingStore(newFixtureStore(t))
	m := &Migration{
		Up:   []any{entry(CmdRenameKeys, `app:(post:\d+)`, "", "$1", "")},
		Down: []any{},
	}

	report, err := NewRunner(rec, nil).Up(context.Background(), m)
	var patternErr *PatternError
	require.ErrorAs(t, err, &patternErr)
	assert.Equal(t, StateFailed, report.State)
	assert.Empty(t, rec.keysCalls)
}

func TestRunDiscoveryError(t *testing.T) {
	rec := newRecordingStore(newFixtureStore(t))
	listErr := errors.New("keys failed")
	rec.keysErr = listErr

	report, err := NewRunner(rec, nil).Up(context.Background(), userPropertiesMigration())
	assert.ErrorIs(t, err, listErr)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, 0, rec.execCalls)
}

func TestRunCommitError(t *testing.T) {
	rec := newRecordingStore(newFixtureStore(t))
	rec.execErr = errors.New("leader unavailable")

	report, err := NewRunner(rec, nil).Up(context.Background(), userPropertiesMigration())
	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, 12, commitErr.Queued)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, 12, report.Queued)
}

func TestRunEmptyCommit(t *testing.T) {
	s := newFixtureStore(t)
	m := &Migration{
		Up:   []any{entry(CmdRenameKeys, `(app:thread:\d+):properties`, "", "$1:props", "")},
		Down: []any{},
	}

	report, err := NewRunner(s, nil).Up(context.Background(), m)
	assert.ErrorIs(t, err, ErrEmptyCommit)
	var commitErr *CommitError
	assert.False(t, errors.As(err, &commitErr))
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, 0, report.Queued)
}

func TestRunCancelled(t *testing.T) {
	rec := newRecordingStore(newFixtureStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewRunner(rec, nil).Up(ctx, userPropertiesMigration())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, 0, rec.execCalls)
}

func TestPlanDoesNotCommit(t *testing.T) {
	rec := newRecordingStore(newFixtureStore(t))
	before := dump(t, rec)

	report, err := NewRunner(rec, nil).Plan(context.Background(), userPropertiesMigration(), Up)
	require.NoError(t, err)
	assert.Equal(t, StateApplied, report.State)
	assert.Equal(t, 12, report.Queued)
	assert.Len(t, report.Commands, 12)
	assert.Equal(t, 0, rec.execCalls)
	assert.Equal(t, before, dump(t, rec))
}

func TestRunWithCustomCommand(t *testing.T) {
	s := newFixtureStore(t)
	registry := NewRegistry()
	require.NoError(t, registry.Register("deleteKeys", CommandFunc(func(src SourceSpec, _ DestSpec, keys []string, batch *Batch) error {
		for _, key := range keys {
			if src.Key.MatchString(key) {
				batch.Delete(key)
			}
		}
		return nil
	})))

	m := &Migration{
		Up:   []any{entry("deleteKeys", `(app:post:\d+):content`, "", "", "")},
		Down: []any{},
	}

	report, err := NewRunner(s, registry).Up(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Committed)

	keys, err := s.Keys("app:post:*:content")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestParseDirection(t *testing.T) {
	dir, err := ParseDirection("down")
	require.NoError(t, err)
	assert.Equal(t, Down, dir)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}
