package file

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/lib/db/engines/maple"
	"github.com/ValentinKolb/kvmig/lib/migration"
	"github.com/ValentinKolb/kvmig/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2014, 4, 18, 12, 5, 20, 0, time.UTC)

const renameMigration = `
up:
  - cmd: renameKeys
    src: {key: !regexp '(app:post:\d+):lastModifiedTimestamp'}
    dst: {key: '$1:lastModified'}
down:
  - cmd: renameKeys
    src:
      key: !regexp '(app:post:\d+):lastModified$'
    dst:
      key: '$1:lastModifiedTimestamp'
`

func TestFileName(t *testing.T) {
	assert.Equal(t, "2014-04-18-120520-add-properties.yaml", FileName("add-properties", created))
	assert.Equal(t, "2014-04-18-120520-add-properties.yml", FileName("add-properties.yml", created))

	local := created.In(time.FixedZone("CEST", 2*60*60))
	assert.Equal(t, "2014-04-18-120520-x.yaml", FileName("x", local))
}

func TestParse(t *testing.T) {
	m, err := Parse([]byte(renameMigration))
	require.NoError(t, err)

	up, ok := m.Up.([]any)
	require.True(t, ok)
	require.Len(t, up, 1)

	rec := up[0].(map[string]any)
	assert.Equal(t, "renameKeys", rec["cmd"])
	expr, ok := rec["src"].(map[string]any)["key"].(*regexp.Regexp)
	require.True(t, ok)
	assert.Equal(t, `(app:post:\d+):lastModifiedTimestamp`, expr.String())
	assert.Equal(t, map[string]any{"key": "$1:lastModified"}, rec["dst"])

	assert.NoError(t, migration.NewValidator(migration.NewRegistry()).ValidateMigration(m))
}

func TestParseKeepsRawValues(t *testing.T) {
	// structurally broken migrations are loaded, the validator rejects them
	m, err := Parse([]byte("up:\n  cmd: renameKeys\ndown:\n  - cmd: renameKeys\n    src: {key: '(a)'}\n    dst: 1\n"))
	require.NoError(t, err)
	assert.IsType(t, map[string]any{}, m.Up)

	down := m.Down.([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"key": "(a)"}, down["src"])
	assert.Equal(t, 1, down["dst"])

	err = migration.NewValidator(migration.NewRegistry()).ValidateMigration(m)
	assert.ErrorIs(t, err, migration.ErrInvalidActionShape)
}

func TestParseMissingAction(t *testing.T) {
	m, err := Parse([]byte("up: []\n"))
	require.NoError(t, err)
	assert.Equal(t, []any{}, m.Up)
	assert.Nil(t, m.Down)
}

func TestParseAliases(t *testing.T) {
	m, err := Parse([]byte(`
up:
  - &move
    cmd: renameKeys
    src: {key: !regexp '(a:\d+):b'}
    dst: {key: '$1:c'}
down:
  - *move
`))
	require.NoError(t, err)
	down := m.Down.([]any)[0].(map[string]any)
	assert.Equal(t, "renameKeys", down["cmd"])
	assert.Equal(t, `(a:\d+):b`, down["src"].(map[string]any)["key"].(*regexp.Regexp).String())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  error
	}{
		{"empty", "", ErrEmptyFile},
		{"not a mapping", "- up\n- down\n", nil},
		{"unknown key", "up: []\ndown: []\nsideways: []\n", nil},
		{"invalid expression", "up:\n  - src: {key: !regexp '(a'}\n", nil},
		{"invalid yaml", "up: [\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()

	path, err := Create(dir, "example", created)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2014-04-18-120520-example.yaml"), path)

	_, err = Create(dir, "example", created)
	assert.ErrorIs(t, err, ErrFileExists)

	_, err = Create(dir, "", created)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rename.yaml"), []byte(renameMigration), 0o644))

	for _, name := range []string{"rename", "rename.yaml"} {
		m, err := Load(dir, name)
		require.NoError(t, err)
		assert.Equal(t, "rename", m.Name)
		assert.Len(t, m.Up, 1)
	}

	_, err := Load(dir, "missing")
	assert.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("up: [\n"), 0o644))
	_, err = Load(dir, "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrFileNotFound)
}

func TestCreatedFileRuns(t *testing.T) {
	dir := t.TempDir()
	path, err := Create(dir, "example", created)
	require.NoError(t, err)

	m, err := Load(dir, filepath.Base(path))
	require.NoError(t, err)
	assert.Equal(t, "2014-04-18-120520-example", m.Name)

	s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
	require.NoError(t, s.Set("namespace:model:1:example", []byte("one")))
	require.NoError(t, s.Set("namespace:model:2:example", []byte("two")))

	runner := migration.NewRunner(s, nil)

	report, err := runner.Up(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Committed)

	v, ok, err := s.HGet("namespace:model:2:properties", "example")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("two"), v)

	_, err = runner.Down(context.Background(), m)
	require.NoError(t, err)

	keys, err := s.Keys("namespace:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"namespace:model:1:example", "namespace:model:2:example"}, keys)
}
