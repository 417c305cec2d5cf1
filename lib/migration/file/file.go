package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ValentinKolb/kvmig/lib/migration"
	"gopkg.in/yaml.v3"
)

// Extension is appended to migration names that carry no extension.
const Extension = ".yaml"

// RegexpTag marks a YAML scalar as a source matching expression.
const RegexpTag = "!regexp"

// timeLayout is the UTC timestamp prefix of created files (YYYY-MM-DD-HHMMSS)
const timeLayout = "2006-01-02-150405"

var (
	ErrFileNotFound = errors.New("migration file not found")
	ErrFileExists   = errors.New("migration file already exists")
	ErrEmptyFile    = errors.New("migration file is empty")
)

// template is written by Create
const template = `# up moves the example key of every model into its properties hash
up:
  - cmd: moveKeysToHashFields
    src: {key: !regexp '(namespace:model:\d+):example'}
    dst: {key: '$1:properties', field: example}

# down reverts up
down:
  - cmd: moveHashFieldsToKeys
    src: {key: !regexp '(namespace:model:\d+):properties', field: example}
    dst: {key: '$1:example'}
`

// --------------------------------------------------------------------------
// Create
// --------------------------------------------------------------------------

// FileName returns the file name Create uses for a migration created at now.
func FileName(name string, now time.Time) string {
	return now.UTC().Format(timeLayout) + "-" + withExtension(name)
}

// Create writes a new migration file with example entries into dir and returns its path.
// It fails with ErrFileExists if the file is already present.
func Create(dir, name string, now time.Time) (string, error) {
	if name == "" {
		return "", fmt.Errorf("migration name must not be empty")
	}

	path := filepath.Join(dir, FileName(name, now))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrFileExists, path)
	} else if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.WriteString(template); err != nil {
		return "", fmt.Errorf("failed to write migration file: %w", err)
	}
	return path, nil
}

// --------------------------------------------------------------------------
// Load
// --------------------------------------------------------------------------

// Load reads the migration name from dir. The extension may be omitted.
// The returned migration holds the raw decoded actions, it is validated when it is run.
func Load(dir, name string) (*migration.Migration, error) {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && filepath.Ext(name) == "" {
		path += Extension
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read migration file: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return m, nil
}

// Parse decodes a migration document. The top level must be a mapping with the keys
// up and down, scalars tagged !regexp are compiled into *regexp.Regexp.
// Missing actions are left nil.
func Parse(data []byte) (*migration.Migration, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, ErrEmptyFile
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: migration must be a mapping of up and down", root.Line)
	}

	m := &migration.Migration{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]

		v, err := decode(value)
		if err != nil {
			return nil, err
		}
		switch key.Value {
		case string(migration.Up):
			m.Up = v
		case string(migration.Down):
			m.Down = v
		default:
			return nil, fmt.Errorf("line %d: unknown key %q (expected up or down)", key.Line, key.Value)
		}
	}
	return m, nil
}

// decode converts a node into plain values: mappings become map[string]any,
// sequences []any and !regexp scalars *regexp.Regexp
func decode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return decode(n.Alias)

	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := decode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = v
		}
		return out, nil

	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := decode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case yaml.ScalarNode:
		if n.Tag == RegexpTag {
			expr, err := regexp.Compile(n.Value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid expression: %w", n.Line, err)
			}
			return expr, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}

func withExtension(name string) string {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return name
	default:
		return name + Extension
	}
}
