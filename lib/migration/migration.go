package migration

import (
	"fmt"
	"regexp"
)

// --------------------------------------------------------------------------
// Direction
// --------------------------------------------------------------------------

// Direction selects which action of a migration is run.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection converts "up" or "down" into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("invalid direction %q (expected %q or %q)", s, Up, Down)
	}
}

// --------------------------------------------------------------------------
// Migration
// --------------------------------------------------------------------------

// Migration holds the two actions of a migration as decoded values.
//
// An action is normally a []any of entry records (map[string]any) in which
// src.key is a *regexp.Regexp and dst.key a string:
//
//	[]any{
//		map[string]any{
//			"cmd": "moveKeysToHashFields",
//			"src": map[string]any{"key": regexp.MustCompile(`(app:user:\d+):address`)},
//			"dst": map[string]any{"key": "$1:properties", "field": "address"},
//		},
//	}
//
// The values are checked by the Validator before a migration is run.
type Migration struct {
	Name string
	Up   any
	Down any
}

// Action returns the action for the given direction.
func (m *Migration) Action(dir Direction) any {
	if dir == Down {
		return m.Down
	}
	return m.Up
}

// --------------------------------------------------------------------------
// Typed entries
// --------------------------------------------------------------------------

// SourceSpec selects the keys (and optionally the hash field) an entry reads from.
type SourceSpec struct {
	Key   *regexp.Regexp // capturing expression every candidate key is matched against
	Field string         // hash field (moveHashFieldsToKeys only)
}

// DestSpec describes where matched values are written to.
type DestSpec struct {
	Key   string // template, may reference groups of the source expression ($1, $&, $$)
	Field string // hash field (moveKeysToHashFields only)
}

// Entry is a validated migration entry.
type Entry struct {
	Cmd string
	Src SourceSpec
	Dst DestSpec
}

func (e Entry) String() string {
	return fmt.Sprintf("%s(src={key: /%s/, field: %q}, dst={key: %q, field: %q})",
		e.Cmd, e.Src.Key, e.Src.Field, e.Dst.Key, e.Dst.Field)
}

// NewEntry builds a raw entry record as the YAML loader produces it.
// Empty fields are left out.
func NewEntry(cmd string, src SourceSpec, dst DestSpec) map[string]any {
	srcRec := map[string]any{"key": src.Key}
	if src.Field != "" {
		srcRec["field"] = src.Field
	}
	dstRec := map[string]any{"key": dst.Key}
	if dst.Field != "" {
		dstRec["field"] = dst.Field
	}
	return map[string]any{"cmd": cmd, "src": srcRec, "dst": dstRec}
}

// toEntry converts a record that passed validation into a typed Entry.
func toEntry(rec map[string]any) Entry {
	src := rec["src"].(map[string]any)
	dst := rec["dst"].(map[string]any)

	entry := Entry{
		Cmd: rec["cmd"].(string),
		Src: SourceSpec{Key: src["key"].(*regexp.Regexp)},
		Dst: DestSpec{Key: dst["key"].(string)},
	}
	entry.Src.Field, _ = src["field"].(string)
	entry.Dst.Field, _ = dst["field"].(string)
	return entry
}
