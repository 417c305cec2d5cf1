package migration

import (
	"fmt"
	"sort"
)

// Names of the built-in commands
const (
	CmdMoveKeysToHashFields = "moveKeysToHashFields"
	CmdMoveHashFieldsToKeys = "moveHashFieldsToKeys"
	CmdRenameKeys           = "renameKeys"
)

// Command transforms the candidate keys of one entry by queueing mutations into the batch.
// Keys not matching src.Key are skipped. Keys are processed in order.
type Command interface {
	Apply(src SourceSpec, dst DestSpec, keys []string, batch *Batch) error
}

// CommandFunc adapts a function to the Command interface.
type CommandFunc func(src SourceSpec, dst DestSpec, keys []string, batch *Batch) error

func (f CommandFunc) Apply(src SourceSpec, dst DestSpec, keys []string, batch *Batch) error {
	return f(src, dst, keys, batch)
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registry maps command names to their implementation.
// It is filled once when created and only read during runs.
type Registry struct {
	commands map[string]Command
}

// NewRegistry returns a registry holding the built-in commands.
func NewRegistry() *Registry {
	r := &Registry{commands: make(map[string]Command)}
	_ = r.Register(CmdMoveKeysToHashFields, CommandFunc(moveKeysToHashFields))
	_ = r.Register(CmdMoveHashFieldsToKeys, CommandFunc(moveHashFieldsToKeys))
	_ = r.Register(CmdRenameKeys, CommandFunc(renameKeys))
	return r
}

// Register adds a command. Names can not be registered twice.
func (r *Registry) Register(name string, cmd Command) error {
	if _, ok := r.commands[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.commands[name] = cmd
	return nil
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Has reports whether a command is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.commands[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Built-in commands
// --------------------------------------------------------------------------

// moveKeysToHashFields moves the value of every matching key into a field of a hash:
//
//	src: {key: /(app:user:\d+):address/}
//	dst: {key: "$1:properties", field: "address"}
//
// queues HSetIfUnset("app:user:1:properties", "address", <value>) and Delete("app:user:1:address").
func moveKeysToHashFields(src SourceSpec, dst DestSpec, keys []string, batch *Batch) error {
	if dst.Field == "" {
		return &CommandError{Cmd: CmdMoveKeysToHashFields, Err: ErrMissingDestinationField}
	}

	for _, key := range keys {
		newKey, ok := Substitute(src.Key, key, dst.Key)
		if !ok {
			continue
		}

		value, found, err := batch.Get(key)
		if err != nil {
			return &CommandError{Cmd: CmdMoveKeysToHashFields, Key: key, Err: err}
		}
		if !found {
			log.Debugf("%s: key %s vanished after discovery, skipping", CmdMoveKeysToHashFields, key)
			continue
		}

		batch.HSetIfUnset(newKey, dst.Field, value)
		batch.Delete(key)
	}
	return nil
}

// moveHashFieldsToKeys moves a field of every matching hash into its own key:
//
//	src: {key: /(app:user:\d+):properties/, field: "address"}
//	dst: {key: "$1:address"}
//
// queues Set("app:user:1:address", <value>) and HDelete("app:user:1:properties", "address").
func moveHashFieldsToKeys(src SourceSpec, dst DestSpec, keys []string, batch *Batch) error {
	if src.Field == "" {
		return &CommandError{Cmd: CmdMoveHashFieldsToKeys, Err: ErrMissingSourceField}
	}

	for _, key := range keys {
		newKey, ok := Substitute(src.Key, key, dst.Key)
		if !ok {
			continue
		}

		value, found, err := batch.HGet(key, src.Field)
		if err != nil {
			return &CommandError{Cmd: CmdMoveHashFieldsToKeys, Key: key, Err: err}
		}
		if !found {
			log.Debugf("%s: field %s of %s not found, skipping", CmdMoveHashFieldsToKeys, src.Field, key)
			continue
		}

		batch.Set(newKey, value)
		batch.HDelete(key, src.Field)
	}
	return nil
}

// renameKeys renames every matching key unless the new key already exists:
//
//	src: {key: /(app:post:\d+):lastModifiedTimestamp/}
//	dst: {key: "$1:lastModified"}
func renameKeys(src SourceSpec, dst DestSpec, keys []string, batch *Batch) error {
	for _, key := range keys {
		newKey, ok := Substitute(src.Key, key, dst.Key)
		if !ok {
			continue
		}
		batch.RenameIfUnset(key, newKey)
	}
	return nil
}
