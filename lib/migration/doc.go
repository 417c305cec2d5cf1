// Package migration runs schema migrations against a key-value store.
//
// A migration describes how keys are restructured, for example moving the
// per-attribute keys of a user into one hash:
//
//	app:user:1:username -> app:user:1:properties[username]
//	app:user:1:address  -> app:user:1:properties[address]
//
// Every migration has an up and a down action, each a list of entries. An entry names
// a command, a source expression that selects keys and a destination template:
//
//	{cmd: moveKeysToHashFields, src: {key: /(app:user:\d+):address/}, dst: {key: "$1:properties", field: address}}
//
// Built-in commands:
//
//   - moveKeysToHashFields: moves string keys into a hash field (HSetIfUnset, Delete)
//   - moveHashFieldsToKeys: moves a hash field into its own key (Set, HDelete)
//   - renameKeys: renames keys (RenameIfUnset)
//
// A run of the Runner:
//
//  1. validates both actions of the migration (no store access if this fails)
//  2. derives a glob pattern from every source expression (ResolvePattern) and lists the
//     matching keys once per distinct pattern
//  3. lets every entry, in order, queue its mutations into a shared Batch
//  4. commits the batch with a single store.IStore.Exec call
//
// All mutations of a run are applied atomically or not at all. Reads done while queueing
// see the store as it was before the run.
package migration
