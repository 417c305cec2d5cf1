// Package lstore implements a local, in-memory, single-node key-value store based on the
// store.IStore interface. It provides a thin wrapper around any db.KVDB
// implementation with automatic write index management. Data is stored entirely
// in memory and is not persisted between process restarts.
//
// Implementation Details:
//
//   - Write Index Management: The store maintains an atomic counter that increments
//     with each write operation. All commands of one Exec batch share a single index.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.KVDB implementation supports the requested feature. Exec checks every command of
//     the batch before anything is applied.
//
//   - Errors: Errors of the db layer (e.g. db.ErrWrongType) are converted into *store.Error.
//
// Usage Example:
//
//	factory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	results, err := s.Exec([]db.Command{
//		{Type: db.CommandTHSetIfUnset, Key: "app:user:1:properties", Field: "username", Value: []byte("u1")},
//		{Type: db.CommandTDelete, Key: "app:user:1:username"},
//	})
//
// The local store is the default backend of kvmig when migrations run in-process,
// and it backs the migration tests.
package lstore
