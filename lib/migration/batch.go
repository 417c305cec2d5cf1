package migration

import (
	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/lib/store"
)

// Batch queues the mutations of a migration run and commits them atomically.
// Reads are passed through to the store and never see queued mutations.
//
// A batch is used by a single run and is not safe for concurrent use.
type Batch struct {
	store     store.IStore
	cmds      []db.Command
	committed bool
}

// CommitReport describes a committed batch.
type CommitReport struct {
	Queued  int         // number of queued operations
	Results []db.Result // one result per operation, in queue order
}

// NewBatch creates an empty batch on top of the store.
func NewBatch(s store.IStore) *Batch {
	return &Batch{store: s}
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// Get reads a string value from the store.
func (b *Batch) Get(key string) ([]byte, bool, error) {
	return b.store.Get(key)
}

// HGet reads a hash field from the store.
func (b *Batch) HGet(key, field string) ([]byte, bool, error) {
	return b.store.HGet(key, field)
}

// --------------------------------------------------------------------------
// Queued writes
// --------------------------------------------------------------------------

// Set queues a string write.
func (b *Batch) Set(key string, value []byte) {
	b.enqueue(db.Command{Type: db.CommandTSet, Key: key, Value: value})
}

// HSetIfUnset queues a hash field write that only applies if the field does not exist.
func (b *Batch) HSetIfUnset(key, field string, value []byte) {
	b.enqueue(db.Command{Type: db.CommandTHSetIfUnset, Key: key, Field: field, Value: value})
}

// HDelete queues the removal of a hash field.
func (b *Batch) HDelete(key, field string) {
	b.enqueue(db.Command{Type: db.CommandTHDelete, Key: key, Field: field})
}

// Delete queues the removal of a key.
func (b *Batch) Delete(key string) {
	b.enqueue(db.Command{Type: db.CommandTDelete, Key: key})
}

// RenameIfUnset queues a rename that only applies if newKey does not exist.
func (b *Batch) RenameIfUnset(key, newKey string) {
	b.enqueue(db.Command{Type: db.CommandTRenameIfUnset, Key: key, Target: newKey})
}

func (b *Batch) enqueue(cmd db.Command) {
	b.cmds = append(b.cmds, cmd)
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.cmds)
}

// Commands returns a copy of the queued operations.
func (b *Batch) Commands() []db.Command {
	cmds := make([]db.Command, len(b.cmds))
	copy(cmds, b.cmds)
	return cmds
}

// Commit applies all queued operations through store.IStore.Exec: either all of them take
// effect or none does. A batch can only be committed once, later calls fail with ErrBatchCommitted.
//
// A failing store call is returned as *CommitError; a commit that reports no results
// (e.g. because nothing was queued) fails with ErrEmptyCommit.
func (b *Batch) Commit() (CommitReport, error) {
	if b.committed {
		return CommitReport{}, ErrBatchCommitted
	}
	b.committed = true

	report := CommitReport{Queued: len(b.cmds)}
	if len(b.cmds) == 0 {
		return report, ErrEmptyCommit
	}

	results, err := b.store.Exec(b.cmds)
	if err != nil {
		return report, &CommitError{Queued: len(b.cmds), Err: err}
	}
	if len(results) == 0 {
		return report, ErrEmptyCommit
	}

	report.Results = results
	return report, nil
}
