package migration

import (
	"errors"
	"fmt"
)

var (
	// validation
	ErrInvalidActionShape = errors.New("invalid migration loaded: action is not a list of entries")
	ErrInvalidEntryShape  = errors.New("migration entry is not a record")
	ErrMissingField       = errors.New("missing field in migration entry")
	ErrUnknownCommand     = errors.New("invalid cmd")
	ErrInvalidSource      = errors.New("invalid src")
	ErrInvalidDestination = errors.New("invalid dst")

	// pattern resolution
	ErrPattern = errors.New("no glob pattern can be derived from the source expression")

	// command execution
	ErrMissingDestinationField = errors.New("missing dst.field")
	ErrMissingSourceField      = errors.New("missing src.field")

	// commit
	ErrEmptyCommit    = errors.New("commit reported no results")
	ErrBatchCommitted = errors.New("batch was already committed")

	// registry
	ErrAlreadyRegistered = errors.New("command is already registered")
)

// ValidationError reports the first invalid entry of a migration.
type ValidationError struct {
	Direction Direction // action the entry belongs to
	Index     int       // position of the entry in the action (-1 if the action itself is invalid)
	Field     string    // name of the missing field (ErrMissingField only)
	Entry     any       // the offending raw entry
	Err       error     // one of the validation sentinels
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %v", e.Direction, e.Err)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s entry %d: %v %q: %v", e.Direction, e.Index, e.Err, e.Field, e.Entry)
	}
	return fmt.Sprintf("%s entry %d: %v: %v", e.Direction, e.Index, e.Err, e.Entry)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PatternError reports a source expression no discovery pattern can be derived from.
type PatternError struct {
	Expr string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("%v: /%s/", ErrPattern, e.Expr)
}

func (e *PatternError) Unwrap() error { return ErrPattern }

// CommandError reports a failure of a command while it enqueued mutations.
// Key is empty if the command failed before examining keys.
type CommandError struct {
	Cmd string
	Key string
	Err error
}

func (e *CommandError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
	}
	return fmt.Sprintf("%s (key %s): %v", e.Cmd, e.Key, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// CommitError reports a failed commit. None of the queued operations took effect.
type CommitError struct {
	Queued int
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit of %d operations failed: %v", e.Queued, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
