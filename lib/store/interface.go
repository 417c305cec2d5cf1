package store

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvmig/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the generic interface for interacting with a key–value store.
// All write operations return only a *Error (nil on success),
// while read operations return the requested data along with a *Error (nil on success).
type IStore interface {
	// Set inserts or updates a key–value pair.
	Set(key string, value []byte) (err error)
	// SetIfUnset inserts a key–value pair if the key does not exist.
	// No error is returned if the key already exists.
	SetIfUnset(key string, value []byte) (err error)
	// Delete deletes a key and its value. Deleting a missing key is not an error.
	Delete(key string) (err error)
	// Get return the string value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// Has returns whether a key exists in the store.
	Has(key string) (loaded bool, err error)
	// HGet returns a field of the hash stored at key.
	HGet(key, field string) (value []byte, loaded bool, err error)
	// HSetIfUnset sets a field of the hash stored at key if the field does not exist.
	HSetIfUnset(key, field string, value []byte) (err error)
	// HDelete removes a field of the hash stored at key.
	HDelete(key, field string) (err error)
	// RenameIfUnset renames key to newKey if newKey does not exist.
	// Renaming a missing key is not an error.
	RenameIfUnset(key, newKey string) (err error)
	// Keys returns all keys matching the glob pattern ('*' is the only wildcard) in lexicographic order.
	Keys(pattern string) (keys []string, err error)
	// Exec applies all commands as one atomic unit and returns one result per command.
	// If any command fails none of them takes effect.
	Exec(cmds []db.Command) (results []db.Result, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether the error carries the code of a db sentinel error,
// so errors.Is(err, db.ErrWrongType) also holds for errors that crossed the network.
func (e *Error) Is(target error) bool {
	return e.Code == RetCWrongType && target == db.ErrWrongType
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// FromDBError converts an error of a db.KVDB into an *Error with a matching code.
func FromDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrWrongType) {
		return NewError(RetCWrongType, err.Error())
	}
	return NewError(RetCInternalError, err.Error())
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCWrongType                           // 4: Operation against a key holding the wrong kind of value.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCWrongType:
		return "WrongType"
	default:
		return "Unknown"
	}
}
