package db

import (
	"errors"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// ErrWrongType is returned when an operation is applied to a key holding the wrong kind of value
// (e.g. a hash operation on a string key).
var ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet        Feature = 1 << iota // Support for Set operations
	FeatureSetIfUnset                     // Support for SetIfUnset operations
	FeatureGet                            // Support for Get operations
	FeatureDelete                         // Support for Delete operations
	FeatureHas                            // Support for Has operations
	FeatureHash                           // Support for HGet, HSetIfUnset and HDelete operations
	FeatureRename                         // Support for RenameIfUnset operations
	FeatureKeys                           // Support for Keys operations
	FeatureApply                          // Support for atomic Apply of a command batch
	FeatureSave                           // Support for Save operations
	FeatureLoad                           // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureSetIfUnset:
		return "SetIfUnset"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureHash:
		return "Hash"
	case FeatureRename:
		return "Rename"
	case FeatureKeys:
		return "Keys"
	case FeatureApply:
		return "Apply"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	KeyCount          int            `json:"key_count"`
	HashCount         int            `json:"hash_count"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for key-value database implementations.
// Every key holds either a string value or a hash (a map of fields to values).
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates a string value for the given key.
	// If the key already exists (with any kind of value), the old value is overwritten.
	// The writeIndex parameter is used as a logical timestamp for the entry.
	Set(key string, value []byte, writeIndex uint64)

	// SetIfUnset inserts a string value if the key does not exist.
	// The boolean return value reports whether the value was written.
	SetIfUnset(key string, value []byte, writeIndex uint64) (applied bool)

	// Delete removes the key and its value. Deleting a missing key is a no-op.
	// The boolean return value reports whether a key was removed.
	Delete(key string, writeIndex uint64) (applied bool)

	// HSetIfUnset sets a field of the hash stored at key if the field does not exist yet.
	// A missing key is created as an empty hash first.
	// Returns ErrWrongType if the key holds a string value.
	HSetIfUnset(key, field string, value []byte, writeIndex uint64) (applied bool, err error)

	// HDelete removes a field from the hash stored at key. Removing the last field removes the key.
	// Returns ErrWrongType if the key holds a string value.
	HDelete(key, field string, writeIndex uint64) (applied bool, err error)

	// RenameIfUnset renames key to newKey if newKey does not exist.
	// Renaming a missing key is a no-op.
	RenameIfUnset(key, newKey string, writeIndex uint64) (applied bool)

	// Apply executes all commands atomically: either every command takes effect or none does.
	// All commands share the given writeIndex. On error the database is left unchanged.
	Apply(cmds []Command, writeIndex uint64) (results []Result, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the string value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	// Returns ErrWrongType if the key holds a hash.
	Get(key string) (value []byte, loaded bool, err error)

	// HGet retrieves a field of the hash stored at key.
	// Returns ErrWrongType if the key holds a string value.
	HGet(key, field string) (value []byte, loaded bool, err error)

	// Has checks whether a key exists in the database.
	Has(key string) (loaded bool)

	// Keys returns all keys matching the glob pattern, sorted lexicographically.
	// The only supported wildcard is '*'.
	Keys(pattern string) (keys []string)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database .
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}
