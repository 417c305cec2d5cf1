package internal

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (value with metadata)
// --------------------------------------------------------------------------

// Kind is the kind of value stored under a key
type Kind uint8

const (
	KindString Kind = iota
	KindHash
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindHash:
		return "hash"
	default:
		return "unknown"
	}
}

// Entry stores a value with metadata.
// Entries are treated as immutable once stored: hash updates create a new Fields map.
type Entry struct {
	Kind   Kind              // Kind of the value
	Value  []byte            // String value (KindString only)
	Fields map[string][]byte // Hash fields (KindHash only)
	Index  uint64            // Write index when this entry was created/updated
}

// WithField returns a copy of the hash entry with the field set
func (e Entry) WithField(field string, value []byte, writeIdx uint64) Entry {
	fields := make(map[string][]byte, len(e.Fields)+1)
	for f, v := range e.Fields {
		fields[f] = v
	}
	fields[field] = value
	return Entry{Kind: KindHash, Fields: fields, Index: writeIdx}
}

// WithoutField returns a copy of the hash entry without the field
func (e Entry) WithoutField(field string, writeIdx uint64) Entry {
	fields := make(map[string][]byte, len(e.Fields))
	for f, v := range e.Fields {
		if f != field {
			fields[f] = v
		}
	}
	return Entry{Kind: KindHash, Fields: fields, Index: writeIdx}
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
type Shard struct {
	Data *xsync.MapOf[string, Entry] // Map of active entries
}

// NewShard creates a new, empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}

// HashKey hashes a key with FNV-1a to select its shard
func HashKey(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64)
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return hash
}

// GetShard returns the appropriate shard for a given key hash
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](hash uint64, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shardPos := (hash >> 7) % uint64(len(shards))
	return shards[shardPos]
}
