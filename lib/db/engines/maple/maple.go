package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/lib/db/engines/maple/internal"
	"github.com/ryanuber/go-glob"
	"io"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum     = "MAPLEDB\x00" // File format identifier
	mapleVersion = 4             // Database version
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an in-memory database with sharded data
type mapleImpl struct {
	numShards int               // Number of shards
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Current logical timestamp

	// gate is held shared by single-key operations and exclusively by operations
	// spanning several keys (RenameIfUnset, Apply, Load)
	gate sync.RWMutex
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	return &mapleImpl{
		numShards: opts.NumShards,
		shards:    newShards(opts.NumShards),
	}
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := range shards {
		shards[i] = internal.NewShard()
	}
	return shards
}

// shard returns the shard responsible for the key
func (maple *mapleImpl) shard(key string) *internal.Shard {
	return internal.GetShard(internal.HashKey(key), maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates a string value. Stale writes (writeIndex lower than the entry's index) are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte, writeIndex uint64) {
	maple.gate.RLock()
	defer maple.gate.RUnlock()
	maple.SetWriteIdx(writeIndex)
	maple.set(key, value, writeIndex, false)
}

// SetIfUnset inserts a string value if the key does not exist.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetIfUnset(key string, value []byte, writeIndex uint64) bool {
	maple.gate.RLock()
	defer maple.gate.RUnlock()
	maple.SetWriteIdx(writeIndex)
	return maple.set(key, value, writeIndex, true)
}

// Delete removes a key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string, writeIndex uint64) bool {
	maple.gate.RLock()
	defer maple.gate.RUnlock()
	maple.SetWriteIdx(writeIndex)
	return maple.delete(key, writeIndex)
}

// HSetIfUnset sets a hash field if it does not exist.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) HSetIfUnset(key, field string, value []byte, writeIndex uint64) (bool, error) {
	maple.gate.RLock()
	defer maple.gate.RUnlock()
	maple.SetWriteIdx(writeIndex)
	return maple.hSetIfUnset(key, field, value, writeIndex)
}

// HDelete removes a hash field.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) HDelete(key, field string, writeIndex uint64) (bool, error) {
	maple.gate.RLock()
	defer maple.gate.RUnlock()
	maple.SetWriteIdx(writeIndex)
	return maple.hDelete(key, field, writeIndex)
}

// RenameIfUnset renames key to newKey if newKey does not exist.
//
// Thread-safety: This method is thread-safe, it blocks all other operations while running.
func (maple *mapleImpl) RenameIfUnset(key, newKey string, writeIndex uint64) bool {
	maple.gate.Lock()
	defer maple.gate.Unlock()
	maple.SetWriteIdx(writeIndex)
	return maple.renameIfUnset(key, newKey, writeIndex)
}

// Apply executes all commands as one atomic unit. Before a key is touched for the first time
// its previous entry is recorded; if any command fails, all recorded entries are restored.
//
// Thread-safety: This method is thread-safe, it blocks all other operations while running.
func (maple *mapleImpl) Apply(cmds []db.Command, writeIndex uint64) ([]db.Result, error) {
	maple.gate.Lock()
	defer maple.gate.Unlock()
	maple.SetWriteIdx(writeIndex)

	undo := undoLog{seen: make(map[string]struct{})}
	results := make([]db.Result, 0, len(cmds))

	for i, cmd := range cmds {
		maple.remember(&undo, cmd.Key)
		if cmd.Type == db.CommandTRenameIfUnset {
			maple.remember(&undo, cmd.Target)
		}

		applied, err := maple.exec(cmd, writeIndex)
		if err != nil {
			maple.rollback(&undo)
			return nil, fmt.Errorf("command %d (%s): %w", i+1, cmd, err)
		}
		results = append(results, db.Result{Type: cmd.Type, Key: cmd.Key, Applied: applied})
	}

	return results, nil
}

// --------------------------------------------------------------------------
// Unlocked write helpers (the caller holds the gate)
// --------------------------------------------------------------------------

// exec dispatches a single command
func (maple *mapleImpl) exec(cmd db.Command, writeIndex uint64) (bool, error) {
	switch cmd.Type {
	case db.CommandTSet:
		return maple.set(cmd.Key, cmd.Value, writeIndex, false), nil
	case db.CommandTSetIfUnset:
		return maple.set(cmd.Key, cmd.Value, writeIndex, true), nil
	case db.CommandTDelete:
		return maple.delete(cmd.Key, writeIndex), nil
	case db.CommandTHSetIfUnset:
		return maple.hSetIfUnset(cmd.Key, cmd.Field, cmd.Value, writeIndex)
	case db.CommandTHDelete:
		return maple.hDelete(cmd.Key, cmd.Field, writeIndex)
	case db.CommandTRenameIfUnset:
		return maple.renameIfUnset(cmd.Key, cmd.Target, writeIndex), nil
	default:
		return false, fmt.Errorf("unknown command type %s", cmd.Type)
	}
}

func (maple *mapleImpl) set(key string, value []byte, writeIndex uint64, onlyIfUnset bool) bool {
	valueCopy := copyBytes(value)

	applied := false
	maple.shard(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && (onlyIfUnset || writeIndex < old.Index) {
			return old, false
		}
		applied = true
		return internal.Entry{Kind: internal.KindString, Value: valueCopy, Index: writeIndex}, false
	})
	return applied
}

func (maple *mapleImpl) delete(key string, writeIndex uint64) bool {
	applied := false
	maple.shard(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			return old, true // set delete to true because else the value will be created
		}
		if writeIndex < old.Index {
			return old, false
		}
		applied = true
		return old, true
	})
	return applied
}

func (maple *mapleImpl) hSetIfUnset(key, field string, value []byte, writeIndex uint64) (bool, error) {
	valueCopy := copyBytes(value)

	var (
		applied bool
		err     error
	)
	maple.shard(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			applied = true
			return internal.Entry{}.WithField(field, valueCopy, writeIndex), false
		}
		if old.Kind != internal.KindHash {
			err = db.ErrWrongType
			return old, false
		}
		if _, exists := old.Fields[field]; exists {
			return old, false
		}
		applied = true
		return old.WithField(field, valueCopy, writeIndex), false
	})
	return applied, err
}

func (maple *mapleImpl) hDelete(key, field string, writeIndex uint64) (bool, error) {
	var (
		applied bool
		err     error
	)
	maple.shard(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			return old, true
		}
		if old.Kind != internal.KindHash {
			err = db.ErrWrongType
			return old, false
		}
		if _, exists := old.Fields[field]; !exists {
			return old, false
		}
		applied = true

		// an empty hash does not exist
		if len(old.Fields) == 1 {
			return old, true
		}
		return old.WithoutField(field, writeIndex), false
	})
	return applied, err
}

func (maple *mapleImpl) renameIfUnset(key, newKey string, writeIndex uint64) bool {
	if key == newKey {
		return false
	}

	entry, ok := maple.shard(key).Data.Load(key)
	if !ok {
		return false
	}
	if _, exists := maple.shard(newKey).Data.Load(newKey); exists {
		return false
	}

	entry.Index = writeIndex
	maple.shard(newKey).Data.Store(newKey, entry)
	maple.shard(key).Data.Delete(key)
	return true
}

// --------------------------------------------------------------------------
// Rollback support for Apply
// --------------------------------------------------------------------------

type undoEntry struct {
	key     string
	entry   internal.Entry
	existed bool
}

type undoLog struct {
	entries []undoEntry
	seen    map[string]struct{}
}

// remember records the entry of a key before it is touched for the first time
func (maple *mapleImpl) remember(undo *undoLog, key string) {
	if _, ok := undo.seen[key]; ok {
		return
	}
	undo.seen[key] = struct{}{}
	entry, existed := maple.shard(key).Data.Load(key)
	undo.entries = append(undo.entries, undoEntry{key: key, entry: entry, existed: existed})
}

// rollback restores all recorded entries
func (maple *mapleImpl) rollback(undo *undoLog) {
	for i := len(undo.entries) - 1; i >= 0; i-- {
		u := undo.entries[i]
		if u.existed {
			maple.shard(u.key).Data.Store(u.key, u.entry)
		} else {
			maple.shard(u.key).Data.Delete(u.key)
		}
	}
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a string value for a key.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool, error) {
	maple.gate.RLock()
	defer maple.gate.RUnlock()

	entry, ok := maple.shard(key).Data.Load(key)
	if !ok {
		return nil, false, nil
	}
	if entry.Kind != internal.KindString {
		return nil, false, db.ErrWrongType
	}
	return copyBytes(entry.Value), true, nil
}

// HGet retrieves a hash field.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) HGet(key, field string) ([]byte, bool, error) {
	maple.gate.RLock()
	defer maple.gate.RUnlock()

	entry, ok := maple.shard(key).Data.Load(key)
	if !ok {
		return nil, false, nil
	}
	if entry.Kind != internal.KindHash {
		return nil, false, db.ErrWrongType
	}
	value, ok := entry.Fields[field]
	if !ok {
		return nil, false, nil
	}
	return copyBytes(value), true, nil
}

// Has checks if a key exists in the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	maple.gate.RLock()
	defer maple.gate.RUnlock()

	_, ok := maple.shard(key).Data.Load(key)
	return ok
}

// Keys returns all keys matching the pattern in lexicographic order.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Keys(pattern string) []string {
	maple.gate.RLock()
	defer maple.gate.RUnlock()

	keys := make([]string, 0)
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, _ internal.Entry) bool {
			if glob.Glob(pattern, key) {
				keys = append(keys, key)
			}
			return true
		})
	}
	sort.Strings(keys)
	return keys
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer.
// Multi-key operations are blocked while saving, single-key writes may still interleave.
func (maple *mapleImpl) Save(w io.Writer) error {
	maple.gate.RLock()
	type entryToSave struct {
		key   string
		entry internal.Entry
	}
	var entries []entryToSave
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			entries = append(entries, entryToSave{key, entry})
			return true
		})
	}
	maple.gate.RUnlock()

	// sort for a deterministic snapshot
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, item := range entries {
		if err := writeBytes(bw, []byte(item.key)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint8(item.entry.Kind)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.Index); err != nil {
			return err
		}

		switch item.entry.Kind {
		case internal.KindString:
			if err := writeBytes(bw, item.entry.Value); err != nil {
				return err
			}
		case internal.KindHash:
			if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.entry.Fields))); err != nil {
				return err
			}
			fields := make([]string, 0, len(item.entry.Fields))
			for f := range item.entry.Fields {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			for _, f := range fields {
				if err := writeBytes(bw, []byte(f)); err != nil {
					return err
				}
				if err := writeBytes(bw, item.entry.Fields[f]); err != nil {
					return err
				}
			}
		}
	}

	return bw.Flush()
}

// Load restores a database from the reader, replacing all current data.
//
// Thread-safety: This method is thread-safe, it blocks all other operations while running.
func (maple *mapleImpl) Load(r io.Reader) error {
	maple.gate.Lock()
	defer maple.gate.Unlock()

	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	shards := newShards(maple.numShards)
	var maxIndex uint64

	for i := uint64(0); i < count; i++ {
		key, err := readBytes(br)
		if err != nil {
			return err
		}

		var kind uint8
		if err := binary.Read(br, binary.LittleEndian, &kind); err != nil {
			return err
		}
		var index uint64
		if err := binary.Read(br, binary.LittleEndian, &index); err != nil {
			return err
		}
		if index > maxIndex {
			maxIndex = index
		}

		entry := internal.Entry{Kind: internal.Kind(kind), Index: index}
		switch entry.Kind {
		case internal.KindString:
			if entry.Value, err = readBytes(br); err != nil {
				return err
			}
		case internal.KindHash:
			var fieldCount uint32
			if err := binary.Read(br, binary.LittleEndian, &fieldCount); err != nil {
				return err
			}
			entry.Fields = make(map[string][]byte, fieldCount)
			for j := uint32(0); j < fieldCount; j++ {
				field, err := readBytes(br)
				if err != nil {
					return err
				}
				value, err := readBytes(br)
				if err != nil {
					return err
				}
				entry.Fields[string(field)] = value
			}
		default:
			return fmt.Errorf("invalid entry kind %d for key %q", kind, key)
		}

		internal.GetShard(internal.HashKey(string(key)), shards).Data.Store(string(key), entry)
	}

	maple.shards = shards
	maple.SetWriteIdx(maxIndex)
	return nil
}

// writeBytes writes a length prefixed byte slice
func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readBytes reads a length prefixed byte slice
func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.gate.RLock()
	defer maple.gate.RUnlock()

	keyCount := 0
	hashCount := 0
	shardSizes := make([]int, len(maple.shards))
	for i, shard := range maple.shards {
		shard.Data.Range(func(_ string, entry internal.Entry) bool {
			keyCount++
			if entry.Kind == internal.KindHash {
				hashCount++
			}
			return true
		})
		shardSizes[i] = shard.Data.Size()
	}

	meta := &struct {
		CurrentWriteIndex uint64 `json:"current_write_index"`
		ShardCount        int    `json:"shard_count"`
		ShardSizes        []int  `json:"shard_sizes"`
	}{
		CurrentWriteIndex: maple.currIndex.Load(),
		ShardCount:        len(maple.shards),
		ShardSizes:        shardSizes,
	}

	return db.DatabaseInfo{
		KeyCount:  keyCount,
		HashCount: hashCount,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureSetIfUnset,
			db.FeatureGet, db.FeatureDelete, db.FeatureHas,
			db.FeatureHash, db.FeatureRename, db.FeatureKeys, db.FeatureApply,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureSetIfUnset |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas |
		db.FeatureHash |
		db.FeatureRename |
		db.FeatureKeys |
		db.FeatureApply |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close releases the database. The in-memory engine holds no external resources.
func (maple *mapleImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the current index
// It only updates if the new index is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := maple.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if maple.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
