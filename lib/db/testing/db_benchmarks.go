package testing

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/kvmig/lib/db"
	"sync/atomic"
	"testing"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("HSetIfUnset", func(b *testing.B) {
		benchmarkHSetIfUnset(b, factory())
	})

	b.Run("Keys", func(b *testing.B) {
		benchmarkKeys(b, factory())
	})

	b.Run("Apply", func(b *testing.B) {
		benchmarkApply(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Set(key, value, 0)
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value, 0)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			_, _, _ = database.Get(key)
			counter++
		}
	})
}

// Parallel benchmarking for hash writes, every goroutine fills its own hashes
func benchmarkHSetIfUnset(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureHash)

	var worker int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		id := atomic.AddInt64(&worker, 1)
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("hash-%d-%d", id, counter/16)
			field := fmt.Sprintf("field-%d", counter%16)
			_, _ = database.HSetIfUnset(key, field, []byte("value"), 0)
			counter++
		}
	})
}

// Benchmark for pattern scans, this is what key discovery of a migration does
func benchmarkKeys(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureKeys)

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("app:user:%d:username", i), []byte("user"), 0)
		database.Set(fmt.Sprintf("app:post:%d:content", i), []byte("post"), 0)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Keys("app:user:*")
	}
}

// Benchmark for atomic batches of the size a small migration produces
func benchmarkApply(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureApply)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("app:user:%d", i)
		cmds := []db.Command{
			{Type: db.CommandTSet, Key: key + ":username", Value: []byte("user")},
			{Type: db.CommandTHSetIfUnset, Key: key + ":properties", Field: "username", Value: []byte("user")},
			{Type: db.CommandTDelete, Key: key + ":username"},
			{Type: db.CommandTRenameIfUnset, Key: key + ":properties", Target: key + ":props"},
		}
		_, _ = database.Apply(cmds, uint64(i))
	}
}

// Benchmark for Save and Load operations
// For these operations, parallelization is not meaningful as they typically
// lock the entire database
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {

	database := factory()

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureSave|db.FeatureLoad)

	// Create a database with some data
	numEntries := 10000
	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value, 0)
	}

	b.Run("Save", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			_ = database.Save(&buf)
		}
	})

	// Prepare a data buffer for Load benchmark
	var loadBuf bytes.Buffer
	_ = database.Save(&loadBuf)
	data := loadBuf.Bytes()

	b.Run("Load", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			loadDB := factory()
			_ = loadDB.Load(bytes.NewReader(data))
			_ = loadDB.Close()
		}
	})
}
