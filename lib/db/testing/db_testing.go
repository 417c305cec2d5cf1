package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/kvmig/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("SetIfUnset", func(t *testing.T) {
			testSetIfUnset(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("StaleWrite", func(t *testing.T) {
			testStaleWrite(t, factory())
		})

		t.Run("Hash", func(t *testing.T) {
			testHash(t, factory())
		})

		t.Run("WrongType", func(t *testing.T) {
			testWrongType(t, factory())
		})

		t.Run("RenameIfUnset", func(t *testing.T) {
			testRenameIfUnset(t, factory())
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory())
		})

		t.Run("Apply", func(t *testing.T) {
			testApply(t, factory())
		})

		t.Run("ApplyRollback", func(t *testing.T) {
			testApplyRollback(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("Concurrency", func(t *testing.T) {
			testConcurrency(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// mustGet fails the test if the key can not be read as a string
func mustGet(t *testing.T, database db.KVDB, key string) ([]byte, bool) {
	t.Helper()
	value, exists, err := database.Get(key)
	if err != nil {
		t.Fatalf("Unexpected error for Get(%s): %v", key, err)
	}
	return value, exists
}

// mustHGet fails the test if the field can not be read
func mustHGet(t *testing.T, database db.KVDB, key, field string) ([]byte, bool) {
	t.Helper()
	value, exists, err := database.HGet(key, field)
	if err != nil {
		t.Fatalf("Unexpected error for HGet(%s, %s): %v", key, field, err)
	}
	return value, exists
}

// seedFixture writes the key layout used by the migration tests
func seedFixture(database db.KVDB) {
	for i := 1; i <= 3; i++ {
		database.Set(fmt.Sprintf("app:user:%d:username", i), []byte(fmt.Sprintf("username%d", i)), 1)
		database.Set(fmt.Sprintf("app:user:%d:address", i), []byte(fmt.Sprintf("address%d", i)), 1)
		database.Set(fmt.Sprintf("app:post:%d:content", i), []byte(fmt.Sprintf("content%d", i)), 1)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Set(testKey, testValue1, 0)

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2, 0)

	result, exists = mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists = mustGet(t, database, "nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := mustGet(t, database, testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := mustGet(t, database, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}

func testSetIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetIfUnset|db.FeatureGet)

	testKey := "test-key"

	if !database.SetIfUnset(testKey, []byte("first"), 1) {
		t.Errorf("Expected SetIfUnset to apply for a missing key")
	}
	if database.SetIfUnset(testKey, []byte("second"), 2) {
		t.Errorf("Expected SetIfUnset to be a no-op for an existing key")
	}

	result, _ := mustGet(t, database, testKey)
	if !bytes.Equal(result, []byte("first")) {
		t.Errorf("Expected value first, got %s", result)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	testKey := "delete-test-key"

	database.Set(testKey, []byte("delete-test-value"), 0)

	if !database.Delete(testKey, 10) {
		t.Errorf("Expected Delete to report a removed key")
	}

	if _, exists := mustGet(t, database, testKey); exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}
	if database.Has(testKey) {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	if database.Delete("nonexistent-key", 11) {
		t.Errorf("Expected Delete of a missing key to be a no-op")
	}
	if database.Has("nonexistent-key") {
		t.Errorf("Delete of a missing key must not create it")
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas|db.FeatureHash)

	if database.Has("has-key") {
		t.Errorf("Expected Has to return false for nonexistent key")
	}

	database.Set("has-key", []byte("value"), 0)
	if !database.Has("has-key") {
		t.Errorf("Expected Has to return true after Set")
	}

	if _, err := database.HSetIfUnset("has-hash", "field", []byte("value"), 1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !database.Has("has-hash") {
		t.Errorf("Expected Has to return true for a hash")
	}
}

func testStaleWrite(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	database.Set("stale-key", []byte("new"), 10)
	database.Set("stale-key", []byte("old"), 5)

	result, _ := mustGet(t, database, "stale-key")
	if !bytes.Equal(result, []byte("new")) {
		t.Errorf("Stale write must be ignored, got %s", result)
	}

	if database.WriteIdx() != 10 {
		t.Errorf("Expected write index 10, got %d", database.WriteIdx())
	}
	database.SetWriteIdx(3)
	if database.WriteIdx() != 10 {
		t.Errorf("Write index must never decrease, got %d", database.WriteIdx())
	}
}

func testHash(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureHash|db.FeatureHas)

	key := "app:user:1:properties"

	applied, err := database.HSetIfUnset(key, "username", []byte("username1"), 1)
	if err != nil || !applied {
		t.Fatalf("Expected HSetIfUnset to create the hash, got applied=%v err=%v", applied, err)
	}

	applied, err = database.HSetIfUnset(key, "username", []byte("other"), 2)
	if err != nil || applied {
		t.Errorf("Expected HSetIfUnset to be a no-op for an existing field, got applied=%v err=%v", applied, err)
	}

	if _, err := database.HSetIfUnset(key, "address", []byte("address1"), 3); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	value, exists := mustHGet(t, database, key, "username")
	if !exists || !bytes.Equal(value, []byte("username1")) {
		t.Errorf("Expected username1, got %s (exists=%v)", value, exists)
	}

	if _, exists := mustHGet(t, database, key, "missing"); exists {
		t.Errorf("Expected missing field to not exist")
	}
	if _, exists := mustHGet(t, database, "no-such-hash", "field"); exists {
		t.Errorf("Expected field of a missing key to not exist")
	}

	applied, err = database.HDelete(key, "username", 4)
	if err != nil || !applied {
		t.Errorf("Expected HDelete to remove the field, got applied=%v err=%v", applied, err)
	}
	applied, err = database.HDelete(key, "username", 5)
	if err != nil || applied {
		t.Errorf("Expected HDelete of a removed field to be a no-op, got applied=%v err=%v", applied, err)
	}
	if !database.Has(key) {
		t.Errorf("Hash with remaining fields must still exist")
	}

	if _, err := database.HDelete(key, "address", 6); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if database.Has(key) {
		t.Errorf("Removing the last field must remove the key")
	}
}

func testWrongType(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureHash)

	database.Set("string-key", []byte("value"), 1)
	if _, err := database.HSetIfUnset("hash-key", "field", []byte("value"), 2); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := database.HSetIfUnset("string-key", "field", []byte("value"), 3); !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for HSetIfUnset on a string, got %v", err)
	}
	if _, err := database.HDelete("string-key", "field", 3); !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for HDelete on a string, got %v", err)
	}
	if _, _, err := database.HGet("string-key", "field"); !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for HGet on a string, got %v", err)
	}
	if _, _, err := database.Get("hash-key"); !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for Get on a hash, got %v", err)
	}

	// Set overwrites any kind of value
	database.Set("hash-key", []byte("now-a-string"), 4)
	result, _ := mustGet(t, database, "hash-key")
	if !bytes.Equal(result, []byte("now-a-string")) {
		t.Errorf("Expected Set to overwrite the hash, got %s", result)
	}
}

func testRenameIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureRename)

	database.Set("old", []byte("value"), 1)

	if !database.RenameIfUnset("old", "new", 2) {
		t.Errorf("Expected rename to apply")
	}
	if database.Has("old") {
		t.Errorf("Source key must not exist after rename")
	}
	result, exists := mustGet(t, database, "new")
	if !exists || !bytes.Equal(result, []byte("value")) {
		t.Errorf("Expected renamed value, got %s (exists=%v)", result, exists)
	}

	// target exists
	database.Set("other", []byte("other-value"), 3)
	if database.RenameIfUnset("other", "new", 4) {
		t.Errorf("Expected rename onto an existing key to be a no-op")
	}
	result, _ = mustGet(t, database, "new")
	if !bytes.Equal(result, []byte("value")) {
		t.Errorf("Existing target must keep its value, got %s", result)
	}
	if !database.Has("other") {
		t.Errorf("Source must be kept if the rename was not applied")
	}

	// missing source
	if database.RenameIfUnset("missing", "target", 5) {
		t.Errorf("Expected rename of a missing key to be a no-op")
	}
	if database.Has("target") {
		t.Errorf("Rename of a missing key must not create the target")
	}

	// hashes keep their fields
	if _, err := database.HSetIfUnset("hash", "f", []byte("v"), 6); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	database.RenameIfUnset("hash", "hash2", 7)
	if v, ok := mustHGet(t, database, "hash2", "f"); !ok || !bytes.Equal(v, []byte("v")) {
		t.Errorf("Expected renamed hash to keep its fields")
	}
}

func testKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureKeys)

	seedFixture(database)

	tests := []struct {
		pattern string
		want    []string
	}{
		{"app:user:*", []string{
			"app:user:1:address", "app:user:1:username",
			"app:user:2:address", "app:user:2:username",
			"app:user:3:address", "app:user:3:username",
		}},
		{"app:*:username", []string{"app:user:1:username", "app:user:2:username", "app:user:3:username"}},
		{"app:post:2:content", []string{"app:post:2:content"}},
		{"app:thread:*", []string{}},
	}

	for _, tt := range tests {
		got := database.Keys(tt.pattern)
		if len(got) != len(tt.want) {
			t.Errorf("Keys(%q) = %v, want %v", tt.pattern, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Keys(%q)[%d] = %s, want %s", tt.pattern, i, got[i], tt.want[i])
			}
		}
	}

	if len(database.Keys("*")) != 9 {
		t.Errorf("Expected 9 keys for *, got %d", len(database.Keys("*")))
	}
}

func testApply(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureApply|db.FeatureHash|db.FeatureGet)

	seedFixture(database)

	cmds := []db.Command{
		{Type: db.CommandTHSetIfUnset, Key: "app:user:1:properties", Field: "username", Value: []byte("username1")},
		{Type: db.CommandTDelete, Key: "app:user:1:username"},
		{Type: db.CommandTRenameIfUnset, Key: "app:post:1:content", Target: "app:post:1:body"},
		{Type: db.CommandTRenameIfUnset, Key: "app:post:2:content", Target: "app:post:1:body"},
		{Type: db.CommandTSet, Key: "plain", Value: []byte("v")},
	}

	results, err := database.Apply(cmds, 10)
	if err != nil {
		t.Fatalf("Unexpected error during Apply: %v", err)
	}
	if len(results) != len(cmds) {
		t.Fatalf("Expected %d results, got %d", len(cmds), len(results))
	}

	wantApplied := []bool{true, true, true, false, true}
	for i, r := range results {
		if r.Applied != wantApplied[i] {
			t.Errorf("Result %d (%s): applied=%v, want %v", i, cmds[i], r.Applied, wantApplied[i])
		}
		if r.Key != cmds[i].Key || r.Type != cmds[i].Type {
			t.Errorf("Result %d does not belong to its command: %+v", i, r)
		}
	}

	if v, ok := mustHGet(t, database, "app:user:1:properties", "username"); !ok || !bytes.Equal(v, []byte("username1")) {
		t.Errorf("Expected hash field to be written by Apply")
	}
	if database.Has("app:user:1:username") {
		t.Errorf("Expected key to be deleted by Apply")
	}
	if v, _ := mustGet(t, database, "app:post:1:body"); !bytes.Equal(v, []byte("content1")) {
		t.Errorf("Expected the first rename to win, got %s", v)
	}
	if !database.Has("app:post:2:content") {
		t.Errorf("Source of a rename that was not applied must be kept")
	}
	if database.WriteIdx() != 10 {
		t.Errorf("Expected write index 10 after Apply, got %d", database.WriteIdx())
	}

	results, err = database.Apply(nil, 11)
	if err != nil || len(results) != 0 {
		t.Errorf("Expected an empty batch to yield no results, got %v, %v", results, err)
	}
}

func testApplyRollback(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureApply|db.FeatureHash|db.FeatureGet)

	database.Set("a", []byte("a"), 1)
	database.Set("b", []byte("b"), 1)
	database.Set("string-key", []byte("s"), 1)

	cmds := []db.Command{
		{Type: db.CommandTSet, Key: "a", Value: []byte("changed")},
		{Type: db.CommandTDelete, Key: "b"},
		{Type: db.CommandTRenameIfUnset, Key: "a", Target: "c"},
		{Type: db.CommandTHSetIfUnset, Key: "new-hash", Field: "f", Value: []byte("v")},
		{Type: db.CommandTHSetIfUnset, Key: "string-key", Field: "f", Value: []byte("v")},
	}

	results, err := database.Apply(cmds, 2)
	if err == nil {
		t.Fatalf("Expected Apply to fail")
	}
	if !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType, got %v", err)
	}
	if results != nil {
		t.Errorf("Expected no results for a failed batch, got %v", results)
	}

	if v, ok := mustGet(t, database, "a"); !ok || !bytes.Equal(v, []byte("a")) {
		t.Errorf("Expected a to be restored, got %s (exists=%v)", v, ok)
	}
	if v, ok := mustGet(t, database, "b"); !ok || !bytes.Equal(v, []byte("b")) {
		t.Errorf("Expected b to be restored, got %s (exists=%v)", v, ok)
	}
	if database.Has("c") {
		t.Errorf("Expected rename target to be rolled back")
	}
	if database.Has("new-hash") {
		t.Errorf("Expected created hash to be rolled back")
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureHash|db.FeatureSave|db.FeatureLoad)

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		database.Set(fmt.Sprintf("save-load-key-%d", i), []byte(fmt.Sprintf("save-load-value-%d", i)), uint64(i))
	}
	for i := 0; i < 10; i++ {
		if _, err := database.HSetIfUnset("save-load-hash", fmt.Sprintf("field-%d", i), []byte(fmt.Sprintf("v%d", i)), uint64(numEntries+i)); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	// data in the target database must be replaced
	database2.Set("only-in-target", []byte("x"), 1)

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-key-%d", i)
		expectedValue := []byte(fmt.Sprintf("save-load-value-%d", i))

		actualValue, exists := mustGet(t, database2, key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	for i := 0; i < 10; i++ {
		v, ok := mustHGet(t, database2, "save-load-hash", fmt.Sprintf("field-%d", i))
		if !ok || !bytes.Equal(v, []byte(fmt.Sprintf("v%d", i))) {
			t.Errorf("Hash field %d mismatch after Load: %s", i, v)
		}
	}

	if database2.Has("only-in-target") {
		t.Errorf("Load must replace the existing data")
	}
	if database2.WriteIdx() != database.WriteIdx() {
		t.Errorf("Expected write index %d after Load, got %d", database.WriteIdx(), database2.WriteIdx())
	}

	if err := database2.Load(bytes.NewReader([]byte("garbage"))); err == nil {
		t.Errorf("Expected Load of invalid data to fail")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	emptyKeyValue := []byte("value for empty key")
	database.Set("", emptyKeyValue, 0)

	result, exists := mustGet(t, database, "")
	if !exists {
		t.Errorf("Empty key not found after Set")
	} else if !bytes.Equal(result, emptyKeyValue) {
		t.Errorf("Value mismatch for empty key")
	}

	database.Set("nil-value-key", nil, 0)

	result, exists = mustGet(t, database, "nil-value-key")
	if !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	largeKey := string(make([]byte, 1000))
	database.Set(largeKey, []byte("value for large key"), 0)
	if _, exists := mustGet(t, database, largeKey); !exists {
		t.Errorf("Large key not found after Set")
	}
}

func testConcurrency(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureApply)

	numWorkers := 8
	keysPerWorker := 500

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()
			for i := 0; i < keysPerWorker; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", workerId, i)
				if i%2 == 0 {
					database.Set(key, []byte(key), uint64(i))
				} else {
					_, _ = database.Apply([]db.Command{{Type: db.CommandTSet, Key: key, Value: []byte(key)}}, uint64(i))
				}
				_, _, _ = database.Get(key)
			}
		}(w)
	}

	wg.Wait()

	for w := 0; w < numWorkers; w++ {
		for i := 0; i < keysPerWorker; i++ {
			key := fmt.Sprintf("worker-%d-key-%d", w, i)
			value, exists := mustGet(t, database, key)
			if !exists || !bytes.Equal(value, []byte(key)) {
				t.Errorf("Key %s missing or wrong after concurrent writes", key)
			}
		}
	}
}
