package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled.
// Slices are never empty: JSON and GOB do not distinguish empty from nil slices.
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Set request
		{
			MsgType: common.MsgTKVSet,
			Key:     "app:user:1:username",
			Value:   []byte("username1"),
		},

		// HGet response
		{
			MsgType: common.MsgTKVHGet,
			Key:     "app:user:1:properties",
			Field:   "username",
			Value:   []byte("username1"),
			Ok:      true,
		},

		// RenameIfUnset request
		{
			MsgType: common.MsgTKVRenameIfUnset,
			Key:     "app:post:1:lastModifiedTimestamp",
			Target:  "app:post:1:lastModified",
		},

		// Keys response
		{
			MsgType: common.MsgTKVKeys,
			Key:     "app:user:*",
			Keys:    []string{"app:user:1:address", "app:user:1:username"},
		},

		// Exec request
		{
			MsgType: common.MsgTKVExec,
			Commands: []db.Command{
				{Type: db.CommandTHSetIfUnset, Key: "app:user:1:properties", Field: "username", Value: []byte("username1")},
				{Type: db.CommandTDelete, Key: "app:user:1:username"},
				{Type: db.CommandTRenameIfUnset, Key: "a", Target: "b"},
			},
		},

		// Exec response
		{
			MsgType: common.MsgTKVExec,
			Results: []db.Result{
				{Type: db.CommandTHSetIfUnset, Key: "app:user:1:properties", Applied: true},
				{Type: db.CommandTRenameIfUnset, Key: "a", Applied: false},
			},
		},

		// Store error response
		{
			MsgType: common.MsgTKVHGet,
			Err:     "wrong type",
			Code:    4,
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},

		// Info response
		{
			MsgType: common.MsgTKVInfo,
			Meta:    []byte(`{"key_count":3}`),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// MsgTUnknown is skipped, JSON rejects it
			for msgType := common.MsgTSuccess; msgType <= common.MsgTCustom; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s", msgType, result.MsgType)
				}
			}
		})
	}
}

// TestBinaryEmptySlices tests that the binary serializer keeps empty and nil slices apart
func TestBinaryEmptySlices(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{"Empty message", common.Message{}},
		{"Empty value", common.Message{MsgType: common.MsgTKVSet, Key: "k", Value: []byte{}}},
		{"Empty meta", common.Message{MsgType: common.MsgTCustom, Meta: []byte{}}},
		{"Empty keys", common.Message{MsgType: common.MsgTKVKeys, Keys: []string{}}},
		{"Empty results", common.Message{MsgType: common.MsgTKVExec, Results: []db.Result{}}},
		{"Empty commands", common.Message{MsgType: common.MsgTKVExec, Commands: []db.Command{}}},
		{"Empty key in keys", common.Message{MsgType: common.MsgTKVKeys, Keys: []string{""}}},
		{"Ok without value", common.Message{MsgType: common.MsgTKVHas, Ok: true}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %#v\nResult: %#v", tc.msg, result)
			}
		})
	}
}

// TestBinaryDeserializeResetsMessage tests that fields of a reused message are cleared
func TestBinaryDeserializeResetsMessage(t *testing.T) {
	serializer := NewBinarySerializer()

	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTKVDelete, Key: "k"})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	msg := common.Message{Value: []byte("old"), Ok: true, Err: "old", Keys: []string{"old"}}
	if err := serializer.Deserialize(data, &msg); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}

	if !reflect.DeepEqual(msg, common.Message{MsgType: common.MsgTKVDelete, Key: "k"}) {
		t.Errorf("Stale fields after deserialize: %+v", msg)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{"Empty data", []byte{}, true},
		{"Too short header", []byte{1, 0}, true},
		{"Valid header only", []byte{1, 0, 0}, false},
		{"Invalid length for key", []byte{1, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, true},
		{"Invalid length for value", []byte{1, 0, 8, 0, 0, 0, 10}, true},
		{"Too many keys", []byte{1, 0, 64, 0xff, 0xff, 0xff, 0xff}, true},
		{"Truncated code", []byte{1, 2, 0, 0, 0, 1}, true},
		{"Invalid commands", []byte{1, 0, 16, 0, 0, 0, 4, 0, 0, 0, 1}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestFromName tests the lookup of serializers by name
func TestFromName(t *testing.T) {
	for _, name := range []string{"binary", "json", "gob", "JSON"} {
		if _, err := FromName(name); err != nil {
			t.Errorf("FromName(%q) failed: %v", name, err)
		}
	}
	if _, err := FromName("xml"); err == nil {
		t.Errorf("Expected error for unknown serializer")
	}
}
