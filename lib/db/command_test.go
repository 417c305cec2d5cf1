package db

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name: "Set with key and value",
			command: Command{
				Type:  CommandTSet,
				Key:   "testkey",
				Value: []byte("testvalue"),
			},
			expected: 13 + 7 + 9, // Header + Key + Value
		},
		{
			name: "HSetIfUnset with field",
			command: Command{
				Type:  CommandTHSetIfUnset,
				Key:   "app:user:1:properties",
				Field: "username",
				Value: []byte("username1"),
			},
			expected: 13 + 21 + 8 + 9,
		},
		{
			name: "Rename with target",
			command: Command{
				Type:   CommandTRenameIfUnset,
				Key:    "a",
				Target: "bb",
			},
			expected: 13 + 1 + 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.command.SizeBytes()
			if size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name:    "Set with value",
			command: Command{Type: CommandTSet, Key: "testkey", Value: []byte("testvalue")},
		},
		{
			name:    "Delete without value",
			command: Command{Type: CommandTDelete, Key: "testkey"},
		},
		{
			name:    "HSetIfUnset",
			command: Command{Type: CommandTHSetIfUnset, Key: "h", Field: "f", Value: []byte("v")},
		},
		{
			name:    "HDelete",
			command: Command{Type: CommandTHDelete, Key: "h", Field: "f"},
		},
		{
			name:    "RenameIfUnset",
			command: Command{Type: CommandTRenameIfUnset, Key: "old", Target: "new"},
		},
		{
			name:    "Binary value",
			command: Command{Type: CommandTSet, Key: "binary", Value: []byte{0, 1, 2, 3, 254, 255}},
		},
		{
			name:    "Unicode key",
			command: Command{Type: CommandTSet, Key: "你好世界", Value: []byte("unicode test")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()

			var newCommand Command
			if err := newCommand.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}

			if newCommand.Type != tt.command.Type {
				t.Errorf("Type mismatch: got %v, want %v", newCommand.Type, tt.command.Type)
			}
			if newCommand.Key != tt.command.Key {
				t.Errorf("Key mismatch: got %q, want %q", newCommand.Key, tt.command.Key)
			}
			if newCommand.Field != tt.command.Field {
				t.Errorf("Field mismatch: got %q, want %q", newCommand.Field, tt.command.Field)
			}
			if newCommand.Target != tt.command.Target {
				t.Errorf("Target mismatch: got %q, want %q", newCommand.Target, tt.command.Target)
			}
			if !bytes.Equal(newCommand.Value, tt.command.Value) {
				t.Errorf("Value mismatch: got %v, want %v", newCommand.Value, tt.command.Value)
			}

			if tt.command.SizeBytes() != len(data) {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d",
					tt.command.SizeBytes(), len(data))
			}
		})
	}
}

// TestDeserializeErrors tests error cases in Deserialize
func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectedErr: "data too short for command",
		},
		{
			name:        "Data too short (less than header)",
			data:        []byte{1, 2, 3, 4, 5},
			expectedErr: "data too short for command",
		},
		{
			name: "Invalid key length",
			data: func() []byte {
				data := make([]byte, 13)
				data[0] = byte(CommandTSet)
				binary.BigEndian.PutUint32(data[1:5], 1000)
				return data
			}(),
			expectedErr: "data too short for key, field and target of length 1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("Expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

// TestBinaryFormat tests the exact binary format of serialized commands
func TestBinaryFormat(t *testing.T) {
	cmd := Command{
		Type:  CommandTHSetIfUnset,
		Key:   "key",
		Field: "fld",
		Value: []byte("val"),
	}

	expected := make([]byte, cmd.SizeBytes())
	expected[0] = byte(CommandTHSetIfUnset)
	binary.BigEndian.PutUint32(expected[1:5], 3)
	binary.BigEndian.PutUint32(expected[5:9], 3)
	binary.BigEndian.PutUint32(expected[9:13], 0)
	copy(expected[13:16], "key")
	copy(expected[16:19], "fld")
	copy(expected[19:], "val")

	serialized := cmd.Serialize()
	if !bytes.Equal(serialized, expected) {
		t.Errorf("Binary format does not match:\nGot:      %v\nExpected: %v", serialized, expected)
	}
}

func TestBatchEncoding(t *testing.T) {
	cmds := []Command{
		{Type: CommandTHSetIfUnset, Key: "app:user:1:properties", Field: "username", Value: []byte("username1")},
		{Type: CommandTDelete, Key: "app:user:1:username"},
		{Type: CommandTRenameIfUnset, Key: "a", Target: "b"},
	}

	decoded, err := DecodeBatch(EncodeBatch(cmds))
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}
	if len(decoded) != len(cmds) {
		t.Fatalf("got %d commands, want %d", len(decoded), len(cmds))
	}
	for i := range cmds {
		if decoded[i].String() != cmds[i].String() {
			t.Errorf("command %d: got %s, want %s", i, decoded[i], cmds[i])
		}
	}

	empty, err := DecodeBatch(EncodeBatch(nil))
	if err != nil || len(empty) != 0 {
		t.Errorf("empty batch: got %v, %v", empty, err)
	}

	truncated := EncodeBatch(cmds)
	if _, err := DecodeBatch(truncated[:len(truncated)-2]); err == nil {
		t.Errorf("expected error for truncated batch")
	}
}

func TestResultEncoding(t *testing.T) {
	cmds := []Command{
		{Type: CommandTRenameIfUnset, Key: "a", Target: "b"},
		{Type: CommandTDelete, Key: "c"},
	}
	results := []Result{
		{Type: CommandTRenameIfUnset, Key: "a", Applied: false},
		{Type: CommandTDelete, Key: "c", Applied: true},
	}

	decoded, err := DecodeResults(EncodeResults(results), cmds)
	if err != nil {
		t.Fatalf("DecodeResults() error = %v", err)
	}
	for i := range results {
		if decoded[i] != results[i] {
			t.Errorf("result %d: got %+v, want %+v", i, decoded[i], results[i])
		}
	}

	if _, err := DecodeResults([]byte{1}, cmds); err == nil {
		t.Errorf("expected error for result count mismatch")
	}
}
