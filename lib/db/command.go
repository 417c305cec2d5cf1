package db

import (
	"encoding/binary"
	"fmt"
)

// CommandType defines the write operations that can be batched and applied atomically.
type CommandType uint8

const (
	CommandTSet           CommandType = iota // Insert or update a string value.
	CommandTSetIfUnset                       // Insert a string value if the key does not exist.
	CommandTDelete                           // Delete a key.
	CommandTHSetIfUnset                      // Set a hash field if it does not exist.
	CommandTHDelete                          // Delete a hash field.
	CommandTRenameIfUnset                    // Rename a key if the target does not exist.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTSet:
		return "Set"
	case CommandTSetIfUnset:
		return "SetIfUnset"
	case CommandTDelete:
		return "Delete"
	case CommandTHSetIfUnset:
		return "HSetIfUnset"
	case CommandTHDelete:
		return "HDelete"
	case CommandTRenameIfUnset:
		return "RenameIfUnset"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (Feature, error) {
	switch ct {
	case CommandTSet:
		return FeatureSet, nil
	case CommandTSetIfUnset:
		return FeatureSetIfUnset, nil
	case CommandTDelete:
		return FeatureDelete, nil
	case CommandTHSetIfUnset, CommandTHDelete:
		return FeatureHash, nil
	case CommandTRenameIfUnset:
		return FeatureRename, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command is a single write operation. Which fields are used depends on the type:
//
//   - Set, SetIfUnset: Key, Value
//   - Delete: Key
//   - HSetIfUnset: Key, Field, Value
//   - HDelete: Key, Field
//   - RenameIfUnset: Key, Target
type Command struct {
	Type   CommandType `json:"type"`
	Key    string      `json:"key"`
	Field  string      `json:"field,omitempty"`
	Target string      `json:"target,omitempty"`
	Value  []byte      `json:"value,omitempty"`
}

func (command Command) String() string {
	switch command.Type {
	case CommandTSet, CommandTSetIfUnset:
		return fmt.Sprintf("%s(%s, %q)", command.Type, command.Key, command.Value)
	case CommandTHSetIfUnset:
		return fmt.Sprintf("%s(%s, %s, %q)", command.Type, command.Key, command.Field, command.Value)
	case CommandTHDelete:
		return fmt.Sprintf("%s(%s, %s)", command.Type, command.Key, command.Field)
	case CommandTRenameIfUnset:
		return fmt.Sprintf("%s(%s, %s)", command.Type, command.Key, command.Target)
	default:
		return fmt.Sprintf("%s(%s)", command.Type, command.Key)
	}
}

// Result reports the outcome of one applied command.
// Applied is false if the command was a no-op (e.g. the target of a rename already existed).
type Result struct {
	Type    CommandType `json:"type"`
	Key     string      `json:"key"`
	Applied bool        `json:"applied"`
}

// --------------------------------------------------------------------------
// Binary encoding
// --------------------------------------------------------------------------

const commandHeaderSize = 1 + 4 + 4 + 4 // Type + KeyLen + FieldLen + TargetLen

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return commandHeaderSize + len(command.Key) + len(command.Field) + len(command.Target) + len(command.Value)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 4 bytes for key length (big endian),
// 4 bytes for field length (big endian),
// 4 bytes for target length (big endian),
// N bytes for key, field and target data,
// N bytes for value data (optional)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint32(result[1:5], uint32(len(command.Key)))
	binary.BigEndian.PutUint32(result[5:9], uint32(len(command.Field)))
	binary.BigEndian.PutUint32(result[9:13], uint32(len(command.Target)))

	offset := commandHeaderSize
	offset += copy(result[offset:], command.Key)
	offset += copy(result[offset:], command.Field)
	offset += copy(result[offset:], command.Target)
	copy(result[offset:], command.Value)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < commandHeaderSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	keyLen := int(binary.BigEndian.Uint32(data[1:5]))
	fieldLen := int(binary.BigEndian.Uint32(data[5:9]))
	targetLen := int(binary.BigEndian.Uint32(data[9:13]))

	if len(data) < commandHeaderSize+keyLen+fieldLen+targetLen {
		return fmt.Errorf("data too short for key, field and target of length %d", keyLen+fieldLen+targetLen)
	}

	offset := commandHeaderSize
	command.Key = string(data[offset : offset+keyLen])
	offset += keyLen
	command.Field = string(data[offset : offset+fieldLen])
	offset += fieldLen
	command.Target = string(data[offset : offset+targetLen])
	offset += targetLen

	if len(data) > offset {
		command.Value = make([]byte, len(data)-offset)
		copy(command.Value, data[offset:])
	} else {
		command.Value = nil
	}

	return nil
}

// EncodeBatch serializes a list of commands. Each command is prefixed with its length,
// the whole batch with the number of commands (4 bytes each, big endian).
func EncodeBatch(cmds []Command) []byte {
	size := 4
	for i := range cmds {
		size += 4 + cmds[i].SizeBytes()
	}

	result := make([]byte, size)
	binary.BigEndian.PutUint32(result[0:4], uint32(len(cmds)))

	offset := 4
	for i := range cmds {
		data := cmds[i].Serialize()
		binary.BigEndian.PutUint32(result[offset:offset+4], uint32(len(data)))
		offset += 4
		offset += copy(result[offset:], data)
	}
	return result
}

// DecodeBatch is the inverse of EncodeBatch.
func DecodeBatch(data []byte) ([]Command, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short for batch")
	}
	count := int(binary.BigEndian.Uint32(data[0:4]))

	cmds := make([]Command, 0, count)
	offset := 4
	for i := 0; i < count; i++ {
		if len(data) < offset+4 {
			return nil, fmt.Errorf("data too short for command %d of %d", i+1, count)
		}
		cmdLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
		if len(data) < offset+cmdLen {
			return nil, fmt.Errorf("data too short for command %d of length %d", i+1, cmdLen)
		}

		var cmd Command
		if err := cmd.Deserialize(data[offset : offset+cmdLen]); err != nil {
			return nil, fmt.Errorf("command %d: %w", i+1, err)
		}
		cmds = append(cmds, cmd)
		offset += cmdLen
	}

	if offset != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after batch", len(data)-offset)
	}
	return cmds, nil
}

// EncodeResults serializes the applied flags of a result list (1 byte per result).
// The type and key of each result are restored from the batch by DecodeResults.
func EncodeResults(results []Result) []byte {
	data := make([]byte, len(results))
	for i, r := range results {
		if r.Applied {
			data[i] = 1
		}
	}
	return data
}

// DecodeResults is the inverse of EncodeResults for the batch the results belong to.
func DecodeResults(data []byte, cmds []Command) ([]Result, error) {
	if len(data) != len(cmds) {
		return nil, fmt.Errorf("got %d results for %d commands", len(data), len(cmds))
	}
	results := make([]Result, len(cmds))
	for i, cmd := range cmds {
		results[i] = Result{Type: cmd.Type, Key: cmd.Key, Applied: data[i] == 1}
	}
	return results, nil
}
