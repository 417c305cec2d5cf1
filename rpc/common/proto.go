package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key    string `json:"key,omitempty"`    // Used for: all key operations, Keys (pattern)
	Field  string `json:"field,omitempty"`  // Used for: HGet, HSetIfUnset, HDelete
	Target string `json:"target,omitempty"` // Used for: RenameIfUnset
	Value  []byte `json:"value,omitempty"`  // Used for: Set, SetIfUnset, HSetIfUnset (request), Get, HGet (response)

	// Batch fields
	Commands []db.Command `json:"commands,omitempty"` // Used for: Exec (request)
	Results  []db.Result  `json:"results,omitempty"`  // Used for: Exec (response)
	Keys     []string     `json:"keys,omitempty"`     // Used for: Keys (response)

	// Response only fields
	Ok   bool   `json:"ok,omitempty"`   // Used for: Get, Has, HGet responses
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
	Code uint64 `json:"code,omitempty"` // Return code of a store error (store.RetCode)

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info (response, JSON encoded db.DatabaseInfo)
}

// withErr sets the error fields of a response. The code and message of a *store.Error
// are sent separately so the client can restore it.
func (m *Message) withErr(err error) *Message {
	if err == nil {
		return m
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		m.Err = storeErr.Msg
		m.Code = uint64(storeErr.Code)
		return m
	}
	m.Err = err.Error()
	m.Code = uint64(store.RetCInternalError)
	return m
}

// AsError restores the error of a response, nil if the response carries none
func (m *Message) AsError() error {
	if m.Err == "" && m.MsgType != MsgTError {
		return nil
	}
	code := store.RetCode(m.Code)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request
func NewSetRequest(key string, value []byte) *Message {
	return &Message{MsgType: MsgTKVSet, Key: key, Value: value}
}

// NewSetIfUnsetRequest creates a new SetIfUnset request
func NewSetIfUnsetRequest(key string, value []byte) *Message {
	return &Message{MsgType: MsgTKVSetIfUnset, Key: key, Value: value}
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{MsgType: MsgTKVDelete, Key: key}
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{MsgType: MsgTKVGet, Key: key}
}

// NewHasRequest creates a new Has request
func NewHasRequest(key string) *Message {
	return &Message{MsgType: MsgTKVHas, Key: key}
}

// NewHGetRequest creates a new HGet request
func NewHGetRequest(key, field string) *Message {
	return &Message{MsgType: MsgTKVHGet, Key: key, Field: field}
}

// NewHSetIfUnsetRequest creates a new HSetIfUnset request
func NewHSetIfUnsetRequest(key, field string, value []byte) *Message {
	return &Message{MsgType: MsgTKVHSetIfUnset, Key: key, Field: field, Value: value}
}

// NewHDeleteRequest creates a new HDelete request
func NewHDeleteRequest(key, field string) *Message {
	return &Message{MsgType: MsgTKVHDelete, Key: key, Field: field}
}

// NewRenameIfUnsetRequest creates a new RenameIfUnset request
func NewRenameIfUnsetRequest(key, target string) *Message {
	return &Message{MsgType: MsgTKVRenameIfUnset, Key: key, Target: target}
}

// NewKeysRequest creates a new Keys request, the pattern is sent as key
func NewKeysRequest(pattern string) *Message {
	return &Message{MsgType: MsgTKVKeys, Key: pattern}
}

// NewExecRequest creates a new Exec request
func NewExecRequest(cmds []db.Command) *Message {
	return &Message{MsgType: MsgTKVExec, Commands: cmds}
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{MsgType: MsgTKVInfo}
}

// NewResponse creates a response without payload (used for all write operations)
func NewResponse(t MessageType, err error) *Message {
	return (&Message{MsgType: t}).withErr(err)
}

// NewValueResponse creates a Get or HGet response
func NewValueResponse(t MessageType, value []byte, ok bool, err error) *Message {
	return (&Message{MsgType: t, Value: value, Ok: ok}).withErr(err)
}

// NewHasResponse creates a new Has response
func NewHasResponse(ok bool, err error) *Message {
	return (&Message{MsgType: MsgTKVHas, Ok: ok}).withErr(err)
}

// NewKeysResponse creates a new Keys response
func NewKeysResponse(keys []string, err error) *Message {
	return (&Message{MsgType: MsgTKVKeys, Keys: keys}).withErr(err)
}

// NewExecResponse creates a new Exec response
func NewExecResponse(results []db.Result, err error) *Message {
	return (&Message{MsgType: MsgTKVExec, Results: results}).withErr(err)
}

// NewInfoResponse creates a new Info response
func NewInfoResponse(info db.DatabaseInfo, err error) *Message {
	msg := &Message{MsgType: MsgTKVInfo}
	if err != nil {
		return msg.withErr(err)
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return msg.withErr(fmt.Errorf("failed to encode db info: %w", err))
	}
	msg.Meta = meta
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var msgTypeNames = map[MessageType]string{
	MsgTSuccess:         "success",
	MsgTError:           "error",
	MsgTKVSet:           "set",
	MsgTKVSetIfUnset:    "setIfUnset",
	MsgTKVDelete:        "delete",
	MsgTKVGet:           "get",
	MsgTKVHas:           "has",
	MsgTKVHGet:          "hget",
	MsgTKVHSetIfUnset:   "hsetIfUnset",
	MsgTKVHDelete:       "hdelete",
	MsgTKVRenameIfUnset: "renameIfUnset",
	MsgTKVKeys:          "keys",
	MsgTKVExec:          "exec",
	MsgTKVInfo:          "info",
	MsgTCustom:          "custom",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for msgType, name := range msgTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVSet           // Set a key-value pair
	MsgTKVSetIfUnset    // Set a key-value pair if not already set
	MsgTKVDelete        // Delete a key
	MsgTKVGet           // Get a value by key
	MsgTKVHas           // Check if a key exists
	MsgTKVHGet          // Get a hash field
	MsgTKVHSetIfUnset   // Set a hash field if not already set
	MsgTKVHDelete       // Delete a hash field
	MsgTKVRenameIfUnset // Rename a key if the target does not exist
	MsgTKVKeys          // List keys matching a pattern
	MsgTKVExec          // Apply a batch of commands atomically
	MsgTKVInfo          // Get information about the database

	// Custom operations

	MsgTCustom // Custom operation type
)
