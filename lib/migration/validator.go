package migration

import (
	"reflect"
	"regexp"
)

// entryFields are the fields every entry must set, checked in this order
var entryFields = []string{"cmd", "src", "dst"}

// Validator checks the structure of migrations before anything is run.
// It only knows the names of the registered commands and never touches a store.
type Validator struct {
	registry *Registry
}

// NewValidator creates a validator accepting the commands of the registry.
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// ValidateMigration validates the up action, then the down action.
// It returns the first *ValidationError found.
func (v *Validator) ValidateMigration(m *Migration) error {
	if err := v.ValidateAction(Up, m.Up); err != nil {
		return err
	}
	return v.ValidateAction(Down, m.Down)
}

// ValidateAction checks that the action is a list and validates its entries in order.
func (v *Validator) ValidateAction(dir Direction, action any) error {
	entries, ok := action.([]any)
	if !ok {
		return &ValidationError{Direction: dir, Index: -1, Entry: action, Err: ErrInvalidActionShape}
	}

	for i, entry := range entries {
		if err := v.ValidateEntry(entry); err != nil {
			err.Direction = dir
			err.Index = i
			return err
		}
	}
	return nil
}

// ValidateEntry checks a single entry:
//
//  1. the entry is a record
//  2. cmd, src and dst are set (in this order)
//  3. cmd names a registered command
//  4. src is a record whose key is a compiled expression
//  5. dst is a record whose key is a string
//
// dst.field and src.field are not checked here, the commands needing them check them when run.
func (v *Validator) ValidateEntry(entry any) *ValidationError {
	rec, ok := entry.(map[string]any)
	if !ok {
		return &ValidationError{Entry: entry, Err: ErrInvalidEntryShape}
	}

	for _, field := range entryFields {
		if !truthy(rec[field]) {
			return &ValidationError{Entry: entry, Field: field, Err: ErrMissingField}
		}
	}

	name, ok := rec["cmd"].(string)
	if !ok || !v.registry.Has(name) {
		return &ValidationError{Entry: entry, Err: ErrUnknownCommand}
	}

	src, ok := rec["src"].(map[string]any)
	if !ok {
		return &ValidationError{Entry: entry, Err: ErrInvalidSource}
	}
	if expr, ok := src["key"].(*regexp.Regexp); !ok || expr == nil {
		return &ValidationError{Entry: entry, Err: ErrInvalidSource}
	}

	dst, ok := rec["dst"].(map[string]any)
	if !ok {
		return &ValidationError{Entry: entry, Err: ErrInvalidDestination}
	}
	if _, ok := dst["key"].(string); !ok {
		return &ValidationError{Entry: entry, Err: ErrInvalidDestination}
	}

	return nil
}

// truthy reports whether a decoded value counts as set: nil, false, zero numbers,
// empty strings and nil pointers do not.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && f == f // NaN is not set
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}
