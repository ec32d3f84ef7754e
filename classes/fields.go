// Package classes provides typed views over the generic values of common
// object classes.
//
// Each view is built from a decoded value with a From function, or read
// straight from a serialized file with a Read function. Fields are looked up
// by name, so views work across engine versions as long as the fields they
// need are present. A field that a view does not model for the file's
// version is reported with ErrUnsupported rather than as a zero value.
package classes

import (
	"errors"
	"fmt"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/serialized"
)

var (
	// Indicates a field that is not modelled for the data at hand.
	ErrUnsupported = errors.New("unsupported field")
	// Indicates a required field that is absent.
	ErrMissingField = errors.New("missing field")
	// Indicates a field whose value has an unexpected type.
	ErrFieldType = errors.New("unexpected field type")
	// Indicates a field value outside the range its use allows.
	ErrFieldRange = errors.New("field value out of range")
	// Indicates an object of a different class than requested.
	ErrWrongClass = errors.New("wrong class")
)

// FieldError wraps an error that occurred while reading a field of a class.
type FieldError struct {
	Class string
	Field string
	Cause error
}

func (err *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %s", err.Class, err.Field, err.Cause)
}

func (err *FieldError) Unwrap() error {
	return err.Cause
}

// fields reads typed fields from a record. The first failure is retained and
// later reads return zero values.
type fields struct {
	class string
	m     unityasset.ValueMap
	err   error
}

func newFields(class string, v unityasset.Value) *fields {
	f := &fields{class: class}
	m, ok := v.(unityasset.ValueMap)
	if !ok {
		f.err = &FieldError{Class: class, Field: "", Cause: ErrFieldType}
	}
	f.m = m
	return f
}

func (f *fields) fail(name string, cause error) {
	if f.err == nil {
		f.err = &FieldError{Class: f.class, Field: name, Cause: cause}
	}
}

func (f *fields) has(name string) bool {
	return f.m.Has(name)
}

func (f *fields) value(name string) unityasset.Value {
	if f.err != nil {
		return nil
	}
	v := f.m.Get(name)
	if v == nil {
		f.fail(name, ErrMissingField)
	}
	return v
}

func (f *fields) int(name string) int64 {
	switch v := f.value(name).(type) {
	case nil:
	case unityasset.ValueInt:
		return int64(v)
	case unityasset.ValueUint:
		return int64(v)
	case unityasset.ValueBool:
		if v {
			return 1
		}
		return 0
	default:
		f.fail(name, ErrFieldType)
	}
	return 0
}

func (f *fields) uint(name string) uint64 {
	switch v := f.value(name).(type) {
	case nil:
	case unityasset.ValueUint:
		return uint64(v)
	case unityasset.ValueInt:
		return uint64(v)
	default:
		f.fail(name, ErrFieldType)
	}
	return 0
}

func (f *fields) float(name string) float64 {
	switch v := f.value(name).(type) {
	case nil:
	case unityasset.ValueFloat:
		return float64(v)
	case unityasset.ValueInt:
		return float64(v)
	case unityasset.ValueUint:
		return float64(v)
	default:
		f.fail(name, ErrFieldType)
	}
	return 0
}

func (f *fields) bool(name string) bool {
	switch v := f.value(name).(type) {
	case nil:
	case unityasset.ValueBool:
		return bool(v)
	default:
		f.fail(name, ErrFieldType)
	}
	return false
}

func (f *fields) str(name string) string {
	switch v := f.value(name).(type) {
	case nil:
	case unityasset.ValueString:
		return string(v)
	case unityasset.ValueBytes:
		return string(v)
	default:
		f.fail(name, ErrFieldType)
	}
	return ""
}

func (f *fields) bytes(name string) []byte {
	switch v := f.value(name).(type) {
	case nil:
	case unityasset.ValueBytes:
		return []byte(v)
	case unityasset.ValueString:
		return []byte(v)
	case unityasset.ValueArray:
		// Byte arrays with aligned elements decode as arrays.
		b := make([]byte, len(v))
		for i, e := range v {
			switch e := e.(type) {
			case unityasset.ValueUint:
				b[i] = byte(e)
			case unityasset.ValueInt:
				b[i] = byte(e)
			default:
				f.fail(name, ErrFieldType)
				return nil
			}
		}
		return b
	default:
		f.fail(name, ErrFieldType)
	}
	return nil
}

func (f *fields) array(name string) unityasset.ValueArray {
	switch v := f.value(name).(type) {
	case nil:
	case unityasset.ValueArray:
		return v
	default:
		f.fail(name, ErrFieldType)
	}
	return nil
}

func (f *fields) record(name string) unityasset.ValueMap {
	switch v := f.value(name).(type) {
	case nil:
	case unityasset.ValueMap:
		return v
	default:
		f.fail(name, ErrFieldType)
	}
	return nil
}

// sub returns a reader for a nested record.
func (f *fields) sub(name string) *fields {
	m := f.record(name)
	return &fields{class: f.class + "." + name, m: m, err: f.err}
}

// join records the error of a nested reader.
func (f *fields) join(sub *fields) {
	if f.err == nil {
		f.err = sub.err
	}
}

// decode decodes an object and checks its class.
func decode(file *serialized.File, pathID int64, class unityasset.ClassID) (unityasset.Value, error) {
	obj, ok := file.Object(pathID)
	if !ok {
		return nil, serialized.ObjectError{File: file.Name, PathID: pathID, Cause: serialized.ErrObjectNotFound}
	}
	if obj.ClassID != class {
		return nil, fmt.Errorf("object %d is %s, not %s: %w", pathID, obj.ClassID, class, ErrWrongClass)
	}
	return file.Decode(pathID)
}
