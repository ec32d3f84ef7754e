package declare

import (
	"github.com/unitytools/unityasset"
)

type field struct {
	name  string
	value any
}

// Field declares a named field of a Record. The value is converted with Value.
func Field(name string, value any) field {
	return field{name: name, value: value}
}

// Record declares a unityasset.ValueMap holding the given fields in order.
func Record(fields ...field) unityasset.ValueMap {
	m := make(unityasset.ValueMap, len(fields))
	for i, f := range fields {
		m[i] = unityasset.Field{Name: f.name, Value: Value(f.value)}
	}
	return m
}

// List declares a unityasset.ValueArray. Each element is converted with
// Value.
func List(values ...any) unityasset.ValueArray {
	a := make(unityasset.ValueArray, len(values))
	for i, v := range values {
		a[i] = Value(v)
	}
	return a
}

// Ref declares the value of a PPtr field.
func Ref(fileID int32, pathID int64) unityasset.ValueMap {
	return Record(
		Field("m_FileID", fileID),
		Field("m_PathID", pathID),
	)
}

// Value converts a Go value to a unityasset.Value:
//
//   - A unityasset.Value is returned as is.
//   - nil becomes ValueNull.
//   - Signed integers become ValueInt, and unsigned integers become
//     ValueUint.
//   - float32 and float64 become ValueFloat.
//   - bool, string and []byte become ValueBool, ValueString and ValueBytes.
//   - []any becomes a ValueArray of converted elements.
//
// Any other value becomes ValueNull.
func Value(v any) unityasset.Value {
	switch v := v.(type) {
	case unityasset.Value:
		return v
	case nil:
		return unityasset.ValueNull{}
	case int:
		return unityasset.ValueInt(v)
	case int8:
		return unityasset.ValueInt(v)
	case int16:
		return unityasset.ValueInt(v)
	case int32:
		return unityasset.ValueInt(v)
	case int64:
		return unityasset.ValueInt(v)
	case uint:
		return unityasset.ValueUint(v)
	case uint8:
		return unityasset.ValueUint(v)
	case uint16:
		return unityasset.ValueUint(v)
	case uint32:
		return unityasset.ValueUint(v)
	case uint64:
		return unityasset.ValueUint(v)
	case float32:
		return unityasset.ValueFloat(v)
	case float64:
		return unityasset.ValueFloat(v)
	case bool:
		return unityasset.ValueBool(v)
	case string:
		return unityasset.ValueString(v)
	case []byte:
		return unityasset.ValueBytes(v)
	case []any:
		return List(v...)
	}
	return unityasset.ValueNull{}
}
