package unityasset

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

const jsonVersion = 0

// MarshalJSON encodes v as plain JSON. Maps become objects with fields in
// declared order, bytes become base64 strings, and non-finite floats become
// strings.
func MarshalJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendJSON(buf *bytes.Buffer, v Value) error {
	switch v := v.(type) {
	case nil, ValueNull:
		buf.WriteString("null")
	case ValueBool:
		buf.WriteString(v.String())
	case ValueInt:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case ValueUint:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case ValueFloat:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			buf.WriteString(strconv.Quote(v.String()))
			break
		}
		b, err := json.Marshal(f)
		if err != nil {
			return err
		}
		buf.Write(b)
	case ValueString:
		b, err := json.Marshal(string(v))
		if err != nil {
			return err
		}
		buf.Write(b)
	case ValueBytes:
		buf.WriteByte('"')
		buf.WriteString(base64.StdEncoding.EncodeToString(v))
		buf.WriteByte('"')
	case ValueArray:
		buf.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case ValueMap:
		buf.WriteByte('{')
		for i, f := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(f.Name)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err := appendJSON(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return errors.New("unknown value type " + v.Type().String())
	}
	return nil
}

////////////////////////////////////////////////////////////////

// TypedJSON wraps a Value so that it can be encoded to and decoded from JSON
// without losing its Type. Every value is encoded as an object with "type"
// and "value" fields; maps are encoded as arrays of name/value pairs so that
// field order survives.
type TypedJSON struct {
	Value Value
}

func (t TypedJSON) MarshalJSON() ([]byte, error) {
	iroot := map[string]interface{}{
		"unityasset_version": float64(jsonVersion),
		"root":               valueToJSONInterface(t.Value),
	}
	return json.Marshal(iroot)
}

func (t *TypedJSON) UnmarshalJSON(b []byte) error {
	var v interface{}
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		return err
	}
	var version json.Number
	if !indexJSON(v, "unityasset_version", &version) {
		return errors.New("invalid JSON value: missing version")
	}
	if n, err := version.Int64(); err != nil || n != jsonVersion {
		return errors.New("invalid JSON value: unsupported version")
	}
	var iroot interface{}
	if !indexJSON(v, "root", &iroot) {
		return errors.New("invalid JSON value: missing root")
	}
	value, ok := valueFromJSONInterface(iroot)
	if !ok {
		return errors.New("invalid JSON value")
	}
	t.Value = value
	return nil
}

func indexJSON(v, i, p interface{}) bool {
	var value interface{}
	switch object := v.(type) {
	case map[string]interface{}:
		index, ok := i.(string)
		if !ok {
			return false
		}
		value, ok = object[index]
		if !ok {
			return false
		}
	case []interface{}:
		index, ok := i.(int)
		if !ok {
			return false
		}
		if index >= len(object) || index < 0 {
			return false
		}
		value = object[index]
	default:
		return false
	}
	switch p := p.(type) {
	case *bool:
		value, ok := value.(bool)
		if !ok {
			return false
		}
		*p = value
	case *json.Number:
		value, ok := value.(json.Number)
		if !ok {
			return false
		}
		*p = value
	case *string:
		value, ok := value.(string)
		if !ok {
			return false
		}
		*p = value
	case *[]interface{}:
		value, ok := value.([]interface{})
		if !ok {
			return false
		}
		*p = value
	case *interface{}:
		*p = value
	default:
		return false
	}
	return true
}

func valueToJSONInterface(value Value) interface{} {
	if value == nil {
		value = ValueNull{}
	}
	ivalue := make(map[string]interface{}, 2)
	ivalue["type"] = value.Type().String()
	switch value := value.(type) {
	case ValueNull:
		ivalue["value"] = nil
	case ValueBool:
		ivalue["value"] = bool(value)
	case ValueInt:
		ivalue["value"] = json.Number(value.String())
	case ValueUint:
		ivalue["value"] = json.Number(value.String())
	case ValueFloat:
		f := float64(value)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			ivalue["value"] = value.String()
		} else {
			ivalue["value"] = f
		}
	case ValueString:
		ivalue["value"] = string(value)
	case ValueBytes:
		ivalue["value"] = base64.StdEncoding.EncodeToString(value)
	case ValueArray:
		elems := make([]interface{}, len(value))
		for i, e := range value {
			elems[i] = valueToJSONInterface(e)
		}
		ivalue["value"] = elems
	case ValueMap:
		fields := make([]interface{}, len(value))
		for i, f := range value {
			fields[i] = []interface{}{f.Name, valueToJSONInterface(f.Value)}
		}
		ivalue["value"] = fields
	}
	return ivalue
}

func valueFromJSONInterface(ivalue interface{}) (value Value, ok bool) {
	var typ string
	if !indexJSON(ivalue, "type", &typ) {
		return nil, false
	}
	switch TypeFromString(typ) {
	case TypeNull:
		return ValueNull{}, true
	case TypeBool:
		var v bool
		if !indexJSON(ivalue, "value", &v) {
			return nil, false
		}
		return ValueBool(v), true
	case TypeInt:
		var n json.Number
		if !indexJSON(ivalue, "value", &n) {
			return nil, false
		}
		v, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return nil, false
		}
		return ValueInt(v), true
	case TypeUint:
		var n json.Number
		if !indexJSON(ivalue, "value", &n) {
			return nil, false
		}
		v, err := strconv.ParseUint(string(n), 10, 64)
		if err != nil {
			return nil, false
		}
		return ValueUint(v), true
	case TypeFloat:
		var raw interface{}
		if !indexJSON(ivalue, "value", &raw) {
			return nil, false
		}
		var s string
		switch raw := raw.(type) {
		case json.Number:
			s = string(raw)
		case string:
			s = raw
		default:
			return nil, false
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return ValueFloat(v), true
	case TypeString:
		var v string
		if !indexJSON(ivalue, "value", &v) {
			return nil, false
		}
		return ValueString(v), true
	case TypeBytes:
		var v string
		if !indexJSON(ivalue, "value", &v) {
			return nil, false
		}
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, false
		}
		return ValueBytes(b), true
	case TypeArray:
		var elems []interface{}
		if !indexJSON(ivalue, "value", &elems) {
			return nil, false
		}
		array := make(ValueArray, len(elems))
		for i, e := range elems {
			if array[i], ok = valueFromJSONInterface(e); !ok {
				return nil, false
			}
		}
		return array, true
	case TypeMap:
		var fields []interface{}
		if !indexJSON(ivalue, "value", &fields) {
			return nil, false
		}
		m := make(ValueMap, len(fields))
		for i, f := range fields {
			var ivalue interface{}
			if !indexJSON(f, 0, &m[i].Name) || !indexJSON(f, 1, &ivalue) {
				return nil, false
			}
			if m[i].Value, ok = valueFromJSONInterface(ivalue); !ok {
				return nil, false
			}
		}
		return m, true
	}
	return nil, false
}
