package unityasset

import (
	"strconv"
	"strings"
)

// Type represents the kind of a decoded value.
type Type byte

// String returns a string representation of the type. If the type is not
// valid, then the returned value will be "Invalid".
func (t Type) String() string {
	s, ok := typeStrings[t]
	if !ok {
		return "Invalid"
	}
	return s
}

const (
	TypeInvalid Type = iota
	TypeNull
	TypeBool
	TypeInt
	TypeUint
	TypeFloat
	TypeString
	TypeBytes
	TypeArray
	TypeMap
)

var typeStrings = map[Type]string{
	TypeNull:   "null",
	TypeBool:   "bool",
	TypeInt:    "int",
	TypeUint:   "uint",
	TypeFloat:  "float",
	TypeString: "string",
	TypeBytes:  "bytes",
	TypeArray:  "array",
	TypeMap:    "map",
}

// TypeFromString returns a Type from its string representation. TypeInvalid
// is returned if the string does not represent an existing Type.
func TypeFromString(s string) Type {
	for typ, str := range typeStrings {
		if s == str {
			return typ
		}
	}
	return TypeInvalid
}

// Value holds a value of a particular Type. Values are produced by decoding an
// object against its TypeTree; their nesting mirrors the tree exactly.
type Value interface {
	// Type returns the kind of the value.
	Type() Type

	// String returns a string representation of the current value.
	String() string

	// Copy returns a copy of the value, which can be safely modified.
	Copy() Value
}

// NewValue returns a new zero Value of the given Type, or nil if the type is
// invalid.
func NewValue(typ Type) Value {
	newValue, ok := valueGenerators[typ]
	if !ok {
		return nil
	}
	return newValue()
}

type valueGenerator func() Value

var valueGenerators = map[Type]valueGenerator{
	TypeNull:   func() Value { return ValueNull{} },
	TypeBool:   func() Value { return ValueBool(false) },
	TypeInt:    func() Value { return ValueInt(0) },
	TypeUint:   func() Value { return ValueUint(0) },
	TypeFloat:  func() Value { return ValueFloat(0) },
	TypeString: func() Value { return ValueString("") },
	TypeBytes:  func() Value { return ValueBytes{} },
	TypeArray:  func() Value { return ValueArray{} },
	TypeMap:    func() Value { return ValueMap{} },
}

////////////////////////////////////////////////////////////////
// Values

type ValueNull struct{}

func (ValueNull) Type() Type {
	return TypeNull
}
func (ValueNull) String() string {
	return "null"
}
func (t ValueNull) Copy() Value {
	return t
}

////////////////

type ValueBool bool

func (ValueBool) Type() Type {
	return TypeBool
}
func (t ValueBool) String() string {
	if t {
		return "true"
	}
	return "false"
}
func (t ValueBool) Copy() Value {
	return t
}

////////////////

// ValueInt holds any signed integer field, regardless of its width.
type ValueInt int64

func (ValueInt) Type() Type {
	return TypeInt
}
func (t ValueInt) String() string {
	return strconv.FormatInt(int64(t), 10)
}
func (t ValueInt) Copy() Value {
	return t
}

////////////////

// ValueUint holds any unsigned integer field, regardless of its width.
type ValueUint uint64

func (ValueUint) Type() Type {
	return TypeUint
}
func (t ValueUint) String() string {
	return strconv.FormatUint(uint64(t), 10)
}
func (t ValueUint) Copy() Value {
	return t
}

////////////////

// ValueFloat holds float and double fields. Single-precision fields are
// widened when decoded and narrowed again when encoded.
type ValueFloat float64

func (ValueFloat) Type() Type {
	return TypeFloat
}
func (t ValueFloat) String() string {
	return strconv.FormatFloat(float64(t), 'g', -1, 64)
}
func (t ValueFloat) Copy() Value {
	return t
}

////////////////

type ValueString string

func (ValueString) Type() Type {
	return TypeString
}
func (t ValueString) String() string {
	return string(t)
}
func (t ValueString) Copy() Value {
	return t
}

////////////////

// ValueBytes holds raw byte arrays, such as TypelessData and arrays of 8-bit
// elements.
type ValueBytes []byte

func (ValueBytes) Type() Type {
	return TypeBytes
}
func (t ValueBytes) String() string {
	return "<" + strconv.Itoa(len(t)) + " bytes>"
}
func (t ValueBytes) Copy() Value {
	c := make(ValueBytes, len(t))
	copy(c, t)
	return c
}

////////////////

type ValueArray []Value

func (ValueArray) Type() Type {
	return TypeArray
}
func (t ValueArray) String() string {
	var s strings.Builder
	s.WriteByte('[')
	for i, v := range t {
		if i > 0 {
			s.WriteString(", ")
		}
		s.WriteString(valueString(v))
	}
	s.WriteByte(']')
	return s.String()
}
func (t ValueArray) Copy() Value {
	c := make(ValueArray, len(t))
	for i, v := range t {
		if v != nil {
			c[i] = v.Copy()
		}
	}
	return c
}

////////////////

// Field is a named entry of a ValueMap.
type Field struct {
	Name  string
	Value Value
}

// ValueMap is an ordered record. Fields appear in the order declared by the
// TypeTree node that produced it.
type ValueMap []Field

func (ValueMap) Type() Type {
	return TypeMap
}
func (t ValueMap) String() string {
	var s strings.Builder
	s.WriteByte('{')
	for i, f := range t {
		if i > 0 {
			s.WriteString(", ")
		}
		s.WriteString(f.Name)
		s.WriteString(": ")
		s.WriteString(valueString(f.Value))
	}
	s.WriteByte('}')
	return s.String()
}
func (t ValueMap) Copy() Value {
	c := make(ValueMap, len(t))
	for i, f := range t {
		c[i].Name = f.Name
		if f.Value != nil {
			c[i].Value = f.Value.Copy()
		}
	}
	return c
}

// Get returns the value of the first field with the given name, or nil if
// there is no such field.
func (t ValueMap) Get(name string) Value {
	for _, f := range t {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// Has returns whether the map contains a field with the given name.
func (t ValueMap) Has(name string) bool {
	for _, f := range t {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Set replaces the value of the named field, or appends a new field.
func (t *ValueMap) Set(name string, value Value) {
	for i, f := range *t {
		if f.Name == name {
			(*t)[i].Value = value
			return
		}
	}
	*t = append(*t, Field{Name: name, Value: value})
}

// Names returns the field names in order.
func (t ValueMap) Names() []string {
	names := make([]string, len(t))
	for i, f := range t {
		names[i] = f.Name
	}
	return names
}

func valueString(v Value) string {
	if v == nil {
		return "<nil>"
	}
	if s, ok := v.(ValueString); ok {
		return strconv.Quote(string(s))
	}
	return v.String()
}
