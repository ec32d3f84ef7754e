package typetree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/cursor"
)

type kind uint8

const (
	kindNone kind = iota
	kindBool
	kindI8
	kindU8
	kindI16
	kindU16
	kindI32
	kindU32
	kindI64
	kindU64
	kindF32
	kindF64
)

var primitives = map[string]kind{
	"bool":               kindBool,
	"SInt8":              kindI8,
	"UInt8":              kindU8,
	"char":               kindU8,
	"SInt16":             kindI16,
	"short":              kindI16,
	"UInt16":             kindU16,
	"unsigned short":     kindU16,
	"SInt32":             kindI32,
	"int":                kindI32,
	"UInt32":             kindU32,
	"unsigned int":       kindU32,
	"Type*":              kindU32,
	"SInt64":             kindI64,
	"long long":          kindI64,
	"UInt64":             kindU64,
	"unsigned long long": kindU64,
	"FileSize":           kindU64,
	"float":              kindF32,
	"double":             kindF64,
}

var kindSizes = [...]int64{
	kindBool: 1,
	kindI8:   1,
	kindU8:   1,
	kindI16:  2,
	kindU16:  2,
	kindI32:  4,
	kindU32:  4,
	kindI64:  8,
	kindU64:  8,
	kindF32:  4,
	kindF64:  8,
}

// IsPrimitive returns whether typ is decoded directly as a number or bool.
func IsPrimitive(typ string) bool {
	return primitives[typ] != kindNone
}

// PrimitiveSize returns the encoded size of a primitive type, or -1 if typ is
// not primitive.
func PrimitiveSize(typ string) int32 {
	if k := primitives[typ]; k != kindNone {
		return int32(kindSizes[k])
	}
	return -1
}

// isByteElement returns whether arrays of n are decoded as ValueBytes.
func isByteElement(n *Node) bool {
	if len(n.Children) != 0 || n.Aligned() {
		return false
	}
	switch n.Type {
	case "UInt8", "SInt8", "char":
		return true
	}
	return false
}

// minSize returns a lower bound of the encoded size of n, used to validate
// declared element counts before allocating.
func minSize(n *Node) int64 {
	if k := primitives[n.Type]; k != kindNone {
		return kindSizes[k]
	}
	if n.Type == "string" || n.Type == "TypelessData" || n.IsArray() {
		return 4
	}
	var s int64
	for _, c := range n.Children {
		s += minSize(c)
	}
	return s
}

func arrayParts(n *Node) (arr, elem *Node, err error) {
	arr = n.Children[0]
	if len(arr.Children) < 2 {
		return nil, nil, fmt.Errorf("array node has %d children, expected 2", len(arr.Children))
	}
	return arr, arr.Children[1], nil
}

type walker struct {
	path []string
}

func (d *walker) fail(n *Node, off int64, cause error) error {
	var de *DecodeError
	if errors.As(cause, &de) {
		return cause
	}
	return &DecodeError{Path: strings.Join(d.path, "."), Type: n.Type, Offset: off, Cause: cause}
}

////////////////////////////////////////////////////////////////

// Decode reads the value described by n from r. Primitives become ValueBool,
// ValueInt, ValueUint or ValueFloat; strings become ValueString; arrays of
// 8-bit integers and TypelessData become ValueBytes; other arrays become
// ValueArray; records become a ValueMap with fields in declared order.
//
// Declared lengths are checked against the remaining bytes before anything
// is allocated. A leaf whose type is not a known primitive is an error.
func Decode(n *Node, r *cursor.Reader) (unityasset.Value, error) {
	d := decoder{r: r}
	return d.decode(n)
}

type decoder struct {
	walker
	r *cursor.Reader
}

func (d *decoder) decode(n *Node) (v unityasset.Value, err error) {
	d.path = append(d.path, n.Name)
	defer func() { d.path = d.path[:len(d.path)-1] }()

	start := d.r.Pos()
	align := n.Aligned()
	switch {
	case IsPrimitive(n.Type):
		v, err = d.primitive(primitives[n.Type])
	case n.Type == "string":
		if len(n.Children) > 0 && n.Children[0].Aligned() {
			align = true
		}
		var b []byte
		if b, err = d.bytes(); err == nil {
			v = unityasset.ValueString(b)
		}
	case n.Type == "TypelessData":
		var b []byte
		if b, err = d.bytes(); err == nil {
			v = unityasset.ValueBytes(append([]byte(nil), b...))
		}
	case n.IsArray():
		var arr *Node
		arr, v, err = d.array(n)
		if arr != nil && arr.Aligned() {
			align = true
		}
	case len(n.Children) == 0:
		err = ErrUnknownType
	default:
		m := make(unityasset.ValueMap, len(n.Children))
		for i, c := range n.Children {
			m[i].Name = c.Name
			if m[i].Value, err = d.decode(c); err != nil {
				break
			}
		}
		v = m
	}
	if err != nil {
		return nil, d.fail(n, start, err)
	}
	if align {
		d.r.Align4()
	}
	return v, nil
}

func (d *decoder) primitive(k kind) (unityasset.Value, error) {
	r := d.r
	switch k {
	case kindBool:
		v, err := r.Bool()
		return unityasset.ValueBool(v), err
	case kindI8:
		v, err := r.I8()
		return unityasset.ValueInt(v), err
	case kindU8:
		v, err := r.U8()
		return unityasset.ValueUint(v), err
	case kindI16:
		v, err := r.I16()
		return unityasset.ValueInt(v), err
	case kindU16:
		v, err := r.U16()
		return unityasset.ValueUint(v), err
	case kindI32:
		v, err := r.I32()
		return unityasset.ValueInt(v), err
	case kindU32:
		v, err := r.U32()
		return unityasset.ValueUint(v), err
	case kindI64:
		v, err := r.I64()
		return unityasset.ValueInt(v), err
	case kindU64:
		v, err := r.U64()
		return unityasset.ValueUint(v), err
	case kindF32:
		v, err := r.F32()
		return unityasset.ValueFloat(v), err
	case kindF64:
		v, err := r.F64()
		return unityasset.ValueFloat(v), err
	}
	return nil, ErrUnknownType
}

// bytes reads a 32-bit length followed by that many bytes.
func (d *decoder) bytes() ([]byte, error) {
	n, err := d.r.I32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrNegativeCount
	}
	return d.r.Bytes(int64(n))
}

func (d *decoder) array(n *Node) (*Node, unityasset.Value, error) {
	arr, elem, err := arrayParts(n)
	if err != nil {
		return nil, nil, err
	}
	count, err := d.r.I32()
	if err != nil {
		return arr, nil, err
	}
	if count < 0 {
		return arr, nil, ErrNegativeCount
	}
	if isByteElement(elem) {
		b, err := d.r.CopyBytes(int64(count))
		if err != nil {
			return arr, nil, err
		}
		return arr, unityasset.ValueBytes(b), nil
	}
	size := minSize(elem)
	if size < 1 {
		size = 1
	}
	if err := d.r.Check(int64(count) * size); err != nil {
		return arr, nil, err
	}
	a := make(unityasset.ValueArray, count)
	for i := range a {
		if a[i], err = d.decode(elem); err != nil {
			return arr, nil, err
		}
	}
	return arr, a, nil
}

////////////////////////////////////////////////////////////////

// ReadFields decodes only the named top-level fields of the record n, skipping
// the others. Reading stops once every named field has been found. Names not
// present in the tree are absent from the result.
func ReadFields(n *Node, r *cursor.Reader, names ...string) (unityasset.ValueMap, error) {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}
	d := decoder{r: r}
	d.path = append(d.path, n.Name)
	var m unityasset.ValueMap
	for _, c := range n.Children {
		if len(want) == 0 {
			break
		}
		if want[c.Name] {
			v, err := d.decode(c)
			if err != nil {
				return nil, err
			}
			m = append(m, unityasset.Field{Name: c.Name, Value: v})
			delete(want, c.Name)
			continue
		}
		if err := d.skip(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Skip advances r past the value described by n without decoding it. Fixed
// size fields without alignment are skipped by size; variable fields are
// walked. The resulting position is the same as after Decode.
func Skip(n *Node, r *cursor.Reader) error {
	d := decoder{r: r}
	return d.skip(n)
}

// fixedSize returns the encoded size of n if it does not depend on the data
// and involves no alignment, or -1.
func fixedSize(n *Node) int64 {
	if n.Aligned() {
		return -1
	}
	if k := primitives[n.Type]; k != kindNone {
		return kindSizes[k]
	}
	if len(n.Children) == 0 || n.Type == "string" || n.Type == "TypelessData" || n.IsArray() {
		return -1
	}
	var s int64
	for _, c := range n.Children {
		cs := fixedSize(c)
		if cs < 0 {
			return -1
		}
		s += cs
	}
	return s
}

func (d *decoder) skip(n *Node) (err error) {
	d.path = append(d.path, n.Name)
	defer func() { d.path = d.path[:len(d.path)-1] }()

	start := d.r.Pos()
	if size := fixedSize(n); size >= 0 {
		if err := d.r.Check(size); err != nil {
			return d.fail(n, start, err)
		}
		return d.r.Skip(size)
	}
	align := n.Aligned()
	switch {
	case IsPrimitive(n.Type):
		err = d.r.Check(kindSizes[primitives[n.Type]])
		if err == nil {
			err = d.r.Skip(kindSizes[primitives[n.Type]])
		}
	case n.Type == "string", n.Type == "TypelessData":
		if n.Type == "string" && len(n.Children) > 0 && n.Children[0].Aligned() {
			align = true
		}
		_, err = d.bytes()
	case n.IsArray():
		var arr, elem *Node
		if arr, elem, err = arrayParts(n); err != nil {
			break
		}
		if arr.Aligned() {
			align = true
		}
		var count int32
		if count, err = d.r.I32(); err != nil {
			break
		}
		if count < 0 {
			err = ErrNegativeCount
			break
		}
		if size := fixedSize(elem); size >= 0 {
			total := int64(count) * size
			if err = d.r.Check(total); err == nil {
				err = d.r.Skip(total)
			}
			break
		}
		for i := int32(0); i < count && err == nil; i++ {
			err = d.skip(elem)
		}
	case len(n.Children) == 0:
		err = ErrUnknownType
	default:
		for _, c := range n.Children {
			if err = d.skip(c); err != nil {
				break
			}
		}
	}
	if err != nil {
		return d.fail(n, start, err)
	}
	if align {
		d.r.Align4()
	}
	return nil
}
