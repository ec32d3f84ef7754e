package typetree

import (
	"fmt"
	"math"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/cursor"
)

// Encode writes v as described by n. It is the inverse of Decode: a value
// produced by Decode encodes to the bytes it was decoded from. Record fields
// are matched by name; missing fields and values of the wrong shape are
// errors.
func Encode(n *Node, v unityasset.Value, w *cursor.Writer) error {
	e := encoder{w: w}
	return e.encode(n, v)
}

type encoder struct {
	walker
	w *cursor.Writer
}

func mismatch(v unityasset.Value) error {
	if v == nil {
		return fmt.Errorf("%w: got nil", ErrValueMismatch)
	}
	return fmt.Errorf("%w: got %s", ErrValueMismatch, v.Type())
}

func (e *encoder) encode(n *Node, v unityasset.Value) (err error) {
	e.path = append(e.path, n.Name)
	defer func() { e.path = e.path[:len(e.path)-1] }()

	start := e.w.Pos()
	align := n.Aligned()
	switch {
	case IsPrimitive(n.Type):
		err = e.primitive(primitives[n.Type], v)
	case n.Type == "string":
		if len(n.Children) > 0 && n.Children[0].Aligned() {
			align = true
		}
		s, ok := v.(unityasset.ValueString)
		if !ok {
			err = mismatch(v)
			break
		}
		e.w.I32(int32(len(s)))
		e.w.Bytes([]byte(s))
	case n.Type == "TypelessData":
		b, ok := v.(unityasset.ValueBytes)
		if !ok {
			err = mismatch(v)
			break
		}
		e.w.I32(int32(len(b)))
		e.w.Bytes(b)
	case n.IsArray():
		var arr, elem *Node
		if arr, elem, err = arrayParts(n); err != nil {
			break
		}
		if arr.Aligned() {
			align = true
		}
		err = e.array(elem, v)
	case len(n.Children) == 0:
		err = ErrUnknownType
	default:
		m, ok := v.(unityasset.ValueMap)
		if !ok {
			err = mismatch(v)
			break
		}
		for _, c := range n.Children {
			if !m.Has(c.Name) {
				err = e.fail(c, e.w.Pos(), fmt.Errorf("%w: missing field %q", ErrValueMismatch, c.Name))
				break
			}
			if err = e.encode(c, m.Get(c.Name)); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = e.w.Err()
	}
	if err != nil {
		return e.fail(n, start, err)
	}
	if align {
		e.w.Align4()
	}
	return e.w.Err()
}

func (e *encoder) array(elem *Node, v unityasset.Value) error {
	if isByteElement(elem) {
		b, ok := v.(unityasset.ValueBytes)
		if !ok {
			return mismatch(v)
		}
		e.w.I32(int32(len(b)))
		e.w.Bytes(b)
		return nil
	}
	a, ok := v.(unityasset.ValueArray)
	if !ok {
		return mismatch(v)
	}
	e.w.I32(int32(len(a)))
	for _, elemValue := range a {
		if err := e.encode(elem, elemValue); err != nil {
			return err
		}
	}
	return nil
}

func toInt(v unityasset.Value) (int64, bool) {
	switch v := v.(type) {
	case unityasset.ValueInt:
		return int64(v), true
	case unityasset.ValueUint:
		return int64(v), true
	case unityasset.ValueBool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloat(v unityasset.Value) (float64, bool) {
	switch v := v.(type) {
	case unityasset.ValueFloat:
		return float64(v), true
	case unityasset.ValueInt:
		return float64(v), true
	case unityasset.ValueUint:
		return float64(v), true
	}
	return 0, false
}

func (e *encoder) primitive(k kind, v unityasset.Value) error {
	w := e.w
	if k == kindF32 || k == kindF64 {
		f, ok := toFloat(v)
		if !ok {
			return mismatch(v)
		}
		if k == kindF32 {
			if !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
				return fmt.Errorf("%w: %v overflows float", ErrValueMismatch, f)
			}
			w.F32(float32(f))
		} else {
			w.F64(f)
		}
		return nil
	}
	i, ok := toInt(v)
	if !ok {
		return mismatch(v)
	}
	switch k {
	case kindBool:
		w.Bool(i != 0)
	case kindI8:
		w.I8(int8(i))
	case kindU8:
		w.U8(uint8(i))
	case kindI16:
		w.I16(int16(i))
	case kindU16:
		w.U16(uint16(i))
	case kindI32:
		w.I32(int32(i))
	case kindU32:
		w.U32(uint32(i))
	case kindI64:
		w.I64(i)
	case kindU64:
		w.U64(uint64(i))
	default:
		return ErrUnknownType
	}
	return nil
}
