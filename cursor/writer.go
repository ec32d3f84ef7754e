package cursor

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/anaminus/parse"
)

// Writer writes primitives to an io.Writer in a chosen byte order. Like the
// underlying parse.BinaryWriter, errors are sticky: once a write fails, every
// later write is a no-op returning true, and End reports the first error.
type Writer struct {
	fw    *parse.BinaryWriter
	order binary.ByteOrder
	base  int64
	n     int64
	buf   [8]byte
}

// NewWriter returns a Writer over w. If order is nil, little-endian is used.
func NewWriter(w io.Writer, order binary.ByteOrder) *Writer {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Writer{fw: parse.NewBinaryWriter(w), order: order}
}

// NewWriterAt is like NewWriter, but positions reported by Pos and used by
// Align start at base. It is used when the output is appended to data that
// was already written elsewhere.
func NewWriterAt(w io.Writer, order binary.ByteOrder, base int64) *Writer {
	cw := NewWriter(w, order)
	cw.base = base
	return cw
}

// Order returns the current byte order.
func (w *Writer) Order() binary.ByteOrder { return w.order }

// SetOrder changes the byte order used by subsequent writes.
func (w *Writer) SetOrder(order binary.ByteOrder) { w.order = order }

// Pos returns the number of bytes written, offset by the writer's base.
func (w *Writer) Pos() int64 { return w.base + w.n }

// Err returns the first error that occurred.
func (w *Writer) Err() error { return w.fw.Err() }

// Fail records err if no error has yet occurred, and reports whether the
// writer is in a failed state.
func (w *Writer) Fail(err error) bool { return w.fw.Add(0, err) }

// End returns the number of bytes written and the first error.
func (w *Writer) End() (n int64, err error) { return w.fw.End() }

// Bytes writes b verbatim.
func (w *Writer) Bytes(b []byte) (failed bool) {
	if w.fw.Bytes(b) {
		return true
	}
	w.n += int64(len(b))
	return false
}

func (w *Writer) num(size int, v interface{}) bool {
	if w.fw.Number(v) {
		return true
	}
	w.n += int64(size)
	return false
}

// Zero writes n zero bytes.
func (w *Writer) Zero(n int) (failed bool) {
	if n <= 0 {
		return w.fw.Err() != nil
	}
	return w.Bytes(make([]byte, n))
}

// Align pads with zeros up to the next multiple of n.
func (w *Writer) Align(n int64) (failed bool) {
	if n <= 1 {
		return w.fw.Err() != nil
	}
	if m := w.Pos() % n; m != 0 {
		return w.Zero(int(n - m))
	}
	return w.fw.Err() != nil
}

// Align4 pads to a 4-byte boundary.
func (w *Writer) Align4() (failed bool) { return w.Align(4) }

// number encodes a value in a non-native order. parse.BinaryWriter encodes
// numbers little-endian only.
func (w *Writer) number(n int, put func([]byte)) bool {
	put(w.buf[:n])
	return w.Bytes(w.buf[:n])
}

func (w *Writer) U8(v uint8) (failed bool) { return w.num(1, v) }

func (w *Writer) I8(v int8) (failed bool) { return w.num(1, v) }

func (w *Writer) Bool(v bool) (failed bool) {
	var b uint8
	if v {
		b = 1
	}
	return w.num(1, b)
}

func (w *Writer) U16(v uint16) (failed bool) {
	if w.order == binary.LittleEndian {
		return w.num(2, v)
	}
	return w.number(2, func(b []byte) { w.order.PutUint16(b, v) })
}

func (w *Writer) I16(v int16) (failed bool) { return w.U16(uint16(v)) }

func (w *Writer) U32(v uint32) (failed bool) {
	if w.order == binary.LittleEndian {
		return w.num(4, v)
	}
	return w.number(4, func(b []byte) { w.order.PutUint32(b, v) })
}

func (w *Writer) I32(v int32) (failed bool) { return w.U32(uint32(v)) }

func (w *Writer) U64(v uint64) (failed bool) {
	if w.order == binary.LittleEndian {
		return w.num(8, v)
	}
	return w.number(8, func(b []byte) { w.order.PutUint64(b, v) })
}

func (w *Writer) I64(v int64) (failed bool) { return w.U64(uint64(v)) }

func (w *Writer) F32(v float32) (failed bool) { return w.U32(math.Float32bits(v)) }

func (w *Writer) F64(v float64) (failed bool) { return w.U64(math.Float64bits(v)) }

// CString writes s followed by a NUL terminator.
func (w *Writer) CString(s string) (failed bool) {
	if w.Bytes([]byte(s)) {
		return true
	}
	return w.Bytes([]byte{0})
}

// PrefixedString writes s prefixed with its 32-bit length.
func (w *Writer) PrefixedString(s string) (failed bool) {
	if w.U32(uint32(len(s))) {
		return true
	}
	return w.Bytes([]byte(s))
}

// AlignedString writes a length-prefixed string, then pads to 4 bytes.
func (w *Writer) AlignedString(s string) (failed bool) {
	if w.PrefixedString(s) {
		return true
	}
	return w.Align4()
}
