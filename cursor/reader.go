// Package cursor implements endian-aware sequential access to in-memory byte
// buffers.
//
// A Reader wraps an immutable byte slice with a position and a byte order.
// The byte order may be switched at any point, since container headers and
// payloads of the same file often use different orders. Every read is bounds
// checked: reading past the end of the buffer returns an *OutOfBoundsError
// instead of panicking or returning partial data. Seeking past the end is
// allowed, but the first read afterwards fails.
//
// A Writer provides the inverse operations over an io.Writer.
package cursor

import (
	"encoding/binary"
	"math"
)

// Reader reads primitives from a byte slice.
type Reader struct {
	data  []byte
	pos   int64
	order binary.ByteOrder
}

// NewReader returns a Reader over data using the given byte order. If order
// is nil, little-endian is used.
func NewReader(data []byte, order binary.ByteOrder) *Reader {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Reader{data: data, order: order}
}

// Order returns the current byte order.
func (r *Reader) Order() binary.ByteOrder { return r.order }

// SetOrder changes the byte order used by subsequent reads.
func (r *Reader) SetOrder(order binary.ByteOrder) { r.order = order }

// BigEndian returns whether the current byte order is big-endian.
func (r *Reader) BigEndian() bool { return r.order == binary.BigEndian }

// Pos returns the absolute position of the cursor.
func (r *Reader) Pos() int64 { return r.pos }

// Len returns the length of the underlying buffer.
func (r *Reader) Len() int64 { return int64(len(r.data)) }

// Remaining returns the number of bytes between the cursor and the end of the
// buffer. It is zero when the cursor is at or beyond the end.
func (r *Reader) Remaining() int64 {
	if r.pos >= int64(len(r.data)) {
		return 0
	}
	return int64(len(r.data)) - r.pos
}

// Data returns the underlying buffer.
func (r *Reader) Data() []byte { return r.data }

// SetPos moves the cursor to an absolute position. Negative positions are
// rejected; positions past the end are allowed.
func (r *Reader) SetPos(pos int64) error {
	if pos < 0 {
		return &OutOfBoundsError{Offset: pos, Requested: 0, Available: r.Len()}
	}
	r.pos = pos
	return nil
}

// Skip moves the cursor relative to its current position.
func (r *Reader) Skip(n int64) error {
	return r.SetPos(r.pos + n)
}

// Align advances the cursor to the next multiple of n.
func (r *Reader) Align(n int64) {
	if n <= 1 {
		return
	}
	if m := r.pos % n; m != 0 {
		r.pos += n - m
	}
}

// Align4 aligns the cursor to a 4-byte boundary.
func (r *Reader) Align4() { r.Align(4) }

func (r *Reader) take(n int64) ([]byte, error) {
	if n < 0 || r.pos < 0 || r.pos+n > int64(len(r.data)) || r.pos+n < r.pos {
		return nil, &OutOfBoundsError{Offset: r.pos, Requested: n, Available: r.Remaining()}
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Check returns an error if fewer than n bytes remain. It does not move the
// cursor. Callers use it to validate declared lengths before allocating.
func (r *Reader) Check(n int64) error {
	if n < 0 || n > r.Remaining() {
		return &OutOfBoundsError{Offset: r.pos, Requested: n, Available: r.Remaining()}
	}
	return nil
}

// Bytes returns the next n bytes as a sub-slice of the buffer. The result must
// not be modified.
func (r *Reader) Bytes(n int64) ([]byte, error) {
	return r.take(n)
}

// CopyBytes returns a copy of the next n bytes.
func (r *Reader) CopyBytes(n int64) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

// Bool reads a single byte, where any non-zero value is true.
func (r *Reader) Bool() (bool, error) {
	v, err := r.U8()
	return v != 0, err
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	return math.Float32frombits(v), err
}

func (r *Reader) F64() (float64, error) {
	v, err := r.U64()
	return math.Float64frombits(v), err
}

// CString reads a NUL-terminated string. The terminator is consumed but not
// included in the result.
func (r *Reader) CString() (string, error) {
	start := r.pos
	if start < 0 || start >= int64(len(r.data)) {
		return "", &OutOfBoundsError{Offset: start, Requested: 1, Available: 0}
	}
	for i := start; i < int64(len(r.data)); i++ {
		if r.data[i] == 0 {
			r.pos = i + 1
			return string(r.data[start:i]), nil
		}
	}
	return "", &OutOfBoundsError{Offset: start, Requested: int64(len(r.data)) - start + 1, Available: int64(len(r.data)) - start}
}

// FixedCString reads n bytes and returns the content up to the first NUL.
func (r *Reader) FixedCString(n int64) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return string(b), nil
}

// PrefixedString reads a string prefixed with a 32-bit length. The declared
// length is validated against the remaining bytes before anything is
// allocated.
func (r *Reader) PrefixedString() (string, error) {
	n, err := r.U32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int64(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AlignedString reads a length-prefixed string, then aligns to 4 bytes.
func (r *Reader) AlignedString() (string, error) {
	s, err := r.PrefixedString()
	if err != nil {
		return "", err
	}
	r.Align4()
	return s, nil
}

// Sub returns a new Reader over the n bytes at the cursor, using the same
// byte order, and advances past them.
func (r *Reader) Sub(n int64) (*Reader, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b, r.order), nil
}
