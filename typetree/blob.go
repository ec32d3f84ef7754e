package typetree

import (
	"errors"
	"fmt"

	"github.com/unitytools/unityasset/cursor"
)

// BlobFormat is the first serialized file format that stores type trees as a
// flat node table followed by a string buffer. Format 10 also uses it.
const BlobFormat = 12

// RefHashFormat is the first format whose blob nodes carry a reference type
// hash.
const RefHashFormat = 19

// UsesBlob returns whether trees of the given serialized file format are
// stored in blob form.
func UsesBlob(format uint32) bool {
	return format >= BlobFormat || format == 10
}

func blobNodeSize(format uint32) int64 {
	if format >= RefHashFormat {
		return 32
	}
	return 24
}

type blobNode struct {
	node    *Node
	typeOff uint32
	nameOff uint32
}

// ReadBlob reads a type tree in blob form.
func ReadBlob(r *cursor.Reader, format uint32) (*Node, error) {
	count, err := r.I32()
	if err != nil {
		return nil, err
	}
	strSize, err := r.I32()
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, &TreeError{Node: 0, Cause: fmt.Errorf("invalid node count %d", count)}
	}
	if strSize < 0 {
		return nil, &TreeError{Node: 0, Cause: fmt.Errorf("invalid string buffer size %d", strSize)}
	}
	if err := r.Check(int64(count)*blobNodeSize(format) + int64(strSize)); err != nil {
		return nil, err
	}

	// The Check above covers every node, so the reads below cannot fail.
	raw := make([]blobNode, count)
	for i := range raw {
		n := new(Node)
		version, _ := r.U16()
		n.Version = int32(version)
		n.Level, _ = r.U8()
		flags, _ := r.U8()
		n.TypeFlags = int32(flags)
		raw[i].typeOff, _ = r.U32()
		raw[i].nameOff, _ = r.U32()
		n.ByteSize, _ = r.I32()
		n.Index, _ = r.I32()
		n.MetaFlag, _ = r.I32()
		if format >= RefHashFormat {
			n.RefTypeHash, _ = r.U64()
		}
		raw[i].node = n
	}
	buf, err := r.Bytes(int64(strSize))
	if err != nil {
		return nil, err
	}

	nodes := make([]*Node, count)
	for i, b := range raw {
		if b.node.Type, err = blobString(buf, b.typeOff); err != nil {
			return nil, &TreeError{Node: i, Cause: fmt.Errorf("type: %w", err)}
		}
		if b.node.Name, err = blobString(buf, b.nameOff); err != nil {
			return nil, &TreeError{Node: i, Cause: fmt.Errorf("name: %w", err)}
		}
		nodes[i] = b.node
	}
	return FromList(nodes)
}

var errStringOffset = errors.New("string offset out of range")

func blobString(buf []byte, off uint32) (string, error) {
	if off&commonFlag != 0 {
		s, ok := CommonString(off &^ commonFlag)
		if !ok {
			return "", fmt.Errorf("unknown common string offset %d", off&^commonFlag)
		}
		return s, nil
	}
	if uint64(off) >= uint64(len(buf)) {
		return "", errStringOffset
	}
	for i := int(off); i < len(buf); i++ {
		if buf[i] == 0 {
			return string(buf[off:i]), nil
		}
	}
	return "", errStringOffset
}

// WriteBlob writes a type tree in blob form. Strings present in the common
// table are referenced from it; all others are stored in the local buffer.
func WriteBlob(w *cursor.Writer, root *Node, format uint32) error {
	nodes := root.Flatten()
	var strs []byte
	local := map[string]uint32{}
	offset := func(s string) uint32 {
		if off, ok := CommonOffset(s); ok {
			return off | commonFlag
		}
		if off, ok := local[s]; ok {
			return off
		}
		off := uint32(len(strs))
		local[s] = off
		strs = append(strs, s...)
		strs = append(strs, 0)
		return off
	}
	type offsets struct{ typ, name uint32 }
	offs := make([]offsets, len(nodes))
	for i, n := range nodes {
		offs[i] = offsets{offset(n.Type), offset(n.Name)}
	}

	w.I32(int32(len(nodes)))
	w.I32(int32(len(strs)))
	for i, n := range nodes {
		w.U16(uint16(n.Version))
		w.U8(n.Level)
		w.U8(uint8(n.TypeFlags))
		w.U32(offs[i].typ)
		w.U32(offs[i].name)
		w.I32(n.ByteSize)
		w.I32(n.Index)
		w.I32(n.MetaFlag)
		if format >= RefHashFormat {
			w.U64(n.RefTypeHash)
		}
	}
	w.Bytes(strs)
	return w.Err()
}

// SkipBlob advances r past a type tree in blob form without building it.
func SkipBlob(r *cursor.Reader, format uint32) error {
	count, err := r.I32()
	if err != nil {
		return err
	}
	strSize, err := r.I32()
	if err != nil {
		return err
	}
	if count < 0 || strSize < 0 {
		return &TreeError{Node: 0, Cause: fmt.Errorf("invalid blob sizes %d, %d", count, strSize)}
	}
	size := int64(count)*blobNodeSize(format) + int64(strSize)
	if err := r.Check(size); err != nil {
		return err
	}
	return r.Skip(size)
}
