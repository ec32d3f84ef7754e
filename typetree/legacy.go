package typetree

import (
	"fmt"

	"github.com/unitytools/unityasset/cursor"
)

// maxLegacyDepth bounds recursion when reading legacy trees.
const maxLegacyDepth = 64

// ReadLegacy reads a type tree in the recursive layout used by formats before
// blobs were introduced.
func ReadLegacy(r *cursor.Reader, format uint32) (*Node, error) {
	count := 0
	return readLegacy(r, format, 0, &count)
}

func readLegacy(r *cursor.Reader, format uint32, level uint8, count *int) (*Node, error) {
	if level > maxLegacyDepth {
		return nil, &TreeError{Node: *count, Cause: fmt.Errorf("tree deeper than %d levels", maxLegacyDepth)}
	}
	index := *count
	*count++
	n := &Node{Level: level}
	var err error
	if n.Type, err = r.CString(); err != nil {
		return nil, &TreeError{Node: index, Cause: err}
	}
	if n.Name, err = r.CString(); err != nil {
		return nil, &TreeError{Node: index, Cause: err}
	}
	if n.ByteSize, err = r.I32(); err != nil {
		return nil, &TreeError{Node: index, Cause: err}
	}
	if format == 2 {
		if n.VariableCount, err = r.I32(); err != nil {
			return nil, &TreeError{Node: index, Cause: err}
		}
	}
	if format != 3 {
		if n.Index, err = r.I32(); err != nil {
			return nil, &TreeError{Node: index, Cause: err}
		}
	}
	if n.TypeFlags, err = r.I32(); err != nil {
		return nil, &TreeError{Node: index, Cause: err}
	}
	if n.Version, err = r.I32(); err != nil {
		return nil, &TreeError{Node: index, Cause: err}
	}
	if format != 3 {
		if n.MetaFlag, err = r.I32(); err != nil {
			return nil, &TreeError{Node: index, Cause: err}
		}
	}
	children, err := r.I32()
	if err != nil {
		return nil, &TreeError{Node: index, Cause: err}
	}
	// Every child occupies at least two terminators and four integers.
	if children < 0 || int64(children)*18 > r.Remaining() {
		return nil, &TreeError{Node: index, Cause: fmt.Errorf("invalid child count %d", children)}
	}
	if children > 0 {
		n.Children = make([]*Node, children)
		for i := range n.Children {
			if n.Children[i], err = readLegacy(r, format, level+1, count); err != nil {
				return nil, err
			}
		}
	}
	return n, nil
}

// WriteLegacy writes a type tree in the recursive legacy layout.
func WriteLegacy(w *cursor.Writer, n *Node, format uint32) error {
	w.CString(n.Type)
	w.CString(n.Name)
	w.I32(n.ByteSize)
	if format == 2 {
		w.I32(n.VariableCount)
	}
	if format != 3 {
		w.I32(n.Index)
	}
	w.I32(n.TypeFlags)
	w.I32(n.Version)
	if format != 3 {
		w.I32(n.MetaFlag)
	}
	w.I32(int32(len(n.Children)))
	for _, c := range n.Children {
		if err := WriteLegacy(w, c, format); err != nil {
			return err
		}
	}
	return w.Err()
}
