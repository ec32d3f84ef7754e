// Package typetree implements the self-describing type trees that define the
// layout of stored objects, and the generic decoder driven by them.
//
// A tree describes one class at one engine version. Each Node names a field,
// its declared type, and its serialized size; children describe the fields
// of records, and a synthetic "Array" child marks container types. Decode
// walks a tree against a cursor and produces a unityasset.Value whose field
// names and nesting mirror the tree exactly.
package typetree

import (
	"errors"
	"fmt"
	"strings"
)

// AlignFlag is the MetaFlag bit requesting 4-byte alignment after a field.
const AlignFlag = 0x4000

// Node describes one field of a type tree. Nodes are not modified after a
// tree is built, and may be shared between many objects.
type Node struct {
	Level         uint8
	Type          string
	Name          string
	ByteSize      int32
	Index         int32
	TypeFlags     int32
	Version       int32
	MetaFlag      int32
	VariableCount int32
	RefTypeHash   uint64
	Children      []*Node
}

// Aligned returns whether the cursor is aligned to 4 bytes after the field.
func (n *Node) Aligned() bool {
	return n.MetaFlag&AlignFlag != 0
}

// IsArray returns whether the node is an array container, recognized by a
// first child of type "Array".
func (n *Node) IsArray() bool {
	return len(n.Children) > 0 && n.Children[0].Type == "Array"
}

// Child returns the first child with the given field name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Walk calls fn for n and each of its descendants in depth-first order. If fn
// returns false, the children of that node are not visited.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Flatten returns the tree as a depth-first list, the order used by the
// serialized node table.
func (n *Node) Flatten() []*Node {
	var list []*Node
	n.Walk(func(c *Node) bool {
		list = append(list, c)
		return true
	})
	return list
}

// Count returns the number of nodes in the tree.
func (n *Node) Count() int {
	c := 0
	n.Walk(func(*Node) bool { c++; return true })
	return c
}

// String returns an indented listing of the tree.
func (n *Node) String() string {
	var s strings.Builder
	n.Walk(func(c *Node) bool {
		depth := int(c.Level) - int(n.Level)
		fmt.Fprintf(&s, "%s%s %s // size=%d", strings.Repeat("\t", depth), c.Type, c.Name, c.ByteSize)
		if c.Aligned() {
			s.WriteString(" align")
		}
		s.WriteByte('\n')
		return true
	})
	return s.String()
}

var errEmptyList = errors.New("empty node list")

// FromList rebuilds a tree from a depth-first list of nodes where each node's
// Level gives its depth. Children and the result reuse the given nodes. The
// first node must have the lowest level, and every other node must be deeper
// than it.
func FromList(nodes []*Node) (*Node, error) {
	if len(nodes) == 0 {
		return nil, errEmptyList
	}
	root := nodes[0]
	root.Children = nil
	stack := []*Node{root}
	for i, n := range nodes[1:] {
		n.Children = nil
		for len(stack) > 0 && stack[len(stack)-1].Level >= n.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			return nil, fmt.Errorf("node %d (%s %s) at level %d is not below the root", i+1, n.Type, n.Name, n.Level)
		}
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, n)
		stack = append(stack, n)
	}
	return root, nil
}

// Clone returns a deep copy of the tree.
func (n *Node) Clone() *Node {
	c := *n
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}
