// The declare package is used to generate type trees and object values in a
// declarative style.
//
// Most Node and Field arguments are interpreted loosely, so that a tree or a
// value reads close to the layout it describes:
//
//	tree := declare.Node("TextAsset", "Base",
//		declare.String("m_Name"),
//		declare.String("m_Script"),
//	).Declare()
//	value := declare.Record(
//		declare.Field("m_Name", "readme"),
//		declare.Field("m_Script", "hello"),
//	)
package declare

import (
	"github.com/unitytools/unityasset/typetree"
)

type element interface {
	element()
}

// Meta sets bits of the MetaFlag of the Node under which it is declared.
type Meta int32

func (Meta) element() {}

// Aligned marks a node whose field is followed by 4-byte alignment.
const Aligned = Meta(typetree.AlignFlag)

// Size overrides the ByteSize of the Node under which it is declared.
type Size int32

func (Size) element() {}

// Version sets the Version of the Node under which it is declared.
type Version int32

func (Version) element() {}

type node struct {
	typ      string
	name     string
	size     int32
	sized    bool
	meta     int32
	version  int32
	children []node
}

func (node) element() {}

// Node declares a typetree.Node with a type name and a field name. Each
// element is one of the following:
//
//   - Another Node, which is appended as a child.
//   - Meta, which is OR'd into the MetaFlag.
//   - Size, which sets the ByteSize.
//   - Version, which sets the Version.
//
// When no Size is declared, a node without children gets the size of its
// primitive type, a PPtr gets 12, and anything else gets -1. The Version
// defaults to 1.
func Node(typ, name string, elements ...element) node {
	n := node{typ: typ, name: name, version: 1}
	for _, e := range elements {
		switch e := e.(type) {
		case node:
			n.children = append(n.children, e)
		case Meta:
			n.meta |= int32(e)
		case Size:
			n.size = int32(e)
			n.sized = true
		case Version:
			n.version = int32(e)
		}
	}
	return n
}

// Named returns a copy of the node with a different field name.
func (n node) Named(name string) node {
	n.name = name
	return n
}

// String declares a string field.
func String(name string, elements ...element) node {
	return Node("string", name, append([]element{
		Node("Array", "Array", Aligned,
			Node("int", "size"),
			Node("char", "data"),
		),
	}, elements...)...)
}

// Vector declares a vector field whose elements have the layout of elem.
func Vector(name string, elem node, elements ...element) node {
	return Node("vector", name, append([]element{
		Node("Array", "Array", Aligned,
			Node("int", "size"),
			elem.Named("data"),
		),
	}, elements...)...)
}

// Map declares a map field with keys of layout key and values of layout
// value.
func Map(name string, key, value node) node {
	return Node("map", name,
		Node("Array", "Array", Aligned,
			Node("int", "size"),
			Node("pair", "data",
				key.Named("first"),
				value.Named("second"),
			),
		),
	)
}

// PPtr declares a reference to an object of the given class.
func PPtr(class, name string) node {
	return Node("PPtr<"+class+">", name,
		Node("int", "m_FileID"),
		Node("SInt64", "m_PathID"),
	)
}

func (n node) byteSize() int32 {
	switch {
	case n.sized:
		return n.size
	case len(n.children) == 0:
		return typetree.PrimitiveSize(n.typ)
	case len(n.typ) > 5 && n.typ[:5] == "PPtr<":
		return 12
	}
	return -1
}

func (n node) flatten(level uint8, list []*typetree.Node) []*typetree.Node {
	list = append(list, &typetree.Node{
		Level:    level,
		Type:     n.typ,
		Name:     n.name,
		ByteSize: n.byteSize(),
		Index:    int32(len(list)),
		Version:  n.version,
		MetaFlag: n.meta,
	})
	for _, c := range n.children {
		list = c.flatten(level+1, list)
	}
	return list
}

// Declare evaluates the Node declaration, producing a linked tree whose node
// indices follow depth-first order.
func (n node) Declare() *typetree.Node {
	list := n.flatten(0, nil)
	root, _ := typetree.FromList(list)
	return root
}
