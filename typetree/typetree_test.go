package typetree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/cursor"
)

type spec struct {
	level uint8
	typ   string
	name  string
	size  int32
	meta  int32
}

func build(t *testing.T, specs ...spec) *Node {
	t.Helper()
	nodes := make([]*Node, len(specs))
	for i, s := range specs {
		nodes[i] = &Node{Level: s.level, Type: s.typ, Name: s.name, ByteSize: s.size, MetaFlag: s.meta, Index: int32(i), Version: 1}
	}
	root, err := FromList(nodes)
	if err != nil {
		t.Fatal(err)
	}
	return root
}

func stringNode(level uint8, name string, meta int32) []spec {
	return []spec{
		{level, "string", name, -1, meta},
		{level + 1, "Array", "Array", -1, AlignFlag},
		{level + 2, "int", "size", 4, 0},
		{level + 2, "char", "data", 1, 0},
	}
}

func arrayNode(level uint8, name, elem string, size int32) []spec {
	return []spec{
		{level, "vector", name, -1, 0},
		{level + 1, "Array", "Array", -1, AlignFlag},
		{level + 2, "int", "size", 4, 0},
		{level + 2, elem, "data", size, 0},
	}
}

func sampleTree(t *testing.T) *Node {
	var s []spec
	s = append(s, spec{0, "GameObject", "Base", -1, 0})
	s = append(s, stringNode(1, "m_Name", 0)...)
	s = append(s, spec{1, "bool", "m_Enabled", 1, AlignFlag})
	s = append(s,
		spec{1, "Vector3f", "m_Pos", 12, 0},
		spec{2, "float", "x", 4, 0},
		spec{2, "float", "y", 4, 0},
		spec{2, "float", "z", 4, 0},
	)
	s = append(s, arrayNode(1, "m_Ints", "SInt32", 4)...)
	s = append(s, arrayNode(1, "m_Bytes", "UInt8", 1)...)
	s = append(s, spec{1, "UInt64", "m_PathID", 8, 0})
	s = append(s,
		spec{1, "map", "m_Map", -1, 0},
		spec{2, "Array", "Array", -1, AlignFlag},
		spec{3, "int", "size", 4, 0},
		spec{3, "pair", "data", -1, 0},
	)
	s = append(s, stringNode(4, "first", 0)...)
	s = append(s, spec{4, "double", "second", 8, 0})
	s = append(s, spec{1, "SInt16", "m_Last", 2, 0})
	return build(t, s...)
}

var sampleValue = unityasset.ValueMap{
	{Name: "m_Name", Value: unityasset.ValueString("Cube")},
	{Name: "m_Enabled", Value: unityasset.ValueBool(true)},
	{Name: "m_Pos", Value: unityasset.ValueMap{
		{Name: "x", Value: unityasset.ValueFloat(1)},
		{Name: "y", Value: unityasset.ValueFloat(-2.5)},
		{Name: "z", Value: unityasset.ValueFloat(0.125)},
	}},
	{Name: "m_Ints", Value: unityasset.ValueArray{unityasset.ValueInt(-1), unityasset.ValueInt(7)}},
	{Name: "m_Bytes", Value: unityasset.ValueBytes{1, 2, 3}},
	{Name: "m_PathID", Value: unityasset.ValueUint(1 << 40)},
	{Name: "m_Map", Value: unityasset.ValueArray{
		unityasset.ValueMap{
			{Name: "first", Value: unityasset.ValueString("k")},
			{Name: "second", Value: unityasset.ValueFloat(3.5)},
		},
	}},
	{Name: "m_Last", Value: unityasset.ValueInt(-9)},
}

func encodeSample(t *testing.T, root *Node, v unityasset.Value) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := cursor.NewWriter(&buf, binary.LittleEndian)
	if err := Encode(root, v, w); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFromList(t *testing.T) {
	root := sampleTree(t)
	if len(root.Children) != 8 {
		t.Fatalf("expected 8 fields, got %d", len(root.Children))
	}
	if !root.Child("m_Ints").IsArray() || root.Child("m_Pos").IsArray() {
		t.Error("unexpected result from IsArray")
	}
	if root.Count() != len(root.Flatten()) {
		t.Error("Count and Flatten disagree")
	}
	if _, err := FromList(nil); err == nil {
		t.Error("expected error for empty list")
	}
	bad := []*Node{{Level: 1, Type: "A"}, {Level: 1, Type: "B"}}
	if _, err := FromList(bad); err == nil {
		t.Error("expected error for sibling of root")
	}
}

func TestEncodeLayout(t *testing.T) {
	root := build(t, append([]spec{{0, "TextAsset", "Base", -1, 0}},
		append(stringNode(1, "m_Name", 0), spec{1, "UInt8", "m_Flag", 1, 0}, spec{1, "int", "m_N", 4, 0})...)...)
	v := unityasset.ValueMap{
		{Name: "m_Name", Value: unityasset.ValueString("ab")},
		{Name: "m_Flag", Value: unityasset.ValueUint(5)},
		{Name: "m_N", Value: unityasset.ValueInt(-2)},
	}
	got := encodeSample(t, root, v)
	want := []byte{
		2, 0, 0, 0, 'a', 'b', 0, 0,
		5,
		0xFE, 0xFF, 0xFF, 0xFF,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("unexpected encoding\nexpected % x\ngot      % x", want, got)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	root := sampleTree(t)
	data := encodeSample(t, root, sampleValue)
	r := cursor.NewReader(data, binary.LittleEndian)
	v, err := Decode(root, r)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, unityasset.Value(sampleValue)) {
		t.Errorf("decoded value differs\nexpected %v\ngot      %v", sampleValue, v)
	}
	if r.Remaining() != 0 {
		t.Errorf("%d bytes left after decode", r.Remaining())
	}
	if again := encodeSample(t, root, v); !bytes.Equal(again, data) {
		t.Error("re-encoding decoded value changed bytes")
	}
}

func TestSkipMatchesDecode(t *testing.T) {
	root := sampleTree(t)
	data := encodeSample(t, root, sampleValue)
	for _, c := range root.Children {
		r1 := cursor.NewReader(data, nil)
		r2 := cursor.NewReader(data, nil)
		for _, prev := range root.Children {
			if prev == c {
				break
			}
			if _, err := Decode(prev, r1); err != nil {
				t.Fatal(err)
			}
			if err := Skip(prev, r2); err != nil {
				t.Fatal(err)
			}
			if r1.Pos() != r2.Pos() {
				t.Fatalf("skip of %s ended at %d, decode at %d", prev.Name, r2.Pos(), r1.Pos())
			}
		}
	}
	r := cursor.NewReader(data, nil)
	if err := Skip(root, r); err != nil {
		t.Fatal(err)
	}
	if r.Pos() != int64(len(data)) {
		t.Errorf("skip ended at %d, expected %d", r.Pos(), len(data))
	}
}

func TestReadFields(t *testing.T) {
	root := sampleTree(t)
	data := encodeSample(t, root, sampleValue)
	m, err := ReadFields(root, cursor.NewReader(data, nil), "m_Name", "m_PathID", "m_Missing")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m.Names(), []string{"m_Name", "m_PathID"}) {
		t.Errorf("unexpected fields %v", m.Names())
	}
	if m.Get("m_PathID") != unityasset.ValueUint(1<<40) {
		t.Errorf("unexpected path id %v", m.Get("m_PathID"))
	}
}

func TestDecodeUnknownType(t *testing.T) {
	root := build(t,
		spec{0, "Thing", "Base", -1, 0},
		spec{1, "int", "m_A", 4, 0},
		spec{1, "Mystery", "m_B", 4, 0},
	)
	_, err := Decode(root, cursor.NewReader(make([]byte, 8), nil))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", de.Cause)
	}
	if de.Path != "Base.m_B" || de.Offset != 4 || de.Type != "Mystery" {
		t.Errorf("unexpected error fields %+v", *de)
	}
}

func TestDecodeOversizedCount(t *testing.T) {
	root := build(t, arrayNode(0, "m_Ints", "int", 4)...)
	data := []byte{0xFF, 0xFF, 0xFF, 0x7F, 1, 0, 0, 0}
	if _, err := Decode(root, cursor.NewReader(data, nil)); !errors.Is(err, cursor.ErrOutOfBounds) {
		t.Errorf("expected out of bounds for oversized count, got %v", err)
	}
	data = []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := Decode(root, cursor.NewReader(data, nil)); !errors.Is(err, ErrNegativeCount) {
		t.Errorf("expected negative count error, got %v", err)
	}
}

func TestEncodeMismatch(t *testing.T) {
	root := sampleTree(t)
	v := sampleValue.Copy().(unityasset.ValueMap)
	v.Set("m_Name", unityasset.ValueInt(1))
	var buf bytes.Buffer
	if err := Encode(root, v, cursor.NewWriter(&buf, nil)); !errors.Is(err, ErrValueMismatch) {
		t.Errorf("expected mismatch error, got %v", err)
	}
	if err := Encode(root, unityasset.ValueMap{}, cursor.NewWriter(&buf, nil)); !errors.Is(err, ErrValueMismatch) {
		t.Errorf("expected missing field error, got %v", err)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	for _, format := range []uint32{12, 17, 19, 22} {
		root := sampleTree(t)
		root.Walk(func(n *Node) bool {
			if format >= RefHashFormat {
				n.RefTypeHash = uint64(n.Index) * 31
			}
			return true
		})
		var buf bytes.Buffer
		w := cursor.NewWriter(&buf, binary.LittleEndian)
		if err := WriteBlob(w, root, format); err != nil {
			t.Fatal(err)
		}
		r := cursor.NewReader(buf.Bytes(), binary.LittleEndian)
		got, err := ReadBlob(r, format)
		if err != nil {
			t.Fatalf("format %d: %v", format, err)
		}
		if !reflect.DeepEqual(got, root) {
			t.Errorf("format %d: tree differs\nexpected\n%s\ngot\n%s", format, root, got)
		}
		if r.Remaining() != 0 {
			t.Errorf("format %d: %d bytes left", format, r.Remaining())
		}
	}
}

func TestBlobCommonStrings(t *testing.T) {
	if s, ok := CommonString(0); !ok || s != "AABB" {
		t.Errorf("unexpected first common string %q", s)
	}
	off, ok := CommonOffset("Base")
	if !ok {
		t.Fatal("Base not in common table")
	}
	// "AABB\0AnimationClip\0AnimationCurve\0AnimationState\0Array\0" precede Base.
	if off != 5+14+15+15+6 {
		t.Errorf("unexpected offset %d for Base", off)
	}
	last, ok := CommonOffset("Hash128")
	if !ok {
		t.Fatal("Hash128 not in common table")
	}
	if s, _ := CommonString(last); s != "Hash128" {
		t.Errorf("unexpected string at last offset: %q", s)
	}

	root := build(t, spec{0, "Base", "m_Custom", 4, 0})
	var buf bytes.Buffer
	if err := WriteBlob(cursor.NewWriter(&buf, nil), root, 17); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	// Only the field name needs local storage.
	if n := binary.LittleEndian.Uint32(data[4:]); n != uint32(len("m_Custom")+1) {
		t.Errorf("unexpected string buffer size %d", n)
	}
	if typeOff := binary.LittleEndian.Uint32(data[12:]); typeOff != off|commonFlag {
		t.Errorf("expected common reference for Base, got %#x", typeOff)
	}
}

func TestBlobBadOffset(t *testing.T) {
	root := build(t, spec{0, "Thing", "x", 4, 0})
	var buf bytes.Buffer
	if err := WriteBlob(cursor.NewWriter(&buf, nil), root, 17); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[16:], 1000)
	var te *TreeError
	if _, err := ReadBlob(cursor.NewReader(data, nil), 17); !errors.As(err, &te) {
		t.Errorf("expected TreeError, got %v", err)
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	for _, format := range []uint32{2, 3, 7, 9} {
		root := sampleTree(t)
		root.Walk(func(n *Node) bool {
			n.Children = append([]*Node(nil), n.Children...)
			if len(n.Children) == 0 {
				n.Children = nil
			}
			if format == 3 {
				n.Index = 0
				n.MetaFlag = 0
			}
			if format == 2 {
				n.VariableCount = 1
			}
			return true
		})
		var buf bytes.Buffer
		w := cursor.NewWriter(&buf, binary.BigEndian)
		if err := WriteLegacy(w, root, format); err != nil {
			t.Fatal(err)
		}
		r := cursor.NewReader(buf.Bytes(), binary.BigEndian)
		got, err := ReadLegacy(r, format)
		if err != nil {
			t.Fatalf("format %d: %v", format, err)
		}
		if !reflect.DeepEqual(got, root) {
			t.Errorf("format %d: tree differs\nexpected\n%s\ngot\n%s", format, root, got)
		}
	}
}

func TestLegacyBadChildCount(t *testing.T) {
	var buf bytes.Buffer
	w := cursor.NewWriter(&buf, nil)
	w.CString("Base")
	w.CString("x")
	w.I32(-1)
	w.I32(0)
	w.I32(0)
	w.I32(1)
	w.I32(0)
	w.I32(1000000)
	if _, err := ReadLegacy(cursor.NewReader(buf.Bytes(), nil), 9); err == nil {
		t.Error("expected error for impossible child count")
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	root := sampleTree(t)
	if !c.Put("2019.4.0f1", unityasset.ClassGameObject, root) {
		t.Error("expected tree to be stored")
	}
	if c.Put("2019.4.0f1", unityasset.ClassGameObject, root.Clone()) {
		t.Error("expected existing tree to be kept")
	}
	if c.Put("2019.4.0f1", unityasset.ClassMonoBehaviour, root) {
		t.Error("script trees must not be cached")
	}
	if n, ok := c.Get("2019.4.0f1", unityasset.ClassGameObject); !ok || n != root {
		t.Error("unexpected result from Get")
	}
	if _, ok := c.Get("2020.1.0f1", unityasset.ClassGameObject); ok {
		t.Error("tree found under wrong version")
	}
	c.Reset()
	if c.Len() != 0 {
		t.Error("expected empty cache after Reset")
	}
}
