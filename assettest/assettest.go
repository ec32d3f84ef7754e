// Package assettest builds small serialized files and bundles for tests.
package assettest

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/bundle"
	"github.com/unitytools/unityasset/declare"
	"github.com/unitytools/unityasset/serialized"
	"github.com/unitytools/unityasset/typetree"
)

// TextAssetTree returns the tree of a TextAsset with a name and a script.
func TextAssetTree() *typetree.Node {
	return declare.Node("TextAsset", "Base",
		declare.String("m_Name"),
		declare.String("m_Script"),
	).Declare()
}

// AssetBundleTree returns the tree of an AssetBundle with a preload table and
// a container.
func AssetBundleTree() *typetree.Node {
	return declare.Node("AssetBundle", "Base",
		declare.String("m_Name"),
		declare.Vector("m_PreloadTable", declare.PPtr("Object", "")),
		declare.Map("m_Container",
			declare.String(""),
			declare.Node("AssetInfo", "",
				declare.Node("int", "preloadIndex"),
				declare.Node("int", "preloadSize"),
				declare.PPtr("Object", "asset"),
			),
		),
	).Declare()
}

// File builds a serialized file of format 22 with TextAsset and AssetBundle
// types.
type File struct {
	t           testing.TB
	File        *serialized.File
	TextAsset   int32
	AssetBundle int32
}

// NewFile returns a builder for a file named name, declaring a dependency on
// each of externals.
func NewFile(t testing.TB, name string, externals ...string) *File {
	t.Helper()
	f := serialized.New(name, 22, "2019.4.0f1", binary.LittleEndian)
	b := &File{t: t, File: f}
	b.TextAsset = f.AddType(&serialized.Type{ClassID: unityasset.ClassTextAsset, ScriptTypeIndex: -1, Tree: TextAssetTree()})
	b.AssetBundle = f.AddType(&serialized.Type{ClassID: unityasset.ClassAssetBundle, ScriptTypeIndex: -1, Tree: AssetBundleTree()})
	for _, e := range externals {
		f.Externals = append(f.Externals, serialized.External{Path: "archive:/" + e + "/" + e})
	}
	return b
}

// Object adds an object of type typ with value v.
func (b *File) Object(pathID int64, typ int32, v unityasset.Value) *File {
	b.t.Helper()
	if err := b.File.AddObject(&serialized.Object{PathID: pathID, TypeID: typ}, nil); err != nil {
		b.t.Fatal(err)
	}
	if err := b.File.SetObject(pathID, v); err != nil {
		b.t.Fatal(err)
	}
	return b
}

// TextAssetValue returns the value of a TextAsset.
func TextAssetValue(name, script string) unityasset.ValueMap {
	return declare.Record(
		declare.Field("m_Name", name),
		declare.Field("m_Script", script),
	)
}

// Text adds a TextAsset.
func (b *File) Text(pathID int64, name, script string) *File {
	return b.Object(pathID, b.TextAsset, TextAssetValue(name, script))
}

// Asset is a container entry of an AssetBundle.
type Asset struct {
	Path   string
	FileID int32
	PathID int64
}

// Bundle adds an AssetBundle whose container holds assets.
func (b *File) Bundle(pathID int64, name string, assets ...Asset) *File {
	var preload, container unityasset.ValueArray
	for i, a := range assets {
		preload = append(preload, declare.Ref(a.FileID, a.PathID))
		container = append(container, declare.Record(
			declare.Field("first", a.Path),
			declare.Field("second", declare.Record(
				declare.Field("preloadIndex", i),
				declare.Field("preloadSize", 1),
				declare.Field("asset", declare.Ref(a.FileID, a.PathID)),
			)),
		))
	}
	return b.Object(pathID, b.AssetBundle, declare.Record(
		declare.Field("m_Name", name),
		declare.Field("m_PreloadTable", preload),
		declare.Field("m_Container", container),
	))
}

// Bytes encodes the file.
func (b *File) Bytes() []byte {
	b.t.Helper()
	var buf bytes.Buffer
	if _, err := b.File.WriteTo(&buf); err != nil {
		b.t.Fatal(err)
	}
	return buf.Bytes()
}

// Bundle encodes a UnityFS bundle holding entries, with LZ4 blocks.
func Bundle(t testing.TB, entries ...bundle.Entry) []byte {
	t.Helper()
	f := &bundle.File{
		Signature:     bundle.SignatureFS,
		FormatVersion: 6,
		EngineVersion: "5.x.x",
		Revision:      "2019.4.0f1",
		Entries:       entries,
	}
	var buf bytes.Buffer
	e := bundle.Encoder{Compression: bundle.LZ4, InfoCompression: bundle.LZ4}
	if _, err := e.Encode(&buf, f); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
