// Package serialized implements the serialized file format, a container of
// objects described by per-class type trees.
//
// A file has a big-endian fixed header, a metadata block in the file's own
// byte order (engine version, platform, type table, object table, script
// types, external dependencies), and an object data region. Objects are
// decoded on request by walking their type tree over their byte range.
package serialized

import (
	"encoding/binary"
	"fmt"
	"path"
	"slices"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/cursor"
	"github.com/unitytools/unityasset/errors"
	"github.com/unitytools/unityasset/typetree"
)

// Host is implemented by the environment that owns a file. It lets a file
// reach its siblings without holding them.
type Host interface {
	// LoadDependencies loads each named file on behalf of from. Failures
	// are tolerated individually and returned together.
	LoadDependencies(from *File, names []string) error

	// File returns the serialized file registered under name, loading
	// dependencies of from if needed.
	File(from *File, name string) (*File, error)

	// ReadResource returns size bytes at offset of the raw resource
	// registered under name.
	ReadResource(from *File, name string, offset, size int64) ([]byte, error)
}

// File is a parsed serialized file.
type File struct {
	// Name is the name the file is registered under.
	Name   string
	Header Header

	// EngineVersion is the version declared by the file, possibly empty.
	EngineVersion string
	// Version is the engine version in effect: the declared version, or
	// the configured fallback.
	Version string

	Platform        int32
	TypeTreeEnabled bool
	Types           []*Type
	BigIDEnabled    bool
	Objects         map[int64]*Object
	ScriptTypes     []ScriptType
	Externals       []External
	RefTypes        []*Type
	UserInformation string

	data     []byte
	order    []int64
	replaced map[int64][]byte
	host     Host
	cache    *typetree.Cache
	settings unityasset.Settings
}

// Host returns the environment the file belongs to, or nil.
func (f *File) Host() Host { return f.host }

// SetHost attaches the file to an environment.
func (f *File) SetHost(h Host) { f.host = h }

// Data returns the bytes the file was parsed from.
func (f *File) Data() []byte { return f.data }

// ByteOrder returns the byte order of the metadata and object data.
func (f *File) ByteOrder() binary.ByteOrder { return f.Header.Order() }

// ObjectIDs returns the path ids of all objects, in ascending order.
func (f *File) ObjectIDs() []int64 {
	ids := make([]int64, 0, len(f.Objects))
	for id := range f.Objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Object returns the record of the object with the given path id.
func (f *File) Object(pathID int64) (*Object, bool) {
	obj, ok := f.Objects[pathID]
	return obj, ok
}

func (f *File) object(pathID int64) (*Object, error) {
	obj, ok := f.Objects[pathID]
	if !ok {
		return nil, ObjectError{File: f.Name, PathID: pathID, Cause: ErrObjectNotFound}
	}
	return obj, nil
}

// ObjectData returns the raw bytes of an object.
func (f *File) ObjectData(pathID int64) ([]byte, error) {
	obj, err := f.object(pathID)
	if err != nil {
		return nil, err
	}
	return f.objectData(obj), nil
}

func (f *File) objectData(obj *Object) []byte {
	if b, ok := f.replaced[obj.PathID]; ok {
		return b
	}
	return f.data[obj.ByteStart : obj.ByteStart+obj.ByteSize]
}

// TypeTree returns the tree describing obj: its own type's tree if present,
// otherwise a tree cached for the same class and engine version.
func (f *File) TypeTree(obj *Object) (*typetree.Node, error) {
	if obj.Type != nil && obj.Type.Tree != nil {
		return obj.Type.Tree, nil
	}
	if f.cache != nil && !obj.ClassID.IsScript() {
		if n, ok := f.cache.Get(f.Version, obj.ClassID); ok {
			return n, nil
		}
	}
	return nil, typetree.ErrMissingTypeTree
}

func (f *File) objectError(obj *Object, err error) error {
	var de *typetree.DecodeError
	if errors.As(err, &de) {
		de.ClassID = obj.ClassID
	}
	return ObjectError{File: f.Name, PathID: obj.PathID, ClassID: obj.ClassID, Cause: err}
}

// Decode decodes the object with the given path id into a generic value. Each
// call returns a fresh value.
func (f *File) Decode(pathID int64) (unityasset.Value, error) {
	obj, err := f.object(pathID)
	if err != nil {
		return nil, err
	}
	tree, err := f.TypeTree(obj)
	if err != nil {
		return nil, f.objectError(obj, err)
	}
	r := cursor.NewReader(f.objectData(obj), f.ByteOrder())
	v, err := typetree.Decode(tree, r)
	if err != nil {
		return nil, f.objectError(obj, err)
	}
	return v, nil
}

// Peek decodes only the named top-level fields of an object.
func (f *File) Peek(pathID int64, names ...string) (unityasset.ValueMap, error) {
	obj, err := f.object(pathID)
	if err != nil {
		return nil, err
	}
	tree, err := f.TypeTree(obj)
	if err != nil {
		return nil, f.objectError(obj, err)
	}
	r := cursor.NewReader(f.objectData(obj), f.ByteOrder())
	m, err := typetree.ReadFields(tree, r, names...)
	if err != nil {
		return nil, f.objectError(obj, err)
	}
	return m, nil
}

// ObjectName returns the m_Name field of an object, or an empty string if it
// has none.
func (f *File) ObjectName(pathID int64) (string, error) {
	m, err := f.Peek(pathID, "m_Name")
	if err != nil {
		return "", err
	}
	s, _ := m.Get("m_Name").(unityasset.ValueString)
	return string(s), nil
}

// DependencyNames returns the registered names of the file's externals, in
// declaration order.
func (f *File) DependencyNames() []string {
	names := make([]string, len(f.Externals))
	for i, e := range f.Externals {
		names[i] = e.FileName()
	}
	return names
}

// LoadDependencies asks the owning environment to load each named file. With
// no names, the file's declared externals are loaded. Individual failures do
// not stop the others; they are returned together as warn.
func (f *File) LoadDependencies(names ...string) (warn error) {
	if f.host == nil {
		return ErrNoHost
	}
	if len(names) == 0 {
		names = f.DependencyNames()
	}
	return f.host.LoadDependencies(f, names)
}

// ResolvePPtr returns the file and object referenced by a PPtr. A file id of
// zero refers to f itself; other ids index f.Externals starting at one.
func (f *File) ResolvePPtr(fileID int32, pathID int64) (*File, *Object, error) {
	if pathID == 0 {
		return nil, nil, ErrNullPPtr
	}
	target := f
	if fileID != 0 {
		if fileID < 0 || int(fileID) > len(f.Externals) {
			return nil, nil, fmt.Errorf("%s: PPtr file id %d out of range (%d externals)", f.Name, fileID, len(f.Externals))
		}
		if f.host == nil {
			return nil, nil, ErrNoHost
		}
		var err error
		if target, err = f.host.File(f, f.Externals[fileID-1].FileName()); err != nil {
			return nil, nil, err
		}
	}
	obj, err := target.object(pathID)
	if err != nil {
		return nil, nil, err
	}
	return target, obj, nil
}

// ReadResource returns size bytes at offset of an external resource stream.
// The source is a stream path as stored in objects, such as
// "archive:/CAB-x/CAB-x.resS"; only its last element is used for lookup.
func (f *File) ReadResource(source string, offset, size int64) ([]byte, error) {
	if f.host == nil {
		return nil, ErrNoHost
	}
	return f.host.ReadResource(f, path.Base(source), offset, size)
}
