package classes

import (
	"fmt"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/serialized"
)

// PPtr is a reference to an object, possibly in another file. FileID zero
// refers to the file holding the reference; other values index its externals
// starting at one.
type PPtr struct {
	FileID int32
	PathID int64
}

// PPtrFrom reads a PPtr from a decoded value.
func PPtrFrom(v unityasset.Value) (PPtr, error) {
	f := newFields("PPtr", v)
	p := PPtr{
		FileID: int32(f.int("m_FileID")),
		PathID: f.int("m_PathID"),
	}
	return p, f.err
}

func (p PPtr) Value() unityasset.ValueMap {
	return unityasset.ValueMap{
		{Name: "m_FileID", Value: unityasset.ValueInt(p.FileID)},
		{Name: "m_PathID", Value: unityasset.ValueInt(p.PathID)},
	}
}

// IsNull returns whether p refers to nothing.
func (p PPtr) IsNull() bool {
	return p.PathID == 0
}

func (p PPtr) String() string {
	return fmt.Sprintf("PPtr(%d, %d)", p.FileID, p.PathID)
}

// Resolve returns the file and object p refers to, relative to from.
func (p PPtr) Resolve(from *serialized.File) (*serialized.File, *serialized.Object, error) {
	return from.ResolvePPtr(p.FileID, p.PathID)
}

// FileName returns the name of the file p refers to, relative to from.
func (p PPtr) FileName(from *serialized.File) (string, error) {
	if p.FileID == 0 {
		return from.Name, nil
	}
	if p.FileID < 0 || int(p.FileID) > len(from.Externals) {
		return "", fmt.Errorf("%s: file id %d out of range (%d externals)", p, p.FileID, len(from.Externals))
	}
	return from.Externals[p.FileID-1].FileName(), nil
}

func (f *fields) pptr(name string) PPtr {
	v := f.value(name)
	if v == nil {
		return PPtr{}
	}
	p, err := PPtrFrom(v)
	if err != nil {
		f.fail(name, err)
	}
	return p
}
