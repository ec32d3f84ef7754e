package serialized

import (
	"encoding/binary"
	"path"
	"strings"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/typetree"
)

// Format versions at which the layout changes.
const (
	formatMin          = 1
	formatMax          = 23
	formatEndianHeader = 9
	formatLargeFiles   = 22
)

// Header is the fixed header at the start of a file. Its fields are always
// big-endian; Endian selects the order of everything after it.
type Header struct {
	MetadataSize uint32
	FileSize     uint64
	Version      uint32
	DataOffset   uint64
	Endian       uint8
	Reserved     [3]byte
	Unknown      int64
}

// Order returns the byte order of the metadata and object data.
func (h Header) Order() binary.ByteOrder {
	if h.Endian != 0 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// headerSize returns the size of the fixed header for a format version.
func headerSize(version uint32) int64 {
	if version >= formatLargeFiles {
		return 48
	}
	return 20
}

// Type describes one class or script type used by objects in the file.
type Type struct {
	ClassID         unityasset.ClassID
	IsStripped      bool
	ScriptTypeIndex int16
	ScriptID        [16]byte
	OldTypeHash     [16]byte

	// Tree is nil when the file carries no type trees, or when reading
	// them was disabled.
	Tree *typetree.Node

	TypeDependencies []int32

	// Set for reference types only.
	ClassName    string
	Namespace    string
	AssemblyName string
}

func (t *Type) hasScriptID(version uint32, isRef bool) bool {
	return (isRef && t.ScriptTypeIndex >= 0) ||
		(version < 16 && t.ClassID < 0) ||
		(version >= 16 && t.ClassID == unityasset.ClassMonoBehaviour)
}

// Object is the record of one stored object.
type Object struct {
	PathID int64
	// ByteStart is the absolute offset of the object data within the file.
	ByteStart uint64
	ByteSize  uint64
	TypeID    int32
	ClassID   unityasset.ClassID
	// Type is nil when the file has no matching type entry.
	Type *Type
	// ScriptTypeIndex is -1 when the object has no script type.
	ScriptTypeIndex int16
	IsDestroyed     uint16
	Stripped        uint8
}

// ScriptType identifies a script referenced by the file.
type ScriptType struct {
	LocalSerializedFileIndex int32
	LocalIdentifierInFile    int64
}

// External is a declared dependency on another file.
type External struct {
	TempEmpty string
	GUID      [16]byte
	Type      int32
	Path      string
}

// FileName returns the name under which the dependency is registered, which is
// the last element of its path. Paths such as "archive:/CAB-x/CAB-x" and
// "library/unity default resources" are both handled.
func (e External) FileName() string {
	return path.Base(strings.ReplaceAll(e.Path, "\\", "/"))
}
