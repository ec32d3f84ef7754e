package serialized

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/cursor"
	"github.com/unitytools/unityasset/typetree"
)

// New returns an empty file of the given format version, to be filled with
// AddType and AddObject and written with WriteTo.
func New(name string, format uint32, engineVersion string, order binary.ByteOrder) *File {
	f := &File{
		Name:            name,
		Header:          Header{Version: format},
		EngineVersion:   engineVersion,
		Version:         engineVersion,
		TypeTreeEnabled: true,
		Objects:         map[int64]*Object{},
		cache:           typetree.DefaultCache,
		settings:        unityasset.CurrentSettings(),
	}
	if order == binary.BigEndian {
		f.Header.Endian = 1
	}
	return f
}

// AddType appends t to the type table and returns its index.
func (f *File) AddType(t *Type) int32 {
	f.Types = append(f.Types, t)
	return int32(len(f.Types) - 1)
}

// AddObject adds an object with the given data. For formats 16 and later,
// obj.TypeID must index the type table, and the class and script type index
// are taken from the type.
func (f *File) AddObject(obj *Object, data []byte) error {
	if _, ok := f.Objects[obj.PathID]; ok {
		return fmt.Errorf("%w %d", ErrDuplicatePathID, obj.PathID)
	}
	if f.Header.Version >= 16 {
		if obj.TypeID < 0 || int(obj.TypeID) >= len(f.Types) {
			return fmt.Errorf("object %d: type index %d out of range", obj.PathID, obj.TypeID)
		}
		obj.Type = f.Types[obj.TypeID]
		obj.ClassID = obj.Type.ClassID
		if f.Header.Version >= 17 {
			obj.ScriptTypeIndex = obj.Type.ScriptTypeIndex
		}
	} else if obj.Type == nil {
		obj.Type = f.typeByClass(obj.TypeID)
	}
	f.Objects[obj.PathID] = obj
	f.order = append(f.order, obj.PathID)
	return f.SetObjectData(obj.PathID, data)
}

// SetObjectData replaces the raw bytes of an object. The new data is used by
// Decode and WriteTo.
func (f *File) SetObjectData(pathID int64, data []byte) error {
	obj, err := f.object(pathID)
	if err != nil {
		return err
	}
	if f.replaced == nil {
		f.replaced = map[int64][]byte{}
	}
	f.replaced[pathID] = data
	obj.ByteSize = uint64(len(data))
	return nil
}

// SetObject encodes v with the object's type tree and replaces the object's
// data with the result.
func (f *File) SetObject(pathID int64, v unityasset.Value) error {
	obj, err := f.object(pathID)
	if err != nil {
		return err
	}
	tree, err := f.TypeTree(obj)
	if err != nil {
		return f.objectError(obj, err)
	}
	var buf bytes.Buffer
	if err := typetree.Encode(tree, v, cursor.NewWriter(&buf, f.ByteOrder())); err != nil {
		return f.objectError(obj, err)
	}
	return f.SetObjectData(pathID, buf.Bytes())
}

const (
	objectAlign = 8
	dataAlign   = 16
)

func alignUp(n, a uint64) uint64 {
	if m := n % a; m != 0 {
		n += a - m
	}
	return n
}

type placement struct {
	obj  *Object
	data []byte
	rel  uint64
}

// WriteTo encodes the file to w. Objects are written in their original order,
// each aligned to 8 bytes within the data region. Formats before 9, which
// store metadata at the end of the file, are not supported.
func (f *File) WriteTo(w io.Writer) (n int64, err error) {
	v := f.Header.Version
	if v < formatEndianHeader || v > formatMax {
		return 0, fmt.Errorf("write format %d: %w", v, ErrUnsupported)
	}
	hsize := headerSize(v)
	order := f.Header.Order()

	placed := make([]placement, 0, len(f.order))
	var rel uint64
	for _, id := range f.order {
		obj := f.Objects[id]
		data := f.objectData(obj)
		rel = alignUp(rel, objectAlign)
		placed = append(placed, placement{obj: obj, data: data, rel: rel})
		rel += uint64(len(data))
	}
	if v < formatLargeFiles && rel > math.MaxUint32 {
		return 0, fmt.Errorf("object data of %d bytes requires format %d: %w", rel, formatLargeFiles, ErrUnsupported)
	}

	var meta bytes.Buffer
	mw := cursor.NewWriterAt(&meta, order, hsize)
	if err := f.writeMetadata(mw, placed); err != nil {
		return 0, err
	}
	metaSize := uint64(meta.Len())
	dataOffset := alignUp(uint64(hsize)+metaSize, dataAlign)
	fileSize := dataOffset + rel

	hw := cursor.NewWriter(w, binary.BigEndian)
	if v >= formatLargeFiles {
		hw.U32(0)
		hw.U32(0)
		hw.U32(v)
		hw.U32(0)
	} else {
		hw.U32(uint32(metaSize))
		hw.U32(uint32(fileSize))
		hw.U32(v)
		hw.U32(uint32(dataOffset))
	}
	hw.U8(f.Header.Endian)
	hw.Bytes(f.Header.Reserved[:])
	if v >= formatLargeFiles {
		hw.U32(uint32(metaSize))
		hw.I64(int64(fileSize))
		hw.I64(int64(dataOffset))
		hw.I64(f.Header.Unknown)
	}
	hw.Bytes(meta.Bytes())
	hw.Align(dataAlign)
	for _, p := range placed {
		hw.Zero(int(dataOffset + p.rel - uint64(hw.Pos())))
		hw.Bytes(p.data)
	}
	return hw.End()
}

func (f *File) writeMetadata(w *cursor.Writer, placed []placement) error {
	v := f.Header.Version
	if v >= 7 {
		w.CString(f.EngineVersion)
	}
	if v >= 8 {
		w.I32(f.Platform)
	}
	if v >= 13 {
		w.Bool(f.TypeTreeEnabled)
	}
	w.I32(int32(len(f.Types)))
	for _, t := range f.Types {
		if err := f.writeType(w, t, false); err != nil {
			return err
		}
	}
	if v >= 7 && v < 14 {
		if f.BigIDEnabled {
			w.I32(1)
		} else {
			w.I32(0)
		}
	}

	w.I32(int32(len(placed)))
	for _, p := range placed {
		obj := p.obj
		switch {
		case f.BigIDEnabled:
			w.I64(obj.PathID)
		case v < 14:
			w.I32(int32(obj.PathID))
		default:
			w.Align4()
			w.I64(obj.PathID)
		}
		if v >= formatLargeFiles {
			w.I64(int64(p.rel))
		} else {
			w.U32(uint32(p.rel))
		}
		w.U32(uint32(len(p.data)))
		w.I32(obj.TypeID)
		if v < 16 {
			w.U16(uint16(obj.ClassID))
		}
		if v < 11 {
			w.U16(obj.IsDestroyed)
		}
		if v >= 11 && v < 17 {
			w.I16(obj.ScriptTypeIndex)
		}
		if v == 15 || v == 16 {
			w.U8(obj.Stripped)
		}
	}

	if v >= 11 {
		w.I32(int32(len(f.ScriptTypes)))
		for _, s := range f.ScriptTypes {
			w.I32(s.LocalSerializedFileIndex)
			if v < 14 {
				w.I32(int32(s.LocalIdentifierInFile))
			} else {
				w.Align4()
				w.I64(s.LocalIdentifierInFile)
			}
		}
	}

	w.I32(int32(len(f.Externals)))
	for _, e := range f.Externals {
		if v >= 6 {
			w.CString(e.TempEmpty)
		}
		if v >= 5 {
			w.Bytes(e.GUID[:])
			w.I32(e.Type)
		}
		w.CString(e.Path)
	}

	if v >= 20 {
		w.I32(int32(len(f.RefTypes)))
		for _, t := range f.RefTypes {
			if err := f.writeType(w, t, true); err != nil {
				return err
			}
		}
	}
	if v >= 5 {
		w.CString(f.UserInformation)
	}
	return w.Err()
}

func (f *File) writeType(w *cursor.Writer, t *Type, isRef bool) error {
	v := f.Header.Version
	w.I32(int32(t.ClassID))
	if v >= 16 {
		w.Bool(t.IsStripped)
	}
	if v >= 17 {
		w.I16(t.ScriptTypeIndex)
	}
	if v >= 13 {
		if t.hasScriptID(v, isRef) {
			w.Bytes(t.ScriptID[:])
		}
		w.Bytes(t.OldTypeHash[:])
	}
	if !f.TypeTreeEnabled {
		return w.Err()
	}
	if t.Tree == nil {
		return fmt.Errorf("type %s: %w", t.ClassID, typetree.ErrMissingTypeTree)
	}
	var err error
	if typetree.UsesBlob(v) {
		err = typetree.WriteBlob(w, t.Tree, v)
	} else {
		err = typetree.WriteLegacy(w, t.Tree, v)
	}
	if err != nil {
		return err
	}
	if v >= 21 {
		if isRef {
			w.CString(t.ClassName)
			w.CString(t.Namespace)
			w.CString(t.AssemblyName)
		} else {
			w.I32(int32(len(t.TypeDependencies)))
			for _, d := range t.TypeDependencies {
				w.I32(d)
			}
		}
	}
	return w.Err()
}
