package serialized

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/cursor"
	"github.com/unitytools/unityasset/typetree"
)

// Decoder parses serialized files.
type Decoder struct {
	// Name is the name the file is registered under. It is used in errors
	// and log messages.
	Name string

	// Settings overrides the process-wide settings when non-nil.
	Settings *unityasset.Settings

	// Cache receives type trees read from the file, and supplies trees for
	// files that carry none. If nil, typetree.DefaultCache is used.
	Cache *typetree.Cache

	// Host is the environment the file belongs to. It may be nil, in which
	// case cross-file operations fail with ErrNoHost.
	Host Host
}

// Parse decodes data as a serialized file using the process-wide settings.
func Parse(name string, data []byte) (*File, error) {
	return Decoder{Name: name}.Decode(data)
}

// reader wraps a cursor with a sticky error, so that a run of fields can be
// read before checking for failure.
type reader struct {
	*cursor.Reader
	err error
	off int64
}

func (r *reader) fail(err error) bool {
	if err != nil && r.err == nil {
		r.err = err
		r.off = r.Pos()
	}
	return r.err != nil
}

func (r *reader) u8() (v uint8) {
	if r.err == nil {
		var err error
		v, err = r.U8()
		r.fail(err)
	}
	return v
}

func (r *reader) bool() bool { return r.u8() != 0 }

func (r *reader) u16() (v uint16) {
	if r.err == nil {
		var err error
		v, err = r.U16()
		r.fail(err)
	}
	return v
}

func (r *reader) u32() (v uint32) {
	if r.err == nil {
		var err error
		v, err = r.U32()
		r.fail(err)
	}
	return v
}

func (r *reader) i16() int16 { return int16(r.u16()) }

func (r *reader) i32() int32 { return int32(r.u32()) }

func (r *reader) i64() (v int64) {
	if r.err == nil {
		var err error
		v, err = r.I64()
		r.fail(err)
	}
	return v
}

func (r *reader) cstr() (s string) {
	if r.err == nil {
		var err error
		s, err = r.CString()
		r.fail(err)
	}
	return s
}

func (r *reader) hash(dst *[16]byte) {
	if r.err == nil {
		b, err := r.Bytes(16)
		if !r.fail(err) {
			copy(dst[:], b)
		}
	}
}

// count reads a 32-bit element count and checks that count elements of at
// least minSize bytes fit in the remaining data.
func (r *reader) count(minSize int64) int {
	n := r.i32()
	if r.err != nil {
		return 0
	}
	if n < 0 {
		r.fail(fmt.Errorf("negative count %d", n))
		return 0
	}
	if r.fail(r.Check(int64(n) * minSize)) {
		return 0
	}
	return int(n)
}

func (r *reader) dataError() error {
	return DataError{Offset: r.off, Cause: r.err}
}

// IsSerializedFile returns whether data has a consistent serialized file
// header: a known format version, a file size equal to the length of data,
// and metadata and object data within the file.
func IsSerializedFile(data []byte) bool {
	_, err := readHeader(cursor.NewReader(data, binary.BigEndian))
	return err == nil
}

func readHeader(c *cursor.Reader) (h Header, err error) {
	r := &reader{Reader: c}
	h.MetadataSize = r.u32()
	h.FileSize = uint64(r.u32())
	h.Version = r.u32()
	h.DataOffset = uint64(r.u32())
	if r.err != nil {
		return h, r.dataError()
	}
	if h.Version < formatMin || h.Version > formatMax {
		return h, DataError{Offset: 8, Cause: fmt.Errorf("%w %d", ErrUnsupportedVersion, h.Version)}
	}
	if h.Version >= formatEndianHeader {
		h.Endian = r.u8()
		h.Reserved[0] = r.u8()
		h.Reserved[1] = r.u8()
		h.Reserved[2] = r.u8()
	}
	if h.Version >= formatLargeFiles {
		h.MetadataSize = r.u32()
		h.FileSize = uint64(r.i64())
		h.DataOffset = uint64(r.i64())
		h.Unknown = r.i64()
	}
	if r.err != nil {
		return h, r.dataError()
	}
	size := uint64(c.Len())
	switch {
	case h.FileSize != size:
		return h, DataError{Offset: 4, Cause: fmt.Errorf("%w: declared size %d, have %d", ErrNotSerialized, h.FileSize, size)}
	case h.DataOffset > h.FileSize:
		return h, DataError{Offset: 12, Cause: fmt.Errorf("%w: data offset %d beyond end", ErrNotSerialized, h.DataOffset)}
	case uint64(h.MetadataSize) > h.FileSize:
		return h, DataError{Offset: 0, Cause: fmt.Errorf("%w: metadata size %d beyond end", ErrNotSerialized, h.MetadataSize)}
	}
	if h.Version < formatEndianHeader {
		// The endian byte opens the metadata, which is stored at the end.
		if err := c.SetPos(int64(h.FileSize - uint64(h.MetadataSize))); err != nil {
			return h, DataError{Offset: c.Pos(), Cause: err}
		}
		h.Endian = r.u8()
		if r.err != nil {
			return h, r.dataError()
		}
	}
	return h, nil
}

// Decode parses data as a serialized file. The returned file references
// data, which must not be modified afterwards.
func (d Decoder) Decode(data []byte) (f *File, err error) {
	settings := unityasset.CurrentSettings()
	if d.Settings != nil {
		settings = *d.Settings
	}
	cache := d.Cache
	if cache == nil {
		cache = typetree.DefaultCache
	}

	c := cursor.NewReader(data, binary.BigEndian)
	h, err := readHeader(c)
	if err != nil {
		return nil, err
	}
	f = &File{
		Name:     d.Name,
		Header:   h,
		Objects:  map[int64]*Object{},
		data:     data,
		host:     d.Host,
		cache:    cache,
		settings: settings,
	}
	c.SetOrder(h.Order())
	r := &reader{Reader: c}
	v := h.Version

	if v >= 7 {
		f.EngineVersion = r.cstr()
	}
	if v >= 8 {
		f.Platform = r.i32()
	}
	f.TypeTreeEnabled = true
	if v >= 13 {
		f.TypeTreeEnabled = r.bool()
	}
	if r.err != nil {
		return nil, r.dataError()
	}
	if f.Version, err = settings.ResolveVersion(d.Name, f.EngineVersion); err != nil {
		return nil, err
	}

	n := r.count(4)
	f.Types = make([]*Type, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		f.Types = append(f.Types, f.readType(r, false))
	}
	if r.err != nil {
		return nil, r.dataError()
	}

	if v >= 7 && v < 14 {
		f.BigIDEnabled = r.i32() != 0
	}

	if err := f.readObjects(r); err != nil {
		return nil, err
	}

	if v >= 11 {
		n := r.count(8)
		f.ScriptTypes = make([]ScriptType, n)
		for i := range f.ScriptTypes {
			s := &f.ScriptTypes[i]
			s.LocalSerializedFileIndex = r.i32()
			if v < 14 {
				s.LocalIdentifierInFile = int64(r.i32())
			} else {
				r.Align4()
				s.LocalIdentifierInFile = r.i64()
			}
		}
	}

	n = r.count(1)
	f.Externals = make([]External, n)
	for i := range f.Externals {
		e := &f.Externals[i]
		if v >= 6 {
			e.TempEmpty = r.cstr()
		}
		if v >= 5 {
			r.hash(&e.GUID)
			e.Type = r.i32()
		}
		e.Path = r.cstr()
	}
	if r.err != nil {
		return nil, r.dataError()
	}

	if v >= 20 {
		n := r.count(4)
		for i := 0; i < n && r.err == nil; i++ {
			f.RefTypes = append(f.RefTypes, f.readType(r, true))
		}
	}
	if v >= 5 {
		f.UserInformation = r.cstr()
	}
	if r.err != nil {
		return nil, r.dataError()
	}

	for _, t := range f.Types {
		if t.Tree != nil {
			cache.Put(f.Version, t.ClassID, t.Tree)
		}
	}
	settings.Log().LogAttrs(context.Background(), slog.LevelDebug, "serialized file loaded",
		slog.String("file", d.Name),
		slog.Uint64("format", uint64(v)),
		slog.String("version", f.Version),
		slog.Int("objects", len(f.Objects)),
	)
	return f, nil
}

func (f *File) readType(r *reader, isRef bool) *Type {
	v := f.Header.Version
	t := &Type{ScriptTypeIndex: -1}
	t.ClassID = unityasset.ClassID(r.i32())
	if v >= 16 {
		t.IsStripped = r.bool()
	}
	if v >= 17 {
		t.ScriptTypeIndex = r.i16()
	}
	if v >= 13 {
		if t.hasScriptID(v, isRef) {
			r.hash(&t.ScriptID)
		}
		r.hash(&t.OldTypeHash)
	}
	if !f.TypeTreeEnabled || r.err != nil {
		return t
	}
	var err error
	switch {
	case !typetree.UsesBlob(v):
		var tree *typetree.Node
		tree, err = typetree.ReadLegacy(r.Reader, v)
		if f.settings.TypeTreeEnabled {
			t.Tree = tree
		}
	case f.settings.TypeTreeEnabled:
		t.Tree, err = typetree.ReadBlob(r.Reader, v)
	default:
		err = typetree.SkipBlob(r.Reader, v)
	}
	if r.fail(err) {
		return t
	}
	if v >= 21 {
		if isRef {
			t.ClassName = r.cstr()
			t.Namespace = r.cstr()
			t.AssemblyName = r.cstr()
		} else {
			n := r.count(4)
			t.TypeDependencies = make([]int32, n)
			for i := range t.TypeDependencies {
				t.TypeDependencies[i] = r.i32()
			}
		}
	}
	return t
}

func (f *File) typeByClass(id int32) *Type {
	for _, t := range f.Types {
		if int32(t.ClassID) == id {
			return t
		}
	}
	return nil
}

func (f *File) readObjects(r *reader) error {
	v := f.Header.Version
	n := r.count(12)
	f.order = make([]int64, 0, n)
	for i := 0; i < n; i++ {
		obj := &Object{ScriptTypeIndex: -1}
		switch {
		case f.BigIDEnabled:
			obj.PathID = r.i64()
		case v < 14:
			obj.PathID = int64(r.i32())
		default:
			r.Align4()
			obj.PathID = r.i64()
		}
		var start uint64
		if v >= formatLargeFiles {
			start = uint64(r.i64())
		} else {
			start = uint64(r.u32())
		}
		obj.ByteStart = start + f.Header.DataOffset
		obj.ByteSize = uint64(r.u32())
		obj.TypeID = r.i32()
		if v < 16 {
			obj.ClassID = unityasset.ClassID(r.u16())
			obj.Type = f.typeByClass(obj.TypeID)
		} else if r.err == nil {
			if obj.TypeID < 0 || int(obj.TypeID) >= len(f.Types) {
				r.fail(fmt.Errorf("object %d: type index %d out of range", obj.PathID, obj.TypeID))
				break
			}
			obj.Type = f.Types[obj.TypeID]
			obj.ClassID = obj.Type.ClassID
		}
		if v < 11 {
			obj.IsDestroyed = r.u16()
		}
		if v >= 11 && v < 17 {
			obj.ScriptTypeIndex = r.i16()
			if obj.Type != nil {
				obj.Type.ScriptTypeIndex = obj.ScriptTypeIndex
			}
		} else if v >= 17 && obj.Type != nil {
			obj.ScriptTypeIndex = obj.Type.ScriptTypeIndex
		}
		if v == 15 || v == 16 {
			obj.Stripped = r.u8()
		}
		if r.err != nil {
			break
		}
		if start > f.Header.FileSize-f.Header.DataOffset || obj.ByteSize > f.Header.FileSize || obj.ByteStart > f.Header.FileSize-obj.ByteSize {
			r.fail(fmt.Errorf("object %d: data range %d+%d outside file", obj.PathID, start, obj.ByteSize))
			break
		}
		if _, ok := f.Objects[obj.PathID]; ok {
			r.fail(fmt.Errorf("%w %d", ErrDuplicatePathID, obj.PathID))
			break
		}
		f.Objects[obj.PathID] = obj
		f.order = append(f.order, obj.PathID)
	}
	if r.err != nil {
		return r.dataError()
	}
	return nil
}
