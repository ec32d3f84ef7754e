// Package bundle implements the bundle container formats: UnityFS, and the
// legacy UnityRaw and UnityWeb layouts.
//
// A UnityFS bundle has a big-endian header, a possibly compressed block info
// section listing data blocks and entries, and the data blocks themselves.
// The blocks are decompressed and concatenated into one stream, and each
// entry is a range of that stream.
package bundle

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/unitytools/unityasset/cursor"
	"github.com/unitytools/unityasset/errors"
)

// Bundle signatures.
const (
	SignatureFS      = "UnityFS"
	SignatureRaw     = "UnityRaw"
	SignatureWeb     = "UnityWeb"
	SignatureArchive = "UnityArchive"
)

// Flags holds the archive flags of a UnityFS header.
type Flags uint32

const (
	FlagCompressionMask         Flags = 0x3F
	FlagCombinedInfo            Flags = 0x40
	FlagInfoAtEnd               Flags = 0x80
	FlagOldWebPlugin            Flags = 0x100
	FlagInfoNeedsPaddingAtStart Flags = 0x200
)

// Compression returns the compression of the block info.
func (f Flags) Compression() Compression {
	return Compression(f & FlagCompressionMask)
}

// Block is one compressed data block.
type Block struct {
	UncompressedSize uint32
	CompressedSize   uint32
	Flags            uint16
}

// Compression returns the compression of the block.
func (b Block) Compression() Compression {
	return Compression(b.Flags & uint16(FlagCompressionMask))
}

// EntrySerialized marks an entry holding a serialized file.
const EntrySerialized = 0x4

// Entry is a named file stored in a bundle.
type Entry struct {
	Path   string
	Offset int64
	Size   int64
	Flags  uint32

	// Data is the decompressed content of the entry.
	Data []byte
}

// File is a parsed bundle.
type File struct {
	Signature     string
	FormatVersion uint32
	EngineVersion string
	Revision      string

	// Size is the total size declared by the header.
	Size  int64
	Flags Flags
	// Hash is the uncompressed data hash from the block info.
	Hash [16]byte
	// CRC is set for legacy bundles of format 4 and later.
	CRC uint32

	Blocks  []Block
	Entries []Entry
}

// Entry returns the entry with the given path.
func (f *File) Entry(path string) (*Entry, bool) {
	for i := range f.Entries {
		if f.Entries[i].Path == path {
			return &f.Entries[i], true
		}
	}
	return nil, false
}

// Compression returns the compression of the first data block, or None.
func (f *File) Compression() Compression {
	if len(f.Blocks) == 0 {
		return None
	}
	return f.Blocks[0].Compression()
}

// IsBundle returns whether data starts with a bundle signature.
func IsBundle(data []byte) bool {
	for _, sig := range []string{SignatureFS, SignatureRaw, SignatureWeb} {
		if len(data) > len(sig) && string(data[:len(sig)]) == sig && data[len(sig)] == 0 {
			return true
		}
	}
	return false
}

// reader wraps a cursor with a sticky error.
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

func (r *reader) bytes(n int64) (b []byte) {
	if r.err == nil {
		var err error
		b, err = r.Bytes(n)
		r.fail(err)
	}
	return b
}

func (r *reader) count(minSize int64) int {
	n := int32(r.u32())
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

// Parse decodes a bundle. Entry data references a buffer owned by the file;
// for uncompressed bundles it may alias data.
func Parse(data []byte) (*File, error) {
	r := &reader{Reader: cursor.NewReader(data, binary.BigEndian)}
	f := &File{}
	f.Signature = r.cstr()
	f.FormatVersion = r.u32()
	f.EngineVersion = r.cstr()
	f.Revision = r.cstr()
	if r.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotBundle, r.dataError())
	}
	var err error
	switch f.Signature {
	case SignatureFS:
		if f.FormatVersion < 6 || f.FormatVersion > 8 {
			return nil, fmt.Errorf("%s %w %d", f.Signature, ErrUnsupportedVersion, f.FormatVersion)
		}
		err = f.readFS(r)
	case SignatureRaw, SignatureWeb:
		switch {
		case f.FormatVersion == 6:
			err = f.readFS(r)
		case f.FormatVersion >= 1 && f.FormatVersion <= 5:
			err = f.readLegacy(r)
		default:
			return nil, fmt.Errorf("%s %w %d", f.Signature, ErrUnsupportedVersion, f.FormatVersion)
		}
	case SignatureArchive:
		return nil, fmt.Errorf("%s: %w", f.Signature, ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: signature %q", ErrNotBundle, f.Signature)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) readFS(r *reader) error {
	f.Size = r.i64()
	compressedInfo := r.u32()
	uncompressedInfo := r.u32()
	f.Flags = Flags(r.u32())
	if f.Signature != SignatureFS {
		r.Skip(1)
	}
	if f.FormatVersion >= 7 {
		r.Align(16)
	}
	if r.err != nil {
		return r.dataError()
	}

	var info []byte
	if f.Flags&FlagInfoAtEnd != 0 {
		end := &reader{Reader: cursor.NewReader(r.Data(), binary.BigEndian)}
		end.fail(end.SetPos(end.Len() - int64(compressedInfo)))
		info = end.bytes(int64(compressedInfo))
		if end.err != nil {
			return end.dataError()
		}
	} else {
		info = r.bytes(int64(compressedInfo))
		if r.err != nil {
			return r.dataError()
		}
		if f.Flags&FlagInfoNeedsPaddingAtStart != 0 {
			r.Align(16)
		}
	}
	infoData, err := Decompress(f.Flags.Compression(), info, int(uncompressedInfo))
	if err != nil {
		var se *SizeError
		if errors.As(err, &se) {
			se.Block = -1
		}
		return fmt.Errorf("block info: %w", err)
	}
	if err := f.readInfo(infoData); err != nil {
		return err
	}

	// Only sizes bounded by their compressed data are preallocated; LZMA
	// output is appended as it is decoded.
	var bounded, compressed int64
	for i, b := range f.Blocks {
		if err := CheckSize(b.Compression(), int64(b.CompressedSize), int64(b.UncompressedSize)); err != nil {
			var se *SizeError
			if errors.As(err, &se) {
				se.Block = i
			}
			return fmt.Errorf("block %d: %w", i, err)
		}
		if b.Compression() != LZMA {
			bounded += int64(b.UncompressedSize)
		}
		compressed += int64(b.CompressedSize)
	}
	if r.fail(r.Check(compressed)) {
		return fmt.Errorf("blocks truncated: %w", r.dataError())
	}
	stream := make([]byte, 0, bounded)
	for i, b := range f.Blocks {
		src := r.bytes(int64(b.CompressedSize))
		if r.err != nil {
			return fmt.Errorf("block %d: %w", i, r.dataError())
		}
		dec, err := Decompress(b.Compression(), src, int(b.UncompressedSize))
		if err != nil {
			var se *SizeError
			if errors.As(err, &se) {
				se.Block = i
			}
			return fmt.Errorf("block %d: %w", i, err)
		}
		stream = append(stream, dec...)
	}
	return f.sliceEntries(stream)
}

func (f *File) readInfo(data []byte) error {
	r := &reader{Reader: cursor.NewReader(data, binary.BigEndian)}
	copy(f.Hash[:], r.bytes(16))
	n := r.count(10)
	f.Blocks = make([]Block, n)
	for i := range f.Blocks {
		b := &f.Blocks[i]
		b.UncompressedSize = r.u32()
		b.CompressedSize = r.u32()
		b.Flags = r.u16()
	}
	n = r.count(21)
	f.Entries = make([]Entry, n)
	for i := range f.Entries {
		e := &f.Entries[i]
		e.Offset = r.i64()
		e.Size = r.i64()
		e.Flags = r.u32()
		e.Path = r.cstr()
	}
	if r.err != nil {
		return fmt.Errorf("block info: %w", r.dataError())
	}
	return nil
}

// sliceEntries sets the data of each entry from the decompressed stream.
func (f *File) sliceEntries(stream []byte) error {
	size := int64(len(stream))
	var sum int64
	for i := range f.Entries {
		e := &f.Entries[i]
		if e.Offset < 0 || e.Size < 0 || e.Offset > size || e.Size > size-e.Offset {
			return fmt.Errorf("entry %q: %w: %d+%d, have %d bytes", e.Path, ErrEntryRange, e.Offset, e.Size, size)
		}
		sum += e.Size
		e.Data = stream[e.Offset : e.Offset+e.Size : e.Offset+e.Size]
	}
	if sum > size {
		return fmt.Errorf("%w: entries total %d bytes, have %d", ErrEntryRange, sum, size)
	}
	return nil
}

func (f *File) readLegacy(r *reader) error {
	if f.FormatVersion >= 4 {
		copy(f.Hash[:], r.bytes(16))
		f.CRC = r.u32()
	}
	r.u32() // minimum streamed bytes
	headerSize := r.u32()
	r.u32() // levels before streaming
	levels := r.count(8)
	if levels == 0 && r.err == nil {
		r.fail(fmt.Errorf("no levels"))
	}
	r.Skip(int64(levels-1) * 8)
	compressed := r.u32()
	uncompressed := r.u32()
	if f.FormatVersion >= 2 {
		f.Size = int64(r.u32())
	}
	if f.FormatVersion >= 3 {
		r.u32() // file info header size
	}
	if r.err != nil {
		return r.dataError()
	}
	r.SetPos(int64(headerSize))
	src := r.bytes(int64(compressed))
	if r.err != nil {
		return r.dataError()
	}

	block := Block{UncompressedSize: uncompressed, CompressedSize: compressed}
	data := src
	if f.Signature == SignatureWeb {
		block.Flags = uint16(LZMA)
		var err error
		if data, err = decompressLZMAStream(src, int64(uncompressed)); err != nil {
			return fmt.Errorf("block 0: %w", err)
		}
		if len(data) != int(uncompressed) {
			return fmt.Errorf("block 0: %w", &SizeError{Block: 0, Compression: LZMA, Expected: int64(uncompressed), Actual: int64(len(data))})
		}
	}
	f.Blocks = []Block{block}

	nr := &reader{Reader: cursor.NewReader(data, binary.BigEndian)}
	n := nr.count(9)
	f.Entries = make([]Entry, n)
	for i := range f.Entries {
		e := &f.Entries[i]
		e.Path = nr.cstr()
		e.Offset = int64(nr.u32())
		e.Size = int64(nr.u32())
		e.Flags = EntrySerialized
		if strings.HasSuffix(e.Path, ".resS") || strings.HasSuffix(e.Path, ".resource") {
			e.Flags = 0
		}
	}
	if nr.err != nil {
		return fmt.Errorf("entries: %w", nr.dataError())
	}
	return f.sliceEntries(data)
}
