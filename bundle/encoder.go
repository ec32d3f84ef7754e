package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/unitytools/unityasset/cursor"
)

// DefaultBlockSize is the uncompressed size of data blocks written by an
// Encoder with no block size set.
const DefaultBlockSize = 128 << 10

// Encoder writes UnityFS bundles.
type Encoder struct {
	// Compression is applied to each data block. LZ4 and LZ4HC blocks that
	// do not shrink are stored uncompressed.
	Compression Compression

	// InfoCompression is applied to the block info.
	InfoCompression Compression

	// BlockSize is the maximum uncompressed size of a data block. If zero,
	// DefaultBlockSize is used.
	BlockSize int
}

// WriteTo writes f as a UnityFS bundle, using the compression of its first
// block and of its block info. Entry offsets are recomputed from the order
// of f.Entries.
func (f *File) WriteTo(w io.Writer) (n int64, err error) {
	e := Encoder{
		Compression:     f.Compression(),
		InfoCompression: f.Flags.Compression(),
	}
	return e.Encode(w, f)
}

// Encode writes f to w. Only UnityFS bundles of format 6 to 8 can be
// written.
func (e Encoder) Encode(w io.Writer, f *File) (n int64, err error) {
	if f.Signature != SignatureFS || f.FormatVersion < 6 || f.FormatVersion > 8 {
		return 0, fmt.Errorf("write %s %d: %w", f.Signature, f.FormatVersion, ErrUnsupported)
	}
	blockSize := e.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	var stream []byte
	entries := make([]Entry, len(f.Entries))
	for i, entry := range f.Entries {
		entries[i] = entry
		entries[i].Offset = int64(len(stream))
		entries[i].Size = int64(len(entry.Data))
		stream = append(stream, entry.Data...)
	}

	var blocks []Block
	var payload bytes.Buffer
	for off := 0; off < len(stream); off += blockSize {
		chunk := stream[off:min(off+blockSize, len(stream))]
		comp := e.Compression
		data, err := Compress(comp, chunk)
		if err != nil {
			return 0, fmt.Errorf("block %d: %w", len(blocks), err)
		}
		if (comp == LZ4 || comp == LZ4HC) && len(data) >= len(chunk) {
			comp, data = None, chunk
		}
		blocks = append(blocks, Block{
			UncompressedSize: uint32(len(chunk)),
			CompressedSize:   uint32(len(data)),
			Flags:            uint16(comp),
		})
		payload.Write(data)
	}

	var info bytes.Buffer
	iw := cursor.NewWriter(&info, binary.BigEndian)
	iw.Bytes(f.Hash[:])
	iw.I32(int32(len(blocks)))
	for _, b := range blocks {
		iw.U32(b.UncompressedSize)
		iw.U32(b.CompressedSize)
		iw.U16(b.Flags)
	}
	iw.I32(int32(len(entries)))
	for _, entry := range entries {
		iw.I64(entry.Offset)
		iw.I64(entry.Size)
		iw.U32(entry.Flags)
		iw.CString(entry.Path)
	}
	if _, err := iw.End(); err != nil {
		return 0, err
	}
	infoData, err := Compress(e.InfoCompression, info.Bytes())
	if err != nil {
		return 0, fmt.Errorf("block info: %w", err)
	}

	flags := f.Flags &^ (FlagCompressionMask | FlagInfoAtEnd)
	flags |= FlagCombinedInfo | Flags(e.InfoCompression)

	var out bytes.Buffer
	hw := cursor.NewWriter(&out, binary.BigEndian)
	hw.CString(f.Signature)
	hw.U32(f.FormatVersion)
	hw.CString(f.EngineVersion)
	hw.CString(f.Revision)
	sizeAt := hw.Pos()
	hw.I64(0)
	hw.U32(uint32(len(infoData)))
	hw.U32(uint32(info.Len()))
	hw.U32(uint32(flags))
	if f.FormatVersion >= 7 {
		hw.Align(16)
	}
	hw.Bytes(infoData)
	if flags&FlagInfoNeedsPaddingAtStart != 0 {
		hw.Align(16)
	}
	hw.Bytes(payload.Bytes())
	if _, err := hw.End(); err != nil {
		return 0, err
	}
	b := out.Bytes()
	binary.BigEndian.PutUint64(b[sizeAt:], uint64(len(b)))
	return out.WriteTo(w)
}
