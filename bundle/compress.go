package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	golz4 "github.com/bkaradzic/go-lz4"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
)

// Compression is the compression scheme of a block or of the block info.
type Compression uint8

const (
	None Compression = iota
	LZMA
	LZ4
	LZ4HC
	LZHAM
)

var compressionStrings = [...]string{"None", "LZMA", "LZ4", "LZ4HC", "LZHAM"}

func (c Compression) String() string {
	if int(c) < len(compressionStrings) {
		return compressionStrings[c]
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// CompressionFromString returns the scheme with the given name, or false.
func CompressionFromString(s string) (Compression, bool) {
	for i, name := range compressionStrings {
		if name == s {
			return Compression(i), true
		}
	}
	return 0, false
}

// lzmaProps is the properties header of raw LZMA streams in bundles: one
// byte of lc/lp/pb followed by a 32-bit dictionary size.
const lzmaProps = 5

// lzmaDictCap is the dictionary size used when compressing.
const lzmaDictCap = 1 << 19

// maxLZ4Ratio bounds how many bytes one byte of an LZ4 block can expand to.
const maxLZ4Ratio = 255

// CheckSize returns an error if compressed bytes of scheme c cannot decode
// to size bytes. It is used to reject declared sizes before allocating.
// LZMA has no useful bound, so its output is grown as it is decoded instead.
func CheckSize(c Compression, compressed, size int64) error {
	switch c {
	case None:
		if size != compressed {
			return &SizeError{Compression: c, Expected: size, Actual: compressed}
		}
	case LZ4, LZ4HC:
		if size > golz4.MaxInputSize || size > compressed*maxLZ4Ratio+16 {
			return fmt.Errorf("%w: %s data of %d bytes cannot hold %d bytes", ErrImplausibleSize, c, compressed, size)
		}
	}
	if size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrImplausibleSize, size)
	}
	return nil
}

// Decompress decodes src, which must decompress to exactly size bytes.
// Any other length results in a *SizeError. A size that src cannot plausibly
// hold is rejected before anything is allocated.
func Decompress(c Compression, src []byte, size int) ([]byte, error) {
	if err := CheckSize(c, int64(len(src)), int64(size)); err != nil {
		return nil, err
	}
	var dst []byte
	var err error
	switch c {
	case None:
		dst = src
	case LZMA:
		dst, err = decompressLZMA(src, size)
	case LZ4:
		if size == 0 {
			return []byte{}, nil
		}
		// The decoder expects the decompressed length before the stream.
		in := make([]byte, len(src)+4)
		binary.LittleEndian.PutUint32(in, uint32(size))
		copy(in[4:], src)
		if dst, err = golz4.Decode(make([]byte, size), in); err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
	case LZ4HC:
		if size == 0 {
			return []byte{}, nil
		}
		dst = make([]byte, size)
		var n int
		if n, err = lz4.UncompressBlock(src, dst); err != nil {
			return nil, fmt.Errorf("lz4hc: %w", err)
		}
		dst = dst[:n]
	default:
		return nil, fmt.Errorf("%w %s", ErrUnsupportedCompression, c)
	}
	if err != nil {
		return nil, err
	}
	if len(dst) != size {
		return nil, &SizeError{Compression: c, Expected: int64(size), Actual: int64(len(dst))}
	}
	return dst, nil
}

// decompressLZMA decodes a raw LZMA block. The output grows as it is decoded
// and stops at size bytes.
func decompressLZMA(src []byte, size int) ([]byte, error) {
	if len(src) < lzmaProps {
		return nil, fmt.Errorf("lzma: %w", io.ErrUnexpectedEOF)
	}
	var header [lzmaProps + 8]byte
	copy(header[:], src[:lzmaProps])
	binary.LittleEndian.PutUint64(header[lzmaProps:], uint64(size))
	r, err := lzma.NewReader(io.MultiReader(bytes.NewReader(header[:]), bytes.NewReader(src[lzmaProps:])))
	if err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	return readLimited(r, int64(size))
}

// readLimited reads at most limit bytes from r. A stream that ends early
// returns what was read; the caller compares the length.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(r, limit)); err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	return buf.Bytes(), nil
}

// decompressLZMAStream decodes a classic LZMA stream with a 13-byte header,
// as used by UnityWeb bundles. At most limit+1 bytes are decoded, so that an
// oversized stream is detected without decoding all of it.
func decompressLZMAStream(src []byte, limit int64) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	return readLimited(r, limit+1)
}

// Compress encodes src with the given scheme. The result is decoded by
// Decompress with the length of src.
func Compress(c Compression, src []byte) ([]byte, error) {
	switch c {
	case None:
		return src, nil
	case LZMA:
		return compressLZMA(src, true)
	case LZ4:
		if len(src) == 0 {
			return []byte{}, nil
		}
		out, err := golz4.Encode(nil, src)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		// Drop the length prefix.
		return out[4:], nil
	case LZ4HC:
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		n, err := lz4.CompressBlockHC(src, dst, lz4.Level9, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4hc: %w", err)
		}
		if n == 0 && len(src) > 0 {
			// Incompressible; emit the data as a single literal run.
			return literalBlock(src), nil
		}
		return dst[:n], nil
	}
	return nil, fmt.Errorf("%w %s", ErrUnsupportedCompression, c)
}

func compressLZMA(src []byte, raw bool) ([]byte, error) {
	var buf bytes.Buffer
	cfg := lzma.WriterConfig{
		Properties:   &lzma.Properties{LC: 3, LP: 0, PB: 2},
		DictCap:      lzmaDictCap,
		SizeInHeader: true,
		Size:         int64(len(src)),
	}
	w, err := cfg.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	out := buf.Bytes()
	if !raw {
		return out, nil
	}
	// Drop the 64-bit size that follows the properties.
	return append(out[:lzmaProps:lzmaProps], out[lzmaProps+8:]...), nil
}

// literalBlock returns an LZ4 block holding src as literals only.
func literalBlock(src []byte) []byte {
	n := len(src)
	out := make([]byte, 0, n+n/255+16)
	if n < 15 {
		out = append(out, byte(n<<4))
	} else {
		out = append(out, 0xF0)
		r := n - 15
		for ; r >= 255; r -= 255 {
			out = append(out, 255)
		}
		out = append(out, byte(r))
	}
	return append(out, src...)
}
