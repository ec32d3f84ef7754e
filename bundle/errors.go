package bundle

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// Indicates data that does not start with a known bundle signature.
	ErrNotBundle = errors.New("not a bundle file")
	// Indicates a bundle format version outside the supported range.
	ErrUnsupportedVersion = errors.New("unsupported bundle version")
	// Indicates a compression scheme that cannot be decoded.
	ErrUnsupportedCompression = errors.New("unsupported compression")
	// Indicates an operation not implemented for the bundle's layout.
	ErrUnsupported = errors.New("unsupported operation")
	// Indicates a declared size that the compressed data cannot hold.
	ErrImplausibleSize = errors.New("implausible declared size")
	// Indicates an entry whose extent lies outside the decompressed data.
	ErrEntryRange = errors.New("entry outside block data")
)

// SizeError indicates that compressed data did not decompress to its declared
// size. It is always fatal, since it means the data is truncated or corrupt.
type SizeError struct {
	// Block is the index of the block, or -1 for the block info.
	Block       int
	Compression Compression
	Expected    int64
	Actual      int64
}

func (err *SizeError) Error() string {
	var s strings.Builder
	switch {
	case err.Block < 0:
		s.WriteString("block info: ")
	default:
		s.WriteString("block ")
		s.WriteString(strconv.Itoa(err.Block))
		s.WriteString(": ")
	}
	s.WriteString(err.Compression.String())
	s.WriteString(" data decompressed to ")
	s.WriteString(strconv.FormatInt(err.Actual, 10))
	s.WriteString(" bytes, expected ")
	s.WriteString(strconv.FormatInt(err.Expected, 10))
	return s.String()
}

// DataError wraps an error that occurred at a position within a bundle.
type DataError struct {
	Offset int64
	Cause  error
}

func (err DataError) Error() string {
	var s strings.Builder
	s.WriteString("bundle data error")
	if err.Offset >= 0 {
		s.WriteString(" at ")
		s.WriteString(strconv.FormatInt(err.Offset, 10))
	}
	if err.Cause != nil {
		s.WriteString(": ")
		s.WriteString(err.Cause.Error())
	}
	return s.String()
}

func (err DataError) Unwrap() error {
	return err.Cause
}
