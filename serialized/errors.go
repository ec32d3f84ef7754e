package serialized

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/unitytools/unityasset"
)

var (
	// Indicates data that is not a serialized file.
	ErrNotSerialized = errors.New("not a serialized file")
	// Indicates a format version outside the supported range.
	ErrUnsupportedVersion = errors.New("unsupported format version")
	// Indicates an operation that is not implemented for the file's format.
	ErrUnsupported = errors.New("unsupported operation")
	// Indicates a path id that is not present in the file.
	ErrObjectNotFound = errors.New("object not found")
	// Indicates two objects with the same path id.
	ErrDuplicatePathID = errors.New("duplicate path id")
	// Indicates an operation that requires an owning environment.
	ErrNoHost = errors.New("file is not attached to an environment")
	// Indicates a PPtr with a zero path id.
	ErrNullPPtr = errors.New("null PPtr")
)

// DataError wraps an error that occurred while reading or writing the bytes of
// a file.
type DataError struct {
	// Offset is the byte offset where the error occurred.
	Offset int64

	Cause error
}

func (err DataError) Error() string {
	var s strings.Builder
	s.WriteString("data error")
	if err.Offset >= 0 {
		s.WriteString(" at ")
		s.Write(strconv.AppendInt(nil, err.Offset, 10))
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

// ObjectError wraps an error that occurred while processing an object.
type ObjectError struct {
	File    string
	PathID  int64
	ClassID unityasset.ClassID

	Cause error
}

func (err ObjectError) Error() string {
	return fmt.Sprintf("%s: object %d (%s): %s", err.File, err.PathID, err.ClassID, err.Cause)
}

func (err ObjectError) Unwrap() error {
	return err.Cause
}
