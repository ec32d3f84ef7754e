package cursor

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is matched by every *OutOfBoundsError.
var ErrOutOfBounds = errors.New("out of bounds")

// OutOfBoundsError indicates an access beyond the end of a buffer.
type OutOfBoundsError struct {
	// Offset is the absolute position of the attempted access.
	Offset int64
	// Requested is the number of bytes the access required.
	Requested int64
	// Available is the number of bytes that remained at Offset.
	Available int64
}

func (err *OutOfBoundsError) Error() string {
	return fmt.Sprintf("read of %d bytes at offset %d out of bounds: %d bytes available", err.Requested, err.Offset, err.Available)
}

func (err *OutOfBoundsError) Is(target error) bool {
	return target == ErrOutOfBounds
}
