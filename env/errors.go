package env

import (
	"fmt"
	"strings"

	"github.com/unitytools/unityasset/errors"
)

var (
	// Indicates a resource read from an entry that is not a raw buffer.
	ErrNotRaw = errors.New("entry is not a raw resource")
	// Indicates a lookup that found an entry that is not a serialized file.
	ErrNotSerialized = errors.New("entry is not a serialized file")
	// Indicates use of a file whose environment has been released.
	ErrReleased = errors.New("environment has been released")
)

// NotFoundError is returned when a name cannot be resolved, even after the
// dependencies of the requesting file have been loaded.
type NotFoundError struct {
	Name string
	// Tried lists the names looked up, in order.
	Tried []string
	// Cause holds failures encountered while loading dependencies, if any.
	Cause error
}

func (err *NotFoundError) Error() string {
	s := fmt.Sprintf("%q not found (tried %s)", err.Name, strings.Join(err.Tried, ", "))
	if err.Cause != nil {
		s += ": " + err.Cause.Error()
	}
	return s
}

func (err *NotFoundError) Unwrap() error {
	return err.Cause
}

// RangeError is returned when a resource read extends past the end of its
// entry.
type RangeError struct {
	Name      string
	Offset    int64
	Requested int64
	Available int64
}

func (err *RangeError) Error() string {
	return fmt.Sprintf("%s: requested %d bytes at offset %d, %d bytes available", err.Name, err.Requested, err.Offset, err.Available)
}

// LoadError wraps the error that moved an entry into the Failed state.
type LoadError struct {
	Name  string
	Cause error
}

func (err *LoadError) Error() string {
	return fmt.Sprintf("load %s: %s", err.Name, err.Cause)
}

func (err *LoadError) Unwrap() error {
	return err.Cause
}
