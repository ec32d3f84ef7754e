package typetree

import (
	"errors"
	"fmt"

	"github.com/unitytools/unityasset"
)

var (
	// ErrMissingTypeTree indicates that an object cannot be decoded because
	// no type tree is available for its class.
	ErrMissingTypeTree = errors.New("missing type tree")

	// ErrUnknownType indicates a leaf node whose type is not a known
	// primitive.
	ErrUnknownType = errors.New("unknown leaf type")

	// ErrNegativeCount indicates an array or string with a negative length.
	ErrNegativeCount = errors.New("negative element count")

	// ErrValueMismatch indicates that a value passed to Encode does not have
	// the shape required by its node.
	ErrValueMismatch = errors.New("value does not match node")
)

// DecodeError is returned when decoding or encoding a field fails.
type DecodeError struct {
	// ClassID is the class of the object being processed, if known.
	ClassID unityasset.ClassID
	// Path is the dotted field path from the root of the tree.
	Path string
	// Type is the declared type of the field.
	Type string
	// Offset is the cursor position at which the field started.
	Offset int64
	Cause  error
}

func (err *DecodeError) Error() string {
	if err.ClassID != 0 {
		return fmt.Sprintf("%s field %s (%s) at offset %d: %s", err.ClassID, err.Path, err.Type, err.Offset, err.Cause)
	}
	return fmt.Sprintf("field %s (%s) at offset %d: %s", err.Path, err.Type, err.Offset, err.Cause)
}

func (err *DecodeError) Unwrap() error {
	return err.Cause
}

// TreeError is returned when a serialized type tree is malformed.
type TreeError struct {
	// Node is the index of the node being read.
	Node  int
	Cause error
}

func (err *TreeError) Error() string {
	return fmt.Sprintf("type tree node %d: %s", err.Node, err.Cause)
}

func (err *TreeError) Unwrap() error {
	return err.Cause
}
