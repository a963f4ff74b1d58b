package tickflow

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when the input ends inside a header, instruction or annotation block
	ErrTruncated = errors.New("unexpected end of tickflow data")
	// ErrAnnotationIndex is returned when an annotation names an argument the instruction does not have
	ErrAnnotationIndex = errors.New("annotation index out of range")
	// ErrTooManyArgs is returned when an instruction is built with more arguments than a word can encode
	ErrTooManyArgs = errors.New("too many arguments given to a command")
)

// FramingError reports malformed input together with the byte offset in the
// source file at which decoding failed.
type FramingError struct {
	Offset int64
	// What was being read when the error was detected
	What string
	Err  error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error at byte 0x%X (%s): %v", e.Offset, e.What, e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}
