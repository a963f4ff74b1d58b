package btks

import (
	"encoding/binary"
	"fmt"

	"github.com/rhmodding/deckompiler/pkg/tickflow"
)

// RelocationError reports a string reference that cannot be made relative to
// the string section.
type RelocationError struct {
	// Offset of the argument in the instruction stream
	Offset uint32
	Value  uint32
	// Base is the string section base (instruction stream length)
	Base uint32
	Err  error
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("string reference at flow offset 0x%X (value 0x%X, base 0x%X): %v",
		e.Offset, e.Value, e.Base, e.Err)
}

func (e *RelocationError) Unwrap() error {
	return e.Err
}

// Relocate rewrites every StringRef argument in flow from an absolute offset
// past the instruction stream to an offset relative to the string section,
// by subtracting len(flow). StreamPointer arguments are left untouched and the
// pointer list is not modified. Relocate must run exactly once per stream.
func Relocate(flow []byte, pointers []tickflow.Pointer) error {
	base := uint32(len(flow))
	for _, p := range pointers {
		if p.Kind != tickflow.StringRef {
			continue
		}
		if uint64(p.Offset)+tickflow.WordSize > uint64(len(flow)) {
			return &RelocationError{Offset: p.Offset, Base: base,
				Err: fmt.Errorf("%w: argument outside the instruction stream", ErrRelocation)}
		}
		slot := flow[p.Offset : p.Offset+tickflow.WordSize]
		value := binary.LittleEndian.Uint32(slot)
		if value < base {
			return &RelocationError{Offset: p.Offset, Value: value, Base: base,
				Err: fmt.Errorf("%w: value points inside the instruction stream", ErrRelocation)}
		}
		binary.LittleEndian.PutUint32(slot, value-base)
	}
	return nil
}

// DanglingStrings returns the StringRef pointers of an already relocated
// stream whose target lies at or past the end of the string data.
func DanglingStrings(flow []byte, pointers []tickflow.Pointer, stringsLen int) []tickflow.Pointer {
	var dangling []tickflow.Pointer
	for _, p := range pointers {
		if p.Kind != tickflow.StringRef || uint64(p.Offset)+tickflow.WordSize > uint64(len(flow)) {
			continue
		}
		if v := binary.LittleEndian.Uint32(flow[p.Offset:]); uint64(v) >= uint64(stringsLen) {
			dangling = append(dangling, p)
		}
	}
	return dangling
}
