package tickflow

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// Arg is an argument handed to Builder.Emit
type Arg struct {
	Value uint32
	// Annotate writes an annotation record with Tag for this argument
	Annotate bool
	Tag      uint8
	// stringRel marks Value as relative to the start of the string data
	stringRel bool
}

// Int returns a plain argument
func Int(v uint32) Arg {
	return Arg{Value: v}
}

// Label returns an argument pointing at a stream offset
func Label(target uint32) Arg {
	return Arg{Value: target, Annotate: true, Tag: TagLabel}
}

// Tagged returns an argument annotated with an arbitrary tag
func Tagged(tag uint8, v uint32) Arg {
	return Arg{Value: v, Annotate: true, Tag: tag}
}

type builtInstruction struct {
	command uint16
	arg0    uint32
	args    []Arg
}

// Builder assembles a tickflow binary the way Tickompiler lays it out:
// string arguments hold the absolute offset of the string past the end of
// the instruction stream, and annotation blocks are not counted in offsets.
type Builder struct {
	header       Header
	instructions []builtInstruction
	flowSize     uint32
	strings      []byte
}

// NewBuilder creates a Builder for a binary with the given header
func NewBuilder(header Header) *Builder {
	return &Builder{header: header}
}

// Here returns the stream offset the next instruction will be written at
func (b *Builder) Here() uint32 {
	return b.flowSize
}

// Emit appends an instruction
func (b *Builder) Emit(command uint16, arg0 uint32, args ...Arg) error {
	if len(args) > MaxArgs {
		return fmt.Errorf("%w: %d", ErrTooManyArgs, len(args))
	}
	b.instructions = append(b.instructions, builtInstruction{
		command: command,
		arg0:    arg0,
		args:    append([]Arg(nil), args...),
	})
	b.flowSize += uint32(WordSize * (1 + len(args)))
	return nil
}

// UnicodeString stores s as NUL-terminated UTF-16 and returns an argument referencing it
func (b *Builder) UnicodeString(s string) Arg {
	pos := uint32(len(b.strings))
	for _, u := range utf16.Encode([]rune(s)) {
		b.strings = binary.LittleEndian.AppendUint16(b.strings, u)
	}
	pad := 4
	if len(b.strings)%4 == 2 {
		pad = 2
	}
	b.strings = append(b.strings, make([]byte, pad)...)
	return Arg{Value: pos, Annotate: true, Tag: TagUnicode, stringRel: true}
}

// ASCIIString stores s as NUL-terminated bytes and returns an argument referencing it
func (b *Builder) ASCIIString(s string) Arg {
	pos := uint32(len(b.strings))
	b.strings = append(b.strings, s...)
	b.strings = append(b.strings, make([]byte, 4-len(s)%4)...)
	return Arg{Value: pos, Annotate: true, Tag: TagASCII, stringRel: true}
}

// RawStrings appends bytes to the string data without creating a reference
func (b *Builder) RawStrings(data []byte) {
	b.strings = append(b.strings, data...)
}

// Bytes returns the complete binary
func (b *Builder) Bytes() []byte {
	out := make([]byte, 0, HeaderSize+int(b.flowSize)+len(b.strings)+WordSize)
	out = binary.LittleEndian.AppendUint32(out, b.header.Index)
	out = binary.LittleEndian.AppendUint32(out, b.header.Start)
	out = binary.LittleEndian.AppendUint32(out, b.header.Assets)

	for _, inst := range b.instructions {
		var anns []uint32
		for i, arg := range inst.args {
			if arg.Annotate {
				anns = append(anns, uint32(i)<<8|uint32(arg.Tag))
			}
		}
		if len(anns) > 0 {
			out = binary.LittleEndian.AppendUint32(out, AnnotationSentinel)
			out = binary.LittleEndian.AppendUint32(out, uint32(len(anns)))
			for _, ann := range anns {
				out = binary.LittleEndian.AppendUint32(out, ann)
			}
		}

		out = binary.LittleEndian.AppendUint32(out, uint32(NewOpcode(inst.command, inst.arg0, len(inst.args))))
		for _, arg := range inst.args {
			v := arg.Value
			if arg.stringRel {
				v += b.flowSize
			}
			out = binary.LittleEndian.AppendUint32(out, v)
		}
	}

	out = binary.LittleEndian.AppendUint32(out, EndSentinel)
	return append(out, b.strings...)
}
