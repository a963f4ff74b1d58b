// Package tickflow reads and writes Tickompiler tickflow binaries.
//
// A tickflow binary starts with a 12-byte header (index, start, assets),
// followed by the instruction stream and an end sentinel. Everything after
// the sentinel is string data referenced by string arguments.
//
// Each instruction is one little-endian opcode word followed by its
// arguments, four bytes each. The opcode word packs the command number in
// bits 0-9, the argument count in bits 10-13 and arg0 in bits 14-31. An
// instruction may be preceded by an annotation block marking some of its
// arguments as string references or as pointers into the stream.
package tickflow

const (
	// HeaderSize is the size of the source file header in bytes
	HeaderSize = 12
	// WordSize is the size of an opcode word or argument
	WordSize = 4

	// AnnotationSentinel introduces an annotation block
	AnnotationSentinel uint32 = 0xFFFFFFFF
	// EndSentinel terminates the instruction stream
	EndSentinel uint32 = 0xFFFFFFFE

	// MaxArgs is the largest argument count an opcode word can encode
	MaxArgs = 0xF
)

// Annotation tags written by Tickompiler. An annotation record is
// argIndex<<8 | tag.
const (
	TagLabel   uint8 = 0
	TagUnicode uint8 = 1
	TagASCII   uint8 = 2
)

// Opcode is a raw instruction word.
type Opcode uint32

// NewOpcode packs a command number, arg0 and argument count into a word.
func NewOpcode(command uint16, arg0 uint32, argc int) Opcode {
	return Opcode(uint32(command)&0x3FF | uint32(argc&MaxArgs)<<10 | arg0<<14)
}

// Command returns the command number.
func (o Opcode) Command() uint16 { return uint16(o & 0x3FF) }

// ArgCount returns the number of arguments that follow the word.
func (o Opcode) ArgCount() int { return int((o >> 10) & MaxArgs) }

// Arg0 returns the inline argument packed into the high bits.
func (o Opcode) Arg0() uint32 { return uint32(o) >> 14 }

// ArgKind classifies an instruction argument
type ArgKind uint8

const (
	// ArgValue is a plain integer argument
	ArgValue ArgKind = iota
	// ArgString references the string data
	ArgString
	// ArgPointer points into the instruction stream
	ArgPointer
)

func (k ArgKind) String() string {
	switch k {
	case ArgString:
		return "string"
	case ArgPointer:
		return "pointer"
	default:
		return "value"
	}
}

// PointerKind is the kind byte stored in a BTKS pointer table.
type PointerKind uint8

const (
	// StringRef marks an argument holding a string offset
	StringRef PointerKind = 0
	// StreamPointer marks an argument holding an instruction stream offset
	StreamPointer PointerKind = 1
)

func (k PointerKind) String() string {
	switch k {
	case StringRef:
		return "string"
	case StreamPointer:
		return "pointer"
	default:
		return "unknown"
	}
}

// ArgKind returns the argument classification matching the pointer kind.
func (k PointerKind) ArgKind() ArgKind {
	if k == StringRef {
		return ArgString
	}
	return ArgPointer
}

// Pointer locates an annotated argument inside the decoded instruction stream.
type Pointer struct {
	// Offset is the byte offset of the argument in the encoded stream
	Offset uint32
	Kind   PointerKind
}

// Header is the source file header.
type Header struct {
	// Index identifies the game the binary belongs to. Informational only.
	Index uint32
	// Start is the stream offset execution begins at
	Start uint32
	// Assets is the stream offset of the asset loading routine
	Assets uint32
}

// Instruction is a decoded instruction.
type Instruction struct {
	// Offset of the opcode word in the encoded stream
	Offset uint32
	Opcode Opcode
	Args   []uint32
	Kinds  []ArgKind
}

// Size returns the encoded size of the instruction in bytes.
func (i *Instruction) Size() int {
	return WordSize * (1 + len(i.Args))
}

// Program is the result of decoding a source binary.
type Program struct {
	Header       Header
	Flow         []byte
	Instructions []Instruction
	Pointers     []Pointer
	Strings      []byte
	// Annotations counts the annotated argument indices that produced a pointer
	Annotations int
}

// TagMapping decides which annotation tags mark pointers and which mark strings.
type TagMapping struct {
	Pointer []uint8
	String  []uint8
}

// DefaultTagMapping returns the mapping Tickompiler uses when writing annotations.
func DefaultTagMapping() TagMapping {
	return TagMapping{
		Pointer: []uint8{TagLabel},
		String:  []uint8{TagUnicode, TagASCII},
	}
}

// Classify returns the pointer kind for a tag. A tag listed in both sets is a string.
func (m TagMapping) Classify(tag uint8) (PointerKind, bool) {
	for _, t := range m.String {
		if t == tag {
			return StringRef, true
		}
	}
	for _, t := range m.Pointer {
		if t == tag {
			return StreamPointer, true
		}
	}
	return 0, false
}
