package tickflow

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/rhmodding/deckompiler/pkg/common/log"
)

// words encodes little-endian words followed by optional raw bytes
func words(ws ...uint32) []byte {
	out := make([]byte, 0, len(ws)*4)
	for _, w := range ws {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}

func TestDecodeNoArgs(t *testing.T) {
	op := uint32(NewOpcode(0x7, 0, 0))
	data := append(words(0x1, 0x20, 0x30, op, EndSentinel), "hello"...)

	prog, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	if prog.Header.Index != 0x1 || prog.Header.Start != 0x20 || prog.Header.Assets != 0x30 {
		t.Errorf("Header mismatch: got %+v", prog.Header)
	}
	if !bytes.Equal(prog.Flow, words(op)) {
		t.Errorf("Flow mismatch: got %x, expected %x", prog.Flow, words(op))
	}
	if string(prog.Strings) != "hello" {
		t.Errorf("Strings mismatch: got %q, expected %q", prog.Strings, "hello")
	}
	if len(prog.Pointers) != 0 {
		t.Errorf("Expected no pointers, got %d", len(prog.Pointers))
	}
	if len(prog.Instructions) != 1 {
		t.Fatalf("Expected 1 instruction, got %d", len(prog.Instructions))
	}
	if prog.Instructions[0].Opcode.Command() != 0x7 {
		t.Errorf("Command mismatch: got 0x%X", prog.Instructions[0].Opcode.Command())
	}
}

func TestDecodeEmptyStream(t *testing.T) {
	prog, err := Decode(bytes.NewReader(words(0, 0, 0, EndSentinel)))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(prog.Flow) != 0 || len(prog.Strings) != 0 || len(prog.Instructions) != 0 {
		t.Errorf("Expected empty program, got %+v", prog)
	}
}

func TestDecodeAnnotations(t *testing.T) {
	op1 := uint32(NewOpcode(0x5D, 0, 2))
	op2 := uint32(NewOpcode(0x2, 0, 1))
	data := words(
		0, 0, 0,
		// set_sfx 3, "str" (arg 1 is a UTF-16 string)
		AnnotationSentinel, 1, 1<<8|uint32(TagUnicode),
		op1, 3, 0x1C,
		// async_call label (arg 0 is a stream pointer)
		AnnotationSentinel, 1, 0<<8|uint32(TagLabel),
		op2, 0x0,
		EndSentinel,
	)

	prog, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	expectedFlow := words(op1, 3, 0x1C, op2, 0x0)
	if !bytes.Equal(prog.Flow, expectedFlow) {
		t.Errorf("Flow mismatch: got %x, expected %x", prog.Flow, expectedFlow)
	}

	expected := []Pointer{
		{Offset: 8, Kind: StringRef},
		{Offset: 16, Kind: StreamPointer},
	}
	if len(prog.Pointers) != len(expected) {
		t.Fatalf("Expected %d pointers, got %d", len(expected), len(prog.Pointers))
	}
	for i, p := range expected {
		if prog.Pointers[i] != p {
			t.Errorf("Pointer %d mismatch: got %+v, expected %+v", i, prog.Pointers[i], p)
		}
	}

	if prog.Annotations != 2 {
		t.Errorf("Expected 2 annotations, got %d", prog.Annotations)
	}

	if kinds := prog.Instructions[0].Kinds; kinds[0] != ArgValue || kinds[1] != ArgString {
		t.Errorf("Unexpected argument kinds for first instruction: %v", kinds)
	}
	if kinds := prog.Instructions[1].Kinds; kinds[0] != ArgPointer {
		t.Errorf("Unexpected argument kinds for second instruction: %v", kinds)
	}
	if prog.Instructions[1].Offset != 12 {
		t.Errorf("Second instruction offset: got %d, expected 12", prog.Instructions[1].Offset)
	}
}

func TestDecodeStringWinsOverPointer(t *testing.T) {
	op := uint32(NewOpcode(0x1, 0, 1))
	data := words(
		0, 0, 0,
		AnnotationSentinel, 3, uint32(TagLabel), uint32(TagASCII), uint32(TagLabel),
		op, 0x10,
		EndSentinel,
	)

	prog, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(prog.Pointers) != 1 || prog.Pointers[0].Kind != StringRef {
		t.Errorf("Expected a single string pointer, got %+v", prog.Pointers)
	}
	if prog.Annotations != 1 {
		t.Errorf("Expected 1 annotation, got %d", prog.Annotations)
	}
}

func TestDecodeUnknownTagWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewStandardLogger(log.WithOutput(&buf), log.WithLevel(log.LevelWarn))

	op := uint32(NewOpcode(0x1, 0, 2))
	data := words(
		0, 0, 0,
		AnnotationSentinel, 2, 0<<8|7, 1<<8|uint32(TagASCII),
		op, 0x99, 0x18,
		EndSentinel,
	)

	prog, err := Decode(bytes.NewReader(data), WithLogger(logger))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(prog.Pointers) != 1 || prog.Pointers[0] != (Pointer{Offset: 8, Kind: StringRef}) {
		t.Errorf("Unexpected pointers: %+v", prog.Pointers)
	}
	if prog.Instructions[0].Kinds[0] != ArgValue {
		t.Errorf("Unknown tag should leave argument unclassified")
	}

	output := buf.String()
	if !strings.Contains(output, "[WARN]") || !strings.Contains(output, "tag=7") {
		t.Errorf("Expected a warning for tag 7, got: %s", output)
	}
}

func TestDecodeCustomTagMapping(t *testing.T) {
	op := uint32(NewOpcode(0x1, 0, 2))
	data := words(
		0, 0, 0,
		AnnotationSentinel, 2, 0<<8|0, 1<<8|1,
		op, 0x20, 0x8,
		EndSentinel,
	)

	// Swapped meaning: tag 0 is a string, tag 1 a pointer
	mapping := TagMapping{Pointer: []uint8{1}, String: []uint8{0}}
	prog, err := Decode(bytes.NewReader(data), WithTagMapping(mapping))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	expected := []Pointer{{Offset: 4, Kind: StringRef}, {Offset: 8, Kind: StreamPointer}}
	for i, p := range expected {
		if prog.Pointers[i] != p {
			t.Errorf("Pointer %d mismatch: got %+v, expected %+v", i, prog.Pointers[i], p)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	op := uint32(NewOpcode(0x1, 0, 2))

	testCases := []struct {
		name   string
		data   []byte
		offset int64
		what   string
	}{
		{
			name:   "short header",
			data:   []byte{1, 0, 0, 0, 2, 0},
			offset: 4,
			what:   "header start offset",
		},
		{
			name:   "missing argument",
			data:   words(0, 0, 0, op, 0x5),
			offset: 20,
			what:   "instruction argument",
		},
		{
			name:   "partial argument",
			data:   append(words(0, 0, 0, op), 0x5, 0x0),
			offset: 16,
			what:   "instruction argument",
		},
		{
			name:   "missing end sentinel",
			data:   words(0, 0, 0, op, 0x5, 0x6),
			offset: 24,
			what:   "instruction",
		},
		{
			name:   "annotation block cut short",
			data:   words(0, 0, 0, AnnotationSentinel, 2, 0),
			offset: 24,
			what:   "annotation record",
		},
		{
			name:   "no opcode after annotation block",
			data:   words(0, 0, 0, AnnotationSentinel, 1, 0),
			offset: 24,
			what:   "opcode after annotation block",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tc.data))
			if err == nil {
				t.Fatal("Expected an error, got none")
			}
			if !errors.Is(err, ErrTruncated) {
				t.Errorf("Expected ErrTruncated, got %v", err)
			}
			var fe *FramingError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected *FramingError, got %T", err)
			}
			if fe.Offset != tc.offset {
				t.Errorf("Offset mismatch: got %d, expected %d", fe.Offset, tc.offset)
			}
			if fe.What != tc.what {
				t.Errorf("Context mismatch: got %q, expected %q", fe.What, tc.what)
			}
		})
	}
}

func TestDecodeAnnotationIndexOutOfRange(t *testing.T) {
	op := uint32(NewOpcode(0x1, 0, 1))
	data := words(
		0, 0, 0,
		AnnotationSentinel, 2, 0<<8|uint32(TagLabel), 1<<8|uint32(TagASCII),
		op, 0x0,
		EndSentinel,
	)

	_, err := Decode(bytes.NewReader(data))
	if !errors.Is(err, ErrAnnotationIndex) {
		t.Fatalf("Expected ErrAnnotationIndex, got %v", err)
	}
	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *FramingError, got %T", err)
	}
	// Second record of the block
	if fe.Offset != 24 {
		t.Errorf("Offset mismatch: got %d, expected 24", fe.Offset)
	}
}

func TestDecodeArgumentCounts(t *testing.T) {
	b := NewBuilder(Header{})
	for argc := 0; argc <= MaxArgs; argc++ {
		args := make([]Arg, argc)
		for i := range args {
			args[i] = Int(uint32(argc*100 + i))
		}
		if err := b.Emit(0x10, uint32(argc), args...); err != nil {
			t.Fatalf("Failed to emit: %v", err)
		}
	}

	prog, err := Decode(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	total := 0
	for i, inst := range prog.Instructions {
		if len(inst.Args) != inst.Opcode.ArgCount() || len(inst.Args) != i {
			t.Errorf("Instruction %d: consumed %d args, opcode says %d", i, len(inst.Args), inst.Opcode.ArgCount())
		}
		if inst.Opcode.Arg0() != uint32(i) {
			t.Errorf("Instruction %d: arg0 got %d", i, inst.Opcode.Arg0())
		}
		total += inst.Size()
	}
	if total != len(prog.Flow) {
		t.Errorf("Flow length %d does not match instruction sizes %d", len(prog.Flow), total)
	}
}

func TestOpcodeFields(t *testing.T) {
	op := NewOpcode(0x3A5, 0x12, 3)
	if op.Command() != 0x3A5 {
		t.Errorf("Command: got 0x%X, expected 0x3A5", op.Command())
	}
	if op.ArgCount() != 3 {
		t.Errorf("ArgCount: got %d, expected 3", op.ArgCount())
	}
	if op.Arg0() != 0x12 {
		t.Errorf("Arg0: got 0x%X, expected 0x12", op.Arg0())
	}
	if uint32(op) != 0x3A5|3<<10|0x12<<14 {
		t.Errorf("Word mismatch: got 0x%X", uint32(op))
	}
}
