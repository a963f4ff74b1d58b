package tickflow

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rhmodding/deckompiler/pkg/common/log"
)

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithTagMapping sets the annotation tag mapping
func WithTagMapping(m TagMapping) DecoderOption {
	return func(d *Decoder) {
		d.tags = m
	}
}

// WithLogger sets the logger used for warnings
func WithLogger(logger log.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// Decoder reads a tickflow binary
type Decoder struct {
	r      *bufio.Reader
	offset int64
	tags   TagMapping
	logger log.Logger
}

// NewDecoder creates a Decoder reading from r, which must be positioned at
// the start of the file header.
func NewDecoder(r io.Reader, options ...DecoderOption) *Decoder {
	d := &Decoder{
		r:      bufio.NewReaderSize(r, 64*1024),
		tags:   DefaultTagMapping(),
		logger: log.GetDefaultLogger(),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Offset returns the number of bytes consumed so far
func (d *Decoder) Offset() int64 {
	return d.offset
}

// readWord reads one little-endian word. what describes the word for errors.
func (d *Decoder) readWord(what string) (uint32, error) {
	var buf [WordSize]byte
	start := d.offset
	n, err := io.ReadFull(d.r, buf[:])
	d.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, &FramingError{Offset: start, What: what, Err: ErrTruncated}
		}
		return 0, fmt.Errorf("failed to read %s at byte 0x%X: %w", what, start, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadHeader reads the 12-byte file header
func (d *Decoder) ReadHeader() (Header, error) {
	var h Header
	var err error
	if h.Index, err = d.readWord("header index"); err != nil {
		return h, err
	}
	if h.Start, err = d.readWord("header start offset"); err != nil {
		return h, err
	}
	if h.Assets, err = d.readWord("header assets offset"); err != nil {
		return h, err
	}
	return h, nil
}

// annotation is one record of an annotation block
type annotation struct {
	index  uint32
	kind   PointerKind
	offset int64
}

// readAnnotations reads the body of an annotation block; the sentinel has
// already been consumed. Records with unrecognized tags are dropped.
func (d *Decoder) readAnnotations() ([]annotation, error) {
	count, err := d.readWord("annotation count")
	if err != nil {
		return nil, err
	}

	var anns []annotation
	for i := uint32(0); i < count; i++ {
		recOffset := d.offset
		rec, err := d.readWord("annotation record")
		if err != nil {
			return nil, err
		}

		tag := uint8(rec & 0xFF)
		index := rec >> 8
		kind, ok := d.tags.Classify(tag)
		if !ok {
			d.logger.WithFields(map[string]interface{}{
				"offset": fmt.Sprintf("0x%X", recOffset),
				"tag":    tag,
				"arg":    index,
			}).Warn("Unrecognized annotation tag, treating argument as a plain value")
			continue
		}
		anns = append(anns, annotation{index: index, kind: kind, offset: recOffset})
	}
	return anns, nil
}

// Decode reads the header and the whole instruction stream, then the string
// data up to EOF.
func (d *Decoder) Decode() (*Program, error) {
	header, err := d.ReadHeader()
	if err != nil {
		return nil, err
	}

	prog := &Program{Header: header}
	flow := make([]byte, 0, 4096)

	for {
		word, err := d.readWord("instruction")
		if err != nil {
			return nil, err
		}
		if word == EndSentinel {
			break
		}

		var anns []annotation
		if word == AnnotationSentinel {
			if anns, err = d.readAnnotations(); err != nil {
				return nil, err
			}
			if word, err = d.readWord("opcode after annotation block"); err != nil {
				return nil, err
			}
		}

		op := Opcode(word)
		argc := op.ArgCount()

		// Index -> kind for this instruction. Strings win over pointers.
		kinds := make(map[int]PointerKind, len(anns))
		for _, ann := range anns {
			if ann.index >= uint32(argc) {
				return nil, &FramingError{
					Offset: ann.offset,
					What:   "annotation record",
					Err:    fmt.Errorf("%w: argument %d of %d", ErrAnnotationIndex, ann.index, argc),
				}
			}
			if prev, ok := kinds[int(ann.index)]; ok && prev == StringRef {
				continue
			}
			kinds[int(ann.index)] = ann.kind
		}

		inst := Instruction{
			Offset: uint32(len(flow)),
			Opcode: op,
			Args:   make([]uint32, argc),
			Kinds:  make([]ArgKind, argc),
		}
		flow = binary.LittleEndian.AppendUint32(flow, word)

		for i := 0; i < argc; i++ {
			arg, err := d.readWord("instruction argument")
			if err != nil {
				return nil, err
			}
			if kind, ok := kinds[i]; ok {
				prog.Pointers = append(prog.Pointers, Pointer{Offset: uint32(len(flow)), Kind: kind})
				inst.Kinds[i] = kind.ArgKind()
			}
			inst.Args[i] = arg
			flow = binary.LittleEndian.AppendUint32(flow, arg)
		}

		prog.Annotations += len(kinds)
		prog.Instructions = append(prog.Instructions, inst)
	}

	strings, err := io.ReadAll(d.r)
	if err != nil {
		return nil, fmt.Errorf("failed to read string data at byte 0x%X: %w", d.offset, err)
	}
	d.offset += int64(len(strings))

	prog.Flow = flow
	prog.Strings = strings
	return prog, nil
}

// Decode is a convenience wrapper decoding a whole source binary from r
func Decode(r io.Reader, options ...DecoderOption) (*Program, error) {
	return NewDecoder(r, options...).Decode()
}
