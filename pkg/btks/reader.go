package btks

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rhmodding/deckompiler/pkg/tickflow"
)

// Reader parses a BTKS container held in memory
type Reader struct {
	data   []byte
	offset int
}

// NewReader reads all of r and returns a Reader over it
func NewReader(r io.Reader) (*Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read btks data: %w", err)
	}
	return NewReaderFromBytes(data), nil
}

// NewReaderFromBytes returns a Reader over data
func NewReaderFromBytes(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) readUint32() (uint32, error) {
	if r.offset+4 > len(r.data) {
		return 0, fmt.Errorf("%w: unexpected end of data at byte 0x%X", ErrCorrupt, r.offset)
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

func (r *Reader) readMagic() ([4]byte, error) {
	var m [4]byte
	if r.offset+4 > len(r.data) {
		return m, fmt.Errorf("%w: unexpected end of data at byte 0x%X", ErrCorrupt, r.offset)
	}
	copy(m[:], r.data[r.offset:])
	r.offset += 4
	return m, nil
}

// ReadHeader reads and validates the container header
func (r *Reader) ReadHeader() (Header, error) {
	r.offset = 0

	var h Header
	var err error
	if h.Magic, err = r.readMagic(); err != nil {
		return h, err
	}
	if h.Magic != MagicBTKS {
		return h, fmt.Errorf("%w: got %q, expected %q", ErrInvalidMagic, h.Magic[:], MagicBTKS[:])
	}
	if h.Size, err = r.readUint32(); err != nil {
		return h, err
	}
	if h.Version, err = r.readUint32(); err != nil {
		return h, err
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: expected %d, got %d", ErrVersionMismatch, Version, h.Version)
	}
	if h.SectionCount, err = r.readUint32(); err != nil {
		return h, err
	}
	if int64(h.Size) != int64(len(r.data)) {
		return h, fmt.Errorf("%w: header size %d, file is %d bytes", ErrCorrupt, h.Size, len(r.data))
	}
	return h, nil
}

// Read parses the whole container
func (r *Reader) Read() (*Container, error) {
	h, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}

	c := &Container{}
	for i := uint32(0); i < h.SectionCount; i++ {
		start := r.offset
		magic, err := r.readMagic()
		if err != nil {
			return nil, err
		}
		size, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		if size < sectionHeaderSize || start+int(size) > len(r.data) {
			return nil, fmt.Errorf("%w: %s section at byte 0x%X declares size %d", ErrCorrupt, magic[:], start, size)
		}
		end := start + int(size)

		switch magic {
		case MagicFLOW:
			if size < FlowHeaderSize {
				return nil, fmt.Errorf("%w: FLOW section too small: %d bytes", ErrCorrupt, size)
			}
			startOffset, _ := r.readUint32()
			c.Flow = &FlowSection{Start: startOffset, Code: r.data[r.offset:end]}
		case MagicPTRO:
			if size < PointerHeaderSize {
				return nil, fmt.Errorf("%w: PTRO section too small: %d bytes", ErrCorrupt, size)
			}
			count, _ := r.readUint32()
			if uint64(size) != PointerHeaderSize+PointerRecordSize*uint64(count) {
				return nil, fmt.Errorf("%w: PTRO section of %d bytes cannot hold %d records", ErrCorrupt, size, count)
			}
			pointers := make([]tickflow.Pointer, count)
			for j := range pointers {
				rec := r.data[r.offset : r.offset+PointerRecordSize]
				pointers[j] = tickflow.Pointer{
					Offset: binary.LittleEndian.Uint32(rec),
					Kind:   tickflow.PointerKind(rec[4]),
				}
				r.offset += PointerRecordSize
			}
			c.Pointers = &PointerSection{Pointers: pointers}
		case MagicSTRD:
			c.Strings = &StringSection{Data: r.data[r.offset:end]}
		case MagicTMPO:
			return nil, ErrTempoUnsupported
		default:
			return nil, fmt.Errorf("%w: unknown section %q at byte 0x%X", ErrInvalidMagic, magic[:], start)
		}
		r.offset = end
	}

	if r.offset != len(r.data) {
		return nil, fmt.Errorf("%w: %d trailing bytes after last section", ErrCorrupt, len(r.data)-r.offset)
	}
	if c.Flow == nil || c.Pointers == nil || c.Strings == nil {
		return nil, fmt.Errorf("%w: missing required section", ErrCorrupt)
	}
	for _, p := range c.Pointers.Pointers {
		if uint64(p.Offset)+tickflow.WordSize > uint64(len(c.Flow.Code)) {
			return nil, fmt.Errorf("%w: pointer at 0x%X outside the FLOW section", ErrCorrupt, p.Offset)
		}
	}

	return c, nil
}

// Decode parses a container from data
func Decode(data []byte) (*Container, error) {
	return NewReaderFromBytes(data).Read()
}
