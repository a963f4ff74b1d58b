// Package btks encodes and decodes BTKS containers.
//
// A BTKS file is a 16-byte header followed by sections. Every section starts
// with a 4-byte magic and a 4-byte size that includes the section header.
// All integers are little-endian.
//
//	header: "BTKS" | size (whole file) | version | section count
//	FLOW:   "FLOW" | size | start offset | instruction bytes
//	PTRO:   "PTRO" | size | count | count * (offset u32, kind u8)
//	TMPO:   reserved, not written yet
//	STRD:   "STRD" | size | string data
package btks

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/rhmodding/deckompiler/pkg/tickflow"
)

const (
	// HeaderSize is the size of the container header
	HeaderSize = 16
	// Version is the revision of the format written by this package
	Version uint32 = 0

	// sectionHeaderSize covers magic and size
	sectionHeaderSize = 8
	// FlowHeaderSize adds the start offset
	FlowHeaderSize = sectionHeaderSize + 4
	// PointerHeaderSize adds the pointer count
	PointerHeaderSize = sectionHeaderSize + 4
	// StringHeaderSize is the bare section header
	StringHeaderSize = sectionHeaderSize
	// PointerRecordSize is offset(4) + kind(1)
	PointerRecordSize = 5
)

// Magic values
var (
	MagicBTKS = [4]byte{'B', 'T', 'K', 'S'}
	MagicFLOW = [4]byte{'F', 'L', 'O', 'W'}
	MagicPTRO = [4]byte{'P', 'T', 'R', 'O'}
	MagicTMPO = [4]byte{'T', 'M', 'P', 'O'}
	MagicSTRD = [4]byte{'S', 'T', 'R', 'D'}
)

var (
	// ErrFormat indicates the container would violate its own layout invariants
	ErrFormat = errors.New("btks layout invariant violated")
	// ErrInvalidMagic is returned when a header or section magic is not recognized
	ErrInvalidMagic = errors.New("invalid btks magic")
	// ErrVersionMismatch is returned for containers of another format revision
	ErrVersionMismatch = errors.New("btks version mismatch")
	// ErrCorrupt is returned when sizes or counts do not agree with the data
	ErrCorrupt = errors.New("corrupt btks data")
	// ErrTempoUnsupported is returned when a TMPO section would have to be written or read
	ErrTempoUnsupported = errors.New("TMPO sections are not supported yet")
	// ErrRelocation is returned when a string reference cannot be relocated
	ErrRelocation = errors.New("string reference cannot be relocated")
)

// Section is one section of a container
type Section interface {
	Magic() [4]byte
	// Size includes the section header
	Size() uint32
	WriteTo(w io.Writer) (int64, error)
}

// Header is the container header
type Header struct {
	Magic        [4]byte
	Size         uint32
	Version      uint32
	SectionCount uint32
}

// Encode serializes the header
func (h Header) Encode() []byte {
	result := make([]byte, HeaderSize)
	copy(result[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(result[4:8], h.Size)
	binary.LittleEndian.PutUint32(result[8:12], h.Version)
	binary.LittleEndian.PutUint32(result[12:16], h.SectionCount)
	return result
}

func sectionHeader(magic [4]byte, size uint32, extra ...uint32) []byte {
	buf := make([]byte, sectionHeaderSize, sectionHeaderSize+4*len(extra))
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], size)
	for _, v := range extra {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return buf
}

// writeParts writes each part in order and returns the total written
func writeParts(w io.Writer, parts ...[]byte) (int64, error) {
	var total int64
	for _, p := range parts {
		n, err := w.Write(p)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n != len(p) {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// FlowSection holds the instruction stream
type FlowSection struct {
	Start uint32
	Code  []byte
}

func (s *FlowSection) Magic() [4]byte { return MagicFLOW }

func (s *FlowSection) Size() uint32 { return FlowHeaderSize + uint32(len(s.Code)) }

func (s *FlowSection) WriteTo(w io.Writer) (int64, error) {
	return writeParts(w, sectionHeader(MagicFLOW, s.Size(), s.Start), s.Code)
}

// Word returns the little-endian word at offset, or 0 past the end
func (s *FlowSection) Word(offset uint32) uint32 {
	if uint64(offset)+tickflow.WordSize > uint64(len(s.Code)) {
		return 0
	}
	return binary.LittleEndian.Uint32(s.Code[offset:])
}

// PointerSection holds the pointer table
type PointerSection struct {
	Pointers []tickflow.Pointer
}

func (s *PointerSection) Magic() [4]byte { return MagicPTRO }

func (s *PointerSection) Size() uint32 {
	return PointerHeaderSize + PointerRecordSize*uint32(len(s.Pointers))
}

func (s *PointerSection) WriteTo(w io.Writer) (int64, error) {
	records := make([]byte, 0, PointerRecordSize*len(s.Pointers))
	for _, p := range s.Pointers {
		records = binary.LittleEndian.AppendUint32(records, p.Offset)
		records = append(records, byte(p.Kind))
	}
	return writeParts(w, sectionHeader(MagicPTRO, s.Size(), uint32(len(s.Pointers))), records)
}

// TempoValue is one tempo change
type TempoValue struct {
	Beats uint32
	// Time is in engine ticks, not seconds
	Time uint32
	Loop uint32
}

// Tempo is a tempo table entry
type Tempo struct {
	ID     uint32
	Values []TempoValue
}

// TempoSection is the reserved TMPO section. Its layout is not defined yet,
// so a non-empty TempoSection cannot be written.
type TempoSection struct {
	Tempos []Tempo
}

// Empty reports whether the section has nothing to write
func (s *TempoSection) Empty() bool {
	return s == nil || len(s.Tempos) == 0
}

func (s *TempoSection) Magic() [4]byte { return MagicTMPO }

func (s *TempoSection) Size() uint32 { return sectionHeaderSize }

func (s *TempoSection) WriteTo(w io.Writer) (int64, error) {
	return 0, ErrTempoUnsupported
}

// StringSection holds the string data
type StringSection struct {
	Data []byte
}

func (s *StringSection) Magic() [4]byte { return MagicSTRD }

func (s *StringSection) Size() uint32 { return StringHeaderSize + uint32(len(s.Data)) }

func (s *StringSection) WriteTo(w io.Writer) (int64, error) {
	return writeParts(w, sectionHeader(MagicSTRD, s.Size()), s.Data)
}
