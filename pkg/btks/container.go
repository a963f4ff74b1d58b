package btks

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/rhmodding/deckompiler/pkg/tickflow"
)

// Container is a BTKS file assembled from typed sections
type Container struct {
	Flow     *FlowSection
	Pointers *PointerSection
	// Tempo is the reserved TMPO hook; nil or empty means no section
	Tempo   *TempoSection
	Strings *StringSection
}

// NewContainer assembles a container. flow must already be relocated.
func NewContainer(start uint32, flow []byte, pointers []tickflow.Pointer, strings []byte) *Container {
	return &Container{
		Flow:     &FlowSection{Start: start, Code: flow},
		Pointers: &PointerSection{Pointers: pointers},
		Strings:  &StringSection{Data: strings},
	}
}

// FromProgram relocates the string references of a decoded program in place
// and wraps the result in a container.
func FromProgram(prog *tickflow.Program) (*Container, error) {
	if err := Relocate(prog.Flow, prog.Pointers); err != nil {
		return nil, err
	}
	return NewContainer(prog.Header.Start, prog.Flow, prog.Pointers, prog.Strings), nil
}

// Sections returns the sections to be written, in file order
func (c *Container) Sections() []Section {
	sections := make([]Section, 0, 4)
	sections = append(sections, c.Flow, c.Pointers)
	if !c.Tempo.Empty() {
		sections = append(sections, c.Tempo)
	}
	return append(sections, c.Strings)
}

// Header computes the container header from the section sizes
func (c *Container) Header() Header {
	return headerFor(c.Sections())
}

func headerFor(sections []Section) Header {
	size := uint32(HeaderSize)
	for _, s := range sections {
		size += s.Size()
	}
	return Header{
		Magic:        MagicBTKS,
		Size:         size,
		Version:      Version,
		SectionCount: uint32(len(sections)),
	}
}

// Bytes serializes the container, checking every declared size against the
// bytes actually produced.
func (c *Container) Bytes() ([]byte, error) {
	if !c.Tempo.Empty() {
		return nil, ErrTempoUnsupported
	}
	return encodeSections(c.Sections())
}

func encodeSections(sections []Section) ([]byte, error) {
	h := headerFor(sections)
	buf := bytes.NewBuffer(make([]byte, 0, h.Size))
	buf.Write(h.Encode())

	for _, s := range sections {
		before := buf.Len()
		if _, err := s.WriteTo(buf); err != nil {
			magic := s.Magic()
			return nil, fmt.Errorf("failed to write %s section: %w", magic[:], err)
		}
		if written := uint32(buf.Len() - before); written != s.Size() {
			magic := s.Magic()
			return nil, fmt.Errorf("%w: %s section wrote %d bytes, declared %d",
				ErrFormat, magic[:], written, s.Size())
		}
	}

	if uint32(buf.Len()) != h.Size {
		return nil, fmt.Errorf("%w: container is %d bytes, header says %d", ErrFormat, buf.Len(), h.Size)
	}

	return buf.Bytes(), nil
}

// Validate checks the layout invariants without keeping the output
func (c *Container) Validate() error {
	_, err := c.Bytes()
	return err
}

// WriteTo writes the container to w
func (c *Container) WriteTo(w io.Writer) (int64, error) {
	data, err := c.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// Digest returns the xxhash64 of the serialized container
func (c *Container) Digest() (uint64, error) {
	data, err := c.Bytes()
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}

// SectionInfo describes where a section sits in the file
type SectionInfo struct {
	Magic  string
	Offset uint32
	Size   uint32
}

// Layout lists the sections with their file offsets
func (c *Container) Layout() []SectionInfo {
	offset := uint32(HeaderSize)
	var infos []SectionInfo
	for _, s := range c.Sections() {
		magic := s.Magic()
		infos = append(infos, SectionInfo{Magic: string(magic[:]), Offset: offset, Size: s.Size()})
		offset += s.Size()
	}
	return infos
}
