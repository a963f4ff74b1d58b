package fileio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrUnknownCodec is returned when an unsupported compression codec is specified
	ErrUnknownCodec = errors.New("unknown compression codec")

	// ErrInvalidCompressedData is returned when compressed data cannot be decompressed
	ErrInvalidCompressedData = errors.New("invalid compressed data")
)

// Codec identifies how an input file is compressed
type Codec int

const (
	CodecNone Codec = iota
	CodecZstd
	CodecSnappy
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("codec(%d)", int(c))
	}
}

var (
	zstdMagic   = []byte{0x28, 0xB5, 0x2F, 0xFD}
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
)

// DetectCodec inspects the leading bytes of an input
func DetectCodec(head []byte) Codec {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return CodecZstd
	case bytes.HasPrefix(head, snappyMagic):
		return CodecSnappy
	default:
		return CodecNone
	}
}

// NewDecompressReader returns a reader that decompresses data using the specified codec
func NewDecompressReader(r io.Reader, codec Codec) (io.ReadCloser, error) {
	switch codec {
	case CodecNone:
		return io.NopCloser(r), nil

	case CodecZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return &zstdReadCloser{decoder}, nil

	case CodecSnappy:
		return io.NopCloser(snappy.NewReader(r)), nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, codec)
	}
}

// zstdReadCloser wraps a zstd.Decoder to implement io.ReadCloser
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// Input is an opened input file, decompressed if needed
type Input struct {
	io.Reader
	Codec Codec

	file   *os.File
	closer io.Closer
}

// Close releases the decompressor and the file
func (in *Input) Close() error {
	if in.closer != nil {
		in.closer.Close()
	}
	return in.file.Close()
}

// OpenInput opens path for sequential reading. Inputs starting with a zstd
// frame or a snappy stream identifier are decompressed on the fly.
func OpenInput(path string) (*Input, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	br := bufio.NewReaderSize(file, 64*1024)
	head, err := br.Peek(len(snappyMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		file.Close()
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	codec := DetectCodec(head)
	rc, err := NewDecompressReader(br, codec)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to open %s as %s: %w: %v", path, codec, ErrInvalidCompressedData, err)
	}

	return &Input{Reader: rc, Codec: codec, file: file, closer: rc}, nil
}

// ReadInput reads the whole of path, decompressing it if needed
func ReadInput(path string) ([]byte, Codec, error) {
	in, err := OpenInput(path)
	if err != nil {
		return nil, CodecNone, err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		if in.Codec != CodecNone {
			err = fmt.Errorf("%w: %v", ErrInvalidCompressedData, err)
		}
		return nil, in.Codec, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, in.Codec, nil
}
