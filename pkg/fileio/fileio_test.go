package fileio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

func TestFileManagerFinalize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.btk")

	fm, err := NewFileManager(path)
	if err != nil {
		t.Fatalf("Failed to create file manager: %v", err)
	}
	if _, err := fm.Write([]byte("BTKS")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	// Nothing is visible under the final name until finalized
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Output exists before finalize: %v", err)
	}
	if _, err := os.Stat(TempPath(path)); err != nil {
		t.Errorf("Temporary file missing: %v", err)
	}

	if err := fm.Sync(); err != nil {
		t.Fatalf("Failed to sync: %v", err)
	}
	if err := fm.FinalizeFile(); err != nil {
		t.Fatalf("Failed to finalize: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "BTKS" {
		t.Errorf("Final file: got %q, %v", data, err)
	}
	if fm.Written() != 4 {
		t.Errorf("Written: got %d, expected 4", fm.Written())
	}
	if _, err := os.Stat(TempPath(path)); !os.IsNotExist(err) {
		t.Errorf("Temporary file left behind: %v", err)
	}
}

func TestWriteFileAtomicAbort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.btk")
	boom := errors.New("boom")

	err := WriteFileAtomic(path, true, func(w io.Writer) error {
		w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the callback error, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to list dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected an empty directory, found %d entries", len(entries))
	}
}

func TestWriteBytesAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candidates.json")

	if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}
	if err := WriteBytesAtomic(path, []byte("new"), false); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "new" {
		t.Errorf("Expected replaced content, got %q", data)
	}
}

func TestNewFileManagerMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.btk")
	if _, err := NewFileManager(path); err == nil {
		t.Errorf("Expected an error for a missing directory")
	}
}

func TestDetectCodec(t *testing.T) {
	testCases := []struct {
		name     string
		head     []byte
		expected Codec
	}{
		{"plain", []byte{0x01, 0x00, 0x00, 0x00}, CodecNone},
		{"short", []byte{0x28}, CodecNone},
		{"zstd", []byte{0x28, 0xB5, 0x2F, 0xFD, 0x00}, CodecZstd},
		{"snappy", []byte("\xff\x06\x00\x00sNaPpY\x00"), CodecSnappy},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectCodec(tc.head); got != tc.expected {
				t.Errorf("DetectCodec: got %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte{0x01, 0x20, 0x00, 0x00, 0xFE, 0xFF, 0xFF, 0xFF}, 64)

	plain := filepath.Join(dir, "plain.bin")
	if err := os.WriteFile(plain, payload, 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	var zbuf bytes.Buffer
	zw, err := zstd.NewWriter(&zbuf)
	if err != nil {
		t.Fatalf("Failed to create zstd writer: %v", err)
	}
	zw.Write(payload)
	zw.Close()
	zpath := filepath.Join(dir, "packed.bin.zst")
	if err := os.WriteFile(zpath, zbuf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	var sbuf bytes.Buffer
	sw := snappy.NewBufferedWriter(&sbuf)
	sw.Write(payload)
	sw.Close()
	spath := filepath.Join(dir, "packed.bin.sz")
	if err := os.WriteFile(spath, sbuf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	for _, tc := range []struct {
		path  string
		codec Codec
	}{{plain, CodecNone}, {zpath, CodecZstd}, {spath, CodecSnappy}} {
		data, codec, err := ReadInput(tc.path)
		if err != nil {
			t.Fatalf("ReadInput(%s): %v", tc.path, err)
		}
		if codec != tc.codec {
			t.Errorf("%s: codec %v, expected %v", tc.path, codec, tc.codec)
		}
		if !bytes.Equal(data, payload) {
			t.Errorf("%s: payload mismatch", tc.path)
		}
	}

	empty := filepath.Join(dir, "empty.bin")
	os.WriteFile(empty, nil, 0644)
	if data, codec, err := ReadInput(empty); err != nil || codec != CodecNone || len(data) != 0 {
		t.Errorf("Empty input: got %d bytes, %v, %v", len(data), codec, err)
	}

	if _, _, err := ReadInput(filepath.Join(dir, "missing.bin")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

func TestReadInputCorruptFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zst")
	data := append([]byte{0x28, 0xB5, 0x2F, 0xFD}, bytes.Repeat([]byte{0xAA}, 32)...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	_, _, err := ReadInput(path)
	if !errors.Is(err, ErrInvalidCompressedData) {
		t.Errorf("Expected ErrInvalidCompressedData, got %v", err)
	}
}
