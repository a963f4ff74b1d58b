// Package fileio writes output files atomically and loads input files,
// transparently decompressing archived inputs.
package fileio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileManager writes a file under a temporary name and moves it into place
// only once FinalizeFile is called.
type FileManager struct {
	path    string
	tmpPath string
	file    *os.File
	written int64
}

// TempPath returns the temporary file name used while writing path
func TempPath(path string) string {
	return filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp", filepath.Base(path)))
}

// NewFileManager creates a new FileManager for the given file path
func NewFileManager(path string) (*FileManager, error) {
	tmpPath := TempPath(path)

	file, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	return &FileManager{
		path:    path,
		tmpPath: tmpPath,
		file:    file,
	}, nil
}

// Path returns the final path of the file
func (fm *FileManager) Path() string {
	return fm.path
}

// Written returns the number of bytes written so far
func (fm *FileManager) Written() int64 {
	return fm.written
}

// Write writes data to the file at the current position
func (fm *FileManager) Write(data []byte) (int, error) {
	if fm.file == nil {
		return 0, os.ErrClosed
	}
	n, err := fm.file.Write(data)
	fm.written += int64(n)
	return n, err
}

// Sync flushes the file to disk
func (fm *FileManager) Sync() error {
	if fm.file == nil {
		return os.ErrClosed
	}
	return fm.file.Sync()
}

// Close closes the file
func (fm *FileManager) Close() error {
	if fm.file == nil {
		return nil
	}
	err := fm.file.Close()
	fm.file = nil
	return err
}

// FinalizeFile closes the file and renames it to the final path
func (fm *FileManager) FinalizeFile() error {
	if err := fm.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(fm.tmpPath, fm.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Cleanup removes the temporary file if writing is aborted
func (fm *FileManager) Cleanup() error {
	if fm.file != nil {
		fm.Close()
	}
	err := os.Remove(fm.tmpPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// WriteFileAtomic writes the output of fn to path. Nothing appears at path
// unless fn succeeds and every byte reached the temporary file; when sync is
// set the file is flushed to disk before the rename.
func WriteFileAtomic(path string, sync bool, fn func(w io.Writer) error) (err error) {
	fm, err := NewFileManager(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			fm.Cleanup()
		}
	}()

	if err = fn(fm); err != nil {
		return err
	}
	if sync {
		if err = fm.Sync(); err != nil {
			return fmt.Errorf("failed to sync %s: %w", fm.tmpPath, err)
		}
	}
	return fm.FinalizeFile()
}

// WriteBytesAtomic writes data to path through a temporary file
func WriteBytesAtomic(path string, data []byte, sync bool) error {
	return WriteFileAtomic(path, sync, func(w io.Writer) error {
		n, err := w.Write(data)
		if err == nil && n != len(data) {
			err = io.ErrShortWrite
		}
		return err
	})
}
