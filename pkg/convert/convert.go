// Package convert turns compiled tickflow binaries into BTKS containers.
package convert

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rhmodding/deckompiler/pkg/btks"
	"github.com/rhmodding/deckompiler/pkg/common/log"
	"github.com/rhmodding/deckompiler/pkg/config"
	"github.com/rhmodding/deckompiler/pkg/fileio"
	"github.com/rhmodding/deckompiler/pkg/tickflow"
)

// Result summarizes one conversion
type Result struct {
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
	Codec  string `json:"codec"`

	Index        uint32 `json:"index"`
	Start        uint32 `json:"start"`
	Instructions int    `json:"instructions"`
	StringRefs   int    `json:"string_refs"`
	StreamPtrs   int    `json:"stream_pointers"`
	Dangling     int    `json:"dangling_strings"`
	FlowSize     int    `json:"flow_size"`
	StringSize   int    `json:"string_size"`
	Size         uint32 `json:"size"`
	Digest       uint64 `json:"digest"`
}

// Option configures a Converter
type Option func(*Converter)

// WithTagMapping sets the annotation tag mapping
func WithTagMapping(m tickflow.TagMapping) Option {
	return func(c *Converter) {
		c.mapping = m
	}
}

// WithSync flushes output files to disk before they are renamed into place
func WithSync(sync bool) Option {
	return func(c *Converter) {
		c.sync = sync
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// Converter runs the decode, relocate and encode pipeline
type Converter struct {
	mapping tickflow.TagMapping
	sync    bool
	logger  log.Logger
}

// NewConverter creates a converter with the default tag mapping
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		mapping: tickflow.DefaultTagMapping(),
		sync:    true,
		logger:  log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("component", "convert")
	return c
}

// NewConverterFromConfig creates a converter from the loaded configuration
func NewConverterFromConfig(cfg *config.Config, logger log.Logger) *Converter {
	return NewConverter(
		WithTagMapping(cfg.TagMapping()),
		WithSync(cfg.SyncOutput()),
		WithLogger(logger),
	)
}

// Convert decodes a source binary from r and returns the container built
// from it. Nothing is written.
func (c *Converter) Convert(r io.Reader) (*btks.Container, *Result, error) {
	prog, err := tickflow.Decode(r,
		tickflow.WithTagMapping(c.mapping),
		tickflow.WithLogger(c.logger),
	)
	if err != nil {
		return nil, nil, err
	}

	res := &Result{
		Codec:        fileio.CodecNone.String(),
		Index:        prog.Header.Index,
		Start:        prog.Header.Start,
		Instructions: len(prog.Instructions),
		FlowSize:     len(prog.Flow),
		StringSize:   len(prog.Strings),
	}
	for _, p := range prog.Pointers {
		if p.Kind == tickflow.StringRef {
			res.StringRefs++
		} else {
			res.StreamPtrs++
		}
	}

	container, err := btks.FromProgram(prog)
	if err != nil {
		return nil, nil, err
	}

	for _, p := range btks.DanglingStrings(prog.Flow, prog.Pointers, len(prog.Strings)) {
		c.logger.WithFields(map[string]interface{}{
			"offset": fmt.Sprintf("0x%X", p.Offset),
		}).Warn("String reference points past the end of the string data (%d bytes)", len(prog.Strings))
		res.Dangling++
	}

	// Digest encodes the container, so it also checks the layout
	if res.Digest, err = container.Digest(); err != nil {
		return nil, nil, err
	}
	res.Size = container.Header().Size

	return container, res, nil
}

// ConvertFile converts the source binary at in and writes the container to
// out. tempo lists tempo files to embed; they are not supported yet and are
// ignored with a warning. On failure no file is left at out.
func (c *Converter) ConvertFile(in, out string, tempo []string) (*Result, error) {
	for _, t := range tempo {
		c.logger.WithField("tempo", t).Warn("Tempo files are not supported yet, ignoring")
	}

	input, err := fileio.OpenInput(in)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	if input.Codec != fileio.CodecNone {
		c.logger.Debug("Decompressing %s input %s", input.Codec, in)
	}

	container, res, err := c.Convert(input)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s: %w", in, err)
	}
	res.Input = in
	res.Output = out
	res.Codec = input.Codec.String()

	data, err := container.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", out, err)
	}

	err = fileio.WriteFileAtomic(out, c.sync, func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", out, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"instructions": res.Instructions,
		"pointers":     res.StringRefs + res.StreamPtrs,
		"digest":       fmt.Sprintf("%016x", res.Digest),
	}).Info("Wrote %s (%d bytes)", out, res.Size)

	return res, nil
}
