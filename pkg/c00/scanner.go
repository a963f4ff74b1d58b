package c00

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rhmodding/deckompiler/pkg/common/log"
)

const (
	// skip, start and assets at the head of a game or gate record
	entryFieldsSize = 12
	// id1, id2, position and padding
	tempoFieldsSize = 16
)

// Scanner walks the archive tables sequentially, without seeking
type Scanner struct {
	layout Layout
	logger log.Logger

	r      *bufio.Reader
	offset int64
	buf    []byte
}

// ScannerOption configures a Scanner
type ScannerOption func(*Scanner)

// WithLogger sets the logger used for scan diagnostics
func WithLogger(logger log.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a scanner for the given table layout
func NewScanner(layout Layout, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		layout: layout,
		logger: log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "c00")
	return s
}

// Scan reads the three tables from r and returns every record whose stored
// offset is at or past base.
func (s *Scanner) Scan(r io.Reader, base uint32) (*Report, error) {
	if err := s.layout.Validate(); err != nil {
		return nil, err
	}

	s.r = bufio.NewReaderSize(r, 64*1024)
	s.offset = 0
	report := &Report{Base: base}

	for i := 0; i < s.layout.GameRecords; i++ {
		c, err := s.readEntry(GameTable, i, s.layout.GameStride)
		if err != nil {
			return nil, err
		}
		if c.Start >= base {
			report.Games = append(report.Games, c)
		}
	}

	if err := s.skip(GameTable, s.layout.GameRecords, s.layout.TableGap); err != nil {
		return nil, err
	}

	for i := 0; i < s.layout.TempoRecords; i++ {
		t, err := s.readTempo(i)
		if err != nil {
			return nil, err
		}
		if t.Position >= base {
			report.Tempos = append(report.Tempos, t)
		}
	}

	for i := 0; i < s.layout.GateRecords; i++ {
		c, err := s.readEntry(GateTable, i, s.layout.GateStride)
		if err != nil {
			return nil, err
		}
		if c.Start >= base {
			report.Games = append(report.Games, c)
		}
	}

	s.logger.Debug("Scanned %d bytes of tables with base 0x%08X: %d game/gate and %d tempo candidates",
		s.offset, base, len(report.Games), len(report.Tempos))

	return report, nil
}

// record reads one fixed-size record into the scratch buffer
func (s *Scanner) record(table Table, index, size int) ([]byte, error) {
	if cap(s.buf) < size {
		s.buf = make([]byte, size)
	}
	buf := s.buf[:size]
	start := s.offset
	n, err := io.ReadFull(s.r, buf)
	s.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncatedTable
		}
		return nil, &TableError{Table: table, Index: index, Offset: start, Err: err}
	}
	return buf, nil
}

func (s *Scanner) readEntry(table Table, index, stride int) (Candidate, error) {
	buf, err := s.record(table, index, stride)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{
		Table:  table,
		Index:  index,
		Start:  binary.LittleEndian.Uint32(buf[4:8]),
		Assets: binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

func (s *Scanner) readTempo(index int) (TempoCandidate, error) {
	buf, err := s.record(TempoTable, index, s.layout.TempoStride)
	if err != nil {
		return TempoCandidate{}, err
	}
	return TempoCandidate{
		Index:    index,
		ID1:      binary.LittleEndian.Uint32(buf[0:4]),
		ID2:      binary.LittleEndian.Uint32(buf[4:8]),
		Position: binary.LittleEndian.Uint32(buf[8:12]),
		Padding:  binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

func (s *Scanner) skip(after Table, index, n int) error {
	start := s.offset
	skipped, err := s.r.Discard(n)
	s.offset += int64(skipped)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = ErrTruncatedTable
		}
		return &TableError{Table: after, Index: index, Offset: start, Err: fmt.Errorf("gap: %w", err)}
	}
	return nil
}

// Scan walks the tables of r with the default layout
func Scan(r io.Reader, base uint32) (*Report, error) {
	return NewScanner(DefaultLayout()).Scan(r, base)
}
