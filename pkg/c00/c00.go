// Package c00 scans the record tables of a C00 archive binary for entries
// whose stored offset points past the baseline image, which marks them as
// replaced by a patch.
//
// The archive starts with three fixed-stride tables read in sequence:
//
//	game table   0x68 records of 0x34 bytes: skip 4, start, assets, skip 0x28
//	padding      0x68 bytes
//	tempo table  0x1DD records of 0x10 bytes: id1, id2, position, padding
//	gate table   0x10 records of 0x24 bytes: skip 4, start, assets, skip 0x18
package c00

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrTruncatedTable is returned when the archive ends inside a table
	ErrTruncatedTable = errors.New("archive table truncated")
	// ErrUnknownVariant is returned for an unrecognized archive variant name
	ErrUnknownVariant = errors.New("unknown archive variant")
	// ErrInvalidOffset is returned when a base offset literal cannot be parsed
	ErrInvalidOffset = errors.New("invalid offset literal")
)

// GateIndexBase is added to gate-table indices so they do not collide with
// game-table indices in a combined listing.
const GateIndexBase = 0x100

// Table identifies one of the archive tables
type Table int

const (
	GameTable Table = iota
	TempoTable
	GateTable
)

func (t Table) String() string {
	switch t {
	case GameTable:
		return "game"
	case TempoTable:
		return "tempo"
	case GateTable:
		return "gate"
	default:
		return fmt.Sprintf("table(%d)", int(t))
	}
}

// Layout describes the table geometry of an archive
type Layout struct {
	GameRecords  int
	GameStride   int
	TableGap     int
	TempoRecords int
	TempoStride  int
	GateRecords  int
	GateStride   int
}

// DefaultLayout returns the geometry shared by every known archive variant
func DefaultLayout() Layout {
	return Layout{
		GameRecords:  0x68,
		GameStride:   0x34,
		TableGap:     0x68,
		TempoRecords: 0x1DD,
		TempoStride:  0x10,
		GateRecords:  0x10,
		GateStride:   0x24,
	}
}

// Size is the number of bytes the tables occupy
func (l Layout) Size() int {
	return l.GameRecords*l.GameStride + l.TableGap +
		l.TempoRecords*l.TempoStride + l.GateRecords*l.GateStride
}

// Validate checks that every stride holds the fields read from it
func (l Layout) Validate() error {
	if l.GameRecords < 0 || l.TempoRecords < 0 || l.GateRecords < 0 || l.TableGap < 0 {
		return fmt.Errorf("invalid layout: negative record count or gap")
	}
	if l.GameStride < entryFieldsSize || l.GateStride < entryFieldsSize {
		return fmt.Errorf("invalid layout: entry stride must be at least %d bytes", entryFieldsSize)
	}
	if l.TempoStride < tempoFieldsSize {
		return fmt.Errorf("invalid layout: tempo stride must be at least %d bytes", tempoFieldsSize)
	}
	return nil
}

// Candidate is a game or gate record whose start offset is at or past the base
type Candidate struct {
	Table  Table
	Index  int
	Start  uint32
	Assets uint32
}

// TaggedIndex returns the index in the combined game/gate numbering
func (c Candidate) TaggedIndex() int {
	if c.Table == GateTable {
		return GateIndexBase + c.Index
	}
	return c.Index
}

// IsGate reports whether the candidate comes from the gate table
func (c Candidate) IsGate() bool { return c.Table == GateTable }

// TempoCandidate is a tempo-table record whose position is at or past the base
type TempoCandidate struct {
	Index    int
	ID1      uint32
	ID2      uint32
	Position uint32
	Padding  uint32
}

// Report lists the candidates found in one archive
type Report struct {
	Base   uint32
	Games  []Candidate
	Tempos []TempoCandidate
}

// Len returns the total number of candidates
func (r *Report) Len() int {
	return len(r.Games) + len(r.Tempos)
}

// TableError reports a truncated table
type TableError struct {
	Table  Table
	Index  int
	Offset int64
	Err    error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%s table record %d at byte 0x%X: %v", e.Table, e.Index, e.Offset, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

// Variant names a known kind of archive
type Variant string

const (
	RHMPatch    Variant = "rhmpatch"
	SaltwaterUS Variant = "saltwater-us"
	SaltwaterEU Variant = "saltwater-eu"
	SaltwaterJP Variant = "saltwater-jp"
	SaltwaterKR Variant = "saltwater-kr"
)

// Variants lists every known variant
func Variants() []Variant {
	return []Variant{RHMPatch, SaltwaterUS, SaltwaterEU, SaltwaterJP, SaltwaterKR}
}

// ParseVariant resolves a variant name, case-insensitively
func ParseVariant(name string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Variants() {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

// BaseOffset returns the first address past the baseline image
func (v Variant) BaseOffset() uint32 {
	switch v {
	case SaltwaterUS, SaltwaterEU, SaltwaterJP, SaltwaterKR:
		return 0x060A9008
	default:
		return 0x0C000000
	}
}

// ParseOffset parses an unsigned 32-bit integer literal. Accepted forms are
// decimal, 0x/0X hexadecimal, 0o octal and 0b binary. A leading zero does
// not select octal.
func ParseOffset(s string) (uint32, error) {
	lit := strings.TrimSpace(s)
	digits, base := lit, 10
	if len(lit) > 2 && lit[0] == '0' {
		switch lit[1] {
		case 'x', 'X':
			digits, base = lit[2:], 16
		case 'o':
			digits, base = lit[2:], 8
		case 'b':
			digits, base = lit[2:], 2
		}
	}
	if digits == "" || digits[0] == '+' || digits[0] == '-' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}
	return uint32(v), nil
}

// FormatOffset renders an offset the way ParseOffset reads it back
func FormatOffset(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}
