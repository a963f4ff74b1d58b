package c00

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// archive builds a zeroed table region for the default layout and lets
// tests poke individual records.
type archive struct {
	layout Layout
	data   []byte
}

func newArchive() *archive {
	l := DefaultLayout()
	return &archive{layout: l, data: make([]byte, l.Size())}
}

func (a *archive) put(off int, v uint32) {
	binary.LittleEndian.PutUint32(a.data[off:], v)
}

func (a *archive) game(index int, start, assets uint32) {
	off := index * a.layout.GameStride
	a.put(off, 0xDEADBEEF)
	a.put(off+4, start)
	a.put(off+8, assets)
}

func (a *archive) tempo(index int, id1, id2, pos, padding uint32) {
	off := a.layout.GameRecords*a.layout.GameStride + a.layout.TableGap + index*a.layout.TempoStride
	a.put(off, id1)
	a.put(off+4, id2)
	a.put(off+8, pos)
	a.put(off+12, padding)
}

func (a *archive) gate(index int, start, assets uint32) {
	off := a.layout.GameRecords*a.layout.GameStride + a.layout.TableGap +
		a.layout.TempoRecords*a.layout.TempoStride + index*a.layout.GateStride
	a.put(off+4, start)
	a.put(off+8, assets)
}

func TestScanner_Scan(t *testing.T) {
	Convey("test scanning archive tables", t, func() {
		const base = 0x0C000000
		a := newArchive()

		Convey("baseline records are excluded and patched ones kept", func() {
			a.game(3, base-4, 0x100)
			a.game(5, base, 0x200)
			a.game(0x67, base+0x40, 0x300)

			report, err := Scan(bytes.NewReader(a.data), base)
			So(err, ShouldBeNil)
			So(report.Games, ShouldHaveLength, 2)
			So(report.Games[0], ShouldResemble, Candidate{Table: GameTable, Index: 5, Start: base, Assets: 0x200})
			So(report.Games[1].Index, ShouldEqual, 0x67)
			So(report.Games[1].TaggedIndex(), ShouldEqual, 0x67)
			So(report.Tempos, ShouldBeEmpty)
			So(report.Base, ShouldEqual, uint32(base))
		})

		Convey("gate records keep their table index", func() {
			a.game(2, base+8, 1)
			a.gate(2, base+16, 2)

			report, err := Scan(bytes.NewReader(a.data), base)
			So(err, ShouldBeNil)
			So(report.Games, ShouldHaveLength, 2)

			gate := report.Games[1]
			So(gate.IsGate(), ShouldBeTrue)
			So(gate.Index, ShouldEqual, 2)
			So(gate.TaggedIndex(), ShouldEqual, 0x102)
			So(report.Games[0].TaggedIndex(), ShouldEqual, 2)
		})

		Convey("tempo records are read with every field", func() {
			a.tempo(0, 1, 2, base-1, 0)
			a.tempo(7, 0x10, 0x20, base+0x80, 0x1234)

			report, err := Scan(bytes.NewReader(a.data), base)
			So(err, ShouldBeNil)
			So(report.Tempos, ShouldResemble, []TempoCandidate{
				{Index: 7, ID1: 0x10, ID2: 0x20, Position: base + 0x80, Padding: 0x1234},
			})
			So(report.Len(), ShouldEqual, 1)
		})

		Convey("trailing bytes after the tables are ignored", func() {
			a.gate(0xF, base, 0)
			data := append(a.data, 1, 2, 3, 4, 5)

			report, err := Scan(bytes.NewReader(data), base)
			So(err, ShouldBeNil)
			So(report.Games, ShouldHaveLength, 1)
		})

		Convey("raising the base never adds candidates", func() {
			for i := 0; i < 0x68; i++ {
				a.game(i, uint32(i)*0x100000, 0)
			}
			for i := 0; i < 0x1DD; i++ {
				a.tempo(i, 0, 0, uint32(i)*0x40000, 0)
			}
			for i := 0; i < 0x10; i++ {
				a.gate(i, uint32(i)*0x700000, 0)
			}

			prev := -1
			for _, b := range []uint32{0, 0x10, 0x100000, 0x2000000, 0x6000000, 0x7FFFFFF, 0xFFFFFFFF} {
				report, err := Scan(bytes.NewReader(a.data), b)
				So(err, ShouldBeNil)
				if prev >= 0 {
					So(report.Len(), ShouldBeLessThanOrEqualTo, prev)
				}
				prev = report.Len()
			}
		})
	})
}

func TestScanner_Truncated(t *testing.T) {
	Convey("test truncated archives", t, func() {
		a := newArchive()
		l := a.layout

		Convey("inside the game table", func() {
			_, err := Scan(bytes.NewReader(a.data[:l.GameStride*3+10]), 0)
			So(errors.Is(err, ErrTruncatedTable), ShouldBeTrue)

			var te *TableError
			So(errors.As(err, &te), ShouldBeTrue)
			So(te.Table, ShouldEqual, GameTable)
			So(te.Index, ShouldEqual, 3)
			So(te.Offset, ShouldEqual, int64(l.GameStride*3))
		})

		Convey("inside the gap", func() {
			_, err := Scan(bytes.NewReader(a.data[:l.GameRecords*l.GameStride+4]), 0)
			So(errors.Is(err, ErrTruncatedTable), ShouldBeTrue)
		})

		Convey("inside the gate table", func() {
			_, err := Scan(bytes.NewReader(a.data[:len(a.data)-1]), 0)
			var te *TableError
			So(errors.As(err, &te), ShouldBeTrue)
			So(te.Table, ShouldEqual, GateTable)
			So(te.Index, ShouldEqual, 0xF)
		})

		Convey("empty input", func() {
			_, err := Scan(bytes.NewReader(nil), 0)
			So(errors.Is(err, ErrTruncatedTable), ShouldBeTrue)
		})
	})
}

func TestLayout_Validate(t *testing.T) {
	Convey("test layout validation", t, func() {
		So(DefaultLayout().Validate(), ShouldBeNil)
		So(DefaultLayout().Size(), ShouldEqual, 0x68*0x34+0x68+0x1DD*0x10+0x10*0x24)

		l := DefaultLayout()
		l.GateStride = 8
		So(l.Validate(), ShouldNotBeNil)

		_, err := NewScanner(l).Scan(bytes.NewReader(nil), 0)
		So(err, ShouldNotBeNil)
	})
}

func TestVariant(t *testing.T) {
	Convey("test archive variants", t, func() {
		v, err := ParseVariant("RHMPatch")
		So(err, ShouldBeNil)
		So(v, ShouldEqual, RHMPatch)
		So(v.BaseOffset(), ShouldEqual, uint32(0x0C000000))

		for _, name := range []string{"saltwater-us", "saltwater-eu", "saltwater-jp", "saltwater-kr"} {
			v, err := ParseVariant(name)
			So(err, ShouldBeNil)
			So(v.BaseOffset(), ShouldEqual, uint32(0x060A9008))
		}

		_, err = ParseVariant("megamix")
		So(errors.Is(err, ErrUnknownVariant), ShouldBeTrue)
	})
}

func TestParseOffset(t *testing.T) {
	Convey("test integer literals", t, func() {
		cases := map[string]uint32{
			"0":          0,
			"1234":       1234,
			"0x0C000000": 0x0C000000,
			"0XFF":       0xFF,
			"0o17":       0o17,
			"0b101":      5,
			"010":        10,
			" 42 ":       42,
			"4294967295": 0xFFFFFFFF,
		}
		for lit, want := range cases {
			got, err := ParseOffset(lit)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		for _, bad := range []string{"", "0x", "-1", "+5", "0xZZ", "0b2", "4294967296", "1_000", "0O17"} {
			_, err := ParseOffset(bad)
			So(errors.Is(err, ErrInvalidOffset), ShouldBeTrue)
		}

		So(FormatOffset(0x060A9008), ShouldEqual, "0x060A9008")
	})
}
