// Package profile holds the per-family channel tables for the condition
// monitoring units. A table is pure data: byte offsets, widths, scales, flag
// masks and reduction kinds transcribed from the unit ICDs. The aggregation
// engine interprets the table; nothing outside this package hard-codes a
// frame layout.
package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ferrous-data/condition.report/internal/frame"
)

// Kind selects the reduction applied to a channel over the scan window.
type Kind int

const (
	PlainMax      Kind = iota // running maximum of the value field
	Event                     // time of the last frame with any flag bit set
	MaxSpeed                  // maximum value plus the speed it occurred at
	MaxFreqSpeed              // maximum amplitude plus its frequency and speed
	BandViolation             // time of the last probe reading outside the band
)

func (k Kind) String() string {
	switch k {
	case PlainMax:
		return "plain_max"
	case Event:
		return "event"
	case MaxSpeed:
		return "max_speed"
	case MaxFreqSpeed:
		return "max_freq_speed"
	case BandViolation:
		return "band_violation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// BitCondition is one flag test: frame[Offset] & Mask != 0.
type BitCondition struct {
	Offset int
	Mask   byte
}

// Band describes a run of consecutive single-byte probe readings checked
// against a closed interval. A scaled reading strictly outside [Lo, Hi]
// is a violation.
type Band struct {
	Offset int
	Count  int
	Scale  float64
	Lo     float64
	Hi     float64
}

// Channel describes one reduction slot group. Only the fields its Kind
// needs are set: Value for the maxima kinds, Freq for MaxFreqSpeed, Bits
// for Event, Band for BandViolation.
type Channel struct {
	Name  string
	Kind  Kind
	Value frame.Field
	Freq  frame.Field
	Bits  []BitCondition
	Band  Band
}

// Slots returns how many summary slots the channel contributes.
func (c Channel) Slots() int {
	switch c.Kind {
	case MaxSpeed:
		return 2
	case MaxFreqSpeed:
		return 3
	default:
		return 1
	}
}

// Table describes one unit family. Slot 0 of every summary vector is the
// window speed maximum read from the Speed field; the channels follow in
// table order. Round3 families round every scaled value, speed included,
// to three decimals.
type Table struct {
	Name       string
	FrameSize  int
	TimeOffset int
	Speed      frame.Field
	Round3     bool
	Channels   []Channel
}

// SlotCount returns the summary vector length, the leading speed slot
// included.
func (t Table) SlotCount() int {
	n := 1
	for _, c := range t.Channels {
		n += c.Slots()
	}
	return n
}

// Labels returns the stable slot identifiers in vector order. MaxSpeed
// channels contribute name and name_speed, MaxFreqSpeed channels name,
// name_freq and name_speed.
func (t Table) Labels() []string {
	labels := make([]string, 0, t.SlotCount())
	labels = append(labels, "speed_max")
	for _, c := range t.Channels {
		switch c.Kind {
		case MaxSpeed:
			labels = append(labels, c.Name, c.Name+"_speed")
		case MaxFreqSpeed:
			labels = append(labels, c.Name, c.Name+"_freq", c.Name+"_speed")
		default:
			labels = append(labels, c.Name)
		}
	}
	return labels
}

// SlotKinds returns each slot's reduction kind name in vector order,
// parallel to Labels. Multi-slot channels repeat their kind.
func (t Table) SlotKinds() []string {
	kinds := make([]string, 0, t.SlotCount())
	kinds = append(kinds, PlainMax.String())
	for _, c := range t.Channels {
		for i := 0; i < c.Slots(); i++ {
			kinds = append(kinds, c.Kind.String())
		}
	}
	return kinds
}

// Validate checks that every byte the table references fits inside its
// frame size and that each channel carries the pieces its kind requires.
func (t Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table has no name")
	}
	if t.FrameSize < frame.MIN_FRAME_SIZE {
		return fmt.Errorf("%s: frame size %d below minimum %d", t.Name, t.FrameSize, frame.MIN_FRAME_SIZE)
	}
	if t.TimeOffset < 0 || t.TimeOffset+frame.TIME_FIELD_SIZE > t.FrameSize {
		return fmt.Errorf("%s: time offset %d does not fit frame of %d bytes", t.Name, t.TimeOffset, t.FrameSize)
	}
	if err := t.checkField("speed", t.Speed); err != nil {
		return err
	}
	if len(t.Channels) == 0 {
		return fmt.Errorf("%s: no channels", t.Name)
	}

	seen := make(map[string]bool, len(t.Channels))
	for _, c := range t.Channels {
		if c.Name == "" {
			return fmt.Errorf("%s: channel without a name", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("%s: duplicate channel %s", t.Name, c.Name)
		}
		seen[c.Name] = true

		switch c.Kind {
		case PlainMax, MaxSpeed:
			if err := t.checkField(c.Name, c.Value); err != nil {
				return err
			}
		case MaxFreqSpeed:
			if err := t.checkField(c.Name, c.Value); err != nil {
				return err
			}
			if err := t.checkField(c.Name+" frequency", c.Freq); err != nil {
				return err
			}
		case Event:
			if len(c.Bits) == 0 {
				return fmt.Errorf("%s: event channel %s has no flag bits", t.Name, c.Name)
			}
			for _, b := range c.Bits {
				if b.Offset < 0 || b.Offset >= t.FrameSize {
					return fmt.Errorf("%s: %s flag byte %d outside frame of %d bytes", t.Name, c.Name, b.Offset, t.FrameSize)
				}
				if b.Mask == 0 {
					return fmt.Errorf("%s: %s has a zero flag mask at byte %d", t.Name, c.Name, b.Offset)
				}
			}
		case BandViolation:
			b := c.Band
			if b.Count <= 0 {
				return fmt.Errorf("%s: band channel %s has no probes", t.Name, c.Name)
			}
			if b.Offset < 0 || b.Offset+b.Count > t.FrameSize {
				return fmt.Errorf("%s: %s probes %d-%d outside frame of %d bytes", t.Name, c.Name, b.Offset, b.Offset+b.Count-1, t.FrameSize)
			}
			if b.Scale <= 0 {
				return fmt.Errorf("%s: %s has band scale %v", t.Name, c.Name, b.Scale)
			}
			if b.Hi < b.Lo {
				return fmt.Errorf("%s: %s band limits reversed [%v, %v]", t.Name, c.Name, b.Lo, b.Hi)
			}
		default:
			return fmt.Errorf("%s: channel %s has unknown kind %d", t.Name, c.Name, int(c.Kind))
		}
	}
	return nil
}

func (t Table) checkField(name string, f frame.Field) error {
	if f.Width != 1 && f.Width != 2 {
		return fmt.Errorf("%s: %s field width %d", t.Name, name, f.Width)
	}
	if f.Offset < 0 || f.Offset+f.Width > t.FrameSize {
		return fmt.Errorf("%s: %s field at byte %d outside frame of %d bytes", t.Name, name, f.Offset, t.FrameSize)
	}
	if f.Scale <= 0 {
		return fmt.Errorf("%s: %s field scale %v", t.Name, name, f.Scale)
	}
	return nil
}

// trainSpeed is the speed field every current family shares.
var trainSpeed = frame.Field{Offset: 78, Width: 2, Scale: 0.01}

var registry = map[string]Table{
	"WNDS": wndsTable(),
	"BIDS": bidsTable(),
	"GVDS": gvdsTable(),
	"MVDS": mvdsTable(),
}

// Lookup resolves a unit family name, case-insensitively.
func Lookup(name string) (Table, error) {
	t, ok := registry[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Table{}, fmt.Errorf("unknown unit family %q (have %s)", name, strings.Join(Names(), ", "))
	}
	return t, nil
}

// Names lists the registered family names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Construction helpers for the family table files.

func bit(off int, mask byte) BitCondition {
	return BitCondition{Offset: off, Mask: mask}
}

// anyOf builds flag tests that fire on any nonzero value of the listed bytes.
func anyOf(offsets ...int) []BitCondition {
	bits := make([]BitCondition, len(offsets))
	for i, off := range offsets {
		bits[i] = BitCondition{Offset: off, Mask: 0xFF}
	}
	return bits
}

func event(name string, bits ...BitCondition) Channel {
	return Channel{Name: name, Kind: Event, Bits: bits}
}

func maxU8(name string, off int, scale float64) Channel {
	return Channel{Name: name, Kind: MaxSpeed, Value: frame.Field{Offset: off, Width: 1, Scale: scale}}
}

func maxU16(name string, off int, scale float64) Channel {
	return Channel{Name: name, Kind: MaxSpeed, Value: frame.Field{Offset: off, Width: 2, Scale: scale}}
}
