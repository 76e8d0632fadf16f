// Package aggregate folds scanned frames into the per-channel summary
// vector of a unit family. The reductions are driven entirely by the
// family's channel table; this package knows the reduction kinds but no
// byte offsets.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ferrous-data/condition.report/internal/frame"
	"github.com/ferrous-data/condition.report/internal/profile"
	"github.com/ferrous-data/condition.report/internal/units"
)

// ErrNoFrames is returned when there is nothing to reduce. Callers treat a
// windowed scan with no surviving frames as its own outcome rather than an
// all-zero summary.
var ErrNoFrames = errors.New("no frames to reduce")

// Value is one summary slot: a number, or the timestamp of the last frame
// that triggered an event channel. An event channel that never fired stays
// numeric zero.
type Value struct {
	Number float64
	Time   time.Time
}

// IsEvent reports whether the slot holds a triggered event time.
func (v Value) IsEvent() bool { return !v.Time.IsZero() }

// String renders the slot the way the summary file records it: event times
// in the shared layout, numbers in their shortest decimal form.
func (v Value) String() string {
	if v.IsEvent() {
		return v.Time.Format(units.TimeLayout)
	}
	return strconv.FormatFloat(v.Number, 'g', -1, 64)
}

// SpeedPoint is one in-window speed observation.
type SpeedPoint struct {
	T time.Time
	V float64
}

// SpeedStats summarizes the in-window speed trace.
type SpeedStats struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
	P50   float64
	P95   float64
}

// Summary is the result of one reduction: the ordered slot values with
// their labels, plus the speed trace kept for diagnostics and plotting.
type Summary struct {
	Family string
	Values []Value
	Labels []string
	Trace  []SpeedPoint
	Stats  SpeedStats
}

// Reduce folds the frames in stream order into the family's summary
// vector. The table is validated first so a field read inside the loop
// cannot run past a frame the scanner already sized.
func Reduce(table profile.Table, frames []frame.Frame) (*Summary, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("channel table: %w", err)
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	s := &Summary{
		Family: table.Name,
		Values: make([]Value, table.SlotCount()),
		Labels: table.Labels(),
		Trace:  make([]SpeedPoint, 0, len(frames)),
	}

	for i, fr := range frames {
		speed, err := table.Speed.Read(fr.Data)
		if err != nil {
			return nil, fmt.Errorf("frame %d: read speed: %w", i, err)
		}
		if table.Round3 {
			speed = round3(speed)
		}
		if speed > s.Values[0].Number {
			s.Values[0].Number = speed
		}
		s.Trace = append(s.Trace, SpeedPoint{T: fr.Time, V: speed})

		slot := 1
		for _, c := range table.Channels {
			if err := applyChannel(s.Values[slot:slot+c.Slots()], c, table.Round3, fr, speed); err != nil {
				return nil, fmt.Errorf("frame %d: channel %s: %w", i, c.Name, err)
			}
			slot += c.Slots()
		}
	}

	s.Stats = speedStats(s.Trace)
	return s, nil
}

// applyChannel folds one frame into the channel's slots. MaxSpeed and
// MaxFreqSpeed compare lexicographically: a strictly larger leading key
// replaces the whole slot group, an equal leading key lets the trailing
// keys advance on their own. The zero-valued tie counts too, so an
// untouched channel still tracks the highest speed seen.
func applyChannel(slots []Value, c profile.Channel, round bool, fr frame.Frame, speed float64) error {
	switch c.Kind {
	case profile.Event:
		if anySet(c.Bits, fr.Data) {
			slots[0].Time = fr.Time
		}

	case profile.BandViolation:
		b := c.Band
		for i := 0; i < b.Count; i++ {
			v := float64(fr.Data[b.Offset+i]) * b.Scale
			if round {
				v = round3(v)
			}
			if v < b.Lo || v > b.Hi {
				slots[0].Time = fr.Time
				break
			}
		}

	case profile.PlainMax, profile.MaxSpeed:
		v, err := c.Value.Read(fr.Data)
		if err != nil {
			return err
		}
		if round {
			v = round3(v)
		}
		if c.Kind == profile.PlainMax {
			if v > slots[0].Number {
				slots[0].Number = v
			}
			break
		}
		switch {
		case v > slots[0].Number:
			slots[0].Number = v
			slots[1].Number = speed
		case v == slots[0].Number && speed > slots[1].Number:
			slots[1].Number = speed
		}

	case profile.MaxFreqSpeed:
		amp, err := c.Value.Read(fr.Data)
		if err != nil {
			return err
		}
		freq, err := c.Freq.Read(fr.Data)
		if err != nil {
			return err
		}
		if round {
			amp = round3(amp)
			freq = round3(freq)
		}
		switch {
		case amp > slots[0].Number:
			slots[0].Number = amp
			slots[1].Number = freq
			slots[2].Number = speed
		case amp == slots[0].Number && freq > slots[1].Number:
			slots[1].Number = freq
			slots[2].Number = speed
		case amp == slots[0].Number && freq == slots[1].Number && speed > slots[2].Number:
			slots[2].Number = speed
		}

	default:
		return fmt.Errorf("unknown reduction kind %d", int(c.Kind))
	}
	return nil
}

func anySet(bits []profile.BitCondition, data []byte) bool {
	for _, b := range bits {
		if data[b.Offset]&b.Mask != 0 {
			return true
		}
	}
	return false
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

func speedStats(trace []SpeedPoint) SpeedStats {
	if len(trace) == 0 {
		return SpeedStats{}
	}
	xs := make([]float64, len(trace))
	for i, p := range trace {
		xs[i] = p.V
	}

	st := SpeedStats{
		Count: len(xs),
		Mean:  stat.Mean(xs, nil),
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
	}
	if len(xs) > 1 {
		st.Std = stat.StdDev(xs, nil)
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	st.P50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	st.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return st
}
