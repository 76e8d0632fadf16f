// Package frame decodes the fixed-layout binary telemetry frames emitted by
// the on-train condition monitoring units (WNDS, BIDS, GVDS, MVDS).
//
// Every family shares the same outer framing: a capture file starts with a
// short preamble, then fixed-size frames back to back. Each frame carries a
// 6-byte wall-clock timestamp and a set of family-specific measurement
// fields at fixed byte offsets. Field layout knowledge lives in the profile
// tables; this package only knows how to read a field given its offset,
// width and scale, and how to decode and validate the timestamp.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Frame layout constants shared by all current unit families
const (
	MIN_FRAME_SIZE       = 255 // Smallest frame any family emits; shorter data is malformed
	TIME_FIELD_SIZE      = 6   // Timestamp field: [year-2000, month, day, hour, minute, second]
	DEFAULT_TIME_OFFSET  = 23  // Timestamp position shared by all current families
	DEFAULT_FRAME_OFFSET = 16  // Capture file preamble before the first frame

	// Timestamp sanity bounds. The year byte encodes years 2000-2255 but
	// anything past 2100 is treated as corruption rather than data.
	SANITY_YEAR_MIN = 2000
	SANITY_YEAR_MAX = 2100
)

// Decode failure modes. Scan diagnostics and callers dispatch on these with
// errors.Is; the wrapped message carries the specifics.
var (
	ErrShortFrame         = errors.New("frame shorter than minimum size")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrTimestampRange     = errors.New("timestamp outside sanity range")
	ErrTruncatedFrame     = errors.New("truncated frame")
)

// Field describes one numeric measurement inside a frame: a byte offset, a
// width of one or two bytes (two-byte fields are big-endian), and a scale
// factor applied to the raw unsigned value.
type Field struct {
	Offset int
	Width  int
	Scale  float64
}

// Read extracts the field from a raw frame. Access outside the frame or an
// unsupported width is an error, never a panic.
func (f Field) Read(frame []byte) (float64, error) {
	switch f.Width {
	case 1:
		if f.Offset < 0 || f.Offset >= len(frame) {
			return 0, fmt.Errorf("field at byte %d exceeds frame of %d bytes", f.Offset, len(frame))
		}
		return float64(frame[f.Offset]) * f.Scale, nil
	case 2:
		if f.Offset < 0 || f.Offset+2 > len(frame) {
			return 0, fmt.Errorf("field at bytes %d-%d exceeds frame of %d bytes", f.Offset, f.Offset+1, len(frame))
		}
		return float64(binary.BigEndian.Uint16(frame[f.Offset:f.Offset+2])) * f.Scale, nil
	default:
		return 0, fmt.Errorf("unsupported field width %d at byte %d", f.Width, f.Offset)
	}
}

// DecodeTime decodes the 6-byte timestamp at off, interpreting the bytes as
// wall-clock time in loc. The bytes must form a real calendar date and time;
// a decodable value outside the sanity bounds is reported as ErrTimestampRange
// so callers can distinguish corruption from clock faults.
func DecodeTime(data []byte, off int, loc *time.Location) (time.Time, error) {
	if len(data) < MIN_FRAME_SIZE {
		return time.Time{}, fmt.Errorf("%w: %d bytes, need %d", ErrShortFrame, len(data), MIN_FRAME_SIZE)
	}
	if off < 0 || off+TIME_FIELD_SIZE > len(data) {
		return time.Time{}, fmt.Errorf("%w: time field at byte %d exceeds frame of %d bytes", ErrMalformedTimestamp, off, len(data))
	}
	if loc == nil {
		loc = time.Local
	}

	year := int(data[off]) + 2000
	month := int(data[off+1])
	day := int(data[off+2])
	hour := int(data[off+3])
	minute := int(data[off+4])
	second := int(data[off+5])

	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("%w: month %d", ErrMalformedTimestamp, month)
	}
	if day < 1 || day > daysIn(time.Month(month), year) {
		return time.Time{}, fmt.Errorf("%w: day %d of %d-%02d", ErrMalformedTimestamp, day, year, month)
	}
	if hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, fmt.Errorf("%w: time %02d:%02d:%02d", ErrMalformedTimestamp, hour, minute, second)
	}
	if year > SANITY_YEAR_MAX {
		return time.Time{}, fmt.Errorf("%w: year %d past %d", ErrTimestampRange, year, SANITY_YEAR_MAX)
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	if t.Unix() < 0 {
		return time.Time{}, fmt.Errorf("%w: %s before the Unix epoch", ErrTimestampRange, t.Format("2006-01-02 15:04:05"))
	}
	return t, nil
}

// daysIn returns the day count of month m in year (day 0 of the following
// month normalizes to the last day of m).
func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
