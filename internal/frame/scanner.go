package frame

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// ScanConfig describes one pass over a capture stream.
type ScanConfig struct {
	FrameSize   int            // fixed frame stride in bytes
	FrameOffset int            // capture preamble skipped before the first frame
	TimeOffset  int            // timestamp position within each frame
	Start       time.Time      // window lower bound, inclusive
	End         time.Time      // window upper bound, inclusive
	Loc         *time.Location // wall-clock location of the frame timestamps
}

// Frame is one surviving record: the raw bytes plus the timestamp decoded
// during the scan, so downstream consumers never re-decode.
type Frame struct {
	Data []byte
	Time time.Time
}

// ScanError records one frame the scanner could not use. ByteOffset is the
// absolute offset of the frame's first byte in the capture file, preamble
// included.
type ScanError struct {
	FrameIndex int
	ByteOffset int64
	Err        error
}

func (e ScanError) Error() string {
	return fmt.Sprintf("frame %d at byte %d: %v", e.FrameIndex, e.ByteOffset, e.Err)
}

func (e ScanError) Unwrap() error { return e.Err }

// Reason maps a scan error to its stable diagnostic label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrTruncatedFrame):
		return "truncated_frame"
	case errors.Is(err, ErrTimestampRange):
		return "timestamp_out_of_range"
	case errors.Is(err, ErrShortFrame), errors.Is(err, ErrMalformedTimestamp):
		return "malformed_timestamp"
	default:
		return "read_error"
	}
}

// Scanner walks a capture stream frame by frame, keeping frames whose
// timestamp falls inside the configured window.
//
// Recovery from corruption is deliberately blind: a frame with an unusable
// timestamp is recorded as a diagnostic and the scan resumes at the next
// frame-size boundary. There is no resync search for a valid timestamp, so
// a capture that lost bytes mid-stream stays misaligned until the end of
// file. That matches the unit's append-only capture format, where partial
// writes only ever occur at the tail.
type Scanner struct {
	cfg ScanConfig
}

// NewScanner validates the configuration and returns a scanner. The frame
// size must cover the minimum frame and the whole timestamp field, and the
// window must be ordered.
func NewScanner(cfg ScanConfig) (*Scanner, error) {
	if cfg.FrameSize < MIN_FRAME_SIZE {
		return nil, fmt.Errorf("frame size %d below minimum %d", cfg.FrameSize, MIN_FRAME_SIZE)
	}
	if cfg.TimeOffset < 0 || cfg.TimeOffset+TIME_FIELD_SIZE > cfg.FrameSize {
		return nil, fmt.Errorf("time offset %d does not fit a %d byte frame", cfg.TimeOffset, cfg.FrameSize)
	}
	if cfg.FrameOffset < 0 {
		return nil, fmt.Errorf("negative frame offset %d", cfg.FrameOffset)
	}
	if cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("window end %s before start %s",
			cfg.End.Format("2006-01-02 15:04:05"), cfg.Start.Format("2006-01-02 15:04:05"))
	}
	if cfg.Loc == nil {
		cfg.Loc = time.Local
	}
	return &Scanner{cfg: cfg}, nil
}

// Scan reads the stream to the end and returns the in-window frames together
// with the ordered diagnostics. A short trailing read produces one truncated
// frame diagnostic and a clean stop; only a true I/O failure is returned as
// an error, alongside whatever was decoded before it.
func (s *Scanner) Scan(r io.Reader) ([]Frame, []ScanError, error) {
	if s.cfg.FrameOffset > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(s.cfg.FrameOffset)); err != nil {
			if err == io.EOF {
				return nil, nil, nil
			}
			return nil, nil, fmt.Errorf("skip capture preamble: %w", err)
		}
	}

	var (
		frames   []Frame
		scanErrs []ScanError
		buf      = make([]byte, s.cfg.FrameSize)
		start    = s.cfg.Start.Unix()
		end      = s.cfg.End.Unix()
	)
	for index := 0; ; index++ {
		n, err := io.ReadFull(r, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			scanErrs = append(scanErrs, ScanError{
				FrameIndex: index,
				ByteOffset: s.offsetOf(index),
				Err:        fmt.Errorf("%w: %d of %d bytes", ErrTruncatedFrame, n, s.cfg.FrameSize),
			})
			break
		}
		if err != nil {
			return frames, scanErrs, fmt.Errorf("read frame %d: %w", index, err)
		}

		t, derr := DecodeTime(buf, s.cfg.TimeOffset, s.cfg.Loc)
		if derr != nil {
			// Skip exactly one stride; the next read realigns blindly.
			scanErrs = append(scanErrs, ScanError{
				FrameIndex: index,
				ByteOffset: s.offsetOf(index),
				Err:        derr,
			})
			continue
		}
		if u := t.Unix(); u < start || u > end {
			continue
		}

		data := make([]byte, len(buf))
		copy(data, buf)
		frames = append(frames, Frame{Data: data, Time: t})
	}
	return frames, scanErrs, nil
}

func (s *Scanner) offsetOf(index int) int64 {
	return int64(s.cfg.FrameOffset) + int64(index)*int64(s.cfg.FrameSize)
}
