package capture

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/ferrous-data/condition.report/internal/profile"
)

// NewMockSource returns a frame source that synthesizes frames for the
// given family at the given interval, for bench-testing the capture loop
// without unit hardware. Frames carry the current wall clock and a speed
// sweep; everything else is zero.
func NewMockSource(table profile.Table, interval time.Duration) io.ReadCloser {
	r, w := io.Pipe()

	go func() {
		defer w.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		seq := 0
		for range ticker.C {
			if _, err := w.Write(mockFrame(table, time.Now(), seq)); err != nil {
				return
			}
			seq++
		}
	}()

	return r
}

// mockFrame builds one synthetic frame. The speed field sweeps a triangle
// between 0 and 120 km/h so downstream charts have a visible shape.
func mockFrame(table profile.Table, at time.Time, seq int) []byte {
	data := make([]byte, table.FrameSize)

	data[table.TimeOffset+0] = byte(at.Year() - 2000)
	data[table.TimeOffset+1] = byte(at.Month())
	data[table.TimeOffset+2] = byte(at.Day())
	data[table.TimeOffset+3] = byte(at.Hour())
	data[table.TimeOffset+4] = byte(at.Minute())
	data[table.TimeOffset+5] = byte(at.Second())

	phase := seq % 240
	if phase > 120 {
		phase = 240 - phase
	}
	// Raw counts of 0.01 km/h.
	binary.BigEndian.PutUint16(data[table.Speed.Offset:], uint16(phase*100))

	return data
}
