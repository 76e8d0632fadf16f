// Package capture collects raw unit frames into .dat capture files. The
// checker only ever reads capture files; this package is how they get made
// off the vehicle, either from a unit's serial feed or from a pcap of its
// UDP export.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"go.bug.st/serial"
)

// logEvery is how many frames pass between capture progress lines.
const logEvery = 100

// OpenSerial opens the unit's serial feed at 8N1 with the given baud rate.
func OpenSerial(portName string, baud int) (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	return port, nil
}

// Capture copies whole frames from src to dst until the context is
// cancelled or the source ends, and returns the number of bytes written.
// A partial trailing read is discarded so the capture stays frame-aligned.
// Callers handing in a blocking source should close it when the context is
// cancelled to unblock the pending read.
func Capture(ctx context.Context, src io.Reader, dst io.Writer, frameSize int) (int64, error) {
	if frameSize <= 0 {
		return 0, fmt.Errorf("frame size %d", frameSize)
	}

	buf := make([]byte, frameSize)
	var written int64
	frames := 0
	for {
		if ctx.Err() != nil {
			return written, nil
		}
		if _, err := io.ReadFull(src, buf); err != nil {
			switch {
			case ctx.Err() != nil || errors.Is(err, io.EOF):
				return written, nil
			case errors.Is(err, io.ErrUnexpectedEOF):
				log.Printf("discarding partial frame at end of source")
				return written, nil
			default:
				return written, fmt.Errorf("read frame: %w", err)
			}
		}

		n, err := dst.Write(buf)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write frame: %w", err)
		}

		frames++
		if frames%logEvery == 0 {
			log.Printf("captured %d frames (%d bytes)", frames, written)
		}
	}
}
