// Command frame-capture appends raw unit frames from a serial feed to a
// .dat capture file until interrupted. The -mock flag swaps in a synthetic
// frame source for bench testing without unit hardware.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ferrous-data/condition.report/internal/capture"
	"github.com/ferrous-data/condition.report/internal/profile"
)

func main() {
	port := flag.String("port", "/dev/ttyUSB0", "serial port of the unit feed")
	baud := flag.Int("baud", 115200, "serial baud rate")
	unit := flag.String("unit", "WNDS", "unit family the feed carries")
	output := flag.String("o", "", "output capture file (default <unit>_capture.dat)")
	mock := flag.Bool("mock", false, "synthesize frames instead of opening the serial port")
	mockInterval := flag.Duration("mock-interval", 100*time.Millisecond, "frame interval for the mock source")
	flag.Parse()

	table, err := profile.Lookup(*unit)
	if err != nil {
		log.Fatal(err)
	}

	path := *output
	if path == "" {
		path = strings.ToLower(table.Name) + "_capture.dat"
	}

	var src io.ReadCloser
	if *mock {
		src = capture.NewMockSource(table, *mockInterval)
	} else {
		src, err = capture.OpenSerial(*port, *baud)
		if err != nil {
			log.Fatalf("open serial: %v", err)
		}
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("open capture file: %v", err)
	}
	defer out.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Closing the source unblocks the read in flight when interrupted.
	go func() {
		<-ctx.Done()
		src.Close()
	}()

	log.Printf("capturing %s frames to %s (interrupt to stop)", table.Name, path)
	written, err := capture.Capture(ctx, src, out, table.FrameSize)
	if err != nil {
		log.Fatalf("capture: %v", err)
	}
	log.Printf("✓ Captured %d bytes to %s", written, path)
}
