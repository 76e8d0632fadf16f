// Command pcap-extract rebuilds a .dat capture file from a pcap of a
// unit's UDP export. Build with -tags=pcap to enable extraction; without
// the tag it only reports how to enable itself.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/ferrous-data/condition.report/internal/capture"
)

func main() {
	pcapFile := flag.String("pcap", "", "pcap file of the unit UDP export (required)")
	udpPort := flag.Int("udp-port", 5600, "UDP port the unit exports frames on")
	output := flag.String("o", "capture.dat", "output capture file")
	flag.Parse()

	if *pcapFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	out, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create %s: %v", *output, err)
	}
	defer out.Close()

	packets, err := capture.ExtractPCAP(context.Background(), *pcapFile, *udpPort, out)
	if err != nil {
		log.Fatalf("extract: %v", err)
	}
	log.Printf("✓ Extracted %d packets to %s", packets, *output)
}
