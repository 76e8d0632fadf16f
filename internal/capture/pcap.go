//go:build pcap
// +build pcap

package capture

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// ExtractPCAP rebuilds a capture stream from a pcap of the unit's UDP
// export: every UDP payload seen on udpPort is appended to w in file
// order. This function is only available when building with the 'pcap'
// build tag.
func ExtractPCAP(ctx context.Context, pcapFile string, udpPort int, w io.Writer) (int, error) {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return 0, fmt.Errorf("open pcap file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return 0, fmt.Errorf("set BPF filter %q: %w", filter, err)
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := 0
	for {
		select {
		case <-ctx.Done():
			log.Printf("pcap extraction stopped after %d packets", packets)
			return packets, ctx.Err()
		case packet := <-source.Packets():
			if packet == nil {
				// End of pcap file
				return packets, nil
			}

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			if _, err := w.Write(udp.Payload); err != nil {
				return packets, fmt.Errorf("write payload: %w", err)
			}
			packets++
			if packets%10000 == 0 {
				log.Printf("pcap progress: %d packets extracted", packets)
			}
		}
	}
}
