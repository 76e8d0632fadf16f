//go:build !pcap
// +build !pcap

package capture

import (
	"context"
	"fmt"
	"io"
)

// ExtractPCAP is a stub implementation when pcap support is disabled.
// Build with -tags=pcap to enable pcap extraction.
func ExtractPCAP(ctx context.Context, pcapFile string, udpPort int, w io.Writer) (int, error) {
	return 0, fmt.Errorf("pcap support not enabled: rebuild with -tags=pcap to extract capture files")
}
