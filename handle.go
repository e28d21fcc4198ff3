//go:build linux || darwin || freebsd

package pcap

import (
	"context"
	"errors"
	"io"
	"time"
)

// OpenLive open a live capture. Returns a Handle that implements https://godoc.org/github.com/gopacket/gopacket#PacketDataSource
// so you can pass it there. Reads return when ctx is done.
func OpenLive(ctx context.Context, device string, snaplen int32, promiscuous bool, timeout time.Duration) (*Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if snaplen <= 0 {
		snaplen = DefaultSnaplen
	}
	return openLive(ctx, device, snaplen, promiscuous, timeout)
}

// Listen simple one-step command to listen and send packets over a returned
// channel. The channel is closed once the handle is closed or its context is
// done.
func (h *Handle) Listen() chan Packet {
	c := make(chan Packet, 50)
	go func() {
		defer close(c)
		for {
			b, ci, err := h.ReadPacketData()
			if h.closed.Load() || h.context.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			// idle timeout, nothing to report
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c <- Packet{
				B:     b,
				Info:  ci,
				Error: err,
			}
		}
	}()
	return c
}

// SetBPFFilter compile a tcpdump filter expression and install it. An empty
// expression removes filtering.
func (h *Handle) SetBPFFilter(expr string) error {
	return defaultController.SetFilter(h, expr)
}

// IsOpen whether the handle can still capture
func (h *Handle) IsOpen() bool {
	return !h.closed.Load()
}

// Snaplen maximum bytes captured per packet
func (h *Handle) Snaplen() int32 {
	return h.snaplen
}

// LinkType return the link type, compliant with pcap-linktype(7) and http://www.tcpdump.org/linktypes.html.
// For now, we just support Null and Ethernet; some day we may support more
func (h *Handle) LinkType() uint32 {
	return h.linkType
}
