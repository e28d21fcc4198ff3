package pcap

import "github.com/packetcap/go-pcapfilter/filter"

// link types compliant with pcap-linktype(7) and http://www.tcpdump.org/linktypes.html.
const (
	LinkTypeNull     = filter.LinkTypeNull
	LinkTypeEthernet = filter.LinkTypeEthernet

	// DefaultUnboundSnaplen snapshot length used when compiling without a device
	DefaultUnboundSnaplen int32 = 9000
	// DefaultSnaplen snapshot length for live captures when none is configured
	DefaultSnaplen int32 = 1600
)
