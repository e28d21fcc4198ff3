package filter

const (
	lengthByte  int = 1
	lengthHalf  int = 2
	lengthWord  int = 4
	bitsPerWord int = 32

	etherTypeIPv4 uint32 = 0x0800
	etherTypeIPv6 uint32 = 0x86dd
	etherTypeArp  uint32 = 0x806
	etherTypeRarp uint32 = 0x8035

	// BSD loopback address families, in both byte orders since the header
	// is written in the byte order of the capturing host
	afInet        uint32 = 2
	afInetSwapped uint32 = 0x02000000

	jumpMask uint32 = 0x1fff

	ipProtocolICMP  uint32 = 0x01
	ipProtocolIGMP  uint32 = 0x02
	ipProtocolTCP   uint32 = 0x06
	ipProtocolUDP   uint32 = 0x11
	ipProtocolICMP6 uint32 = 0x3a
	ipProtocolSctp  uint32 = 0x84

	// IPv6 fragment header; the real protocol is in the first byte after the fixed header
	ip6ContinuationPacket uint32 = 0x2c

	maxPort uint64 = 0xffff
)

// afInet6 every value BSD variants use for AF_INET6 on the loopback header
var afInet6 = []uint32{24, 28, 30, 0x18000000, 0x1c000000, 0x1e000000}

type filterKind int

const (
	filterKindUnset filterKind = iota
	filterKindHost
	filterKindNet
	filterKindPort
	filterKindPortRange
	filterKindGreater
	filterKindLess
)

var kinds = map[string]filterKind{
	"host":      filterKindHost,
	"net":       filterKindNet,
	"port":      filterKindPort,
	"portrange": filterKindPortRange,
	"greater":   filterKindGreater,
	"less":      filterKindLess,
}

type filterDirection int

const (
	filterDirectionUnset filterDirection = iota
	filterDirectionSrcAndDst
	filterDirectionSrcOrDst
	filterDirectionSrc
	filterDirectionDst
	filterDirectionRa
	filterDirectionTa
	filterDirectionAddr1
	filterDirectionAddr2
	filterDirectionAddr3
	filterDirectionAddr4
)

var directions = map[string]filterDirection{
	"src":         filterDirectionSrc,
	"dst":         filterDirectionDst,
	"src and dst": filterDirectionSrcAndDst,
	"src or dst":  filterDirectionSrcOrDst,
	"ra":          filterDirectionRa,
	"ta":          filterDirectionTa,
	"addr1":       filterDirectionAddr1,
	"addr2":       filterDirectionAddr2,
	"addr3":       filterDirectionAddr3,
	"addr4":       filterDirectionAddr4,
}

type filterProtocol int

const (
	filterProtocolUnset filterProtocol = iota
	filterProtocolEther
	filterProtocolFddi
	filterProtocolTr
	filterProtocolWlan
	filterProtocolIP
	filterProtocolIP6
	filterProtocolArp
	filterProtocolRarp
	filterProtocolDecnet
)

var protocols = map[string]filterProtocol{
	"ether":  filterProtocolEther,
	"fddi":   filterProtocolFddi,
	"tr":     filterProtocolTr,
	"wlan":   filterProtocolWlan,
	"ip":     filterProtocolIP,
	"ip6":    filterProtocolIP6,
	"arp":    filterProtocolArp,
	"rarp":   filterProtocolRarp,
	"decnet": filterProtocolDecnet,
}

type filterSubProtocol int

const (
	filterSubProtocolUnset filterSubProtocol = iota
	filterSubProtocolIP
	filterSubProtocolIP6
	filterSubProtocolArp
	filterSubProtocolRarp
	filterSubProtocolIcmp
	filterSubProtocolIcmp6
	filterSubProtocolIgmp
	filterSubProtocolSctp
	filterSubProtocolUDP
	filterSubProtocolTCP
	// filterSubProtocolUnknown is set for "proto <number>"; the number is kept in proto
	filterSubProtocolUnknown
)

var subProtocols = map[string]filterSubProtocol{
	"ip":    filterSubProtocolIP,
	"ip6":   filterSubProtocolIP6,
	"arp":   filterSubProtocolArp,
	"rarp":  filterSubProtocolRarp,
	"icmp":  filterSubProtocolIcmp,
	"icmp6": filterSubProtocolIcmp6,
	"igmp":  filterSubProtocolIgmp,
	"sctp":  filterSubProtocolSctp,
	"udp":   filterSubProtocolUDP,
	"tcp":   filterSubProtocolTCP,
}

// etherTypes the link layer protocol value for sub-protocols usable with "ether proto"
var etherTypes = map[filterSubProtocol]uint32{
	filterSubProtocolIP:   etherTypeIPv4,
	filterSubProtocolIP6:  etherTypeIPv6,
	filterSubProtocolArp:  etherTypeArp,
	filterSubProtocolRarp: etherTypeRarp,
}

// ipProtocols the IP protocol number for sub-protocols usable with "ip proto" and "ip6 proto"
var ipProtocols = map[filterSubProtocol]uint32{
	filterSubProtocolIcmp:  ipProtocolICMP,
	filterSubProtocolIcmp6: ipProtocolICMP6,
	filterSubProtocolIgmp:  ipProtocolIGMP,
	filterSubProtocolSctp:  ipProtocolSctp,
	filterSubProtocolUDP:   ipProtocolUDP,
	filterSubProtocolTCP:   ipProtocolTCP,
}

// services well-known port names accepted by "port" and "portrange"
var services = map[string]uint32{
	"ftp-data": 20,
	"ftp":      21,
	"ssh":      22,
	"telnet":   23,
	"smtp":     25,
	"domain":   53,
	"bootps":   67,
	"bootpc":   68,
	"tftp":     69,
	"http":     80,
	"pop3":     110,
	"ntp":      123,
	"imap":     143,
	"snmp":     161,
	"bgp":      179,
	"ldap":     389,
	"https":    443,
	"syslog":   514,
}
