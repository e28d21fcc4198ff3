package filter

import (
	"errors"
	"fmt"

	"golang.org/x/net/bpf"
)

/*
 File contains the extensive test cases, so it is easier to read the tests
*/

const testSnaplen int32 = 65535

// testCaseExpressions includes the input expression, the intermediate filter
// from Expression.Compile(), and the expected error and instructions from
// Filter.Compile() on Ethernet
type testCaseExpressions struct {
	expression   string
	filter       Filter
	err          error
	instructions []bpf.Instruction
	_            string // output from "tcpdump -d <expression>"
}

var (
	dnsRecords = map[string]map[string]string{
		"www.google.com": {
			"A":    "216.58.207.36",
			"AAAA": "2a00:1450:4001:824::2004",
		},
	}
)

var testCasesExpressionFilterInstructions = map[string][]testCaseExpressions{
	"hostname_invalid": {
		{"abc", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrcOrDst,
			protocol:  filterProtocolUnset,
			id:        "abc",
		}, fmt.Errorf("unknown host: %s", "abc"), nil, ""},
		{"host", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrcOrDst,
			protocol:  filterProtocolUnset,
			id:        "",
		}, errors.New("blank host"), nil, ""},
		{"host abc", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrcOrDst,
			protocol:  filterProtocolUnset,
			id:        "abc",
		}, fmt.Errorf("unknown host: %s", "abc"), nil, ""},
		{"src host abc", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrc,
			protocol:  filterProtocolUnset,
			id:        "abc",
		}, fmt.Errorf("unknown host: %s", "abc"), nil, ""},
		{"src and dst host abc", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrcAndDst,
			protocol:  filterProtocolUnset,
			id:        "abc",
		}, fmt.Errorf("unknown host: %s", "abc"), nil, ""},
		{"host 10.0.0.0/8", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrcOrDst,
			protocol:  filterProtocolUnset,
			id:        "10.0.0.0/8",
		}, fmt.Errorf("invalid host address with CIDR: %s", "10.0.0.0/8"), nil, ""},
		{"tcp host 10.0.0.1", primitive{
			kind:        filterKindHost,
			direction:   filterDirectionSrcOrDst,
			subProtocol: filterSubProtocolTCP,
			id:          "10.0.0.1",
		}, errors.New("'tcp' modifier applied to host"), nil, ""},
	},
	"host_ip4": {
		{"ip host 10.100.100.100", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrcOrDst,
			protocol:  filterProtocolIP,
			id:        "10.100.100.100",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 0, SkipFalse: 5},
			bpf.LoadAbsolute{Off: 26, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0a646464, SkipTrue: 2, SkipFalse: 0},
			bpf.LoadAbsolute{Off: 30, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0a646464, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"ip src host 10.100.100.100", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrc,
			protocol:  filterProtocolIP,
			id:        "10.100.100.100",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 0, SkipFalse: 3},
			bpf.LoadAbsolute{Off: 26, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0a646464, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"ip src and dst host 10.100.100.100", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrcAndDst,
			protocol:  filterProtocolIP,
			id:        "10.100.100.100",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 0, SkipFalse: 5},
			bpf.LoadAbsolute{Off: 26, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0a646464, SkipTrue: 0, SkipFalse: 3},
			bpf.LoadAbsolute{Off: 30, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0a646464, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"arp dst host 10.100.100.100", primitive{
			kind:      filterKindHost,
			direction: filterDirectionDst,
			protocol:  filterProtocolArp,
			id:        "10.100.100.100",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x806, SkipTrue: 0, SkipFalse: 3},
			bpf.LoadAbsolute{Off: 38, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0a646464, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
	},
	"host_ip6": {
		{"ip6 host ::1", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrcOrDst,
			protocol:  filterProtocolIP6,
			id:        "::1",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x86dd, SkipTrue: 0, SkipFalse: 17},
			bpf.LoadAbsolute{Off: 22, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0, SkipTrue: 0, SkipFalse: 6},
			bpf.LoadAbsolute{Off: 26, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0, SkipTrue: 0, SkipFalse: 4},
			bpf.LoadAbsolute{Off: 30, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0, SkipTrue: 0, SkipFalse: 2},
			bpf.LoadAbsolute{Off: 34, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 1, SkipTrue: 8, SkipFalse: 0},
			bpf.LoadAbsolute{Off: 38, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0, SkipTrue: 0, SkipFalse: 7},
			bpf.LoadAbsolute{Off: 42, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0, SkipTrue: 0, SkipFalse: 5},
			bpf.LoadAbsolute{Off: 46, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0, SkipTrue: 0, SkipFalse: 3},
			bpf.LoadAbsolute{Off: 50, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 1, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"ip host ::1", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrcOrDst,
			protocol:  filterProtocolIP,
			id:        "::1",
		}, fmt.Errorf("ip with IPv6 address: %s", "::1"), nil, ""},
	},
	"hostname": {
		{"ip host www.google.com", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrcOrDst,
			protocol:  filterProtocolIP,
			id:        "www.google.com",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 0, SkipFalse: 5},
			bpf.LoadAbsolute{Off: 26, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0xd83acf24, SkipTrue: 2, SkipFalse: 0},
			bpf.LoadAbsolute{Off: 30, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0xd83acf24, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"ip6 dst host www.google.com", primitive{
			kind:      filterKindHost,
			direction: filterDirectionDst,
			protocol:  filterProtocolIP6,
			id:        "www.google.com",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x86dd, SkipTrue: 0, SkipFalse: 9},
			bpf.LoadAbsolute{Off: 38, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x2a001450, SkipTrue: 0, SkipFalse: 7},
			bpf.LoadAbsolute{Off: 42, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x40010824, SkipTrue: 0, SkipFalse: 5},
			bpf.LoadAbsolute{Off: 46, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0, SkipTrue: 0, SkipFalse: 3},
			bpf.LoadAbsolute{Off: 50, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x2004, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
	},
	"net": {
		{"ip src net 192.168.0.0/24", primitive{
			kind:      filterKindNet,
			direction: filterDirectionSrc,
			protocol:  filterProtocolIP,
			id:        "192.168.0.0/24",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 0, SkipFalse: 4},
			bpf.LoadAbsolute{Off: 26, Size: 4},
			bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: 0xffffff00},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0xc0a80000, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"net 192.168.0.1/24", primitive{
			kind:      filterKindNet,
			direction: filterDirectionSrcOrDst,
			protocol:  filterProtocolUnset,
			id:        "192.168.0.1/24",
		}, fmt.Errorf("non-network bits set in \"%s\"", "192.168.0.1/24"), nil, ""},
		{"net nonsense", primitive{
			kind:      filterKindNet,
			direction: filterDirectionSrcOrDst,
			protocol:  filterProtocolUnset,
			id:        "nonsense",
		}, fmt.Errorf("invalid net: %s", "nonsense"), nil, ""},
	},
	"ether": {
		{"ether src 00:11:22:33:44:55", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrc,
			protocol:  filterProtocolEther,
			id:        "00:11:22:33:44:55",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 8, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x22334455, SkipTrue: 0, SkipFalse: 3},
			bpf.LoadAbsolute{Off: 6, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0011, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"ether host 00:11:22", primitive{
			kind:      filterKindHost,
			direction: filterDirectionSrcOrDst,
			protocol:  filterProtocolEther,
			id:        "00:11:22",
		}, fmt.Errorf("invalid ethernet address: %s", "00:11:22"), nil, ""},
		{"ether proto arp", primitive{
			protocol:    filterProtocolEther,
			subProtocol: filterSubProtocolArp,
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x806, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"ether proto \\ip6", primitive{
			protocol:    filterProtocolEther,
			subProtocol: filterSubProtocolIP6,
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x86dd, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
	},
	"protocol": {
		{"arp", primitive{
			protocol: filterProtocolArp,
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x806, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"not ip", primitive{
			protocol: filterProtocolIP,
			negator:  true,
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 1, SkipFalse: 0},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"tcp", primitive{
			subProtocol: filterSubProtocolTCP,
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x86dd, SkipTrue: 0, SkipFalse: 5},
			bpf.LoadAbsolute{Off: 20, Size: 1},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x6, SkipTrue: 7, SkipFalse: 0},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x2c, SkipTrue: 0, SkipFalse: 2},
			bpf.LoadAbsolute{Off: 54, Size: 1},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x6, SkipTrue: 4, SkipFalse: 0},
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 0, SkipFalse: 3},
			bpf.LoadAbsolute{Off: 23, Size: 1},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x6, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"ip proto 47", primitive{
			protocol:    filterProtocolIP,
			subProtocol: filterSubProtocolUnknown,
			proto:       "47",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 0, SkipFalse: 3},
			bpf.LoadAbsolute{Off: 23, Size: 1},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 47, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"ip proto bogus", primitive{
			protocol:    filterProtocolIP,
			subProtocol: filterSubProtocolUnknown,
			proto:       "bogus",
		}, fmt.Errorf("unknown ip proto: %s", "bogus"), nil, ""},
	},
	"port": {
		{"udp dst port 53", primitive{
			kind:        filterKindPort,
			direction:   filterDirectionDst,
			subProtocol: filterSubProtocolUDP,
			id:          "53",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x86dd, SkipTrue: 0, SkipFalse: 4},
			bpf.LoadAbsolute{Off: 20, Size: 1},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x11, SkipTrue: 0, SkipFalse: 2},
			bpf.LoadAbsolute{Off: 56, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x35, SkipTrue: 9, SkipFalse: 0},
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 0, SkipFalse: 8},
			bpf.LoadAbsolute{Off: 23, Size: 1},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x11, SkipTrue: 0, SkipFalse: 6},
			bpf.LoadAbsolute{Off: 20, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: 4, SkipFalse: 0},
			bpf.LoadMemShift{Off: 14},
			bpf.LoadIndirect{Off: 16, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x35, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"ip tcp src port ssh", primitive{
			kind:        filterKindPort,
			direction:   filterDirectionSrc,
			protocol:    filterProtocolIP,
			subProtocol: filterSubProtocolTCP,
			id:          "ssh",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 0, SkipFalse: 8},
			bpf.LoadAbsolute{Off: 23, Size: 1},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x6, SkipTrue: 0, SkipFalse: 6},
			bpf.LoadAbsolute{Off: 20, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: 4, SkipFalse: 0},
			bpf.LoadMemShift{Off: 14},
			bpf.LoadIndirect{Off: 14, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 22, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"port 65536", primitive{
			kind:      filterKindPort,
			direction: filterDirectionSrcOrDst,
			id:        "65536",
		}, fmt.Errorf("invalid port: %s", "65536"), nil, ""},
		{"icmp port 1", primitive{
			kind:        filterKindPort,
			direction:   filterDirectionSrcOrDst,
			subProtocol: filterSubProtocolIcmp,
			id:          "1",
		}, errors.New("'icmp' modifier applied to port"), nil, ""},
		{"ip tcp dst portrange 2000-1000", primitive{
			kind:        filterKindPortRange,
			direction:   filterDirectionDst,
			protocol:    filterProtocolIP,
			subProtocol: filterSubProtocolTCP,
			id:          "2000-1000",
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 0, SkipFalse: 9},
			bpf.LoadAbsolute{Off: 23, Size: 1},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x6, SkipTrue: 0, SkipFalse: 7},
			bpf.LoadAbsolute{Off: 20, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1fff, SkipTrue: 5, SkipFalse: 0},
			bpf.LoadMemShift{Off: 14},
			bpf.LoadIndirect{Off: 16, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpGreaterOrEqual, Val: 1000, SkipTrue: 0, SkipFalse: 2},
			bpf.JumpIf{Cond: bpf.JumpGreaterThan, Val: 2000, SkipTrue: 1, SkipFalse: 0},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"portrange 80", primitive{
			kind:      filterKindPortRange,
			direction: filterDirectionSrcOrDst,
			id:        "80",
		}, fmt.Errorf("invalid port range: %s", "80"), nil, ""},
	},
	"length": {
		{"greater 100", primitive{
			kind: filterKindGreater,
			id:   "100",
		}, nil, []bpf.Instruction{
			bpf.LoadExtension{Num: bpf.ExtLen},
			bpf.JumpIf{Cond: bpf.JumpGreaterOrEqual, Val: 100, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"less 100", primitive{
			kind: filterKindLess,
			id:   "100",
		}, nil, []bpf.Instruction{
			bpf.LoadExtension{Num: bpf.ExtLen},
			bpf.JumpIf{Cond: bpf.JumpGreaterThan, Val: 100, SkipTrue: 1, SkipFalse: 0},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
	},
	"composite": {
		{"ip or arp", composite{
			filters: []Filter{
				primitive{protocol: filterProtocolIP},
				primitive{protocol: filterProtocolArp},
			},
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 2, SkipFalse: 0},
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x806, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"ip and greater 64", composite{
			and: true,
			filters: []Filter{
				primitive{protocol: filterProtocolIP},
				primitive{kind: filterKindGreater, id: "64"},
			},
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 0, SkipFalse: 3},
			bpf.LoadExtension{Num: bpf.ExtLen},
			bpf.JumpIf{Cond: bpf.JumpGreaterOrEqual, Val: 64, SkipTrue: 0, SkipFalse: 1},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
		{"not (ip or arp)", composite{
			negator: true,
			filters: []Filter{
				primitive{protocol: filterProtocolIP},
				primitive{protocol: filterProtocolArp},
			},
		}, nil, []bpf.Instruction{
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 3, SkipFalse: 0},
			bpf.LoadAbsolute{Off: 12, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x806, SkipTrue: 1, SkipFalse: 0},
			bpf.RetConstant{Val: 0xffff},
			bpf.RetConstant{Val: 0},
		}, ""},
	},
}
