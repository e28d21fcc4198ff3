//go:build libpcap && cgo

package pcap

import (
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// LibpcapBackend compiles with libpcap's pcap_compile. libpcap always
// optimizes here and does not take a netmask, so both are ignored.
type LibpcapBackend struct{}

func (LibpcapBackend) Compile(expr string, linkType uint32, snaplen int32, _ bool, _ uint32) ([]bpf.RawInstruction, error) {
	insts, err := pcap.CompileBPFFilter(layers.LinkType(linkType), int(snaplen), expr)
	if err != nil {
		return nil, err
	}
	raw := make([]bpf.RawInstruction, len(insts))
	for i, inst := range insts {
		raw[i] = bpf.RawInstruction{
			Op: inst.Code,
			Jt: inst.Jt,
			Jf: inst.Jf,
			K:  inst.K,
		}
	}
	return raw, nil
}

func (LibpcapBackend) Version() string {
	return pcap.Version()
}

func defaultBackend() Backend {
	return LibpcapBackend{}
}
