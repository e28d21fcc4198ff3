package filter

import (
	"golang.org/x/net/bpf"
)

// Filter constructed of a tcpdump filter expression
type Filter interface {
	// Compile the filter to classic BPF for the given link type. Accepted
	// packets return snaplen bytes.
	Compile(linkType uint32, snaplen int32) ([]bpf.Instruction, error)
	Equal(o Filter) bool
	String() string

	emit(a *assembler, linkType uint32, onTrue, onFalse label) error
}

// Compile take a filter string compatible with tcpdump at
// https://www.tcpdump.org/manpages/pcap-filter.7.html and return
// bpf instructions. An empty expression accepts every packet.
func Compile(expr string, linkType uint32, snaplen int32) ([]bpf.Instruction, error) {
	if err := checkLinkType(linkType); err != nil {
		return nil, err
	}
	e := NewExpression(expr)
	if e == nil {
		return []bpf.Instruction{returnKeep(snaplen)}, nil
	}
	f, err := e.Compile()
	if err != nil {
		return nil, err
	}
	return f.Compile(linkType, snaplen)
}

func compileFilter(f Filter, linkType uint32, snaplen int32) ([]bpf.Instruction, error) {
	if err := checkLinkType(linkType); err != nil {
		return nil, err
	}
	a := &assembler{}
	keep, drop := a.newLabel(), a.newLabel()
	if err := f.emit(a, linkType, keep, drop); err != nil {
		return nil, err
	}
	a.bind(keep)
	a.emit(returnKeep(snaplen))
	a.bind(drop)
	a.emit(returnDrop)
	return a.assemble()
}
