package pcap

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"github.com/gopacket/gopacket"
	"golang.org/x/net/bpf"
)

// Device a capture session that filters can be installed on
type Device interface {
	IsOpen() bool
	// LinkType compliant with pcap-linktype(7)
	LinkType() uint32
	Snaplen() int32
	// SetBPF install the program, replacing any filter already installed
	SetBPF(insts []bpf.RawInstruction) error
}

// Packet a single packet returned by a listen call
type Packet struct {
	B     []byte
	Info  gopacket.CaptureInfo
	Error error
}

// defaultController used by Handle.SetBPFFilter
var defaultController = NewLiveFilterController(NewCompiler())

// getEndianness discover the endianness of our current system
func getEndianness() (binary.ByteOrder, error) {
	buf := [2]byte{}
	*(*uint16)(unsafe.Pointer(&buf[0])) = uint16(0xABCD)

	switch buf {
	case [2]byte{0xCD, 0xAB}:
		return binary.LittleEndian, nil
	case [2]byte{0xAB, 0xCD}:
		return binary.BigEndian, nil
	default:
		return nil, errors.New("could not determine native endianness")
	}
}

func htons(in uint16) uint16 {
	return (in<<8)&0xff00 | in>>8
}
