package filter

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/net/bpf"
)

const (
	// Link layer header sizes
	LinkTypeNull     uint32 = 0x0  // BSD loopback - see constants.LinkTypeNull
	LinkTypeEthernet uint32 = 0x01 // Ethernet - see constants.LinkTypeEthernet

	// defaultKeep returned for accepted packets when no snapshot length is known
	defaultKeep uint32 = 0x40000
)

var (
	ip4MaskFull = net.CIDRMask(32, 32)   //[]byte{0xff, 0xff, 0xff, 0xff}
	ip6MaskFull = net.CIDRMask(128, 128) //[]byte{0xff, 0xff, 0xff, 0xff,0xff, 0xff, 0xff, 0xff,0xff, 0xff, 0xff, 0xff,0xff, 0xff, 0xff, 0xff}
	returnDrop  = bpf.RetConstant{Val: 0}
)

// returnKeep accept the packet, up to snaplen bytes of it
func returnKeep(snaplen int32) bpf.Instruction {
	if snaplen <= 0 {
		return bpf.RetConstant{Val: defaultKeep}
	}
	return bpf.RetConstant{Val: uint32(snaplen)}
}

func checkLinkType(linkType uint32) error {
	switch linkType {
	case LinkTypeNull, LinkTypeEthernet:
		return nil
	}
	return fmt.Errorf("unsupported link type: %d", linkType)
}

// linkTypeOffset returns the link layer header size for a given link type
func linkTypeOffset(linkType uint32) uint32 {
	if linkType == LinkTypeNull {
		return 4 // BSD loopback header
	}
	return 14 // Ethernet header (default)
}

func loadEtherKind(linkType uint32) bpf.Instruction {
	// For BSD loopback, the protocol family is at offset 0 (not 12 like Ethernet EtherType)
	if linkType == LinkTypeNull {
		return bpf.LoadAbsolute{Off: 0, Size: lengthWord} // 4-byte protocol family
	}
	return bpf.LoadAbsolute{Off: 12, Size: lengthHalf} // EtherType at offset 12
}

// linkProtocolValues what the link layer header carries for the given EtherType
func linkProtocolValues(linkType, etherType uint32) ([]uint32, error) {
	if linkType == LinkTypeEthernet {
		return []uint32{etherType}, nil
	}
	switch etherType {
	case etherTypeIPv4:
		return []uint32{afInet, afInetSwapped}, nil
	case etherTypeIPv6:
		return afInet6, nil
	}
	return nil, fmt.Errorf("protocol 0x%x not supported on link type %d", etherType, linkType)
}

// emitLinkProtocol jump to onTrue if the link layer carries etherType
func emitLinkProtocol(a *assembler, linkType, etherType uint32, onTrue, onFalse label) error {
	vals, err := linkProtocolValues(linkType, etherType)
	if err != nil {
		return err
	}
	a.emit(loadEtherKind(linkType))
	a.jumpIn(vals, onTrue, onFalse)
	return nil
}

func loadIPv4Protocol(linkType uint32) bpf.Instruction {
	return bpf.LoadAbsolute{Off: linkTypeOffset(linkType) + 9, Size: lengthByte}
}

func loadIPv6Protocol(linkType uint32) bpf.Instruction {
	return bpf.LoadAbsolute{Off: linkTypeOffset(linkType) + 6, Size: lengthByte}
}

func loadIPv6ContinuationProtocol(linkType uint32) bpf.Instruction {
	return bpf.LoadAbsolute{Off: linkTypeOffset(linkType) + 40, Size: lengthByte}
}

// emitIPv4Protocol assumes the link layer already matched IPv4
func emitIPv4Protocol(a *assembler, linkType uint32, protos []uint32, onTrue, onFalse label) {
	a.emit(loadIPv4Protocol(linkType))
	a.jumpIn(protos, onTrue, onFalse)
}

// emitIPv6Protocol assumes the link layer already matched IPv6. When fragments
// is set, a fragment header directly after the fixed header is looked through.
func emitIPv6Protocol(a *assembler, linkType uint32, protos []uint32, fragments bool, onTrue, onFalse label) {
	a.emit(loadIPv6Protocol(linkType))
	if !fragments {
		a.jumpIn(protos, onTrue, onFalse)
		return
	}
	notDirect, continuation := a.newLabel(), a.newLabel()
	a.jumpIn(protos, onTrue, notDirect)
	a.bind(notDirect)
	a.jumpIf(bpf.JumpEqual, ip6ContinuationPacket, continuation, onFalse)
	a.bind(continuation)
	a.emit(loadIPv6ContinuationProtocol(linkType))
	a.jumpIn(protos, onTrue, onFalse)
}

// emitDirection combine source and destination checks. check is called with
// src set for the source side and must end in jumps to onTrue or onFalse.
func emitDirection(a *assembler, direction filterDirection, check func(src bool, onTrue, onFalse label) error, onTrue, onFalse label) error {
	switch direction {
	case filterDirectionSrc:
		return check(true, onTrue, onFalse)
	case filterDirectionDst:
		return check(false, onTrue, onFalse)
	case filterDirectionSrcOrDst:
		next := a.newLabel()
		if err := check(true, onTrue, next); err != nil {
			return err
		}
		a.bind(next)
		return check(false, onTrue, onFalse)
	case filterDirectionSrcAndDst:
		next := a.newLabel()
		if err := check(true, next, onFalse); err != nil {
			return err
		}
		a.bind(next)
		return check(false, onTrue, onFalse)
	}
	return fmt.Errorf("direction %s not supported for this link type", directionName(direction))
}

// emitAddressWords compare an IPv4 or IPv6 address at offset, 4 bytes at a
// time, under the mask. Words fully outside the mask are not loaded.
func emitAddressWords(a *assembler, offset uint32, addr []byte, mask net.IPMask, onTrue, onFalse label) {
	ones, _ := mask.Size()
	words := (ones + bitsPerWord - 1) / bitsPerWord
	if words == 0 {
		// 0.0.0.0/0 and ::/0 match every address
		a.goTo(onTrue)
		return
	}
	for i := 0; i < words; i++ {
		a.emit(bpf.LoadAbsolute{Off: offset + uint32(i*4), Size: lengthWord})
		m := binary.BigEndian.Uint32(mask[i*4 : i*4+4])
		if m != 0xffffffff {
			a.emit(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: m})
		}
		val := binary.BigEndian.Uint32(addr[i*4:i*4+4]) & m
		if i == words-1 {
			a.jumpIf(bpf.JumpEqual, val, onTrue, onFalse)
			continue
		}
		next := a.newLabel()
		a.jumpIf(bpf.JumpEqual, val, next, onFalse)
		a.bind(next)
	}
}

// ipv4AddressOffsets source and destination address offsets for IPv4, ARP and RARP
func ipv4AddressOffsets(linkType, etherType uint32) (src, dst uint32) {
	off := linkTypeOffset(linkType)
	if etherType == etherTypeArp || etherType == etherTypeRarp {
		return off + 14, off + 24
	}
	return off + 12, off + 16
}

func ipv6AddressOffsets(linkType uint32) (src, dst uint32) {
	off := linkTypeOffset(linkType)
	// IPv6 source address starts at offset 8 within the IP header, destination at 24
	return off + 8, off + 24
}

// emitAddresses check addr/mask for every protocol in families, trying
// each in turn
func emitAddresses(a *assembler, linkType uint32, families []uint32, direction filterDirection, addr net.IP, mask net.IPMask, onTrue, onFalse label) error {
	for i, etherType := range families {
		next := onFalse
		if i < len(families)-1 {
			next = a.newLabel()
		}
		body := a.newLabel()
		if err := emitLinkProtocol(a, linkType, etherType, body, next); err != nil {
			return err
		}
		a.bind(body)

		var src, dst uint32
		raw := addr.To4()
		if etherType == etherTypeIPv6 {
			src, dst = ipv6AddressOffsets(linkType)
			raw = addr.To16()
		} else {
			src, dst = ipv4AddressOffsets(linkType, etherType)
		}
		err := emitDirection(a, direction, func(isSrc bool, t, f label) error {
			off := dst
			if isSrc {
				off = src
			}
			emitAddressWords(a, off, raw, mask, t, f)
			return nil
		}, onTrue, next)
		if err != nil {
			return err
		}
		if next != onFalse {
			a.bind(next)
		}
	}
	return nil
}

// emitEtherAddress check a MAC address in the Ethernet header
func emitEtherAddress(a *assembler, direction filterDirection, hwAddr net.HardwareAddr, onTrue, onFalse label) error {
	// need last 4 bytes and first 2 bytes separately
	lastFour := binary.BigEndian.Uint32(hwAddr[2:6])
	firstTwo := uint32(binary.BigEndian.Uint16(hwAddr[0:2]))
	return emitDirection(a, direction, func(src bool, t, f label) error {
		var start uint32
		if src {
			start = 6
		}
		next := a.newLabel()
		a.emit(bpf.LoadAbsolute{Off: start + 2, Size: lengthWord})
		a.jumpIf(bpf.JumpEqual, lastFour, next, f)
		a.bind(next)
		a.emit(bpf.LoadAbsolute{Off: start, Size: lengthHalf})
		a.jumpIf(bpf.JumpEqual, firstTwo, t, f)
		return nil
	}, onTrue, onFalse)
}

// emitPorts check transport ports for IPv6 and/or IPv4. compare is called
// with the port in the accumulator.
func emitPorts(a *assembler, linkType uint32, ip4, ip6 bool, protos []uint32, direction filterDirection, compare func(onTrue, onFalse label), onTrue, onFalse label) error {
	off := linkTypeOffset(linkType)
	check := func(load func(src bool) bpf.Instruction) func(bool, label, label) error {
		return func(src bool, t, f label) error {
			a.emit(load(src))
			compare(t, f)
			return nil
		}
	}

	if ip6 {
		next := onFalse
		if ip4 {
			next = a.newLabel()
		}
		proto, ports := a.newLabel(), a.newLabel()
		if err := emitLinkProtocol(a, linkType, etherTypeIPv6, proto, next); err != nil {
			return err
		}
		a.bind(proto)
		emitIPv6Protocol(a, linkType, protos, false, ports, next)
		a.bind(ports)
		err := emitDirection(a, direction, check(func(src bool) bpf.Instruction {
			if src {
				return bpf.LoadAbsolute{Off: off + 40, Size: lengthHalf}
			}
			return bpf.LoadAbsolute{Off: off + 42, Size: lengthHalf}
		}), onTrue, next)
		if err != nil {
			return err
		}
		if next != onFalse {
			a.bind(next)
		}
	}
	if ip4 {
		proto, ports, header := a.newLabel(), a.newLabel(), a.newLabel()
		if err := emitLinkProtocol(a, linkType, etherTypeIPv4, proto, onFalse); err != nil {
			return err
		}
		a.bind(proto)
		emitIPv4Protocol(a, linkType, protos, ports, onFalse)
		a.bind(ports)
		// flags+fragment offset, since only the first fragment has an L4 header
		a.emit(bpf.LoadAbsolute{Off: off + 6, Size: lengthHalf})
		a.jumpIf(bpf.JumpBitsSet, jumpMask, onFalse, header)
		a.bind(header)
		// calculate size of IP header (starting from link layer size)
		a.emit(bpf.LoadMemShift{Off: off})
		return emitDirection(a, direction, check(func(src bool) bpf.Instruction {
			if src {
				return bpf.LoadIndirect{Off: off, Size: lengthHalf}
			}
			return bpf.LoadIndirect{Off: off + 2, Size: lengthHalf}
		}), onTrue, onFalse)
	}
	return nil
}

// getNetAndMask get the address and the network with mask for an IP address.
// If it is *not* CIDR, will return full mask, i.e. 0xffffffff
func getNetAndMask(id string) (net.IP, *net.IPNet, error) {
	if addr := net.ParseIP(id); addr != nil {
		mask := ip6MaskFull
		if addr.To4() != nil {
			mask = ip4MaskFull
		}
		return addr, &net.IPNet{IP: addr, Mask: mask}, nil
	}
	addr, network, err := net.ParseCIDR(id)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid net: %s", id)
	}
	return addr, network, nil
}
