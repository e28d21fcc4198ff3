package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/bpf"
)

const resolveTimeout = 5 * time.Second

var (
	errParse = errors.New("parse error")

	// resolver used for host names; replaced in tests
	resolver = &net.Resolver{}
)

// primitive a single tcpdump primitive, e.g. "src host 10.0.0.1" or "tcp port 22"
type primitive struct {
	kind        filterKind
	direction   filterDirection
	protocol    filterProtocol
	subProtocol filterSubProtocol
	negator     bool
	id          string
	// proto raw argument of "proto" when it is not a known name
	proto string
}

func (p primitive) Compile(linkType uint32, snaplen int32) ([]bpf.Instruction, error) {
	return compileFilter(p, linkType, snaplen)
}

func (p primitive) Equal(o Filter) bool {
	op, ok := o.(primitive)
	if !ok {
		return false
	}
	return p == op
}

func (p primitive) String() string {
	var parts []string
	if p.negator {
		parts = append(parts, "not")
	}
	if p.kind == filterKindUnset && p.protocol != filterProtocolUnset && p.subProtocol != filterSubProtocolUnset {
		return strings.Join(append(parts, protocolName(p.protocol), "proto", p.subProtocolName()), " ")
	}
	if p.subProtocol != filterSubProtocolUnset {
		parts = append(parts, p.subProtocolName())
	}
	if p.protocol != filterProtocolUnset {
		parts = append(parts, protocolName(p.protocol))
	}
	if p.direction != filterDirectionUnset {
		parts = append(parts, directionName(p.direction))
	}
	if p.kind != filterKindUnset {
		parts = append(parts, kindName(p.kind))
	}
	if p.id != "" {
		parts = append(parts, p.id)
	}
	return strings.Join(parts, " ")
}

func (p primitive) subProtocolName() string {
	if p.subProtocol == filterSubProtocolUnknown {
		return p.proto
	}
	for k, v := range subProtocols {
		if v == p.subProtocol {
			return k
		}
	}
	return ""
}

func (p primitive) emit(a *assembler, linkType uint32, onTrue, onFalse label) error {
	if p.negator {
		onTrue, onFalse = onFalse, onTrue
	}
	switch p.kind {
	case filterKindUnset:
		return p.emitProtocol(a, linkType, onTrue, onFalse)
	case filterKindHost:
		return p.emitHost(a, linkType, onTrue, onFalse)
	case filterKindNet:
		return p.emitNet(a, linkType, onTrue, onFalse)
	case filterKindPort, filterKindPortRange:
		return p.emitPort(a, linkType, onTrue, onFalse)
	case filterKindGreater, filterKindLess:
		return p.emitLength(a, onTrue, onFalse)
	}
	return errParse
}

// emitProtocol bare protocols, e.g. "ip6", "udp", "ether proto arp", "ip proto 47"
func (p primitive) emitProtocol(a *assembler, linkType uint32, onTrue, onFalse label) error {
	if p.id != "" {
		return errParse
	}
	if p.subProtocol == filterSubProtocolUnset {
		etherType, ok := protocolEtherType(p.protocol)
		if !ok {
			return errParse
		}
		return emitLinkProtocol(a, linkType, etherType, onTrue, onFalse)
	}

	switch p.protocol {
	case filterProtocolEther:
		etherType, err := p.etherProtoNumber()
		if err != nil {
			return err
		}
		return emitLinkProtocol(a, linkType, etherType, onTrue, onFalse)
	case filterProtocolIP, filterProtocolIP6:
		proto, err := p.ipProtoNumber()
		if err != nil {
			return err
		}
		return emitTransport(a, linkType, proto, p.protocol == filterProtocolIP, p.protocol == filterProtocolIP6, onTrue, onFalse)
	case filterProtocolUnset:
		// link layer protocols given as "proto ip"
		if etherType, ok := etherTypes[p.subProtocol]; ok {
			return emitLinkProtocol(a, linkType, etherType, onTrue, onFalse)
		}
		proto, err := p.ipProtoNumber()
		if err != nil {
			return err
		}
		switch p.subProtocol {
		case filterSubProtocolIcmp, filterSubProtocolIgmp:
			return emitTransport(a, linkType, proto, true, false, onTrue, onFalse)
		case filterSubProtocolIcmp6:
			return emitTransport(a, linkType, proto, false, true, onTrue, onFalse)
		}
		return emitTransport(a, linkType, proto, true, true, onTrue, onFalse)
	}
	return fmt.Errorf("%s proto not supported", protocolName(p.protocol))
}

func (p primitive) etherProtoNumber() (uint32, error) {
	if p.subProtocol == filterSubProtocolUnknown {
		n, err := strconv.ParseUint(p.proto, 0, 16)
		if err != nil {
			return 0, fmt.Errorf("unknown ether proto: %s", p.proto)
		}
		return uint32(n), nil
	}
	etherType, ok := etherTypes[p.subProtocol]
	if !ok {
		return 0, fmt.Errorf("unknown ether proto: %s", p.subProtocolName())
	}
	return etherType, nil
}

func (p primitive) ipProtoNumber() (uint32, error) {
	if p.subProtocol == filterSubProtocolUnknown {
		n, err := strconv.ParseUint(p.proto, 0, 8)
		if err != nil {
			return 0, fmt.Errorf("unknown ip proto: %s", p.proto)
		}
		return uint32(n), nil
	}
	proto, ok := ipProtocols[p.subProtocol]
	if !ok {
		return 0, fmt.Errorf("unknown ip proto: %s", p.subProtocolName())
	}
	return proto, nil
}

// emitTransport check the IP protocol number, IPv6 first then IPv4
func emitTransport(a *assembler, linkType, proto uint32, ip4, ip6 bool, onTrue, onFalse label) error {
	if ip6 {
		next := onFalse
		if ip4 {
			next = a.newLabel()
		}
		body := a.newLabel()
		if err := emitLinkProtocol(a, linkType, etherTypeIPv6, body, next); err != nil {
			return err
		}
		a.bind(body)
		emitIPv6Protocol(a, linkType, []uint32{proto}, true, onTrue, next)
		if next != onFalse {
			a.bind(next)
		}
	}
	if ip4 {
		body := a.newLabel()
		if err := emitLinkProtocol(a, linkType, etherTypeIPv4, body, onFalse); err != nil {
			return err
		}
		a.bind(body)
		emitIPv4Protocol(a, linkType, []uint32{proto}, onTrue, onFalse)
	}
	return nil
}

func (p primitive) emitHost(a *assembler, linkType uint32, onTrue, onFalse label) error {
	if p.subProtocol != filterSubProtocolUnset {
		return fmt.Errorf("'%s' modifier applied to host", p.subProtocolName())
	}
	if p.id == "" {
		return errors.New("blank host")
	}
	if p.protocol == filterProtocolEther {
		if linkType != LinkTypeEthernet {
			return fmt.Errorf("ether host not supported on link type %d", linkType)
		}
		hwAddr, err := net.ParseMAC(p.id)
		if err != nil || len(hwAddr) != 6 {
			return fmt.Errorf("invalid ethernet address: %s", p.id)
		}
		return emitEtherAddress(a, p.direction, hwAddr, onTrue, onFalse)
	}
	if strings.Contains(p.id, "/") {
		return fmt.Errorf("invalid host address with CIDR: %s", p.id)
	}

	var addrs []net.IP
	if addr := net.ParseIP(p.id); addr != nil {
		if _, err := p.addressEtherTypes(linkType, addr); err != nil {
			return err
		}
		addrs = []net.IP{addr}
	} else {
		resolved, err := lookupHost(p.id)
		if err != nil {
			return err
		}
		// a name may resolve to families this primitive does not cover
		for _, addr := range resolved {
			if _, err := p.addressEtherTypes(linkType, addr); err == nil {
				addrs = append(addrs, addr)
			}
		}
		if len(addrs) == 0 {
			return fmt.Errorf("unknown host: %s", p.id)
		}
	}

	for i, addr := range addrs {
		next := onFalse
		if i < len(addrs)-1 {
			next = a.newLabel()
		}
		families, _ := p.addressEtherTypes(linkType, addr)
		mask := ip6MaskFull
		if addr.To4() != nil {
			mask = ip4MaskFull
		}
		if err := emitAddresses(a, linkType, families, p.direction, addr, mask, onTrue, next); err != nil {
			return err
		}
		if next != onFalse {
			a.bind(next)
		}
	}
	return nil
}

func (p primitive) emitNet(a *assembler, linkType uint32, onTrue, onFalse label) error {
	if p.subProtocol != filterSubProtocolUnset {
		return fmt.Errorf("'%s' modifier applied to net", p.subProtocolName())
	}
	if p.id == "" {
		return errors.New("blank net")
	}
	addr, network, err := getNetAndMask(p.id)
	if err != nil {
		return err
	}
	if !addr.Equal(network.IP) {
		return fmt.Errorf("non-network bits set in \"%s\"", p.id)
	}
	families, err := p.addressEtherTypes(linkType, network.IP)
	if err != nil {
		return err
	}
	return emitAddresses(a, linkType, families, p.direction, network.IP, network.Mask, onTrue, onFalse)
}

// addressEtherTypes which link layer protocols carry addresses of this family
func (p primitive) addressEtherTypes(linkType uint32, addr net.IP) ([]uint32, error) {
	if addr.To4() == nil {
		switch p.protocol {
		case filterProtocolUnset, filterProtocolIP6:
			return []uint32{etherTypeIPv6}, nil
		}
		return nil, fmt.Errorf("%s with IPv6 address: %s", protocolName(p.protocol), p.id)
	}
	switch p.protocol {
	case filterProtocolUnset:
		if linkType == LinkTypeNull {
			return []uint32{etherTypeIPv4}, nil
		}
		return []uint32{etherTypeIPv4, etherTypeArp, etherTypeRarp}, nil
	case filterProtocolIP:
		return []uint32{etherTypeIPv4}, nil
	case filterProtocolArp:
		return []uint32{etherTypeArp}, nil
	case filterProtocolRarp:
		return []uint32{etherTypeRarp}, nil
	}
	return nil, fmt.Errorf("%s with IPv4 address: %s", protocolName(p.protocol), p.id)
}

func (p primitive) emitPort(a *assembler, linkType uint32, onTrue, onFalse label) error {
	var protos []uint32
	switch p.subProtocol {
	case filterSubProtocolUnset:
		protos = []uint32{ipProtocolSctp, ipProtocolTCP, ipProtocolUDP}
	case filterSubProtocolTCP, filterSubProtocolUDP, filterSubProtocolSctp:
		protos = []uint32{ipProtocols[p.subProtocol]}
	default:
		return fmt.Errorf("'%s' modifier applied to %s", p.subProtocolName(), kindName(p.kind))
	}
	var ip4, ip6 bool
	switch p.protocol {
	case filterProtocolUnset:
		ip4, ip6 = true, true
	case filterProtocolIP:
		ip4 = true
	case filterProtocolIP6:
		ip6 = true
	default:
		return fmt.Errorf("'%s' modifier applied to %s", protocolName(p.protocol), kindName(p.kind))
	}

	var compare func(onTrue, onFalse label)
	if p.kind == filterKindPort {
		port, err := parsePort(p.id)
		if err != nil {
			return err
		}
		compare = func(t, f label) {
			a.jumpIf(bpf.JumpEqual, port, t, f)
		}
	} else {
		low, high, err := parsePortRange(p.id)
		if err != nil {
			return err
		}
		compare = func(t, f label) {
			next := a.newLabel()
			a.jumpIf(bpf.JumpGreaterOrEqual, low, next, f)
			a.bind(next)
			a.jumpIf(bpf.JumpGreaterThan, high, f, t)
		}
	}
	return emitPorts(a, linkType, ip4, ip6, protos, p.direction, compare, onTrue, onFalse)
}

// emitLength "greater n" is len >= n, "less n" is len <= n
func (p primitive) emitLength(a *assembler, onTrue, onFalse label) error {
	if p.protocol != filterProtocolUnset || p.subProtocol != filterSubProtocolUnset || p.direction != filterDirectionUnset {
		return errParse
	}
	n, err := strconv.ParseUint(p.id, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid length: %s", p.id)
	}
	a.emit(bpf.LoadExtension{Num: bpf.ExtLen})
	if p.kind == filterKindGreater {
		a.jumpIf(bpf.JumpGreaterOrEqual, uint32(n), onTrue, onFalse)
		return nil
	}
	a.jumpIf(bpf.JumpGreaterThan, uint32(n), onFalse, onTrue)
	return nil
}

func parsePort(id string) (uint32, error) {
	if port, ok := services[id]; ok {
		return port, nil
	}
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n > maxPort {
		return 0, fmt.Errorf("invalid port: %s", id)
	}
	return uint32(n), nil
}

func parsePortRange(id string) (uint32, uint32, error) {
	parts := strings.SplitN(id, "-", 2)
	if len(parts) != 2 {
		// service names may contain a dash themselves, e.g. ftp-data
		return 0, 0, fmt.Errorf("invalid port range: %s", id)
	}
	low, err := parsePort(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid port range: %s", id)
	}
	high, err := parsePort(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid port range: %s", id)
	}
	if low > high {
		low, high = high, low
	}
	return low, high, nil
}

// lookupHost resolve a host name, IPv4 addresses first
func lookupHost(name string) ([]net.IP, error) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	addrs, err := resolver.LookupIPAddr(ctx, name)
	if err != nil || len(addrs) == 0 {
		return nil, fmt.Errorf("unknown host: %s", name)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		ips = append(ips, addr.IP)
	}
	sort.Slice(ips, func(i, j int) bool {
		i4, j4 := ips[i].To4() != nil, ips[j].To4() != nil
		if i4 != j4 {
			return i4
		}
		return bytes.Compare(ips[i].To16(), ips[j].To16()) < 0
	})
	return ips, nil
}

func protocolEtherType(p filterProtocol) (uint32, bool) {
	switch p {
	case filterProtocolIP:
		return etherTypeIPv4, true
	case filterProtocolIP6:
		return etherTypeIPv6, true
	case filterProtocolArp:
		return etherTypeArp, true
	case filterProtocolRarp:
		return etherTypeRarp, true
	}
	return 0, false
}

func protocolName(p filterProtocol) string {
	for k, v := range protocols {
		if v == p {
			return k
		}
	}
	return ""
}

func directionName(d filterDirection) string {
	for k, v := range directions {
		if v == d {
			return k
		}
	}
	return ""
}

func kindName(k filterKind) string {
	for name, v := range kinds {
		if v == k {
			return name
		}
	}
	return ""
}

// setPrimitiveDefaults set defaults on expressions
func setPrimitiveDefaults(p, lastPrimitive *primitive) {
	if p.direction == filterDirectionUnset && p.protocol == filterProtocolUnset && p.kind == filterKindUnset && p.subProtocol == filterSubProtocolUnset {
		if p.id == "" {
			return
		}
		if lastPrimitive == nil {
			// a lone id is a host, e.g. "10.0.0.1"
			p.kind = filterKindHost
			p.direction = filterDirectionSrcOrDst
			return
		}

		// we only copy over the previous ones if everything else is identical, per the manpage:
		/*
			To save typing, identical qualifier lists can be omitted. E.g., `tcp dst port ftp or ftp-data or domain' is exactly the same as `tcp dst port ftp or tcp dst port ftp-data or tcp dst port domain'
		*/
		p.direction = lastPrimitive.direction
		p.kind = lastPrimitive.kind
		p.protocol = lastPrimitive.protocol
		p.subProtocol = lastPrimitive.subProtocol
		p.proto = lastPrimitive.proto
	}
	if p.kind == filterKindGreater || p.kind == filterKindLess {
		return
	}
	if p.kind == filterKindUnset && p.id == "" {
		// bare protocol
		return
	}
	if p.kind == filterKindUnset && (p.direction != filterDirectionUnset || p.protocol != filterProtocolUnset) {
		p.kind = filterKindHost
	}
	if p.direction == filterDirectionUnset {
		p.direction = filterDirectionSrcOrDst
	}
}
