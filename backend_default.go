//go:build !(libpcap && cgo)

package pcap

func defaultBackend() Backend {
	return PureBackend{}
}
