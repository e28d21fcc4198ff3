// Package pcap compiles tcpdump filter expressions into classic BPF and
// applies them, either by installing them on a live capture handle or by
// matching captured packets offline.
//
// A Compiler turns an expression into a Program, using the pure Go compiler
// in the filter package or, when built with the "libpcap" tag and cgo,
// libpcap itself. LiveFilterController installs programs onto a Device, and
// OfflineEvaluator verifies expressions and matches packets against the last
// expression it compiled.
package pcap

/*
 MacOS uses a /dev/bpf* device instead of a raw socket. Some good examples:
  https://github.com/c-bata/xpcap/blob/master/sniffer.c#L50
  https://gist.github.com/2opremio/6fda363ab384b0d85347956fb79a3927
 Linux uses a raw socket.
  For syscall-based capture: see http://www.microhowto.info/howto/capture_ethernet_frames_using_an_af_packet_socket_in_c.html
*/
