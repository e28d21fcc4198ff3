//go:build linux

package pcap

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopacket/gopacket"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/bpf"
	syscall "golang.org/x/sys/unix"
)

type Handle struct {
	context     context.Context
	close       sync.Once
	closed      atomic.Bool
	promiscuous bool
	timeout     time.Duration
	index       int
	snaplen     int32
	fd          int
	linkType    uint32
	// io is held for reading while the fds are in use, and for writing by
	// Close before they are closed
	io sync.RWMutex
	// wake interrupts a blocked poll on Close or context cancellation
	wake [2]int
	stop func() bool
}

// ReadPacketData returns io.EOF once the handle is closed, which ends a
// gopacket.PacketSource
func (h *Handle) ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error) {
	h.io.RLock()
	defer h.io.RUnlock()
	if h.closed.Load() {
		return nil, ci, io.EOF
	}
	pfd := []syscall.PollFd{
		{Fd: int32(h.fd), Events: syscall.POLLIN},
		{Fd: int32(h.wake[0]), Events: syscall.POLLIN},
	}
	ms := -1
	if h.timeout > 0 {
		ms = int(h.timeout.Milliseconds())
	}
	n, err := syscall.Poll(pfd, ms)
	if err != nil {
		if err == syscall.EINTR {
			return nil, ci, context.DeadlineExceeded
		}
		return nil, ci, fmt.Errorf("error polling socket: %v", err)
	}
	if n == 0 {
		return nil, ci, context.DeadlineExceeded
	}
	// closed, the wake pipe is readable
	if pfd[1].Revents&syscall.POLLIN != 0 {
		return nil, ci, io.EOF
	}

	b := make([]byte, h.snaplen)
	read, from, err := syscall.Recvfrom(h.fd, b, syscall.MSG_TRUNC)
	if err != nil {
		return nil, ci, fmt.Errorf("error reading: %v", err)
	}
	index := h.index
	if sall, ok := from.(*syscall.SockaddrLinklayer); ok {
		index = sall.Ifindex
	}
	// with MSG_TRUNC, read is the length on the wire
	captured := read
	if captured > len(b) {
		captured = len(b)
	}
	ci = gopacket.CaptureInfo{
		Timestamp:      time.Now(),
		CaptureLength:  captured,
		Length:         read,
		InterfaceIndex: index,
	}
	return b[:captured], ci, nil
}

// Close close sockets and release resources. It wakes any blocked read and
// waits for it to return before the descriptors are closed.
// Close is idempotent, and uses sync.Once to ensure it only runs once.
func (h *Handle) Close() {
	h.close.Do(func() {
		if h.stop != nil {
			h.stop()
		}
		h.closed.Store(true)
		_, _ = syscall.Write(h.wake[1], []byte{1})

		h.io.Lock()
		defer h.io.Unlock()
		_ = syscall.Close(h.fd)
		_ = syscall.Close(h.wake[0])
		_ = syscall.Close(h.wake[1])
	})
}

// SetBPF attach the program to the socket with SO_ATTACH_FILTER, replacing
// any filter already attached
func (h *Handle) SetBPF(insts []bpf.RawInstruction) error {
	h.io.RLock()
	defer h.io.RUnlock()
	if h.closed.Load() {
		return ErrDeviceNotOpen
	}
	if len(insts) == 0 {
		return fmt.Errorf("empty filter program")
	}
	filter := make([]syscall.SockFilter, len(insts))
	for i, inst := range insts {
		filter[i] = syscall.SockFilter{
			Code: inst.Op,
			Jt:   inst.Jt,
			Jf:   inst.Jf,
			K:    inst.K,
		}
	}
	prog := syscall.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
	if err := syscall.SetsockoptSockFprog(h.fd, syscall.SOL_SOCKET, syscall.SO_ATTACH_FILTER, &prog); err != nil {
		return fmt.Errorf("unable to set filter: %v", err)
	}
	return nil
}

func openLive(ctx context.Context, iface string, snaplen int32, promiscuous bool, timeout time.Duration) (handle *Handle, _ error) {
	logger := log.WithFields(log.Fields{
		"iface":       iface,
		"snaplen":     snaplen,
		"promiscuous": promiscuous,
		"timeout":     timeout,
	})
	logger.Debug("started")
	h := &Handle{
		context:  ctx,
		snaplen:  snaplen,
		timeout:  timeout,
		linkType: LinkTypeEthernet,
	}
	// set up the socket - remember to switch to network socket order for the protocol int
	fd, err := syscall.Socket(syscall.AF_PACKET, syscall.SOCK_RAW, int(htons(syscall.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("failed opening raw socket: %v", err)
	}
	h.fd = fd
	if iface != "" {
		// get our interface
		in, err := net.InterfaceByName(iface)
		if err != nil {
			_ = syscall.Close(fd)
			return nil, fmt.Errorf("unknown interface %s: %v", iface, err)
		}
		h.index = in.Index

		// create the sockaddr_ll
		sa := syscall.SockaddrLinklayer{
			Protocol: htons(syscall.ETH_P_ALL),
			Ifindex:  in.Index,
		}
		// bind to it
		if err = syscall.Bind(fd, &sa); err != nil {
			_ = syscall.Close(fd)
			return nil, fmt.Errorf("failed to bind to %s: %v", iface, err)
		}
		if promiscuous {
			h.promiscuous = true
			mreq := syscall.PacketMreq{
				Ifindex: int32(in.Index),
				Type:    syscall.PACKET_MR_PROMISC,
			}
			if err = syscall.SetsockoptPacketMreq(fd, syscall.SOL_PACKET, syscall.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
				_ = syscall.Close(fd)
				return nil, fmt.Errorf("failed to set promiscuous for %s: %v", iface, err)
			}
		}
	}
	if err := syscall.Pipe2(h.wake[:], syscall.O_NONBLOCK|syscall.O_CLOEXEC); err != nil {
		_ = syscall.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}
	h.stop = context.AfterFunc(ctx, h.Close)
	logger.Debug("opened")
	return h, nil
}
