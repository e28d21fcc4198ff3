//go:build darwin || freebsd

package pcap

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/gopacket/gopacket"
	log "github.com/sirupsen/logrus"
)

const enable = 1

type Handle struct {
	context     context.Context
	close       sync.Once
	closed      atomic.Bool
	promiscuous bool
	timeout     time.Duration
	index       int
	snaplen     int32
	fd          int
	buf         []byte
	endian      binary.ByteOrder
	linkType    uint32
	// io is held for reading while the fds are in use, and for writing by
	// Close before they are closed
	io sync.RWMutex
	// wake interrupts a blocked poll on Close or context cancellation
	wake [2]int
	stop func() bool
}

type BpfProgram struct {
	Len    uint32
	Filter *bpf.RawInstruction
}

// ReadPacketData returns io.EOF once the handle is closed, which ends a
// gopacket.PacketSource
func (h *Handle) ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error) {
	h.io.RLock()
	defer h.io.RUnlock()
	if h.closed.Load() {
		return nil, ci, io.EOF
	}
	// must memset the buffer
	h.buf = make([]byte, len(h.buf))

	// pollfd to handle events, like idle timeout or a close
	pfd := []unix.PollFd{
		{Fd: int32(h.fd), Events: unix.POLLIN},
		{Fd: int32(h.wake[0]), Events: unix.POLLIN},
	}
	ms := -1
	if h.timeout > 0 {
		ms = int(h.timeout.Milliseconds())
	}
	n, err := unix.Poll(pfd, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, ci, context.DeadlineExceeded
		}
		return nil, ci, err
	}
	if n == 0 {
		return nil, ci, context.DeadlineExceeded
	}
	// closed, the wake pipe is readable
	if pfd[1].Revents&unix.POLLIN != 0 {
		return nil, ci, io.EOF
	}

	read, err := unix.Read(h.fd, h.buf)
	if err != nil {
		return nil, ci, fmt.Errorf("error reading: %v", err)
	}
	if read <= 0 {
		return nil, ci, fmt.Errorf("read no packets")
	}
	// separate the header and packet body
	hdr := unix.BpfHdr{}
	buf := bytes.NewBuffer(h.buf[:unix.SizeofBpfHdr])
	err = binary.Read(buf, h.endian, &hdr)
	if err != nil {
		return nil, ci, fmt.Errorf("error reading bpf header: %v", err)
	}
	ci = gopacket.CaptureInfo{
		Timestamp:      time.Now(),
		CaptureLength:  int(hdr.Caplen),
		Length:         int(hdr.Datalen),
		InterfaceIndex: h.index,
	}
	return h.buf[hdr.Hdrlen : uint32(hdr.Hdrlen)+hdr.Caplen], ci, nil
}

// Close close the bpf device and release resources. It wakes any blocked
// read and waits for it to return before the descriptors are closed.
// Close is idempotent, and uses sync.Once to ensure it only runs once.
func (h *Handle) Close() {
	h.close.Do(func() {
		if h.stop != nil {
			h.stop()
		}
		h.closed.Store(true)
		_, _ = unix.Write(h.wake[1], []byte{1})

		h.io.Lock()
		defer h.io.Unlock()
		_ = unix.Close(h.fd)
		_ = unix.Close(h.wake[0])
		_ = unix.Close(h.wake[1])
	})
}

// SetBPF install the program on the bpf device with BIOCSETF, replacing
// any filter already set
func (h *Handle) SetBPF(insts []bpf.RawInstruction) error {
	h.io.RLock()
	defer h.io.RUnlock()
	if h.closed.Load() {
		return ErrDeviceNotOpen
	}
	if len(insts) == 0 {
		return errors.New("empty filter program")
	}
	prog := BpfProgram{
		Len:    uint32(len(insts)),
		Filter: &insts[0],
	}
	if err := ioctlPtr(h.fd, unix.BIOCSETF, unsafe.Pointer(&prog)); err != nil {
		return fmt.Errorf("unable to set filter: %v", err)
	}

	return nil
}

func openLive(ctx context.Context, iface string, snaplen int32, promiscuous bool, timeout time.Duration) (handle *Handle, _ error) {
	var (
		fd  = -1
		err error
	)
	logger := log.WithFields(log.Fields{
		"iface":       iface,
		"snaplen":     snaplen,
		"promiscuous": promiscuous,
		"timeout":     timeout,
	})
	logger.Debug("started")
	h := &Handle{
		context: ctx,
		snaplen: snaplen,
		timeout: timeout,
	}
	// we need to know our endianness
	endianness, err := getEndianness()
	if err != nil {
		return nil, err
	}
	h.endian = endianness

	// open the bpf device
	for i := 0; i < 255; i++ {
		dev := fmt.Sprintf("/dev/bpf%d", i)
		fd, err = unix.Open(dev, unix.O_RDWR, 0000)
		if fd > -1 {
			break
		}
		if err != nil && err == unix.EBUSY {
			continue
		}
		return nil, fmt.Errorf("error opening device %s: %v", dev, err)
	}
	if fd <= -1 {
		return nil, errors.New("failed to get valid bpf device")
	}
	h.fd = fd

	if err := h.configure(iface, promiscuous); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Pipe(h.wake[:]); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}
	for _, p := range h.wake {
		unix.CloseOnExec(p)
		_ = unix.SetNonblock(p, true)
	}
	h.stop = context.AfterFunc(ctx, h.Close)
	logger.Debug("opened")
	return h, nil
}

// configure set the bpf device options
func (h *Handle) configure(iface string, promiscuous bool) error {
	fd := h.fd
	if err := SetBpfInterface(fd, iface); err != nil {
		return fmt.Errorf("failed to set the BPF interface: %v", err)
	}
	if err := SetBpfHeadercmpl(fd, enable); err != nil {
		return fmt.Errorf("failed to set the BPF header complete option: %v", err)
	}
	if err := SetBpfMonitor(fd, enable); err != nil {
		return fmt.Errorf("failed to set the BPF monitor option: %v", err)
	}
	if err := SetBpfImmediate(fd, enable); err != nil {
		return fmt.Errorf("failed to set the BPF immediate return option: %v", err)
	}
	if promiscuous {
		if err := ioctlPtr(fd, unix.BIOCPROMISC, nil); err != nil {
			return fmt.Errorf("failed to set promiscuous for %s: %v", iface, err)
		}
		h.promiscuous = true
	}
	size, err := BpfBuflen(fd)
	if err != nil {
		return fmt.Errorf("failed to read buffer length: %v", err)
	}
	h.buf = make([]byte, size)

	linkType, err := getLinkType(fd)
	if err != nil {
		return fmt.Errorf("failed to get link type: %v", err)
	}
	h.linkType = linkType
	return nil
}

// because they deprecated all of the below from "syscall" and redirected to "golang.org/x/net/bpf" but did not
// create a replacement. Sigh.

type ivalue struct {
	name  [unix.IFNAMSIZ]byte
	value int16
}

func SetBpfInterface(fd int, name string) error {
	var iv ivalue
	copy(iv.name[:], []byte(name))
	return ioctlPtr(fd, unix.BIOCSETIF, unsafe.Pointer(&iv))
}

func SetBpfHeadercmpl(fd, m int) error {
	return unix.IoctlSetPointerInt(fd, unix.BIOCSHDRCMPLT, m)
}

func SetBpfImmediate(fd, m int) error {
	return unix.IoctlSetPointerInt(fd, unix.BIOCIMMEDIATE, m)
}

func SetBpfMonitor(fd, m int) error {
	return unix.IoctlSetPointerInt(fd, unix.BIOCSSEESENT, m)
}
func BpfBuflen(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.BIOCGBLEN)
}
func ioctlPtr(fd, arg int, valPtr unsafe.Pointer) error {
	//nolint:staticcheck // unix.SYS_IOCTL is deprecated, but golang does not provide a better alternative
	// as of this writing for passing pointers
	_, _, errno := unix.RawSyscall(unix.SYS_IOCTL, uintptr(fd), uintptr(arg), uintptr(valPtr))
	if errno != 0 {
		return fmt.Errorf("error: %d", errno)
	}
	return nil
}
func getLinkType(fd int) (uint32, error) {
	linkType, err := unix.IoctlGetInt(fd, unix.BIOCGDLT)
	if err != nil {
		return 0xffffffff, fmt.Errorf("failed to get link type: %v", err)
	}
	return uint32(linkType), nil
}
