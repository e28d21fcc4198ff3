package pcap

import (
	"errors"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/bpf"

	"github.com/packetcap/go-pcapfilter/filter"
)

const (
	modeBound   = "bound"
	modeUnbound = "unbound"
)

// Backend turns a filter expression into classic BPF for a link type and
// snapshot length
type Backend interface {
	Compile(expr string, linkType uint32, snaplen int32, optimize bool, netmask uint32) ([]bpf.RawInstruction, error)
	Version() string
}

// PureBackend compiles with the pure Go filter package. It never optimizes,
// and the netmask is unused since it has no "broadcast" primitive.
type PureBackend struct{}

func (PureBackend) Compile(expr string, linkType uint32, snaplen int32, _ bool, _ uint32) ([]bpf.RawInstruction, error) {
	insts, err := filter.Compile(expr, linkType, snaplen)
	if err != nil {
		return nil, err
	}
	return bpf.Assemble(insts)
}

func (PureBackend) Version() string {
	return "go-pcapfilter (pure Go)"
}

// LinkParams the link layer parameters a filter is compiled against
type LinkParams struct {
	LinkType uint32
	Snaplen  int32
	bound    bool
}

// BoundParams parameters of an open device
func BoundParams(dev Device) (LinkParams, error) {
	if dev == nil || !dev.IsOpen() {
		return LinkParams{}, ErrDeviceNotOpen
	}
	return LinkParams{LinkType: dev.LinkType(), Snaplen: dev.Snaplen(), bound: true}, nil
}

// UnboundParams synthetic parameters, for compiling with no device
func UnboundParams(linkType uint32, snaplen int32) LinkParams {
	return LinkParams{LinkType: linkType, Snaplen: snaplen}
}

// DefaultUnboundParams Ethernet with DefaultUnboundSnaplen
func DefaultUnboundParams() LinkParams {
	return UnboundParams(LinkTypeEthernet, DefaultUnboundSnaplen)
}

func (p LinkParams) mode() string {
	if p.bound {
		return modeBound
	}
	return modeUnbound
}

// Compiler produces Programs from a Backend
type Compiler struct {
	backend Backend
	metrics *Metrics
	live    atomic.Int64
	logger  *log.Entry
}

type CompilerOption func(*Compiler)

// WithBackend use b instead of the default backend
func WithBackend(b Backend) CompilerOption {
	return func(c *Compiler) {
		c.backend = b
	}
}

func WithMetrics(m *Metrics) CompilerOption {
	return func(c *Compiler) {
		c.metrics = m
	}
}

func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		backend: defaultBackend(),
		logger:  log.WithField("component", "compiler"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile expr against params. Always asks the backend to optimize, with a
// zero netmask. An empty expression matches every packet.
func (c *Compiler) Compile(expr string, params LinkParams) (*Program, error) {
	logger := c.logger.WithFields(log.Fields{
		"expression": expr,
		"linkType":   params.LinkType,
		"snaplen":    params.Snaplen,
		"mode":       params.mode(),
	})
	insts, err := c.backend.Compile(expr, params.LinkType, params.Snaplen, true, 0)
	if err == nil && len(insts) == 0 {
		err = errors.New("compiler returned an empty program")
	}
	c.metrics.compiled(params.mode(), err)
	if err != nil {
		logger.Debugf("compile failed: %v", err)
		return nil, newCompileError(expr, err)
	}
	logger.Debugf("compiled %d instructions", len(insts))

	c.live.Add(1)
	c.metrics.programCreated()
	return &Program{
		expr:  expr,
		insts: insts,
		onRelease: func() {
			c.live.Add(-1)
			c.metrics.programReleased()
		},
	}, nil
}

// LivePrograms number of programs from this compiler not yet released
func (c *Compiler) LivePrograms() int64 {
	return c.live.Load()
}

// Version identifies the backend, e.g. the libpcap version string
func (c *Compiler) Version() string {
	return c.backend.Version()
}

// LibraryVersion identifies the default backend
func LibraryVersion() string {
	return defaultBackend().Version()
}
