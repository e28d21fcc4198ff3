package pcap

import (
	"sync"
	"time"

	"github.com/gopacket/gopacket"
	log "github.com/sirupsen/logrus"
)

// RawPacket captured bytes with their timestamp
type RawPacket struct {
	Data      []byte
	Timestamp time.Time
}

// CaptureInfo the packet's length as both the captured and original length
func (r RawPacket) CaptureInfo() gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:     r.Timestamp,
		CaptureLength: len(r.Data),
		Length:        len(r.Data),
	}
}

// MatchProgram run an already compiled program over the packet
func MatchProgram(p *Program, pkt RawPacket) bool {
	if p.Released() {
		return false
	}
	return p.match(pkt.Data, pkt.CaptureInfo())
}

// OfflineEvaluator checks expressions and matches packets against them with
// no device. The last compiled expression is cached, so matching many
// packets against one expression compiles it once. Safe for concurrent use.
type OfflineEvaluator struct {
	compiler *Compiler
	params   LinkParams
	logger   *log.Entry

	mu sync.Mutex
	// cached is false until the first compile, so no expression, not even
	// "", matches an empty cache
	cached bool
	expr   string
	slot   programSlot
}

type EvaluatorOption func(*OfflineEvaluator)

// WithLinkParams compile against params instead of DefaultUnboundParams
func WithLinkParams(params LinkParams) EvaluatorOption {
	return func(e *OfflineEvaluator) {
		e.params = params
	}
}

func NewOfflineEvaluator(c *Compiler, opts ...EvaluatorOption) *OfflineEvaluator {
	e := &OfflineEvaluator{
		compiler: c,
		params:   DefaultUnboundParams(),
		logger:   log.WithField("component", "offline"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify whether expr compiles. The cache is not touched.
func (e *OfflineEvaluator) Verify(expr string) bool {
	p, err := e.compiler.Compile(expr, e.params)
	if err != nil {
		return false
	}
	p.Release()
	return true
}

// Matches whether pkt passes expr
func (e *OfflineEvaluator) Matches(expr string, pkt RawPacket) (bool, error) {
	return e.MatchesCaptured(expr, pkt.Data, pkt.CaptureInfo())
}

// MatchesCaptured whether a packet as read from a gopacket.PacketDataSource
// passes expr
func (e *OfflineEvaluator) MatchesCaptured(expr string, data []byte, ci gopacket.CaptureInfo) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.program(expr)
	if err != nil {
		return false, err
	}
	return p.match(data, ci), nil
}

// Close release the cached program
func (e *OfflineEvaluator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidate()
}

// program return the compiled program for expr, recompiling when it is not
// the cached expression. A failed compile leaves the cache empty.
// e.mu must be held.
func (e *OfflineEvaluator) program(expr string) (*Program, error) {
	if e.cached && e.expr == expr {
		e.compiler.metrics.cacheLookup(true)
		return e.slot.program, nil
	}
	e.compiler.metrics.cacheLookup(false)
	e.invalidate()

	p, err := e.compiler.Compile(expr, e.params)
	if err != nil {
		return nil, err
	}
	if err := p.prepare(); err != nil {
		p.Release()
		return nil, newCompileError(expr, err)
	}
	e.logger.WithField("expression", expr).Debug("cached new program")
	e.slot.set(p)
	e.expr = expr
	e.cached = true
	return p, nil
}

// invalidate e.mu must be held
func (e *OfflineEvaluator) invalidate() {
	e.slot.clear()
	e.expr = ""
	e.cached = false
}
