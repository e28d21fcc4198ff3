package pcap

import (
	"errors"

	"github.com/gopacket/gopacket"
	"golang.org/x/net/bpf"
)

// Program a compiled classic BPF filter. A Program belongs to whoever
// compiled it and is not safe for concurrent use.
type Program struct {
	expr      string
	insts     []bpf.RawInstruction
	vm        *bpf.VM
	released  bool
	onRelease func()
}

// Release free the program. Safe to call on a nil or already released program.
func (p *Program) Release() {
	if p == nil || p.released {
		return
	}
	p.released = true
	p.insts = nil
	p.vm = nil
	if p.onRelease != nil {
		p.onRelease()
		p.onRelease = nil
	}
}

// Released whether Release has been called
func (p *Program) Released() bool {
	return p == nil || p.released
}

// Instructions the raw instructions, as installed into the kernel
func (p *Program) Instructions() []bpf.RawInstruction {
	if p == nil {
		return nil
	}
	return p.insts
}

// Len number of instructions
func (p *Program) Len() int {
	return len(p.Instructions())
}

// Expression the filter expression the program was compiled from
func (p *Program) Expression() string {
	if p == nil {
		return ""
	}
	return p.expr
}

// prepare build the VM used for offline matching
func (p *Program) prepare() error {
	if p.Released() {
		return errors.New("program released")
	}
	if p.vm != nil {
		return nil
	}
	insts, ok := bpf.Disassemble(p.insts)
	if !ok {
		return errors.New("program contains instructions that cannot be evaluated")
	}
	vm, err := bpf.NewVM(insts)
	if err != nil {
		return err
	}
	p.vm = vm
	return nil
}

// match run the program over data. Only the captured bytes are visible to
// the program, so the "len" extension reports the captured length.
func (p *Program) match(data []byte, ci gopacket.CaptureInfo) bool {
	if err := p.prepare(); err != nil {
		return false
	}
	if ci.CaptureLength > 0 && ci.CaptureLength < len(data) {
		data = data[:ci.CaptureLength]
	}
	n, err := p.vm.Run(data)
	return err == nil && n > 0
}

// programSlot holds at most one program; putting in a new one releases the old
type programSlot struct {
	program *Program
}

func (s *programSlot) set(p *Program) {
	if s.program != nil && s.program != p {
		s.program.Release()
	}
	s.program = p
}

func (s *programSlot) clear() {
	s.set(nil)
}
