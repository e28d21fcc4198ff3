package filter

import (
	"errors"
	"fmt"

	"golang.org/x/net/bpf"
)

// maxInstructions the largest program the kernel accepts, BPF_MAXINSNS
const maxInstructions = 4096

var errBackwardJump = errors.New("internal error: backward jump")

// label a position in the program that jumps can target before it is known
type label int

type asmInstruction struct {
	inst bpf.Instruction
	// jump instructions are resolved in assemble()
	jump    bool
	always  bool
	cond    bpf.JumpTest
	val     uint32
	onTrue  label
	onFalse label
}

// assembler collects instructions with symbolic jump targets. Classic BPF
// only jumps forward, by a skip count relative to the next instruction, so
// the skips are calculated once every label is bound.
type assembler struct {
	insts  []asmInstruction
	labels []int
}

func (a *assembler) newLabel() label {
	a.labels = append(a.labels, -1)
	return label(len(a.labels) - 1)
}

// bind the label to the next instruction to be emitted
func (a *assembler) bind(l label) {
	a.labels[l] = len(a.insts)
}

func (a *assembler) emit(inst ...bpf.Instruction) {
	for _, i := range inst {
		a.insts = append(a.insts, asmInstruction{inst: i})
	}
}

func (a *assembler) jumpIf(cond bpf.JumpTest, val uint32, onTrue, onFalse label) {
	a.insts = append(a.insts, asmInstruction{jump: true, cond: cond, val: val, onTrue: onTrue, onFalse: onFalse})
}

// goTo unconditional jump
func (a *assembler) goTo(to label) {
	a.insts = append(a.insts, asmInstruction{jump: true, always: true, onTrue: to})
}

// jumpIn jump to onTrue if the accumulator equals any of vals, else to onFalse
func (a *assembler) jumpIn(vals []uint32, onTrue, onFalse label) {
	for i, v := range vals {
		if i == len(vals)-1 {
			a.jumpIf(bpf.JumpEqual, v, onTrue, onFalse)
			return
		}
		next := a.newLabel()
		a.jumpIf(bpf.JumpEqual, v, onTrue, next)
		a.bind(next)
	}
}

// assemble resolve every label. Conditional jumps only reach 255
// instructions ahead, so a branch that is further away goes through an
// unconditional jump placed right after the conditional. Adding those moves
// later instructions, so the layout is repeated until nothing changes.
func (a *assembler) assemble() ([]bpf.Instruction, error) {
	for l, target := range a.labels {
		if target < 0 {
			return nil, fmt.Errorf("internal error: unbound label %d", l)
		}
	}
	longTrue := make([]bool, len(a.insts))
	longFalse := make([]bool, len(a.insts))
	pos := make([]int, len(a.insts)+1)
	for {
		for i := range a.insts {
			size := 1
			if longTrue[i] {
				size++
			}
			if longFalse[i] {
				size++
			}
			pos[i+1] = pos[i] + size
		}
		changed := false
		for i, in := range a.insts {
			if !in.jump || in.always {
				continue
			}
			if !longTrue[i] && a.distance(pos, i, in.onTrue) > 0xff {
				longTrue[i] = true
				changed = true
			}
			if !longFalse[i] && a.distance(pos, i, in.onFalse) > 0xff {
				longFalse[i] = true
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	if n := pos[len(a.insts)]; n > maxInstructions {
		return nil, fmt.Errorf("expression too complex: %d instructions", n)
	}

	out := make([]bpf.Instruction, 0, pos[len(a.insts)])
	for i, in := range a.insts {
		if !in.jump {
			out = append(out, in.inst)
			continue
		}
		if in.always {
			d := a.distance(pos, i, in.onTrue)
			if d < 0 {
				return nil, errBackwardJump
			}
			out = append(out, bpf.Jump{Skip: uint32(d)})
			continue
		}
		var trampolines []bpf.Instruction
		st, sf := a.distance(pos, i, in.onTrue), a.distance(pos, i, in.onFalse)
		if st < 0 || sf < 0 {
			return nil, errBackwardJump
		}
		if longTrue[i] {
			// the trampoline sits at pos[i]+1
			trampolines = append(trampolines, bpf.Jump{Skip: uint32(st - 1)})
			st = 0
		}
		if longFalse[i] {
			at := len(trampolines)
			trampolines = append(trampolines, bpf.Jump{Skip: uint32(sf - at - 1)})
			sf = at
		}
		out = append(out, bpf.JumpIf{Cond: in.cond, Val: in.val, SkipTrue: uint8(st), SkipFalse: uint8(sf)})
		out = append(out, trampolines...)
	}
	return out, nil
}

// distance the skip from the jump at instruction i to the label
func (a *assembler) distance(pos []int, i int, to label) int {
	return pos[a.labels[to]] - pos[i] - 1
}
