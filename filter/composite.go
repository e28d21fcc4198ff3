package filter

import (
	"strings"

	"golang.org/x/net/bpf"
)

// composite implements Filter, joining filters with all 'and' or all 'or'
type composite struct {
	filters []Filter
	and     bool
	negator bool
}

func (c composite) Compile(linkType uint32, snaplen int32) ([]bpf.Instruction, error) {
	return compileFilter(c, linkType, snaplen)
}

// emit each one in turn, joined with the 'and' or 'or'
//   - if 'and', then a failure of any one is straight to fail
//   - if 'or', then a success of any one is straight to success
func (c composite) emit(a *assembler, linkType uint32, onTrue, onFalse label) error {
	if c.negator {
		onTrue, onFalse = onFalse, onTrue
	}
	for i, f := range c.filters {
		if i == len(c.filters)-1 {
			return f.emit(a, linkType, onTrue, onFalse)
		}
		next := a.newLabel()
		var err error
		if c.and {
			err = f.emit(a, linkType, next, onFalse)
		} else {
			err = f.emit(a, linkType, onTrue, next)
		}
		if err != nil {
			return err
		}
		a.bind(next)
	}
	return nil
}

func (c composite) Equal(o Filter) bool {
	if o == nil {
		return false
	}
	oc, ok := o.(composite)
	if !ok {
		return false
	}
	if c.and != oc.and || c.negator != oc.negator || len(c.filters) != len(oc.filters) {
		return false
	}
	for i, f := range c.filters {
		if !f.Equal(oc.filters[i]) {
			return false
		}
	}
	return true
}

func (c composite) String() string {
	joiner := " or "
	if c.and {
		joiner = " and "
	}
	parts := make([]string, 0, len(c.filters))
	for _, f := range c.filters {
		parts = append(parts, f.String())
	}
	s := "(" + strings.Join(parts, joiner) + ")"
	if c.negator {
		return "not " + s
	}
	return s
}

// negate flip the sense of a filter
func negate(f Filter) Filter {
	switch v := f.(type) {
	case primitive:
		v.negator = !v.negator
		return v
	case composite:
		v.negator = !v.negator
		return v
	}
	return f
}
