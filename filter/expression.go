package filter

import (
	"errors"
	"fmt"
	"strings"
)

// joiners map and/or words to whether they are 'and'
var joiners = map[string]bool{
	"and": true,
	"&&":  true,
	"or":  false,
	"||":  false,
}

type Expression struct {
	raw     string
	split   []string
	current int
	// last primitive parsed, for qualifier inheritance
	last *primitive
}

// NewExpression returns nil for a blank expression
func NewExpression(s string) *Expression {
	split := tokenize(s)
	if len(split) == 0 {
		return nil
	}
	return &Expression{
		raw:   s,
		split: split,
	}
}

// Compile parse the expression into a Filter. 'and' and 'or' have equal
// precedence and associate left to right; 'not' binds tightest.
func (e *Expression) Compile() (Filter, error) {
	e.current = 0
	e.last = nil
	f, err := e.parseJoined()
	if err != nil {
		return nil, err
	}
	if e.HasNext() {
		return nil, fmt.Errorf("syntax error: unexpected '%s'", e.split[e.current])
	}
	return f, nil
}

// HasNext if there are any more words to parse
func (e *Expression) HasNext() bool {
	return len(e.split) > e.current
}

func (e *Expression) String() string {
	return e.raw
}

func (e *Expression) parseJoined() (Filter, error) {
	left, err := e.parseUnary()
	if err != nil {
		return nil, err
	}
	var combo *composite
	for e.HasNext() {
		and, ok := joiners[e.split[e.current]]
		if !ok {
			break
		}
		e.current++
		right, err := e.parseUnary()
		if err != nil {
			return nil, err
		}
		if combo != nil && combo.and == and {
			combo.filters = append(combo.filters, right)
			continue
		}
		// switching between and/or: everything so far becomes the left side
		if combo != nil {
			left = *combo
		}
		combo = &composite{and: and, filters: []Filter{left, right}}
	}
	if combo != nil {
		return *combo, nil
	}
	return left, nil
}

func (e *Expression) parseUnary() (Filter, error) {
	if !e.HasNext() {
		return nil, errors.New("syntax error: unexpected end of expression")
	}
	switch e.split[e.current] {
	case "not", "!":
		e.current++
		f, err := e.parseUnary()
		if err != nil {
			return nil, err
		}
		return negate(f), nil
	case "(":
		e.current++
		f, err := e.parseJoined()
		if err != nil {
			return nil, err
		}
		if !e.HasNext() || e.split[e.current] != ")" {
			return nil, errors.New("syntax error: missing ')'")
		}
		e.current++
		return f, nil
	}
	return e.parsePrimitive()
}

// parsePrimitive read qualifiers and an id up to the next joiner or parenthesis
func (e *Expression) parsePrimitive() (Filter, error) {
	start := e.current
	p := &primitive{
		direction: filterDirectionUnset,
		kind:      filterKindUnset,
		protocol:  filterProtocolUnset,
	}

words:
	for e.HasNext() {
		word := e.split[e.current]
		if _, ok := joiners[word]; ok {
			break
		}
		switch word {
		case "(", ")", "not", "!":
			break words
		}
		// nothing may follow the id
		if p.id != "" {
			return nil, fmt.Errorf("syntax error: unexpected '%s'", word)
		}
		switch word {
		case "proto":
			// the next word is the sub-protocol
			if len(e.split) <= e.current+1 {
				return nil, errors.New("syntax error: proto without protocol")
			}
			// we will accept the protocol as "name" or "\name", because some get escaped
			protoName := strings.TrimLeft(e.split[e.current+1], "\\")
			if sub, ok := subProtocols[protoName]; ok {
				p.subProtocol = sub
			} else {
				p.subProtocol = filterSubProtocolUnknown
				p.proto = protoName
			}
			// we got the next word, so indicate not to parse it
			e.current += 2
			continue words
		case "src":
			// handle the "src or dst"/"src and dst" case
			if len(e.split) > e.current+2 && (e.split[e.current+1] == "or" || e.split[e.current+1] == "and") && e.split[e.current+2] == "dst" {
				word = strings.Join(e.split[e.current:e.current+3], " ")
				e.current += 2
			}
		}
		// it must be a primitive word, so find it
		if kind, ok := kinds[word]; ok && p.kind == filterKindUnset {
			p.kind = kind
		} else if direction, ok := directions[word]; ok && p.direction == filterDirectionUnset {
			p.direction = direction
		} else if protocol, ok := protocols[word]; ok && p.protocol == filterProtocolUnset {
			p.protocol = protocol
		} else if subprotocol, ok := subProtocols[word]; ok && p.subProtocol == filterSubProtocolUnset {
			p.subProtocol = subprotocol
		} else if isQualifier(word) {
			return nil, fmt.Errorf("syntax error: repeated qualifier '%s'", word)
		} else {
			p.id = word
		}
		e.current++
	}

	if e.current == start {
		if e.HasNext() {
			return nil, fmt.Errorf("syntax error: unexpected '%s'", e.split[e.current])
		}
		return nil, errors.New("syntax error: unexpected end of expression")
	}
	setPrimitiveDefaults(p, e.last)
	e.last = p
	return *p, nil
}

func isQualifier(word string) bool {
	_, kind := kinds[word]
	_, direction := directions[word]
	_, protocol := protocols[word]
	_, sub := subProtocols[word]
	return kind || direction || protocol || sub
}

// tokenize split on whitespace, with parentheses, '!', '&&' and '||' as
// words of their own
func tokenize(s string) []string {
	var (
		tokens []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		case c == '(' || c == ')':
			flush()
			tokens = append(tokens, string(c))
		case c == '!' && cur.Len() == 0:
			tokens = append(tokens, "!")
		case (c == '&' || c == '|') && i+1 < len(s) && s[i+1] == c:
			flush()
			tokens = append(tokens, s[i:i+2])
			i++
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}
