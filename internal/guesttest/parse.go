package guesttest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type kind uint8

const (
	kindInt kind = iota
	kindFloat
	kindBool
	kindString
	kindObject
	kindPanic
	kindNullSet
)

type field struct {
	key string
	val value
}

type value struct {
	str    string
	fields []field
	i      int64
	f      float64
	b      bool
	kind   kind
}

var errEnd = errors.New("Unexpected end of input.")

type parser struct {
	src string
	pos int
}

func parse(src string) (value, error) {
	trimmed := strings.TrimSpace(src)
	if msg, ok := strings.CutPrefix(trimmed, "panic "); ok {
		return value{kind: kindPanic, str: msg}, nil
	}
	if trimmed == "null.x = 1" {
		return value{kind: kindNullSet}, nil
	}

	p := &parser{src: src}
	v, err := p.expr()
	if err != nil {
		return value{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return value{}, p.unexpected()
	}
	return v, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) unexpected() error {
	if p.pos >= len(p.src) {
		return errEnd
	}
	r := []rune(p.src[p.pos:])[0]
	return fmt.Errorf("Unexpected token '%c'.", r)
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.unexpected()
	}
	p.pos++
	return nil
}

func (p *parser) expr() (value, error) {
	left, err := p.term()
	if err != nil {
		return value{}, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return value{}, err
		}
		if left, err = arith(op, left, right); err != nil {
			return value{}, err
		}
	}
}

func (p *parser) term() (value, error) {
	left, err := p.unary()
	if err != nil {
		return value{}, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.unary()
		if err != nil {
			return value{}, err
		}
		if left, err = arith(op, left, right); err != nil {
			return value{}, err
		}
	}
}

func (p *parser) unary() (value, error) {
	if p.peek() != '-' {
		return p.primary()
	}
	p.pos++
	v, err := p.unary()
	if err != nil {
		return value{}, err
	}
	switch v.kind {
	case kindInt:
		v.i = -v.i
	case kindFloat:
		v.f = -v.f
	default:
		return value{}, errors.New("Cannot negate a non-numeric value.")
	}
	return v, nil
}

func (p *parser) primary() (value, error) {
	c := p.peek()
	switch {
	case c == 0:
		return value{}, errEnd
	case c == '(':
		p.pos++
		v, err := p.expr()
		if err != nil {
			return value{}, err
		}
		return v, p.expect(')')
	case c == '{':
		return p.object()
	case c == '"':
		s, err := p.str()
		return value{kind: kindString, str: s}, err
	case c >= '0' && c <= '9':
		return p.number()
	case isIdentStart(c):
		switch id := p.ident(); id {
		case "true", "false":
			return value{kind: kindBool, b: id == "true"}, nil
		default:
			return value{}, fmt.Errorf("%s is not defined", id)
		}
	default:
		return value{}, p.unexpected()
	}
}

func (p *parser) number() (value, error) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		p.pos++
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		return value{kind: kindFloat, f: f}, err
	}
	i, err := strconv.ParseInt(p.src[start:p.pos], 10, 64)
	if err != nil {
		return value{}, fmt.Errorf("Invalid BigInt literal %s.", p.src[start:p.pos])
	}
	return value{kind: kindInt, i: i}, nil
}

func (p *parser) str() (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if p.pos >= len(p.src) {
				return "", errEnd
			}
			b.WriteByte(p.src[p.pos])
			p.pos++
		default:
			b.WriteByte(c)
		}
	}
	return "", errors.New("Unterminated string literal.")
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) && (isIdentStart(p.src[p.pos]) || (p.src[p.pos] >= '0' && p.src[p.pos] <= '9')) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) object() (value, error) {
	p.pos++ // {
	obj := value{kind: kindObject}
	if p.peek() == '}' {
		p.pos++
		return obj, nil
	}
	for {
		var key string
		switch c := p.peek(); {
		case c == '"':
			s, err := p.str()
			if err != nil {
				return value{}, err
			}
			key = s
		case isIdentStart(c):
			key = p.ident()
		default:
			return value{}, p.unexpected()
		}
		if err := p.expect(':'); err != nil {
			return value{}, err
		}
		v, err := p.expr()
		if err != nil {
			return value{}, err
		}
		obj.fields = append(obj.fields, field{key: key, val: v})

		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return obj, nil
		default:
			return value{}, p.unexpected()
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func arith(op byte, a, b value) (value, error) {
	if a.kind == kindString && b.kind == kindString && op == '+' {
		return value{kind: kindString, str: a.str + b.str}, nil
	}
	if a.kind != b.kind && (a.kind == kindInt || b.kind == kindInt) {
		return value{}, errors.New("Cannot mix BigInt and other types, use explicit conversions.")
	}
	switch a.kind {
	case kindInt:
		switch op {
		case '+':
			return value{kind: kindInt, i: a.i + b.i}, nil
		case '-':
			return value{kind: kindInt, i: a.i - b.i}, nil
		case '*':
			return value{kind: kindInt, i: a.i * b.i}, nil
		default:
			if b.i == 0 {
				return value{}, errors.New("Division by zero.")
			}
			return value{kind: kindInt, i: a.i / b.i}, nil
		}
	case kindFloat:
		if b.kind != kindFloat {
			break
		}
		switch op {
		case '+':
			return value{kind: kindFloat, f: a.f + b.f}, nil
		case '-':
			return value{kind: kindFloat, f: a.f - b.f}, nil
		case '*':
			return value{kind: kindFloat, f: a.f * b.f}, nil
		default:
			return value{kind: kindFloat, f: a.f / b.f}, nil
		}
	}
	return value{}, fmt.Errorf("Unsupported operand for '%c'.", op)
}
