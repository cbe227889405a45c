package geoconform

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokNumber
	tokString
	tokOpen
	tokClose
	tokComma
)

var tokenNames = [...]string{"end of input", "word", "number", "string", "'('", "')'", "','"}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	text string
	pos  int
}

// wktLexer splits well-known text into tokens. Both bracket styles are
// accepted: "(" ")" and "[" "]". Quoted strings use doubled quotes as the
// escape, as in OGC WKT.
type wktLexer struct {
	src    string
	pos    int
	peeked *token
}

func newWKTLexer(src string) *wktLexer {
	return &wktLexer{src: src}
}

func (l *wktLexer) errorf(pos int, format string, args ...interface{}) error {
	return fmt.Errorf("%w: offset %d: %s", ErrInvalidWKT, pos, fmt.Sprintf(format, args...))
}

func (l *wktLexer) peek() (token, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}
	t, err := l.scan()
	if err != nil {
		return token{}, err
	}
	l.peeked = &t
	return t, nil
}

func (l *wktLexer) next() (token, error) {
	if l.peeked != nil {
		t := *l.peeked
		l.peeked = nil
		return t, nil
	}
	return l.scan()
}

func (l *wktLexer) expect(kind tokenKind) (token, error) {
	t, err := l.next()
	if err != nil {
		return t, err
	}
	if t.kind != kind {
		return t, l.errorf(t.pos, "expected %s, found %s %q", kind, t.kind, t.text)
	}
	return t, nil
}

// number reads a number token and parses it.
func (l *wktLexer) number() (float64, error) {
	t, err := l.next()
	if err != nil {
		return 0, err
	}
	if t.kind != tokNumber && !(t.kind == tokWord && isSpecialFloat(t.text)) {
		return 0, l.errorf(t.pos, "expected number, found %s %q", t.kind, t.text)
	}
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return 0, l.errorf(t.pos, "bad number %q", t.text)
	}
	return f, nil
}

func (l *wktLexer) scan() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '(' || c == '[':
		l.pos++
		return token{kind: tokOpen, text: string(c), pos: start}, nil
	case c == ')' || c == ']':
		l.pos++
		return token{kind: tokClose, text: string(c), pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case c == '"':
		return l.scanString()
	case isNumberStart(c):
		l.pos++
		for l.pos < len(l.src) && isNumberChar(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}, nil
	case isWordChar(c):
		for l.pos < len(l.src) && isWordChar(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokWord, text: l.src[start:l.pos], pos: start}, nil
	}
	return token{}, l.errorf(start, "unexpected character %q", c)
}

func (l *wktLexer) scanString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		if c != '"' {
			b.WriteByte(c)
			continue
		}
		if l.pos < len(l.src) && l.src[l.pos] == '"' {
			b.WriteByte('"')
			l.pos++
			continue
		}
		return token{kind: tokString, text: b.String(), pos: start}, nil
	}
	return token{}, l.errorf(start, "unterminated string")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isNumberStart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}

func isNumberChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E'
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

func isSpecialFloat(s string) bool {
	switch strings.ToLower(s) {
	case "nan", "inf", "infinity":
		return true
	}
	return false
}

// decimalDigits returns the number of digits after the decimal point in a
// numeric literal, adjusted for an exponent: "1.25" has 2, "1.5e-3" has 4,
// "12e2" has 0.
func decimalDigits(lit string) int {
	mant, exp := lit, 0
	if i := strings.IndexAny(lit, "eE"); i >= 0 {
		mant = lit[:i]
		e, err := strconv.Atoi(strings.TrimPrefix(lit[i+1:], "+"))
		if err == nil {
			exp = e
		}
	}
	d := 0
	if i := strings.IndexByte(mant, '.'); i >= 0 {
		d = len(mant) - i - 1
	}
	d -= exp
	if d < 0 {
		d = 0
	}
	return d
}
