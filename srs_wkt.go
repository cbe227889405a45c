package geoconform

import (
	"strconv"
	"strings"
)

// wktNode is one KEYWORD[arg, ...] node of WKT1 CRS text.
type wktNode struct {
	keyword string // upper case
	args    []wktArg
}

// wktArg is a quoted string, a number, a bare word or a child node.
type wktArg struct {
	kind tokenKind
	text string
	num  float64
	node *wktNode
}

// parseWKTTree parses CRS text into a node tree. Nesting is handled with an
// explicit stack.
func parseWKTTree(text string) (*wktNode, error) {
	lex := newWKTLexer(text)
	kw, err := lex.expect(tokWord)
	if err != nil {
		return nil, err
	}
	if _, err := lex.expect(tokOpen); err != nil {
		return nil, err
	}
	root := &wktNode{keyword: strings.ToUpper(kw.text)}
	stack := []*wktNode{root}
	wantArg := true

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		t, err := lex.next()
		if err != nil {
			return nil, err
		}
		if !wantArg {
			switch t.kind {
			case tokComma:
				wantArg = true
			case tokClose:
				stack = stack[:len(stack)-1]
			default:
				return nil, lex.errorf(t.pos, "expected ',' or closing bracket, found %s %q", t.kind, t.text)
			}
			continue
		}

		switch t.kind {
		case tokString:
			cur.args = append(cur.args, wktArg{kind: tokString, text: t.text})
		case tokNumber:
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, lex.errorf(t.pos, "bad number %q", t.text)
			}
			cur.args = append(cur.args, wktArg{kind: tokNumber, text: t.text, num: f})
		case tokWord:
			next, err := lex.peek()
			if err != nil {
				return nil, err
			}
			if next.kind != tokOpen {
				cur.args = append(cur.args, wktArg{kind: tokWord, text: t.text})
				break
			}
			lex.next()
			child := &wktNode{keyword: strings.ToUpper(t.text)}
			cur.args = append(cur.args, wktArg{node: child})
			stack = append(stack, child)
			continue // wantArg stays true
		case tokClose:
			if len(cur.args) != 0 {
				return nil, lex.errorf(t.pos, "expected value, found %q", t.text)
			}
			stack = stack[:len(stack)-1]
		default:
			return nil, lex.errorf(t.pos, "expected value, found %s %q", t.kind, t.text)
		}
		wantArg = false
	}

	if t, err := lex.next(); err != nil {
		return nil, err
	} else if t.kind != tokEOF {
		return nil, lex.errorf(t.pos, "trailing %s %q", t.kind, t.text)
	}
	return root, nil
}

// str returns the i-th argument as a string.
func (n *wktNode) str(i int) string {
	if i < len(n.args) && n.args[i].node == nil {
		return n.args[i].text
	}
	return ""
}

// num returns the i-th argument as a number.
func (n *wktNode) num(i int) (float64, bool) {
	if i < len(n.args) && n.args[i].kind == tokNumber && n.args[i].node == nil {
		return n.args[i].num, true
	}
	return 0, false
}

// numbers returns all numeric arguments in order.
func (n *wktNode) numbers() []float64 {
	var out []float64
	for _, a := range n.args {
		if a.node == nil && a.kind == tokNumber {
			out = append(out, a.num)
		}
	}
	return out
}

// child returns the first child node with one of the keywords.
func (n *wktNode) child(keywords ...string) *wktNode {
	for _, a := range n.args {
		if a.node == nil {
			continue
		}
		for _, kw := range keywords {
			if a.node.keyword == kw {
				return a.node
			}
		}
	}
	return nil
}

// children returns all child nodes with the keyword, in order.
func (n *wktNode) children(keyword string) []*wktNode {
	var out []*wktNode
	for _, a := range n.args {
		if a.node != nil && a.node.keyword == keyword {
			out = append(out, a.node)
		}
	}
	return out
}

// wktWriter builds WKT1 text.
type wktWriter struct {
	b     strings.Builder
	first []bool
}

func (w *wktWriter) open(keyword string) {
	w.sep()
	w.b.WriteString(keyword)
	w.b.WriteByte('[')
	w.first = append(w.first, true)
}

func (w *wktWriter) close() {
	w.b.WriteByte(']')
	w.first = w.first[:len(w.first)-1]
}

func (w *wktWriter) sep() {
	if n := len(w.first); n > 0 {
		if !w.first[n-1] {
			w.b.WriteByte(',')
		}
		w.first[n-1] = false
	}
}

func (w *wktWriter) str(s string) {
	w.sep()
	w.b.WriteByte('"')
	w.b.WriteString(strings.ReplaceAll(s, `"`, `""`))
	w.b.WriteByte('"')
}

func (w *wktWriter) num(f float64) {
	w.sep()
	w.b.WriteString(formatOrdinate(f))
}

func (w *wktWriter) String() string { return w.b.String() }
