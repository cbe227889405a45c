package geoconform

import (
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultGeometryTolerance is the tolerance OGR's test-suite applies
	// when comparing feature geometries with literal WKT.
	DefaultGeometryTolerance = 1e-4

	// ExactGeometryTolerance is used when an expectation names no
	// tolerance. It absorbs text round-trip noise only, and is the floor of
	// ToleranceFromWKT.
	ExactGeometryTolerance = 1e-9
)

// ParseWKT parses a geometry in well-known text. A Z tag or three-ordinate
// coordinates give a 3D geometry; M values are read and dropped.
func ParseWKT(text string) (*Geometry, error) {
	p := &geomParser{lex: newWKTLexer(text)}
	g, err := p.geometry()
	if err != nil {
		return nil, err
	}
	if t, err := p.lex.next(); err != nil {
		return nil, err
	} else if t.kind != tokEOF {
		return nil, p.lex.errorf(t.pos, "trailing %s %q", t.kind, t.text)
	}
	g.setZ(p.dim == 3)
	return g, nil
}

// MustParseWKT is like ParseWKT but panics on error.
func MustParseWKT(text string) *Geometry {
	g, err := ParseWKT(text)
	if err != nil {
		panic(err)
	}
	return g
}

// ToleranceFromWKT derives a comparison tolerance from the precision of a
// WKT literal: half a unit in the last decimal place of its least precise
// number, never below ExactGeometryTolerance. Expectations opt in to it;
// it is never applied by default.
func ToleranceFromWKT(text string) float64 {
	lex := newWKTLexer(text)
	digits := -1
	for {
		t, err := lex.next()
		if err != nil || t.kind == tokEOF {
			break
		}
		if t.kind != tokNumber {
			continue
		}
		if d := decimalDigits(t.text); digits < 0 || d < digits {
			digits = d
		}
	}
	if digits < 0 {
		return ExactGeometryTolerance
	}
	return math.Max(0.5*math.Pow(10, -float64(digits)), ExactGeometryTolerance)
}

type geomParser struct {
	lex *wktLexer
	dim int // 0 until the first coordinate, then 2 or 3
	m   bool
}

func (p *geomParser) geometry() (*Geometry, error) {
	t, err := p.lex.expect(tokWord)
	if err != nil {
		return nil, err
	}
	typ, suffix, ok := parseGeometryKeyword(t.text)
	if !ok {
		return nil, p.lex.errorf(t.pos, "unknown geometry type %q", t.text)
	}
	if suffix != "" {
		err = p.setDim(suffix, t.pos)
	} else {
		err = p.dimensionTag()
	}
	if err != nil {
		return nil, err
	}
	g := &Geometry{Type: typ}
	empty, err := p.empty()
	if err != nil || empty {
		return g, err
	}

	switch typ {
	case GeomPoint:
		g.Coords, err = p.coordList()
		if err == nil && len(g.Coords) != 1 {
			err = p.lex.errorf(t.pos, "point has %d coordinates", len(g.Coords))
		}
	case GeomLineString:
		g.Coords, err = p.coordList()
	case GeomPolygon:
		g.Parts, err = p.rings()
	case GeomMultiPoint:
		g.Parts, err = p.multiPoint()
	case GeomMultiLineString:
		g.Parts, err = p.members(func() (*Geometry, error) {
			ls := &Geometry{Type: GeomLineString}
			if empty, err := p.empty(); err != nil || empty {
				return ls, err
			}
			var err error
			ls.Coords, err = p.coordList()
			return ls, err
		})
	case GeomMultiPolygon:
		g.Parts, err = p.members(func() (*Geometry, error) {
			poly := &Geometry{Type: GeomPolygon}
			if empty, err := p.empty(); err != nil || empty {
				return poly, err
			}
			var err error
			poly.Parts, err = p.rings()
			return poly, err
		})
	case GeomCollection:
		g.Parts, err = p.members(p.geometry)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// dimensionTag consumes an optional Z, M or ZM tag.
func (p *geomParser) dimensionTag() error {
	t, err := p.lex.peek()
	if err != nil || t.kind != tokWord {
		return err
	}
	switch tag := strings.ToUpper(t.text); tag {
	case "Z", "M", "ZM":
		p.lex.next()
		return p.setDim(tag, t.pos)
	}
	return nil
}

func (p *geomParser) setDim(tag string, pos int) error {
	dim, m := 2, false
	switch tag {
	case "Z":
		dim = 3
	case "M":
		m = true
	case "ZM":
		dim, m = 3, true
	}
	if p.dim != 0 && p.dim != dim {
		return p.lex.errorf(pos, "mixed coordinate dimensions")
	}
	p.dim, p.m = dim, m
	return nil
}

// empty consumes EMPTY if it is next.
func (p *geomParser) empty() (bool, error) {
	t, err := p.lex.peek()
	if err != nil {
		return false, err
	}
	if t.kind == tokWord && strings.EqualFold(t.text, "EMPTY") {
		p.lex.next()
		return true, nil
	}
	return false, nil
}

// members parses "(" item {"," item} ")".
func (p *geomParser) members(item func() (*Geometry, error)) ([]*Geometry, error) {
	if _, err := p.lex.expect(tokOpen); err != nil {
		return nil, err
	}
	var parts []*Geometry
	for {
		g, err := item()
		if err != nil {
			return nil, err
		}
		parts = append(parts, g)
		t, err := p.lex.next()
		if err != nil {
			return nil, err
		}
		switch t.kind {
		case tokComma:
			continue
		case tokClose:
			return parts, nil
		}
		return nil, p.lex.errorf(t.pos, "expected ',' or ')', found %s %q", t.kind, t.text)
	}
}

func (p *geomParser) rings() ([]*Geometry, error) {
	return p.members(func() (*Geometry, error) {
		coords, err := p.coordList()
		return &Geometry{Type: GeomLinearRing, Coords: coords}, err
	})
}

// multiPoint accepts both "MULTIPOINT ((1 2),(3 4))" and "MULTIPOINT (1 2,3 4)".
func (p *geomParser) multiPoint() ([]*Geometry, error) {
	return p.members(func() (*Geometry, error) {
		pt := &Geometry{Type: GeomPoint}
		if empty, err := p.empty(); err != nil || empty {
			return pt, err
		}
		t, err := p.lex.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokOpen {
			coords, err := p.coordList()
			if err == nil && len(coords) != 1 {
				err = p.lex.errorf(t.pos, "point has %d coordinates", len(coords))
			}
			pt.Coords = coords
			return pt, err
		}
		c, err := p.coord()
		pt.Coords = []Coord{c}
		return pt, err
	})
}

// coordList parses "(" coord {"," coord} ")".
func (p *geomParser) coordList() ([]Coord, error) {
	if _, err := p.lex.expect(tokOpen); err != nil {
		return nil, err
	}
	var coords []Coord
	for {
		c, err := p.coord()
		if err != nil {
			return nil, err
		}
		coords = append(coords, c)
		t, err := p.lex.next()
		if err != nil {
			return nil, err
		}
		switch t.kind {
		case tokComma:
			continue
		case tokClose:
			return coords, nil
		}
		return nil, p.lex.errorf(t.pos, "expected ',' or ')', found %s %q", t.kind, t.text)
	}
}

func (p *geomParser) coord() (Coord, error) {
	var vals [4]float64
	n := 0
	start, _ := p.lex.peek()
	for n < len(vals) {
		t, err := p.lex.peek()
		if err != nil {
			return Coord{}, err
		}
		if t.kind != tokNumber && !(t.kind == tokWord && isSpecialFloat(t.text)) {
			break
		}
		if vals[n], err = p.lex.number(); err != nil {
			return Coord{}, err
		}
		n++
	}
	if n < 2 {
		return Coord{}, p.lex.errorf(start.pos, "coordinate needs at least 2 ordinates")
	}

	dim := n
	if p.m {
		dim-- // the last ordinate is M
	}
	if dim > 3 {
		dim = 3
	}
	if p.dim == 0 {
		p.dim = dim
	} else if p.dim != dim {
		return Coord{}, p.lex.errorf(start.pos, "mixed coordinate dimensions")
	}
	c := Coord{X: vals[0], Y: vals[1]}
	if dim == 3 {
		c.Z = vals[2]
	}
	return c, nil
}

// parseGeometryKeyword also accepts keywords with a dimension suffix such
// as "POINTZ", returning the suffix.
func parseGeometryKeyword(s string) (GeometryType, string, bool) {
	up := strings.ToUpper(s)
	if t, ok := geometryKeyword(up); ok {
		return t, "", true
	}
	for _, suffix := range []string{"ZM", "Z", "M"} {
		if base := strings.TrimSuffix(up, suffix); base != up {
			if t, ok := geometryKeyword(base); ok {
				return t, suffix, true
			}
		}
	}
	return GeomUnknown, "", false
}

func geometryKeyword(up string) (GeometryType, bool) {
	for i, name := range geometryTypeWKT {
		if name != "" && name == up {
			return GeometryType(i), true
		}
	}
	return GeomUnknown, false
}

// WKT formats g as well-known text with the shortest decimal representation
// that round-trips each ordinate.
func (g *Geometry) WKT() string {
	var b strings.Builder
	writeWKT(&b, g)
	return b.String()
}

func writeWKT(b *strings.Builder, g *Geometry) {
	b.WriteString(geometryTypeWKT[g.Type])
	if g.HasZ {
		b.WriteString(" Z")
	}
	if g.IsEmpty() {
		b.WriteString(" EMPTY")
		return
	}
	b.WriteByte(' ')
	writeWKTBody(b, g)
}

func writeWKTBody(b *strings.Builder, g *Geometry) {
	switch g.Type {
	case GeomPoint, GeomLineString, GeomLinearRing:
		writeCoords(b, g.Coords, g.HasZ)
		return
	case GeomCollection:
		b.WriteByte('(')
		for i, p := range g.Parts {
			if i > 0 {
				b.WriteByte(',')
			}
			writeWKT(b, p)
		}
		b.WriteByte(')')
		return
	}
	b.WriteByte('(')
	for i, p := range g.Parts {
		if i > 0 {
			b.WriteByte(',')
		}
		if p.IsEmpty() && p.Type != GeomLinearRing {
			b.WriteString("EMPTY")
			continue
		}
		writeWKTBody(b, p)
	}
	b.WriteByte(')')
}

func writeCoords(b *strings.Builder, coords []Coord, hasZ bool) {
	b.WriteByte('(')
	for i, c := range coords {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(formatOrdinate(c.X))
		b.WriteByte(' ')
		b.WriteString(formatOrdinate(c.Y))
		if hasZ {
			b.WriteByte(' ')
			b.WriteString(formatOrdinate(c.Z))
		}
	}
	b.WriteByte(')')
}

func formatOrdinate(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
