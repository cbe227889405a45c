package geoconform

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// GeometryType tags a Geometry node.
type GeometryType int

const (
	GeomUnknown GeometryType = iota
	GeomPoint
	GeomLineString
	GeomPolygon
	GeomMultiPoint
	GeomMultiLineString
	GeomMultiPolygon
	GeomCollection
	GeomLinearRing // ring of a Polygon
)

var geometryTypeNames = [...]string{
	"Unknown", "Point", "LineString", "Polygon", "MultiPoint",
	"MultiLineString", "MultiPolygon", "GeometryCollection", "LinearRing",
}

var geometryTypeWKT = [...]string{
	"", "POINT", "LINESTRING", "POLYGON", "MULTIPOINT",
	"MULTILINESTRING", "MULTIPOLYGON", "GEOMETRYCOLLECTION", "",
}

func (t GeometryType) String() string {
	if t < 0 || int(t) >= len(geometryTypeNames) {
		return "GeometryType(" + strconv.Itoa(int(t)) + ")"
	}
	return geometryTypeNames[t]
}

// Coord is a coordinate tuple. Z is meaningful only when the owning
// geometry has HasZ set.
type Coord struct {
	X, Y, Z float64
}

// Geometry is a tagged tree. Points, line strings and rings hold Coords;
// polygons hold their rings in Parts (outer ring first); multi geometries
// and collections hold their members in Parts.
type Geometry struct {
	Type   GeometryType
	HasZ   bool
	Coords []Coord
	Parts  []*Geometry
}

// NewPoint returns a 2D point.
func NewPoint(x, y float64) *Geometry {
	return &Geometry{Type: GeomPoint, Coords: []Coord{{X: x, Y: y}}}
}

// NewPointZ returns a 3D point.
func NewPointZ(x, y, z float64) *Geometry {
	return &Geometry{Type: GeomPoint, HasZ: true, Coords: []Coord{{X: x, Y: y, Z: z}}}
}

// NewLineString returns a 2D line string.
func NewLineString(coords ...Coord) *Geometry {
	return &Geometry{Type: GeomLineString, Coords: coords}
}

// NewPolygon returns a 2D polygon from its rings, outer ring first.
func NewPolygon(rings ...[]Coord) *Geometry {
	g := &Geometry{Type: GeomPolygon, Parts: make([]*Geometry, 0, len(rings))}
	for _, r := range rings {
		g.Parts = append(g.Parts, &Geometry{Type: GeomLinearRing, Coords: r})
	}
	return g
}

// NewMulti returns a multi geometry or collection of typ holding parts.
func NewMulti(typ GeometryType, parts ...*Geometry) *Geometry {
	return &Geometry{Type: typ, Parts: parts}
}

// IsEmpty reports whether g has no coordinates.
func (g *Geometry) IsEmpty() bool {
	if g == nil {
		return true
	}
	if len(g.Coords) > 0 {
		return false
	}
	for _, p := range g.Parts {
		if !p.IsEmpty() {
			return false
		}
	}
	return true
}

// NumPoints returns the number of coordinates in g and its parts.
func (g *Geometry) NumPoints() int {
	if g == nil {
		return 0
	}
	n := len(g.Coords)
	for _, p := range g.Parts {
		n += p.NumPoints()
	}
	return n
}

// setZ marks g and all its parts as 3D or 2D.
func (g *Geometry) setZ(hasZ bool) {
	stack := []*Geometry{g}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n.HasZ = hasZ
		stack = append(stack, n.Parts...)
	}
}

func (g *Geometry) String() string {
	if g == nil {
		return "<nil>"
	}
	return g.WKT()
}

// FromOrb converts an orb geometry. orb.Ring and orb.Bound become polygons.
func FromOrb(og orb.Geometry) (*Geometry, error) {
	switch v := og.(type) {
	case nil:
		return nil, nil
	case orb.Point:
		return NewPoint(v[0], v[1]), nil
	case orb.MultiPoint:
		g := &Geometry{Type: GeomMultiPoint, Parts: make([]*Geometry, 0, len(v))}
		for _, p := range v {
			g.Parts = append(g.Parts, NewPoint(p[0], p[1]))
		}
		return g, nil
	case orb.LineString:
		return NewLineString(coordsFromOrb(v)...), nil
	case orb.MultiLineString:
		g := &Geometry{Type: GeomMultiLineString, Parts: make([]*Geometry, 0, len(v))}
		for _, ls := range v {
			g.Parts = append(g.Parts, NewLineString(coordsFromOrb(ls)...))
		}
		return g, nil
	case orb.Ring:
		return NewPolygon(coordsFromOrb(v)), nil
	case orb.Polygon:
		return polygonFromOrb(v), nil
	case orb.MultiPolygon:
		g := &Geometry{Type: GeomMultiPolygon, Parts: make([]*Geometry, 0, len(v))}
		for _, p := range v {
			g.Parts = append(g.Parts, polygonFromOrb(p))
		}
		return g, nil
	case orb.Collection:
		g := &Geometry{Type: GeomCollection, Parts: make([]*Geometry, 0, len(v))}
		for _, child := range v {
			c, err := FromOrb(child)
			if err != nil {
				return nil, err
			}
			g.Parts = append(g.Parts, c)
		}
		return g, nil
	case orb.Bound:
		return polygonFromOrb(v.ToPolygon()), nil
	}
	return nil, fmt.Errorf("geoconform: unsupported orb geometry %T", og)
}

func coordsFromOrb(pts []orb.Point) []Coord {
	coords := make([]Coord, len(pts))
	for i, p := range pts {
		coords[i] = Coord{X: p[0], Y: p[1]}
	}
	return coords
}

func polygonFromOrb(p orb.Polygon) *Geometry {
	rings := make([][]Coord, len(p))
	for i, r := range p {
		rings[i] = coordsFromOrb(r)
	}
	return NewPolygon(rings...)
}

// FromWKB decodes a 2D well-known binary geometry.
func FromWKB(b []byte) (*Geometry, error) {
	og, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("geoconform: decode wkb: %w", err)
	}
	return FromOrb(og)
}

// Bound returns the 2D envelope of g.
func (g *Geometry) Bound() orb.Bound {
	return g.ToOrb().Bound()
}

// Intersects reports whether the envelope of g intersects b. Nil and empty
// geometries intersect nothing.
func (g *Geometry) Intersects(b orb.Bound) bool {
	if g == nil || g.IsEmpty() {
		return false
	}
	return g.Bound().Intersects(b)
}

// ToOrb converts g to an orb geometry, dropping Z.
func (g *Geometry) ToOrb() orb.Geometry {
	if g == nil {
		return nil
	}
	switch g.Type {
	case GeomPoint:
		if len(g.Coords) == 0 {
			return orb.Point{}
		}
		return orb.Point{g.Coords[0].X, g.Coords[0].Y}
	case GeomLineString:
		return orb.LineString(pointsToOrb(g.Coords))
	case GeomLinearRing:
		return orb.Ring(pointsToOrb(g.Coords))
	case GeomPolygon:
		return polygonToOrb(g)
	case GeomMultiPoint:
		mp := make(orb.MultiPoint, 0, len(g.Parts))
		for _, p := range g.Parts {
			if len(p.Coords) > 0 {
				mp = append(mp, orb.Point{p.Coords[0].X, p.Coords[0].Y})
			}
		}
		return mp
	case GeomMultiLineString:
		mls := make(orb.MultiLineString, 0, len(g.Parts))
		for _, p := range g.Parts {
			mls = append(mls, orb.LineString(pointsToOrb(p.Coords)))
		}
		return mls
	case GeomMultiPolygon:
		mp := make(orb.MultiPolygon, 0, len(g.Parts))
		for _, p := range g.Parts {
			mp = append(mp, polygonToOrb(p))
		}
		return mp
	case GeomCollection:
		c := make(orb.Collection, 0, len(g.Parts))
		for _, p := range g.Parts {
			c = append(c, p.ToOrb())
		}
		return c
	}
	return nil
}

func pointsToOrb(coords []Coord) []orb.Point {
	pts := make([]orb.Point, len(coords))
	for i, c := range coords {
		pts[i] = orb.Point{c.X, c.Y}
	}
	return pts
}

func polygonToOrb(g *Geometry) orb.Polygon {
	p := make(orb.Polygon, 0, len(g.Parts))
	for _, r := range g.Parts {
		p = append(p, orb.Ring(pointsToOrb(r.Coords)))
	}
	return p
}
