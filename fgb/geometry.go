package fgb

import (
	"fmt"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/tingold/geoconform"
)

// geometryTypeToFGB converts a geometry tag to its FlatGeobuf GeometryType.
func geometryTypeToFGB(t geoconform.GeometryType) flattypes.GeometryType {
	switch t {
	case geoconform.GeomPoint:
		return flattypes.GeometryTypePoint
	case geoconform.GeomMultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case geoconform.GeomLineString:
		return flattypes.GeometryTypeLineString
	case geoconform.GeomMultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case geoconform.GeomPolygon, geoconform.GeomLinearRing:
		return flattypes.GeometryTypePolygon
	case geoconform.GeomMultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	case geoconform.GeomCollection:
		return flattypes.GeometryTypeGeometryCollection
	default:
		return flattypes.GeometryTypeUnknown
	}
}

// layerGeometryType returns the common type of the non-nil geometries, or
// Unknown when they differ.
func layerGeometryType(geoms []*geoconform.Geometry) flattypes.GeometryType {
	typ := flattypes.GeometryTypeUnknown
	first := true
	for _, g := range geoms {
		if g == nil {
			continue
		}
		t := geometryTypeToFGB(g.Type)
		if first {
			typ, first = t, false
			continue
		}
		if t != typ {
			return flattypes.GeometryTypeUnknown
		}
	}
	return typ
}

// geometryToFGB converts g to a FlatGeobuf writer.Geometry. Only XY
// ordinates are written.
func geometryToFGB(g *geoconform.Geometry, builder *flatbuffers.Builder) (*writer.Geometry, error) {
	if g == nil {
		return nil, ErrNilGeometry
	}
	if g.HasZ {
		return nil, fmt.Errorf("%w: %s Z", ErrUnsupportedType, g.Type)
	}

	fg := writer.NewGeometry(builder)
	fg.SetType(geometryTypeToFGB(g.Type))

	switch g.Type {
	case geoconform.GeomPoint, geoconform.GeomLineString:
		fg.SetXY(coordsToXY(g.Coords))

	case geoconform.GeomLinearRing:
		fg.SetXY(coordsToXY(g.Coords))
		fg.SetEnds([]uint32{uint32(len(g.Coords))})

	case geoconform.GeomMultiPoint:
		xy := make([]float64, 0, len(g.Parts)*2)
		for _, p := range g.Parts {
			if len(p.Coords) > 0 {
				xy = append(xy, p.Coords[0].X, p.Coords[0].Y)
			}
		}
		fg.SetXY(xy)

	case geoconform.GeomPolygon, geoconform.GeomMultiLineString:
		xy, ends := partsToXYEnds(g.Parts)
		fg.SetXY(xy)
		fg.SetEnds(ends)

	case geoconform.GeomMultiPolygon, geoconform.GeomCollection:
		parts := make([]writer.Geometry, 0, len(g.Parts))
		for _, child := range g.Parts {
			pg, err := geometryToFGB(child, builder)
			if err != nil {
				return nil, err
			}
			parts = append(parts, *pg)
		}
		fg.SetParts(parts)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, g.Type)
	}

	return fg, nil
}

func coordsToXY(coords []geoconform.Coord) []float64 {
	xy := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		xy = append(xy, c.X, c.Y)
	}
	return xy
}

// partsToXYEnds flattens rings or line strings into one coordinate array
// and the cumulative end of each part.
func partsToXYEnds(parts []*geoconform.Geometry) ([]float64, []uint32) {
	total := 0
	for _, p := range parts {
		total += len(p.Coords)
	}

	xy := make([]float64, 0, total*2)
	ends := make([]uint32, 0, len(parts))

	cumulative := uint32(0)
	for _, p := range parts {
		for _, c := range p.Coords {
			xy = append(xy, c.X, c.Y)
		}
		cumulative += uint32(len(p.Coords))
		ends = append(ends, cumulative)
	}

	return xy, ends
}

// geometryFromFGB converts a FlatGeobuf geometry. Geometries of layers with
// a fixed type may omit their own type; layerType is used then.
func geometryFromFGB(fg *flattypes.Geometry, layerType flattypes.GeometryType) (*geoconform.Geometry, error) {
	if fg == nil {
		return nil, nil
	}

	typ := fg.Type()
	if typ == flattypes.GeometryTypeUnknown {
		typ = layerType
	}

	switch typ {
	case flattypes.GeometryTypePoint:
		coords := readCoords(fg, 0, fg.XyLength()/2)
		g := &geoconform.Geometry{Type: geoconform.GeomPoint, HasZ: fg.ZLength() > 0}
		if len(coords) > 0 {
			g.Coords = coords[:1]
		}
		return g, nil

	case flattypes.GeometryTypeMultiPoint:
		g := &geoconform.Geometry{Type: geoconform.GeomMultiPoint, HasZ: fg.ZLength() > 0}
		for _, c := range readCoords(fg, 0, fg.XyLength()/2) {
			g.Parts = append(g.Parts, &geoconform.Geometry{Type: geoconform.GeomPoint, HasZ: g.HasZ, Coords: []geoconform.Coord{c}})
		}
		return g, nil

	case flattypes.GeometryTypeLineString:
		return &geoconform.Geometry{
			Type:   geoconform.GeomLineString,
			HasZ:   fg.ZLength() > 0,
			Coords: readCoords(fg, 0, fg.XyLength()/2),
		}, nil

	case flattypes.GeometryTypeMultiLineString:
		return splitByEnds(fg, geoconform.GeomMultiLineString, geoconform.GeomLineString), nil

	case flattypes.GeometryTypePolygon:
		return splitByEnds(fg, geoconform.GeomPolygon, geoconform.GeomLinearRing), nil

	case flattypes.GeometryTypeMultiPolygon, flattypes.GeometryTypeGeometryCollection:
		g := &geoconform.Geometry{Type: geoconform.GeomMultiPolygon}
		partType := flattypes.GeometryTypePolygon
		if typ == flattypes.GeometryTypeGeometryCollection {
			g.Type = geoconform.GeomCollection
			partType = flattypes.GeometryTypeUnknown
		}
		partsLen := fg.PartsLength()
		if partsLen == 0 && typ == flattypes.GeometryTypeMultiPolygon && fg.XyLength() > 0 {
			// single polygon stored inline
			poly := splitByEnds(fg, geoconform.GeomPolygon, geoconform.GeomLinearRing)
			g.HasZ = poly.HasZ
			g.Parts = []*geoconform.Geometry{poly}
			return g, nil
		}
		for i := 0; i < partsLen; i++ {
			var part flattypes.Geometry
			if !fg.Parts(&part, i) {
				return nil, fmt.Errorf("%w: geometry part %d", ErrInvalidData, i)
			}
			child, err := geometryFromFGB(&part, partType)
			if err != nil {
				return nil, err
			}
			if child == nil {
				continue
			}
			g.HasZ = g.HasZ || child.HasZ
			g.Parts = append(g.Parts, child)
		}
		return g, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, flattypes.EnumNamesGeometryType[typ])
}

// readCoords reads coordinates [from, to) of fg, with Z when present.
func readCoords(fg *flattypes.Geometry, from, to int) []geoconform.Coord {
	hasZ := fg.ZLength() > 0 && fg.ZLength() >= to
	coords := make([]geoconform.Coord, 0, to-from)
	for i := from; i < to; i++ {
		c := geoconform.Coord{X: fg.Xy(2 * i), Y: fg.Xy(2*i + 1)}
		if hasZ {
			c.Z = fg.Z(i)
		}
		coords = append(coords, c)
	}
	return coords
}

// splitByEnds builds a geometry of typ whose parts of partType are
// delimited by the ends array; without ends all points form one part.
func splitByEnds(fg *flattypes.Geometry, typ, partType geoconform.GeometryType) *geoconform.Geometry {
	n := fg.XyLength() / 2
	g := &geoconform.Geometry{Type: typ, HasZ: fg.ZLength() > 0}
	if n == 0 {
		return g
	}

	endsLen := fg.EndsLength()
	if endsLen == 0 {
		g.Parts = []*geoconform.Geometry{{Type: partType, HasZ: g.HasZ, Coords: readCoords(fg, 0, n)}}
		return g
	}

	start := 0
	for i := 0; i < endsLen; i++ {
		end := int(fg.Ends(i))
		if end > n {
			end = n
		}
		if end < start {
			break
		}
		g.Parts = append(g.Parts, &geoconform.Geometry{Type: partType, HasZ: g.HasZ, Coords: readCoords(fg, start, end)})
		start = end
	}
	return g
}
