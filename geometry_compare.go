package geoconform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GeometryDiff describes the first place two geometries diverge.
type GeometryDiff struct {
	Path     string // e.g. "part 0 / ring 1 / point 12"
	Reason   string
	Expected string
	Actual   string
}

func (d *GeometryDiff) String() string {
	var b strings.Builder
	if d.Path != "" {
		b.WriteString(d.Path)
		b.WriteString(": ")
	}
	b.WriteString(d.Reason)
	if d.Expected != "" || d.Actual != "" {
		fmt.Fprintf(&b, " (expected %s, actual %s)", d.Expected, d.Actual)
	}
	return b.String()
}

// GeometryEqual reports whether actual matches expected within tol.
func GeometryEqual(expected, actual *Geometry, tol float64) bool {
	return CompareGeometry(expected, actual, tol) == nil
}

type geomFrame struct {
	exp, act *Geometry
	path     string
}

// CompareGeometry walks both trees in document order and returns the first
// difference, or nil when they are equal. Nodes must have the same type, the
// same number of parts and points, and every ordinate must be within tol.
// Parts, rings and vertices are compared by position; ring orientation and
// starting vertex are significant.
func CompareGeometry(expected, actual *Geometry, tol float64) *GeometryDiff {
	stack := []geomFrame{{exp: expected, act: actual}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if d := compareNode(f, tol); d != nil {
			return d
		}
		if f.exp == nil {
			continue
		}
		for i := len(f.exp.Parts) - 1; i >= 0; i-- {
			stack = append(stack, geomFrame{
				exp:  f.exp.Parts[i],
				act:  f.act.Parts[i],
				path: joinPath(f.path, partLabel(f.exp.Type), i),
			})
		}
	}
	return nil
}

// compareNode compares one node without descending into its parts. When it
// returns nil both nodes are non-nil with equally many parts, or both nil.
func compareNode(f geomFrame, tol float64) *GeometryDiff {
	e, a := f.exp, f.act
	switch {
	case e == nil && a == nil:
		return nil
	case e == nil:
		return &GeometryDiff{Path: f.path, Reason: "unexpected geometry", Expected: "none", Actual: a.Type.String()}
	case a == nil:
		return &GeometryDiff{Path: f.path, Reason: "missing geometry", Expected: e.Type.String(), Actual: "none"}
	}
	if e.Type != a.Type {
		return &GeometryDiff{Path: f.path, Reason: "type differs", Expected: e.Type.String(), Actual: a.Type.String()}
	}
	if e.HasZ != a.HasZ {
		return &GeometryDiff{Path: f.path, Reason: "dimension differs", Expected: dimName(e.HasZ), Actual: dimName(a.HasZ)}
	}
	if len(e.Parts) != len(a.Parts) {
		return &GeometryDiff{
			Path:     f.path,
			Reason:   partLabel(e.Type) + " count differs",
			Expected: strconv.Itoa(len(e.Parts)),
			Actual:   strconv.Itoa(len(a.Parts)),
		}
	}
	if len(e.Coords) != len(a.Coords) {
		return &GeometryDiff{
			Path:     f.path,
			Reason:   "point count differs",
			Expected: strconv.Itoa(len(e.Coords)),
			Actual:   strconv.Itoa(len(a.Coords)),
		}
	}
	for i := range e.Coords {
		if !coordEqual(e.Coords[i], a.Coords[i], e.HasZ, tol) {
			return &GeometryDiff{
				Path:     joinPath(f.path, "point", i),
				Reason:   "coordinate differs",
				Expected: formatCoord(e.Coords[i], e.HasZ),
				Actual:   formatCoord(a.Coords[i], a.HasZ),
			}
		}
	}
	return nil
}

func coordEqual(a, b Coord, hasZ bool, tol float64) bool {
	if !ordinateEqual(a.X, b.X, tol) || !ordinateEqual(a.Y, b.Y, tol) {
		return false
	}
	return !hasZ || ordinateEqual(a.Z, b.Z, tol)
}

func ordinateEqual(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if a == b {
		return true
	}
	return math.Abs(a-b) <= tol
}

func partLabel(t GeometryType) string {
	switch t {
	case GeomPolygon:
		return "ring"
	case GeomCollection:
		return "geometry"
	default:
		return "part"
	}
}

func joinPath(path, label string, i int) string {
	elem := label + " " + strconv.Itoa(i)
	if path == "" {
		return elem
	}
	return path + " / " + elem
}

func dimName(hasZ bool) string {
	if hasZ {
		return "XYZ"
	}
	return "XY"
}

func formatCoord(c Coord, hasZ bool) string {
	s := "(" + formatOrdinate(c.X) + " " + formatOrdinate(c.Y)
	if hasZ {
		s += " " + formatOrdinate(c.Z)
	}
	return s + ")"
}
