package geoconform

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// SRSKind is the kind of coordinate system.
type SRSKind int

const (
	SRSUnknown SRSKind = iota
	SRSGeographic
	SRSProjected
	SRSGeocentric
	SRSLocal
)

var srsKindNames = [...]string{"Unknown", "Geographic", "Projected", "Geocentric", "Local"}

func (k SRSKind) String() string {
	if k < 0 || int(k) >= len(srsKindNames) {
		return "SRSKind(" + strconv.Itoa(int(k)) + ")"
	}
	return srsKindNames[k]
}

// Unit is a named unit with its conversion factor to metres or radians.
type Unit struct {
	Name   string
	Factor float64
}

var (
	UnitDegree = Unit{Name: "degree", Factor: 0.0174532925199433}
	UnitMetre  = Unit{Name: "metre", Factor: 1}
)

// Ellipsoid is a reference ellipsoid.
type Ellipsoid struct {
	Name              string
	SemiMajor         float64
	InverseFlattening float64
}

// Datum is a geodetic datum. ToWGS84 is nil when the datum carries no
// shift; otherwise it holds seven Helmert parameters.
type Datum struct {
	Name      string
	Ellipsoid Ellipsoid
	ToWGS84   []float64
}

// Parameter is a projection parameter as written.
type Parameter struct {
	Name  string
	Value float64
}

// SpatialReference is a coordinate reference system parsed from WKT1.
type SpatialReference struct {
	Kind              SRSKind
	Name              string
	GeogName          string // GEOGCS name of a projected system
	Datum             Datum
	PrimeMeridianName string
	PrimeMeridian     float64 // in AngularUnit
	AngularUnit       Unit
	LinearUnit        Unit
	Projection        string
	Parameters        []Parameter
}

// ParseSRS parses WKT1 text (OGC or ESRI flavour). PROJCS, GEOGCS, GEOCCS
// and LOCAL_CS are supported.
func ParseSRS(text string) (*SpatialReference, error) {
	root, err := parseWKTTree(text)
	if err != nil {
		return nil, err
	}
	s := &SpatialReference{Name: root.str(0), AngularUnit: UnitDegree}

	switch root.keyword {
	case "PROJCS":
		s.Kind = SRSProjected
		geog := root.child("GEOGCS")
		if geog == nil {
			return nil, fmt.Errorf("%w: PROJCS without GEOGCS", ErrInvalidWKT)
		}
		if err := s.readGeog(geog); err != nil {
			return nil, err
		}
		s.GeogName = geog.str(0)
		if proj := root.child("PROJECTION"); proj != nil {
			s.Projection = proj.str(0)
		}
		for _, p := range root.children("PARAMETER") {
			v, ok := p.num(1)
			if !ok {
				return nil, fmt.Errorf("%w: PARAMETER %q has no value", ErrInvalidWKT, p.str(0))
			}
			s.Parameters = append(s.Parameters, Parameter{Name: p.str(0), Value: v})
		}
		s.LinearUnit = readUnit(root, UnitMetre)
	case "GEOGCS":
		s.Kind = SRSGeographic
		if err := s.readGeog(root); err != nil {
			return nil, err
		}
	case "GEOCCS":
		s.Kind = SRSGeocentric
		if err := s.readDatum(root); err != nil {
			return nil, err
		}
		s.LinearUnit = readUnit(root, UnitMetre)
	case "LOCAL_CS":
		s.Kind = SRSLocal
		if d := root.child("LOCAL_DATUM"); d != nil {
			s.Datum.Name = d.str(0)
		}
		s.LinearUnit = readUnit(root, UnitMetre)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSRS, root.keyword)
	}
	return s, nil
}

func (s *SpatialReference) readGeog(geog *wktNode) error {
	if err := s.readDatum(geog); err != nil {
		return err
	}
	s.AngularUnit = readUnit(geog, UnitDegree)
	return nil
}

func (s *SpatialReference) readDatum(n *wktNode) error {
	d := n.child("DATUM")
	if d == nil {
		return fmt.Errorf("%w: %s without DATUM", ErrInvalidWKT, n.keyword)
	}
	s.Datum.Name = d.str(0)
	sph := d.child("SPHEROID", "ELLIPSOID")
	if sph == nil {
		return fmt.Errorf("%w: DATUM without SPHEROID", ErrInvalidWKT)
	}
	a, okA := sph.num(1)
	rf, okRf := sph.num(2)
	if !okA || !okRf {
		return fmt.Errorf("%w: SPHEROID %q needs two numbers", ErrInvalidWKT, sph.str(0))
	}
	s.Datum.Ellipsoid = Ellipsoid{Name: sph.str(0), SemiMajor: a, InverseFlattening: rf}
	if tw := d.child("TOWGS84"); tw != nil {
		vals := tw.numbers()
		if len(vals) != 3 && len(vals) != 7 {
			return fmt.Errorf("%w: TOWGS84 needs 3 or 7 values, has %d", ErrInvalidWKT, len(vals))
		}
		s.Datum.ToWGS84 = make([]float64, 7)
		copy(s.Datum.ToWGS84, vals)
	}
	if pm := n.child("PRIMEM"); pm != nil {
		s.PrimeMeridianName = pm.str(0)
		s.PrimeMeridian, _ = pm.num(1)
	}
	return nil
}

func readUnit(n *wktNode, def Unit) Unit {
	u := n.child("UNIT")
	if u == nil {
		return def
	}
	f, ok := u.num(1)
	if !ok || f == 0 {
		return def
	}
	return Unit{Name: u.str(0), Factor: f}
}

// SRSDiff names the first component in which two spatial references differ.
type SRSDiff struct {
	Field    string
	Expected string
	Actual   string
}

func (d *SRSDiff) String() string {
	return fmt.Sprintf("%s: expected %s, actual %s", d.Field, d.Expected, d.Actual)
}

// Equal reports whether s and other describe the same coordinate system.
func (s *SpatialReference) Equal(other *SpatialReference) bool {
	return s.Compare(other) == nil
}

// Compare returns the first difference between s (expected) and other
// (actual), or nil when they are equal. Numbers are compared with a small
// relative tolerance; projection and datum names after normalization;
// parameters by name regardless of order, with omitted parameters taking
// their default; units by conversion factor.
func (s *SpatialReference) Compare(other *SpatialReference) *SRSDiff {
	if s == nil || other == nil {
		if s == other {
			return nil
		}
		return &SRSDiff{Field: "srs", Expected: srsPresence(s), Actual: srsPresence(other)}
	}
	if s.Kind != other.Kind {
		return &SRSDiff{Field: "kind", Expected: s.Kind.String(), Actual: other.Kind.String()}
	}
	if s.Kind != SRSLocal {
		if d := compareDatum(s, other); d != nil {
			return d
		}
	}
	if s.Kind == SRSGeographic || s.Kind == SRSProjected {
		if !floatClose(s.AngularUnit.Factor, other.AngularUnit.Factor) {
			return &SRSDiff{Field: "angular unit", Expected: unitString(s.AngularUnit), Actual: unitString(other.AngularUnit)}
		}
	}
	if s.Kind == SRSProjected {
		if projectionKey(s.Projection) != projectionKey(other.Projection) {
			return &SRSDiff{Field: "projection", Expected: s.Projection, Actual: other.Projection}
		}
		if d := compareParameters(s, other); d != nil {
			return d
		}
	}
	if s.Kind != SRSGeographic {
		if !floatClose(s.LinearUnit.Factor, other.LinearUnit.Factor) {
			return &SRSDiff{Field: "linear unit", Expected: unitString(s.LinearUnit), Actual: unitString(other.LinearUnit)}
		}
	}
	return nil
}

func compareDatum(s, o *SpatialReference) *SRSDiff {
	if !floatClose(s.Datum.Ellipsoid.SemiMajor, o.Datum.Ellipsoid.SemiMajor) {
		return &SRSDiff{Field: "semi-major axis", Expected: formatFloat(s.Datum.Ellipsoid.SemiMajor), Actual: formatFloat(o.Datum.Ellipsoid.SemiMajor)}
	}
	if !floatClose(s.Datum.Ellipsoid.InverseFlattening, o.Datum.Ellipsoid.InverseFlattening) {
		return &SRSDiff{Field: "inverse flattening", Expected: formatFloat(s.Datum.Ellipsoid.InverseFlattening), Actual: formatFloat(o.Datum.Ellipsoid.InverseFlattening)}
	}
	sw, ow := toWGS84OrZero(s.Datum.ToWGS84), toWGS84OrZero(o.Datum.ToWGS84)
	for i := range sw {
		if !floatClose(sw[i], ow[i]) {
			return &SRSDiff{Field: "TOWGS84[" + strconv.Itoa(i) + "]", Expected: formatFloat(sw[i]), Actual: formatFloat(ow[i])}
		}
	}
	spm := s.PrimeMeridian * s.AngularUnit.Factor
	opm := o.PrimeMeridian * o.AngularUnit.Factor
	if !floatClose(spm, opm) {
		return &SRSDiff{Field: "prime meridian", Expected: formatFloat(s.PrimeMeridian), Actual: formatFloat(o.PrimeMeridian)}
	}
	if s.Datum.Name != "" && o.Datum.Name != "" && datumKey(s.Datum.Name) != datumKey(o.Datum.Name) {
		return &SRSDiff{Field: "datum", Expected: s.Datum.Name, Actual: o.Datum.Name}
	}
	return nil
}

func toWGS84OrZero(v []float64) []float64 {
	if len(v) == 7 {
		return v
	}
	return make([]float64, 7)
}

// normalizedParameters maps normalized parameter names to values in
// radians, metres or plain scalars.
func (s *SpatialReference) normalizedParameters() map[string]float64 {
	m := make(map[string]float64, len(s.Parameters))
	for _, p := range s.Parameters {
		key := parameterKey(p.Name)
		v := p.Value
		switch parameterUnitOf(key) {
		case paramAngular:
			v *= s.AngularUnit.Factor
		case paramLinear:
			v *= s.LinearUnit.Factor
		}
		m[key] = v
	}
	return m
}

func compareParameters(s, o *SpatialReference) *SRSDiff {
	sp, op := s.normalizedParameters(), o.normalizedParameters()
	keys := make([]string, 0, len(sp)+len(op))
	for k := range sp {
		keys = append(keys, k)
	}
	for k := range op {
		if _, ok := sp[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		sv, ok := sp[k]
		if !ok {
			sv = parameterDefault(k)
		}
		ov, ok := op[k]
		if !ok {
			ov = parameterDefault(k)
		}
		if !floatClose(sv, ov) {
			return &SRSDiff{
				Field:    "parameter " + k,
				Expected: formatFloat(s.parameterAsWritten(k, sv)),
				Actual:   formatFloat(o.parameterAsWritten(k, ov)),
			}
		}
	}
	return nil
}

// parameterAsWritten converts a normalized parameter value back to the
// units of s, for messages.
func (s *SpatialReference) parameterAsWritten(key string, v float64) float64 {
	switch parameterUnitOf(key) {
	case paramAngular:
		return v / s.AngularUnit.Factor
	case paramLinear:
		return v / s.LinearUnit.Factor
	}
	return v
}

const (
	srsRelTolerance = 1e-9
	srsAbsTolerance = 1e-12
)

func floatClose(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	if diff <= srsAbsTolerance {
		return true
	}
	return diff <= srsRelTolerance*math.Max(math.Abs(a), math.Abs(b))
}

func unitString(u Unit) string {
	return u.Name + " (" + formatFloat(u.Factor) + ")"
}

func srsPresence(s *SpatialReference) string {
	if s == nil {
		return "none"
	}
	return s.Kind.String()
}

// WKT exports s as normalized WKT1: parameters sorted by normalized name,
// TOWGS84 written only when non-zero, AUTHORITY and AXIS omitted.
// Parsing the result yields a reference Equal to s.
func (s *SpatialReference) WKT() string {
	var w wktWriter
	switch s.Kind {
	case SRSProjected:
		w.open("PROJCS")
		w.str(s.Name)
		w.open("GEOGCS")
		w.str(s.GeogName)
		s.writeDatum(&w)
		w.writeUnit(s.AngularUnit)
		w.close()
		w.open("PROJECTION")
		w.str(s.Projection)
		w.close()
		params := append([]Parameter(nil), s.Parameters...)
		sort.SliceStable(params, func(i, j int) bool {
			return parameterKey(params[i].Name) < parameterKey(params[j].Name)
		})
		for _, p := range params {
			w.open("PARAMETER")
			w.str(p.Name)
			w.num(p.Value)
			w.close()
		}
		w.writeUnit(s.LinearUnit)
		w.close()
	case SRSGeographic:
		w.open("GEOGCS")
		w.str(s.Name)
		s.writeDatum(&w)
		w.writeUnit(s.AngularUnit)
		w.close()
	case SRSGeocentric:
		w.open("GEOCCS")
		w.str(s.Name)
		s.writeDatum(&w)
		w.writeUnit(s.LinearUnit)
		w.close()
	case SRSLocal:
		w.open("LOCAL_CS")
		w.str(s.Name)
		w.open("LOCAL_DATUM")
		w.str(s.Datum.Name)
		w.num(0)
		w.close()
		w.writeUnit(s.LinearUnit)
		w.close()
	}
	return w.String()
}

func (s *SpatialReference) writeDatum(w *wktWriter) {
	w.open("DATUM")
	w.str(s.Datum.Name)
	w.open("SPHEROID")
	w.str(s.Datum.Ellipsoid.Name)
	w.num(s.Datum.Ellipsoid.SemiMajor)
	w.num(s.Datum.Ellipsoid.InverseFlattening)
	w.close()
	if hasShift(s.Datum.ToWGS84) {
		w.open("TOWGS84")
		for _, v := range s.Datum.ToWGS84 {
			w.num(v)
		}
		w.close()
	}
	w.close()
	w.open("PRIMEM")
	w.str(s.PrimeMeridianName)
	w.num(s.PrimeMeridian)
	w.close()
}

func (w *wktWriter) writeUnit(u Unit) {
	w.open("UNIT")
	w.str(u.Name)
	w.num(u.Factor)
	w.close()
}

func hasShift(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}

// SRSEqual parses both texts and compares them.
func SRSEqual(expectedWKT, actualWKT string) (bool, error) {
	exp, err := ParseSRS(expectedWKT)
	if err != nil {
		return false, fmt.Errorf("expected srs: %w", err)
	}
	act, err := ParseSRS(actualWKT)
	if err != nil {
		return false, fmt.Errorf("actual srs: %w", err)
	}
	return exp.Equal(act), nil
}

// VerifySRS compares the reference reported by a driver with the expected
// text. An unparseable expectation is returned as a plain error; a missing
// or different actual reference is a KindSRSMismatch.
func VerifySRS(expectedWKT, actualWKT string) error {
	exp, err := ParseSRS(expectedWKT)
	if err != nil {
		return fmt.Errorf("%w: expected srs: %v", ErrInvalidCase, err)
	}
	if actualWKT == "" {
		return &CheckError{Kind: KindSRSMismatch, Check: "srs", Expected: exp.Kind.String(), Actual: "none"}
	}
	act, err := ParseSRS(actualWKT)
	if err != nil {
		return &CheckError{Kind: KindSRSMismatch, Check: "srs", Expected: exp.Kind.String(), Actual: "unparseable", Err: err}
	}
	if d := exp.Compare(act); d != nil {
		return &CheckError{Kind: KindSRSMismatch, Check: "srs " + d.Field, Expected: d.Expected, Actual: d.Actual}
	}
	return nil
}
