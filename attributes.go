package geoconform

import (
	"math"
	"strconv"
	"strings"
)

// FieldExpectation is the expected value of one attribute. The expected
// value's type selects the comparison: strings compare the actual value
// formatted as a string, reals compare it as a double (within Tolerance),
// integers as an integer, and a null value requires the field to be unset.
type FieldExpectation struct {
	Name      string
	Value     FieldValue
	Tolerance float64
}

// VerifyField checks one attribute of f.
func VerifyField(f *Feature, exp FieldExpectation) error {
	check := "field " + exp.Name
	actual, ok := f.Field(exp.Name)
	if !ok {
		return &CheckError{Kind: KindAttributeMismatch, Check: check, Expected: exp.Value.String(), Actual: "no such field"}
	}

	switch exp.Value.Type {
	case FieldNull:
		if !actual.IsNull() {
			return mismatch(KindAttributeMismatch, check, "null", actual.String())
		}
		return nil
	case FieldString:
		if actual.IsNull() || actual.AsString() != exp.Value.Str {
			return &CheckError{Kind: KindAttributeMismatch, Check: check, Expected: quote(exp.Value.Str), Actual: quoteField(actual)}
		}
	case FieldReal:
		got := actual.AsFloat()
		if actual.IsNull() || !realEqual(exp.Value.Float, got, exp.Tolerance) {
			return mismatch(KindAttributeMismatch, check, exp.Value.Float, actual.String())
		}
	case FieldInteger:
		if actual.IsNull() || !intEqual(actual, exp.Value.Int) {
			return mismatch(KindAttributeMismatch, check, exp.Value.Int, actual.String())
		}
	case FieldBinary:
		if actual.IsNull() || actual.AsString() != exp.Value.AsString() {
			return mismatch(KindAttributeMismatch, check, exp.Value.AsString(), actual.String())
		}
	}
	return nil
}

// intEqual reports whether v holds exactly want. Reals and numeric strings
// with a fractional part never match.
func intEqual(v FieldValue, want int64) bool {
	switch v.Type {
	case FieldInteger:
		return v.Int == want
	case FieldReal:
		return v.Float == float64(want)
	case FieldString:
		s := strings.TrimSpace(v.Str)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i == want
		}
		f, err := strconv.ParseFloat(s, 64)
		return err == nil && f == float64(want)
	}
	return false
}

func realEqual(want, got, tol float64) bool {
	if math.IsNaN(want) || math.IsNaN(got) {
		return math.IsNaN(want) && math.IsNaN(got)
	}
	return want == got || math.Abs(want-got) <= tol
}

func quoteField(v FieldValue) string {
	if v.IsNull() {
		return "null"
	}
	return strconv.Quote(v.AsString())
}

// GeometryExpectation is the expected geometry of a feature.
type GeometryExpectation struct {
	WKT       string   // empty expects no geometry
	Tolerance *float64 // nil means ExactGeometryTolerance
}

// tolerance returns the tolerance used to compare against g.
func (g GeometryExpectation) tolerance() float64 {
	if g.Tolerance != nil {
		return *g.Tolerance
	}
	return ExactGeometryTolerance
}

// VerifyGeometry compares the geometry of f with exp.
func VerifyGeometry(f *Feature, exp GeometryExpectation) error {
	if exp.WKT == "" {
		if f.Geometry != nil && !f.Geometry.IsEmpty() {
			return mismatch(KindGeometryMismatch, "geometry", nil, f.Geometry.Type.String())
		}
		return nil
	}
	want, err := ParseWKT(exp.WKT)
	if err != nil {
		return &CheckError{Kind: KindInvalidCase, Check: "geometry", Err: err}
	}
	if d := CompareGeometry(want, f.Geometry, exp.tolerance()); d != nil {
		check := "geometry"
		if d.Path != "" {
			check += " " + d.Path
		}
		return &CheckError{
			Kind:     KindGeometryMismatch,
			Check:    check + ": " + d.Reason,
			Expected: d.Expected,
			Actual:   d.Actual,
		}
	}
	return nil
}
