package geoconform

import (
	"context"
	"fmt"
	"math"
)

// NoDataExpectation is a tri-state expectation on a band's no-data value:
// unchecked, expected absent, or expected equal to a value.
type NoDataExpectation struct {
	set   bool
	none  bool
	value float64
}

// ExpectNoData expects the band to declare v as its no-data value.
func ExpectNoData(v float64) NoDataExpectation {
	return NoDataExpectation{set: true, value: v}
}

// ExpectNoNoData expects the band to declare no no-data value.
func ExpectNoNoData() NoDataExpectation {
	return NoDataExpectation{set: true, none: true}
}

// IsSet reports whether the expectation is checked.
func (n NoDataExpectation) IsSet() bool { return n.set }

// Value returns the expected value; ok is false when no value is expected.
func (n NoDataExpectation) Value() (v float64, ok bool) {
	return n.value, n.set && !n.none
}

func (n NoDataExpectation) String() string {
	switch {
	case !n.set:
		return "unchecked"
	case n.none:
		return "none"
	default:
		return formatFloat(n.value)
	}
}

// BandExpectation lists the checks for one raster band. Nil pointers and an
// unset NoData are not checked.
type BandExpectation struct {
	Index       int // 1-based
	Checksum    *int
	NoData      NoDataExpectation
	Minimum     *float64
	Maximum     *float64
	ColorInterp *ColorInterp
	Metadata    []MetadataExpectation // checked in order
}

// BandStats is what ProbeBand reports about a band.
type BandStats struct {
	Cols, Rows  int
	Checksum    int
	HasExtrema  bool
	Minimum     float64
	Maximum     float64
	HasNoData   bool
	NoData      float64
	ColorInterp ColorInterp
}

// ProbeBand computes the checksum and extrema of band in one pass and
// collects its declared properties.
func ProbeBand(ctx context.Context, band RasterBand) (BandStats, error) {
	var st BandStats
	st.Cols, st.Rows = band.Size()
	st.NoData, st.HasNoData = band.NoDataValue()
	st.ColorInterp = band.ColorInterpretation()

	var (
		c  checksummer
		ex extremaScan
	)
	ex.nodata, ex.hasNoData = st.NoData, st.HasNoData
	err := scanBand(ctx, band, func(row []float64) {
		c.add(row)
		ex.add(row)
	})
	if err != nil {
		return st, err
	}
	st.Checksum = c.value()
	st.Minimum, st.Maximum, st.HasExtrema = ex.min, ex.max, ex.seen
	return st, nil
}

// Extrema returns the minimum and maximum decoded values of band, excluding
// no-data and NaN pixels. Stored extrema are used when the band reports
// them. ok is false when every pixel is excluded.
func Extrema(ctx context.Context, band RasterBand) (min, max float64, ok bool, err error) {
	if er, isReporter := band.(ExtremaReporter); isReporter {
		if min, max, ok := er.Extrema(); ok {
			return min, max, true, nil
		}
	}
	var ex extremaScan
	ex.nodata, ex.hasNoData = band.NoDataValue()
	if err := scanBand(ctx, band, ex.add); err != nil {
		return 0, 0, false, err
	}
	return ex.min, ex.max, ex.seen, nil
}

type extremaScan struct {
	nodata    float64
	hasNoData bool
	seen      bool
	min, max  float64
}

func (e *extremaScan) add(row []float64) {
	for _, v := range row {
		if math.IsNaN(v) || (e.hasNoData && v == e.nodata) {
			continue
		}
		if !e.seen {
			e.min, e.max, e.seen = v, v, true
			continue
		}
		if v < e.min {
			e.min = v
		}
		if v > e.max {
			e.max = v
		}
	}
}

// VerifyBand runs the checks of exp against band in a fixed order:
// checksum, no-data, minimum, maximum, colour interpretation, then metadata
// items in declared order. It returns the first failure.
func VerifyBand(ctx context.Context, band RasterBand, exp BandExpectation) error {
	scope := fmt.Sprintf("band %d", exp.Index)

	if exp.Checksum != nil {
		sum, err := Checksum(ctx, band)
		if err != nil {
			return err
		}
		if sum != *exp.Checksum {
			return mismatch(KindStatMismatch, scope+" checksum", *exp.Checksum, sum)
		}
	}

	if exp.NoData.IsSet() {
		if err := verifyNoData(band, exp.NoData); err != nil {
			return scoped(err, scope)
		}
	}

	if exp.Minimum != nil || exp.Maximum != nil {
		min, max, ok, err := Extrema(ctx, band)
		if err != nil {
			return err
		}
		if exp.Minimum != nil {
			if !ok {
				return mismatch(KindStatMismatch, scope+" minimum", *exp.Minimum, nil)
			}
			if min != *exp.Minimum {
				return mismatch(KindStatMismatch, scope+" minimum", *exp.Minimum, min)
			}
		}
		if exp.Maximum != nil {
			if !ok {
				return mismatch(KindStatMismatch, scope+" maximum", *exp.Maximum, nil)
			}
			if max != *exp.Maximum {
				return mismatch(KindStatMismatch, scope+" maximum", *exp.Maximum, max)
			}
		}
	}

	if exp.ColorInterp != nil {
		if ci := band.ColorInterpretation(); ci != *exp.ColorInterp {
			return mismatch(KindStatMismatch, scope+" color interpretation", *exp.ColorInterp, ci)
		}
	}

	for _, m := range exp.Metadata {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := VerifyMetadata(band, m.Key, m.Value); err != nil {
			return scoped(err, scope)
		}
	}
	return nil
}

func verifyNoData(band RasterBand, exp NoDataExpectation) error {
	actual, has := band.NoDataValue()
	want, wantValue := exp.Value()
	switch {
	case !wantValue && !has:
		return nil
	case !wantValue:
		return mismatch(KindStatMismatch, "nodata", nil, actual)
	case !has:
		return mismatch(KindStatMismatch, "nodata", want, nil)
	case math.IsNaN(want) && math.IsNaN(actual):
		return nil
	case want != actual:
		return mismatch(KindStatMismatch, "nodata", want, actual)
	}
	return nil
}
