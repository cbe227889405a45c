package geoconform_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/geoconform"
	"github.com/tingold/geoconform/mem"
)

func intPtr(v int) *int                                         { return &v }
func floatPtr(v float64) *float64                               { return &v }
func int64Ptr(v int64) *int64                                   { return &v }
func colorPtr(c geoconform.ColorInterp) *geoconform.ColorInterp { return &c }

func checkError(t *testing.T, err error) *geoconform.CheckError {
	t.Helper()
	require.Error(t, err)
	var ce *geoconform.CheckError
	require.True(t, errors.As(err, &ce), "%v is not a CheckError", err)
	return ce
}

// sampleBand is 3x2 with one no-data cell.
func sampleBand() *mem.Band {
	b := mem.NewBand(3, 2, []float64{0, 3, 9, 4, 5, 6})
	b.NoData = floatPtr(0)
	b.Metadata = map[string]string{"STATISTICS_MEAN": "5.4"}
	return b
}

func TestVerifyBandPasses(t *testing.T) {
	band := openBand(t, sampleBand())
	err := geoconform.VerifyBand(context.Background(), band, geoconform.BandExpectation{
		Index:       1,
		Checksum:    intPtr(geoconform.ChecksumValues([]float64{0, 3, 9, 4, 5, 6})),
		NoData:      geoconform.ExpectNoData(0),
		Minimum:     floatPtr(3),
		Maximum:     floatPtr(9),
		ColorInterp: colorPtr(geoconform.ColorGray),
		Metadata:    []geoconform.MetadataExpectation{{Key: "STATISTICS_MEAN", Value: "5.4"}},
	})
	assert.NoError(t, err)
}

func TestVerifyBandFailures(t *testing.T) {
	tests := []struct {
		name     string
		exp      geoconform.BandExpectation
		kind     geoconform.Kind
		check    string
		expected string
		actual   string
	}{
		{
			name:     "checksum",
			exp:      geoconform.BandExpectation{Index: 1, Checksum: intPtr(1)},
			kind:     geoconform.KindStatMismatch,
			check:    "band 1 checksum",
			expected: "1",
			actual:   "27",
		},
		{
			name:     "nodata value",
			exp:      geoconform.BandExpectation{Index: 1, NoData: geoconform.ExpectNoData(255)},
			kind:     geoconform.KindStatMismatch,
			check:    "band 1 nodata",
			expected: "255",
			actual:   "0",
		},
		{
			name:     "nodata absent",
			exp:      geoconform.BandExpectation{Index: 1, NoData: geoconform.ExpectNoNoData()},
			kind:     geoconform.KindStatMismatch,
			check:    "band 1 nodata",
			expected: "none",
			actual:   "0",
		},
		{
			name:     "minimum",
			exp:      geoconform.BandExpectation{Index: 1, Minimum: floatPtr(4)},
			kind:     geoconform.KindStatMismatch,
			check:    "band 1 minimum",
			expected: "4",
			actual:   "3",
		},
		{
			name:     "maximum",
			exp:      geoconform.BandExpectation{Index: 1, Minimum: floatPtr(3), Maximum: floatPtr(8.5)},
			kind:     geoconform.KindStatMismatch,
			check:    "band 1 maximum",
			expected: "8.5",
			actual:   "9",
		},
		{
			name:     "color interpretation",
			exp:      geoconform.BandExpectation{Index: 1, ColorInterp: colorPtr(geoconform.ColorPalette)},
			kind:     geoconform.KindStatMismatch,
			check:    "band 1 color interpretation",
			expected: "Palette",
			actual:   "Gray",
		},
		{
			name:     "metadata missing",
			exp:      geoconform.BandExpectation{Index: 1, Metadata: []geoconform.MetadataExpectation{{Key: "FOO", Value: "1"}}},
			kind:     geoconform.KindMetadataKeyMissing,
			check:    "band 1 metadata FOO",
			expected: `"1"`,
			actual:   "missing",
		},
		{
			name:     "metadata value",
			exp:      geoconform.BandExpectation{Index: 1, Metadata: []geoconform.MetadataExpectation{{Key: "STATISTICS_MEAN", Value: "5.40"}}},
			kind:     geoconform.KindMetadataValueMismatch,
			check:    "band 1 metadata STATISTICS_MEAN",
			expected: `"5.40"`,
			actual:   `"5.4"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			band := openBand(t, sampleBand())
			ce := checkError(t, geoconform.VerifyBand(context.Background(), band, tt.exp))
			assert.Equal(t, tt.kind, ce.Kind)
			assert.Equal(t, tt.check, ce.Check)
			assert.Equal(t, tt.expected, ce.Expected)
			assert.Equal(t, tt.actual, ce.Actual)
		})
	}
}

func TestVerifyBandFirstFailureWins(t *testing.T) {
	band := openBand(t, sampleBand())
	ce := checkError(t, geoconform.VerifyBand(context.Background(), band, geoconform.BandExpectation{
		Index:       1,
		Checksum:    intPtr(1),
		Minimum:     floatPtr(4),
		ColorInterp: colorPtr(geoconform.ColorRed),
	}))
	assert.Equal(t, "band 1 checksum", ce.Check)
}

func TestVerifyBandNaNNoData(t *testing.T) {
	b := mem.NewBand(2, 1, []float64{math.NaN(), 1})
	b.NoData = floatPtr(math.NaN())
	band := openBand(t, b)
	err := geoconform.VerifyBand(context.Background(), band, geoconform.BandExpectation{
		Index:   1,
		NoData:  geoconform.ExpectNoData(math.NaN()),
		Minimum: floatPtr(1),
		Maximum: floatPtr(1),
	})
	assert.NoError(t, err)
}

func TestExtrema(t *testing.T) {
	ctx := context.Background()

	min, max, ok, err := geoconform.Extrema(ctx, openBand(t, sampleBand()))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3.0, min)
	assert.Equal(t, 9.0, max)

	// Stored extrema are reported without scanning.
	stored := sampleBand()
	stored.Min, stored.Max = floatPtr(-1), floatPtr(100)
	min, max, ok, err = geoconform.Extrema(ctx, openBand(t, stored))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, -1.0, min)
	assert.Equal(t, 100.0, max)

	empty := mem.NewBand(2, 1, []float64{0, 0})
	empty.NoData = floatPtr(0)
	_, _, ok, err = geoconform.Extrema(ctx, openBand(t, empty))
	require.NoError(t, err)
	assert.False(t, ok)

	ce := checkError(t, geoconform.VerifyBand(ctx, openBand(t, empty), geoconform.BandExpectation{Index: 1, Minimum: floatPtr(0)}))
	assert.Equal(t, "none", ce.Actual)
}

func TestProbeBand(t *testing.T) {
	st, err := geoconform.ProbeBand(context.Background(), openBand(t, sampleBand()))
	require.NoError(t, err)
	assert.Equal(t, geoconform.BandStats{
		Cols:        3,
		Rows:        2,
		Checksum:    27,
		HasExtrema:  true,
		Minimum:     3,
		Maximum:     9,
		HasNoData:   true,
		NoData:      0,
		ColorInterp: geoconform.ColorGray,
	}, st)
}

func TestNoDataExpectationString(t *testing.T) {
	assert.Equal(t, "unchecked", geoconform.NoDataExpectation{}.String())
	assert.Equal(t, "none", geoconform.ExpectNoNoData().String())
	assert.Equal(t, "nan", geoconform.ExpectNoData(math.NaN()).String())
	assert.Equal(t, "-9999", geoconform.ExpectNoData(-9999).String())
}
