package cellgrid

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/geoconform"
)

func ramp(cols, rows int) []float64 {
	vals := make([]float64, cols*rows)
	for i := range vals {
		vals[i] = float64(i%250 + 1)
	}
	return vals
}

func openBand(t *testing.T, path string) (*Dataset, geoconform.RasterBand) {
	t.Helper()
	ds, err := New().Open(context.Background(), geoconform.OpenRequest{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	b, err := ds.(geoconform.RasterCapable).RasterBand(1)
	require.NoError(t, err)
	return ds.(*Dataset), b
}

func TestRoundTripCompressions(t *testing.T) {
	vals := ramp(17, 9)
	want := geoconform.ChecksumValues(vals)
	for _, comp := range []Compression{CompressionNone, CompressionZSTD, CompressionLZ4, CompressionGZIP} {
		for _, typ := range []CellType{CELL, BYTE, FCELL, DCELL} {
			t.Run(string(comp)+"/"+string(typ), func(t *testing.T) {
				mapset := filepath.Join(t.TempDir(), "loc", "PERMANENT")
				_, err := Write(mapset, &Raster{
					Name:   "ramp",
					Header: Header{Rows: 9, Cols: 17, Type: typ, Compression: comp},
					Values: vals,
				})
				require.NoError(t, err)

				_, b := openBand(t, filepath.Join(mapset, "cellhd", "ramp"))
				got, err := geoconform.Checksum(context.Background(), b)
				require.NoError(t, err)
				assert.Equal(t, want, got)

				row := make([]float64, 17)
				require.NoError(t, b.ReadRow(8, row))
				assert.Equal(t, vals[8*17:], row)
			})
		}
	}
}

func TestResolvePath(t *testing.T) {
	root := t.TempDir()
	mapset := filepath.Join(root, "spearfish", "user1")
	_, err := Write(mapset, &Raster{Name: "dem", Header: Header{Rows: 1, Cols: 2}, Values: []float64{1, 2}})
	require.NoError(t, err)

	for _, p := range []string{
		filepath.Join(mapset, "cellhd", "dem"),
		filepath.Join(mapset, "dem"),
	} {
		loc, err := ResolvePath(p)
		require.NoError(t, err, p)
		assert.Equal(t, "dem", loc.Name)
		assert.Equal(t, mapset, loc.Mapset)
	}

	_, err = ResolvePath(filepath.Join(mapset, "missing"))
	assert.ErrorIs(t, err, ErrNotCellGrid)
	_, err = ResolvePath(filepath.Join(root, "spearfish"))
	assert.ErrorIs(t, err, ErrNotCellGrid)
}

func TestInferredNoData(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		name   string
		hdr    Header
		values []float64
		want   float64
	}{
		{"byte positive", Header{Type: BYTE}, []float64{3, 27}, 0},
		{"byte with zero", Header{Type: BYTE}, []float64{0, 27}, 255},
		{"byte full", Header{Type: BYTE}, []float64{0, 255}, 256},
		{"short positive", Header{Type: CELL, Bytes: 2}, []float64{1, 900}, 0},
		{"short with zero", Header{Type: CELL, Bytes: 2}, []float64{0, 900}, 65535},
		{"int", Header{Type: CELL}, []float64{-4, 900}, math.MinInt32},
		{"float", Header{Type: FCELL}, []float64{0.5, 2}, nan},
		{"explicit", Header{Type: DCELL, NoData: ptr(-9999.0)}, []float64{0.5, 2}, -9999},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapset := filepath.Join(t.TempDir(), "loc", "PERMANENT")
			tc.hdr.Rows, tc.hdr.Cols = 1, 2
			_, err := Write(mapset, &Raster{Name: "r", Header: tc.hdr, Values: tc.values})
			require.NoError(t, err)

			_, b := openBand(t, filepath.Join(mapset, "r"))
			nd, ok := b.NoDataValue()
			require.True(t, ok)
			if math.IsNaN(tc.want) {
				assert.True(t, math.IsNaN(nd))
			} else {
				assert.Equal(t, tc.want, nd)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestRangeExcludesNull(t *testing.T) {
	mapset := filepath.Join(t.TempDir(), "loc", "PERMANENT")
	_, err := Write(mapset, &Raster{
		Name:   "r",
		Header: Header{Rows: 2, Cols: 2, Type: BYTE},
		Values: []float64{0, 3, 27, 0},
		Null:   ptr(0),
	})
	require.NoError(t, err)

	ds, b := openBand(t, filepath.Join(mapset, "r"))
	er, ok := b.(geoconform.ExtremaReporter)
	require.True(t, ok)
	lo, hi, ok := er.Extrema()
	require.True(t, ok)
	assert.Equal(t, 3.0, lo)
	assert.Equal(t, 27.0, hi)
	assert.Equal(t, &Range{Min: 3, Max: 27}, ds.Header().Range)

	nd, _ := b.NoDataValue()
	assert.Equal(t, 0.0, nd)
}

func TestColorRules(t *testing.T) {
	mapset := filepath.Join(t.TempDir(), "loc", "PERMANENT")
	vals := []float64{1, 2, 3, 4}

	_, err := Write(mapset, &Raster{Name: "plain", Header: Header{Rows: 2, Cols: 2}, Values: vals})
	require.NoError(t, err)
	_, b := openBand(t, filepath.Join(mapset, "plain"))
	assert.Equal(t, geoconform.ColorGray, b.ColorInterpretation())
	n, ok := b.MetadataItem("COLOR_TABLE_RULES_COUNT")
	assert.True(t, ok)
	assert.Equal(t, "0", n)

	_, err = Write(mapset, &Raster{
		Name:   "colored",
		Header: Header{Rows: 2, Cols: 2},
		Values: vals,
		Rules: []ColorRule{
			{Low: 1, High: 2, LowColor: RGB{255, 0, 0}, HighColor: RGB{0, 255, 0}},
			{Low: 2, High: 4, LowColor: RGB{0, 255, 0}, HighColor: RGB{0, 0, 255}},
		},
	})
	require.NoError(t, err)
	_, b = openBand(t, filepath.Join(mapset, "colored"))
	assert.Equal(t, geoconform.ColorPalette, b.ColorInterpretation())
	n, _ = b.MetadataItem("COLOR_TABLE_RULES_COUNT")
	assert.Equal(t, "2", n)
	first, ok := b.MetadataItem("COLOR_TABLE_RULE_RGB_0")
	require.True(t, ok)
	assert.Equal(t, "2.000000e+00 4.000000e+00 0 255 0 0 0 255", first)
	second, _ := b.MetadataItem("COLOR_TABLE_RULE_RGB_1")
	assert.Equal(t, "1.000000e+00 2.000000e+00 255 0 0 0 255 0", second)
}

func TestProjectionFallsBackToLocation(t *testing.T) {
	root := t.TempDir()
	location := filepath.Join(root, "utm")
	wkt := `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`
	require.NoError(t, WriteProjection(location, wkt))

	mapset := filepath.Join(location, "user1")
	_, err := Write(mapset, &Raster{Name: "r", Header: Header{Rows: 1, Cols: 1}, Values: []float64{1}})
	require.NoError(t, err)
	ds, _ := openBand(t, filepath.Join(mapset, "r"))
	assert.Equal(t, wkt, ds.SpatialRefWKT())

	_, err = Write(mapset, &Raster{Name: "own", Header: Header{Rows: 1, Cols: 1, Projection: "LOCAL_CS[\"grid\"]"}, Values: []float64{1}})
	require.NoError(t, err)
	ds, _ = openBand(t, filepath.Join(mapset, "own"))
	assert.Equal(t, "LOCAL_CS[\"grid\"]", ds.SpatialRefWKT())

	v, ok := ds.MetadataItem("MAPSET")
	assert.True(t, ok)
	assert.Equal(t, "user1", v)
}

func TestWriteRejectsOutOfRange(t *testing.T) {
	mapset := t.TempDir()
	_, err := Write(mapset, &Raster{Name: "r", Header: Header{Rows: 1, Cols: 1, Type: BYTE}, Values: []float64{300}})
	assert.ErrorIs(t, err, ErrValueRange)
	_, err = Write(mapset, &Raster{Name: "r", Header: Header{Rows: 1, Cols: 1}, Values: []float64{1.5}})
	assert.ErrorIs(t, err, ErrValueRange)
	_, err = Write(mapset, &Raster{Name: "r", Header: Header{Rows: 1, Cols: 2}, Values: []float64{1}})
	assert.Error(t, err)
	_, err = Write(mapset, &Raster{Name: "r", Header: Header{Rows: 1, Cols: 1, Type: "CELL64"}, Values: []float64{1}})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestTruncatedCells(t *testing.T) {
	mapset := filepath.Join(t.TempDir(), "loc", "PERMANENT")
	loc, err := Write(mapset, &Raster{Name: "r", Header: Header{Rows: 3, Cols: 4, Compression: CompressionZSTD}, Values: ramp(4, 3)})
	require.NoError(t, err)
	cell := loc.path(cellDir)
	b, err := os.ReadFile(cell)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cell, b[:len(b)-3], 0o644))

	_, err = New().Open(context.Background(), geoconform.OpenRequest{Path: filepath.Join(mapset, "r")})
	assert.ErrorIs(t, err, ErrCorruptCells)
}

func TestDriverName(t *testing.T) {
	assert.Equal(t, DriverName, New().Name())
	assert.Equal(t, "GRASS", New(WithName("GRASS")).Name())
}
