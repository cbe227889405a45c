package geoconform_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/geoconform"
	"github.com/tingold/geoconform/internal/fixture"
)

func TestParseSuiteFixture(t *testing.T) {
	base := filepath.FromSlash("/data/fixtures")
	cases, err := geoconform.ParseSuite(fixture.Suite, base)
	require.NoError(t, err)
	require.Len(t, cases, 3)

	checksum := cases[0]
	assert.Equal(t, "grass-raster-checksum", checksum.ID)
	assert.Equal(t, "GRASS", checksum.Expect.Driver)
	assert.Equal(t, filepath.Join(base, fixture.ElevationPath), checksum.Expect.Path)
	assert.True(t, checksum.Expect.RequireDriver)
	assert.Equal(t, intPtr(1), checksum.Expect.BandCount)
	assert.NoError(t, geoconform.VerifySRS(fixture.ElevationSRS, checksum.Expect.SRS))
	require.Len(t, checksum.Expect.Bands, 1)
	assert.Equal(t, intPtr(fixture.ElevationChecksum), checksum.Expect.Bands[0].Checksum)

	band := cases[1].Expect.Bands[0]
	nodata, ok := band.NoData.Value()
	assert.True(t, ok)
	assert.Equal(t, 0.0, nodata)
	assert.Equal(t, floatPtr(3), band.Minimum)
	assert.Equal(t, floatPtr(27), band.Maximum)
	assert.Equal(t, colorPtr(geoconform.ColorGray), band.ColorInterp)
	assert.Equal(t, []geoconform.MetadataExpectation{{Key: "COLOR_TABLE_RULES_COUNT", Value: "0"}}, band.Metadata)

	vector := cases[2].Expect
	assert.Equal(t, intPtr(3), vector.LayerCount)
	require.Len(t, vector.Layers, 1)
	layer := vector.Layers[0]
	assert.Equal(t, fixture.CountryLayer, layer.Name)
	assert.Equal(t, []int64{9999}, layer.MissingFIDs)
	require.NotNil(t, layer.SpatialFilter)
	assert.Equal(t, orb.Bound{Min: orb.Point{20, 40}, Max: orb.Point{30, 45}}, layer.SpatialFilter.Bounds)
	assert.Equal(t, 1, layer.SpatialFilter.Count)
	require.Len(t, layer.Features, 2)

	first := layer.Features[0]
	assert.Nil(t, first.FID)
	assert.Equal(t, []geoconform.FieldExpectation{
		{Name: "name", Value: geoconform.StringValue("Bulgaria")},
		{Name: "POP_EST", Value: geoconform.RealValue(fixture.BulgariaPopEst)},
	}, first.Fields)
	require.NotNil(t, first.Geometry)
	assert.Equal(t, fixture.BulgariaWKT, first.Geometry.WKT)
	// no geometry_tolerance: compared at ExactGeometryTolerance
	assert.Nil(t, first.Geometry.Tolerance)

	lux := layer.Features[1]
	assert.Equal(t, int64Ptr(fixture.LuxembourgFID), lux.FID)
	require.NotNil(t, lux.Geometry.Tolerance)
	assert.Equal(t, geoconform.DefaultGeometryTolerance, *lux.Geometry.Tolerance)
}

func TestLoadSuiteRuns(t *testing.T) {
	suite, err := fixture.WriteAll(t.TempDir())
	require.NoError(t, err)
	cases, err := geoconform.LoadSuite(suite)
	require.NoError(t, err)

	results, err := geoconform.NewRunner(grassRegistry()).Run(context.Background(), cases)
	require.NoError(t, err)
	for _, res := range results {
		assert.True(t, res.Passed(), "%s: %v", res.CaseID, res.Err())
	}
}

func TestParseSuiteValues(t *testing.T) {
	doc := `
cases:
  - driver: MEM
    path: GTiff:rel/x.tif
    bands:
      - index: 1
        nodata: none
      - index: 2
        nodata: nan
        color_interp: GCI_PaletteIndex
  - path: /abs/shapes
    layers:
      - index: 0
        features:
          - next: true
            field_tolerance: 0.5
            fields:
              count: 3
              ratio: 0.25
              code: "3"
              note: ~
            null_geometry: true
          - fid: 7
            geometry: POINT (1 2)
            geometry_tolerance: 0.01
          - fid: 8
            geometry: LINESTRING (1.25 2.5,3.5 4.75)
            geometry_tolerance: literal
`
	cases, err := geoconform.ParseSuite([]byte(doc), "base")
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "case-1", cases[0].ID)
	assert.Equal(t, "GTiff:"+filepath.Join("base", "rel", "x.tif"), cases[0].Expect.Path)
	bands := cases[0].Expect.Bands
	assert.Equal(t, geoconform.ExpectNoNoData(), bands[0].NoData)
	nd, ok := bands[1].NoData.Value()
	assert.True(t, ok)
	assert.True(t, math.IsNaN(nd))
	assert.Equal(t, colorPtr(geoconform.ColorPalette), bands[1].ColorInterp)

	assert.Equal(t, "case-2", cases[1].ID)
	assert.Equal(t, "/abs/shapes", cases[1].Expect.Path)
	features := cases[1].Expect.Layers[0].Features
	assert.Equal(t, []geoconform.FieldExpectation{
		{Name: "count", Value: geoconform.IntValue(3), Tolerance: 0.5},
		{Name: "ratio", Value: geoconform.RealValue(0.25), Tolerance: 0.5},
		{Name: "code", Value: geoconform.StringValue("3"), Tolerance: 0.5},
		{Name: "note", Value: geoconform.NullValue(), Tolerance: 0.5},
	}, features[0].Fields)
	assert.Equal(t, &geoconform.GeometryExpectation{}, features[0].Geometry)
	assert.Equal(t, int64Ptr(7), features[1].FID)
	assert.Equal(t, "POINT (1 2)", features[1].Geometry.WKT)
	assert.Equal(t, floatPtr(0.01), features[1].Geometry.Tolerance)
	require.NotNil(t, features[2].Geometry.Tolerance)
	assert.InDelta(t, 0.05, *features[2].Geometry.Tolerance, 1e-15)
}

func TestParseSuiteErrors(t *testing.T) {
	tests := map[string]string{
		"not yaml":       "cases: [",
		"no path":        "cases: [{id: a, driver: MEM}]",
		"duplicate id":   "cases: [{id: a, path: x}, {id: a, path: y}]",
		"band index":     "cases: [{path: x, bands: [{index: 0}]}]",
		"bad nodata":     "cases: [{path: x, bands: [{index: 1, nodata: lots}]}]",
		"bad tolerance":  "cases: [{path: x, layers: [{features: [{next: true, geometry: POINT (1 2), geometry_tolerance: -1}]}]}]",
		"next and fid":   "cases: [{path: x, layers: [{features: [{next: true, fid: 1}]}]}]",
		"no selector":    "cases: [{path: x, layers: [{features: [{fields: {a: 1}}]}]}]",
		"null and wkt":   "cases: [{path: x, layers: [{features: [{next: true, geometry: POINT (1 2), null_geometry: true}]}]}]",
		"bad wkt":        "cases: [{path: x, layers: [{features: [{next: true, geometry: POINT (1)}]}]}]",
		"metadata list":  "cases: [{path: x, metadata: [a, b]}]",
		"require driver": "cases: [{path: x, require_driver: true}]",
		"short bbox":     "cases: [{path: x, layers: [{name: a, spatial_filter: {bbox: [0, 0, 1], count: 1}}]}]",
		"inverted bbox":  "cases: [{path: x, layers: [{name: a, spatial_filter: {bbox: [1, 1, 0, 0], count: 1}}]}]",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := geoconform.ParseSuite([]byte(doc), "")
			assert.Error(t, err)
		})
	}

	_, err := geoconform.ParseSuite([]byte(tests["duplicate id"]), "")
	assert.ErrorIs(t, err, geoconform.ErrInvalidCase)
}

func TestLoadSuiteMissingFile(t *testing.T) {
	_, err := geoconform.LoadSuite(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
