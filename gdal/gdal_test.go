//go:build gdal

package gdal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/geoconform"
)

func TestRegisterSkipsUnknownDrivers(t *testing.T) {
	reg := geoconform.NewRegistry()
	names, err := Register(reg, []string{"GTiff", "NOT_A_DRIVER"})
	require.NoError(t, err)
	if len(names) == 0 {
		t.Skip("GTiff driver not available")
	}
	assert.Equal(t, []string{"GTiff"}, names)

	_, err = reg.Driver("NOT_A_DRIVER")
	assert.ErrorIs(t, err, geoconform.ErrDriverNotFound)
}

func TestGTiffCase(t *testing.T) {
	reg := geoconform.NewRegistry()
	names, err := Register(reg, []string{"GTiff"})
	require.NoError(t, err)
	if len(names) == 0 {
		t.Skip("GTiff driver not available")
	}

	path := filepath.Join(t.TempDir(), "small.tif")
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Byte, 4, 3)
	require.NoError(t, err)
	values := []byte{
		0, 3, 4, 5,
		6, 7, 8, 9,
		10, 11, 12, 27,
	}
	band := ds.Bands()[0]
	require.NoError(t, band.Write(0, 0, values, 4, 3))
	require.NoError(t, band.SetNoData(0))
	require.NoError(t, ds.Close())

	pixels := make([]float64, len(values))
	for i, v := range values {
		pixels[i] = float64(v)
	}
	sum := geoconform.ChecksumValues(pixels)
	bandCount := 1
	min, max := 3.0, 27.0

	c := &geoconform.Case{
		ID: "gtiff",
		Expect: geoconform.Expectation{
			Driver:        "GTiff",
			Path:          path,
			RequireDriver: true,
			BandCount:     &bandCount,
			Bands: []geoconform.BandExpectation{{
				Index:    1,
				Checksum: &sum,
				NoData:   geoconform.ExpectNoData(0),
				Minimum:  &min,
				Maximum:  &max,
			}},
		},
	}
	res := c.Run(context.Background(), reg)
	require.NoError(t, res.Err())
	assert.Equal(t, geoconform.StatePassed, res.State)
}

func TestConvertFeatureKeepsDefinitionOrder(t *testing.T) {
	registerOnce.Do(godal.RegisterAll)
	ds, err := godal.CreateVector(godal.Memory, "")
	require.NoError(t, err)
	defer ds.Close()
	lyr, err := ds.CreateLayer("places", nil, godal.GTPoint,
		godal.NewFieldDefinition("zeta", godal.FTString),
		godal.NewFieldDefinition("alpha", godal.FTInt),
		godal.NewFieldDefinition("mid", godal.FTReal),
	)
	require.NoError(t, err)

	pnt, err := godal.NewGeometryFromWKT("POINT (1 2)", nil)
	require.NoError(t, err)
	defer pnt.Close()
	gf, err := lyr.NewFeature(pnt)
	require.NoError(t, err)
	defer gf.Close()

	f, err := convertFeature(gf, 0)
	require.NoError(t, err)
	var names []string
	for _, fld := range f.Fields {
		names = append(names, fld.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
	assert.Equal(t, "POINT (1 2)", f.Geometry.WKT())
}
