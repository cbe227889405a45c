package mem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/geoconform"
)

func testDriver() *Driver {
	d := New()
	nd := 0.0
	lo, hi := 1.0, 4.0
	b := NewBand(2, 2, []float64{1, 2, 0, 4})
	b.NoData = &nd
	b.Min, b.Max = &lo, &hi
	d.Add("grid", &Dataset{
		Bands:    []*Band{b, NewBand(1, 1, []float64{9})},
		Metadata: map[string]string{"AREA_OR_POINT": "Area"},
	})
	d.Add("shapes", &Dataset{
		Layers: []*Layer{{
			Name: "pts",
			Features: []geoconform.Feature{
				{FID: 10, Geometry: geoconform.NewPoint(1, 2)},
				{FID: 11, Geometry: geoconform.NewPoint(3, 4)},
			},
		}},
	})
	return d
}

func TestOpenUnknownPath(t *testing.T) {
	_, err := testDriver().Open(context.Background(), geoconform.OpenRequest{Path: "nope"})
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestRasterBands(t *testing.T) {
	d := testDriver()
	ds, err := d.Open(context.Background(), geoconform.OpenRequest{Path: "grid"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.OpenHandles())

	rc := ds.(geoconform.RasterCapable)
	assert.Equal(t, 2, rc.BandCount())

	b, err := rc.RasterBand(1)
	require.NoError(t, err)
	cols, rows := b.Size()
	assert.Equal(t, 2, cols)
	assert.Equal(t, 2, rows)
	row := make([]float64, cols)
	require.NoError(t, b.ReadRow(1, row))
	assert.Equal(t, []float64{0, 4}, row)

	nd, ok := b.NoDataValue()
	assert.True(t, ok)
	assert.Equal(t, 0.0, nd)

	er, ok := b.(geoconform.ExtremaReporter)
	require.True(t, ok)
	lo, hi, ok := er.Extrema()
	assert.True(t, ok)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 4.0, hi)

	b2, err := rc.RasterBand(2)
	require.NoError(t, err)
	_, ok = b2.(geoconform.ExtremaReporter)
	assert.False(t, ok)

	_, err = rc.RasterBand(3)
	assert.ErrorIs(t, err, geoconform.ErrBandIndex)

	v, ok := ds.(geoconform.MetadataSource).MetadataItem("AREA_OR_POINT")
	assert.True(t, ok)
	assert.Equal(t, "Area", v)

	require.NoError(t, ds.Close())
	assert.EqualValues(t, 0, d.OpenHandles())
	assert.ErrorIs(t, ds.Close(), ErrClosed)
}

func TestLayerCursorsAreIndependent(t *testing.T) {
	d := testDriver()
	ctx := context.Background()
	a, err := d.Open(ctx, geoconform.OpenRequest{Path: "shapes"})
	require.NoError(t, err)
	defer a.Close()
	b, err := d.Open(ctx, geoconform.OpenRequest{Path: "shapes"})
	require.NoError(t, err)
	defer b.Close()

	la, err := a.(geoconform.VectorCapable).LayerByName("pts")
	require.NoError(t, err)
	lb, err := b.(geoconform.VectorCapable).Layer(0)
	require.NoError(t, err)

	f, err := la.NextFeature()
	require.NoError(t, err)
	assert.EqualValues(t, 10, f.FID)
	f, err = la.NextFeature()
	require.NoError(t, err)
	assert.EqualValues(t, 11, f.FID)
	_, err = la.NextFeature()
	assert.ErrorIs(t, err, geoconform.ErrEndOfLayer)

	f, err = lb.NextFeature()
	require.NoError(t, err)
	assert.EqualValues(t, 10, f.FID)

	la.ResetReading()
	f, err = la.NextFeature()
	require.NoError(t, err)
	assert.EqualValues(t, 10, f.FID)

	f, err = la.Feature(11)
	require.NoError(t, err)
	assert.Equal(t, "POINT (3 4)", f.Geometry.WKT())
	_, err = la.Feature(12)
	assert.ErrorIs(t, err, geoconform.ErrNotFound)

	_, err = a.(geoconform.VectorCapable).LayerByName("lines")
	assert.ErrorIs(t, err, geoconform.ErrNotFound)
}
