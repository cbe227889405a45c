package geoconform_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/geoconform"
	"github.com/tingold/geoconform/mem"
)

func gridDriver(name string) *mem.Driver {
	d := mem.NewNamed(name)
	d.Add("grid", &mem.Dataset{Bands: []*mem.Band{mem.NewBand(2, 1, []float64{1, 2})}})
	return d
}

func TestRegisterDuplicate(t *testing.T) {
	reg := geoconform.NewRegistry()
	require.NoError(t, reg.Register(mem.NewNamed("GTiff")))
	err := reg.Register(mem.NewNamed("gtiff"))
	assert.ErrorIs(t, err, geoconform.ErrDuplicateDriver)
}

func TestRegisterFrozen(t *testing.T) {
	reg := geoconform.NewRegistry()
	reg.Freeze()
	assert.True(t, reg.Frozen())
	assert.ErrorIs(t, reg.Register(mem.New()), geoconform.ErrRegistryFrozen)
	assert.Panics(t, func() { reg.MustRegister(mem.New()) })
}

func TestRegistryNames(t *testing.T) {
	reg := geoconform.NewRegistry().MustRegister(mem.NewNamed("ZZZ"), mem.NewNamed("AAA"), mem.New())
	assert.Equal(t, []string{"AAA", "MEM", "ZZZ"}, reg.Names())

	d, err := reg.Driver("aaa")
	require.NoError(t, err)
	assert.Equal(t, "AAA", d.Name())
}

func TestRegistryDriverNotFound(t *testing.T) {
	reg := geoconform.NewRegistry()
	_, err := reg.Driver("GTiff")
	require.Error(t, err)
	assert.ErrorIs(t, err, geoconform.ErrDriverNotFound)
	assert.Equal(t, geoconform.KindDriverNotFound, geoconform.KindOf(err))
}

func TestRegistryOpen(t *testing.T) {
	ctx := context.Background()
	drv := gridDriver("A")
	reg := geoconform.NewRegistry().MustRegister(drv)

	ds, err := reg.Open(ctx, "A", "grid")
	require.NoError(t, err)
	assert.Equal(t, 1, ds.(geoconform.RasterCapable).BandCount())
	require.NoError(t, ds.Close())
	assert.Zero(t, drv.OpenHandles())

	_, err = reg.Open(ctx, "B", "grid")
	assert.Equal(t, geoconform.KindDriverNotFound, geoconform.KindOf(err))

	_, err = reg.Open(ctx, "A", "missing")
	var oe *geoconform.OpenError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "A", oe.Driver)
	assert.ErrorIs(t, err, geoconform.ErrOpenFailed)
	assert.ErrorIs(t, err, mem.ErrNoDataset)
	assert.Zero(t, drv.OpenHandles())
}

func TestRegistryOpenPrefix(t *testing.T) {
	ctx := context.Background()
	reg := geoconform.NewRegistry().MustRegister(gridDriver("AA"), gridDriver("BB"))

	ds, err := reg.Open(ctx, "", "BB:grid")
	require.NoError(t, err)
	ds.Close()

	ds, err = reg.Open(ctx, "bb", "BB:grid")
	require.NoError(t, err)
	ds.Close()

	_, err = reg.Open(ctx, "AA", "BB:grid")
	assert.Equal(t, geoconform.KindOpenFailed, geoconform.KindOf(err))

	// An unregistered prefix stays part of the path.
	_, err = reg.Open(ctx, "AA", "CC:grid")
	assert.ErrorIs(t, err, mem.ErrNoDataset)
}

func TestRegistryOpenDriveLetter(t *testing.T) {
	ctx := context.Background()
	drv := mem.NewNamed("C")
	drv.Add(`C:grid`, &mem.Dataset{Bands: []*mem.Band{mem.NewBand(1, 1, []float64{1})}})
	reg := geoconform.NewRegistry().MustRegister(drv, gridDriver("AA"))

	// A one letter prefix is a drive letter even when a driver has that name.
	ds, err := reg.Open(ctx, "C", `C:grid`)
	require.NoError(t, err)
	ds.Close()

	ds, err = reg.Open(ctx, "", `C:grid`)
	require.NoError(t, err)
	ds.Close()

	_, err = reg.Open(ctx, "AA", `C:grid`)
	assert.ErrorIs(t, err, mem.ErrNoDataset)
}

func TestRegistryOpenProbe(t *testing.T) {
	ctx := context.Background()
	first := mem.NewNamed("FIRST")
	second := gridDriver("SECOND")
	reg := geoconform.NewRegistry().MustRegister(first, second)

	ds, err := reg.Open(ctx, "", "grid")
	require.NoError(t, err)
	ds.Close()

	_, err = reg.Open(ctx, "", "elsewhere")
	assert.ErrorIs(t, err, geoconform.ErrNoDriverMatched)
	assert.ErrorIs(t, err, mem.ErrNoDataset)
	assert.Equal(t, geoconform.KindOpenFailed, geoconform.KindOf(err))
}

func TestRegistryOpenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	drv := gridDriver("A")
	reg := geoconform.NewRegistry().MustRegister(drv)
	_, err := reg.Open(ctx, "A", "grid")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, drv.OpenHandles())
}
