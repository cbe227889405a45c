// Package mem is an in-memory driver. Datasets are built in code and
// registered under a path; every Open returns an independent handle.
package mem

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tingold/geoconform"
)

// DriverName is the registered name of the driver.
const DriverName = "MEM"

var (
	ErrNoDataset = errors.New("mem: no dataset at path")
	ErrClosed    = errors.New("mem: dataset already closed")
)

// Dataset is the content of an in-memory dataset.
type Dataset struct {
	Bands    []*Band
	Layers   []*Layer
	SRS      string
	Metadata map[string]string
}

// Band is an in-memory raster band.
type Band struct {
	Cols, Rows  int
	Values      []float64 // row-major, len Cols*Rows
	NoData      *float64
	ColorInterp geoconform.ColorInterp
	Metadata    map[string]string

	// Stored extrema; when both are set the band reports them instead of
	// being scanned.
	Min, Max *float64
}

// NewBand returns a gray band over values.
func NewBand(cols, rows int, values []float64) *Band {
	return &Band{Cols: cols, Rows: rows, Values: values, ColorInterp: geoconform.ColorGray}
}

// Layer is an in-memory vector layer.
type Layer struct {
	Name     string
	SRS      string
	Features []geoconform.Feature
}

// Driver serves datasets added with Add.
type Driver struct {
	mu       sync.RWMutex
	name     string
	datasets map[string]*Dataset
	open     atomic.Int64
}

// New returns a driver registered as DriverName.
func New() *Driver { return NewNamed(DriverName) }

// NewNamed returns a driver registered under name.
func NewNamed(name string) *Driver {
	return &Driver{name: name, datasets: make(map[string]*Dataset)}
}

func (d *Driver) Name() string { return d.name }

// Add makes ds available at path.
func (d *Driver) Add(path string, ds *Dataset) {
	d.mu.Lock()
	d.datasets[path] = ds
	d.mu.Unlock()
}

// OpenHandles returns the number of handles not yet closed.
func (d *Driver) OpenHandles() int64 { return d.open.Load() }

func (d *Driver) Open(ctx context.Context, req geoconform.OpenRequest) (geoconform.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	ds, ok := d.datasets[req.Path]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoDataset, req.Path)
	}
	for i, b := range ds.Bands {
		if len(b.Values) != b.Cols*b.Rows {
			return nil, fmt.Errorf("mem: band %d has %d values, want %d", i+1, len(b.Values), b.Cols*b.Rows)
		}
	}
	d.open.Add(1)
	return &handle{drv: d, ds: ds}, nil
}

type handle struct {
	drv    *Driver
	ds     *Dataset
	closed atomic.Bool
}

func (h *handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	h.drv.open.Add(-1)
	return nil
}

func (h *handle) BandCount() int { return len(h.ds.Bands) }

func (h *handle) RasterBand(index int) (geoconform.RasterBand, error) {
	if index < 1 || index > len(h.ds.Bands) {
		return nil, fmt.Errorf("%w: %d", geoconform.ErrBandIndex, index)
	}
	b := h.ds.Bands[index-1]
	if b.Min != nil && b.Max != nil {
		return &statBand{band{b}}, nil
	}
	return &band{b}, nil
}

func (h *handle) LayerCount() int { return len(h.ds.Layers) }

func (h *handle) Layer(index int) (geoconform.Layer, error) {
	if index < 0 || index >= len(h.ds.Layers) {
		return nil, fmt.Errorf("%w: %d", geoconform.ErrLayerIndex, index)
	}
	return &cursor{l: h.ds.Layers[index]}, nil
}

func (h *handle) LayerByName(name string) (geoconform.Layer, error) {
	for _, l := range h.ds.Layers {
		if l.Name == name {
			return &cursor{l: l}, nil
		}
	}
	return nil, fmt.Errorf("%w: layer %q", geoconform.ErrNotFound, name)
}

func (h *handle) SpatialRefWKT() string { return h.ds.SRS }

func (h *handle) MetadataItem(key string) (string, bool) {
	v, ok := h.ds.Metadata[key]
	return v, ok
}

type band struct{ b *Band }

func (b *band) Size() (int, int) { return b.b.Cols, b.b.Rows }

func (b *band) ReadRow(row int, dst []float64) error {
	if row < 0 || row >= b.b.Rows {
		return fmt.Errorf("mem: row %d out of range", row)
	}
	copy(dst, b.b.Values[row*b.b.Cols:(row+1)*b.b.Cols])
	return nil
}

func (b *band) NoDataValue() (float64, bool) {
	if b.b.NoData == nil {
		return 0, false
	}
	return *b.b.NoData, true
}

func (b *band) ColorInterpretation() geoconform.ColorInterp { return b.b.ColorInterp }

func (b *band) MetadataItem(key string) (string, bool) {
	v, ok := b.b.Metadata[key]
	return v, ok
}

// statBand also reports stored extrema.
type statBand struct{ band }

func (b *statBand) Extrema() (float64, float64, bool) { return *b.b.Min, *b.b.Max, true }

// cursor is a per-handle read position over a Layer.
type cursor struct {
	l   *Layer
	pos int
}

func (c *cursor) Name() string { return c.l.Name }

func (c *cursor) FeatureCount() (int, error) { return len(c.l.Features), nil }

func (c *cursor) ResetReading() { c.pos = 0 }

func (c *cursor) NextFeature() (*geoconform.Feature, error) {
	if c.pos >= len(c.l.Features) {
		return nil, geoconform.ErrEndOfLayer
	}
	f := c.l.Features[c.pos]
	c.pos++
	return &f, nil
}

func (c *cursor) Feature(fid int64) (*geoconform.Feature, error) {
	for i := range c.l.Features {
		if c.l.Features[i].FID == fid {
			f := c.l.Features[i]
			return &f, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", geoconform.ErrFeatureNotFound, fid)
}

func (c *cursor) SpatialRefWKT() string { return c.l.SRS }
