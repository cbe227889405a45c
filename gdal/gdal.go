//go:build gdal

// Package gdal exposes GDAL drivers, through godal, as geoconform drivers.
// It needs cgo and a GDAL installation and is only built with the gdal
// build tag.
package gdal

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"sort"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/go-logr/logr"

	"github.com/tingold/geoconform"
)

type options struct {
	driverPath string
	log        logr.Logger
}

// Option configures Register.
type Option func(*options)

// WithDriverPath sets GDAL_DRIVER_PATH before drivers are registered, so
// that plugin drivers are found.
func WithDriverPath(path string) Option {
	return func(o *options) { o.driverPath = path }
}

// WithLogger sets the logger used to report skipped drivers.
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.log = l }
}

var registerOnce sync.Once

// Register adds one driver to reg for each GDAL short name in names. Names
// GDAL does not know are skipped, so cases using them fail with
// DriverNotFound. It returns the names that were registered.
func Register(reg *geoconform.Registry, names []string, opts ...Option) ([]string, error) {
	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.driverPath != "" {
		if err := os.Setenv("GDAL_DRIVER_PATH", o.driverPath); err != nil {
			return nil, err
		}
	}
	registerOnce.Do(godal.RegisterAll)

	var registered []string
	for _, name := range names {
		if !Available(name) {
			o.log.Info("gdal driver not available", "driver", name)
			continue
		}
		if err := reg.Register(&Driver{name: name}); err != nil {
			return registered, err
		}
		registered = append(registered, name)
	}
	return registered, nil
}

// Available reports whether GDAL has a raster or vector driver called name.
func Available(name string) bool {
	if _, ok := godal.RasterDriver(godal.DriverName(name)); ok {
		return true
	}
	_, ok := godal.VectorDriver(godal.DriverName(name))
	return ok
}

// Driver opens datasets with a single GDAL driver.
type Driver struct {
	name string
}

func (d *Driver) Name() string { return d.name }

func (d *Driver) Open(ctx context.Context, req geoconform.OpenRequest) (geoconform.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := req.Path
	if req.Subdataset != "" {
		path = d.name + ":" + req.Path + ":" + req.Subdataset
	}
	ds, err := godal.Open(path, godal.Drivers(d.name))
	if err != nil {
		return nil, err
	}
	return &Dataset{ds: ds, bands: ds.Bands(), layers: ds.Layers()}, nil
}

// Dataset wraps an open godal dataset.
type Dataset struct {
	ds     *godal.Dataset
	bands  []godal.Band
	layers []godal.Layer
}

func (d *Dataset) Close() error { return d.ds.Close() }

func (d *Dataset) BandCount() int { return len(d.bands) }

func (d *Dataset) RasterBand(index int) (geoconform.RasterBand, error) {
	if index < 1 || index > len(d.bands) {
		return nil, fmt.Errorf("%w: %d of %d", geoconform.ErrBandIndex, index, len(d.bands))
	}
	return &band{b: d.bands[index-1]}, nil
}

func (d *Dataset) SpatialRefWKT() string {
	return exportWKT(d.ds.SpatialRef())
}

func (d *Dataset) MetadataItem(key string) (string, bool) {
	v, ok := d.ds.Metadatas()[key]
	return v, ok
}

func (d *Dataset) MetadataItemInDomain(domain, key string) (string, bool) {
	v, ok := d.ds.Metadatas(godal.Domain(domain))[key]
	return v, ok
}

func (d *Dataset) LayerCount() int { return len(d.layers) }

func (d *Dataset) Layer(index int) (geoconform.Layer, error) {
	if index < 0 || index >= len(d.layers) {
		return nil, fmt.Errorf("%w: %d of %d", geoconform.ErrLayerIndex, index, len(d.layers))
	}
	return &layer{l: d.layers[index]}, nil
}

func (d *Dataset) LayerByName(name string) (geoconform.Layer, error) {
	l := d.ds.LayerByName(name)
	if l == nil {
		return nil, fmt.Errorf("%w: layer %q", geoconform.ErrNotFound, name)
	}
	return &layer{l: *l}, nil
}

func exportWKT(sr *godal.SpatialRef) string {
	if sr == nil {
		return ""
	}
	wkt, err := sr.WKT()
	if err != nil {
		return ""
	}
	return wkt
}

type band struct {
	b godal.Band
}

func (b *band) Size() (int, int) {
	s := b.b.Structure()
	return s.SizeX, s.SizeY
}

func (b *band) ReadRow(row int, dst []float64) error {
	return b.b.Read(0, row, dst, len(dst), 1)
}

func (b *band) NoDataValue() (float64, bool) { return b.b.NoData() }

// ColorInterpretation maps GDAL's GCI values, which share the numbering of
// geoconform.ColorInterp up to Black.
func (b *band) ColorInterpretation() geoconform.ColorInterp {
	ci := int(b.b.ColorInterp())
	if ci < 0 || ci > int(geoconform.ColorBlack) {
		return geoconform.ColorUndefined
	}
	return geoconform.ColorInterp(ci)
}

func (b *band) MetadataItem(key string) (string, bool) {
	v, ok := b.b.Metadatas()[key]
	return v, ok
}

func (b *band) MetadataItemInDomain(domain, key string) (string, bool) {
	v, ok := b.b.Metadatas(godal.Domain(domain))[key]
	return v, ok
}

// layer adapts a godal layer. godal does not expose feature ids, so ids
// are the 0-based read positions.
type layer struct {
	l    godal.Layer
	next int64
}

func (l *layer) Name() string { return l.l.Name() }

func (l *layer) FeatureCount() (int, error) { return l.l.FeatureCount() }

func (l *layer) ResetReading() {
	l.l.ResetReading()
	l.next = 0
}

func (l *layer) SpatialRefWKT() string { return exportWKT(l.l.SpatialRef()) }

func (l *layer) NextFeature() (*geoconform.Feature, error) {
	f := l.l.NextFeature()
	if f == nil {
		return nil, geoconform.ErrEndOfLayer
	}
	defer f.Close()
	out, err := convertFeature(f, l.next)
	if err != nil {
		return nil, err
	}
	l.next++
	return out, nil
}

// Feature scans from the first feature and restores the cursor afterwards.
func (l *layer) Feature(fid int64) (*geoconform.Feature, error) {
	if fid < 0 {
		return nil, fmt.Errorf("%w: %d", geoconform.ErrFeatureNotFound, fid)
	}
	pos := l.next
	defer l.seek(pos)

	l.l.ResetReading()
	for i := int64(0); ; i++ {
		f := l.l.NextFeature()
		if f == nil {
			return nil, fmt.Errorf("%w: %d", geoconform.ErrFeatureNotFound, fid)
		}
		if i < fid {
			f.Close()
			continue
		}
		out, err := convertFeature(f, fid)
		f.Close()
		return out, err
	}
}

func (l *layer) seek(pos int64) {
	l.l.ResetReading()
	for l.next = 0; l.next < pos; l.next++ {
		f := l.l.NextFeature()
		if f == nil {
			return
		}
		f.Close()
	}
}

func convertFeature(f *godal.Feature, fid int64) (*geoconform.Feature, error) {
	out := &geoconform.Feature{FID: fid}

	fields := f.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	sort.SliceStable(names, func(i, j int) bool {
		return fieldIndex(fields[names[i]]) < fieldIndex(fields[names[j]])
	})
	for _, name := range names {
		out.Fields = append(out.Fields, geoconform.Field{Name: name, Value: fieldValue(fields[name])})
	}

	g := f.Geometry()
	if g.Empty() {
		return out, nil
	}
	wkb, err := g.WKB()
	if err != nil {
		return nil, fmt.Errorf("feature %d: %w", fid, err)
	}
	if out.Geometry, err = geoconform.FromWKB(wkb); err != nil {
		return nil, fmt.Errorf("feature %d: %w", fid, err)
	}
	return out, nil
}

// fieldIndex is the position of fld in the feature definition. godal keeps
// it unexported and hands fields out as a map.
func fieldIndex(fld godal.Field) int64 {
	v := reflect.ValueOf(fld).FieldByName("index")
	if !v.IsValid() || !v.CanInt() {
		return 0
	}
	return v.Int()
}

func fieldValue(fld godal.Field) geoconform.FieldValue {
	if !fld.IsSet() {
		return geoconform.NullValue()
	}
	switch fld.Type() {
	case godal.FTInt, godal.FTInt64:
		return geoconform.IntValue(fld.Int())
	case godal.FTReal:
		return geoconform.RealValue(fld.Float())
	case godal.FTString:
		return geoconform.StringValue(fld.String())
	case godal.FTBinary:
		return geoconform.BinaryValue(fld.Bytes())
	case godal.FTDate, godal.FTTime, godal.FTDateTime:
		if t := fld.DateTime(); t != nil {
			return geoconform.StringValue(t.Format("2006/01/02 15:04:05"))
		}
	}
	return geoconform.NullValue()
}
