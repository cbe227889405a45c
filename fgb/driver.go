package fgb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/tingold/geoconform"
)

// DriverName is the name the driver registers under by default.
const DriverName = "FlatGeobuf"

// Ext is the file extension of FlatGeobuf layers.
const Ext = ".fgb"

// Driver opens .fgb files and directories of them.
type Driver struct {
	name string
}

// NewDriver returns a driver registered as name, or DriverName when name
// is empty.
func NewDriver(name string) *Driver {
	if name == "" {
		name = DriverName
	}
	return &Driver{name: name}
}

func (d *Driver) Name() string { return d.name }

func (d *Driver) Open(ctx context.Context, req geoconform.OpenRequest) (geoconform.Dataset, error) {
	fi, err := os.Stat(req.Path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		if !strings.EqualFold(filepath.Ext(req.Path), Ext) {
			return nil, fmt.Errorf("%w: %s is not a %s file", ErrInvalidData, req.Path, Ext)
		}
		data, err := os.ReadFile(req.Path)
		if err != nil {
			return nil, err
		}
		return OpenData(fileLayerName(req.Path), data)
	}

	entries, err := os.ReadDir(req.Path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			paths = append(paths, filepath.Join(req.Path, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no %s files in %s", ErrInvalidData, Ext, req.Path)
	}
	sort.Strings(paths)

	ds := &Dataset{}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := NewReader(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		ds.layers = append(ds.layers, &layerData{name: layerName(r, p), r: r})
	}
	return ds, nil
}

// OpenData returns a one-layer dataset over an in-memory file. The layer
// takes the header name, or name when the header has none.
func OpenData(name string, data []byte) (*Dataset, error) {
	r, err := NewReaderFromData(data)
	if err != nil {
		return nil, err
	}
	if h := r.Header(); h.Name != "" {
		name = h.Name
	}
	return newDataset(name, r), nil
}

// layerName is the header name, or the file name without extension.
func layerName(r *Reader, path string) string {
	if n := r.Header().Name; n != "" {
		return n
	}
	return fileLayerName(path)
}

func fileLayerName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Dataset is a set of FlatGeobuf layers.
type Dataset struct {
	layers []*layerData
}

type layerData struct {
	name string
	r    *Reader
}

func newDataset(name string, r *Reader) *Dataset {
	return &Dataset{layers: []*layerData{{name: name, r: r}}}
}

func (ds *Dataset) Close() error {
	for _, l := range ds.layers {
		l.r.Close()
	}
	return nil
}

func (ds *Dataset) LayerCount() int { return len(ds.layers) }

func (ds *Dataset) Layer(index int) (geoconform.Layer, error) {
	if index < 0 || index >= len(ds.layers) {
		return nil, fmt.Errorf("%w: %d", geoconform.ErrLayerIndex, index)
	}
	return &Layer{data: ds.layers[index]}, nil
}

func (ds *Dataset) LayerByName(name string) (geoconform.Layer, error) {
	for _, l := range ds.layers {
		if l.name == name {
			return &Layer{data: l}, nil
		}
	}
	return nil, fmt.Errorf("%w: layer %q", geoconform.ErrNotFound, name)
}

// SpatialRefWKT returns the CRS of the first layer.
func (ds *Dataset) SpatialRefWKT() string {
	return ds.layers[0].r.SpatialRefWKT()
}

// MetadataItem exposes the header NAME and DESCRIPTION of a single-layer
// dataset.
func (ds *Dataset) MetadataItem(key string) (string, bool) {
	if len(ds.layers) != 1 {
		return "", false
	}
	h := ds.layers[0].r.Header()
	switch key {
	case "NAME":
		return h.Name, h.Name != ""
	case "DESCRIPTION":
		return h.Description, h.Description != ""
	}
	return "", false
}

// Layer is a cursor over one FlatGeobuf layer.
type Layer struct {
	data *layerData
	next int64
}

func (l *Layer) Name() string { return l.data.name }

func (l *Layer) FeatureCount() (int, error) { return l.data.r.Len(), nil }

func (l *Layer) ResetReading() { l.next = 0 }

func (l *Layer) NextFeature() (*geoconform.Feature, error) {
	if l.next >= int64(l.data.r.Len()) {
		return nil, geoconform.ErrEndOfLayer
	}
	f, err := l.data.r.Feature(l.next)
	if err != nil {
		return nil, err
	}
	l.next++
	return f, nil
}

func (l *Layer) Feature(fid int64) (*geoconform.Feature, error) {
	return l.data.r.Feature(fid)
}

func (l *Layer) SpatialRefWKT() string { return l.data.r.SpatialRefWKT() }

// CountInBounds answers a rectangular spatial filter, using the packed
// R-tree of indexed files.
func (l *Layer) CountInBounds(b orb.Bound) (int, error) {
	return l.data.r.CountInBounds(b)
}

// Schema returns the layer's property columns.
func (l *Layer) Schema() []Column { return l.data.r.Schema() }
