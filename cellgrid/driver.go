package cellgrid

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tingold/geoconform"
)

// Option configures a Driver.
type Option func(*Driver)

// WithName registers the driver under name instead of DriverName.
func WithName(name string) Option {
	return func(d *Driver) { d.name = name }
}

// Driver opens cell grid rasters. It keeps no per-dataset state.
type Driver struct {
	name string
}

// New returns a cell grid driver.
func New(opts ...Option) *Driver {
	d := &Driver{name: DriverName}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string { return d.name }

// Location identifies one raster inside a location/mapset tree.
type Location struct {
	Mapset string // directory of the mapset
	Name   string
}

// Root returns the location directory holding the mapset.
func (l Location) Root() string { return filepath.Dir(l.Mapset) }

func (l Location) path(kind string) string { return filepath.Join(l.Mapset, kind, l.Name) }

// ResolvePath accepts either the cellhd file of a raster or the form
// <location>/<mapset>/<name>.
func ResolvePath(path string) (Location, error) {
	path = filepath.Clean(path)
	dir, name := filepath.Split(path)
	dir = filepath.Clean(dir)
	if filepath.Base(dir) == headerDir {
		loc := Location{Mapset: filepath.Dir(dir), Name: name}
		if fileExists(loc.path(headerDir)) {
			return loc, nil
		}
	} else {
		loc := Location{Mapset: dir, Name: name}
		if fileExists(loc.path(headerDir)) {
			return loc, nil
		}
	}
	return Location{}, fmt.Errorf("%w: %s", ErrNotCellGrid, path)
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

func (d *Driver) Open(ctx context.Context, req geoconform.OpenRequest) (geoconform.Dataset, error) {
	loc, err := ResolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return OpenLocation(loc)
}

// Dataset is an opened cell grid: a single band raster.
type Dataset struct {
	loc  Location
	hdr  *Header
	srs  string
	band *band
	f    *os.File
}

// OpenLocation opens the raster at loc.
func OpenLocation(loc Location) (*Dataset, error) {
	hdr, err := readHeader(loc.path(headerDir))
	if err != nil {
		return nil, err
	}
	rules, hasColors, err := readColorRules(loc.path(colorDir))
	if err != nil {
		return nil, err
	}
	srs := hdr.Projection
	if srs == "" {
		b, err := os.ReadFile(filepath.Join(loc.Root(), permanent, projFile))
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		srs = strings.TrimSpace(string(b))
	}

	f, err := os.Open(loc.path(cellDir))
	if err != nil {
		return nil, err
	}
	offsets, err := indexRows(f, hdr.Rows)
	if err != nil {
		f.Close()
		return nil, err
	}

	ci := geoconform.ColorGray
	if hasColors {
		ci = geoconform.ColorPalette
	}
	if hdr.ColorInterp != "" {
		if ci, err = geoconform.ParseColorInterp(hdr.ColorInterp); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
		}
	}
	md := colorMetadata(rules, hasColors)
	for k, v := range hdr.Metadata {
		if _, ok := md[k]; !ok {
			md[k] = v
		}
	}

	ds := &Dataset{loc: loc, hdr: hdr, srs: srs, f: f}
	ds.band = &band{
		hdr:      hdr,
		f:        f,
		offsets:  offsets,
		codec:    rowCodec{h: hdr},
		dec:      blockDecoder{comp: hdr.Compression},
		raw:      make([]byte, hdr.Cols*hdr.Bytes),
		ci:       ci,
		metadata: md,
	}
	return ds, nil
}

// indexRows returns the offset of each row block, followed by the end of
// the last block.
func indexRows(f *os.File, rows int) ([]int64, error) {
	offsets := make([]int64, 0, rows+1)
	var off int64
	var lb [4]byte
	for i := 0; i < rows; i++ {
		if _, err := f.ReadAt(lb[:], off); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: %d of %d rows", ErrCorruptCells, i, rows)
			}
			return nil, err
		}
		offsets = append(offsets, off)
		off += 4 + int64(binary.LittleEndian.Uint32(lb[:]))
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() != off {
		return nil, fmt.Errorf("%w: %d bytes, blocks end at %d", ErrCorruptCells, fi.Size(), off)
	}
	return append(offsets, off), nil
}

// Header returns the parsed header.
func (ds *Dataset) Header() Header { return *ds.hdr }

func (ds *Dataset) Close() error {
	ds.band.dec.close()
	return ds.f.Close()
}

func (ds *Dataset) BandCount() int { return 1 }

func (ds *Dataset) RasterBand(index int) (geoconform.RasterBand, error) {
	if index != 1 {
		return nil, fmt.Errorf("%w: %d", geoconform.ErrBandIndex, index)
	}
	if ds.hdr.Range != nil {
		return &rangedBand{ds.band}, nil
	}
	return ds.band, nil
}

func (ds *Dataset) SpatialRefWKT() string { return ds.srs }

// MetadataItem reports the raster name and mapset.
func (ds *Dataset) MetadataItem(key string) (string, bool) {
	switch key {
	case "NAME":
		return ds.loc.Name, true
	case "MAPSET":
		return filepath.Base(ds.loc.Mapset), true
	case "LOCATION":
		return filepath.Base(ds.loc.Root()), true
	}
	return "", false
}

type band struct {
	hdr      *Header
	f        *os.File
	offsets  []int64
	codec    rowCodec
	dec      blockDecoder
	raw      []byte
	block    []byte
	ci       geoconform.ColorInterp
	metadata map[string]string
}

func (b *band) Size() (int, int) { return b.hdr.Cols, b.hdr.Rows }

func (b *band) ReadRow(row int, dst []float64) error {
	if row < 0 || row >= b.hdr.Rows {
		return fmt.Errorf("cellgrid: row %d out of range", row)
	}
	if len(dst) < b.hdr.Cols {
		return fmt.Errorf("cellgrid: row buffer of %d, want %d", len(dst), b.hdr.Cols)
	}
	start, end := b.offsets[row]+4, b.offsets[row+1]
	if n := int(end - start); cap(b.block) < n {
		b.block = make([]byte, n)
	} else {
		b.block = b.block[:n]
	}
	if _, err := b.f.ReadAt(b.block, start); err != nil {
		return err
	}
	if err := b.dec.decode(b.block, b.raw); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	b.codec.unpack(b.raw, dst[:b.hdr.Cols])
	return nil
}

func (b *band) NoDataValue() (float64, bool) { return b.hdr.noData(), true }

func (b *band) ColorInterpretation() geoconform.ColorInterp { return b.ci }

func (b *band) MetadataItem(key string) (string, bool) {
	v, ok := b.metadata[key]
	return v, ok
}

type rangedBand struct{ *band }

func (b *rangedBand) Extrema() (float64, float64, bool) {
	return b.hdr.Range.Min, b.hdr.Range.Max, true
}
