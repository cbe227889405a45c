package fgb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/geoconform"
)

// nodeItemSize is the size of one packed R-tree node: an envelope of four
// float64 and a uint64 offset.
const nodeItemSize = 40

// Reader provides read access to a FlatGeobuf file. Feature offsets are
// indexed when the reader is created, so features can be read in file
// order or by FID, the 0-based position in the file.
type Reader struct {
	fgb      *flatgeobuf.FlatGeoBuf
	data     []byte
	header   *flattypes.Header
	schema   []Column
	offsets  []int // start of each size-prefixed feature
	geomType flattypes.GeometryType
}

// NewReader creates a reader from a file path.
func NewReader(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewReaderFromData(data)
}

// NewReaderFromData creates a reader from byte data.
func NewReaderFromData(data []byte) (*Reader, error) {
	if len(data) < len(magic)+4 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidData, len(data))
	}
	// byte 3 is the major version and byte 7 the patch level
	for _, i := range []int{0, 1, 2, 4, 5, 6} {
		if data[i] != magic[i] {
			return nil, fmt.Errorf("%w: bad magic", ErrInvalidData)
		}
	}
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	h := fgb.Header()
	if h == nil {
		return nil, fmt.Errorf("%w: no header", ErrInvalidData)
	}

	r := &Reader{
		fgb:      fgb,
		data:     data,
		header:   h,
		schema:   readColumns(h),
		geomType: h.GeometryType(),
	}
	if err := r.indexFeatures(); err != nil {
		return nil, err
	}
	return r, nil
}

// indexFeatures records the offset of every feature after the header and
// the optional spatial index.
func (r *Reader) indexFeatures() error {
	headerSize := int(binary.LittleEndian.Uint32(r.data[len(magic):]))
	off := len(magic) + 4 + headerSize
	off += indexSize(r.header.FeaturesCount(), r.header.IndexNodeSize())
	if off > len(r.data) {
		return fmt.Errorf("%w: header and index exceed %d bytes", ErrInvalidData, len(r.data))
	}
	for off < len(r.data) {
		if off+4 > len(r.data) {
			return fmt.Errorf("%w: truncated feature %d", ErrInvalidData, len(r.offsets))
		}
		size := int(binary.LittleEndian.Uint32(r.data[off:]))
		if off+4+size > len(r.data) {
			return fmt.Errorf("%w: feature %d exceeds data", ErrInvalidData, len(r.offsets))
		}
		r.offsets = append(r.offsets, off)
		off += 4 + size
	}
	return nil
}

// indexSize returns the size in bytes of the packed Hilbert R-tree for
// count features.
func indexSize(count uint64, nodeSize uint16) int {
	if nodeSize == 0 || count == 0 {
		return 0
	}
	ns := uint64(nodeSize)
	if ns < 2 {
		ns = 2
	}
	n := count
	numNodes := n
	for {
		n = (n + ns - 1) / ns
		numNodes += n
		if n == 1 {
			break
		}
	}
	return int(numNodes * nodeItemSize)
}

// Header returns metadata about the FlatGeobuf file.
func (r *Reader) Header() *Header {
	h := r.header
	header := &Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
		GeometryType:  geometryTypeName(h.GeometryType()),
	}

	if h.EnvelopeLength() >= 4 {
		header.Envelope = [4]float64{
			h.Envelope(0),
			h.Envelope(1),
			h.Envelope(2),
			h.Envelope(3),
		}
	}

	var crs flattypes.Crs
	if h.Crs(&crs) != nil {
		header.CRS = &CRS{
			Code:        int(crs.Code()),
			Name:        string(crs.Name()),
			Description: string(crs.Description()),
			WKT:         string(crs.Wkt()),
		}
	}

	for _, c := range r.schema {
		header.Columns = append(header.Columns, ColumnInfo{
			Name:     c.Name,
			Type:     flattypes.EnumNamesColumnType[c.Type],
			Title:    c.Title,
			Nullable: c.Nullable,
		})
	}
	return header
}

// Schema returns the ordered property columns.
func (r *Reader) Schema() []Column { return r.schema }

// Len returns the number of features in the file.
func (r *Reader) Len() int { return len(r.offsets) }

// Feature decodes the feature with the given FID.
func (r *Reader) Feature(fid int64) (*geoconform.Feature, error) {
	if fid < 0 || fid >= int64(len(r.offsets)) {
		return nil, fmt.Errorf("%w: %d", geoconform.ErrFeatureNotFound, fid)
	}
	off := r.offsets[fid]
	size := int(binary.LittleEndian.Uint32(r.data[off:]))
	ff := flattypes.GetRootAsFeature(r.data[off+4:off+4+size], 0)

	f := &geoconform.Feature{FID: fid}
	var fg flattypes.Geometry
	if g := ff.Geometry(&fg); g != nil {
		geom, err := geometryFromFGB(g, r.geomType)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", fid, err)
		}
		f.Geometry = geom
	}

	propsLen := ff.PropertiesLength()
	props := make([]byte, propsLen)
	for i := 0; i < propsLen; i++ {
		props[i] = byte(ff.Properties(i))
	}
	fields, err := decodeProperties(props, r.schema)
	if err != nil {
		return nil, fmt.Errorf("feature %d: %w", fid, err)
	}
	f.Fields = fields
	return f, nil
}

// SpatialRefWKT returns the layer CRS as WKT: the stored WKT or a WKT
// description. It is empty when the file has no CRS or names one by code
// only.
func (r *Reader) SpatialRefWKT() string {
	hdr := r.Header()
	if hdr.CRS == nil {
		return ""
	}
	switch {
	case hdr.CRS.WKT != "":
		return hdr.CRS.WKT
	case looksLikeWKT(hdr.CRS.Description):
		return hdr.CRS.Description
	}
	return ""
}

func looksLikeWKT(s string) bool {
	for _, kw := range []string{"PROJCS[", "GEOGCS[", "GEOCCS[", "LOCAL_CS["} {
		if len(s) >= len(kw) && s[:len(kw)] == kw {
			return true
		}
	}
	return false
}

// Search performs a spatial query using the built-in index.
// Returns features whose bounding boxes intersect the query bounds.
func (r *Reader) Search(bounds orb.Bound) (*geojson.FeatureCollection, error) {
	if r.header.IndexNodeSize() == 0 {
		return nil, ErrNoIndex
	}

	features, err := r.fgb.Search(bounds.Min[0], bounds.Min[1], bounds.Max[0], bounds.Max[1])
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, ff := range features {
		f := &geoconform.Feature{FID: -1}
		var fg flattypes.Geometry
		if g := ff.Geometry(&fg); g != nil {
			geom, err := geometryFromFGB(g, r.geomType)
			if err != nil {
				return nil, err
			}
			f.Geometry = geom
		}
		if !f.Geometry.IsEmpty() {
			fc.Append(toGeoJSON(f))
		}
	}

	return fc, nil
}

// CountInBounds counts the features whose envelope intersects bounds,
// through the spatial index when the file has one.
func (r *Reader) CountInBounds(bounds orb.Bound) (int, error) {
	fc, err := r.Search(bounds)
	if err == nil {
		return len(fc.Features), nil
	}
	if !errors.Is(err, ErrNoIndex) {
		return 0, err
	}
	n := 0
	for fid := range r.offsets {
		f, err := r.Feature(int64(fid))
		if err != nil {
			return 0, err
		}
		if f.Geometry.Intersects(bounds) {
			n++
		}
	}
	return n, nil
}

// Close releases the file data.
func (r *Reader) Close() error {
	r.fgb = nil
	r.data = nil
	r.offsets = nil
	return nil
}

func toGeoJSON(f *geoconform.Feature) *geojson.Feature {
	gf := geojson.NewFeature(f.Geometry.ToOrb())
	for _, fld := range f.Fields {
		switch fld.Value.Type {
		case geoconform.FieldInteger:
			gf.Properties[fld.Name] = fld.Value.Int
		case geoconform.FieldReal:
			gf.Properties[fld.Name] = fld.Value.Float
		case geoconform.FieldString:
			gf.Properties[fld.Name] = fld.Value.Str
		case geoconform.FieldBinary:
			gf.Properties[fld.Name] = fld.Value.Bytes
		}
	}
	if f.FID >= 0 {
		gf.ID = f.FID
	}
	return gf
}
