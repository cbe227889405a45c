package fgb

import (
	"bytes"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/geoconform"
)

// writeGeometries writes a layer of geometries without attributes.
func writeGeometries(t *testing.T, geometries []orb.Geometry, opts *Options) []byte {
	t.Helper()
	features := make([]geoconform.Feature, 0, len(geometries))
	for i, og := range geometries {
		g, err := geoconform.FromOrb(og)
		if err != nil {
			t.Fatalf("FromOrb(%d) failed: %v", i, err)
		}
		features = append(features, geoconform.Feature{FID: int64(i), Geometry: g})
	}
	var buf bytes.Buffer
	if err := WriteLayer(&buf, nil, features, opts); err != nil {
		t.Fatalf("WriteLayer failed: %v", err)
	}
	return buf.Bytes()
}

func TestWriteLayer_Points(t *testing.T) {
	data := writeGeometries(t, []orb.Geometry{
		orb.Point{1, 2},
		orb.Point{3, 4},
		orb.Point{5, 6},
	}, nil)

	if len(data) < 8 {
		t.Fatal("output too short")
	}
	for i, b := range magic {
		if data[i] != b {
			t.Errorf("magic byte %d: expected 0x%02x, got 0x%02x", i, b, data[i])
		}
	}
}

func TestWriteLayer_MixedGeometries(t *testing.T) {
	data := writeGeometries(t, []orb.Geometry{
		orb.Point{1, 2},
		orb.LineString{{0, 0}, {1, 1}},
		orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}},
	}, &Options{})

	reader, err := NewReaderFromData(data)
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	if got := reader.Header().GeometryType; got != "Unknown" {
		t.Errorf("expected geometry type 'Unknown', got %q", got)
	}

	expected := []string{
		"POINT (1 2)",
		"LINESTRING (0 0,1 1)",
		"POLYGON ((0 0,1 0,1 1,0 1,0 0))",
	}
	for fid, wkt := range expected {
		f, err := reader.Feature(int64(fid))
		if err != nil {
			t.Fatalf("Feature(%d) failed: %v", fid, err)
		}
		if got := f.Geometry.WKT(); got != wkt {
			t.Errorf("feature %d: expected %s, got %s", fid, wkt, got)
		}
	}
}

func TestWriteLayer_NoFeatures(t *testing.T) {
	err := WriteLayer(&bytes.Buffer{}, nil, nil, nil)
	if err != ErrNoFeatures {
		t.Errorf("expected ErrNoFeatures, got %v", err)
	}
}

func TestWriteLayer_WithOptions(t *testing.T) {
	opts := &Options{
		Name:         "test_layer",
		Description:  "A test layer",
		IncludeIndex: true,
		CRS:          WGS84(),
	}
	data := writeGeometries(t, []orb.Geometry{orb.Point{1, 2}}, opts)

	reader, err := NewReaderFromData(data)
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	header := reader.Header()
	if header.Name != "test_layer" {
		t.Errorf("expected name test_layer, got %q", header.Name)
	}
	if header.Description != "A test layer" {
		t.Errorf("expected description, got %q", header.Description)
	}
	if header.CRS == nil || header.CRS.Code != 4326 {
		t.Fatalf("expected EPSG:4326, got %+v", header.CRS)
	}
	srs, err := geoconform.ParseSRS(reader.SpatialRefWKT())
	if err != nil {
		t.Fatalf("ParseSRS failed: %v", err)
	}
	if srs.Kind != geoconform.SRSGeographic {
		t.Errorf("expected a geographic SRS, got %v", srs.Kind)
	}
}

func TestSpatialRefWKT_CodeOnly(t *testing.T) {
	tests := []struct {
		name string
		crs  *CRS
		want string
	}{
		{"none", nil, ""},
		{"code only", &CRS{Code: 3857, Name: "WGS 84 / Pseudo-Mercator"}, ""},
		{"wkt", WGS84(), WGS84WKT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := writeGeometries(t, []orb.Geometry{orb.Point{1, 2}}, &Options{CRS: tt.crs})
			reader, err := NewReaderFromData(data)
			if err != nil {
				t.Fatalf("NewReaderFromData failed: %v", err)
			}
			if got := reader.SpatialRefWKT(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestWriteFeatures_ComplexGeometries(t *testing.T) {
	fc := geojson.NewFeatureCollection()

	poly := orb.Polygon{
		{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}},
		{{20, 20}, {80, 20}, {80, 80}, {20, 80}, {20, 20}},
	}
	f1 := geojson.NewFeature(poly)
	f1.Properties = geojson.Properties{"type": "polygon_with_hole"}
	fc.Append(f1)

	mpoly := orb.MultiPolygon{
		{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}},
		{{{50, 50}, {60, 50}, {60, 60}, {50, 60}, {50, 50}}},
	}
	f2 := geojson.NewFeature(mpoly)
	f2.Properties = geojson.Properties{"type": "multipolygon"}
	fc.Append(f2)

	mls := orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}, {4, 4}}}
	f3 := geojson.NewFeature(mls)
	f3.Properties = geojson.Properties{"type": "multilinestring"}
	fc.Append(f3)

	var buf bytes.Buffer
	if err := WriteFeatures(&buf, fc, &Options{}); err != nil {
		t.Fatalf("WriteFeatures failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	expected := []string{
		"POLYGON ((0 0,100 0,100 100,0 100,0 0),(20 20,80 20,80 80,20 80,20 20))",
		"MULTIPOLYGON (((0 0,10 0,10 10,0 10,0 0)),((50 50,60 50,60 60,50 60,50 50)))",
		"MULTILINESTRING ((0 0,1 1),(2 2,3 3,4 4))",
	}
	for fid, wkt := range expected {
		f, err := reader.Feature(int64(fid))
		if err != nil {
			t.Fatalf("Feature(%d) failed: %v", fid, err)
		}
		if got := f.Geometry.WKT(); got != wkt {
			t.Errorf("feature %d: expected %s, got %s", fid, wkt, got)
		}
	}
}

func TestWriteFeatures_NilCollection(t *testing.T) {
	err := WriteFeatures(&bytes.Buffer{}, nil, nil)
	if err != ErrNilGeometry {
		t.Errorf("expected ErrNilGeometry, got %v", err)
	}
}

func TestWriteFeatures_EmptyCollection(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	err := WriteFeatures(&bytes.Buffer{}, fc, nil)
	if err != ErrNilGeometry {
		t.Errorf("expected ErrNilGeometry, got %v", err)
	}
}

func TestWriteFeatures_Properties(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{1, 2})
	f.Properties = geojson.Properties{"name": "test", "pop": 12.5}
	fc.Append(f)

	var buf bytes.Buffer
	if err := WriteFeatures(&buf, fc, &Options{Name: "single"}); err != nil {
		t.Fatalf("WriteFeatures failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	schema := reader.Schema()
	if len(schema) != 2 || schema[0].Name != "name" || schema[1].Name != "pop" {
		t.Fatalf("expected columns name, pop; got %+v", schema)
	}
	got, err := reader.Feature(0)
	if err != nil {
		t.Fatalf("Feature(0) failed: %v", err)
	}
	if v, _ := got.Field("name"); v.AsString() != "test" {
		t.Errorf("expected name test, got %q", v.AsString())
	}
	if v, _ := got.Field("pop"); v.Float != 12.5 {
		t.Errorf("expected pop 12.5, got %v", v.Float)
	}
}

func TestWriteLayer_WithoutGeometry(t *testing.T) {
	features := []geoconform.Feature{
		{Geometry: geoconform.NewPoint(1, 2)},
		{},
	}
	for _, indexed := range []bool{false, true} {
		var buf bytes.Buffer
		if err := WriteLayer(&buf, nil, features, &Options{IncludeIndex: indexed}); err != nil {
			t.Fatalf("WriteLayer(index=%v) failed: %v", indexed, err)
		}
		reader, err := NewReaderFromData(buf.Bytes())
		if err != nil {
			t.Fatalf("NewReaderFromData failed: %v", err)
		}
		if reader.Len() != 2 {
			t.Fatalf("expected 2 features, got %d", reader.Len())
		}
		missing := 0
		for fid := int64(0); fid < 2; fid++ {
			f, err := reader.Feature(fid)
			if err != nil {
				t.Fatalf("Feature(%d) failed: %v", fid, err)
			}
			if f.Geometry == nil {
				missing++
			}
		}
		if missing != 1 {
			t.Errorf("index=%v: expected 1 feature without geometry, got %d", indexed, missing)
		}
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts == nil {
		t.Fatal("expected non-nil options")
	}

	if !opts.IncludeIndex {
		t.Error("expected IncludeIndex to be true by default")
	}
}

func TestWGS84(t *testing.T) {
	crs := WGS84()

	if crs.Code != 4326 {
		t.Errorf("expected code 4326, got %d", crs.Code)
	}

	if crs.Name != "WGS 84" {
		t.Errorf("expected name 'WGS 84', got %q", crs.Name)
	}
}
