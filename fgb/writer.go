package fgb

import (
	"fmt"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/geoconform"
)

// WriteFeatures writes a FeatureCollection to FlatGeobuf format. The schema
// is inferred from the properties, columns sorted by name.
func WriteFeatures(w io.Writer, fc *geojson.FeatureCollection, opts *Options) error {
	if fc == nil || len(fc.Features) == 0 {
		return ErrNilGeometry
	}

	schema := inferSchema(fc.Features)
	features := make([]geoconform.Feature, 0, len(fc.Features))
	for i, gf := range fc.Features {
		if gf == nil {
			continue
		}
		f := geoconform.Feature{FID: int64(i)}
		g, err := geoconform.FromOrb(gf.Geometry)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		f.Geometry = g
		for _, col := range schema {
			v, ok := gf.Properties[col.Name]
			if !ok {
				continue
			}
			fv, err := fieldValueOf(v, col.Type)
			if err != nil {
				return fmt.Errorf("feature %d: %w", i, err)
			}
			f.Fields = append(f.Fields, geoconform.Field{Name: col.Name, Value: fv})
		}
		features = append(features, f)
	}
	return WriteLayer(w, schema, features, opts)
}

// WriteLayer writes features with an explicit schema. Every field of a
// feature must name a schema column; features without geometry are kept,
// so the file position of each feature matches its position in features
// when opts.IncludeIndex is false.
func WriteLayer(w io.Writer, schema []Column, features []geoconform.Feature, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	if len(features) == 0 {
		return ErrNoFeatures
	}

	index := make(map[string]int, len(schema))
	for i, c := range schema {
		if _, dup := index[c.Name]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidColumn, c.Name)
		}
		index[c.Name] = i
	}

	geoms := make([]*geoconform.Geometry, len(features))
	for i := range features {
		geoms[i] = features[i].Geometry
	}
	geomType := layerGeometryType(geoms)

	// Generate cannot report errors, so features are encoded first.
	encoded := make([]*writer.Feature, 0, len(features))
	for i := range features {
		f, err := encodeFeature(&features[i], schema, index)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		encoded = append(encoded, f)
	}

	builder := flatbuffers.NewBuilder(4096)
	header := writer.NewHeader(builder)
	header.SetGeometryType(geomType)
	if opts.Name != "" {
		header.SetName(opts.Name)
	}
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}
	if len(schema) > 0 {
		header.SetColumns(buildColumns(schema, builder))
	}
	if opts.CRS != nil {
		header.SetCrs(buildCrs(opts.CRS, builder))
	}

	gen := &featureGenerator{features: encoded}
	fgbWriter := writer.NewWriter(header, opts.IncludeIndex, gen, nil)
	_, err := fgbWriter.Write(w)
	return err
}

func buildCrs(c *CRS, builder *flatbuffers.Builder) *writer.Crs {
	crs := writer.NewCrs(builder)
	crs.SetOrg("EPSG")
	if c.Code > 0 {
		crs.SetCode(int32(c.Code))
	}
	if c.Name != "" {
		crs.SetName(c.Name)
	}
	switch {
	case c.Description != "":
		crs.SetDescription(c.Description)
	case c.WKT != "":
		// the WKT travels in the description
		crs.SetDescription(c.WKT)
	}
	return crs
}

func encodeFeature(f *geoconform.Feature, schema []Column, index map[string]int) (*writer.Feature, error) {
	builder := flatbuffers.NewBuilder(1024)
	feature := writer.NewFeature(builder)
	if f.Geometry == nil {
		// A geometry without a builder encodes as an absent field.
		feature.SetGeometry(&writer.Geometry{})
	} else {
		g, err := geometryToFGB(f.Geometry, builder)
		if err != nil {
			return nil, err
		}
		feature.SetGeometry(g)
	}
	if len(f.Fields) > 0 {
		props, err := encodeProperties(f.Fields, schema, index)
		if err != nil {
			return nil, err
		}
		if len(props) > 0 {
			feature.SetProperties(props)
		}
	}
	return feature, nil
}

// featureGenerator hands pre-encoded features to the writer in order.
type featureGenerator struct {
	features []*writer.Feature
	index    int
}

func (g *featureGenerator) Generate() *writer.Feature {
	if g.index >= len(g.features) {
		return nil
	}
	f := g.features[g.index]
	g.index++
	return f
}

// geometryTypeName returns the FlatGeobuf name of t.
func geometryTypeName(t flattypes.GeometryType) string {
	return flattypes.EnumNamesGeometryType[t]
}
