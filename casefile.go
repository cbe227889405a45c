package geoconform

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

type suiteFile struct {
	Cases []caseFile `yaml:"cases"`
}

type caseFile struct {
	ID            string         `yaml:"id"`
	Driver        string         `yaml:"driver"`
	Path          string         `yaml:"path"`
	RequireDriver bool           `yaml:"require_driver"`
	BandCount     *int           `yaml:"band_count"`
	LayerCount    *int           `yaml:"layer_count"`
	SRS           string         `yaml:"srs"`
	Metadata      orderedStrings `yaml:"metadata"`
	Bands         []bandFile     `yaml:"bands"`
	Layers        []layerFile    `yaml:"layers"`
}

type bandFile struct {
	Index       int            `yaml:"index"`
	Checksum    *int           `yaml:"checksum"`
	NoData      *noDataFile    `yaml:"nodata"`
	Minimum     *float64       `yaml:"minimum"`
	Maximum     *float64       `yaml:"maximum"`
	ColorInterp *ColorInterp   `yaml:"color_interp"`
	Metadata    orderedStrings `yaml:"metadata"`
}

type layerFile struct {
	Name          string             `yaml:"name"`
	Index         int                `yaml:"index"`
	FeatureCount  *int               `yaml:"feature_count"`
	SRS           string             `yaml:"srs"`
	SpatialFilter *spatialFilterFile `yaml:"spatial_filter"`
	Features      []featureFile      `yaml:"features"`
	MissingFIDs   []int64            `yaml:"missing_fids"`
}

// spatialFilterFile is a rectangle given as [minx, miny, maxx, maxy].
type spatialFilterFile struct {
	BBox  []float64 `yaml:"bbox"`
	Count int       `yaml:"count"`
}

func (s *spatialFilterFile) toFilter() (*SpatialFilter, error) {
	if len(s.BBox) != 4 {
		return nil, fmt.Errorf("spatial_filter bbox needs 4 numbers, got %d", len(s.BBox))
	}
	return &SpatialFilter{
		Bounds: orb.Bound{Min: orb.Point{s.BBox[0], s.BBox[1]}, Max: orb.Point{s.BBox[2], s.BBox[3]}},
		Count:  s.Count,
	}, nil
}

type featureFile struct {
	Next              bool           `yaml:"next"`
	FID               *int64         `yaml:"fid"`
	Fields            orderedFields  `yaml:"fields"`
	FieldTolerance    float64        `yaml:"field_tolerance"`
	Geometry          *string        `yaml:"geometry"`
	NullGeometry      bool           `yaml:"null_geometry"`
	GeometryTolerance *toleranceFile `yaml:"geometry_tolerance"`
}

// noDataFile accepts a number, "nan", or "none" for a band without no-data.
type noDataFile struct {
	exp NoDataExpectation
}

func (n *noDataFile) UnmarshalYAML(node *yaml.Node) error {
	v := strings.ToLower(strings.TrimSpace(node.Value))
	switch v {
	case "none":
		n.exp = ExpectNoNoData()
		return nil
	case "nan", ".nan":
		n.exp = ExpectNoData(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("line %d: nodata must be a number or none: %q", node.Line, node.Value)
	}
	n.exp = ExpectNoData(f)
	return nil
}

// toleranceFile accepts a number, "default" or "literal". A literal
// tolerance is derived from the precision of the geometry text.
type toleranceFile struct {
	value   float64
	literal bool
}

func (t *toleranceFile) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(node.Value) {
	case "default":
		t.value = DefaultGeometryTolerance
		return nil
	case "literal":
		t.literal = true
		return nil
	}
	f, err := strconv.ParseFloat(node.Value, 64)
	if err != nil || f < 0 {
		return fmt.Errorf("line %d: geometry_tolerance must be a non-negative number, default or literal: %q", node.Line, node.Value)
	}
	t.value = f
	return nil
}

// orderedStrings keeps the document order of a string mapping.
type orderedStrings []MetadataExpectation

func (o *orderedStrings) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: metadata %q must be a scalar", v.Line, k.Value)
		}
		*o = append(*o, MetadataExpectation{Key: k.Value, Value: v.Value})
	}
	return nil
}

// orderedFields keeps the document order of expected attributes. The YAML
// type of each value selects the comparison.
type orderedFields []FieldExpectation

func (o *orderedFields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		val, err := fieldValueFromNode(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", k.Value, err)
		}
		*o = append(*o, FieldExpectation{Name: k.Value, Value: val})
	}
	return nil
}

func fieldValueFromNode(n *yaml.Node) (FieldValue, error) {
	if n.Kind != yaml.ScalarNode {
		return FieldValue{}, fmt.Errorf("line %d: value must be a scalar", n.Line)
	}
	switch n.ShortTag() {
	case "!!null":
		return NullValue(), nil
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return FieldValue{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return IntValue(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return FieldValue{}, err
		}
		return RealValue(f), nil
	}
	return StringValue(n.Value), nil
}

// LoadSuite reads a YAML suite file. Relative dataset paths are resolved
// against the directory of the file.
func LoadSuite(path string) ([]*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cases, err := ParseSuite(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// ParseSuite decodes a YAML suite. baseDir resolves relative dataset paths;
// an empty baseDir leaves them unchanged.
func ParseSuite(data []byte, baseDir string) ([]*Case, error) {
	var sf suiteFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCase, err)
	}
	cases := make([]*Case, 0, len(sf.Cases))
	seen := make(map[string]bool, len(sf.Cases))
	for i, cf := range sf.Cases {
		c, err := cf.toCase(i, baseDir)
		if err != nil {
			return nil, err
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("%w: duplicate case id %q", ErrInvalidCase, c.ID)
		}
		seen[c.ID] = true
		if err := c.Validate(); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func (cf *caseFile) toCase(i int, baseDir string) (*Case, error) {
	id := cf.ID
	if id == "" {
		id = "case-" + strconv.Itoa(i+1)
	}
	e := Expectation{
		Driver:        cf.Driver,
		Path:          resolvePath(cf.Path, baseDir),
		RequireDriver: cf.RequireDriver,
		BandCount:     cf.BandCount,
		LayerCount:    cf.LayerCount,
		SRS:           cf.SRS,
		Metadata:      cf.Metadata,
	}
	for _, b := range cf.Bands {
		be := BandExpectation{
			Index:       b.Index,
			Checksum:    b.Checksum,
			Minimum:     b.Minimum,
			Maximum:     b.Maximum,
			ColorInterp: b.ColorInterp,
			Metadata:    b.Metadata,
		}
		if b.NoData != nil {
			be.NoData = b.NoData.exp
		}
		e.Bands = append(e.Bands, be)
	}
	for _, l := range cf.Layers {
		le := LayerExpectation{
			Name:         l.Name,
			Index:        l.Index,
			FeatureCount: l.FeatureCount,
			SRS:          l.SRS,
			MissingFIDs:  l.MissingFIDs,
		}
		if l.SpatialFilter != nil {
			sf, err := l.SpatialFilter.toFilter()
			if err != nil {
				return nil, fmt.Errorf("%w: case %s %s: %v", ErrInvalidCase, id, le.scope(), err)
			}
			le.SpatialFilter = sf
		}
		for j, f := range l.Features {
			fe, err := f.toExpectation()
			if err != nil {
				return nil, fmt.Errorf("%w: case %s layer %s feature %d: %v", ErrInvalidCase, id, le.scope(), j, err)
			}
			le.Features = append(le.Features, fe)
		}
		e.Layers = append(e.Layers, le)
	}
	return &Case{ID: id, Expect: e}, nil
}

func (f *featureFile) toExpectation() (FeatureExpectation, error) {
	if f.Next == (f.FID != nil) {
		return FeatureExpectation{}, fmt.Errorf("exactly one of next and fid must be set")
	}
	fe := FeatureExpectation{FID: f.FID}
	for _, fld := range f.Fields {
		fld.Tolerance = f.FieldTolerance
		fe.Fields = append(fe.Fields, fld)
	}
	switch {
	case f.NullGeometry && f.Geometry != nil:
		return fe, fmt.Errorf("geometry and null_geometry are exclusive")
	case f.NullGeometry:
		fe.Geometry = &GeometryExpectation{}
	case f.Geometry != nil:
		g := &GeometryExpectation{WKT: strings.TrimSpace(*f.Geometry)}
		if f.GeometryTolerance != nil {
			tol := f.GeometryTolerance.value
			if f.GeometryTolerance.literal {
				tol = ToleranceFromWKT(g.WKT)
			}
			g.Tolerance = &tol
		}
		fe.Geometry = g
	}
	return fe, nil
}

// resolvePath joins a relative path, keeping any DRIVER: prefix and
// subdataset suffix, onto baseDir.
func resolvePath(p, baseDir string) string {
	if baseDir == "" || p == "" {
		return p
	}
	dp := ParseDatasetPath(p)
	if filepath.IsAbs(dp.Path) {
		return p
	}
	dp.Path = filepath.Join(baseDir, dp.Path)
	return dp.String()
}
