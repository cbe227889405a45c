// Package fixture writes the sample datasets used by the conformance
// scenarios and the fixture command: a small GRASS-style elevation raster
// and a three layer vector dataset of country boundaries.
package fixture

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/geoconform"
	"github.com/tingold/geoconform/cellgrid"
	"github.com/tingold/geoconform/fgb"
)

// Raster fixture.
const (
	ElevationCols     = 53
	ElevationRows     = 82
	ElevationChecksum = 41487
	ElevationMin      = 3.0
	ElevationMax      = 27.0

	// ElevationPath is the raster header path relative to the fixture root.
	ElevationPath = "small_grass_dataset/demomapset/cellhd/elevation"
)

// ElevationSRS is the projection stored with the elevation raster.
const ElevationSRS = `PROJCS["UTM Zone 18, Northern Hemisphere",
    GEOGCS["grs80",
        DATUM["North_American_Datum_1983",
            SPHEROID["Geodetic_Reference_System_1980",6378137,298.257222101],
            TOWGS84[0.000,0.000,0.000]],
        PRIMEM["Greenwich",0],
        UNIT["degree",0.0174532925199433]],
    PROJECTION["Transverse_Mercator"],
    PARAMETER["latitude_of_origin",0],
    PARAMETER["central_meridian",-75],
    PARAMETER["scale_factor",0.9996],
    PARAMETER["false_easting",500000],
    PARAMETER["false_northing",0],
    UNIT["meter",1]]`

// ElevationValues returns the cells of the elevation raster in row-major
// order. Zero cells are null.
func ElevationValues() []float64 {
	vals := make([]float64, 0, ElevationCols*ElevationRows)
	for y := 0; y < ElevationRows; y++ {
		for x := 0; x < ElevationCols; x++ {
			if (x+2*y)%11 == 0 {
				vals = append(vals, 0)
				continue
			}
			vals = append(vals, float64(3+(3*x+7*y)%25))
		}
	}
	return vals
}

// WriteRaster writes the elevation raster below root and returns the path
// of its header.
func WriteRaster(root string) (string, error) {
	location := filepath.Join(root, "small_grass_dataset")
	null := 0.0
	_, err := cellgrid.Write(filepath.Join(location, "demomapset"), &cellgrid.Raster{
		Name: "elevation",
		Header: cellgrid.Header{
			Rows:        ElevationRows,
			Cols:        ElevationCols,
			Type:        cellgrid.BYTE,
			Compression: cellgrid.CompressionZSTD,
		},
		Values: ElevationValues(),
		Null:   &null,
	})
	if err != nil {
		return "", fmt.Errorf("write elevation: %w", err)
	}
	if err := cellgrid.WriteProjection(location, ElevationSRS); err != nil {
		return "", fmt.Errorf("write projection: %w", err)
	}
	return filepath.Join(root, ElevationPath), nil
}

// Vector fixture.
const (
	// VectorPath is the vector dataset directory relative to the fixture root.
	VectorPath = "vector/country_boundaries"

	CountryLayer     = "country_boundaries"
	CentroidLayer    = "country_centroids"
	CountryCount     = 177
	LuxembourgFID    = 165
	BulgariaPopEst   = 7204687.0
	LuxembourgPopEst = 594130.0
)

const BulgariaWKT = "POLYGON ((22.9523771501665 41.3379938828111,22.8813737321974 41.9992971868503," +
	"22.3805257504246 42.3202595078151,22.5450118344096 42.461362006188,22.4365946794613 42.5803211533239," +
	"22.6048014665713 42.8985187851611,22.9860185075885 43.211161200527,22.5001566911803 43.642814439461," +
	"22.4104464047216 44.0080634629,22.657149692483 44.2349230006613,22.9448323910518 43.8237853053471," +
	"23.3323022803763 43.8970108099047,24.1006791521242 43.7410513372479,25.5692716814269 43.6884447291747," +
	"26.0651587256997 43.9434937607513,27.2423995297409 44.1759860296324,27.9701070492751 43.8124681666752," +
	"28.558081495892 43.7074616562581,28.0390950863847 43.2931716985742,27.673897739378 42.5778923610062," +
	"27.9967204119054 42.0073587102878,27.1357393734905 42.1414848903013,26.1170418637208 41.8269046087246," +
	"26.1061381365072 41.3288988307278,25.1972013689254 41.2344859889305,24.492644891058 41.583896185872," +
	"23.6920736019923 41.3090809189439,22.9523771501665 41.3379938828111))"

const LuxembourgWKT = "POLYGON ((5.67405195478483 49.5294835475575,5.78241743330091 50.0903278672212," +
	"6.04307335778111 50.1280516627942,6.24275109215699 49.9022256536787,6.18632042809418 49.4638028021145," +
	"5.89775923017638 49.4426671413072,5.67405195478483 49.5294835475575))"

var countrySchema = []fgb.Column{
	{Name: "name", Type: flattypes.ColumnTypeString},
	{Name: "iso_a3", Type: flattypes.ColumnTypeString, Nullable: true},
	{Name: "POP_EST", Type: flattypes.ColumnTypeDouble},
}

var borderSchema = []fgb.Column{
	{Name: "left", Type: flattypes.ColumnTypeString},
	{Name: "right", Type: flattypes.ColumnTypeString},
}

// Countries returns the features of the country_boundaries layer. Bulgaria
// is first and Luxembourg is at LuxembourgFID; the others are squares on a
// grid.
func Countries() []geoconform.Feature {
	features := make([]geoconform.Feature, CountryCount)
	for i := range features {
		x := float64(i%20)*2 - 20
		y := float64(i/20)*2 - 10
		features[i] = geoconform.Feature{
			FID: int64(i),
			Fields: []geoconform.Field{
				{Name: "name", Value: geoconform.StringValue(fmt.Sprintf("Country %03d", i))},
				{Name: "POP_EST", Value: geoconform.RealValue(float64(1000 * (i + 1)))},
			},
			Geometry: geoconform.NewPolygon([]geoconform.Coord{
				{X: x, Y: y}, {X: x + 1, Y: y}, {X: x + 1, Y: y + 1}, {X: x, Y: y + 1}, {X: x, Y: y},
			}),
		}
	}
	features[0].Fields = []geoconform.Field{
		{Name: "name", Value: geoconform.StringValue("Bulgaria")},
		{Name: "iso_a3", Value: geoconform.StringValue("BGR")},
		{Name: "POP_EST", Value: geoconform.RealValue(BulgariaPopEst)},
	}
	features[0].Geometry = geoconform.MustParseWKT(BulgariaWKT)
	features[LuxembourgFID].Fields = []geoconform.Field{
		{Name: "name", Value: geoconform.StringValue("Luxembourg")},
		{Name: "iso_a3", Value: geoconform.StringValue("LUX")},
		{Name: "POP_EST", Value: geoconform.RealValue(LuxembourgPopEst)},
	}
	features[LuxembourgFID].Geometry = geoconform.MustParseWKT(LuxembourgWKT)
	return features
}

// centroids is written through the GeoJSON path, its schema inferred.
func centroids() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range []struct {
		name string
		at   orb.Point
	}{
		{"Bulgaria", orb.Point{25.2, 42.7}},
		{"Luxembourg", orb.Point{6.1, 49.8}},
	} {
		f := geojson.NewFeature(c.at)
		f.Properties["name"] = c.name
		fc.Append(f)
	}
	return fc
}

func borders() []geoconform.Feature {
	return []geoconform.Feature{{
		FID: 0,
		Fields: []geoconform.Field{
			{Name: "left", Value: geoconform.StringValue("Bulgaria")},
			{Name: "right", Value: geoconform.StringValue("Romania")},
		},
		Geometry: geoconform.NewLineString(
			geoconform.Coord{X: 22.657149692483, Y: 44.2349230006613},
			geoconform.Coord{X: 22.9448323910518, Y: 43.8237853053471},
			geoconform.Coord{X: 23.3323022803763, Y: 43.8970108099047},
		),
	}}
}

// WriteVector writes the three vector layers below root and returns the
// dataset directory. Layers are written without a spatial index so that
// feature ids follow write order.
func WriteVector(root string) (string, error) {
	dir := filepath.Join(root, VectorPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	layers := []struct {
		name     string
		schema   []fgb.Column
		features []geoconform.Feature
	}{
		{"border_lines", borderSchema, borders()},
		{CountryLayer, countrySchema, Countries()},
	}
	for _, l := range layers {
		err := writeLayer(dir, l.name, func(w io.Writer, opts *fgb.Options) error {
			return fgb.WriteLayer(w, l.schema, l.features, opts)
		})
		if err != nil {
			return "", err
		}
	}
	err := writeLayer(dir, CentroidLayer, func(w io.Writer, opts *fgb.Options) error {
		return fgb.WriteFeatures(w, centroids(), opts)
	})
	if err != nil {
		return "", err
	}
	return dir, nil
}

func writeLayer(dir, name string, write func(io.Writer, *fgb.Options) error) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("write layer %s: %w", name, err)
		}
	}()
	f, err := os.Create(filepath.Join(dir, name+fgb.Ext))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, &fgb.Options{
		Name:         name,
		IncludeIndex: false,
		CRS:          fgb.WGS84(),
	})
}

// SuiteFile is the name of the suite written by WriteAll.
const SuiteFile = "conformance.yaml"

// Suite is a case file whose cases pass against the fixtures. Its paths are
// relative to the fixture root.
//
//go:embed suite.yaml
var Suite []byte

// WriteAll writes both fixtures and the suite below root and returns the
// suite path.
func WriteAll(root string) (string, error) {
	if _, err := WriteRaster(root); err != nil {
		return "", err
	}
	if _, err := WriteVector(root); err != nil {
		return "", err
	}
	path := filepath.Join(root, SuiteFile)
	if err := os.WriteFile(path, Suite, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
