package geoconform

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Driver opens datasets of one format.
//
// Implementations must not keep per-dataset state on the Driver itself:
// concurrent Open calls for different paths must not interfere.
type Driver interface {
	Name() string
	Open(ctx context.Context, req OpenRequest) (Dataset, error)
}

// OpenRequest carries a parsed dataset reference to a driver.
type OpenRequest struct {
	Path       string // file or directory
	Subdataset string // optional driver-specific component
}

// Dataset is an opened resource. Band and layer counts are resolved when
// Open returns.
type Dataset interface {
	io.Closer
}

// RasterCapable is implemented by datasets with raster bands.
type RasterCapable interface {
	BandCount() int
	// RasterBand returns the band at the 1-based index.
	RasterBand(index int) (RasterBand, error)
}

// VectorCapable is implemented by datasets with vector layers.
type VectorCapable interface {
	LayerCount() int
	// Layer returns the layer at the 0-based index.
	Layer(index int) (Layer, error)
	LayerByName(name string) (Layer, error)
}

// SpatialReferencer is implemented by datasets and layers that carry a
// coordinate reference system. An empty string means none.
type SpatialReferencer interface {
	SpatialRefWKT() string
}

// MetadataSource is implemented by anything exposing metadata items.
type MetadataSource interface {
	MetadataItem(key string) (string, bool)
}

// DomainMetadata exposes metadata items outside the default domain.
type DomainMetadata interface {
	MetadataItemInDomain(domain, key string) (string, bool)
}

// RasterBand is one band of a raster dataset.
type RasterBand interface {
	MetadataSource
	// Size returns the band extent in pixels.
	Size() (cols, rows int)
	// ReadRow decodes row into dst, which has length cols.
	ReadRow(row int, dst []float64) error
	// NoDataValue reports the declared no-data value; ok is false when the
	// band declares none.
	NoDataValue() (value float64, ok bool)
	ColorInterpretation() ColorInterp
}

// ExtremaReporter is implemented by bands that store their minimum and
// maximum. ok is false when the values are not known.
type ExtremaReporter interface {
	Extrema() (min, max float64, ok bool)
}

// Layer is a vector layer with a restartable feature cursor.
type Layer interface {
	Name() string
	FeatureCount() (int, error)
	// ResetReading rewinds the cursor to the first feature.
	ResetReading()
	// NextFeature returns ErrEndOfLayer once the cursor is exhausted.
	NextFeature() (*Feature, error)
	// Feature returns the feature with the given id or ErrFeatureNotFound.
	Feature(fid int64) (*Feature, error)
}

// Feature is one record of a vector layer.
type Feature struct {
	FID      int64
	Fields   []Field
	Geometry *Geometry // nil when the feature has no geometry
}

// Field is a named attribute value.
type Field struct {
	Name  string
	Value FieldValue
}

// Field returns the value of the named field.
func (f *Feature) Field(name string) (FieldValue, bool) {
	for _, fld := range f.Fields {
		if fld.Name == name {
			return fld.Value, true
		}
	}
	return FieldValue{}, false
}

// FieldType is the storage type of a field value.
type FieldType int

const (
	FieldNull FieldType = iota
	FieldInteger
	FieldReal
	FieldString
	FieldBinary
)

var fieldTypeNames = [...]string{"Null", "Integer", "Real", "String", "Binary"}

func (t FieldType) String() string {
	if t < 0 || int(t) >= len(fieldTypeNames) {
		return "FieldType(" + strconv.Itoa(int(t)) + ")"
	}
	return fieldTypeNames[t]
}

// FieldValue is a typed attribute value.
type FieldValue struct {
	Type  FieldType
	Int   int64
	Float float64
	Str   string
	Bytes []byte
}

func IntValue(v int64) FieldValue     { return FieldValue{Type: FieldInteger, Int: v} }
func RealValue(v float64) FieldValue  { return FieldValue{Type: FieldReal, Float: v} }
func StringValue(v string) FieldValue { return FieldValue{Type: FieldString, Str: v} }
func BinaryValue(v []byte) FieldValue { return FieldValue{Type: FieldBinary, Bytes: v} }
func NullValue() FieldValue           { return FieldValue{} }

// IsNull reports whether the field is unset.
func (v FieldValue) IsNull() bool { return v.Type == FieldNull }

// AsString formats the value the way OGR's GetFieldAsString does: integers
// in decimal, reals with 15 significant digits.
func (v FieldValue) AsString() string {
	switch v.Type {
	case FieldInteger:
		return strconv.FormatInt(v.Int, 10)
	case FieldReal:
		return strconv.FormatFloat(v.Float, 'g', 15, 64)
	case FieldString:
		return v.Str
	case FieldBinary:
		return strings.ToUpper(hex.EncodeToString(v.Bytes))
	default:
		return ""
	}
}

// AsFloat converts the value to float64. Strings that do not parse give 0.
func (v FieldValue) AsFloat() float64 {
	switch v.Type {
	case FieldInteger:
		return float64(v.Int)
	case FieldReal:
		return v.Float
	case FieldString:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return f
	default:
		return 0
	}
}

// AsInt converts the value to int64, truncating reals.
func (v FieldValue) AsInt() int64 {
	switch v.Type {
	case FieldInteger:
		return v.Int
	case FieldReal:
		return int64(v.Float)
	case FieldString:
		i, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return int64(v.AsFloat())
		}
		return i
	default:
		return 0
	}
}

func (v FieldValue) String() string {
	if v.IsNull() {
		return "null"
	}
	return v.AsString()
}

// ColorInterp is the colour interpretation of a raster band.
type ColorInterp int

const (
	ColorUndefined ColorInterp = iota
	ColorGray
	ColorPalette
	ColorRed
	ColorGreen
	ColorBlue
	ColorAlpha
	ColorHue
	ColorSaturation
	ColorLightness
	ColorCyan
	ColorMagenta
	ColorYellow
	ColorBlack
)

var colorInterpNames = [...]string{
	"Undefined", "Gray", "Palette", "Red", "Green", "Blue", "Alpha",
	"Hue", "Saturation", "Lightness", "Cyan", "Magenta", "Yellow", "Black",
}

func (c ColorInterp) String() string {
	if c < 0 || int(c) >= len(colorInterpNames) {
		return "ColorInterp(" + strconv.Itoa(int(c)) + ")"
	}
	return colorInterpNames[c]
}

// ParseColorInterp accepts the short names ("Gray"), GDAL constant names
// ("GCI_GrayIndex") and the numeric GDAL values.
func ParseColorInterp(s string) (ColorInterp, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.TrimPrefix(key, "gci_")
	key = strings.TrimSuffix(key, "band")
	key = strings.TrimSuffix(key, "index")
	switch key {
	case "grey":
		return ColorGray, nil
	case "alpha", "undefined", "gray", "palette", "red", "green", "blue",
		"hue", "saturation", "lightness", "cyan", "magenta", "yellow", "black":
		for i, name := range colorInterpNames {
			if strings.EqualFold(name, key) {
				return ColorInterp(i), nil
			}
		}
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 0 && n < len(colorInterpNames) {
		return ColorInterp(n), nil
	}
	return ColorUndefined, fmt.Errorf("geoconform: unknown color interpretation %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c ColorInterp) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ColorInterp) UnmarshalText(text []byte) error {
	v, err := ParseColorInterp(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
