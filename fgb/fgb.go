// Package fgb reads and writes FlatGeobuf files and exposes them as
// geoconform vector datasets. A .fgb file is a dataset with one layer; a
// directory is a dataset whose layers are its .fgb files in name order.
package fgb

import (
	"errors"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
)

// Common errors returned by this package.
var (
	ErrNilGeometry      = errors.New("fgb: nil geometry")
	ErrUnsupportedType  = errors.New("fgb: unsupported geometry type")
	ErrInvalidData      = errors.New("fgb: invalid data")
	ErrNoIndex          = errors.New("fgb: file has no spatial index")
	ErrInvalidColumn    = errors.New("fgb: invalid column type")
	ErrPropertyMismatch = errors.New("fgb: property type mismatch")
	ErrNoFeatures       = errors.New("fgb: no features to write")
)

// magic is the file signature of FlatGeobuf version 3.
var magic = [8]byte{0x66, 0x67, 0x62, 0x03, 0x66, 0x67, 0x62, 0x00}

// CRS represents a coordinate reference system.
type CRS struct {
	Code        int    // EPSG code (e.g., 4326 for WGS84)
	Name        string // CRS name
	Description string // CRS description
	WKT         string // Well-Known Text representation
}

// WGS84WKT is the WKT of EPSG:4326.
const WGS84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],` +
	`PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`

// WGS84 returns the standard WGS84 CRS (EPSG:4326).
func WGS84() *CRS {
	return &CRS{
		Code: 4326,
		Name: "WGS 84",
		WKT:  WGS84WKT,
	}
}

// Options configures FlatGeobuf writing.
type Options struct {
	Name         string // Layer name
	Description  string // Layer description
	IncludeIndex bool   // Include spatial index; features are then reordered
	CRS          *CRS   // Coordinate reference system (optional)
}

// DefaultOptions returns default options for writing FlatGeobuf files.
func DefaultOptions() *Options {
	return &Options{
		IncludeIndex: true,
	}
}

// ColumnType names a property column type.
type ColumnType = flattypes.ColumnType

// Column is one entry of a layer schema. Schemas are ordered: the column
// index stored with each property value is the position in the schema.
type Column struct {
	Name     string
	Type     ColumnType
	Title    string
	Nullable bool
}

// ColumnInfo describes a property column in a FlatGeobuf file.
type ColumnInfo struct {
	Name        string // Column name
	Type        string // Column type ("Bool", "Int", "Long", "Double", "String", "Json", etc.)
	Title       string // Column title (human-readable)
	Description string // Column description
	Nullable    bool   // Whether the column can contain null values
}

// Header contains metadata about a FlatGeobuf file.
type Header struct {
	Name          string       // Layer name
	Description   string       // Layer description
	GeometryType  string       // Geometry type ("Point", "Polygon", "Unknown", etc.)
	FeaturesCount uint64       // Number of features declared by the header
	Envelope      [4]float64   // Bounding box [minX, minY, maxX, maxY]
	CRS           *CRS         // Coordinate reference system
	HasIndex      bool         // Whether the file has a spatial index
	Columns       []ColumnInfo // Property column schema
}
