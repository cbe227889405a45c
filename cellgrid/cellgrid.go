// Package cellgrid reads and writes rasters stored in a GRASS-style
// location/mapset layout:
//
//	<location>/<mapset>/cellhd/<name>   header (YAML)
//	<location>/<mapset>/cell/<name>     row blocks
//	<location>/<mapset>/colr/<name>     optional colour rules
//	<location>/PERMANENT/PROJ_WKT       optional projection
//
// The cell file holds one block per row: a little-endian uint32 length
// followed by the row, compressed as the header says.
package cellgrid

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DriverName is the name the driver registers under by default.
const DriverName = "CELLGRID"

const (
	headerDir = "cellhd"
	cellDir   = "cell"
	colorDir  = "colr"
	permanent = "PERMANENT"
	projFile  = "PROJ_WKT"
)

var (
	ErrNotCellGrid     = errors.New("cellgrid: not a cell grid")
	ErrInvalidHeader   = errors.New("cellgrid: invalid header")
	ErrCorruptCells    = errors.New("cellgrid: corrupt cell data")
	ErrUnsupportedType = errors.New("cellgrid: unsupported cell type")
	ErrValueRange      = errors.New("cellgrid: value out of range for cell type")
)

// CellType is the storage type of the cells.
type CellType string

const (
	CELL  CellType = "CELL"  // integer, Bytes wide
	FCELL CellType = "FCELL" // float32
	DCELL CellType = "DCELL" // float64
	BYTE  CellType = "BYTE"  // CELL stored in one byte
)

// Compression is the per-row block codec.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZSTD Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
	CompressionGZIP Compression = "gzip"
)

// Range is the stored minimum and maximum of the non-null cells.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Header is the content of a cellhd file.
type Header struct {
	Rows        int               `yaml:"rows"`
	Cols        int               `yaml:"cols"`
	Type        CellType          `yaml:"type"`
	Bytes       int               `yaml:"bytes,omitempty"` // CELL width: 1, 2 or 4
	Compression Compression       `yaml:"compression,omitempty"`
	NoData      *float64          `yaml:"nodata,omitempty"` // overrides the inferred value
	Range       *Range            `yaml:"range,omitempty"`
	ColorInterp string            `yaml:"color_interp,omitempty"`
	Projection  string            `yaml:"projection,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
}

func (h *Header) normalize() error {
	if h.Rows <= 0 || h.Cols <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidHeader, h.Cols, h.Rows)
	}
	h.Type = CellType(strings.ToUpper(string(h.Type)))
	switch h.Type {
	case "", CELL:
		h.Type = CELL
		if h.Bytes == 0 {
			h.Bytes = 4
		}
	case BYTE:
		h.Type, h.Bytes = CELL, 1
	case FCELL:
		h.Bytes = 4
	case DCELL:
		h.Bytes = 8
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedType, h.Type)
	}
	if h.Type == CELL && h.Bytes != 1 && h.Bytes != 2 && h.Bytes != 4 {
		return fmt.Errorf("%w: CELL width %d", ErrInvalidHeader, h.Bytes)
	}
	h.Compression = Compression(strings.ToLower(string(h.Compression)))
	switch h.Compression {
	case "":
		h.Compression = CompressionNone
	case CompressionNone, CompressionZSTD, CompressionLZ4, CompressionGZIP:
	default:
		return fmt.Errorf("%w: compression %q", ErrInvalidHeader, h.Compression)
	}
	return nil
}

// noData returns the band's nodata value: the header's when set, otherwise
// the value a GRASS reader would choose for the cell type and range.
func (h *Header) noData() float64 {
	if h.NoData != nil {
		return *h.NoData
	}
	switch {
	case h.Type == FCELL || h.Type == DCELL:
		return math.NaN()
	case h.Bytes == 1:
		switch {
		case h.Range != nil && h.Range.Min > 0:
			return 0
		case h.Range != nil && h.Range.Max < 255:
			return 255
		}
		return 256
	case h.Bytes == 2:
		switch {
		case h.Range != nil && h.Range.Min > 0:
			return 0
		case h.Range != nil && h.Range.Max < 65535:
			return 65535
		}
	}
	return math.MinInt32
}

func readHeader(path string) (*Header, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var h Header
	if err := yaml.Unmarshal(b, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if err := h.normalize(); err != nil {
		return nil, err
	}
	return &h, nil
}
