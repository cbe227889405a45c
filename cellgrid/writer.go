package cellgrid

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Raster is a grid to be written with Write.
type Raster struct {
	Name   string
	Header Header
	Values []float64 // row-major, Cols*Rows
	// Null marks cells left out of the computed range. It is not written to
	// the header; readers infer nodata from the cell type and range.
	Null  *float64
	Rules []ColorRule // written to colr when not nil
}

// Write stores r in the mapset directory, creating the cellhd, cell and,
// for rasters with rules, colr files. A nil Header.Range is computed from
// the values.
func Write(mapset string, r *Raster) (Location, error) {
	h := r.Header
	if err := h.normalize(); err != nil {
		return Location{}, err
	}
	if len(r.Values) != h.Rows*h.Cols {
		return Location{}, fmt.Errorf("cellgrid: %d values for %dx%d grid", len(r.Values), h.Cols, h.Rows)
	}
	if h.Range == nil {
		h.Range = valueRange(r.Values, r.Null)
	}
	loc := Location{Mapset: mapset, Name: r.Name}
	for _, dir := range []string{headerDir, cellDir} {
		if err := os.MkdirAll(filepath.Join(mapset, dir), 0o755); err != nil {
			return loc, err
		}
	}

	hb, err := yaml.Marshal(&h)
	if err != nil {
		return loc, err
	}
	if err := os.WriteFile(loc.path(headerDir), hb, 0o644); err != nil {
		return loc, err
	}

	var buf bytes.Buffer
	codec := rowCodec{h: &h}
	raw := make([]byte, codec.rowSize())
	var lb [4]byte
	for row := 0; row < h.Rows; row++ {
		if err := codec.pack(r.Values[row*h.Cols:(row+1)*h.Cols], raw); err != nil {
			return loc, fmt.Errorf("row %d: %w", row, err)
		}
		block, err := compressBlock(h.Compression, raw)
		if err != nil {
			return loc, err
		}
		binary.LittleEndian.PutUint32(lb[:], uint32(len(block)))
		buf.Write(lb[:])
		buf.Write(block)
	}
	if err := os.WriteFile(loc.path(cellDir), buf.Bytes(), 0o644); err != nil {
		return loc, err
	}

	if r.Rules != nil {
		if err := os.MkdirAll(filepath.Join(mapset, colorDir), 0o755); err != nil {
			return loc, err
		}
		var sb strings.Builder
		sb.WriteString("% " + r.Name + "\n")
		for _, rule := range r.Rules {
			sb.WriteString(rule.line())
			sb.WriteByte('\n')
		}
		if err := os.WriteFile(loc.path(colorDir), []byte(sb.String()), 0o644); err != nil {
			return loc, err
		}
	}
	return loc, nil
}

// WriteProjection stores the projection shared by every mapset of the
// location directory.
func WriteProjection(location, wkt string) error {
	dir := filepath.Join(location, permanent)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, projFile), []byte(wkt+"\n"), 0o644)
}

func valueRange(vals []float64, null *float64) *Range {
	var rng *Range
	for _, v := range vals {
		if math.IsNaN(v) || (null != nil && v == *null) {
			continue
		}
		if rng == nil {
			rng = &Range{Min: v, Max: v}
			continue
		}
		rng.Min = math.Min(rng.Min, v)
		rng.Max = math.Max(rng.Max, v)
	}
	return rng
}
