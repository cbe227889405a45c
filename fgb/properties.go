package fgb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/geoconform"
)

// inferSchema analyzes geojson properties and infers an ordered schema.
// Columns are sorted by name.
func inferSchema(features []*geojson.Feature) []Column {
	columnTypes := make(map[string]flattypes.ColumnType)
	for _, f := range features {
		if f == nil {
			continue
		}
		for name, value := range f.Properties {
			if value == nil {
				if _, exists := columnTypes[name]; !exists {
					columnTypes[name] = flattypes.ColumnTypeString
				}
				continue
			}
			inferredType := inferColumnType(value)
			if existingType, exists := columnTypes[name]; exists {
				columnTypes[name] = promoteColumnType(existingType, inferredType)
			} else {
				columnTypes[name] = inferredType
			}
		}
	}

	names := make([]string, 0, len(columnTypes))
	for name := range columnTypes {
		names = append(names, name)
	}
	sort.Strings(names)

	schema := make([]Column, 0, len(names))
	for _, name := range names {
		schema = append(schema, Column{Name: name, Title: name, Type: columnTypes[name], Nullable: true})
	}
	return schema
}

// inferColumnType determines the FlatGeobuf column type for a Go value.
func inferColumnType(value interface{}) flattypes.ColumnType {
	if value == nil {
		return flattypes.ColumnTypeString // Default to string for nil
	}

	switch v := value.(type) {
	case bool:
		return flattypes.ColumnTypeBool
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return flattypes.ColumnTypeInt
		}
		return flattypes.ColumnTypeLong
	case int8, int16, int32:
		return flattypes.ColumnTypeInt
	case int64:
		return flattypes.ColumnTypeLong
	case uint, uint8, uint16, uint32:
		return flattypes.ColumnTypeUInt
	case uint64:
		return flattypes.ColumnTypeULong
	case float32:
		return flattypes.ColumnTypeFloat
	case float64:
		return flattypes.ColumnTypeDouble
	case string:
		return flattypes.ColumnTypeString
	case []byte:
		return flattypes.ColumnTypeBinary
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return flattypes.ColumnTypeLong
		}
		return flattypes.ColumnTypeDouble
	default:
		return flattypes.ColumnTypeJson
	}
}

// promoteColumnType returns the more general type when there's a conflict.
func promoteColumnType(a, b flattypes.ColumnType) flattypes.ColumnType {
	if a == b {
		return a
	}
	if a == flattypes.ColumnTypeJson || b == flattypes.ColumnTypeJson {
		return flattypes.ColumnTypeJson
	}
	if a == flattypes.ColumnTypeString || b == flattypes.ColumnTypeString {
		return flattypes.ColumnTypeString
	}

	rankA, okA := numericRank[a]
	rankB, okB := numericRank[b]
	if okA && okB {
		if rankA > rankB {
			return a
		}
		return b
	}
	return flattypes.ColumnTypeJson
}

var numericRank = map[flattypes.ColumnType]int{
	flattypes.ColumnTypeBool:   0,
	flattypes.ColumnTypeByte:   1,
	flattypes.ColumnTypeUByte:  2,
	flattypes.ColumnTypeShort:  3,
	flattypes.ColumnTypeUShort: 4,
	flattypes.ColumnTypeInt:    5,
	flattypes.ColumnTypeUInt:   6,
	flattypes.ColumnTypeLong:   7,
	flattypes.ColumnTypeULong:  8,
	flattypes.ColumnTypeFloat:  9,
	flattypes.ColumnTypeDouble: 10,
}

// fieldValueOf converts a geojson property value to a field value of the
// column type.
func fieldValueOf(value interface{}, colType flattypes.ColumnType) (geoconform.FieldValue, error) {
	if value == nil {
		return geoconform.NullValue(), nil
	}
	switch colType {
	case flattypes.ColumnTypeBool:
		if b, ok := value.(bool); ok {
			if b {
				return geoconform.IntValue(1), nil
			}
			return geoconform.IntValue(0), nil
		}
		if v, ok := toInt64(value); ok {
			return geoconform.IntValue(v), nil
		}
	case flattypes.ColumnTypeFloat, flattypes.ColumnTypeDouble:
		if v, ok := toFloat64(value); ok {
			return geoconform.RealValue(v), nil
		}
	case flattypes.ColumnTypeBinary:
		if b, ok := value.([]byte); ok {
			return geoconform.BinaryValue(b), nil
		}
	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeJson:
		return geoconform.StringValue(toString(value)), nil
	default:
		if v, ok := toInt64(value); ok {
			return geoconform.IntValue(v), nil
		}
	}
	return geoconform.FieldValue{}, fmt.Errorf("%w: %T for %s", ErrPropertyMismatch, value, flattypes.EnumNamesColumnType[colType])
}

// buildColumns creates the writer columns of schema.
func buildColumns(schema []Column, builder *flatbuffers.Builder) []*writer.Column {
	columns := make([]*writer.Column, 0, len(schema))
	for _, c := range schema {
		col := writer.NewColumn(builder)
		col.SetName(c.Name)
		title := c.Title
		if title == "" {
			title = c.Name // JS readers expect a title
		}
		col.SetTitle(title)
		col.SetType(c.Type)
		col.SetNullable(c.Nullable)
		columns = append(columns, col)
	}
	return columns
}

// encodeProperties encodes fields in schema order. Each value is written as
// its uint16 column index followed by the value; null and absent fields are
// omitted.
func encodeProperties(fields []geoconform.Field, schema []Column, index map[string]int) ([]byte, error) {
	values := make([]*geoconform.FieldValue, len(schema))
	for i := range fields {
		col, ok := index[fields[i].Name]
		if !ok {
			return nil, fmt.Errorf("%w: field %q not in schema", ErrInvalidColumn, fields[i].Name)
		}
		values[col] = &fields[i].Value
	}

	var buf bytes.Buffer
	var scratch [8]byte
	for col, v := range values {
		if v == nil || v.IsNull() {
			continue
		}
		binary.LittleEndian.PutUint16(scratch[:2], uint16(col))
		buf.Write(scratch[:2])
		if err := writePropertyValue(&buf, *v, schema[col]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// writePropertyValue writes a single property value in the column's
// encoding.
func writePropertyValue(buf *bytes.Buffer, v geoconform.FieldValue, col Column) error {
	var b [8]byte
	switch col.Type {
	case flattypes.ColumnTypeBool:
		if v.AsInt() != 0 {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case flattypes.ColumnTypeByte, flattypes.ColumnTypeUByte:
		buf.WriteByte(byte(v.AsInt()))
	case flattypes.ColumnTypeShort, flattypes.ColumnTypeUShort:
		binary.LittleEndian.PutUint16(b[:2], uint16(v.AsInt()))
		buf.Write(b[:2])
	case flattypes.ColumnTypeInt, flattypes.ColumnTypeUInt:
		binary.LittleEndian.PutUint32(b[:4], uint32(v.AsInt()))
		buf.Write(b[:4])
	case flattypes.ColumnTypeLong, flattypes.ColumnTypeULong:
		binary.LittleEndian.PutUint64(b[:], uint64(v.AsInt()))
		buf.Write(b[:])
	case flattypes.ColumnTypeFloat:
		binary.LittleEndian.PutUint32(b[:4], math.Float32bits(float32(v.AsFloat())))
		buf.Write(b[:4])
	case flattypes.ColumnTypeDouble:
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.AsFloat()))
		buf.Write(b[:])
	case flattypes.ColumnTypeString, flattypes.ColumnTypeJson, flattypes.ColumnTypeDateTime:
		s := v.AsString()
		binary.LittleEndian.PutUint32(b[:4], uint32(len(s)))
		buf.Write(b[:4])
		buf.WriteString(s)
	case flattypes.ColumnTypeBinary:
		if v.Type != geoconform.FieldBinary {
			return fmt.Errorf("%w: %s value for Binary column %q", ErrPropertyMismatch, v.Type, col.Name)
		}
		binary.LittleEndian.PutUint32(b[:4], uint32(len(v.Bytes)))
		buf.Write(b[:4])
		buf.Write(v.Bytes)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidColumn, col.Type)
	}
	return nil
}

// readColumns returns the schema stored in a header.
func readColumns(h *flattypes.Header) []Column {
	n := h.ColumnsLength()
	schema := make([]Column, 0, n)
	for i := 0; i < n; i++ {
		var col flattypes.Column
		if h.Columns(&col, i) {
			schema = append(schema, Column{
				Name:     string(col.Name()),
				Type:     col.Type(),
				Title:    string(col.Title()),
				Nullable: col.Nullable(),
			})
		}
	}
	return schema
}

// decodeProperties decodes a property buffer into one field per schema
// column, in schema order. Columns without a value are null.
func decodeProperties(data []byte, schema []Column) ([]geoconform.Field, error) {
	fields := make([]geoconform.Field, len(schema))
	for i, c := range schema {
		fields[i] = geoconform.Field{Name: c.Name, Value: geoconform.NullValue()}
	}

	offset := 0
	for offset < len(data) {
		if offset+2 > len(data) {
			return nil, fmt.Errorf("%w: truncated column index", ErrInvalidData)
		}
		col := int(binary.LittleEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if col >= len(schema) {
			return nil, fmt.Errorf("%w: column index %d of %d", ErrInvalidData, col, len(schema))
		}
		value, n, err := readPropertyValue(data[offset:], schema[col].Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", schema[col].Name, err)
		}
		offset += n
		fields[col].Value = value
	}
	return fields, nil
}

// propertySizes is the width of the fixed-size column types.
var propertySizes = map[flattypes.ColumnType]int{
	flattypes.ColumnTypeBool:   1,
	flattypes.ColumnTypeByte:   1,
	flattypes.ColumnTypeUByte:  1,
	flattypes.ColumnTypeShort:  2,
	flattypes.ColumnTypeUShort: 2,
	flattypes.ColumnTypeInt:    4,
	flattypes.ColumnTypeUInt:   4,
	flattypes.ColumnTypeLong:   8,
	flattypes.ColumnTypeULong:  8,
	flattypes.ColumnTypeFloat:  4,
	flattypes.ColumnTypeDouble: 8,
}

// readPropertyValue reads a property value from the buffer.
// Returns the value and number of bytes read.
func readPropertyValue(data []byte, colType flattypes.ColumnType) (geoconform.FieldValue, int, error) {
	if size, ok := propertySizes[colType]; ok {
		if len(data) < size {
			return geoconform.FieldValue{}, 0, fmt.Errorf("%w: truncated %s", ErrInvalidData, flattypes.EnumNamesColumnType[colType])
		}
		return fixedValue(data[:size], colType), size, nil
	}

	switch colType {
	case flattypes.ColumnTypeString, flattypes.ColumnTypeJson, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeBinary:
		if len(data) < 4 {
			return geoconform.FieldValue{}, 0, fmt.Errorf("%w: truncated length", ErrInvalidData)
		}
		length := int(binary.LittleEndian.Uint32(data[:4]))
		if len(data)-4 < length {
			return geoconform.FieldValue{}, 0, fmt.Errorf("%w: value of %d bytes exceeds buffer", ErrInvalidData, length)
		}
		raw := data[4 : 4+length]
		if colType == flattypes.ColumnTypeBinary {
			return geoconform.BinaryValue(append([]byte(nil), raw...)), 4 + length, nil
		}
		return geoconform.StringValue(string(raw)), 4 + length, nil
	}
	return geoconform.FieldValue{}, 0, fmt.Errorf("%w: %d", ErrInvalidColumn, colType)
}

func fixedValue(b []byte, colType flattypes.ColumnType) geoconform.FieldValue {
	switch colType {
	case flattypes.ColumnTypeBool, flattypes.ColumnTypeUByte:
		return geoconform.IntValue(int64(b[0]))
	case flattypes.ColumnTypeByte:
		return geoconform.IntValue(int64(int8(b[0])))
	case flattypes.ColumnTypeShort:
		return geoconform.IntValue(int64(int16(binary.LittleEndian.Uint16(b))))
	case flattypes.ColumnTypeUShort:
		return geoconform.IntValue(int64(binary.LittleEndian.Uint16(b)))
	case flattypes.ColumnTypeInt:
		return geoconform.IntValue(int64(int32(binary.LittleEndian.Uint32(b))))
	case flattypes.ColumnTypeUInt:
		return geoconform.IntValue(int64(binary.LittleEndian.Uint32(b)))
	case flattypes.ColumnTypeLong, flattypes.ColumnTypeULong:
		return geoconform.IntValue(int64(binary.LittleEndian.Uint64(b)))
	case flattypes.ColumnTypeFloat:
		return geoconform.RealValue(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
	default:
		return geoconform.RealValue(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	}
}

// Type conversion helpers

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float32:
		return int64(val), true
	case float64:
		return int64(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, true
		}
		if f, err := val.Float64(); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		// For other types, use JSON encoding
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
