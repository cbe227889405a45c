package geoconform

import (
	"context"
	"fmt"
	"math"
)

var checksumPrimes = [...]int32{7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43}

// checksummer accumulates GDAL's 16-bit image checksum. Pixels must be fed
// in row-major order starting at row 0; the prime cursor runs over the whole
// image, not per row.
type checksummer struct {
	sum   int32
	prime int
}

func (c *checksummer) add(values []float64) {
	for _, v := range values {
		c.sum += checksumValue(v) % checksumPrimes[c.prime]
		c.sum &= 0xffff
		c.prime++
		if c.prime == len(checksumPrimes) {
			c.prime = 0
		}
	}
}

func (c *checksummer) value() int { return int(c.sum) }

// checksumValue maps a decoded pixel to the integer folded into the
// checksum. Integral values map to themselves.
func checksumValue(v float64) int32 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.MinInt32
	}
	v += 0.5
	switch {
	case v < -math.MaxInt32:
		return -math.MaxInt32
	case v > math.MaxInt32:
		return math.MaxInt32
	}
	return int32(math.Floor(v))
}

// ChecksumValues returns the checksum of a row-major pixel buffer.
func ChecksumValues(values []float64) int {
	var c checksummer
	c.add(values)
	return c.value()
}

// Checksum computes the checksum of the full band extent. Two bands with the
// same decoded pixel values have the same checksum whatever their storage
// encoding. The result is in [0, 65535].
func Checksum(ctx context.Context, band RasterBand) (int, error) {
	var c checksummer
	err := scanBand(ctx, band, func(row []float64) { c.add(row) })
	if err != nil {
		return 0, err
	}
	return c.value(), nil
}

// scanBand reads every row of band in order and hands it to fn. The slice is
// reused between calls.
func scanBand(ctx context.Context, band RasterBand, fn func(row []float64)) error {
	cols, rows := band.Size()
	if cols <= 0 || rows <= 0 {
		return nil
	}
	buf := make([]float64, cols)
	for y := 0; y < rows; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := band.ReadRow(y, buf); err != nil {
			return fmt.Errorf("geoconform: read row %d: %w", y, err)
		}
		fn(buf)
	}
	return nil
}
