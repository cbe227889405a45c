package cellgrid

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// rowCodec converts rows between float64 values and the packed cell
// encoding of a header.
type rowCodec struct {
	h *Header
}

func (c rowCodec) rowSize() int { return c.h.Cols * c.h.Bytes }

func (c rowCodec) pack(vals []float64, dst []byte) error {
	w := c.h.Bytes
	for i, v := range vals {
		b := dst[i*w : (i+1)*w]
		switch c.h.Type {
		case FCELL:
			binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		case DCELL:
			binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		default:
			if math.IsNaN(v) || v != math.Trunc(v) {
				return fmt.Errorf("%w: %v in %s", ErrValueRange, v, c.h.Type)
			}
			switch w {
			case 1:
				if v < 0 || v > math.MaxUint8 {
					return fmt.Errorf("%w: %v in 1-byte CELL", ErrValueRange, v)
				}
				b[0] = byte(v)
			case 2:
				if v < 0 || v > math.MaxUint16 {
					return fmt.Errorf("%w: %v in 2-byte CELL", ErrValueRange, v)
				}
				binary.LittleEndian.PutUint16(b, uint16(v))
			default:
				if v < math.MinInt32 || v > math.MaxInt32 {
					return fmt.Errorf("%w: %v in CELL", ErrValueRange, v)
				}
				binary.LittleEndian.PutUint32(b, uint32(int32(v)))
			}
		}
	}
	return nil
}

func (c rowCodec) unpack(src []byte, dst []float64) {
	w := c.h.Bytes
	for i := range dst {
		b := src[i*w : (i+1)*w]
		switch {
		case c.h.Type == FCELL:
			dst[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case c.h.Type == DCELL:
			dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
		case w == 1:
			dst[i] = float64(b[0])
		case w == 2:
			dst[i] = float64(binary.LittleEndian.Uint16(b))
		default:
			dst[i] = float64(int32(binary.LittleEndian.Uint32(b)))
		}
	}
}

// compressBlock returns raw compressed with the given codec.
func compressBlock(comp Compression, raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch comp {
	case CompressionNone:
		return raw, nil
	case CompressionZSTD:
		zw, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, err
		}
		w = zw
	case CompressionLZ4:
		w = lz4.NewWriter(&buf)
	case CompressionGZIP:
		w = gzip.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("%w: compression %q", ErrInvalidHeader, comp)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// blockDecoder decompresses row blocks, reusing its decoders.
type blockDecoder struct {
	comp Compression
	zstd *zstd.Decoder
	lz4  *lz4.Reader
	gzip *gzip.Reader
}

func (d *blockDecoder) decode(block, dst []byte) error {
	if d.comp == CompressionNone {
		if len(block) != len(dst) {
			return fmt.Errorf("%w: row of %d bytes, want %d", ErrCorruptCells, len(block), len(dst))
		}
		copy(dst, block)
		return nil
	}
	r, err := d.reader(bytes.NewReader(block))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptCells, err)
	}
	if _, err := io.ReadFull(r, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptCells, err)
	}
	return nil
}

func (d *blockDecoder) reader(r io.Reader) (io.Reader, error) {
	switch d.comp {
	case CompressionZSTD:
		if d.zstd == nil {
			decoder, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			d.zstd = decoder
			return d.zstd, nil
		}
		return d.zstd, d.zstd.Reset(r)
	case CompressionLZ4:
		if d.lz4 == nil {
			d.lz4 = lz4.NewReader(r)
		} else {
			d.lz4.Reset(r)
		}
		return d.lz4, nil
	case CompressionGZIP:
		if d.gzip == nil {
			zr, err := gzip.NewReader(r)
			if err != nil {
				return nil, err
			}
			d.gzip = zr
			return d.gzip, nil
		}
		return d.gzip, d.gzip.Reset(r)
	}
	return nil, fmt.Errorf("compression %q", d.comp)
}

func (d *blockDecoder) close() {
	if d.zstd != nil {
		d.zstd.Close()
	}
}
