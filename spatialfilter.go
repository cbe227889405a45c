package geoconform

import (
	"context"
	"errors"

	"github.com/paulmach/orb"
)

// SpatialFilterer is implemented by layers that can count the features
// inside a rectangle without a full scan, usually through a spatial index.
type SpatialFilterer interface {
	// CountInBounds returns the number of features whose envelope
	// intersects b. Features without geometry are not counted.
	CountInBounds(b orb.Bound) (int, error)
}

// SpatialFilter expects Count features of a layer to have an envelope
// intersecting Bounds, the way a rectangular spatial filter selects them.
type SpatialFilter struct {
	Bounds orb.Bound
	Count  int
}

func formatBound(b orb.Bound) string {
	return "(" + formatFloat(b.Min[0]) + " " + formatFloat(b.Min[1]) + "," +
		formatFloat(b.Max[0]) + " " + formatFloat(b.Max[1]) + ")"
}

// CountInBounds counts the features of layer whose envelope intersects b.
// Layers that are not SpatialFilterers are scanned; their cursor is rewound
// afterwards.
func CountInBounds(ctx context.Context, layer Layer, b orb.Bound) (int, error) {
	if sf, ok := layer.(SpatialFilterer); ok {
		return sf.CountInBounds(b)
	}
	layer.ResetReading()
	defer layer.ResetReading()
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		f, err := layer.NextFeature()
		if errors.Is(err, ErrEndOfLayer) {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		if f.Geometry.Intersects(b) {
			n++
		}
	}
}
