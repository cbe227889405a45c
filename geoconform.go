// Package geoconform verifies that geospatial format drivers report what a
// test expects of a dataset: raster checksums and statistics, coordinate
// reference systems, metadata items, and vector features with their
// geometries and attributes.
//
// Drivers are reached through the interfaces in driver.go and looked up in an
// explicit Registry. A Case opens one dataset, runs its checks in a fixed
// order and stops at the first failure; a Runner runs many cases in parallel.
package geoconform

import (
	"errors"
	"fmt"
)

// Common errors returned by this package.
var (
	ErrDriverNotFound        = errors.New("geoconform: driver not found")
	ErrOpenFailed            = errors.New("geoconform: open failed")
	ErrStatMismatch          = errors.New("geoconform: statistic mismatch")
	ErrMetadataKeyMissing    = errors.New("geoconform: metadata key missing")
	ErrMetadataValueMismatch = errors.New("geoconform: metadata value mismatch")
	ErrGeometryMismatch      = errors.New("geoconform: geometry mismatch")
	ErrAttributeMismatch     = errors.New("geoconform: attribute mismatch")
	ErrSRSMismatch           = errors.New("geoconform: spatial reference mismatch")
	ErrCountMismatch         = errors.New("geoconform: count mismatch")
	ErrNotFound              = errors.New("geoconform: not found")
	ErrCanceled              = errors.New("geoconform: canceled")

	// ErrEndOfLayer is returned by Layer.NextFeature when the cursor is
	// exhausted. It ends iteration and is not a failure.
	ErrEndOfLayer = errors.New("geoconform: end of layer")

	ErrFeatureNotFound  = fmt.Errorf("%w: feature", ErrNotFound)
	ErrBandIndex        = errors.New("geoconform: band index out of range")
	ErrLayerIndex       = errors.New("geoconform: layer index out of range")
	ErrInvalidWKT       = errors.New("geoconform: invalid WKT")
	ErrUnsupportedSRS   = errors.New("geoconform: unsupported spatial reference")
	ErrRegistryFrozen   = errors.New("geoconform: registry is frozen")
	ErrDuplicateDriver  = errors.New("geoconform: driver already registered")
	ErrNoDriverMatched  = errors.New("geoconform: no driver recognized the dataset")
	ErrInvalidCase      = errors.New("geoconform: invalid case")
	ErrNotRasterDataset = errors.New("geoconform: dataset has no raster capability")
	ErrNotVectorDataset = errors.New("geoconform: dataset has no vector capability")
)
