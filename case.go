package geoconform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Expectation is what a test author expects of one dataset. It is built
// once and not modified while cases run. Nil pointers, empty strings and
// empty slices are not checked.
type Expectation struct {
	Driver        string
	Path          string
	RequireDriver bool // check the driver is registered before opening
	BandCount     *int
	LayerCount    *int
	SRS           string // WKT1
	Metadata      []MetadataExpectation
	Bands         []BandExpectation
	Layers        []LayerExpectation
}

// LayerExpectation lists the checks for one vector layer, found by Name
// or, when Name is empty, by Index.
type LayerExpectation struct {
	Name          string
	Index         int
	FeatureCount  *int
	SRS           string
	SpatialFilter *SpatialFilter
	Features      []FeatureExpectation // checked in order
	MissingFIDs   []int64              // must report not found
}

// FeatureExpectation selects a feature, by FID or as the next feature of
// the layer cursor, and lists its checks.
type FeatureExpectation struct {
	FID      *int64
	Fields   []FieldExpectation // checked in order
	Geometry *GeometryExpectation
}

// Case is one conformance test.
type Case struct {
	ID     string
	Expect Expectation
}

// Validate reports malformed expectations before anything is opened.
func (c *Case) Validate() error {
	e := &c.Expect
	if e.Path == "" {
		return fmt.Errorf("%w: %s: no dataset path", ErrInvalidCase, c.ID)
	}
	if e.RequireDriver && e.Driver == "" {
		return fmt.Errorf("%w: %s: require_driver without driver", ErrInvalidCase, c.ID)
	}
	for _, b := range e.Bands {
		if b.Index < 1 {
			return fmt.Errorf("%w: %s: band index %d", ErrInvalidCase, c.ID, b.Index)
		}
	}
	for _, l := range e.Layers {
		if sf := l.SpatialFilter; sf != nil {
			if b := sf.Bounds; b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || sf.Count < 0 {
				return fmt.Errorf("%w: %s: %s: bad spatial filter", ErrInvalidCase, c.ID, l.scope())
			}
		}
		for _, f := range l.Features {
			if f.Geometry == nil || f.Geometry.WKT == "" {
				continue
			}
			if _, err := ParseWKT(f.Geometry.WKT); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidCase, c.ID, err)
			}
		}
	}
	return nil
}

// Run executes the case against reg. Checks run in a fixed order and the
// first failure ends the case: driver presence, open, dataset checks, band
// checks, then layer and feature checks. The dataset is closed on every path.
func (c *Case) Run(ctx context.Context, reg *Registry) *Result {
	res := &Result{
		CaseID:  c.ID,
		Driver:  c.Expect.Driver,
		Path:    c.Expect.Path,
		State:   StateInit,
		Reached: StateInit,
		Started: time.Now(),
	}
	err := c.run(ctx, reg, res)
	res.Duration = time.Since(res.Started)
	if err != nil {
		res.fail(err)
		return res
	}
	res.Reached = StateChecked
	res.State = StatePassed
	return res
}

func (c *Case) run(ctx context.Context, reg *Registry, res *Result) error {
	if err := c.Validate(); err != nil {
		return &CheckError{Kind: KindInvalidCase, Check: "case", Err: err}
	}
	e := &c.Expect

	if e.RequireDriver {
		res.Checks++
		if _, err := reg.Driver(e.Driver); err != nil {
			return err
		}
	}

	res.Checks++
	ds, err := reg.Open(ctx, e.Driver, e.Path)
	if err != nil {
		return err
	}
	defer ds.Close()
	res.Reached = StateOpened

	steps := []func(context.Context, Dataset, *Result) error{
		e.checkDataset,
		e.checkBands,
		e.checkLayers,
	}
	for _, step := range steps {
		if err := step(ctx, ds, res); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (e *Expectation) checkDataset(ctx context.Context, ds Dataset, res *Result) error {
	if e.BandCount != nil {
		res.Checks++
		n := 0
		if rc, ok := ds.(RasterCapable); ok {
			n = rc.BandCount()
		}
		if n != *e.BandCount {
			return mismatch(KindCountMismatch, "band count", *e.BandCount, n)
		}
	}
	if e.LayerCount != nil {
		res.Checks++
		n := 0
		if vc, ok := ds.(VectorCapable); ok {
			n = vc.LayerCount()
		}
		if n != *e.LayerCount {
			return mismatch(KindCountMismatch, "layer count", *e.LayerCount, n)
		}
	}
	if e.SRS != "" {
		res.Checks++
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := VerifySRS(e.SRS, spatialRefOf(ds)); err != nil {
			return scoped(err, "dataset")
		}
	}
	if len(e.Metadata) > 0 {
		src, ok := ds.(MetadataSource)
		if !ok {
			src = noMetadata{}
		}
		for _, m := range e.Metadata {
			res.Checks++
			if err := VerifyMetadata(src, m.Key, m.Value); err != nil {
				return scoped(err, "dataset")
			}
		}
	}
	return nil
}

func (e *Expectation) checkBands(ctx context.Context, ds Dataset, res *Result) error {
	if len(e.Bands) == 0 {
		return nil
	}
	rc, ok := ds.(RasterCapable)
	for _, be := range e.Bands {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Checks++
		scope := "band " + strconv.Itoa(be.Index)
		if !ok {
			return &CheckError{Kind: KindNotFound, Check: scope, Err: ErrNotRasterDataset}
		}
		band, err := rc.RasterBand(be.Index)
		if err != nil {
			return &CheckError{Kind: KindNotFound, Check: scope, Err: err}
		}
		res.Checks += bandChecks(be) - 1
		if err := VerifyBand(ctx, band, be); err != nil {
			return err
		}
	}
	return nil
}

// bandChecks counts the checks in be, at least one.
func bandChecks(be BandExpectation) int {
	n := len(be.Metadata)
	for _, set := range []bool{be.Checksum != nil, be.NoData.IsSet(), be.Minimum != nil, be.Maximum != nil, be.ColorInterp != nil} {
		if set {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

func (e *Expectation) checkLayers(ctx context.Context, ds Dataset, res *Result) error {
	if len(e.Layers) == 0 {
		return nil
	}
	vc, ok := ds.(VectorCapable)
	for _, le := range e.Layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Checks++
		scope := le.scope()
		if !ok {
			return &CheckError{Kind: KindNotFound, Check: scope, Err: ErrNotVectorDataset}
		}
		var (
			layer Layer
			err   error
		)
		if le.Name != "" {
			layer, err = vc.LayerByName(le.Name)
		} else {
			layer, err = vc.Layer(le.Index)
		}
		if err != nil {
			return &CheckError{Kind: KindNotFound, Check: scope, Err: err}
		}
		if err := le.check(ctx, layer, res); err != nil {
			return scoped(err, scope)
		}
	}
	return nil
}

func (le *LayerExpectation) scope() string {
	if le.Name != "" {
		return "layer " + strconv.Quote(le.Name)
	}
	return "layer " + strconv.Itoa(le.Index)
}

func (le *LayerExpectation) check(ctx context.Context, layer Layer, res *Result) error {
	if le.FeatureCount != nil {
		res.Checks++
		n, err := layer.FeatureCount()
		if err != nil {
			return err
		}
		if n != *le.FeatureCount {
			return mismatch(KindCountMismatch, "feature count", *le.FeatureCount, n)
		}
	}
	if le.SRS != "" {
		res.Checks++
		if err := VerifySRS(le.SRS, spatialRefOf(layer)); err != nil {
			return err
		}
	}
	if sf := le.SpatialFilter; sf != nil {
		res.Checks++
		n, err := CountInBounds(ctx, layer, sf.Bounds)
		if err != nil {
			return err
		}
		if n != sf.Count {
			return mismatch(KindCountMismatch, "spatial filter "+formatBound(sf.Bounds), sf.Count, n)
		}
	}

	layer.ResetReading()
	for i, fe := range le.Features {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.Checks++
		f, label, err := fetchFeature(layer, fe, i)
		if err != nil {
			return err
		}
		for _, fld := range fe.Fields {
			res.Checks++
			if err := VerifyField(f, fld); err != nil {
				return scoped(err, label)
			}
		}
		if fe.Geometry != nil {
			res.Checks++
			if err := VerifyGeometry(f, *fe.Geometry); err != nil {
				return scoped(err, label)
			}
		}
	}

	for _, fid := range le.MissingFIDs {
		res.Checks++
		f, err := layer.Feature(fid)
		switch {
		case errors.Is(err, ErrNotFound):
			continue
		case err != nil:
			return err
		}
		return mismatch(KindCountMismatch, "feature "+strconv.FormatInt(fid, 10), "not found", "fid "+strconv.FormatInt(f.FID, 10))
	}
	return nil
}

// fetchFeature returns the feature selected by fe, the i-th expectation of
// its layer, with a label for messages.
func fetchFeature(layer Layer, fe FeatureExpectation, i int) (*Feature, string, error) {
	if fe.FID != nil {
		label := "feature " + strconv.FormatInt(*fe.FID, 10)
		f, err := layer.Feature(*fe.FID)
		if errors.Is(err, ErrNotFound) {
			return nil, label, &CheckError{Kind: KindNotFound, Check: label, Expected: "feature", Actual: "not found", Err: err}
		}
		return f, label, err
	}
	label := "next feature #" + strconv.Itoa(i)
	f, err := layer.NextFeature()
	if errors.Is(err, ErrEndOfLayer) {
		return nil, label, &CheckError{Kind: KindNotFound, Check: label, Expected: "feature", Actual: "end of layer"}
	}
	return f, label, err
}

func spatialRefOf(v interface{}) string {
	if sr, ok := v.(SpatialReferencer); ok {
		return sr.SpatialRefWKT()
	}
	return ""
}

type noMetadata struct{}

func (noMetadata) MetadataItem(string) (string, bool) { return "", false }
