package geoconform_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tingold/geoconform"
	"github.com/tingold/geoconform/mem"
)

// slowDriver holds every Open for delay, or until the context ends when
// delay is zero, and records the peak number of concurrent opens.
type slowDriver struct {
	delay   time.Duration
	running atomic.Int32
	peak    atomic.Int32
}

func (d *slowDriver) Name() string { return "SLOW" }

func (d *slowDriver) Open(ctx context.Context, req geoconform.OpenRequest) (geoconform.Dataset, error) {
	n := d.running.Add(1)
	defer d.running.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if d.delay == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	select {
	case <-time.After(d.delay):
		return nopDataset{}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type nopDataset struct{}

func (nopDataset) Close() error { return nil }

func rasterCases(n int) []*geoconform.Case {
	cases := make([]*geoconform.Case, n)
	for i := range cases {
		cases[i] = &geoconform.Case{
			ID: fmt.Sprintf("case-%02d", i),
			Expect: geoconform.Expectation{
				Driver: "MEM",
				Path:   "grid",
				Bands:  []geoconform.BandExpectation{{Index: 1, Checksum: intPtr(3)}},
			},
		}
	}
	return cases
}

func memGridRegistry() *geoconform.Registry {
	d := mem.New()
	d.Add("grid", &mem.Dataset{Bands: []*mem.Band{mem.NewBand(2, 1, []float64{1, 2})}})
	return geoconform.NewRegistry().MustRegister(d)
}

func TestRunnerOrder(t *testing.T) {
	reg := memGridRegistry()
	cases := rasterCases(20)
	results, err := geoconform.NewRunner(reg, geoconform.WithParallelism(4), geoconform.WithLogger(testr.New(t))).
		Run(context.Background(), cases)
	require.NoError(t, err)
	require.Len(t, results, len(cases))
	for i, res := range results {
		assert.Equal(t, cases[i].ID, res.CaseID)
		assert.True(t, res.Passed(), "%s: %v", res.CaseID, res.Err())
	}
	assert.True(t, reg.Frozen())

	s := geoconform.Summarize(results)
	assert.Equal(t, geoconform.Summary{Total: 20, Passed: 20}, s)
	assert.True(t, s.OK())
}

func TestRunnerParallelism(t *testing.T) {
	drv := &slowDriver{delay: 5 * time.Millisecond}
	reg := geoconform.NewRegistry().MustRegister(drv)
	cases := make([]*geoconform.Case, 8)
	for i := range cases {
		cases[i] = &geoconform.Case{ID: fmt.Sprint(i), Expect: geoconform.Expectation{Driver: "SLOW", Path: "x"}}
	}
	results, err := geoconform.NewRunner(reg, geoconform.WithParallelism(2)).Run(context.Background(), cases)
	require.NoError(t, err)
	assert.True(t, geoconform.Summarize(results).OK())
	assert.LessOrEqual(t, drv.peak.Load(), int32(2))
}

func TestRunnerAbortsOnMissingDriver(t *testing.T) {
	cases := rasterCases(4)
	cases[1].Expect.Driver = "GRASS"

	results, err := geoconform.NewRunner(memGridRegistry(), geoconform.WithParallelism(1)).
		Run(context.Background(), cases)
	require.Error(t, err)
	assert.ErrorIs(t, err, geoconform.ErrDriverNotFound)
	assert.Contains(t, err.Error(), "case-01")

	require.Len(t, results, 4)
	assert.Equal(t, geoconform.StatePassed, results[0].State)
	assert.Equal(t, geoconform.StateFailed, results[1].State)
	assert.Equal(t, geoconform.KindDriverNotFound, results[1].Failure.Kind)
	for _, res := range results[2:] {
		assert.Equal(t, geoconform.StateAborted, res.State, res.CaseID)
		assert.Equal(t, geoconform.KindCanceled, res.Failure.Kind)
	}
	assert.Equal(t, geoconform.Summary{Total: 4, Passed: 1, Failed: 1, Aborted: 2}, geoconform.Summarize(results))
}

func TestRunnerKeepGoing(t *testing.T) {
	cases := rasterCases(4)
	cases[1].Expect.Driver = "GRASS"

	results, err := geoconform.NewRunner(memGridRegistry(),
		geoconform.WithParallelism(1),
		geoconform.WithAbortOnDriverNotFound(false),
	).Run(context.Background(), cases)
	require.NoError(t, err)
	s := geoconform.Summarize(results)
	assert.Equal(t, geoconform.Summary{Total: 4, Passed: 3, Failed: 1}, s)
	assert.False(t, s.OK())
}

func TestRunnerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := geoconform.NewRunner(memGridRegistry()).Run(ctx, rasterCases(3))
	assert.ErrorIs(t, err, context.Canceled)
	for _, res := range results {
		assert.Equal(t, geoconform.StateAborted, res.State)
	}
}

func TestRunnerCaseTimeout(t *testing.T) {
	reg := geoconform.NewRegistry().MustRegister(&slowDriver{})
	cases := []*geoconform.Case{{ID: "hang", Expect: geoconform.Expectation{Driver: "SLOW", Path: "x"}}}
	results, err := geoconform.NewRunner(reg, geoconform.WithCaseTimeout(10*time.Millisecond)).
		Run(context.Background(), cases)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, geoconform.StateFailed, results[0].State)
	assert.Equal(t, geoconform.KindCanceled, results[0].Failure.Kind)
}
