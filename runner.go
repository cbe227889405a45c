package geoconform

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// Runner runs cases in parallel against one registry.
type Runner struct {
	reg         *Registry
	parallelism int
	caseTimeout time.Duration
	abortOnMiss bool
	log         logr.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithParallelism bounds the number of cases running at once. Values below
// one select runtime.NumCPU().
func WithParallelism(n int) RunnerOption {
	return func(r *Runner) { r.parallelism = n }
}

// WithCaseTimeout abandons a case after d. Zero disables the timeout.
func WithCaseTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.caseTimeout = d }
}

// WithAbortOnDriverNotFound controls whether the first DriverNotFound
// failure aborts the remaining cases. It is on by default.
func WithAbortOnDriverNotFound(abort bool) RunnerOption {
	return func(r *Runner) { r.abortOnMiss = abort }
}

// WithLogger sets the run logger.
func WithLogger(l logr.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

// NewRunner returns a runner over reg. The registry is frozen.
func NewRunner(reg *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		reg:         reg,
		parallelism: runtime.NumCPU(),
		abortOnMiss: true,
		log:         logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.parallelism < 1 {
		r.parallelism = runtime.NumCPU()
	}
	reg.Freeze()
	return r
}

// Run executes cases and returns one result per case, in input order.
//
// A DriverNotFound failure aborts the run: cases not yet started are
// reported Aborted and Run returns an error wrapping ErrDriverNotFound.
// Cancelling ctx aborts the run the same way and returns ctx.Err().
func (r *Runner) Run(ctx context.Context, cases []*Case) ([]*Result, error) {
	results := make([]*Result, len(cases))
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for i, c := range cases {
		i, c := i, c
		if runCtx.Err() != nil {
			results[i] = abortedResult(c, context.Cause(runCtx))
			continue
		}
		g.Go(func() error {
			if runCtx.Err() != nil {
				results[i] = abortedResult(c, context.Cause(runCtx))
				return nil
			}
			res := r.runCase(runCtx, c)
			results[i] = res
			if r.abortOnMiss && res.Failure != nil && res.Failure.Kind == KindDriverNotFound {
				cancel(fmt.Errorf("%w: %s (case %s)", ErrDriverNotFound, c.Expect.Driver, c.ID))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	if cause := context.Cause(runCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		r.log.Info("run aborted", "reason", cause.Error())
		return results, cause
	}
	return results, nil
}

func (r *Runner) runCase(ctx context.Context, c *Case) *Result {
	if r.caseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.caseTimeout)
		defer cancel()
	}
	log := r.log.WithValues("case", c.ID, "driver", c.Expect.Driver, "path", c.Expect.Path)
	log.V(1).Info("case started")

	res := c.Run(ctx, r.reg)
	if res.Failure != nil {
		log.Info("case failed",
			"kind", res.Failure.Kind.String(),
			"check", res.Failure.Check,
			"expected", res.Failure.Expected,
			"actual", res.Failure.Actual)
	} else {
		log.V(1).Info("case passed", "checks", res.Checks, "duration", res.Duration)
	}
	return res
}
