package geoconform

import (
	"errors"
	"strconv"
	"time"
)

// State is a conformance case state.
type State int

const (
	StateInit State = iota
	StateOpened
	StateChecked
	StatePassed
	StateFailed
	StateAborted // not run because the run was aborted
)

var stateNames = [...]string{"Init", "Opened", "Checked", "Passed", "Failed", "Aborted"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether s ends a case.
func (s State) Terminal() bool {
	return s == StatePassed || s == StateFailed || s == StateAborted
}

// Result is the outcome of one case.
type Result struct {
	CaseID   string
	Driver   string
	Path     string
	State    State       // terminal state
	Reached  State       // last non-terminal state reached
	Failure  *CheckError // first failing check; nil unless State is Failed
	Checks   int         // checks started, counting a whole band as started together
	Started  time.Time
	Duration time.Duration
}

// Passed reports whether every check succeeded.
func (r *Result) Passed() bool { return r.State == StatePassed }

// Err returns the failure as an error, or nil.
func (r *Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

func (r *Result) fail(err error) {
	r.State = StateFailed
	var ce *CheckError
	if errors.As(err, &ce) {
		r.Failure = ce
		return
	}
	kind := KindOf(err)
	check := ""
	switch kind {
	case KindNone:
		// Read and decode errors after a successful open.
		kind, check = KindOpenFailed, "read"
	case KindOpenFailed:
		check = "open"
	}
	r.Failure = &CheckError{Kind: kind, Check: check, Err: err}
}

func abortedResult(c *Case, reason error) *Result {
	return &Result{
		CaseID:  c.ID,
		Driver:  c.Expect.Driver,
		Path:    c.Expect.Path,
		State:   StateAborted,
		Reached: StateInit,
		Failure: &CheckError{Kind: KindCanceled, Check: "run aborted", Err: reason},
	}
}

// Summary counts results by terminal state.
type Summary struct {
	Total, Passed, Failed, Aborted int
}

// Summarize counts results by terminal state.
func Summarize(results []*Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.State {
		case StatePassed:
			s.Passed++
		case StateFailed:
			s.Failed++
		case StateAborted:
			s.Aborted++
		}
	}
	return s
}

// OK reports whether every case passed.
func (s Summary) OK() bool { return s.Passed == s.Total }
