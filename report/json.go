package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/tingold/geoconform"
)

type jsonRun struct {
	ID         int64        `json:"id,omitempty"`
	Suites     []string     `json:"suites,omitempty"`
	Started    time.Time    `json:"started"`
	DurationMS float64      `json:"duration_ms"`
	Summary    jsonSummary  `json:"summary"`
	Error      string       `json:"error,omitempty"`
	Results    []jsonResult `json:"results"`
}

type jsonSummary struct {
	Total   int  `json:"total"`
	Passed  int  `json:"passed"`
	Failed  int  `json:"failed"`
	Aborted int  `json:"aborted"`
	OK      bool `json:"ok"`
}

type jsonResult struct {
	Case       string           `json:"case"`
	Driver     string           `json:"driver,omitempty"`
	Path       string           `json:"path"`
	State      geoconform.State `json:"state"`
	Reached    geoconform.State `json:"reached"`
	Checks     int              `json:"checks"`
	DurationMS float64          `json:"duration_ms"`
	Failure    *jsonFailure     `json:"failure,omitempty"`
}

type jsonFailure struct {
	Kind     geoconform.Kind `json:"kind"`
	Check    string          `json:"check,omitempty"`
	Expected string          `json:"expected,omitempty"`
	Actual   string          `json:"actual,omitempty"`
	Message  string          `json:"message"`
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// WriteJSON writes run as one indented JSON document.
func WriteJSON(w io.Writer, run *Run) error {
	s := run.Summary()
	doc := jsonRun{
		ID:         run.ID,
		Suites:     run.Suites,
		Started:    run.Started.UTC(),
		DurationMS: milliseconds(run.Duration),
		Summary: jsonSummary{
			Total:   s.Total,
			Passed:  s.Passed,
			Failed:  s.Failed,
			Aborted: s.Aborted,
			OK:      s.OK(),
		},
		Results: make([]jsonResult, 0, len(run.Results)),
	}
	if run.Err != nil {
		doc.Error = run.Err.Error()
	}
	for _, r := range run.Results {
		jr := jsonResult{
			Case:       r.CaseID,
			Driver:     r.Driver,
			Path:       r.Path,
			State:      r.State,
			Reached:    r.Reached,
			Checks:     r.Checks,
			DurationMS: milliseconds(r.Duration),
		}
		if f := r.Failure; f != nil {
			jr.Failure = &jsonFailure{
				Kind:     f.Kind,
				Check:    f.Check,
				Expected: f.Expected,
				Actual:   f.Actual,
				Message:  f.Error(),
			}
		}
		doc.Results = append(doc.Results, jr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
