// Package report renders conformance run results as a table or JSON and
// keeps a history of runs in a SQLite database.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tingold/geoconform"
)

// Format selects the output of Write.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat accepts "table" and "json", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("report: unknown format %q", s)
}

// Run is one execution of a set of suites.
type Run struct {
	ID       int64 // set by Store.Save
	Suites   []string
	Started  time.Time
	Duration time.Duration
	Results  []*geoconform.Result
	Err      error // run-level error, e.g. an abort
}

// Summary counts the run's results by state.
func (r *Run) Summary() geoconform.Summary {
	return geoconform.Summarize(r.Results)
}

// Write renders run to w in format f.
func Write(w io.Writer, run *Run, f Format) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, run)
	case FormatTable, "":
		return WriteTable(w, run)
	}
	return fmt.Errorf("report: unknown format %q", f)
}

func failureOf(r *geoconform.Result) (kind, detail string) {
	if r.Failure == nil {
		return "", ""
	}
	return r.Failure.Kind.String(), r.Failure.Error()
}
