package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/tingold/geoconform"
)

var (
	passLabel    = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel    = color.New(color.FgRed, color.Bold).SprintFunc()
	abortedLabel = color.New(color.FgYellow).SprintFunc()
)

func stateLabel(s geoconform.State) string {
	switch s {
	case geoconform.StatePassed:
		return passLabel("PASS")
	case geoconform.StateFailed:
		return failLabel("FAIL")
	case geoconform.StateAborted:
		return abortedLabel("ABORTED")
	}
	return s.String()
}

// WriteTable prints one row per result, followed by the failure details
// and a summary line.
func WriteTable(w io.Writer, run *Run) error {
	header := []string{"case", "driver", "status", "checks", "duration", "failure"}
	rows := make([][]string, 0, len(run.Results))
	for _, r := range run.Results {
		kind, _ := failureOf(r)
		rows = append(rows, []string{
			r.CaseID,
			r.Driver,
			stateLabel(r.State),
			strconv.Itoa(r.Checks),
			r.Duration.Round(time.Microsecond).String(),
			kind,
		})
	}

	buf := &bytes.Buffer{}
	tw := tablewriter.NewWriter(buf)
	tw.SetBorder(false)
	tw.SetAutoWrapText(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetHeader(header)
	tw.AppendBulk(rows)
	tw.Render()
	// tablewriter indents every line by one space.
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		if _, err := fmt.Fprintln(w, strings.TrimPrefix(scanner.Text(), " ")); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	for _, r := range run.Results {
		if r.Failure == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", r.CaseID, r.Failure.Error()); err != nil {
			return err
		}
	}

	s := run.Summary()
	line := fmt.Sprintf("%d cases: %d passed, %d failed, %d aborted", s.Total, s.Passed, s.Failed, s.Aborted)
	if s.OK() {
		line = passLabel(line)
	} else {
		line = failLabel(line)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
