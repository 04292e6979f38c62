package collector

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	trackersdk "testtracker/sdk/go"
)

// Outcome of a buffered record after run finish.
const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
	OutcomeSaved     = "saved"
	OutcomeSkipped   = "skipped"
	OutcomeIgnored   = "ignored"
)

type Row struct {
	Test    string            `json:"test"`
	CaseID  int64             `json:"case_id,omitempty"`
	RunID   int64             `json:"run_id,omitempty"`
	Status  trackersdk.Status `json:"status_id,omitempty"`
	Outcome string            `json:"outcome"`
	Error   string            `json:"error,omitempty"`
}

// Failure is a record that could not be resolved or published.
type Failure struct {
	Test string
	Err  error
}

// Report summarizes one run.
type Report struct {
	BatchID      string
	Published    int
	Failures     []Failure
	Rows         []Row
	ArtifactPath string
}

// Err joins the per-record failures, or returns nil.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		msgs = append(msgs, fmt.Sprintf("%s: %v", f.Test, f.Err))
	}
	return fmt.Errorf("%d result(s) not published: %s", len(r.Failures), strings.Join(msgs, "; "))
}

// Table renders the rows for a log or a terminal.
func (r *Report) Table() string {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Test", "Case", "Run", "Status", "Outcome"})
	for _, row := range r.Rows {
		status := ""
		if row.Status != 0 {
			status = row.Status.String()
		}
		outcome := row.Outcome
		if row.Error != "" {
			outcome += ": " + row.Error
		}
		tw.AppendRow(table.Row{row.Test, idCell(row.CaseID), idCell(row.RunID), status, outcome})
	}
	tw.AppendFooter(table.Row{"", "", "", "published", r.Published})
	return tw.Render()
}

func idCell(id int64) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("C%d", id)
}

// FormatElapsed renders a duration as a service timespan such as "1h 2m 3s".
// Anything under a second is reported as "1s"; the service rejects zero.
func FormatElapsed(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	h, m, s := secs/3600, secs%3600/60, secs%60
	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}

// expandComment fills the {name}, {status} and {elapsed} placeholders.
func expandComment(tmpl, name string, status trackersdk.Status, elapsed string) string {
	if tmpl == "" {
		return ""
	}
	return strings.NewReplacer("{name}", name, "{status}", status.String(), "{elapsed}", elapsed).Replace(tmpl)
}
