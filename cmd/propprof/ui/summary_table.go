package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"propprof/internal/profiler"
)

// SimpleTable renders static rows without a bubbletea program; the --pretty
// output uses it, and the browse model reuses its builders for row data.
type SimpleTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewSimpleTable creates a table with the given title and headers.
func NewSimpleTable(title string, headers []string) *SimpleTable {
	return &SimpleTable{
		Title:   title,
		Headers: headers,
		Rows:    make([][]string, 0),
	}
}

// AddRow appends one row.
func (t *SimpleTable) AddRow(row ...string) {
	t.Rows = append(t.Rows, row)
}

// View renders the table using the provided styles.
func (t *SimpleTable) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	var sb strings.Builder

	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	// Column widths track the widest cell, padded because lipgloss widths
	// include padding.
	colWidths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		colWidths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(colWidths) {
				if w := lipgloss.Width(cell); w > colWidths[i] {
					colWidths[i] = w
				}
			}
		}
	}
	for i := range colWidths {
		colWidths[i] += 2
	}

	headerStyle := styles.Bold.Padding(0, 1)
	rowStyle := styles.Body.Padding(0, 1)
	sepStyle := styles.Muted

	for i, h := range t.Headers {
		sb.WriteString(headerStyle.Width(colWidths[i]).Render(h))
		if i < len(t.Headers)-1 {
			sb.WriteString(sepStyle.Render("|"))
		}
	}
	sb.WriteString("\n")

	totalWidth := len(t.Headers) - 1
	for _, w := range colWidths {
		totalWidth += w
	}
	sb.WriteString(sepStyle.Render(strings.Repeat("-", totalWidth)) + "\n")

	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(colWidths) {
				sb.WriteString(rowStyle.Width(colWidths[i]).Render(cell))
				if i < len(row)-1 {
					sb.WriteString(sepStyle.Render("|"))
				}
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// ConstraintTable builds the per-constraint summary table for a recorder.
func ConstraintTable(rec *profiler.Recorder) *SimpleTable {
	t := NewSimpleTable("Constraints", []string{"Constraint", "Fails", "Initial us", "Rules", "Invocations", "Total rule us"})
	for _, id := range rec.ConstraintIDs() {
		cs := rec.ConstraintSummary(id)
		t.AddRow(
			id,
			fmt.Sprintf("%d", cs.Failures),
			fmt.Sprintf("%d", cs.InitialPropagationUS),
			fmt.Sprintf("%d", cs.Rules),
			fmt.Sprintf("%d", cs.RuleInvocations),
			fmt.Sprintf("%d", cs.TotalRuleRuntimeUS),
		)
	}
	return t
}

// RuleTable builds the per-rule table for one constraint.
func RuleTable(rec *profiler.Recorder, constraintID string) *SimpleTable {
	t := NewSimpleTable("Rules of "+constraintID, []string{"Rule", "Invocations", "Fails", "Total us", "Mean", "Median", "Stddev"})
	for _, id := range rec.RuleIDs(constraintID) {
		rs := rec.RuleSummary(id)
		t.AddRow(
			id,
			fmt.Sprintf("%d", rs.Invocations),
			fmt.Sprintf("%d", rs.Failures),
			fmt.Sprintf("%d", rs.TotalRuntimeUS),
			fmt.Sprintf("%.2f", rs.MeanUS),
			fmt.Sprintf("%.2f", rs.MedianUS),
			fmt.Sprintf("%.2f", rs.StdDevUS),
		)
	}
	return t
}

// RenderSummary renders the constraint table followed by each constraint's
// rule table; the styled counterpart of the canonical overview text.
func RenderSummary(rec *profiler.Recorder, styles Styles) string {
	var sb strings.Builder
	sb.WriteString(ConstraintTable(rec).View(styles))
	for _, id := range rec.ConstraintIDs() {
		sb.WriteString(RuleTable(rec, id).View(styles))
	}
	return sb.String()
}
