package ui

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"propprof/internal/profiler"
)

type browseLevel int

const (
	levelConstraints browseLevel = iota
	levelRules
	levelReport
)

// BrowseModel is the interactive view over one replayed trace: a constraint
// table, a per-constraint rule table, and the raw overview text.
type BrowseModel struct {
	path    string
	session string
	rec     *profiler.Recorder

	level      browseLevel
	constraint string // selected constraint while at the rule level

	table    table.Model
	viewport viewport.Model
	styles   Styles

	width  int
	height int
	ready  bool
}

// NewBrowseModel builds the browser for a replayed recorder.
func NewBrowseModel(path, session string, rec *profiler.Recorder) BrowseModel {
	m := BrowseModel{
		path:    path,
		session: session,
		rec:     rec,
		styles:  DefaultStyles(),
		level:   levelConstraints,
	}

	m.table = table.New(
		table.WithColumns(constraintColumns()),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	m.viewport = viewport.New(0, 0)
	m.viewport.SetContent(m.reportText())
	m.refreshRows()
	return m
}

func constraintColumns() []table.Column {
	return []table.Column{
		{Title: "Constraint", Width: 24},
		{Title: "Fails", Width: 6},
		{Title: "Initial us", Width: 12},
		{Title: "Rules", Width: 6},
		{Title: "Invocations", Width: 12},
		{Title: "Total rule us", Width: 14},
	}
}

func ruleColumns() []table.Column {
	return []table.Column{
		{Title: "Rule", Width: 24},
		{Title: "Invocations", Width: 12},
		{Title: "Fails", Width: 6},
		{Title: "Total us", Width: 10},
		{Title: "Mean", Width: 10},
		{Title: "Median", Width: 10},
		{Title: "Stddev", Width: 10},
	}
}

// refreshRows swaps the table to the active level's columns and rows. Row
// data comes from the same builders the --pretty tables use.
func (m *BrowseModel) refreshRows() {
	var src *SimpleTable
	var cols []table.Column

	if m.level == levelRules {
		src = RuleTable(m.rec, m.constraint)
		cols = ruleColumns()
	} else {
		src = ConstraintTable(m.rec)
		cols = constraintColumns()
	}

	rows := make([]table.Row, len(src.Rows))
	for i, r := range src.Rows {
		rows[i] = table.Row(r)
	}
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

func (m BrowseModel) reportText() string {
	var buf bytes.Buffer
	if err := m.rec.RenderReport(&buf); err != nil {
		return fmt.Sprintf("render overview: %v", err)
	}
	return buf.String()
}

// Init initializes the model.
func (m BrowseModel) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.table.SetWidth(msg.Width - 4)
		m.table.SetHeight(msg.Height - 8)
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 8

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.level == levelConstraints {
				if row := m.table.SelectedRow(); len(row) > 0 {
					m.constraint = row[0]
					m.level = levelRules
					m.refreshRows()
				}
			}
		case "esc":
			if m.level != levelConstraints {
				m.level = levelConstraints
				m.refreshRows()
			}
		case "r":
			if m.level == levelReport {
				m.level = levelConstraints
				m.refreshRows()
			} else {
				m.level = levelReport
			}
		}
	}

	var cmd tea.Cmd
	if m.level == levelReport {
		m.viewport, cmd = m.viewport.Update(msg)
	} else {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

// View renders the page.
func (m BrowseModel) View() string {
	if !m.ready {
		return "loading trace..."
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Header.Render("propprof") + " " + m.styles.Title.Render(m.path) + "\n")
	sb.WriteString(m.styles.Subtitle.Render("session "+m.session) + "\n\n")

	switch m.level {
	case levelRules:
		sb.WriteString(m.styles.Bold.Render("Rules of "+m.constraint) + "\n")
		sb.WriteString(m.table.View() + "\n")
		sb.WriteString(m.styles.Footer.Render("esc: back • r: raw overview • q: quit"))
	case levelReport:
		sb.WriteString(m.styles.Bold.Render("Overview") + "\n")
		sb.WriteString(m.viewport.View() + "\n")
		sb.WriteString(m.styles.Footer.Render("esc: back • q: quit"))
	default:
		sb.WriteString(m.styles.Bold.Render("Constraints") + "\n")
		sb.WriteString(m.table.View() + "\n")
		sb.WriteString(m.styles.Footer.Render("enter: rules • r: raw overview • q: quit"))
	}
	return sb.String()
}
