package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/nexusmedic/medhub/internal/resource"
	"github.com/nexusmedic/medhub/pkg/client"
	"github.com/nexusmedic/medhub/pkg/domain"
)

type responsesModel struct {
	client  *client.Client
	log     zerolog.Logger
	reports resource.Resource[[]domain.Report]
	cursor  int
	detail  bool
	width   int
	height  int
}

type reportsLoadedMsg struct {
	ticket  resource.Ticket
	reports []domain.Report
	err     error
}

func newResponsesModel(c *client.Client, log zerolog.Logger) responsesModel {
	return responsesModel{client: c, log: log}
}

func (m responsesModel) load() (responsesModel, tea.Cmd) {
	m.detail = false
	t := m.reports.Begin()
	c := m.client
	return m, func() tea.Msg {
		rs, err := c.ListReports(context.Background())
		return reportsLoadedMsg{ticket: t, reports: rs, err: err}
	}
}

func (m responsesModel) Update(msg tea.Msg) (responsesModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case reportsLoadedMsg:
		if !m.reports.Resolve(msg.ticket, msg.reports, msg.err) {
			return m, nil
		}
		if rs, _ := m.reports.Last(); m.cursor >= len(rs) {
			m.cursor = max(len(rs)-1, 0)
		}
		return m, failed(m.log, "reports", msg.err)

	case tea.KeyMsg:
		rs, _ := m.reports.Last()
		if m.detail {
			switch msg.String() {
			case "esc", "enter", "backspace":
				m.detail = false
			}
			return m, nil
		}
		switch msg.String() {
		case "j", "down":
			if m.cursor < len(rs)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "enter":
			if m.cursor < len(rs) {
				m.detail = true
			}
		case "r":
			return m.load()
		}
	}
	return m, nil
}

func (m responsesModel) View() string {
	rs, ok := m.reports.Last()
	switch {
	case m.reports.Loading() && !ok:
		return " " + dimStyle.Render("loading...")
	case m.reports.Err() != nil && !ok:
		return " " + dimStyle.Render("error: "+m.reports.Err().Error())
	case len(rs) == 0:
		return " " + dimStyle.Render("no reports")
	}

	if m.detail && m.cursor < len(rs) {
		return m.detailView(rs[m.cursor])
	}

	var b strings.Builder
	start, end := visibleWindow(len(rs), m.cursor, m.height-1)
	for i := start; i < end; i++ {
		r := rs[i]
		prefix := "   "
		style := normalStyle
		if i == m.cursor {
			prefix = " " + accentStyle.Render("▸") + " "
			style = selectedStyle
		}
		lock := "  "
		if r.Confidential {
			lock = warnStyle.Render("◆") + " "
		}
		fmt.Fprintf(&b, "%s%s%s  %s  %s\n",
			prefix,
			lock,
			metaStyle.Render(fmt.Sprintf("%-6s", r.ID)),
			statusBadge(r.DisplayStatus(), 13),
			style.Render(preview(r.DisplaySummary(), previewLen)),
		)
	}
	return b.String()
}

func (m responsesModel) detailView(r domain.Report) string {
	var b strings.Builder
	b.WriteString(selectedStyle.Render("Report "+r.ID) + "  " + statusStyle(r.DisplayStatus()).Render(r.DisplayStatus()) + "\n")
	if r.Confidential {
		b.WriteString(warnStyle.Render("Confidential") + "\n")
	}
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n\n",
		metaStyle.Render("patient"), normalStyle.Render(orDash(r.PatientID)),
		metaStyle.Render("by"), normalStyle.Render(orDash(r.CreatedBy)),
		metaStyle.Render("on"), normalStyle.Render(formatDate(r.CreatedAt)),
	)
	width := 70
	if m.width > 10 && m.width-10 < width {
		width = m.width - 10
	}
	b.WriteString(lipgloss.NewStyle().Width(width).Render(r.DisplaySummary()))
	return "\n" + overlayStyle.Render(b.String())
}

func (m responsesModel) helpKeys() string {
	if m.detail {
		return helpEntry("esc", "close")
	}
	return helpEntry("j/k", "nav") + "  " + helpEntry("enter", "open") + "  " + helpEntry("r", "refresh")
}
