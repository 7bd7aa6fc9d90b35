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

type dashboardModel struct {
	client  *client.Client
	log     zerolog.Logger
	user    *domain.User
	summary resource.Resource[*domain.DashboardSummary]
	cursor  int
	width   int
	height  int
}

type dashboardLoadedMsg struct {
	ticket  resource.Ticket
	summary *domain.DashboardSummary
	err     error
}

func newDashboardModel(c *client.Client, log zerolog.Logger) dashboardModel {
	return dashboardModel{client: c, log: log}
}

func (m dashboardModel) load() (dashboardModel, tea.Cmd) {
	t := m.summary.Begin()
	c := m.client
	return m, func() tea.Msg {
		s, err := c.Dashboard(context.Background())
		return dashboardLoadedMsg{ticket: t, summary: s, err: err}
	}
}

func (m dashboardModel) Update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case dashboardLoadedMsg:
		if !m.summary.Resolve(msg.ticket, msg.summary, msg.err) {
			return m, nil
		}
		m.cursor = 0
		return m, failed(m.log, "dashboard", msg.err)

	case tea.KeyMsg:
		s, _ := m.summary.Value()
		switch msg.String() {
		case "j", "down":
			if s != nil && m.cursor < len(s.RecentPatients)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "r":
			return m.load()
		}
	}
	return m, nil
}

func (m dashboardModel) View() string {
	var b strings.Builder
	name := "there"
	role := domain.Role("")
	if m.user != nil {
		name = m.user.DisplayName()
		role = m.user.Role
	}
	b.WriteString("\n " + selectedStyle.Render("Welcome, "+name) + "\n")
	b.WriteString(" " + dimStyle.Render(role.Greeting()) + "\n\n")

	s, ok := m.summary.Last()
	switch {
	case m.summary.Loading() && !ok:
		b.WriteString(" " + dimStyle.Render("loading..."))
		return b.String()
	case m.summary.Err() != nil && !ok:
		b.WriteString(" " + dimStyle.Render("error: "+m.summary.Err().Error()))
		return b.String()
	case s == nil:
		return b.String()
	}

	cards := []string{
		statCard("Total patients", s.TotalPatients, fmt.Sprintf("+%d this month", s.NewThisMonth)),
		statCard("Active cases", s.ActiveCases, fmt.Sprintf("%d admitted this week", s.AdmittedWeek)),
		statCard("Critical cases", s.CriticalCases, "need attention"),
		statCard("Medical records", s.MedicalRecords, fmt.Sprintf("%d updated today", s.UpdatedToday)),
	}
	if m.width > 0 && m.width < 4*24 {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1]) + "\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards[2], cards[3]) + "\n")
	} else {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...) + "\n")
	}
	if s.PendingTests > 0 || s.UnreadReports > 0 {
		b.WriteString(" " + metaStyle.Render(fmt.Sprintf("%d pending tests . %d unread reports", s.PendingTests, s.UnreadReports)) + "\n")
	}

	b.WriteString("\n " + sectionHeaderStyle.Render("Recent patients") + "\n")
	if len(s.RecentPatients) == 0 {
		b.WriteString(" " + dimStyle.Render("no recent admissions") + "\n")
		return b.String()
	}
	for i, p := range s.RecentPatients {
		prefix := "   "
		style := normalStyle
		if i == m.cursor {
			prefix = " " + accentStyle.Render("▸") + " "
			style = selectedStyle
		}
		fmt.Fprintf(&b, "%s%s  %s  %s  %s  %s\n",
			prefix,
			metaStyle.Render(fmt.Sprintf("%-7s", p.ID)),
			style.Render(fmt.Sprintf("%-20s", truncStr(p.Name, 20))),
			dimStyle.Render(fmt.Sprintf("%3d", p.Age)),
			statusBadge(p.Status, 10),
			dimStyle.Render(truncStr(p.Diagnosis, 30)),
		)
	}
	return b.String()
}

func statCard(label string, value int, sub string) string {
	body := metaStyle.Render(label) + "\n" +
		cardValueStyle.Render(fmt.Sprintf("%d", value)) + "\n" +
		dimStyle.Render(sub)
	return cardStyle.Width(22).Render(body)
}

func (m dashboardModel) helpKeys() string {
	return helpEntry("j/k", "nav") + "  " + helpEntry("r", "refresh")
}
