package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nexusmedic/medhub/internal/resource"
	"github.com/nexusmedic/medhub/pkg/client"
	"github.com/nexusmedic/medhub/pkg/domain"
)

type patientsModel struct {
	client    *client.Client
	log       zerolog.Logger
	patients  resource.Resource[[]domain.Patient]
	cursor    int
	query     string
	searching bool
	width     int
	height    int
}

type patientsLoadedMsg struct {
	ticket   resource.Ticket
	patients []domain.Patient
	err      error
}

type copyResultMsg struct {
	text string
	err  error
}

// copyToClipboard is swapped out in tests.
var copyToClipboard = clipboard.WriteAll

func newPatientsModel(c *client.Client, log zerolog.Logger) patientsModel {
	return patientsModel{client: c, log: log}
}

func (m patientsModel) load() (patientsModel, tea.Cmd) {
	t := m.patients.Begin()
	c := m.client
	return m, func() tea.Msg {
		ps, err := c.ListPatients(context.Background())
		return patientsLoadedMsg{ticket: t, patients: ps, err: err}
	}
}

// visible is the patient list after the search filter.
func (m patientsModel) visible() []domain.Patient {
	all, _ := m.patients.Last()
	if m.query == "" {
		return all
	}
	var out []domain.Patient
	for _, p := range all {
		if p.Matches(m.query) {
			out = append(out, p)
		}
	}
	return out
}

func (m patientsModel) Update(msg tea.Msg) (patientsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case patientsLoadedMsg:
		if !m.patients.Resolve(msg.ticket, msg.patients, msg.err) {
			return m, nil
		}
		m.clampCursor()
		return m, failed(m.log, "patients", msg.err)

	case copyResultMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("clipboard")
			return m, notifyCmd("Could not copy to clipboard", noticeError)
		}
		return m, notifyCmd("Copied "+msg.text, noticeSuccess)

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m patientsModel) updateSearch(msg tea.KeyMsg) (patientsModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.query = ""
	case "enter":
		m.searching = false
	default:
		m.query = editRune(m.query, msg.String())
	}
	m.clampCursor()
	return m, nil
}

func (m patientsModel) updateList(msg tea.KeyMsg) (patientsModel, tea.Cmd) {
	rows := m.visible()
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "/":
		m.searching = true
	case "esc":
		m.query = ""
		m.clampCursor()
	case "c":
		if m.cursor < len(rows) {
			id := rows[m.cursor].ID
			return m, func() tea.Msg {
				return copyResultMsg{text: id, err: copyToClipboard(id)}
			}
		}
	case "r":
		return m.load()
	}
	return m, nil
}

func (m *patientsModel) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m patientsModel) View() string {
	var b strings.Builder
	b.WriteString(" " + searchStyle.Render("/") + " ")
	switch {
	case m.searching:
		b.WriteString(m.query + accentStyle.Render("█"))
	case m.query != "":
		b.WriteString(normalStyle.Render(m.query))
	default:
		b.WriteString(inputPlaceholderStyle.Render("search by name or id"))
	}
	b.WriteString("\n\n")

	all, ok := m.patients.Last()
	switch {
	case m.patients.Loading() && !ok:
		b.WriteString(" " + dimStyle.Render("loading..."))
		return b.String()
	case m.patients.Err() != nil && !ok:
		b.WriteString(" " + dimStyle.Render("error: "+m.patients.Err().Error()))
		return b.String()
	case len(all) == 0:
		b.WriteString(" " + dimStyle.Render("no patients"))
		return b.String()
	}

	rows := m.visible()
	if len(rows) == 0 {
		b.WriteString(" " + dimStyle.Render(fmt.Sprintf("no patients match %q", m.query)))
		return b.String()
	}
	start, end := visibleWindow(len(rows), m.cursor, m.height-3)
	for i := start; i < end; i++ {
		p := rows[i]
		prefix := "   "
		style := normalStyle
		if i == m.cursor {
			prefix = " " + accentStyle.Render("▸") + " "
			style = selectedStyle
		}
		fmt.Fprintf(&b, "%s%s  %s  %s  %s  %s\n",
			prefix,
			metaStyle.Render(fmt.Sprintf("%-7s", p.ID)),
			style.Render(fmt.Sprintf("%-20s", truncStr(p.FullName(), 20))),
			dimStyle.Render(fmt.Sprintf("%-10s", orDash(p.DateOfBirth))),
			statusBadge(orDash(p.CurrentStatus), 10),
			dimStyle.Render(truncStr(p.CurrentDiagnosis, 28)),
		)
	}
	return b.String()
}

func (m patientsModel) helpKeys() string {
	if m.searching {
		return helpEntry("enter", "apply") + "  " + helpEntry("esc", "clear")
	}
	return helpEntry("j/k", "nav") + "  " + helpEntry("/", "search") + "  " + helpEntry("c", "copy id") + "  " + helpEntry("r", "refresh")
}
