package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nexusmedic/medhub/internal/resource"
	"github.com/nexusmedic/medhub/internal/route"
	"github.com/nexusmedic/medhub/pkg/client"
	"github.com/nexusmedic/medhub/pkg/domain"
)

// folderModel shows one folder: the folder record and its patient, notes,
// attachments and tests, then the patient's diagnoses and the activities of
// any treatment plans they reference.
type folderModel struct {
	client     *client.Client
	log        zerolog.Logger
	id         string
	detail     resource.Resource[*domain.FolderDetail]
	diagnoses  resource.Resource[[]domain.Diagnosis]
	activities map[string][]domain.Activity
	plans      resource.Ticket // diagnoses fetch the activities belong to
	scroll     int
	width      int
	height     int
}

type folderLoadedMsg struct {
	ticket resource.Ticket
	detail *domain.FolderDetail
	err    error
}

type diagnosesLoadedMsg struct {
	ticket    resource.Ticket
	diagnoses []domain.Diagnosis
	err       error
}

type activitiesLoadedMsg struct {
	ticket     resource.Ticket // diagnoses ticket the plan came from
	planID     string
	activities []domain.Activity
	err        error
}

func newFolderModel(c *client.Client, log zerolog.Logger, id string) folderModel {
	return folderModel{client: c, log: log, id: id}
}

func (m folderModel) load() (folderModel, tea.Cmd) {
	m.diagnoses.Reset()
	m.activities = nil
	m.plans = 0
	m.scroll = 0
	t := m.detail.Begin()
	c, id := m.client, m.id
	return m, func() tea.Msg {
		d, err := c.GetFolder(context.Background(), id)
		return folderLoadedMsg{ticket: t, detail: d, err: err}
	}
}

func (m folderModel) loadDiagnoses(patientID string) (folderModel, tea.Cmd) {
	t := m.diagnoses.Begin()
	c := m.client
	return m, func() tea.Msg {
		ds, err := c.PatientDiagnoses(context.Background(), patientID)
		return diagnosesLoadedMsg{ticket: t, diagnoses: ds, err: err}
	}
}

func (m folderModel) loadActivities(t resource.Ticket, planID string) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		as, err := c.TreatmentPlanActivities(context.Background(), planID)
		return activitiesLoadedMsg{ticket: t, planID: planID, activities: as, err: err}
	}
}

func (m folderModel) Update(msg tea.Msg) (folderModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case folderLoadedMsg:
		if !m.detail.Resolve(msg.ticket, msg.detail, msg.err) {
			return m, nil
		}
		if msg.err != nil {
			return m, failed(m.log, "folder", msg.err)
		}
		if msg.detail.Folder.PatientID == "" {
			return m, nil
		}
		return m.loadDiagnoses(msg.detail.Folder.PatientID)

	case diagnosesLoadedMsg:
		if !m.diagnoses.Resolve(msg.ticket, msg.diagnoses, msg.err) {
			return m, nil
		}
		if msg.err != nil {
			return m, failed(m.log, "diagnoses", msg.err)
		}
		m.activities = map[string][]domain.Activity{}
		m.plans = msg.ticket
		var cmds []tea.Cmd
		seen := map[string]bool{}
		for _, d := range msg.diagnoses {
			if d.TreatmentPlanID == "" || seen[d.TreatmentPlanID] {
				continue
			}
			seen[d.TreatmentPlanID] = true
			cmds = append(cmds, m.loadActivities(msg.ticket, d.TreatmentPlanID))
		}
		return m, tea.Batch(cmds...)

	case activitiesLoadedMsg:
		if msg.ticket != m.plans || m.activities == nil {
			return m, nil
		}
		if msg.err != nil {
			// Plan activities are optional; the folder stays usable without them.
			m.log.Warn().Err(msg.err).Str("plan_id", msg.planID).Msg("treatment plan activities")
			return m, nil
		}
		m.activities[msg.planID] = msg.activities

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "backspace":
			return m, navigateCmd(route.Folders)
		case "j", "down":
			m.scroll++
		case "k", "up":
			if m.scroll > 0 {
				m.scroll--
			}
		case "r":
			return m.load()
		}
	}
	return m, nil
}

func (m folderModel) View() string {
	d, ok := m.detail.Last()
	switch {
	case m.detail.Loading() && !ok:
		return " " + dimStyle.Render("loading...")
	case m.detail.Err() != nil && !ok:
		return " " + dimStyle.Render("error: "+m.detail.Err().Error())
	case d == nil:
		return ""
	}

	var b strings.Builder
	f := d.Folder
	fmt.Fprintf(&b, "\n %s  %s  %s\n",
		selectedStyle.Render("Folder "+f.ID),
		statusStyle(f.Status).Render(f.Status),
		metaStyle.Render("updated "+formatTime(f.UpdatedAt)),
	)
	if p := d.Patient; p != nil {
		fmt.Fprintf(&b, " %s  %s  %s  %s\n",
			normalStyle.Render(p.FullName()),
			metaStyle.Render(p.ID),
			dimStyle.Render(orDash(p.DateOfBirth)),
			dimStyle.Render(orDash(p.Gender)),
		)
	} else {
		b.WriteString(" " + metaStyle.Render("patient "+f.PatientID) + "\n")
	}

	b.WriteString("\n " + sectionHeaderStyle.Render("Diagnoses") + "\n")
	ds, _ := m.diagnoses.Last()
	switch {
	case m.diagnoses.Loading():
		b.WriteString("   " + dimStyle.Render("loading...") + "\n")
	case m.diagnoses.Err() != nil:
		b.WriteString("   " + dimStyle.Render("error: "+client.UserMessage(m.diagnoses.Err())) + "\n")
	case len(ds) == 0:
		b.WriteString("   " + dimStyle.Render("none recorded") + "\n")
	}
	for _, dx := range ds {
		fmt.Fprintf(&b, "   %s  %s  %s\n",
			normalStyle.Render(dx.Name),
			statusStyle(dx.Severity).Render(orDash(dx.Severity)),
			metaStyle.Render(formatDate(dx.DiagnosedAt)),
		)
		if dx.Description != "" {
			b.WriteString("     " + dimStyle.Render(truncStr(oneLine(dx.Description), 70)) + "\n")
		}
		for _, a := range m.activities[dx.TreatmentPlanID] {
			fmt.Fprintf(&b, "     %s %s  %s\n",
				metaStyle.Render("·"),
				dimStyle.Render(truncStr(a.Description, 50)),
				statusStyle(a.Status).Render(orDash(a.Status)),
			)
		}
	}

	b.WriteString("\n " + sectionHeaderStyle.Render(fmt.Sprintf("Tests (%d)", len(d.Tests))) + "\n")
	for _, t := range d.Tests {
		fmt.Fprintf(&b, "   %s  %s  %s\n",
			normalStyle.Render(fmt.Sprintf("%-24s", truncStr(t.Name, 24))),
			statusBadge(t.Status, 11),
			metaStyle.Render(t.OrderedDate),
		)
	}

	b.WriteString("\n " + sectionHeaderStyle.Render(fmt.Sprintf("Notes (%d)", len(d.Notes))) + "\n")
	for _, n := range d.Notes {
		fmt.Fprintf(&b, "   %s  %s\n",
			metaStyle.Render(fmt.Sprintf("%-8s", formatTime(n.CreatedAt))),
			normalStyle.Render(truncStr(oneLine(n.Content), 70)),
		)
	}

	b.WriteString("\n " + sectionHeaderStyle.Render(fmt.Sprintf("Attachments (%d)", len(d.Attachments))) + "\n")
	for _, a := range d.Attachments {
		fmt.Fprintf(&b, "   %s  %s\n", normalStyle.Render(a.FileName), metaStyle.Render(a.MimeType))
	}

	lines := strings.Split(b.String(), "\n")
	if m.scroll > 0 {
		if m.scroll >= len(lines) {
			m.scroll = len(lines) - 1
		}
		lines = lines[m.scroll:]
	}
	return strings.Join(lines, "\n")
}

func (m folderModel) helpKeys() string {
	return helpEntry("j/k", "scroll") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("esc", "folders")
}
