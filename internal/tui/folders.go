package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nexusmedic/medhub/internal/resource"
	"github.com/nexusmedic/medhub/internal/route"
	"github.com/nexusmedic/medhub/pkg/client"
	"github.com/nexusmedic/medhub/pkg/domain"
)

type foldersModel struct {
	client     *client.Client
	log        zerolog.Logger
	user       *domain.User
	folders    resource.Resource[[]domain.Folder]
	cursor     int
	creating   bool
	form       form
	submitting bool
	width      int
	height     int
}

type foldersLoadedMsg struct {
	ticket  resource.Ticket
	folders []domain.Folder
	err     error
}

type folderCreatedMsg struct {
	folder *domain.Folder
	err    error
}

func newFoldersModel(c *client.Client, log zerolog.Logger) foldersModel {
	return foldersModel{client: c, log: log}
}

func newFolderForm() form {
	return newForm(
		formField{key: "patient_id", label: "Patient ID"},
		formField{key: "status", label: "Status", value: domain.FolderStatuses[0], options: domain.FolderStatuses},
	)
}

func (m foldersModel) load() (foldersModel, tea.Cmd) {
	t := m.folders.Begin()
	c := m.client
	return m, func() tea.Msg {
		fs, err := c.ListFolders(context.Background())
		return foldersLoadedMsg{ticket: t, folders: fs, err: err}
	}
}

func (m foldersModel) Update(msg tea.Msg) (foldersModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case foldersLoadedMsg:
		if !m.folders.Resolve(msg.ticket, msg.folders, msg.err) {
			return m, nil
		}
		if fs, _ := m.folders.Last(); m.cursor >= len(fs) {
			m.cursor = max(len(fs)-1, 0)
		}
		return m, failed(m.log, "folders", msg.err)

	case folderCreatedMsg:
		m.submitting = false
		if msg.err != nil {
			var vErr *domain.ValidationError
			if errors.As(msg.err, &vErr) {
				m.form.Invalid(vErr.Field, vErr.Message)
				return m, nil
			}
			return m, failed(m.log, "create folder", msg.err)
		}
		m.creating = false
		var cmd tea.Cmd
		m, cmd = m.load()
		return m, tea.Batch(cmd, notifyCmd("Folder "+msg.folder.ID+" created", noticeSuccess))

	case tea.KeyMsg:
		if m.creating {
			return m.updateForm(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m foldersModel) updateList(msg tea.KeyMsg) (foldersModel, tea.Cmd) {
	fs, _ := m.folders.Last()
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(fs)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		if m.cursor < len(fs) {
			return m, navigateCmd(route.FolderPath(fs[m.cursor].ID))
		}
	case "n":
		m.creating = true
		m.form = newFolderForm()
	case "r":
		return m.load()
	}
	return m, nil
}

func (m foldersModel) updateForm(msg tea.KeyMsg) (foldersModel, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	switch msg.String() {
	case "esc":
		m.creating = false
		return m, nil
	case "ctrl+s", "enter":
		return m.submit()
	}
	m.form = m.form.Update(msg)
	return m, nil
}

func (m foldersModel) submit() (foldersModel, tea.Cmd) {
	req := domain.CreateFolderRequest{
		PatientID: m.form.Value("patient_id"),
		Status:    m.form.Value("status"),
	}
	if m.user != nil {
		req.CreatedBy = m.user.ID
	}
	if err := req.Validate(); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			m.form.Invalid(vErr.Field, vErr.Message)
		}
		return m, nil
	}
	m.submitting = true
	c := m.client
	return m, func() tea.Msg {
		f, err := c.CreateFolder(context.Background(), req)
		return folderCreatedMsg{folder: f, err: err}
	}
}

// editing reports whether the view is capturing text input.
func (m foldersModel) editing() bool { return m.creating }

func (m foldersModel) View() string {
	if m.creating {
		var b strings.Builder
		b.WriteString("\n " + sectionHeaderStyle.Render("New folder") + "\n\n")
		b.WriteString(m.form.View())
		if m.submitting {
			b.WriteString("\n " + dimStyle.Render("creating..."))
		}
		return b.String()
	}

	fs, ok := m.folders.Last()
	switch {
	case m.folders.Loading() && !ok:
		return " " + dimStyle.Render("loading...")
	case m.folders.Err() != nil && !ok:
		return " " + dimStyle.Render("error: "+m.folders.Err().Error())
	case len(fs) == 0:
		return " " + dimStyle.Render("no folders yet, press n to open one")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "   %s  %s  %s  %s\n",
		metaStyle.Render(fmt.Sprintf("%-8s", "FOLDER")),
		metaStyle.Render(fmt.Sprintf("%-8s", "PATIENT")),
		metaStyle.Render(fmt.Sprintf("%-9s", "STATUS")),
		metaStyle.Render("UPDATED"),
	)
	start, end := visibleWindow(len(fs), m.cursor, m.height-2)
	for i := start; i < end; i++ {
		f := fs[i]
		prefix := "   "
		style := normalStyle
		if i == m.cursor {
			prefix = " " + accentStyle.Render("▸") + " "
			style = selectedStyle
		}
		fmt.Fprintf(&b, "%s%s  %s  %s  %s\n",
			prefix,
			style.Render(fmt.Sprintf("%-8s", f.ID)),
			dimStyle.Render(fmt.Sprintf("%-8s", f.PatientID)),
			statusBadge(f.Status, 9),
			metaStyle.Render(formatTime(f.UpdatedAt)),
		)
	}
	return b.String()
}

func (m foldersModel) helpKeys() string {
	if m.creating {
		return helpEntry("tab", "next") + "  " + helpEntry("←/→", "status") + "  " + helpEntry("enter", "create") + "  " + helpEntry("esc", "cancel")
	}
	return helpEntry("j/k", "nav") + "  " + helpEntry("enter", "open") + "  " + helpEntry("n", "new") + "  " + helpEntry("r", "refresh")
}
