package tui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/nexusmedic/medhub/internal/session"
	"github.com/nexusmedic/medhub/pkg/domain"
)

type loginModel struct {
	sess       *session.Manager
	log        zerolog.Logger
	form       form
	submitting bool
	width      int
	height     int
}

type loginDoneMsg struct {
	user *domain.User
	err  error
}

func newLoginModel(s *session.Manager, log zerolog.Logger) loginModel {
	return loginModel{
		sess: s,
		log:  log,
		form: newForm(
			formField{key: "email", label: "Email"},
			formField{key: "password", label: "Password", masked: true},
		),
	}
}

func (m loginModel) Init() tea.Cmd {
	return nil
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case loginDoneMsg:
		m.submitting = false
		if msg.err != nil {
			var vErr *domain.ValidationError
			if errors.As(msg.err, &vErr) {
				m.form.Invalid(vErr.Field, vErr.Message)
				return m, nil
			}
			m.form.Set("password", "")
			return m, failed(m.log, "login", msg.err)
		}
		// The session announces the landing view itself.
		m.form = newLoginModel(m.sess, m.log).form
		return m, nil

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		switch msg.String() {
		case "enter":
			if m.form.focus < len(m.form.fields)-1 {
				m.form.focus++
				return m, nil
			}
			return m.submit()
		case "ctrl+s":
			return m.submit()
		}
		m.form = m.form.Update(msg)
	}
	return m, nil
}

func (m loginModel) submit() (loginModel, tea.Cmd) {
	email := m.form.Value("email")
	password := m.form.fields[1].value
	if err := domain.ValidateCredentials(email, password); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			m.form.Invalid(vErr.Field, vErr.Message)
		}
		return m, nil
	}
	m.form.clearError()
	m.submitting = true
	s := m.sess
	return m, func() tea.Msg {
		u, err := s.Login(context.Background(), email, password)
		return loginDoneMsg{user: u, err: err}
	}
}

func (m loginModel) View() string {
	var b strings.Builder
	b.WriteString("\n " + sectionHeaderStyle.Render("Sign in") + "\n")
	b.WriteString(" " + dimStyle.Render("Use your clinic staff account.") + "\n\n")
	b.WriteString(m.form.View())
	b.WriteString("\n")
	if m.submitting {
		b.WriteString(" " + dimStyle.Render("signing in..."))
	}
	box := overlayStyle.Render(strings.TrimRight(b.String(), "\n"))
	if m.width <= 0 {
		return box
	}
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, box)
}
