package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nexusmedic/medhub/internal/route"
	"github.com/nexusmedic/medhub/pkg/client"
)

type noticeLevel int

const (
	noticeInfo noticeLevel = iota
	noticeSuccess
	noticeError
)

// notice is the dismissible line shown under the tab bar.
type notice struct {
	text  string
	level noticeLevel
}

func (n notice) View() string {
	if n.text == "" {
		return ""
	}
	style := dimStyle
	switch n.level {
	case noticeSuccess:
		style = okStyle
	case noticeError:
		style = errStyle
	}
	return " " + style.Render(n.text) + "  " + helpEntry("x", "dismiss")
}

// noticeMsg asks the app to show a notice.
type noticeMsg notice

// navigateMsg asks the app to route to path through the guard.
type navigateMsg struct {
	path route.Path
}

// sessionNavMsg carries a navigation issued by the session manager.
type sessionNavMsg struct {
	path route.Path
}

func notifyCmd(text string, level noticeLevel) tea.Cmd {
	return func() tea.Msg {
		return noticeMsg{text: text, level: level}
	}
}

func navigateCmd(p route.Path) tea.Cmd {
	return func() tea.Msg {
		return navigateMsg{path: p}
	}
}

// failed logs err and turns it into a notice. Validation errors are left to
// the form that raised them.
func failed(log zerolog.Logger, op string, err error) tea.Cmd {
	if err == nil {
		return nil
	}
	kind := client.KindOf(err)
	log.Warn().Err(err).Str("op", op).Stringer("kind", kind).Msg("request failed")
	if kind == client.KindValidation {
		return nil
	}
	return notifyCmd(client.UserMessage(err), noticeError)
}
