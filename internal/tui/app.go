package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/nexusmedic/medhub/internal/browser"
	"github.com/nexusmedic/medhub/internal/route"
	"github.com/nexusmedic/medhub/internal/session"
	"github.com/nexusmedic/medhub/pkg/client"
)

type view int

const (
	viewLoading view = iota
	viewLogin
	viewDashboard
	viewPatients
	viewFolders
	viewFolder
	viewResponses
	viewTests
)

// loadingRetry is how soon a navigation deferred by a loading session is retried.
const loadingRetry = 50 * time.Millisecond

// tab is one entry of the tab bar.
type tab struct {
	key  string
	name string
	path route.Path
}

var tabs = []tab{
	{"1", "Dashboard", route.Dashboard},
	{"2", "Patients", route.Patients},
	{"3", "Folders", route.Folders},
	{"4", "Responses", route.Responses},
	{"5", "Tests", route.Tests},
}

// Option configures the App.
type Option func(*App)

// WithLogger sets the logger views report failures to.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithPortal sets the web portal URL offered in the help overlay.
func WithPortal(url string) Option {
	return func(a *App) { a.portal = url }
}

// App is the root Bubbletea model. Every navigation passes through
// route.Guard before a view is shown.
type App struct {
	sess       *session.Manager
	client     *client.Client
	log        zerolog.Logger
	portal     string
	path       route.Path
	view       view
	login      loginModel
	dashboard  dashboardModel
	patients   patientsModel
	folders    foldersModel
	folder     folderModel
	responses  responsesModel
	tests      testsModel
	note       notice
	helpOpen   bool
	helpCursor int
	width      int
	height     int
}

// NewApp creates the TUI for an existing session. The session's hooks must
// already be installed on c.
func NewApp(s *session.Manager, c *client.Client, opts ...Option) App {
	a := App{
		sess:   s,
		client: c,
		log:    zerolog.Nop(),
		path:   route.Login,
	}
	for _, o := range opts {
		o(&a)
	}
	a.login = newLoginModel(s, a.log)
	a.dashboard = newDashboardModel(c, a.log)
	a.patients = newPatientsModel(c, a.log)
	a.folders = newFoldersModel(c, a.log)
	a.folder = newFolderModel(c, a.log, "")
	a.responses = newResponsesModel(c, a.log)
	a.tests = newTestsModel(c, a.log)
	return a
}

// waitForNav blocks on the session's navigation channel.
func waitForNav(ch <-chan route.Path) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return sessionNavMsg{path: p}
	}
}

func (a App) Init() tea.Cmd {
	start := route.Dashboard
	if u := a.sess.User(); u != nil {
		start = route.Landing(u.Role)
	}
	return tea.Batch(navigateCmd(start), waitForNav(a.sess.Navigations()))
}

// navigate routes to p through the guard.
func (a App) navigate(p route.Path) (App, tea.Cmd) {
	d := route.Guard(a.sess, p)
	a.log.Debug().Str("path", string(p)).Stringer("action", d.Action).Str("target", string(d.Target)).Msg("navigate")
	switch d.Action {
	case route.ShowLoading:
		a.view = viewLoading
		return a, tea.Tick(loadingRetry, func(time.Time) tea.Msg {
			return navigateMsg{path: p}
		})
	case route.Redirect:
		var cmd tea.Cmd
		a, cmd = a.show(d.Target)
		if d.Denied {
			a.note = notice{text: "Access denied: your role cannot open " + string(route.Pattern(p)), level: noticeError}
		}
		return a, cmd
	}
	return a.show(p)
}

// show switches to the view for p and starts its fetches.
func (a App) show(p route.Path) (App, tea.Cmd) {
	a.path = p
	user := a.sess.User()
	var cmd tea.Cmd
	switch route.Pattern(p) {
	case route.Login:
		a.view = viewLogin
		a.login = newLoginModel(a.sess, a.log)
		a.login, _ = a.login.Update(a.bodySize())
	case route.Dashboard:
		a.view = viewDashboard
		a.dashboard.user = user
		a.dashboard, cmd = a.dashboard.load()
	case route.Patients:
		a.view = viewPatients
		a.patients, cmd = a.patients.load()
	case route.Folders:
		a.view = viewFolders
		a.folders.user = user
		a.folders.creating = false
		a.folders, cmd = a.folders.load()
	case route.Folder:
		id, _ := route.FolderID(p)
		a.view = viewFolder
		a.folder = newFolderModel(a.client, a.log, id)
		a.folder, _ = a.folder.Update(a.bodySize())
		a.folder, cmd = a.folder.load()
	case route.Responses:
		a.view = viewResponses
		a.responses, cmd = a.responses.load()
	case route.Tests:
		a.view = viewTests
		a.tests.user = user
		a.tests, cmd = a.tests.load()
	}
	return a, cmd
}

// bodySize is the window size left to a view after the chrome.
func (a App) bodySize() tea.WindowSizeMsg {
	// Chrome: header(1) + tabs(1) + notice(1) + help(1) = 4 lines
	return tea.WindowSizeMsg{Width: a.width, Height: a.height - 4}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		bodyMsg := a.bodySize()
		a.login, _ = a.login.Update(bodyMsg)
		a.dashboard, _ = a.dashboard.Update(bodyMsg)
		a.patients, _ = a.patients.Update(bodyMsg)
		a.folders, _ = a.folders.Update(bodyMsg)
		a.folder, _ = a.folder.Update(bodyMsg)
		a.responses, _ = a.responses.Update(bodyMsg)
		a.tests, _ = a.tests.Update(bodyMsg)
		return a, nil

	case sessionNavMsg:
		a.helpOpen = false
		next, cmd := a.navigate(msg.path)
		return next, tea.Batch(cmd, waitForNav(a.sess.Navigations()))

	case navigateMsg:
		return a.navigate(msg.path)

	case noticeMsg:
		a.note = notice(msg)
		return a, nil

	case tea.KeyMsg:
		if a.helpOpen {
			return a.updateHelp(msg)
		}
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "esc":
			if a.view == viewLogin && a.note.text != "" {
				a.note = notice{}
				return a, nil
			}
		}
		if !a.isEditing() {
			if next, cmd, ok := a.globalKey(msg); ok {
				return next, cmd
			}
		}
	}

	var cmd tea.Cmd
	switch a.view {
	case viewLogin:
		a.login, cmd = a.login.Update(msg)
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.Update(msg)
	case viewPatients:
		a.patients, cmd = a.patients.Update(msg)
	case viewFolders:
		a.folders, cmd = a.folders.Update(msg)
	case viewFolder:
		a.folder, cmd = a.folder.Update(msg)
	case viewResponses:
		a.responses, cmd = a.responses.Update(msg)
	case viewTests:
		a.tests, cmd = a.tests.Update(msg)
	}
	return a, cmd
}

// globalKey handles keys that work on every signed-in view.
func (a App) globalKey(msg tea.KeyMsg) (App, tea.Cmd, bool) {
	switch key := msg.String(); key {
	case "q":
		return a, tea.Quit, true
	case "x":
		if a.note.text != "" {
			a.note = notice{}
			return a, nil, true
		}
	case "h", "?":
		a.helpOpen = true
		a.helpCursor = 0
		return a, nil, true
	case "L":
		a.note = notice{text: "Signed out", level: noticeInfo}
		a.sess.Logout()
		return a, nil, true
	case "1", "2", "3", "4", "5":
		for _, t := range tabs {
			if t.key == key {
				next, cmd := a.navigate(t.path)
				return next, cmd, true
			}
		}
	}
	return a, nil, false
}

func (a App) updateHelp(msg tea.KeyMsg) (App, tea.Cmd) {
	items := helpItems(a.portal)
	switch msg.String() {
	case "h", "?", "esc":
		a.helpOpen = false
	case "q", "ctrl+c":
		return a, tea.Quit
	case "j", "down":
		if a.helpCursor < len(items)-1 {
			a.helpCursor++
		}
	case "k", "up":
		if a.helpCursor > 0 {
			a.helpCursor--
		}
	case "enter":
		if item := items[a.helpCursor]; item.url != "" {
			if err := browser.Open(item.url); err != nil {
				a.log.Warn().Err(err).Str("url", item.url).Msg("open browser")
			}
		}
	}
	return a, nil
}

func (a App) isEditing() bool {
	switch a.view {
	case viewLogin, viewLoading:
		return true
	case viewPatients:
		return a.patients.searching
	case viewFolders:
		return a.folders.editing()
	case viewTests:
		return a.tests.editing()
	}
	return false
}

func (a App) View() string {
	header := " " + brandStyle.Render("medhub")
	if u := a.sess.User(); u != nil {
		who := metaStyle.Render(fmt.Sprintf("%s . %s", u.Name, u.Role.Title()))
		pad := a.width - lipgloss.Width(header) - lipgloss.Width(who) - 1
		if pad < 2 {
			pad = 2
		}
		header += strings.Repeat(" ", pad) + who
	}

	var body, help string
	switch a.view {
	case viewLoading:
		body = " " + dimStyle.Render("loading...")
	case viewLogin:
		body = a.login.View()
		help = helpLine("tab", "next", "enter", "sign in", "esc", "dismiss", "ctrl+c", "quit")
	case viewDashboard:
		body = a.dashboard.View()
		help = a.dashboard.helpKeys()
	case viewPatients:
		body = a.patients.View()
		help = a.patients.helpKeys()
	case viewFolders:
		body = a.folders.View()
		help = a.folders.helpKeys()
	case viewFolder:
		body = a.folder.View()
		help = a.folder.helpKeys()
	case viewResponses:
		body = a.responses.View()
		help = a.responses.helpKeys()
	case viewTests:
		body = a.tests.View()
		help = a.tests.helpKeys()
	}
	if a.view != viewLogin && a.view != viewLoading {
		help = " " + helpEntry("1-5", "tabs") + "  " + help + "  " + helpEntry("L", "sign out") + "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
	}

	if a.helpOpen {
		body = helpView(helpItems(a.portal), a.helpCursor)
		help = helpLine("j/k", "nav", "enter", "open", "esc", "close")
	}

	tabBar := ""
	if a.sess.IsAuthenticated() {
		tabBar = a.tabBar()
	}

	// Chrome budget: header(1) + tabs(1) + notice(1) + help(1) = 4 lines + body
	body = strings.TrimRight(truncateToHeight(body, a.height-4), "\n")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", header, tabBar, a.note.View(), body, help)
}

// tabBar renders equal-width columns; tabs the role cannot open are dimmed.
func (a App) tabBar() string {
	user := a.sess.User()
	active := route.Pattern(a.path)
	if active == route.Folder {
		active = route.Folders
	}
	colWidth := a.width / len(tabs)
	var b strings.Builder
	for _, t := range tabs {
		allowed := true
		if c, ok := route.Capability(t.path); ok {
			allowed = user != nil && user.Role.Can(c)
		}
		var label string
		switch {
		case t.path == active:
			label = accentStyle.Render(t.key) + " " + selectedStyle.Underline(true).Render(t.name)
		case allowed:
			label = metaStyle.Render(t.key) + " " + dimStyle.Render(t.name)
		default:
			label = metaStyle.Render(t.key) + " " + metaStyle.Strikethrough(true).Render(t.name)
		}
		labelWidth := lipgloss.Width(label)
		leftPad := (colWidth - labelWidth) / 2
		if leftPad < 0 {
			leftPad = 0
		}
		rightPad := colWidth - labelWidth - leftPad
		if rightPad < 0 {
			rightPad = 0
		}
		b.WriteString(strings.Repeat(" ", leftPad) + label + strings.Repeat(" ", rightPad))
	}
	return b.String()
}
