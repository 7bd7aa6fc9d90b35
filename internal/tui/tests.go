package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nexusmedic/medhub/internal/resource"
	"github.com/nexusmedic/medhub/pkg/client"
	"github.com/nexusmedic/medhub/pkg/domain"
)

type testsMode int

const (
	testsList testsMode = iota
	testsForm
	testsResultForm
	testsResults
	testsConfirmDelete
)

// resultsExistMessage is shown when a result is added to a test that has one.
const resultsExistMessage = "This test already has results and cannot be modified."

const recordDeniedMessage = "Your role cannot record test results."

type testsModel struct {
	client   *client.Client
	log      zerolog.Logger
	user     *domain.User
	patients resource.Resource[[]domain.Patient]
	tests    resource.Resource[[]domain.Test]
	results  map[string][]domain.TestResult
	fetching map[string]bool
	cursor   int
	mode     testsMode
	form     form
	target   string // test being edited, deleted or given a result
	// wantResult is the test whose result form opens once its results arrive.
	wantResult string
	submitting bool
	now        func() time.Time
	width      int
	height     int
}

type testsLoadedMsg struct {
	ticket resource.Ticket
	tests  []domain.Test
	err    error
}

type testPatientsLoadedMsg struct {
	ticket   resource.Ticket
	patients []domain.Patient
	err      error
}

type resultsLoadedMsg struct {
	testID  string
	results []domain.TestResult
	err     error
}

type testSavedMsg struct {
	test    *domain.Test
	created bool
	err     error
}

type testDeletedMsg struct {
	id  string
	err error
}

type resultSavedMsg struct {
	testID string
	result *domain.TestResult
	err    error
}

func newTestsModel(c *client.Client, log zerolog.Logger) testsModel {
	return testsModel{
		client:   c,
		log:      log,
		results:  map[string][]domain.TestResult{},
		fetching: map[string]bool{},
		now:      time.Now,
	}
}

func (m testsModel) load() (testsModel, tea.Cmd) {
	m.mode = testsList
	m.results = map[string][]domain.TestResult{}
	m.fetching = map[string]bool{}
	m.wantResult = ""
	pt := m.patients.Begin()
	tt := m.tests.Begin()
	c := m.client
	return m, tea.Batch(
		func() tea.Msg {
			ps, err := c.ListPatients(context.Background())
			return testPatientsLoadedMsg{ticket: pt, patients: ps, err: err}
		},
		func() tea.Msg {
			ts, err := c.ListTests(context.Background())
			return testsLoadedMsg{ticket: tt, tests: ts, err: err}
		},
	)
}

func (m testsModel) reloadTests() (testsModel, tea.Cmd) {
	t := m.tests.Begin()
	c := m.client
	return m, func() tea.Msg {
		ts, err := c.ListTests(context.Background())
		return testsLoadedMsg{ticket: t, tests: ts, err: err}
	}
}

func (m testsModel) loadResults(testID string) (testsModel, tea.Cmd) {
	if m.fetching[testID] {
		return m, nil
	}
	m.fetching[testID] = true
	c := m.client
	return m, func() tea.Msg {
		rs, err := c.ListTestResults(context.Background(), testID)
		return resultsLoadedMsg{testID: testID, results: rs, err: err}
	}
}

func (m testsModel) selected() (domain.Test, bool) {
	ts, _ := m.tests.Last()
	if m.cursor < 0 || m.cursor >= len(ts) {
		return domain.Test{}, false
	}
	return ts[m.cursor], true
}

func (m testsModel) patientName(id string) string {
	ps, _ := m.patients.Last()
	for _, p := range ps {
		if p.ID == id {
			return p.FullName()
		}
	}
	return id
}

func (m testsModel) userID() string {
	if m.user == nil {
		return ""
	}
	return m.user.ID
}

func (m testsModel) Update(msg tea.Msg) (testsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case testPatientsLoadedMsg:
		if !m.patients.Resolve(msg.ticket, msg.patients, msg.err) {
			return m, nil
		}
		return m, failed(m.log, "patients", msg.err)

	case testsLoadedMsg:
		if !m.tests.Resolve(msg.ticket, msg.tests, msg.err) {
			return m, nil
		}
		if msg.err != nil {
			return m, failed(m.log, "tests", msg.err)
		}
		if m.cursor >= len(msg.tests) {
			m.cursor = max(len(msg.tests)-1, 0)
		}
		cmds := make([]tea.Cmd, 0, len(msg.tests))
		for _, t := range msg.tests {
			if _, ok := m.results[t.ID]; ok {
				continue
			}
			var cmd tea.Cmd
			m, cmd = m.loadResults(t.ID)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case resultsLoadedMsg:
		delete(m.fetching, msg.testID)
		if msg.err != nil {
			if msg.testID == m.wantResult {
				m.wantResult = ""
			}
			return m, failed(m.log, "test results", msg.err)
		}
		m.results[msg.testID] = msg.results
		if msg.testID == m.wantResult {
			m.wantResult = ""
			return m.openResultForm(msg.testID)
		}

	case testSavedMsg:
		m.submitting = false
		if msg.err != nil {
			var vErr *domain.ValidationError
			if errors.As(msg.err, &vErr) {
				m.form.Invalid(vErr.Field, vErr.Message)
				return m, nil
			}
			return m, failed(m.log, "save test", msg.err)
		}
		m.mode = testsList
		text := "Test updated"
		if msg.created {
			text = "Test created"
		}
		var cmd tea.Cmd
		m, cmd = m.reloadTests()
		return m, tea.Batch(cmd, notifyCmd(text, noticeSuccess))

	case testDeletedMsg:
		m.submitting = false
		m.mode = testsList
		if msg.err != nil {
			return m, failed(m.log, "delete test", msg.err)
		}
		delete(m.results, msg.id)
		var cmd tea.Cmd
		m, cmd = m.reloadTests()
		return m, tea.Batch(cmd, notifyCmd("Test deleted", noticeSuccess))

	case resultSavedMsg:
		m.submitting = false
		if msg.err != nil {
			var vErr *domain.ValidationError
			if errors.As(msg.err, &vErr) {
				m.form.Invalid(vErr.Field, vErr.Message)
				return m, nil
			}
			return m, failed(m.log, "add result", msg.err)
		}
		m.mode = testsList
		delete(m.results, msg.testID)
		var cmd, rcmd tea.Cmd
		m, cmd = m.reloadTests()
		m, rcmd = m.loadResults(msg.testID)
		return m, tea.Batch(cmd, rcmd, notifyCmd("Test result added", noticeSuccess))

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		switch m.mode {
		case testsForm, testsResultForm:
			return m.updateForm(msg)
		case testsResults:
			switch msg.String() {
			case "esc", "enter", "backspace":
				m.mode = testsList
			case "a":
				return m.addResult()
			}
			return m, nil
		case testsConfirmDelete:
			switch msg.String() {
			case "y":
				return m.deleteTarget()
			case "n", "esc":
				m.mode = testsList
			}
			return m, nil
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m testsModel) updateList(msg tea.KeyMsg) (testsModel, tea.Cmd) {
	ts, _ := m.tests.Last()
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(ts)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "n":
		m.target = ""
		m.form = m.testForm(domain.TestInput{
			OrderedDate: m.now().Format(time.DateOnly),
			OrderedBy:   m.userID(),
			Status:      "ordered",
		})
		m.mode = testsForm
	case "e":
		if t, ok := m.selected(); ok {
			m.target = t.ID
			m.form = m.testForm(domain.InputFromTest(t, m.userID()))
			m.mode = testsForm
		}
	case "d":
		if t, ok := m.selected(); ok {
			m.target = t.ID
			m.mode = testsConfirmDelete
		}
	case "enter", "v":
		if t, ok := m.selected(); ok {
			m.target = t.ID
			m.mode = testsResults
			if _, have := m.results[t.ID]; !have {
				return m.loadResults(t.ID)
			}
		}
	case "a":
		if t, ok := m.selected(); ok {
			m.target = t.ID
			return m.addResult()
		}
	case "r":
		return m.load()
	}
	return m, nil
}

// addResult opens the result form for m.target unless the test already has
// results. Unknown results are fetched first.
func (m testsModel) addResult() (testsModel, tea.Cmd) {
	if !m.canRecord() {
		m.mode = testsList
		return m, notifyCmd(recordDeniedMessage, noticeError)
	}
	rs, have := m.results[m.target]
	if have && len(rs) > 0 {
		m.mode = testsList
		return m, notifyCmd(resultsExistMessage, noticeInfo)
	}
	if !have {
		m.wantResult = m.target
		return m.loadResults(m.target)
	}
	return m.openResultForm(m.target)
}

func (m testsModel) canRecord() bool {
	return m.user != nil && m.user.Role.Can(domain.CapRecordResults)
}

func (m testsModel) openResultForm(testID string) (testsModel, tea.Cmd) {
	if !m.canRecord() {
		m.mode = testsList
		return m, notifyCmd(recordDeniedMessage, noticeError)
	}
	if len(m.results[testID]) > 0 {
		m.mode = testsList
		return m, notifyCmd(resultsExistMessage, noticeInfo)
	}
	m.target = testID
	m.form = newForm(
		formField{key: "result_value", label: "Value"},
		formField{key: "result_unit", label: "Unit"},
		formField{key: "reference_range", label: "Reference range"},
		formField{key: "result_status", label: "Status", value: domain.ResultStatuses[0], options: domain.ResultStatuses},
		formField{key: "result_notes", label: "Notes"},
	)
	m.mode = testsResultForm
	return m, nil
}

func (m testsModel) testForm(in domain.TestInput) form {
	patient := formField{key: "patient_id", label: "Patient", value: in.PatientID}
	if ps, _ := m.patients.Last(); len(ps) > 0 {
		for _, p := range ps {
			patient.options = append(patient.options, p.ID)
		}
		if patient.value == "" {
			patient.value = patient.options[0]
		}
	}
	return newForm(
		patient,
		formField{key: "test_type", label: "Type", value: in.Type},
		formField{key: "test_name", label: "Name", value: in.Name},
		formField{key: "ordered_date", label: "Ordered date", value: in.OrderedDate},
		formField{key: "ordered_by", label: "Ordered by", value: in.OrderedBy},
		formField{key: "test_description", label: "Description", value: in.Description},
		formField{key: "test_status", label: "Status", value: in.Status, options: domain.TestStatuses},
	)
}

func (m testsModel) updateForm(msg tea.KeyMsg) (testsModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = testsList
		return m, nil
	case "ctrl+s":
		if m.mode == testsResultForm {
			return m.submitResult()
		}
		return m.submitTest()
	}
	m.form = m.form.Update(msg)
	return m, nil
}

func (m testsModel) submitTest() (testsModel, tea.Cmd) {
	in := domain.TestInput{
		PatientID:   m.form.Value("patient_id"),
		Type:        m.form.Value("test_type"),
		Name:        m.form.Value("test_name"),
		OrderedDate: m.form.Value("ordered_date"),
		OrderedBy:   m.form.Value("ordered_by"),
		Description: m.form.Value("test_description"),
		Status:      m.form.Value("test_status"),
	}
	if in.OrderedBy == "" {
		in.OrderedBy = m.userID()
	}
	if err := in.Validate(); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			m.form.Invalid(vErr.Field, vErr.Message)
		}
		return m, nil
	}
	m.submitting = true
	c, id := m.client, m.target
	return m, func() tea.Msg {
		if id == "" {
			t, err := c.CreateTest(context.Background(), in)
			return testSavedMsg{test: t, created: true, err: err}
		}
		t, err := c.UpdateTest(context.Background(), id, in)
		return testSavedMsg{test: t, err: err}
	}
}

func (m testsModel) submitResult() (testsModel, tea.Cmd) {
	in := domain.ResultInput{
		Value:          m.form.Value("result_value"),
		Unit:           m.form.Value("result_unit"),
		ReferenceRange: m.form.Value("reference_range"),
		Status:         m.form.Value("result_status"),
		Notes:          m.form.Value("result_notes"),
		UploadedBy:     m.userID(),
	}
	if err := in.Validate(); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			m.form.Invalid(vErr.Field, vErr.Message)
		}
		return m, nil
	}
	m.submitting = true
	c, id := m.client, m.target
	return m, func() tea.Msg {
		r, err := c.CreateTestResult(context.Background(), id, in)
		return resultSavedMsg{testID: id, result: r, err: err}
	}
}

func (m testsModel) deleteTarget() (testsModel, tea.Cmd) {
	m.submitting = true
	c, id := m.client, m.target
	return m, func() tea.Msg {
		return testDeletedMsg{id: id, err: c.DeleteTest(context.Background(), id)}
	}
}

// editing reports whether the view is capturing text input.
func (m testsModel) editing() bool {
	return m.mode == testsForm || m.mode == testsResultForm
}

func (m testsModel) View() string {
	switch m.mode {
	case testsForm:
		title := "New test"
		if m.target != "" {
			title = "Edit test " + m.target
		}
		return m.formView(title)
	case testsResultForm:
		return m.formView("Add result to " + m.target)
	case testsResults:
		return m.resultsView()
	}

	ts, ok := m.tests.Last()
	switch {
	case m.tests.Loading() && !ok:
		return " " + dimStyle.Render("loading...")
	case m.tests.Err() != nil && !ok:
		return " " + dimStyle.Render("error: "+client.UserMessage(m.tests.Err()))
	case len(ts) == 0:
		return " " + dimStyle.Render("no tests ordered, press n to order one")
	}

	var b strings.Builder
	if m.mode == testsConfirmDelete {
		b.WriteString(" " + warnStyle.Render(fmt.Sprintf("Delete test %s? y/n", m.target)) + "\n\n")
	}
	start, end := visibleWindow(len(ts), m.cursor, m.height-2)
	for i := start; i < end; i++ {
		t := ts[i]
		prefix := "   "
		style := normalStyle
		if i == m.cursor {
			prefix = " " + accentStyle.Render("▸") + " "
			style = selectedStyle
		}
		mark := metaStyle.Render("·")
		switch rs, have := m.results[t.ID]; {
		case m.fetching[t.ID]:
			mark = dimStyle.Render("…")
		case have && len(rs) > 0:
			mark = statusStyle(rs[0].Status).Render("●")
		}
		fmt.Fprintf(&b, "%s%s %s  %s  %s  %s  %s\n",
			prefix,
			mark,
			style.Render(fmt.Sprintf("%-22s", truncStr(t.Name, 22))),
			dimStyle.Render(fmt.Sprintf("%-12s", truncStr(t.Type, 12))),
			normalStyle.Render(fmt.Sprintf("%-18s", truncStr(m.patientName(t.PatientID), 18))),
			statusBadge(t.Status, 11),
			metaStyle.Render(t.OrderedDate),
		)
	}
	return b.String()
}

func (m testsModel) formView(title string) string {
	var b strings.Builder
	b.WriteString("\n " + sectionHeaderStyle.Render(title) + "\n\n")
	b.WriteString(m.form.View())
	if m.submitting {
		b.WriteString("\n " + dimStyle.Render("saving..."))
	}
	return b.String()
}

func (m testsModel) resultsView() string {
	var b strings.Builder
	name := m.target
	ts, _ := m.tests.Last()
	for _, t := range ts {
		if t.ID == m.target {
			name = t.Name + " for " + m.patientName(t.PatientID)
		}
	}
	b.WriteString("\n " + sectionHeaderStyle.Render("Results: "+name) + "\n\n")
	rs, have := m.results[m.target]
	switch {
	case m.fetching[m.target] || !have:
		b.WriteString(" " + dimStyle.Render("loading..."))
		return b.String()
	case len(rs) == 0:
		b.WriteString(" " + dimStyle.Render("no results yet, press a to add one"))
		return b.String()
	}
	for _, r := range rs {
		fmt.Fprintf(&b, " %s %s  %s  %s\n",
			selectedStyle.Render(r.Value),
			normalStyle.Render(r.Unit),
			statusStyle(r.Status).Render(orDash(r.Status)),
			metaStyle.Render("ref "+orDash(r.ReferenceRange)),
		)
		if r.Notes != "" {
			b.WriteString("   " + dimStyle.Render(oneLine(r.Notes)) + "\n")
		}
		fmt.Fprintf(&b, "   %s\n", metaStyle.Render(fmt.Sprintf("by %s . %s", orDash(r.UploadedBy), formatDate(r.CreatedAt))))
	}
	return b.String()
}

func (m testsModel) helpKeys() string {
	switch m.mode {
	case testsForm, testsResultForm:
		return helpEntry("tab", "next") + "  " + helpEntry("←/→", "cycle") + "  " + helpEntry("ctrl+s", "save") + "  " + helpEntry("esc", "cancel")
	case testsResults:
		return helpEntry("a", "add result") + "  " + helpEntry("esc", "back")
	case testsConfirmDelete:
		return helpEntry("y", "delete") + "  " + helpEntry("n", "keep")
	}
	return helpEntry("j/k", "nav") + "  " + helpEntry("enter", "results") + "  " + helpEntry("n", "new") + "  " +
		helpEntry("e", "edit") + "  " + helpEntry("d", "delete") + "  " + helpEntry("a", "add result") + "  " + helpEntry("r", "refresh")
}
