package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nexusmedic/medhub/internal/resource"
	"github.com/nexusmedic/medhub/pkg/client"
	"github.com/nexusmedic/medhub/pkg/domain"
)

func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	return cmd()
}

func TestDashboardDropsStaleResponse(t *testing.T) {
	m := newDashboardModel(nil, zerolog.Nop())
	m, _ = m.load() // ticket 1
	m, _ = m.load() // ticket 2 supersedes it

	m, _ = m.Update(dashboardLoadedMsg{ticket: 1, summary: &domain.DashboardSummary{TotalPatients: 1}})
	if _, ok := m.summary.Value(); ok {
		t.Fatal("stale response should not resolve the dashboard")
	}
	m, _ = m.Update(dashboardLoadedMsg{ticket: 2, summary: &domain.DashboardSummary{TotalPatients: 42}})
	s, ok := m.summary.Value()
	if !ok || s.TotalPatients != 42 {
		t.Fatalf("expected current response to resolve, got %+v ok=%v", s, ok)
	}
	if !strings.Contains(m.View(), "42") {
		t.Errorf("expected stat card with 42, got:\n%s", m.View())
	}
}

func TestDashboardGreetsByRole(t *testing.T) {
	m := newDashboardModel(nil, zerolog.Nop())
	m.user = &domain.User{ID: "n-1", Name: "Grace Okafor", Role: domain.RoleNurse}
	view := m.View()
	if !strings.Contains(view, "Welcome, Grace Okafor") {
		t.Errorf("expected greeting, got:\n%s", view)
	}
	if !strings.Contains(view, domain.RoleNurse.Greeting()) {
		t.Errorf("expected nurse subtitle %q, got:\n%s", domain.RoleNurse.Greeting(), view)
	}
}

func loadedPatients(m patientsModel) patientsModel {
	m, _ = m.load()
	m, _ = m.Update(patientsLoadedMsg{ticket: 1, patients: []domain.Patient{
		{ID: "P-3821", FirstName: "Michael", LastName: "Chen"},
		{ID: "P-4532", FirstName: "Sarah", LastName: "Johnson"},
	}})
	return m
}

func TestPatientsSearchFilters(t *testing.T) {
	m := loadedPatients(newPatientsModel(nil, zerolog.Nop()))
	m.height = 30

	m, _ = m.Update(keyRunes("/"))
	for _, r := range "sarah" {
		m, _ = m.Update(keyRunes(string(r)))
	}
	view := m.View()
	if !strings.Contains(view, "Sarah Johnson") {
		t.Errorf("expected match in view, got:\n%s", view)
	}
	if strings.Contains(view, "Michael Chen") {
		t.Errorf("non-matching patient should be hidden, got:\n%s", view)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.query != "" || m.searching {
		t.Errorf("esc should clear the search, query=%q searching=%v", m.query, m.searching)
	}
}

func TestPatientsCopyID(t *testing.T) {
	var copied string
	orig := copyToClipboard
	copyToClipboard = func(s string) error { copied = s; return nil }
	defer func() { copyToClipboard = orig }()

	m := loadedPatients(newPatientsModel(nil, zerolog.Nop()))
	m, _ = m.Update(keyRunes("j"))
	m, cmd := m.Update(keyRunes("c"))
	msg := runCmd(t, cmd)
	if copied != "P-4532" {
		t.Errorf("copied %q, want P-4532", copied)
	}
	_, cmd = m.Update(msg)
	note := runCmd(t, cmd).(noticeMsg)
	if note.level != noticeSuccess || !strings.Contains(note.text, "P-4532") {
		t.Errorf("unexpected notice %+v", note)
	}
}

func TestResponsesListDefaultsAndPreview(t *testing.T) {
	m := newResponsesModel(nil, zerolog.Nop())
	m.height = 20
	m, _ = m.load()
	long := strings.Repeat("x", 80)
	m, _ = m.Update(reportsLoadedMsg{ticket: 1, reports: []domain.Report{
		{ID: "RP-1", Summary: long, Status: "Responded"},
		{ID: "RP-2", Confidential: true},
	}})

	view := m.View()
	if !strings.Contains(view, strings.Repeat("x", 60)+"...") {
		t.Errorf("expected 60-rune preview, got:\n%s", view)
	}
	if strings.Contains(view, strings.Repeat("x", 61)) {
		t.Errorf("preview should stop at 60 runes")
	}
	for _, want := range []string{"Not Responded", "No summary", "◆"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view, got:\n%s", want, view)
		}
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.detail || !strings.Contains(m.View(), strings.Repeat("x", 70)) {
		t.Errorf("detail overlay should show the full summary, got:\n%s", m.View())
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.detail {
		t.Error("esc should close the detail overlay")
	}
}

func TestResponsesErrorRaisesNotice(t *testing.T) {
	m := newResponsesModel(nil, zerolog.Nop())
	m, _ = m.load()
	err := &client.HTTPError{StatusCode: 500, Message: "db down"}
	m, cmd := m.Update(reportsLoadedMsg{ticket: 1, err: err})
	note := runCmd(t, cmd).(noticeMsg)
	if note.text != "Server error: db down" || note.level != noticeError {
		t.Errorf("unexpected notice %+v", note)
	}
	if !strings.Contains(m.View(), "error:") {
		t.Errorf("expected error line in view, got:\n%s", m.View())
	}
}

func loadedTests(t *testing.T) testsModel {
	t.Helper()
	m := newTestsModel(nil, zerolog.Nop())
	m.user = &domain.User{ID: "l-1", Role: domain.RoleLabTechnician}
	m.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	m.height = 30
	m, _ = m.load()
	m, _ = m.Update(testPatientsLoadedMsg{ticket: 1, patients: []domain.Patient{{ID: "P-2198", FirstName: "Robert", LastName: "Garcia"}}})
	// Results are fetched per test once the list arrives.
	m, _ = m.Update(testsLoadedMsg{ticket: 1, tests: []domain.Test{
		{ID: "T-1", PatientID: "P-2198", Name: "Chest X-ray", Type: "imaging", Status: "completed", OrderedDate: "2026-02-27"},
		{ID: "T-2", PatientID: "P-2198", Name: "Complete blood count", Type: "blood", Status: "in_progress", OrderedDate: "2026-02-28"},
	}})
	m, _ = m.Update(resultsLoadedMsg{testID: "T-1", results: []domain.TestResult{{ID: "R-1", TestID: "T-1", Value: "clear", Status: "normal"}}})
	m, _ = m.Update(resultsLoadedMsg{testID: "T-2", results: []domain.TestResult{}})
	return m
}

func TestTestsListShowsPatientNames(t *testing.T) {
	m := loadedTests(t)
	view := m.View()
	for _, want := range []string{"Chest X-ray", "Robert Garcia", "in_progress"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in tests view, got:\n%s", want, view)
		}
	}
}

func TestTestsAddResultRefusedWhenResultsExist(t *testing.T) {
	m := loadedTests(t)
	m, cmd := m.Update(keyRunes("a"))
	note := runCmd(t, cmd).(noticeMsg)
	if note.text != resultsExistMessage {
		t.Errorf("notice = %q, want %q", note.text, resultsExistMessage)
	}
	if m.mode != testsList {
		t.Errorf("mode = %d, want list", m.mode)
	}

	m, _ = m.Update(keyRunes("j"))
	m, _ = m.Update(keyRunes("a"))
	if m.mode != testsResultForm || m.target != "T-2" {
		t.Fatalf("expected result form for T-2, mode=%d target=%q", m.mode, m.target)
	}
}

func TestTestsAddResultNeedsRecordCapability(t *testing.T) {
	m := loadedTests(t)
	m.user = &domain.User{ID: "d-1", Role: domain.RoleDoctor}
	m, _ = m.Update(keyRunes("j"))
	m, cmd := m.Update(keyRunes("a"))
	if m.mode != testsList {
		t.Errorf("mode = %d, want list", m.mode)
	}
	note := runCmd(t, cmd).(noticeMsg)
	if note.text != recordDeniedMessage {
		t.Errorf("notice = %q, want %q", note.text, recordDeniedMessage)
	}
}

func TestTestsAddResultWaitsForUnknownResults(t *testing.T) {
	m := loadedTests(t)
	delete(m.results, "T-2")
	m, _ = m.Update(keyRunes("j"))
	m, cmd := m.Update(keyRunes("a"))
	if cmd == nil || m.wantResult != "T-2" {
		t.Fatalf("expected a results fetch for T-2, wantResult=%q", m.wantResult)
	}
	m, cmd = m.Update(resultsLoadedMsg{testID: "T-2", results: []domain.TestResult{{ID: "R-9", TestID: "T-2", Value: "5.4"}}})
	if m.mode == testsResultForm {
		t.Fatal("result form should stay closed when results arrived")
	}
	note := runCmd(t, cmd).(noticeMsg)
	if note.text != resultsExistMessage {
		t.Errorf("notice = %q", note.text)
	}
}

func TestTestsFormValidatesBeforeSending(t *testing.T) {
	m := loadedTests(t)
	m, _ = m.Update(keyRunes("n"))
	if m.mode != testsForm {
		t.Fatalf("mode = %d, want form", m.mode)
	}
	if got := m.form.Value("ordered_date"); got != "2026-03-04" {
		t.Errorf("ordered_date default = %q", got)
	}
	if got := m.form.Value("patient_id"); got != "P-2198" {
		t.Errorf("patient default = %q", got)
	}
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd != nil {
		t.Fatal("invalid form must not send a request")
	}
	if !strings.Contains(m.View(), "Test type is required") {
		t.Errorf("expected inline validation, got:\n%s", m.View())
	}
}

func TestTestsEditPrefillsForm(t *testing.T) {
	m := loadedTests(t)
	m, _ = m.Update(keyRunes("e"))
	if m.mode != testsForm || m.target != "T-1" {
		t.Fatalf("expected edit form for T-1, mode=%d target=%q", m.mode, m.target)
	}
	if got := m.form.Value("test_name"); got != "Chest X-ray" {
		t.Errorf("test_name = %q", got)
	}
	if got := m.form.Value("ordered_by"); got != "l-1" {
		t.Errorf("ordered_by should fall back to the signed-in user, got %q", got)
	}
}

func TestTestsDeleteAsksFirst(t *testing.T) {
	m := loadedTests(t)
	m, _ = m.Update(keyRunes("d"))
	if m.mode != testsConfirmDelete {
		t.Fatalf("mode = %d, want confirm", m.mode)
	}
	if !strings.Contains(m.View(), "Delete test T-1?") {
		t.Errorf("expected confirmation prompt, got:\n%s", m.View())
	}
	m, _ = m.Update(keyRunes("n"))
	if m.mode != testsList {
		t.Errorf("n should cancel, mode = %d", m.mode)
	}
}

func TestTestsTimeoutNotice(t *testing.T) {
	m := newTestsModel(nil, zerolog.Nop())
	m, _ = m.load()
	err := fmt.Errorf("client.ListTests: %w", &client.NetworkError{Err: context.DeadlineExceeded})
	m, cmd := m.Update(testsLoadedMsg{ticket: 1, err: err})
	note := runCmd(t, cmd).(noticeMsg)
	if note.text != client.TimeoutMessage {
		t.Errorf("notice = %q, want timeout message", note.text)
	}
	if m.tests.State() != resource.Failed {
		t.Errorf("state = %v, want failed", m.tests.State())
	}
}

func TestFolderIgnoresActivitiesFromEarlierLoad(t *testing.T) {
	m := newFolderModel(nil, zerolog.Nop(), "F-101")
	m, _ = m.load()
	m, _ = m.Update(folderLoadedMsg{ticket: 1, detail: &domain.FolderDetail{Folder: domain.Folder{ID: "F-101", PatientID: "P-2198"}}})
	// Reset took ticket 1; the diagnoses fetch holds ticket 2.
	old := resource.Ticket(2)
	m, _ = m.Update(diagnosesLoadedMsg{ticket: old, diagnoses: []domain.Diagnosis{{ID: "DX-2", Name: "Pneumonia", TreatmentPlanID: "TP-2"}}})

	m, _ = m.Update(activitiesLoadedMsg{ticket: old, planID: "TP-2", activities: []domain.Activity{{ID: "A-1", Description: "IV antibiotics"}}})
	if !strings.Contains(m.View(), "IV antibiotics") {
		t.Fatalf("expected activity in view, got:\n%s", m.View())
	}

	m, _ = m.load()
	m, _ = m.Update(activitiesLoadedMsg{ticket: old, planID: "TP-2", activities: []domain.Activity{{ID: "A-2", Description: "stale"}}})
	if len(m.activities) != 0 {
		t.Errorf("activities from an earlier load should be dropped, got %v", m.activities)
	}
}
