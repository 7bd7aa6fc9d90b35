package devapi

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexusmedic/medhub/pkg/domain"
)

// DemoPassword is the password of every seeded staff account.
const DemoPassword = "password"

type account struct {
	user domain.User
	hash []byte
}

// data is the backend's in-memory database.
type data struct {
	mu sync.RWMutex

	accounts    map[string]*account // by lowercase email
	patients    []domain.Patient
	folders     []domain.Folder
	notes       map[string][]domain.Note       // by folder id
	attachments map[string][]domain.Attachment // by folder id
	diagnoses   []domain.Diagnosis
	activities  []domain.Activity
	tests       []domain.Test
	results     map[string][]domain.TestResult // by test id
	reports     []domain.Report
}

func seed(cost int, now time.Time) (*data, error) {
	d := &data{
		accounts:    map[string]*account{},
		notes:       map[string][]domain.Note{},
		attachments: map[string][]domain.Attachment{},
		results:     map[string][]domain.TestResult{},
	}

	staff := []domain.User{
		{ID: "d-1", Name: "Dr. Jane Smith", Email: "doctor@example.com", Role: domain.RoleDoctor},
		{ID: "l-1", Name: "Sam Patel", Email: "lab@example.com", Role: domain.RoleLabTechnician},
		{ID: "a-1", Name: "Alex Morgan", Email: "admin@example.com", Role: domain.RoleAdmin},
		{ID: "n-1", Name: "Grace Okafor", Email: "nurse@example.com", Role: domain.RoleNurse},
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}
	for _, u := range staff {
		d.accounts[strings.ToLower(u.Email)] = &account{user: u, hash: hash}
	}

	d.patients = []domain.Patient{
		{ID: "P-3821", FirstName: "Michael", LastName: "Chen", DateOfBirth: "1981-03-02", Gender: "male", CurrentStatus: "stable", CurrentDiagnosis: "Hypertension"},
		{ID: "P-4532", FirstName: "Sarah", LastName: "Johnson", DateOfBirth: "1988-11-19", Gender: "female", CurrentStatus: "improving", CurrentDiagnosis: "Post-surgery recovery"},
		{ID: "P-2198", FirstName: "Robert", LastName: "Garcia", DateOfBirth: "1955-06-30", Gender: "male", CurrentStatus: "critical", CurrentDiagnosis: "Pneumonia"},
		{ID: "P-5670", FirstName: "Emily", LastName: "Wilson", DateOfBirth: "1994-01-08", Gender: "female", CurrentStatus: "observation", CurrentDiagnosis: "Migraine"},
		{ID: "P-1087", FirstName: "David", LastName: "Thompson", DateOfBirth: "1969-09-14", Gender: "male", CurrentStatus: "stable", CurrentDiagnosis: "Diabetes follow-up"},
	}

	day := 24 * time.Hour
	d.folders = []domain.Folder{
		{ID: "F-100", PatientID: "P-3821", CreatedBy: "d-1", Status: "active", CreatedAt: now.Add(-30 * day), UpdatedAt: now.Add(-2 * day)},
		{ID: "F-101", PatientID: "P-2198", CreatedBy: "d-1", Status: "active", CreatedAt: now.Add(-5 * day), UpdatedAt: now.Add(-day)},
		{ID: "F-102", PatientID: "P-1087", CreatedBy: "n-1", Status: "archived", CreatedAt: now.Add(-200 * day), UpdatedAt: now.Add(-90 * day)},
	}
	d.notes["F-100"] = []domain.Note{
		{ID: "N-1", Content: "BP 150/95 on admission. Started amlodipine 5mg.", CreatedBy: "d-1", CreatedAt: now.Add(-30 * day)},
		{ID: "N-2", Content: "BP trending down. Review in two weeks.", CreatedBy: "d-1", CreatedAt: now.Add(-2 * day)},
	}
	d.notes["F-101"] = []domain.Note{
		{ID: "N-3", Content: "Admitted with fever and productive cough. Chest X-ray ordered.", CreatedBy: "d-1", CreatedAt: now.Add(-5 * day)},
	}
	d.attachments["F-101"] = []domain.Attachment{
		{ID: "AT-1", FileName: "chest-xray.png", MimeType: "image/png"},
	}

	d.diagnoses = []domain.Diagnosis{
		{ID: "DX-1", PatientID: "P-3821", Name: "Essential hypertension", Severity: "moderate", TreatmentPlanID: "TP-1", DiagnosedBy: "d-1"},
		{ID: "DX-2", PatientID: "P-2198", Name: "Community-acquired pneumonia", Severity: "severe", TreatmentPlanID: "TP-2", DiagnosedBy: "d-1"},
		{ID: "DX-3", PatientID: "P-1087", Name: "Type 2 diabetes", Severity: "mild", DiagnosedBy: "d-1"},
	}
	sched := now.Add(3 * day)
	d.activities = []domain.Activity{
		{ID: "AC-1", PlanID: "TP-1", Type: "medication", Description: "Amlodipine 5mg daily", Status: "in_progress"},
		{ID: "AC-2", PlanID: "TP-1", Type: "follow_up", Description: "Blood pressure review", Status: "scheduled", ScheduledAt: &sched},
		{ID: "AC-3", PlanID: "TP-2", Type: "medication", Description: "IV antibiotics", Status: "in_progress"},
	}

	d.tests = []domain.Test{
		{ID: "T-1", PatientID: "P-2198", Type: "imaging", Name: "Chest X-ray", OrderedDate: now.Add(-5 * day).Format(time.DateOnly), OrderedBy: "d-1", Status: "completed"},
		{ID: "T-2", PatientID: "P-2198", Type: "blood", Name: "Complete blood count", OrderedDate: now.Add(-4 * day).Format(time.DateOnly), OrderedBy: "d-1", Status: "in_progress"},
		{ID: "T-3", PatientID: "P-1087", Type: "blood", Name: "HbA1c", OrderedDate: now.Add(-day).Format(time.DateOnly), OrderedBy: "n-1", Status: "ordered"},
	}
	d.results["T-1"] = []domain.TestResult{
		{ID: "R-1", TestID: "T-1", Value: "Right lower lobe consolidation", Status: "abnormal", UploadedBy: "l-1"},
	}

	confidential := now.Add(-day)
	d.reports = []domain.Report{
		{ID: "RP-1", PatientID: "P-2198", Summary: "Radiology report: right lower lobe consolidation consistent with pneumonia. Recommend follow-up imaging in six weeks.", Status: "Responded", CreatedBy: "l-1", CreatedAt: &confidential},
		{ID: "RP-2", PatientID: "P-3821", Summary: "Cardiology referral letter", Confidential: true, CreatedBy: "d-1"},
		{ID: "RP-3", CreatedBy: "n-1"},
	}
	return d, nil
}

func (d *data) authenticate(email, password string) (domain.User, bool) {
	d.mu.RLock()
	acct, ok := d.accounts[strings.ToLower(strings.TrimSpace(email))]
	d.mu.RUnlock()
	if !ok {
		return domain.User{}, false
	}
	if bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return domain.User{}, false
	}
	return acct.user, true
}

func (d *data) userByID(id string) (domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.accounts {
		if a.user.ID == id {
			return a.user, true
		}
	}
	return domain.User{}, false
}

func (d *data) patient(id string) (domain.Patient, bool) {
	for _, p := range d.patients {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Patient{}, false
}

func (d *data) listPatients() []domain.Patient {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Patient(nil), d.patients...)
}

func (d *data) diagnosesFor(patientID string) ([]domain.Diagnosis, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.patient(patientID); !ok {
		return nil, false
	}
	out := []domain.Diagnosis{}
	for _, dx := range d.diagnoses {
		if dx.PatientID == patientID {
			out = append(out, dx)
		}
	}
	return out, true
}

func (d *data) activitiesFor(planID string) []domain.Activity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []domain.Activity{}
	for _, a := range d.activities {
		if a.PlanID == planID {
			out = append(out, a)
		}
	}
	return out
}

func (d *data) listFolders() []domain.Folder {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := append([]domain.Folder(nil), d.folders...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (d *data) createFolder(req domain.CreateFolderRequest, now time.Time) (domain.Folder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.patient(req.PatientID); !ok {
		return domain.Folder{}, &domain.ValidationError{Field: "patient_id", Message: "Unknown patient"}
	}
	f := domain.Folder{
		ID:        "F-" + uuid.NewString()[:8],
		PatientID: req.PatientID,
		CreatedBy: req.CreatedBy,
		Status:    req.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.folders = append(d.folders, f)
	return f, nil
}

func (d *data) folderDetail(id string) (domain.FolderDetail, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, f := range d.folders {
		if f.ID != id {
			continue
		}
		detail := domain.FolderDetail{
			Folder:      f,
			Notes:       append([]domain.Note{}, d.notes[id]...),
			Attachments: append([]domain.Attachment{}, d.attachments[id]...),
			Tests:       []domain.Test{},
		}
		if p, ok := d.patient(f.PatientID); ok {
			detail.Patient = &p
		}
		for _, t := range d.tests {
			if t.PatientID == f.PatientID {
				detail.Tests = append(detail.Tests, t)
			}
		}
		return detail, true
	}
	return domain.FolderDetail{}, false
}

func (d *data) listTests() []domain.Test {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Test(nil), d.tests...)
}

func (d *data) testIndex(id string) int {
	for i, t := range d.tests {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (d *data) createTest(in domain.TestInput, now time.Time) (domain.Test, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.patient(in.PatientID); !ok {
		return domain.Test{}, &domain.ValidationError{Field: "patient_id", Message: "Unknown patient"}
	}
	t := testFromInput("T-"+uuid.NewString()[:8], in)
	t.CreatedAt = &now
	d.tests = append(d.tests, t)
	return t, nil
}

func (d *data) updateTest(id string, in domain.TestInput) (domain.Test, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.testIndex(id)
	if i < 0 {
		return domain.Test{}, false
	}
	t := testFromInput(id, in)
	t.CreatedAt = d.tests[i].CreatedAt
	d.tests[i] = t
	return t, true
}

func (d *data) deleteTest(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.testIndex(id)
	if i < 0 {
		return false
	}
	d.tests = append(d.tests[:i], d.tests[i+1:]...)
	delete(d.results, id)
	return true
}

func (d *data) resultsFor(testID string) ([]domain.TestResult, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.testIndex(testID) < 0 {
		return nil, false
	}
	return append([]domain.TestResult{}, d.results[testID]...), true
}

func (d *data) addResult(testID string, in domain.ResultInput, now time.Time) (domain.TestResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.testIndex(testID)
	if i < 0 {
		return domain.TestResult{}, false
	}
	r := domain.TestResult{
		ID:             "R-" + uuid.NewString()[:8],
		TestID:         testID,
		Value:          in.Value,
		Unit:           in.Unit,
		ReferenceRange: in.ReferenceRange,
		Status:         in.Status,
		Notes:          in.Notes,
		UploadedBy:     in.UploadedBy,
		CreatedAt:      &now,
	}
	d.results[testID] = append(d.results[testID], r)
	d.tests[i].Status = "completed"
	return r, true
}

func (d *data) listReports() []domain.Report {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domain.Report(nil), d.reports...)
}

func (d *data) summary(now time.Time) domain.DashboardSummary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s := domain.DashboardSummary{
		TotalPatients:  len(d.patients),
		RecentPatients: []domain.RecentPatient{},
	}
	for _, p := range d.patients {
		switch p.CurrentStatus {
		case "critical":
			s.CriticalCases++
			s.ActiveCases++
		case "stable", "improving", "observation":
			s.ActiveCases++
		}
	}
	for _, f := range d.folders {
		s.MedicalRecords++
		if now.Sub(f.UpdatedAt) < 24*time.Hour {
			s.UpdatedToday++
		}
		if now.Sub(f.CreatedAt) < 7*24*time.Hour {
			s.AdmittedWeek++
		}
	}
	for _, t := range d.tests {
		if t.Status == "ordered" || t.Status == "pending" || t.Status == "in_progress" {
			s.PendingTests++
		}
	}
	for _, r := range d.reports {
		if r.Status == "" {
			s.UnreadReports++
		}
	}
	for _, p := range d.patients {
		rp := domain.RecentPatient{
			ID:        p.ID,
			Name:      p.FullName(),
			Status:    p.CurrentStatus,
			Diagnosis: p.CurrentDiagnosis,
		}
		if dob, err := time.Parse(time.DateOnly, p.DateOfBirth); err == nil {
			rp.Age = age(dob, now)
		}
		for _, f := range d.folders {
			if f.PatientID == p.ID {
				rp.AdmissionDate = f.CreatedAt.Format(time.DateOnly)
			}
		}
		s.RecentPatients = append(s.RecentPatients, rp)
	}
	return s
}

func age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		years--
	}
	return years
}

func testFromInput(id string, in domain.TestInput) domain.Test {
	status := in.Status
	if status == "" {
		status = "ordered"
	}
	return domain.Test{
		ID:          id,
		PatientID:   in.PatientID,
		Type:        in.Type,
		Name:        in.Name,
		OrderedDate: in.OrderedDate,
		OrderedBy:   in.OrderedBy,
		Description: in.Description,
		Status:      status,
	}
}
