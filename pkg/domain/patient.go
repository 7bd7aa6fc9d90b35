package domain

import (
	"fmt"
	"strings"
	"time"
)

// Patient is a clinic patient as returned by the backend.
type Patient struct {
	ID               string `json:"patient_id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	DateOfBirth      string `json:"date_of_birth,omitempty"`
	Gender           string `json:"gender,omitempty"`
	Phone            string `json:"phone,omitempty"`
	CurrentStatus    string `json:"current_status,omitempty"`
	CurrentDiagnosis string `json:"current_diagnosis,omitempty"`
}

// Validate reports a patient without an id.
func (p Patient) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("patient: missing patient_id")
	}
	return nil
}

// FullName joins first and last name.
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Matches reports whether the patient's id or name contains query, ignoring case.
func (p Patient) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.ID), q) ||
		strings.Contains(strings.ToLower(p.FullName()), q)
}

// Diagnosis is a diagnosis recorded against a patient.
type Diagnosis struct {
	ID              string     `json:"diagnosis_id"`
	PatientID       string     `json:"patient_id"`
	Name            string     `json:"diagnosis_name"`
	Description     string     `json:"description,omitempty"`
	Severity        string     `json:"severity,omitempty"`
	TreatmentPlanID string     `json:"treatment_plan_id,omitempty"`
	DiagnosedBy     string     `json:"diagnosed_by,omitempty"`
	DiagnosedAt     *time.Time `json:"diagnosed_at,omitempty"`
}

// Validate reports a diagnosis without an id.
func (d Diagnosis) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("diagnosis: missing diagnosis_id")
	}
	return nil
}

// Activity is one step of a treatment plan.
type Activity struct {
	ID          string     `json:"activity_id"`
	PlanID      string     `json:"plan_id"`
	Type        string     `json:"activity_type,omitempty"`
	Description string     `json:"description"`
	Status      string     `json:"status,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Validate reports an activity without an id.
func (a Activity) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("activity: missing activity_id")
	}
	return nil
}
