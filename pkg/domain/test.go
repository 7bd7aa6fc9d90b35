package domain

import (
	"fmt"
	"time"
)

// Lab test statuses, in workflow order.
var TestStatuses = []string{"ordered", "pending", "in_progress", "completed", "cancelled"}

// Result statuses a lab technician can record.
var ResultStatuses = []string{"normal", "abnormal", "critical", "inconclusive"}

// ValidTestStatus reports whether s is a known test status.
func ValidTestStatus(s string) bool { return contains(TestStatuses, s) }

// ValidResultStatus reports whether s is a known result status.
func ValidResultStatus(s string) bool { return contains(ResultStatuses, s) }

// Test is a diagnostic test ordered for a patient.
type Test struct {
	ID          string     `json:"test_id"`
	PatientID   string     `json:"patient_id"`
	Type        string     `json:"test_type"`
	Name        string     `json:"test_name"`
	OrderedDate string     `json:"ordered_date"`
	OrderedBy   string     `json:"ordered_by"`
	Description string     `json:"test_description,omitempty"`
	Status      string     `json:"test_status"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// Validate reports a test without an id.
func (t Test) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("test: missing test_id")
	}
	return nil
}

// TestInput is the create/update payload for a test.
type TestInput struct {
	PatientID   string `json:"patient_id"`
	Type        string `json:"test_type"`
	Name        string `json:"test_name"`
	OrderedDate string `json:"ordered_date"`
	OrderedBy   string `json:"ordered_by"`
	Description string `json:"test_description"`
	Status      string `json:"test_status"`
}

// InputFromTest pre-fills an edit form from an existing test.
func InputFromTest(t Test, fallbackOrderedBy string) TestInput {
	in := TestInput{
		PatientID:   t.PatientID,
		Type:        t.Type,
		Name:        t.Name,
		OrderedDate: t.OrderedDate,
		OrderedBy:   t.OrderedBy,
		Description: t.Description,
		Status:      t.Status,
	}
	if len(in.OrderedDate) > 10 {
		in.OrderedDate = in.OrderedDate[:10]
	}
	if in.OrderedBy == "" {
		in.OrderedBy = fallbackOrderedBy
	}
	if in.Status == "" {
		in.Status = "ordered"
	}
	return in
}

// Validate checks the required fields of a test form.
func (in TestInput) Validate() error {
	switch {
	case in.PatientID == "":
		return &ValidationError{Field: "patient_id", Message: "Patient is required"}
	case in.Type == "":
		return &ValidationError{Field: "test_type", Message: "Test type is required"}
	case in.Name == "":
		return &ValidationError{Field: "test_name", Message: "Test name is required"}
	case in.OrderedDate == "":
		return &ValidationError{Field: "ordered_date", Message: "Ordered date is required"}
	}
	if _, err := time.Parse(time.DateOnly, in.OrderedDate); err != nil {
		return &ValidationError{Field: "ordered_date", Message: "Ordered date must be YYYY-MM-DD"}
	}
	if in.Status != "" && !ValidTestStatus(in.Status) {
		return &ValidationError{Field: "test_status", Message: fmt.Sprintf("Unknown status %q", in.Status)}
	}
	return nil
}

// TestResult is a recorded result for a test.
type TestResult struct {
	ID             string     `json:"result_id"`
	TestID         string     `json:"test_id"`
	Value          string     `json:"result_value"`
	Unit           string     `json:"result_unit,omitempty"`
	ReferenceRange string     `json:"reference_range,omitempty"`
	Status         string     `json:"result_status,omitempty"`
	Notes          string     `json:"result_notes,omitempty"`
	UploadedBy     string     `json:"uploaded_by,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// Validate reports a result without an id.
func (r TestResult) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("test result: missing result_id")
	}
	return nil
}

// ResultInput is the payload for recording a result.
type ResultInput struct {
	Value          string `json:"result_value"`
	Unit           string `json:"result_unit"`
	ReferenceRange string `json:"reference_range"`
	Status         string `json:"result_status"`
	Notes          string `json:"result_notes"`
	UploadedBy     string `json:"uploaded_by"`
}

// Validate checks a result form.
func (in ResultInput) Validate() error {
	if in.Value == "" {
		return &ValidationError{Field: "result_value", Message: "Result value is required"}
	}
	if in.Status != "" && !ValidResultStatus(in.Status) {
		return &ValidationError{Field: "result_status", Message: fmt.Sprintf("Unknown result status %q", in.Status)}
	}
	return nil
}
