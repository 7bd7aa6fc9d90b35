package domain

import (
	"fmt"
	"time"
)

// Report is an incoming communication shown on the Responses view.
type Report struct {
	ID           string     `json:"report_id"`
	PatientID    string     `json:"patient_id,omitempty"`
	Summary      string     `json:"report_summary,omitempty"`
	Status       string     `json:"status,omitempty"`
	Confidential bool       `json:"isconfidential"`
	CreatedBy    string     `json:"created_by,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// Validate reports a report without an id.
func (r Report) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("report: missing report_id")
	}
	return nil
}

// DisplayStatus is the status with the "Not Responded" default applied.
func (r Report) DisplayStatus() string {
	if r.Status == "" {
		return "Not Responded"
	}
	return r.Status
}

// DisplaySummary is the summary with the "No summary" default applied.
func (r Report) DisplaySummary() string {
	if r.Summary == "" {
		return "No summary"
	}
	return r.Summary
}
