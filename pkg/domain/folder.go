package domain

import (
	"fmt"
	"time"
)

// Folder statuses offered when opening a folder.
var FolderStatuses = []string{"active", "archived", "closed"}

// Folder is a patient record folder.
type Folder struct {
	ID        string    `json:"folder_id"`
	PatientID string    `json:"patient_id"`
	CreatedBy string    `json:"created_by"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate reports a folder without an id.
func (f Folder) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("folder: missing folder_id")
	}
	return nil
}

// Note is a free-text note filed in a folder.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Attachment is a file filed in a folder.
type Attachment struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// FolderDetail is everything the folder view shows for one folder.
type FolderDetail struct {
	Folder      Folder       `json:"folder"`
	Patient     *Patient     `json:"patient,omitempty"`
	Notes       []Note       `json:"notes"`
	Attachments []Attachment `json:"attachments"`
	Tests       []Test       `json:"tests"`
	Diagnoses   []Diagnosis  `json:"diagnoses,omitempty"`
}

// Validate checks the folder and patient carried by the detail.
func (d FolderDetail) Validate() error {
	if err := d.Folder.Validate(); err != nil {
		return err
	}
	if d.Patient != nil {
		if err := d.Patient.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CreateFolderRequest is the payload for opening a new folder.
type CreateFolderRequest struct {
	PatientID string `json:"patient_id"`
	CreatedBy string `json:"created_by"`
	Status    string `json:"status"`
}

// Validate checks a folder request before it is sent.
func (r CreateFolderRequest) Validate() error {
	if r.PatientID == "" {
		return &ValidationError{Field: "patient_id", Message: "Patient is required"}
	}
	if r.CreatedBy == "" {
		return &ValidationError{Field: "created_by", Message: "Creator is required"}
	}
	if !contains(FolderStatuses, r.Status) {
		return &ValidationError{Field: "status", Message: fmt.Sprintf("Status must be one of %v", FolderStatuses)}
	}
	return nil
}
