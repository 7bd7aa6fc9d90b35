package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nexusmedic/medhub/pkg/domain"
)

// TestsTimeout is the wall-clock budget for listing tests, which can be slow
// on large clinics.
const TestsTimeout = 20 * time.Second

// Dashboard fetches the aggregate shown on the dashboard view.
func (c *Client) Dashboard(ctx context.Context) (*domain.DashboardSummary, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/dashboard", &raw); err != nil {
		return nil, fmt.Errorf("client.Dashboard: %w", err)
	}
	data, err := rawData(raw)
	if err != nil {
		return nil, fmt.Errorf("client.Dashboard: %w", err)
	}
	var summary domain.DashboardSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("client.Dashboard: %w", &PayloadError{Reason: "decode summary", Err: err})
	}
	return &summary, nil
}

// ListPatients fetches every patient visible to the user.
func (c *Client) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	patients, err := getList[domain.Patient](ctx, c, "/patients")
	if err != nil {
		return nil, fmt.Errorf("client.ListPatients: %w", err)
	}
	return patients, nil
}

// PatientDiagnoses fetches the diagnoses recorded for a patient.
func (c *Client) PatientDiagnoses(ctx context.Context, patientID string) ([]domain.Diagnosis, error) {
	diagnoses, err := getList[domain.Diagnosis](ctx, c, "/patients/"+url.PathEscape(patientID)+"/diagnoses")
	if err != nil {
		return nil, fmt.Errorf("client.PatientDiagnoses: %w", err)
	}
	return diagnoses, nil
}

// TreatmentPlanActivities fetches the activities of a treatment plan.
func (c *Client) TreatmentPlanActivities(ctx context.Context, planID string) ([]domain.Activity, error) {
	acts, err := getList[domain.Activity](ctx, c, "/treatment-plans/"+url.PathEscape(planID)+"/activities")
	if err != nil {
		return nil, fmt.Errorf("client.TreatmentPlanActivities: %w", err)
	}
	return acts, nil
}

// --- Folders ---

// ListFolders fetches all patient folders.
func (c *Client) ListFolders(ctx context.Context) ([]domain.Folder, error) {
	folders, err := getList[domain.Folder](ctx, c, "/folders")
	if err != nil {
		return nil, fmt.Errorf("client.ListFolders: %w", err)
	}
	return folders, nil
}

// CreateFolder opens a new folder for a patient.
func (c *Client) CreateFolder(ctx context.Context, req domain.CreateFolderRequest) (*domain.Folder, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("client.CreateFolder: %w", err)
	}
	f, err := sendOne[domain.Folder](ctx, c, call{method: http.MethodPost, path: "/folders", body: req})
	if err != nil {
		return nil, fmt.Errorf("client.CreateFolder: %w", err)
	}
	return f, nil
}

// GetFolder fetches a folder with its patient, notes, attachments and tests.
// This endpoint replies with the members at the top level rather than under data.
func (c *Client) GetFolder(ctx context.Context, id string) (*domain.FolderDetail, error) {
	var resp struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
		domain.FolderDetail
	}
	if err := c.get(ctx, "/folders/"+url.PathEscape(id), &resp); err != nil {
		return nil, fmt.Errorf("client.GetFolder: %w", err)
	}
	if resp.Success != nil && !*resp.Success {
		return nil, fmt.Errorf("client.GetFolder: %w", &PayloadError{Reason: resp.Error})
	}
	if err := resp.FolderDetail.Validate(); err != nil {
		return nil, fmt.Errorf("client.GetFolder: %w", &PayloadError{Reason: "invalid folder", Err: err})
	}
	d := resp.FolderDetail
	if d.Notes == nil {
		d.Notes = []domain.Note{}
	}
	if d.Attachments == nil {
		d.Attachments = []domain.Attachment{}
	}
	if d.Tests == nil {
		d.Tests = []domain.Test{}
	}
	return &d, nil
}

// --- Tests ---

// ListTests fetches all lab tests. The call is bounded by TestsTimeout rather
// than the client default.
func (c *Client) ListTests(ctx context.Context) ([]domain.Test, error) {
	var env envelope[[]domain.Test]
	if err := c.doRequest(ctx, call{method: http.MethodGet, path: "/tests", out: &env, timeout: TestsTimeout}); err != nil {
		return nil, fmt.Errorf("client.ListTests: %w", err)
	}
	if err := env.check(); err != nil {
		return nil, fmt.Errorf("client.ListTests: %w", err)
	}
	if err := validateAll(env.Data); err != nil {
		return nil, fmt.Errorf("client.ListTests: %w", err)
	}
	if env.Data == nil {
		return []domain.Test{}, nil
	}
	return env.Data, nil
}

// CreateTest orders a new test.
func (c *Client) CreateTest(ctx context.Context, in domain.TestInput) (*domain.Test, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("client.CreateTest: %w", err)
	}
	t, err := sendOne[domain.Test](ctx, c, call{method: http.MethodPost, path: "/tests", body: in})
	if err != nil {
		return nil, fmt.Errorf("client.CreateTest: %w", err)
	}
	return t, nil
}

// UpdateTest replaces the fields of an existing test.
func (c *Client) UpdateTest(ctx context.Context, id string, in domain.TestInput) (*domain.Test, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("client.UpdateTest: %w", err)
	}
	t, err := sendOne[domain.Test](ctx, c, call{method: http.MethodPut, path: "/tests/" + url.PathEscape(id), body: in})
	if err != nil {
		return nil, fmt.Errorf("client.UpdateTest: %w", err)
	}
	return t, nil
}

// DeleteTest removes a test.
func (c *Client) DeleteTest(ctx context.Context, id string) error {
	if err := c.delete(ctx, "/tests/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("client.DeleteTest: %w", err)
	}
	return nil
}

// ListTestResults fetches the results recorded for a test.
func (c *Client) ListTestResults(ctx context.Context, testID string) ([]domain.TestResult, error) {
	results, err := getList[domain.TestResult](ctx, c, "/tests/"+url.PathEscape(testID)+"/results")
	if err != nil {
		return nil, fmt.Errorf("client.ListTestResults: %w", err)
	}
	return results, nil
}

// CreateTestResult records a result for a test.
func (c *Client) CreateTestResult(ctx context.Context, testID string, in domain.ResultInput) (*domain.TestResult, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("client.CreateTestResult: %w", err)
	}
	r, err := sendOne[domain.TestResult](ctx, c, call{
		method: http.MethodPost,
		path:   "/tests/" + url.PathEscape(testID) + "/results",
		body:   in,
	})
	if err != nil {
		return nil, fmt.Errorf("client.CreateTestResult: %w", err)
	}
	return r, nil
}

// --- Reports ---

// ListReports fetches incoming reports for the Responses view.
func (c *Client) ListReports(ctx context.Context) ([]domain.Report, error) {
	reports, err := getList[domain.Report](ctx, c, "/reports")
	if err != nil {
		return nil, fmt.Errorf("client.ListReports: %w", err)
	}
	return reports, nil
}
