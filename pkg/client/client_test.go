package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexusmedic/medhub/pkg/domain"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/staff/login" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("login carried Authorization %q, want none", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		if body["email"] != "doctor@example.com" || body["password"] != "password123" {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"user":{"id":"d-1","name":"Dr. Jane Smith","email":"doctor@example.com","role":"doctor"},` + //nolint:errcheck
			`"access_token":"tok1","refresh_token":"ref1","expires_at":1999999999}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetDefaultHeader("Authorization", "Bearer stale")
	resp, err := c.Login(context.Background(), "doctor@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if resp.User.ID != "d-1" {
		t.Errorf("User.ID = %q, want %q", resp.User.ID, "d-1")
	}
	if resp.User.Role != domain.RoleDoctor {
		t.Errorf("User.Role = %q, want %q", resp.User.Role, domain.RoleDoctor)
	}
	if resp.AccessToken != "tok1" || resp.RefreshToken != "ref1" {
		t.Errorf("tokens = %q/%q, want tok1/ref1", resp.AccessToken, resp.RefreshToken)
	}
	if got := resp.ExpiresAt.Unix(); got != 1999999999 {
		t.Errorf("ExpiresAt = %d, want 1999999999", got)
	}
}

func TestLogin_Enveloped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"user":{"id":"d-1","role":"doctor"},"access_token":"tok1"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if resp.AccessToken != "tok1" {
		t.Errorf("AccessToken = %q, want %q", resp.AccessToken, "tok1")
	}
	if !resp.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", resp.ExpiresAt)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"}) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL).Login(context.Background(), "x@x.com", "wrong")
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("IsStatus(401) = false for %v", err)
	}
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("errors.Is(err, ErrAuthentication) = false for %v", err)
	}
	if got := UserMessage(err); got != "Invalid credentials" {
		t.Errorf("UserMessage = %q, want %q", got, "Invalid credentials")
	}
}

func TestLogin_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"user":{"id":"d-1"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL).Login(context.Background(), "a@b.c", "pw")
	if KindOf(err) != KindServer {
		t.Errorf("KindOf = %v, want %v (err %v)", KindOf(err), KindServer, err)
	}
}

func TestListPatients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/patients" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"success": true,
			"data": []domain.Patient{
				{ID: "p-1", FirstName: "Sarah", LastName: "Johnson"},
				{ID: "p-2", FirstName: "Michael", LastName: "Chen"},
			},
		})
	}))
	defer srv.Close()

	patients, err := New(srv.URL).ListPatients(context.Background())
	if err != nil {
		t.Fatalf("ListPatients() error: %v", err)
	}
	if len(patients) != 2 {
		t.Fatalf("got %d patients, want 2", len(patients))
	}
	if patients[1].FullName() != "Michael Chen" {
		t.Errorf("patients[1].FullName() = %q, want %q", patients[1].FullName(), "Michael Chen")
	}
}

func TestListReports_NullData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":true,"data":null}`)) //nolint:errcheck
	}))
	defer srv.Close()

	reports, err := New(srv.URL).ListReports(context.Background())
	if err != nil {
		t.Fatalf("ListReports() error: %v", err)
	}
	if reports == nil || len(reports) != 0 {
		t.Errorf("reports = %v, want empty non-nil slice", reports)
	}
}

func TestMalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"success false", `{"success":false,"error":"db down"}`},
		{"not json", `<html>oops</html>`},
		{"missing id", `{"success":true,"data":[{"first_name":"Ann"}]}`},
		{"wrong shape", `{"success":true,"data":{"patient_id":"p-1"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tt.body)) //nolint:errcheck
			}))
			defer srv.Close()

			_, err := New(srv.URL).ListPatients(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrServer) {
				t.Errorf("errors.Is(err, ErrServer) = false for %v", err)
			}
		})
	}
}

func TestGetFolder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/folders/f-1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"success":true,"folder":{"folder_id":"f-1","patient_id":"p-1","status":"active"},` + //nolint:errcheck
			`"patient":{"patient_id":"p-1","first_name":"Sarah","last_name":"Johnson"},` +
			`"notes":[{"id":"n-1","content":"Follow up in two weeks"}]}`))
	}))
	defer srv.Close()

	d, err := New(srv.URL).GetFolder(context.Background(), "f-1")
	if err != nil {
		t.Fatalf("GetFolder() error: %v", err)
	}
	if d.Folder.ID != "f-1" {
		t.Errorf("Folder.ID = %q, want %q", d.Folder.ID, "f-1")
	}
	if d.Patient == nil || d.Patient.FirstName != "Sarah" {
		t.Errorf("Patient = %+v, want Sarah", d.Patient)
	}
	if len(d.Notes) != 1 || d.Attachments == nil || d.Tests == nil {
		t.Errorf("notes=%d attachments=%v tests=%v", len(d.Notes), d.Attachments, d.Tests)
	}
}

func TestGetFolder_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Folder not found"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetFolder(context.Background(), "nope")
	if KindOf(err) != KindNotFound {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindNotFound)
	}
	if got := UserMessage(err); got != "Folder not found" {
		t.Errorf("UserMessage = %q, want %q", got, "Folder not found")
	}
}

func TestCreateTest_ValidationNeverSends(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreateTest(context.Background(), domain.TestInput{Name: "CBC"})
	if KindOf(err) != KindValidation {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindValidation)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
}

func TestCreateTestResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tests/t-1/results" {
			http.NotFound(w, r)
			return
		}
		var in domain.ResultInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"success": true,
			"data":    domain.TestResult{ID: "r-1", TestID: "t-1", Value: in.Value, Status: in.Status},
		})
	}))
	defer srv.Close()

	res, err := New(srv.URL).CreateTestResult(context.Background(), "t-1", domain.ResultInput{Value: "5.4", Status: "normal"})
	if err != nil {
		t.Fatalf("CreateTestResult() error: %v", err)
	}
	if res.ID != "r-1" || res.Value != "5.4" {
		t.Errorf("result = %+v", res)
	}
}

func TestHooks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("X-Hooked") != "yes" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"success":true,"data":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetDefaultHeader("Authorization", "Bearer tok")
	c.OnRequest(func(req *http.Request) { req.Header.Set("X-Hooked", "yes") })
	if _, err := c.ListReports(context.Background()); err != nil {
		t.Fatalf("ListReports() error: %v", err)
	}

	c.ClearDefaultHeader("Authorization")
	_, err := c.ListReports(context.Background())
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("err = %v, want 401 after clearing default header", err)
	}
}

func TestResponseHook_Resend(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("retried method = %s", r.Method)
		}
		var in domain.TestInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name != "CBC" {
			t.Errorf("retried body lost: %v %+v", err, in)
		}
		w.Write([]byte(`{"success":true,"data":{"test_id":"t-9","test_name":"CBC"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL)
	var resends int
	c.OnResponse(func(req *http.Request, resp *http.Response, resend Sender) (*http.Response, error) {
		if resp.StatusCode != http.StatusUnauthorized || IsRetry(req) {
			return resp, nil
		}
		resp.Body.Close() //nolint:errcheck
		resends++
		return resend(MarkRetry(req))
	})

	in := domain.TestInput{PatientID: "p-1", Type: "blood", Name: "CBC", OrderedDate: "2024-05-01"}
	got, err := c.CreateTest(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateTest() error: %v", err)
	}
	if got.ID != "t-9" {
		t.Errorf("ID = %q, want %q", got.ID, "t-9")
	}
	if resends != 1 || hits.Load() != 2 {
		t.Errorf("resends = %d hits = %d, want 1 and 2", resends, hits.Load())
	}
}

func TestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "boom"}) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL).Dashboard(context.Background())
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Errorf("error = %q, want it to contain 'boom'", got)
	}
	if KindOf(err) != KindServer {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindServer)
	}
}

func TestDashboard_Bare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"total_patients":1234,"critical_cases":18,"recent_patients":[{"id":"P-1","name":"Sarah"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	s, err := New(srv.URL).Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard() error: %v", err)
	}
	if s.TotalPatients != 1234 || s.CriticalCases != 18 || len(s.RecentPatients) != 1 {
		t.Errorf("summary = %+v", s)
	}
}

func TestDoRequest_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second): // slow server
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := New(srv.URL).ListPatients(ctx)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindNetwork)
	}
}

func TestListTests_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL).ListTests(ctx)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want *NetworkError", err)
	}
	if !netErr.Timeout() {
		t.Error("Timeout() = false, want true")
	}
	if got := UserMessage(err); got != TimeoutMessage {
		t.Errorf("UserMessage = %q, want %q", got, TimeoutMessage)
	}
}

func TestExpiryUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64 // unix seconds, 0 = absent
	}{
		{"seconds", `1999999999`, 1999999999},
		{"milliseconds", `1999999999000`, 1999999999},
		{"quoted", `"1999999999"`, 1999999999},
		{"rfc3339", `"2033-05-18T03:33:19Z"`, 1999999999},
		{"null", `null`, 0},
		{"empty string", `""`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Expiry
			if err := json.Unmarshal([]byte(tt.in), &e); err != nil {
				t.Fatalf("Unmarshal(%s) error: %v", tt.in, err)
			}
			var got int64
			if !e.IsZero() {
				got = e.Unix()
			}
			if got != tt.want {
				t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}

	var e Expiry
	if err := json.Unmarshal([]byte(`"tomorrow"`), &e); err == nil {
		t.Error("expected error for unparseable expiry")
	}
}

func TestUserMessage_Refresh(t *testing.T) {
	err := &RefreshError{Err: &HTTPError{StatusCode: http.StatusUnauthorized, Message: "refresh token revoked"}}
	if KindOf(err) != KindRefresh {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindRefresh)
	}
	if !errors.Is(err, ErrRefresh) {
		t.Error("errors.Is(err, ErrRefresh) = false")
	}
	if got := UserMessage(err); !strings.Contains(got, "expired") {
		t.Errorf("UserMessage = %q", got)
	}
}
