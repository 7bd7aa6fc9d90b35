package devapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	_, srv := newTestServerWith(t)
	return srv
}

func newTestServerWith(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(Config{Secret: []byte("test-secret"), BcryptCost: bcrypt.MinCost, Logger: zerolog.Nop()})
	require.NoError(t, err)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+APIPrefix+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body %s", raw)
	}
	return resp.StatusCode, out
}

func login(t *testing.T, srv *httptest.Server, email string) (access, refresh string) {
	t.Helper()
	status, body := call(t, srv, http.MethodPost, "/auth/staff/login", "", map[string]string{"email": email, "password": DemoPassword})
	require.Equal(t, http.StatusOK, status, "body %v", body)
	return body["access_token"].(string), body["refresh_token"].(string)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	status, body := call(t, srv, http.MethodPost, "/auth/staff/login", "", map[string]string{
		"email": "doctor@example.com", "password": DemoPassword,
	})
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	require.Equal(t, "d-1", user["id"])
	require.Equal(t, "Dr. Jane Smith", user["name"])
	require.Equal(t, "doctor", user["role"])
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
	require.Greater(t, body["expires_at"].(float64), float64(0))
}

func TestLogin_Rejected(t *testing.T) {
	srv := newTestServer(t)

	status, body := call(t, srv, http.MethodPost, "/auth/staff/login", "", map[string]string{
		"email": "doctor@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Invalid credentials", body["error"])

	status, _ = call(t, srv, http.MethodPost, "/auth/staff/login", "", map[string]string{"email": "nobody@example.com", "password": "x"})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, srv, http.MethodPost, "/auth/staff/login", "", map[string]string{"email": ""})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestRefreshRotates(t *testing.T) {
	srv := newTestServer(t)
	_, refresh := login(t, srv, "doctor@example.com")

	status, body := call(t, srv, http.MethodPost, "/auth/staff/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body["access_token"])
	require.NotEqual(t, refresh, body["refresh_token"])

	// A refresh token is single use.
	status, body = call(t, srv, http.MethodPost, "/auth/staff/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Invalid refresh token", body["error"])
}

func TestProtectedRoutes(t *testing.T) {
	s, srv := newTestServerWith(t)

	status, _ := call(t, srv, http.MethodGet, "/patients", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	status, _ = call(t, srv, http.MethodGet, "/patients", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	access, _ := login(t, srv, "doctor@example.com")
	status, body := call(t, srv, http.MethodGet, "/patients", access, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	require.Len(t, body["data"], 5)

	s.ExpireAccessTokens()
	status, _ = call(t, srv, http.MethodGet, "/patients", access, nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestTestsRequireCapability(t *testing.T) {
	srv := newTestServer(t)

	doctor, _ := login(t, srv, "doctor@example.com")
	status, _ := call(t, srv, http.MethodGet, "/tests", doctor, nil)
	require.Equal(t, http.StatusForbidden, status)

	lab, _ := login(t, srv, "lab@example.com")
	status, body := call(t, srv, http.MethodGet, "/tests", lab, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["data"], 3)
}

func TestTestLifecycle(t *testing.T) {
	srv := newTestServer(t)
	lab, _ := login(t, srv, "lab@example.com")

	status, body := call(t, srv, http.MethodPost, "/tests", lab, map[string]string{
		"patient_id": "P-3821", "test_type": "blood", "test_name": "Lipid panel",
		"ordered_date": "2024-05-01", "ordered_by": "d-1",
	})
	require.Equal(t, http.StatusCreated, status, "body %v", body)
	created := body["data"].(map[string]any)
	id := created["test_id"].(string)
	require.Equal(t, "ordered", created["test_status"])

	status, _ = call(t, srv, http.MethodPost, "/tests", lab, map[string]string{"test_name": "missing fields"})
	require.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, srv, http.MethodPut, "/tests/"+id, lab, map[string]string{
		"patient_id": "P-3821", "test_type": "blood", "test_name": "Lipid panel",
		"ordered_date": "2024-05-01", "ordered_by": "d-1", "test_status": "pending",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "pending", body["data"].(map[string]any)["test_status"])

	status, body = call(t, srv, http.MethodPost, "/tests/"+id+"/results", lab, map[string]string{
		"result_value": "5.2", "result_unit": "mmol/L", "result_status": "normal",
	})
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "l-1", body["data"].(map[string]any)["uploaded_by"])

	status, body = call(t, srv, http.MethodGet, "/tests/"+id+"/results", lab, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["data"], 1)

	status, _ = call(t, srv, http.MethodDelete, "/tests/"+id, lab, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = call(t, srv, http.MethodGet, "/tests/"+id+"/results", lab, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestFolderDetail(t *testing.T) {
	srv := newTestServer(t)
	access, _ := login(t, srv, "doctor@example.com")

	status, body := call(t, srv, http.MethodGet, "/folders/F-101", access, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "F-101", body["folder"].(map[string]any)["folder_id"])
	require.Equal(t, "Robert", body["patient"].(map[string]any)["first_name"])
	require.Len(t, body["notes"], 1)
	require.Len(t, body["attachments"], 1)
	require.Len(t, body["tests"], 2)

	status, body = call(t, srv, http.MethodGet, "/folders/F-999", access, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, false, body["success"])
}

func TestCreateFolder(t *testing.T) {
	srv := newTestServer(t)
	access, _ := login(t, srv, "doctor@example.com")

	status, body := call(t, srv, http.MethodPost, "/folders", access, map[string]string{
		"patient_id": "P-4532", "created_by": "d-1", "status": "active",
	})
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "P-4532", body["data"].(map[string]any)["patient_id"])

	status, body = call(t, srv, http.MethodPost, "/folders", access, map[string]string{
		"patient_id": "P-0000", "created_by": "d-1", "status": "active",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Unknown patient", body["error"])
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t)
	login(t, srv, "doctor@example.com")

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(raw)
	require.True(t, strings.Contains(text, `devapi_logins_total{outcome="ok"} 1`), text)
	require.Contains(t, text, `route="/api/v1/auth/staff/login"`)
}
