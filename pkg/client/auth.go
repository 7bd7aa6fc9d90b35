package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/nexusmedic/medhub/pkg/domain"
)

// Expiry is an access-token expiry instant. The backend sends Unix seconds,
// milliseconds, a quoted number or an RFC 3339 string; all decode here. The
// zero value means the backend sent nothing.
type Expiry struct {
	time.Time
}

// UnmarshalJSON accepts every expiry encoding the backend has used.
func (e *Expiry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		e.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			e.Time = time.Time{}
			return nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			e.Time = fromUnix(n)
			return nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("expires_at: %w", err)
		}
		e.Time = t
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expires_at: %w", err)
	}
	e.Time = fromUnix(n)
	return nil
}

// MarshalJSON writes Unix seconds, or null when absent.
func (e Expiry) MarshalJSON() ([]byte, error) {
	if e.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(e.Unix(), 10)), nil
}

func fromUnix(n float64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	if n > 1e12 { // milliseconds
		return time.UnixMilli(int64(n))
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// LoginResponse is what a successful staff login returns.
type LoginResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    Expiry       `json:"expires_at"`
}

// Validate rejects a login response the session cannot be built from.
func (r *LoginResponse) Validate() error {
	if r.AccessToken == "" {
		return fmt.Errorf("login: missing access_token")
	}
	if err := r.User.Validate(); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// TokenResponse is what a successful refresh returns.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    Expiry `json:"expires_at"`
}

// Validate rejects a refresh response without an access token.
func (r *TokenResponse) Validate() error {
	if r.AccessToken == "" {
		return fmt.Errorf("refresh: missing access_token")
	}
	return nil
}

// Login exchanges staff credentials for a session. It bypasses the hooks and
// the default headers.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	out, err := authCall[LoginResponse](ctx, c, "/auth/staff/login", body)
	if err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	return out, nil
}

// Refresh exchanges a refresh token for new credentials. It bypasses the hooks
// so a rejected refresh can never trigger another refresh.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	body := map[string]string{"refresh_token": refreshToken}
	out, err := authCall[TokenResponse](ctx, c, "/auth/staff/refresh", body)
	if err != nil {
		return nil, fmt.Errorf("client.Refresh: %w", err)
	}
	return out, nil
}

// authCall decodes an auth reply that is either bare or wrapped in an envelope.
func authCall[T any, PT interface {
	*T
	validator
}](ctx context.Context, c *Client, path string, body any) (*T, error) {
	var raw json.RawMessage
	if err := c.doRequest(ctx, call{method: http.MethodPost, path: path, body: body, out: &raw, bare: true}); err != nil {
		return nil, err
	}
	data, err := rawData(raw)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, &PayloadError{Reason: "decode response", Err: err}
	}
	if err := PT(out).Validate(); err != nil {
		return nil, &PayloadError{Reason: "invalid response", Err: err}
	}
	return out, nil
}
