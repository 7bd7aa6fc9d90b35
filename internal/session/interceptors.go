package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/nexusmedic/medhub/pkg/client"
)

var errNoRefreshToken = errors.New("no refresh token")

// authorize is the outgoing hook. It attaches the current bearer token and a
// request id for log correlation.
func (m *Manager) authorize(req *http.Request) {
	if tok := m.Token(); tok != nil && tok.AccessToken != "" {
		tok.SetAuthHeader(req)
	}
	if req.Header.Get("X-Request-ID") == "" {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}
}

// reauthorize is the incoming hook. A 401 on a first attempt refreshes the
// credentials once and re-issues the request; a 401 on the re-issue, or when
// no refresh token is held, goes back to the caller unchanged.
func (m *Manager) reauthorize(req *http.Request, resp *http.Response, resend client.Sender) (*http.Response, error) {
	if resp.StatusCode != http.StatusUnauthorized || client.IsRetry(req) {
		return resp, nil
	}

	sentWith := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	if cur := m.accessToken(); cur != "" && sentWith != "" && cur != sentWith {
		// Credentials rotated while this request was in flight.
		discard(resp)
		m.log.Debug().Str("path", req.URL.Path).Msg("retrying with rotated token")
		return resend(client.MarkRetry(req))
	}

	if m.refreshToken() == "" {
		return resp, nil
	}

	if err := m.refresh(req.Context(), sentWith); err != nil {
		discard(resp)
		return nil, err
	}
	discard(resp)
	return resend(client.MarkRetry(req))
}

func (m *Manager) refreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return ""
	}
	return m.token.RefreshToken
}

// refresh exchanges the refresh token for new credentials. Concurrent callers
// share one exchange. stale is the access token the caller was rejected with;
// if the session already moved past it the exchange is skipped.
func (m *Manager) refresh(ctx context.Context, stale string) error {
	_, err, shared := m.refreshes.Do("refresh", func() (any, error) {
		if cur := m.accessToken(); cur != "" && cur != stale {
			return nil, nil
		}
		rt := m.refreshToken()
		if rt == "" {
			return nil, &client.RefreshError{Err: errNoRefreshToken}
		}

		// The exchange outlives any one caller's cancellation since its
		// result is shared.
		resp, err := m.api.Refresh(context.WithoutCancel(ctx), rt)
		if err != nil {
			m.log.Warn().Err(err).Msg("refresh rejected, signing out")
			m.end("refresh failed")
			return nil, &client.RefreshError{Err: err}
		}
		m.rotate(rt, resp)
		return nil, nil
	})
	if shared {
		m.log.Debug().Msg("joined in-flight refresh")
	}
	return err
}

// rotate installs refreshed credentials. A refresh reply without a new
// refresh token keeps the old one.
func (m *Manager) rotate(used string, resp *client.TokenResponse) {
	tok := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiryOf(resp.AccessToken, resp.ExpiresAt.Time),
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = used
	}

	m.mu.Lock()
	if m.state != Authenticated {
		m.mu.Unlock()
		m.log.Debug().Msg("refresh finished after logout, discarded")
		return
	}
	m.token = tok
	m.api.SetDefaultHeader("Authorization", bearer(tok.AccessToken))
	m.mu.Unlock()

	if err := m.store.Set(tokenValues(tok), absentKeys(tok)...); err != nil {
		m.log.Error().Err(err).Msg("persist refreshed credentials")
	}
	m.log.Info().Msg("credentials refreshed")
}

func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // draining for reuse
	resp.Body.Close()                                      //nolint:errcheck
}
