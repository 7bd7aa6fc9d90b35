// Package session owns the signed-in user and the credentials behind every
// request. A Manager is built once per process and shared by the views; it
// hydrates from the credential store, logs in and out, and installs the hooks
// that attach and refresh bearer tokens on the API client.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/nexusmedic/medhub/internal/credstore"
	"github.com/nexusmedic/medhub/internal/route"
	"github.com/nexusmedic/medhub/pkg/client"
	"github.com/nexusmedic/medhub/pkg/domain"
)

// State is where the session is in its lifecycle.
type State int

const (
	Bootstrapping State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Bootstrapping:
		return "bootstrapping"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// API is the part of the HTTP client the session drives.
type API interface {
	Login(ctx context.Context, email, password string) (*client.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*client.TokenResponse, error)
	SetDefaultHeader(key, value string)
	ClearDefaultHeader(key string)
	OnRequest(h client.RequestHook)
	OnResponse(h client.ResponseHook)
}

// Manager holds the session for one running client.
type Manager struct {
	api   API
	store credstore.Store
	log   zerolog.Logger
	nav   chan route.Path

	refreshes singleflight.Group

	mu      sync.RWMutex
	state   State
	loading bool
	user    *domain.User
	token   *oauth2.Token
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l.With().Str("component", "session").Logger() }
}

// New builds the Manager, installs its hooks on api and hydrates from store.
// Hydration is synchronous: when New returns, the session is either
// Authenticated with the stored user or Unauthenticated.
func New(api API, store credstore.Store, opts ...Option) *Manager {
	m := &Manager{
		api:     api,
		store:   store,
		log:     zerolog.Nop(),
		nav:     make(chan route.Path, 8),
		state:   Bootstrapping,
		loading: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	api.OnRequest(m.authorize)
	api.OnResponse(m.reauthorize)
	m.hydrate()
	return m
}

func (m *Manager) hydrate() {
	access, hasAccess := m.store.Get(credstore.KeyAccessToken)
	rawUser, hasUser := m.store.Get(credstore.KeyUser)

	if !hasAccess || !hasUser || access == "" {
		if hasAccess || hasUser {
			m.log.Warn().Bool("token", hasAccess).Bool("user", hasUser).Msg("partial credentials discarded")
			m.erase()
		}
		m.settle(nil, nil)
		return
	}

	var u domain.User
	if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
		m.log.Warn().Err(err).Msg("stored user unreadable, signing out")
		m.erase()
		m.settle(nil, nil)
		return
	}
	if err := u.Validate(); err != nil {
		m.log.Warn().Err(err).Msg("stored user invalid, signing out")
		m.erase()
		m.settle(nil, nil)
		return
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	tok.RefreshToken, _ = m.store.Get(credstore.KeyRefreshToken)
	if raw, ok := m.store.Get(credstore.KeyExpiresAt); ok {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
			tok.Expiry = time.Unix(secs, 0)
		}
	}
	m.settle(&u, tok)
	m.log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("session restored")
}

// settle ends bootstrapping. The default header is applied before loading
// is cleared so no protected view can fire a request without it.
func (m *Manager) settle(u *domain.User, tok *oauth2.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user, m.token = u, tok
	if tok != nil {
		m.api.SetDefaultHeader("Authorization", bearer(tok.AccessToken))
		m.state = Authenticated
	} else {
		m.state = Unauthenticated
	}
	m.loading = false
}

// Login authenticates with the backend and starts a session. The email is
// trimmed, then the form is checked; a ValidationError never reaches the
// network. On failure the current session, if any, is left alone.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if err := domain.ValidateCredentials(email, password); err != nil {
		return nil, fmt.Errorf("session.Login: %w", err)
	}

	m.setLoading(true)
	defer m.setLoading(false)

	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.log.Info().Err(err).Str("kind", client.KindOf(err).String()).Msg("login failed")
		return nil, fmt.Errorf("session.Login: %w", err)
	}

	tok := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiryOf(resp.AccessToken, resp.ExpiresAt.Time),
	}
	u := *resp.User

	rawUser, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("session.Login: marshal user: %w", err)
	}
	values := tokenValues(tok)
	values[credstore.KeyUser] = string(rawUser)
	if err := m.store.Set(values, absentKeys(tok)...); err != nil {
		m.log.Error().Err(err).Msg("persist credentials")
	}

	m.mu.Lock()
	m.user, m.token, m.state = &u, tok, Authenticated
	m.loading = false
	m.api.SetDefaultHeader("Authorization", bearer(tok.AccessToken))
	m.mu.Unlock()

	m.log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("logged in")
	m.navigate(route.Landing(u.Role))
	return &u, nil
}

// Logout ends the session. It never fails and may be called any number of
// times; every call leaves the same state behind.
func (m *Manager) Logout() {
	m.end("logout")
}

func (m *Manager) end(reason string) {
	m.mu.Lock()
	was := m.state
	m.user, m.token = nil, nil
	m.state = Unauthenticated
	m.loading = false
	m.api.ClearDefaultHeader("Authorization")
	m.mu.Unlock()

	m.erase()
	if was == Authenticated {
		m.log.Info().Str("reason", reason).Msg("session ended")
	}
	m.navigate(route.Login)
}

func (m *Manager) erase() {
	m.deleteKeys(credstore.Keys...)
}

func (m *Manager) deleteKeys(keys ...string) {
	if err := m.store.Delete(keys...); err != nil {
		m.log.Error().Err(err).Strs("keys", keys).Msg("erase credentials")
	}
}

// IsAuthenticated reports whether a user is signed in.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

// Loading is true while bootstrapping and while a login is in flight.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

func (m *Manager) setLoading(v bool) {
	m.mu.Lock()
	m.loading = v
	m.mu.Unlock()
}

// State reports the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Token returns a copy of the current credentials, or nil.
func (m *Manager) Token() *oauth2.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return nil
	}
	t := *m.token
	return &t
}

func (m *Manager) accessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return ""
	}
	return m.token.AccessToken
}

// Navigations delivers the views the session wants shown: the landing view
// after login, the login view after logout or a failed refresh. Sends never
// block; when nobody is reading, the oldest pending navigation is dropped.
func (m *Manager) Navigations() <-chan route.Path {
	return m.nav
}

func (m *Manager) navigate(p route.Path) {
	for {
		select {
		case m.nav <- p:
			return
		default:
		}
		select {
		case <-m.nav:
		default:
		}
	}
}

func bearer(tok string) string { return "Bearer " + tok }

// tokenValues renders the persisted form of tok. Empty fields are left out;
// absentKeys names them so the same write erases stale values.
func tokenValues(tok *oauth2.Token) map[string]string {
	values := map[string]string{credstore.KeyAccessToken: tok.AccessToken}
	if tok.RefreshToken != "" {
		values[credstore.KeyRefreshToken] = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		values[credstore.KeyExpiresAt] = strconv.FormatInt(tok.Expiry.Unix(), 10)
	}
	return values
}

func absentKeys(tok *oauth2.Token) []string {
	var keys []string
	if tok.RefreshToken == "" {
		keys = append(keys, credstore.KeyRefreshToken)
	}
	if tok.Expiry.IsZero() {
		keys = append(keys, credstore.KeyExpiresAt)
	}
	return keys
}

// expiryOf prefers the expiry the backend sent and falls back to the exp
// claim of a JWT access token. The token is not verified; the backend does
// that.
func expiryOf(access string, sent time.Time) time.Time {
	if !sent.IsZero() {
		return sent
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

var _ route.SessionView = (*Manager)(nil)
