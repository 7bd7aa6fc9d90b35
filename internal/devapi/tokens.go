package devapi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nexusmedic/medhub/pkg/domain"
)

var errInvalidRefresh = errors.New("invalid refresh token")

type refreshGrant struct {
	userID  string
	expires time.Time
}

// issuer signs HS256 access tokens and keeps single-use refresh tokens.
type issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	mu         sync.Mutex
	generation int64
	refresh    map[string]refreshGrant
}

func newIssuer(secret []byte, accessTTL, refreshTTL time.Duration, now func() time.Time) *issuer {
	return &issuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
		refresh:    map[string]refreshGrant{},
	}
}

type grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (i *issuer) issue(u domain.User) (grant, error) {
	now := i.now()
	exp := now.Add(i.accessTTL)

	i.mu.Lock()
	gen := i.generation
	i.mu.Unlock()

	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": string(u.Role),
		"gen":  gen,
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return grant{}, fmt.Errorf("sign access token: %w", err)
	}

	rt := uuid.NewString()
	i.mu.Lock()
	i.refresh[rt] = refreshGrant{userID: u.ID, expires: now.Add(i.refreshTTL)}
	i.mu.Unlock()

	return grant{AccessToken: access, RefreshToken: rt, ExpiresAt: exp}, nil
}

// redeem consumes a refresh token and returns the user it was issued to.
func (i *issuer) redeem(rt string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	g, ok := i.refresh[rt]
	if !ok {
		return "", errInvalidRefresh
	}
	delete(i.refresh, rt)
	if i.now().After(g.expires) {
		return "", errInvalidRefresh
	}
	return g.userID, nil
}

// verify checks an access token and returns its subject.
func (i *issuer) verify(raw string) (string, error) {
	tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return "", err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims")
	}
	gen, _ := claims["gen"].(float64)
	i.mu.Lock()
	current := i.generation
	i.mu.Unlock()
	if int64(gen) != current {
		return "", errors.New("token revoked")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("missing subject")
	}
	return sub, nil
}

// expireAccess invalidates every access token issued so far. Refresh tokens
// stay valid.
func (i *issuer) expireAccess() {
	i.mu.Lock()
	i.generation++
	i.mu.Unlock()
}

// revokeRefresh invalidates every outstanding refresh token.
func (i *issuer) revokeRefresh() {
	i.mu.Lock()
	i.refresh = map[string]refreshGrant{}
	i.mu.Unlock()
}
