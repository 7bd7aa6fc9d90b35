package session_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nexusmedic/medhub/internal/credstore"
	"github.com/nexusmedic/medhub/internal/devapi"
	"github.com/nexusmedic/medhub/internal/route"
	"github.com/nexusmedic/medhub/internal/session"
	"github.com/nexusmedic/medhub/pkg/client"
)

func TestAgainstDevAPI(t *testing.T) {
	api, err := devapi.New(devapi.Config{Secret: []byte("it-secret"), BcryptCost: bcrypt.MinCost, Logger: zerolog.Nop()})
	require.NoError(t, err)
	srv := httptest.NewServer(api)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), credstore.FileName)
	store, err := credstore.Open(path)
	require.NoError(t, err)

	c := client.New(srv.URL + devapi.APIPrefix)
	m := session.New(c, store)
	require.Equal(t, session.Unauthenticated, m.State())

	u, err := m.Login(context.Background(), "lab@example.com", devapi.DemoPassword)
	require.NoError(t, err)
	require.Equal(t, route.Tests, route.Landing(u.Role))
	firstToken := m.Token().AccessToken

	tests, err := c.ListTests(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, tests)

	// Expired access tokens are refreshed transparently.
	api.ExpireAccessTokens()
	tests, err = c.ListTests(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, tests)
	require.NotEqual(t, firstToken, m.Token().AccessToken)

	// A fresh process restores the session from disk.
	reopened, err := credstore.Open(path)
	require.NoError(t, err)
	c2 := client.New(srv.URL + devapi.APIPrefix)
	m2 := session.New(c2, reopened)
	require.Equal(t, session.Authenticated, m2.State())
	require.Equal(t, "l-1", m2.User().ID)
	_, err = c2.ListPatients(context.Background())
	require.NoError(t, err)

	// With both tokens dead the session ends.
	api.ExpireAccessTokens()
	api.RevokeRefreshTokens()
	_, err = c2.ListPatients(context.Background())
	require.ErrorIs(t, err, client.ErrRefresh)
	require.False(t, m2.IsAuthenticated())

	final, err := credstore.Open(path)
	require.NoError(t, err)
	for _, k := range credstore.Keys {
		_, ok := final.Get(k)
		require.False(t, ok, "key %s survived forced logout", k)
	}
}

func TestDoctorDeniedTests(t *testing.T) {
	api, err := devapi.New(devapi.Config{Secret: []byte("it-secret"), BcryptCost: bcrypt.MinCost, Logger: zerolog.Nop()})
	require.NoError(t, err)
	srv := httptest.NewServer(api)
	defer srv.Close()

	c := client.New(srv.URL + devapi.APIPrefix)
	m := session.New(c, credstore.NewMem(nil))
	_, err = m.Login(context.Background(), "doctor@example.com", devapi.DemoPassword)
	require.NoError(t, err)

	require.Equal(t, route.Decision{Action: route.Redirect, Target: route.Dashboard, Denied: true}, route.Guard(m, route.Tests))

	_, err = c.ListTests(context.Background())
	require.Equal(t, client.KindRequest, client.KindOf(err))
	require.True(t, m.IsAuthenticated())
}
