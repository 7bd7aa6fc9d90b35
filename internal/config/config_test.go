package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nexusmedic/medhub/pkg/client"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv(homeVar, home)
	t.Setenv(apiURLVar, "")
	t.Setenv(timeoutVar, "")
	t.Setenv(rateLimitVar, "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, client.DefaultBaseURL, cfg.APIURL)
	require.Equal(t, client.DefaultTimeout, cfg.Timeout)
	require.Equal(t, filepath.Join(home, "credentials.json"), cfg.CredentialsPath())
	require.Equal(t, filepath.Join(home, "medhub.log"), cfg.LogPath())
	require.InDelta(t, 10.0, cfg.RateLimit, 0.001)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv(homeVar, t.TempDir())
	t.Setenv(apiURLVar, "https://clinic.example/api/v1")
	t.Setenv(timeoutVar, "30")
	t.Setenv(rateLimitVar, "0")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://clinic.example/api/v1", cfg.APIURL)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Zero(t, cfg.RateLimit)
}

func TestLoadBadValues(t *testing.T) {
	t.Setenv(homeVar, t.TempDir())
	t.Setenv(timeoutVar, "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv(timeoutVar, "1m")
	t.Setenv(rateLimitVar, "lots")
	_, err = Load()
	require.Error(t, err)
}
