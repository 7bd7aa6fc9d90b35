package credstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	s, err := Open(path)
	require.NoError(t, err)
	_, ok := s.Get(KeyAccessToken)
	require.False(t, ok)

	require.NoError(t, s.Set(map[string]string{
		KeyAccessToken:  "tok1",
		KeyRefreshToken: "ref1",
		KeyExpiresAt:    "1999999999",
		KeyUser:         `{"id":"d-1"}`,
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := Open(path)
	require.NoError(t, err)
	for _, k := range Keys {
		_, ok := reopened.Get(k)
		require.True(t, ok, "key %s missing after reopen", k)
	}
	tok, _ := reopened.Get(KeyAccessToken)
	require.Equal(t, "tok1", tok)
}

func TestFileStore_DeleteAllRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(map[string]string{KeyAccessToken: "tok", KeyUser: "{}"}))

	require.NoError(t, s.Delete(KeyAccessToken))
	_, ok := s.Get(KeyAccessToken)
	require.False(t, ok)
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, s.Delete(Keys...))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// Deleting again is harmless.
	require.NoError(t, s.Delete(Keys...))
}

func TestOpen_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := Open(path)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCorrupt))
	require.NotNil(t, s)

	// The store is still usable and overwrites the bad file.
	require.NoError(t, s.Set(map[string]string{KeyAccessToken: "tok"}))
	reopened, err := Open(path)
	require.NoError(t, err)
	v, _ := reopened.Get(KeyAccessToken)
	require.Equal(t, "tok", v)
}

func TestMemStore(t *testing.T) {
	m := NewMem(map[string]string{KeyUser: "{}"})
	require.Equal(t, 1, m.Len())
	require.NoError(t, m.Set(map[string]string{KeyAccessToken: "a"}))
	require.Equal(t, 2, m.Len())
	require.NoError(t, m.Delete(Keys...))
	require.Equal(t, 0, m.Len())
}

func TestFileStore_SetRemovesInSameWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(map[string]string{
		KeyAccessToken:  "tok1",
		KeyRefreshToken: "ref1",
		KeyExpiresAt:    "1999999999",
	}))

	require.NoError(t, s.Set(map[string]string{KeyAccessToken: "tok2"}, KeyRefreshToken, KeyExpiresAt))

	reopened, err := Open(path)
	require.NoError(t, err)
	tok, _ := reopened.Get(KeyAccessToken)
	require.Equal(t, "tok2", tok)
	_, ok := reopened.Get(KeyRefreshToken)
	require.False(t, ok)
	_, ok = reopened.Get(KeyExpiresAt)
	require.False(t, ok)
}

func TestMemStore_SetWinsOverRemove(t *testing.T) {
	m := NewMem(map[string]string{KeyRefreshToken: "old"})
	require.NoError(t, m.Set(map[string]string{KeyAccessToken: "a", KeyRefreshToken: "new"}, KeyRefreshToken))
	v, ok := m.Get(KeyRefreshToken)
	require.True(t, ok)
	require.Equal(t, "new", v)
}
