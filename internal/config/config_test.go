package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pearstate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routes:
  /: /index.html
  /about: /pages/about.html
unrouted:
  - /api/
dir: /proj
flags:
  stage: true
  custom: hello
`), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/index.html", f.Routes["/"])
	require.Equal(t, []string{"/api/"}, f.Unrouted)
	require.Equal(t, "/proj", f.Dir)
	require.Equal(t, true, f.Flags["stage"])
	require.Equal(t, "hello", f.Flags["custom"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes: [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadIfPresentMissing(t *testing.T) {
	f, err := LoadIfPresent(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.NotNil(t, f)
	require.Nil(t, f.Routes)
}
