package pkgjson

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pearstate/internal/errors"
)

func writeDescriptor(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFile), []byte(content), 0o644))
}

func TestLocateInStartDir(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, `{"name":"demo","main":"index.js"}`)

	pkg, err := Locate(context.Background(), dir)
	require.NoError(t, err)
	require.NotNil(t, pkg)
	require.Equal(t, "demo", pkg.Name)
	require.Equal(t, "index.js", pkg.Main)
	require.Equal(t, dir, pkg.Dir)
}

func TestLocateInAncestor(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, `{"name":"ancestor"}`)
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	pkg, err := Locate(context.Background(), nested)
	require.NoError(t, err)
	require.NotNil(t, pkg)
	require.Equal(t, "ancestor", pkg.Name)
	require.Equal(t, root, pkg.Dir)
}

func TestLocateNearestWins(t *testing.T) {
	root := t.TempDir()
	writeDescriptor(t, root, `{"name":"outer"}`)
	inner := filepath.Join(root, "inner")
	require.NoError(t, os.MkdirAll(inner, 0o755))
	writeDescriptor(t, inner, `{"name":"inner"}`)

	pkg, err := Locate(context.Background(), inner)
	require.NoError(t, err)
	require.Equal(t, "inner", pkg.Name)
}

func TestLocateNoneReturnsNil(t *testing.T) {
	// A walk from an isolated temp dir may still hit a descriptor higher up
	// on the host, so only assert when the parent chain is clean.
	dir := t.TempDir()
	pkg, err := Locate(context.Background(), dir)
	require.NoError(t, err)
	if pkg != nil {
		t.Skipf("host filesystem carries a descriptor at %s", pkg.Dir)
	}
}

func TestLocateMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, `{"name": "broken"`)

	_, err := Locate(context.Background(), dir)
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryDescriptor))
}

func TestLocateUnreadableDescriptor(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}
	dir := t.TempDir()
	writeDescriptor(t, dir, `{"name":"secret"}`)
	require.NoError(t, os.Chmod(filepath.Join(dir, DescriptorFile), 0o000))

	_, err := Locate(context.Background(), dir)
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryFileSystem))
}

func TestLocateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Locate(ctx, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}

func TestParsePearOverrides(t *testing.T) {
	pkg, err := Parse([]byte(`{
		"name": "foo",
		"pear": {
			"name": "bar",
			"routes": {"/": "/index.html"},
			"unrouted": ["/api/"]
		},
		"custom": 42
	}`), "/proj")
	require.NoError(t, err)
	require.Equal(t, "foo", pkg.Name)
	require.NotNil(t, pkg.Pear)
	require.Equal(t, "bar", pkg.Pear.Name)
	require.Equal(t, map[string]string{"/": "/index.html"}, pkg.Pear.Routes)
	require.Equal(t, []string{"/api/"}, pkg.Pear.Unrouted)
	require.Equal(t, float64(42), pkg.Raw["custom"])
}
