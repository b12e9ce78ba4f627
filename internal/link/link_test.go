package link

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pearstate/internal/errors"
)

const (
	testKeyZ32 = "ybndrfg8ejkmcpqxot1uwisza345h769ybndrfg8ejkmcpqxot1u"
	testKeyHex = "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"
)

func TestNormalizeBarePath(t *testing.T) {
	got, err := Normalize("/a/b/c", "/cwd")
	require.NoError(t, err)
	require.Equal(t, "file:///a/b/c", got)
}

func TestNormalizeRelativePath(t *testing.T) {
	got, err := Normalize("app/main.js", "/home/user")
	require.NoError(t, err)
	require.Equal(t, "file:///home/user/app/main.js", got)
}

func TestNormalizeFileURLPassthrough(t *testing.T) {
	got, err := Normalize("file:///some/app", "/cwd")
	require.NoError(t, err)
	require.Equal(t, "file:///some/app", got)
}

func TestNormalizePearLinkUnchanged(t *testing.T) {
	raw := "pear://" + testKeyZ32 + "/check?query"
	got, err := Normalize(raw, "/cwd")
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestNormalizeRejectsBadKey(t *testing.T) {
	_, err := Normalize("pear://notakey", "/cwd")
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, errors.CategoryLink))
}

func TestDecodeKey(t *testing.T) {
	cases := []struct {
		name  string
		token string
		ok    bool
	}{
		{"z32", testKeyZ32, true},
		{"hex", testKeyHex, true},
		{"hex uppercase", strings.ToUpper(testKeyHex), true},
		{"too short", "abc", false},
		{"z32 bad char", strings.Repeat("l", 52), false},
		{"hex bad char", strings.Repeat("z", 64), false},
		{"empty", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			key, err := DecodeKey(c.token)
			if !c.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, key, KeySize)
		})
	}
}

func TestParsePearLink(t *testing.T) {
	l, err := Parse("pear://"+testKeyZ32+"/check?query#frag", "/cwd")
	require.NoError(t, err)
	require.True(t, l.KeyAddressed())
	require.Equal(t, testKeyZ32, l.KeyToken)
	require.Len(t, l.Key, KeySize)
	require.Equal(t, "/check", l.Pathname)
	require.Equal(t, "?query", l.Search)
	require.Equal(t, "#frag", l.Hash)
	require.Equal(t, "pear://"+testKeyZ32, l.Origin())
}

func TestParsePearLinkBareKey(t *testing.T) {
	l, err := Parse("pear://"+testKeyZ32, "/cwd")
	require.NoError(t, err)
	require.Equal(t, "", l.Pathname)
	require.Equal(t, "", l.Search)
}

func TestParseHexKeyPreservesCase(t *testing.T) {
	token := strings.ToUpper(testKeyHex)
	l, err := Parse("pear://"+token, "/cwd")
	require.NoError(t, err)
	require.Equal(t, token, l.KeyToken)
}

func TestParseFileLink(t *testing.T) {
	l, err := Parse("/a/b/c", "/cwd")
	require.NoError(t, err)
	require.True(t, l.PathAddressed())
	require.Nil(t, l.Key)
	require.Equal(t, "/a/b/c", l.Pathname)
}

func TestParseFileLinkFragment(t *testing.T) {
	l, err := Parse("file:///a/b#section", "/cwd")
	require.NoError(t, err)
	require.Equal(t, "/a/b", l.Pathname)
	require.Equal(t, "#section", l.Hash)
}

func TestFileURLRoundTrip(t *testing.T) {
	u := FileURL("/some/project")
	require.Equal(t, "file:///some/project", u)

	p, err := PathFromFileURL(u)
	require.NoError(t, err)
	require.Equal(t, "/some/project", p)
}

func TestPathFromFileURLRejectsOtherSchemes(t *testing.T) {
	_, err := PathFromFileURL("pear://" + testKeyZ32)
	require.Error(t, err)
}
