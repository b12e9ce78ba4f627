// Package link classifies and normalizes application links.
//
// Two addressing schemes exist: content-addressed pear:// links carrying a
// fixed-length key token, and path-addressed file:// links (bare filesystem
// paths normalize to the latter). Everything here is pure string work; no
// filesystem access happens during classification.
package link

import (
	"encoding/hex"
	"net/url"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/pearstate/internal/errors"
)

const (
	ProtocolPear = "pear"
	ProtocolFile = "file"

	pearPrefix = "pear://"
	filePrefix = "file://"

	// KeySize is the decoded key length in bytes.
	KeySize = 32

	// z-base-32 alphabet used by key tokens.
	z32Alphabet = "ybndrfg8ejkmcpqxot1uwisza345h769"

	z32KeyLength = 52 // ceil(256 bits / 5 bits per char)
	hexKeyLength = 64
)

var z32Lookup = buildZ32Lookup()

func buildZ32Lookup() [256]int8 {
	var table [256]int8
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(z32Alphabet); i++ {
		table[z32Alphabet[i]] = int8(i)
	}
	return table
}

// Link is the parsed, classified form of an application link.
type Link struct {
	Protocol string
	Key      []byte // decoded content key, nil for file links
	KeyToken string // key token exactly as it appeared in the link
	Pathname string
	Search   string // query including leading "?", or ""
	Hash     string // fragment including leading "#", or ""
}

// KeyAddressed reports whether the link names content by key.
func (l *Link) KeyAddressed() bool { return l.Protocol == ProtocolPear }

// PathAddressed reports whether the link names content by filesystem location.
func (l *Link) PathAddressed() bool { return l.Protocol == ProtocolFile }

// Origin returns the identity root of the link: scheme plus key for
// key-addressed links, the bare scheme prefix for path-addressed ones.
func (l *Link) Origin() string {
	if l.KeyAddressed() {
		return pearPrefix + l.KeyToken
	}
	return filePrefix
}

// IsKeyAddressed reports whether a raw link uses the pear:// scheme.
func IsKeyAddressed(raw string) bool { return strings.HasPrefix(raw, pearPrefix) }

// DecodeKey validates and decodes a key token. Accepted spellings are 52
// z-base-32 characters or 64 hex characters, both decoding to 32 bytes.
func DecodeKey(token string) ([]byte, error) {
	switch len(token) {
	case z32KeyLength:
		return decodeZ32(token)
	case hexKeyLength:
		key, err := hex.DecodeString(token)
		if err != nil {
			return nil, errors.MalformedLink(token, "key token is not valid hex")
		}
		return key, nil
	default:
		return nil, errors.MalformedLink(token, "key token has invalid length")
	}
}

func decodeZ32(token string) ([]byte, error) {
	out := make([]byte, 0, KeySize)
	var acc uint
	var bits uint
	for i := 0; i < len(token); i++ {
		v := z32Lookup[token[i]]
		if v < 0 {
			return nil, errors.MalformedLink(token, "key token contains invalid character")
		}
		acc = acc<<5 | uint(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits))
		}
	}
	return out[:KeySize], nil
}

// Normalize converts a raw link into its canonical absolute form. Key
// links are validated and returned unchanged, file URLs pass through, and
// bare paths absolutize against cwd and become file URLs. Pure function.
func Normalize(raw, cwd string) (string, error) {
	if IsKeyAddressed(raw) {
		if _, err := splitPearLink(raw); err != nil {
			return "", err
		}
		return raw, nil
	}
	if strings.HasPrefix(raw, filePrefix) {
		return raw, nil
	}
	if strings.HasPrefix(raw, "#") {
		u := url.URL{Scheme: ProtocolFile, Path: filepath.Clean(cwd), Fragment: raw[1:]}
		return u.String(), nil
	}
	p := raw
	if !filepath.IsAbs(p) {
		p = filepath.Join(cwd, p)
	}
	u := url.URL{Scheme: ProtocolFile, Path: filepath.Clean(p)}
	return u.String(), nil
}

// Parse classifies raw into a Link, normalizing bare paths via cwd first.
// A fragment-only link carries no resolvable path; its Pathname stays empty
// so callers can apply their cwd fallback.
func Parse(raw, cwd string) (*Link, error) {
	if IsKeyAddressed(raw) {
		return parsePearLink(raw)
	}
	if strings.HasPrefix(raw, "#") {
		return &Link{Protocol: ProtocolFile, Hash: raw}, nil
	}

	normalized, err := Normalize(raw, cwd)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return nil, errors.MalformedLink(raw, "unparseable file link")
	}
	l := &Link{Protocol: ProtocolFile, Pathname: u.Path}
	if u.RawQuery != "" {
		l.Search = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		l.Hash = "#" + u.Fragment
	}
	return l, nil
}

// splitPearLink separates the key token from the rest of a pear link and
// validates the token. url.Parse would lowercase the host component, which
// is unacceptable for hex key spellings, so the split is done by hand.
func splitPearLink(raw string) (token string, err error) {
	rest := raw[len(pearPrefix):]
	end := strings.IndexAny(rest, "/?#")
	if end == -1 {
		end = len(rest)
	}
	token = rest[:end]
	if _, err := DecodeKey(token); err != nil {
		return "", err
	}
	return token, nil
}

func parsePearLink(raw string) (*Link, error) {
	token, err := splitPearLink(raw)
	if err != nil {
		return nil, err
	}
	key, _ := DecodeKey(token)

	rest := raw[len(pearPrefix)+len(token):]
	l := &Link{Protocol: ProtocolPear, Key: key, KeyToken: token}

	if i := strings.Index(rest, "#"); i >= 0 {
		l.Hash = rest[i:]
		rest = rest[:i]
	}
	if i := strings.Index(rest, "?"); i >= 0 {
		l.Search = rest[i:]
		rest = rest[:i]
	}
	l.Pathname = rest
	return l, nil
}

// FileURL converts an absolute filesystem path to its canonical file URL.
func FileURL(path string) string {
	u := url.URL{Scheme: ProtocolFile, Path: filepath.Clean(path)}
	return u.String()
}

// PathFromFileURL extracts the filesystem path from a file URL.
func PathFromFileURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != ProtocolFile {
		return "", errors.MalformedLink(raw, "not a file link")
	}
	return u.Path, nil
}
