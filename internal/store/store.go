// Package store derives the on-disk storage directory for an application
// instance from its link, with explicit-override and temporary modes.
//
// Layout under the storage root:
//
//	<root>/
//	  by-dkey/
//	    ab/
//	      cd0123... (first 2 hex chars = subdir, rest = dirname)
//	  by-random/
//	    <uuid>     (one per project root, persisted in storage-ids.db)
//	  storage-ids.db
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pearstate/internal/errors"
	"git.home.luguber.info/inful/pearstate/internal/link"
)

// Deriver computes storage paths under a fixed root.
type Deriver struct {
	root string
	ids  *IDStore
}

// NewDeriver creates a Deriver rooted at root, using ids for path-addressed
// links.
func NewDeriver(root string, ids *IDStore) *Deriver {
	return &Deriver{root: root, ids: ids}
}

var (
	defaultOnce    sync.Once
	defaultDeriver *Deriver
	defaultErr     error
)

// Default returns the process-wide Deriver rooted at DefaultRoot, lazily
// initializing its id store on first use.
func Default() (*Deriver, error) {
	defaultOnce.Do(func() {
		root := DefaultRoot()
		ids, err := OpenIDStore(filepath.Join(root, "storage-ids.db"))
		if err != nil {
			defaultErr = err
			return
		}
		defaultDeriver = NewDeriver(root, ids)
	})
	return defaultDeriver, defaultErr
}

// DefaultRoot returns the platform storage root.
func DefaultRoot() string {
	if dir := os.Getenv("PEARSTATE_ROOT"); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "pearstate")
	}
	return filepath.Join(os.TempDir(), "pearstate")
}

// Derive computes the storage directory for a classified link.
//
// Precedence: the tmp flag short-circuits to an ephemeral directory; an
// explicit store is validated against projectDir and returned as-is;
// key-addressed links map deterministically under by-dkey; path-addressed
// links get a stable per-root id under by-random.
func (d *Deriver) Derive(l *link.Link, explicit string, tmp bool, projectDir string) (string, error) {
	if tmp {
		return filepath.Join(os.TempDir(), fmt.Sprintf("pear-%s", uuid.NewString())), nil
	}

	if explicit != "" {
		store, err := filepath.Abs(explicit)
		if err != nil {
			return "", errors.Wrap(err, errors.CategoryStorage, errors.SeverityFatal, "resolve storage path")
		}
		if projectDir != "" && strictDescendant(store, projectDir) {
			return "", errors.InvalidStorage(store, projectDir)
		}
		return store, nil
	}

	if l.KeyAddressed() {
		dkey := DiscoveryKey(l.Key)
		return filepath.Join(d.root, "by-dkey", dkey[:2], dkey[2:]), nil
	}

	root := projectDir
	if root == "" {
		root = l.Pathname
	}
	id, err := d.ids.IDFor(root)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryStorage, errors.SeverityFatal, "allocate storage id")
	}
	return filepath.Join(d.root, "by-random", id), nil
}

// DiscoveryKey maps a content key to the hex token used for by-dkey paths.
// The storage layout never exposes the key itself.
func DiscoveryKey(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}

// strictDescendant reports whether p lies strictly inside dir. Equal paths
// are not descendants.
func strictDescendant(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
