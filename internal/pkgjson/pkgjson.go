// Package pkgjson locates and parses the nearest package.json descriptor
// by walking a directory and its ancestors.
package pkgjson

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/pearstate/internal/errors"
)

// DescriptorFile is the filename searched for during the upward walk.
const DescriptorFile = "package.json"

// Package is the typed view of a parsed descriptor. Raw preserves the full
// document so unrecognized fields survive round trips.
type Package struct {
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Main    string         `json:"main"`
	Pear    *Pear          `json:"pear"`
	Dir     string         `json:"-"` // directory the descriptor was found in
	Raw     map[string]any `json:"-"`
}

// Pear is the app-specific override block nested under the "pear" key.
type Pear struct {
	Name     string            `json:"name"`
	Main     string            `json:"main"`
	Routes   map[string]string `json:"routes"`
	Unrouted []string          `json:"unrouted"`
}

// Parse decodes descriptor bytes into a Package. A malformed document
// yields a descriptor-category error wrapping the underlying syntax error.
func Parse(data []byte, dir string) (*Package, error) {
	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryDescriptor, errors.SeverityError, "invalid package descriptor").
			WithContext("dir", dir)
	}
	pkg.Dir = dir
	// The typed pass above already proved the document well-formed.
	_ = json.Unmarshal(data, &pkg.Raw)
	return &pkg, nil
}

// Locate walks from startDir up to the filesystem root looking for the
// nearest package descriptor. It returns (nil, nil) when none exists.
// Parse failures and permission errors propagate to the caller; a missing
// file in one directory just moves the walk to the parent. Each call walks
// fresh, there is no cache.
func Locate(ctx context.Context, startDir string) (*Package, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError, "resolve start directory")
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(dir, DescriptorFile))
		switch {
		case err == nil:
			return Parse(data, dir)
		case os.IsNotExist(err):
			// keep walking
		default:
			return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityError, "read package descriptor").
				WithContext("dir", dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}
