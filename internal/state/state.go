// Package state composes the launch identity of an application instance:
// normalized link, applink, route, storage directory, environment mapping,
// and the nearest package descriptor.
//
// A State is constructed once per instance. All derivations except the
// package lookup are synchronous; construction either fully succeeds or
// fails atomically with a classified error.
package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/pearstate/internal/errors"
	"git.home.luguber.info/inful/pearstate/internal/link"
	"git.home.luguber.info/inful/pearstate/internal/pkgjson"
	"git.home.luguber.info/inful/pearstate/internal/route"
	"git.home.luguber.info/inful/pearstate/internal/store"
)

// Runtime describes the executing runtime checkout. It is supplied by the
// host environment and surfaced verbatim.
type Runtime struct {
	Key    string `json:"key"`
	Length int    `json:"length"`
	Fork   int    `json:"fork"`
	Mount  string `json:"mount"`
}

// Options carries the raw constructor inputs. Flags is an open mapping;
// unrecognized keys pass through to the State untouched.
type Options struct {
	Flags   map[string]any
	Dir     string
	Link    string
	Storage string
	PID     *int
	Run     bool
	Runtime *Runtime

	// CWD and Deriver override process-wide defaults, mainly for tests.
	CWD     string
	Deriver *store.Deriver
}

// State is the composed, queryable launch identity.
//
// Update is the only supported mutation and is not safe for concurrent use
// from multiple goroutines without external serialization.
type State struct {
	Env     map[string]string
	CWD     string
	Dir     string
	Flags   map[string]any
	Link    string
	Applink string
	Route   string
	Storage string
	PID     *int
	Runtime *Runtime

	// Package is populated by ResolvePackage, nil until then (and nil
	// forever when no descriptor exists).
	Package *pkgjson.Package

	parsed *link.Link
	extras map[string]any
}

// New constructs a State from opts. A storage validation failure or a
// malformed link aborts construction entirely.
func New(opts Options) (*State, error) {
	cwd := opts.CWD
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "resolve working directory")
		}
		cwd = wd
	}

	dir := opts.Dir
	if dir == "" {
		dir = cwd
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(cwd, dir)
	}
	dir = filepath.Clean(dir)

	flags := make(map[string]any, len(opts.Flags))
	for k, v := range opts.Flags {
		flags[k] = v
	}

	raw := opts.Link
	if raw == "" {
		raw = dir
	}
	parsed, err := link.Parse(raw, cwd)
	if err != nil {
		return nil, err
	}
	normalized, err := link.Normalize(raw, cwd)
	if err != nil {
		return nil, err
	}

	deriver := opts.Deriver
	if deriver == nil {
		deriver, err = store.Default()
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryStorage, errors.SeverityFatal, "open default storage root")
		}
	}

	explicit := opts.Storage
	if explicit == "" {
		explicit = flagString(flags, "store", "storage")
	}
	storagePath, err := deriver.Derive(parsed, explicit, truthy(flags["tmpStore"]), dir)
	if err != nil {
		return nil, err
	}

	applink, routePath := applinkRoute(parsed, dir, cwd)

	s := &State{
		Env:     deriveEnv(flags, opts.Run),
		CWD:     cwd,
		Dir:     dir,
		Flags:   flags,
		Link:    normalized,
		Applink: applink,
		Route:   routePath,
		Storage: storagePath,
		PID:     opts.PID,
		Runtime: opts.Runtime,
		parsed:  parsed,
	}
	if s.Runtime == nil {
		s.Runtime = hostRuntime()
	}
	return s, nil
}

// applinkRoute derives the identity root and the in-app route from a
// classified link. Key links keep scheme+key and their pathname; file links
// anchor on the project dir, degrading to cwd when the link path cannot be
// reconciled with it.
func applinkRoute(l *link.Link, dir, cwd string) (applink, routePath string) {
	if l.KeyAddressed() {
		return l.Origin(), l.Pathname
	}
	switch {
	case l.Pathname == dir:
		return link.FileURL(dir), ""
	case strings.HasPrefix(l.Pathname, dir+string(filepath.Separator)):
		return link.FileURL(dir), l.Pathname[len(dir):]
	default:
		return link.FileURL(cwd), "/"
	}
}

// deriveEnv copies the process environment and applies the NODE_ENV rule:
// production when staging, or when running without the dev flag.
func deriveEnv(flags map[string]any, run bool) map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	if truthy(flags["stage"]) || (run && !truthy(flags["dev"])) {
		env["NODE_ENV"] = "production"
	} else if _, ok := env["NODE_ENV"]; !ok {
		env["NODE_ENV"] = "development"
	}
	return env
}

// hostRuntime builds the fallback runtime descriptor when the host supplies
// none: a dev checkout mounted at the executable's directory.
func hostRuntime() *Runtime {
	mount, err := os.Executable()
	if err != nil {
		mount = os.TempDir()
	}
	return &Runtime{Key: "dev", Mount: filepath.Dir(mount)}
}

// ResolvePackage locates the nearest package descriptor for the project
// directory and caches it on the State. Missing descriptors resolve to nil;
// parse and permission failures propagate.
func (s *State) ResolvePackage(ctx context.Context) (*pkgjson.Package, error) {
	pkg, err := pkgjson.Locate(ctx, s.Dir)
	if err != nil {
		return nil, err
	}
	s.Package = pkg
	return pkg, nil
}

// AppName returns the application name from the resolved descriptor,
// preferring the pear override. Empty when no descriptor was resolved.
func (s *State) AppName() string {
	return Appname(s.Package)
}

// Entrypoint resolves the state's route through the descriptor's route
// table, when one was resolved.
func (s *State) Entrypoint() route.Result {
	pathname := s.Route
	if pathname == "" {
		pathname = "/"
	}
	var routes map[string]string
	var unrouted []string
	if s.Package != nil && s.Package.Pear != nil {
		routes = s.Package.Pear.Routes
		unrouted = s.Package.Pear.Unrouted
	}
	return route.Resolve(pathname, routes, unrouted)
}

// Update shallow-merges patch into the state. Existing keys not present in
// patch survive; keys present in both take patch's value. Reserved fields
// are updated in place when the value's type fits, otherwise the patch
// value shadows them.
func (s *State) Update(patch map[string]any) {
	for k, v := range patch {
		if s.setReserved(k, v) {
			delete(s.extras, k)
			continue
		}
		if s.extras == nil {
			s.extras = make(map[string]any)
		}
		s.extras[k] = v
	}
}

// Get returns the value stored under key: a patched value, a reserved
// field, or nil.
func (s *State) Get(key string) any {
	if v, ok := s.extras[key]; ok {
		return v
	}
	switch key {
	case "env":
		return s.Env
	case "cwd":
		return s.CWD
	case "dir":
		return s.Dir
	case "flags":
		return s.Flags
	case "link":
		return s.Link
	case "applink":
		return s.Applink
	case "route":
		return s.Route
	case "storage":
		return s.Storage
	case "pid":
		if s.PID == nil {
			return nil
		}
		return *s.PID
	case "runtime":
		return s.Runtime
	}
	return nil
}

func (s *State) setReserved(key string, v any) bool {
	switch key {
	case "env":
		if m, ok := v.(map[string]string); ok {
			s.Env = m
			return true
		}
	case "cwd":
		if str, ok := v.(string); ok {
			s.CWD = str
			return true
		}
	case "dir":
		if str, ok := v.(string); ok {
			s.Dir = str
			return true
		}
	case "flags":
		if m, ok := v.(map[string]any); ok {
			s.Flags = m
			return true
		}
	case "link":
		if str, ok := v.(string); ok {
			s.Link = str
			return true
		}
	case "applink":
		if str, ok := v.(string); ok {
			s.Applink = str
			return true
		}
	case "route":
		if str, ok := v.(string); ok {
			s.Route = str
			return true
		}
	case "storage":
		if str, ok := v.(string); ok {
			s.Storage = str
			return true
		}
	case "pid":
		switch pid := v.(type) {
		case int:
			s.PID = &pid
			return true
		case *int:
			s.PID = pid
			return true
		}
	case "runtime":
		if rt, ok := v.(*Runtime); ok {
			s.Runtime = rt
			return true
		}
	}
	return false
}

// Route is the instance-free route resolver, see package route.
func Route(pathname string, routes map[string]string, unrouted []string) route.Result {
	return route.Resolve(pathname, routes, unrouted)
}

// StorageFromLink derives a storage path for a raw link without building a
// full State, honoring the store/storage and tmpStore flags.
func StorageFromLink(rawLink string, flags map[string]any, dir string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "resolve working directory")
	}
	if dir == "" {
		dir = cwd
	}
	l, err := link.Parse(rawLink, cwd)
	if err != nil {
		return "", err
	}
	deriver, err := store.Default()
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryStorage, errors.SeverityFatal, "open default storage root")
	}
	return deriver.Derive(l, flagString(flags, "store", "storage"), truthy(flags["tmpStore"]), dir)
}

// LocalPkg locates the nearest package descriptor for dir without a
// constructed instance.
func LocalPkg(ctx context.Context, dir string) (*pkgjson.Package, error) {
	return pkgjson.Locate(ctx, dir)
}

// Appname extracts the application name from a descriptor: pear.name,
// else name, else "".
func Appname(pkg *pkgjson.Package) string {
	if pkg == nil {
		return ""
	}
	if pkg.Pear != nil && pkg.Pear.Name != "" {
		return pkg.Pear.Name
	}
	return pkg.Name
}

// Config is the config-relevant subset of a State.
type Config struct {
	Env     map[string]string `json:"env"`
	CWD     string            `json:"cwd"`
	Dir     string            `json:"dir"`
	Link    string            `json:"link"`
	Applink string            `json:"applink"`
	Route   string            `json:"route"`
	Storage string            `json:"storage"`
	Flags   map[string]any    `json:"flags"`
}

// ConfigFrom extracts the config subset of a State.
func ConfigFrom(s *State) Config {
	return Config{
		Env:     s.Env,
		CWD:     s.CWD,
		Dir:     s.Dir,
		Link:    s.Link,
		Applink: s.Applink,
		Route:   s.Route,
		Storage: s.Storage,
		Flags:   s.Flags,
	}
}

// truthy mirrors loose flag semantics: nil, false, zero and empty string
// are falsy, everything else is truthy.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

func flagString(flags map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := flags[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
