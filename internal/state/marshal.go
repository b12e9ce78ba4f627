package state

import "encoding/json"

// MarshalJSON renders reserved fields and patched extension keys as one
// flat object, the way consumers address the state.
func (s *State) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"env":     s.Env,
		"cwd":     s.CWD,
		"dir":     s.Dir,
		"flags":   s.Flags,
		"link":    s.Link,
		"applink": s.Applink,
		"route":   s.Route,
		"storage": s.Storage,
	}
	if s.PID != nil {
		m["pid"] = *s.PID
	}
	if s.Runtime != nil {
		m["runtime"] = s.Runtime
	}
	if s.Package != nil {
		m["appname"] = s.AppName()
	}
	for k, v := range s.extras {
		m[k] = v
	}
	return json.Marshal(m)
}
