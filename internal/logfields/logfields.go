package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyLink    = "link"
	KeyApplink = "applink"
	KeyRoute   = "route"
	KeyStorage = "storage"
	KeyDir     = "dir"
	KeyPath    = "path"
	KeyAppName = "app_name"
	KeyEvent   = "event"
	KeyError   = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Link(l string) slog.Attr    { return slog.String(KeyLink, l) }
func Applink(a string) slog.Attr { return slog.String(KeyApplink, a) }
func Route(r string) slog.Attr   { return slog.String(KeyRoute, r) }
func Storage(s string) slog.Attr { return slog.String(KeyStorage, s) }
func Dir(d string) slog.Attr     { return slog.String(KeyDir, d) }
func Path(p string) slog.Attr    { return slog.String(KeyPath, p) }
func AppName(n string) slog.Attr { return slog.String(KeyAppName, n) }
func Event(e string) slog.Attr   { return slog.String(KeyEvent, e) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
