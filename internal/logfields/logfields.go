package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyService     = "service"
	KeyServiceKind = "service_kind"
	KeyVariant     = "variant"
	KeySessionID   = "session_id"
	KeyBuildID     = "build_id"
	KeyState       = "state"
	KeyPath        = "path"
	KeyFile        = "file"
	KeyPID         = "pid"
	KeyExitCode    = "exit_code"
	KeyCommand     = "command"
	KeyDurationMS  = "duration_ms"
	KeyCount       = "count"
	KeySection     = "section"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Service(name string) slog.Attr   { return slog.String(KeyService, name) }
func ServiceKind(k string) slog.Attr  { return slog.String(KeyServiceKind, k) }
func Variant(v string) slog.Attr      { return slog.String(KeyVariant, v) }
func SessionID(id string) slog.Attr   { return slog.String(KeySessionID, id) }
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func PID(pid int) slog.Attr           { return slog.Int(KeyPID, pid) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func Command(cmd string) slog.Attr    { return slog.String(KeyCommand, cmd) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Section(name string) slog.Attr   { return slog.String(KeySection, name) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
