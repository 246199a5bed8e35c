package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeySessionID  = "session_id"
	KeyStep       = "step"
	KeyToolKind   = "tool_kind"
	KeyToolName   = "tool_name"
	KeyToolHome   = "tool_home"
	KeyVerdict    = "verdict"
	KeyReason     = "reason"
	KeyPolls      = "polls"
	KeyWindow     = "window_size"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeySubject    = "subject"
	KeyCommand    = "command"
	KeyAddr       = "addr"
	KeyError      = "error"
)

func SessionID(id string) slog.Attr     { return slog.String(KeySessionID, id) }
func Step(name string) slog.Attr        { return slog.String(KeyStep, name) }
func ToolKind(kind string) slog.Attr    { return slog.String(KeyToolKind, kind) }
func ToolName(name string) slog.Attr    { return slog.String(KeyToolName, name) }
func ToolHome(home string) slog.Attr    { return slog.String(KeyToolHome, home) }
func Verdict(v string) slog.Attr        { return slog.String(KeyVerdict, v) }
func Reason(r string) slog.Attr         { return slog.String(KeyReason, r) }
func Polls(n int) slog.Attr             { return slog.Int(KeyPolls, n) }
func Window(n int) slog.Attr            { return slog.Int(KeyWindow, n) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Subject(s string) slog.Attr        { return slog.String(KeySubject, s) }
func Command(c string) slog.Attr        { return slog.String(KeyCommand, c) }
func Addr(a string) slog.Attr           { return slog.String(KeyAddr, a) }
func Duration(d time.Duration) slog.Attr { return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
