package protocol

import "fmt"

// StartupError reports a failure to locate, spawn, or confirm the agent
// process. It ends the bridge session; there is no auto-restart.
type StartupError struct {
	Reason string
	Path   string // offending path, when path resolution failed
	Err    error
}

func (e *StartupError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("agent startup failed: %s (%s)", e.Reason, e.Path)
	}
	return fmt.Sprintf("agent startup failed: %s", e.Reason)
}

func (e *StartupError) Unwrap() error { return e.Err }

// LinkError reports a failed outbound write: the process is not running or
// the write came up short. Writes are never silently retried.
type LinkError struct {
	Op     string // what was being sent, e.g. "message", "approval"
	Reason string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("cannot send %s: %s", e.Op, e.Reason)
}

// ParseError reports a malformed frame or an unknown envelope type. It is
// recovered locally: the frame is dropped and the stream continues.
type ParseError struct {
	Line   string // offending frame, truncated for display
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed frame: %s: %.200s", e.Reason, e.Line)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ActionError reports a tool call that was rejected before dispatch: the
// action is disabled, unregistered, or the executor refused it.
type ActionError struct {
	Code   string
	Reason string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q rejected: %s", e.Code, e.Reason)
}

// ExportError aborts a single audio export; the bridge stays usable.
type ExportError struct {
	Reason string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("audio export failed: %s", e.Reason)
}

func (e *ExportError) Unwrap() error { return e.Err }

// CrashError reports an unexpected agent exit or a forced kill.
type CrashError struct {
	ExitCode int
	Reason   string
}

func (e *CrashError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("agent process crashed: %s (exit code %d)", e.Reason, e.ExitCode)
	}
	return fmt.Sprintf("agent process crashed: %s", e.Reason)
}
