package launchd

import "fmt"

// ValidationError reports bad user input. It is surfaced verbatim and never
// retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func validationErrorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// CommandError reports a launchctl invocation that ran but failed. The
// message carries the command's stderr so the user sees launchd's own words.
type CommandError struct {
	Op       string // "load", "unload", "kickstart", "list"
	Target   string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := e.Stderr
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", e.ExitCode)
	}
	return fmt.Sprintf("launchctl %s %s: %s", e.Op, e.Target, msg)
}
