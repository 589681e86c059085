package tool

import (
	"errors"
	"fmt"
)

// Validation failures for send_file. These stay typed inside the package so
// tests and callers can branch on them; Execute serializes them to a plain
// sentence at the tool boundary, which is all the invocation framework sees.
var (
	// ErrNoTarget means neither the request nor the stored context named a
	// channel and chat to deliver to.
	ErrNoTarget = errors.New("no target channel/chat specified")

	// ErrNotConfigured means no delivery function has been injected.
	ErrNotConfigured = errors.New("file sending not configured")

	// ErrNoPaths means the request carried an empty file_paths list.
	ErrNoPaths = errors.New("no file paths provided")
)

// PathErrorReason classifies why a single path failed validation.
type PathErrorReason int

const (
	// PathUnresolvable: the input could not be expanded to a canonical path.
	PathUnresolvable PathErrorReason = iota
	// PathOutsideAllowed: the canonical path escapes the allowed directory.
	PathOutsideAllowed
	// PathNotFound: nothing exists at the canonical path.
	PathNotFound
	// PathNotFile: the path exists but is not a regular file.
	PathNotFile
)

// PathError reports the first path that failed validation. Path is the
// caller's original input string, so the agent can correlate the error
// with what it asked for.
type PathError struct {
	Path       string
	Reason     PathErrorReason
	AllowedDir string // set for PathOutsideAllowed
	Err        error  // set for PathUnresolvable
}

func (e *PathError) Error() string {
	switch e.Reason {
	case PathOutsideAllowed:
		return fmt.Sprintf("file %s is outside allowed directory %s", e.Path, e.AllowedDir)
	case PathNotFound:
		return fmt.Sprintf("file not found: %s", e.Path)
	case PathNotFile:
		return fmt.Sprintf("not a file: %s", e.Path)
	default:
		return fmt.Sprintf("cannot resolve file path %s: %v", e.Path, e.Err)
	}
}

func (e *PathError) Unwrap() error { return e.Err }
