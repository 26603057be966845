// Package errors defines the runner's error taxonomy and its mapping to
// process exit codes.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid smoothing parameter")
	ErrAlreadyExists    = errors.New("run file already exists")
	ErrMissingInput     = errors.New("missing input")
	ErrEngineFailure    = errors.New("retrieval engine failure")
	ErrDuplicateTopic   = errors.New("duplicate topic id")
)

// Exit codes. Logging setup failure gets its own code because it is
// reported before any retrieval work can begin.
const (
	ExitOK       = 0
	ExitFatal    = 1
	ExitLogSetup = 2
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// ExitCode maps an error to the process exit code. All fatal runner
// errors exit 1; only pre-work setup failures use a distinct code,
// assigned by the caller.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return ExitFatal
}

// Convenience re-exports so callers do not need both this package and
// the stdlib errors package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
