package ai

import (
	"errors"
	"fmt"

	"github.com/eduintel/eduintel/internal/model"
)

// ErrNetwork indicates a transport-level failure reaching the remote API.
type ErrNetwork struct {
	Err error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *ErrNetwork) Unwrap() error { return e.Err }

// ErrRemoteRejected indicates the remote API answered with a non-2xx status.
type ErrRemoteRejected struct {
	Status int
	Body   string
}

func (e *ErrRemoteRejected) Error() string {
	return fmt.Sprintf("remote rejected request: status %d: %s", e.Status, e.Body)
}

// ErrProcess indicates the local driver process could not be spawned or
// exited non-zero.
type ErrProcess struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ErrProcess) Error() string {
	return fmt.Sprintf("driver process failed (exit %d): %v", e.ExitCode, e.Err)
}

func (e *ErrProcess) Unwrap() error { return e.Err }

// ErrParse indicates model output that could not be interpreted.
type ErrParse struct {
	Output string
	Err    error
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("unparseable model output: %v", e.Err)
}

func (e *ErrParse) Unwrap() error { return e.Err }

// Kind classifies an invoker error for logging and fallback selection.
func Kind(err error) model.ErrorKind {
	if err == nil {
		return model.ErrKindNone
	}
	var (
		netErr   *ErrNetwork
		rejErr   *ErrRemoteRejected
		procErr  *ErrProcess
		parseErr *ErrParse
	)
	switch {
	case errors.As(err, &netErr):
		return model.ErrKindNetwork
	case errors.As(err, &rejErr):
		return model.ErrKindRemoteRejected
	case errors.As(err, &procErr):
		return model.ErrKindProcess
	case errors.As(err, &parseErr):
		return model.ErrKindParse
	}
	return model.ErrKindUnknown
}
