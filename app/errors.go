package app

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrIncompleteAPIData matches every IncompleteAPIDataError with errors.Is.
var ErrIncompleteAPIData = errors.New("incomplete API data")

// AppError is returned by Start and Launch.
type AppError struct {
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

// Cause lets errors.Cause from github.com/pkg/errors walk through AppError.
func (e *AppError) Cause() error { return e.Err }

// IncompleteAPIDataError reports required fields missing from input data.
type IncompleteAPIDataError struct {
	Msg     string
	Missing []string
}

func (e *IncompleteAPIDataError) Error() string {
	return fmt.Sprintf("%s: missing %s", e.Msg, strings.Join(e.Missing, ", "))
}

func (e *IncompleteAPIDataError) Is(target error) bool {
	return target == ErrIncompleteAPIData
}

// ConnectionAction tells which side of a sender connection failed.
type ConnectionAction string

const (
	ActionConnect    ConnectionAction = "connect"
	ActionDisconnect ConnectionAction = "disconnect"
)

// SenderConnectionError is reported through the error event when a
// remoteConnected or remoteDisconnected payload cannot be used. The roster is
// left unchanged.
type SenderConnectionError struct {
	Msg    string
	Action ConnectionAction
	Err    error
}

func (e *SenderConnectionError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Msg, e.Action, e.Err)
}

func (e *SenderConnectionError) Unwrap() error { return e.Err }

func (e *SenderConnectionError) Cause() error { return e.Err }
