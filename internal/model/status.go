package model

import (
	"errors"
)

// Status is the outcome code of an invocation or a service operation.
type Status int

const (
	StatusSuccess Status = iota
	StatusInvoked
	StatusTimedOut
	StatusNotExecutable
	StatusIOError
	StatusBadParameter
	StatusExists
	StatusNotFound
	StatusNotInitialized
	StatusNotSupported
	StatusFailure
)

// StatusRunning is what Query reports for a live service.
const StatusRunning = StatusSuccess

var statusNames = [...]string{
	StatusSuccess:        "SUCCESS",
	StatusInvoked:        "INVOKED",
	StatusTimedOut:       "TIMED_OUT",
	StatusNotExecutable:  "NOT_EXECUTABLE",
	StatusIOError:        "IO_ERROR",
	StatusBadParameter:   "BAD_PARAMETER",
	StatusExists:         "EXISTS",
	StatusNotFound:       "NOT_FOUND",
	StatusNotInitialized: "NOT_INITIALIZED",
	StatusNotSupported:   "NOT_SUPPORTED",
	StatusFailure:        "FAILURE",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

var (
	ErrBadParameter   = errors.New("bad parameter")
	ErrIO             = errors.New("i/o error")
	ErrNotExecutable  = errors.New("not executable")
	ErrTimedOut       = errors.New("timed out")
	ErrExists         = errors.New("already exists")
	ErrNotFound       = errors.New("not found")
	ErrNotInitialized = errors.New("not initialized")
	ErrNotSupported   = errors.New("not supported")
	ErrFailure        = errors.New("failure")
)

var statusErrors = []struct {
	err    error
	status Status
}{
	{ErrBadParameter, StatusBadParameter},
	{ErrIO, StatusIOError},
	{ErrNotExecutable, StatusNotExecutable},
	{ErrTimedOut, StatusTimedOut},
	{ErrExists, StatusExists},
	{ErrNotFound, StatusNotFound},
	{ErrNotInitialized, StatusNotInitialized},
	{ErrNotSupported, StatusNotSupported},
	{ErrFailure, StatusFailure},
}

// StatusOf maps an error returned by this module to its Status.
// nil is SUCCESS, anything unrecognized is FAILURE.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	for _, se := range statusErrors {
		if errors.Is(err, se.err) {
			return se.status
		}
	}
	return StatusFailure
}

// Err returns the sentinel error of a status, nil for SUCCESS and INVOKED.
func (s Status) Err() error {
	for _, se := range statusErrors {
		if se.status == s {
			return se.err
		}
	}
	if s == StatusSuccess || s == StatusInvoked {
		return nil
	}
	return ErrFailure
}
