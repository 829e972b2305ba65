package model

import (
	"bytes"
	"fmt"
	"os"
	"time"
)

// Sink receives one output stream of a child process. Either Buf is
// used as a bounded capture buffer (capacity is len(Buf)) or File is
// inherited by the child directly. A nil *Sink discards the stream.
type Sink struct {
	Buf  []byte
	File *os.File
}

// NewBuffer returns a capture sink with the given capacity. The
// capacity includes the trailing NUL, so at most capacity-1 bytes of
// output are kept.
func NewBuffer(capacity int) *Sink {
	return &Sink{Buf: make([]byte, capacity)}
}

// NewFile returns a sink which hands f to the child.
func NewFile(f *os.File) *Sink {
	return &Sink{File: f}
}

// Captures reports whether the sink wants output copied into Buf.
func (s *Sink) Captures() bool {
	return s != nil && s.File == nil && len(s.Buf) > 0
}

// String returns the captured text up to the terminating NUL.
func (s *Sink) String() string {
	if s == nil {
		return ""
	}
	if i := bytes.IndexByte(s.Buf, 0); i >= 0 {
		return string(s.Buf[:i])
	}
	return string(s.Buf)
}

// RunRequest describes one external command invocation.
type RunRequest struct {
	// Command is a shell command line. Exactly one of Command and Func is set.
	Command string
	// Func names an entry point registered with reexec.Register, which
	// is run in a new process with Args.
	Func string
	Args []string

	Block      bool
	Privileged bool
	// Priority is a nice delta, 0 keeps the parent priority.
	Priority int
	// StackSize in bytes, 0 inherits the limit of the parent.
	StackSize uint64
	// MaxWait bounds a blocking invocation, 0 waits forever.
	MaxWait time.Duration

	Stdout *Sink
	Stderr *Sink
}

// Validate checks the request before anything is spawned.
func (r RunRequest) Validate() error {
	switch {
	case r.Command == "" && r.Func == "":
		return fmt.Errorf("neither command nor function given: %w", ErrBadParameter)
	case r.Command != "" && r.Func != "":
		return fmt.Errorf("both command and function given: %w", ErrBadParameter)
	case r.MaxWait < 0:
		return fmt.Errorf("negative max wait %s: %w", r.MaxWait, ErrBadParameter)
	}
	return nil
}

// RunResult is the outcome of one invocation. ReturnCode is meaningful
// only with StatusSuccess and StatusTimedOut (where it is always -1).
type RunResult struct {
	Status     Status
	ReturnCode int
	// Stdout and Stderr count bytes written into the sink buffers,
	// the trailing NUL excluded.
	Stdout  int
	Stderr  int
	PID     int
	Path    string
	Args    []string
	Started time.Time
	Stopped time.Time
}
