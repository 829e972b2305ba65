package model

import (
	"fmt"
	"strings"
	"time"
)

// ServiceDescriptor identifies a service for the control facade. It is
// owned by the caller and the facade keeps no state between calls.
type ServiceDescriptor struct {
	// ID is the systemd unit, Android init service or SCM service key.
	ID string
	// Executable is the binary path; Android uses it to find the process.
	Executable   string
	Args         string
	Name         string
	Description  string
	Dependencies string // semicolon-delimited
	Timeout      time.Duration
}

// Validate rejects an empty id and ids with path separators.
func (d ServiceDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("empty service id: %w", ErrBadParameter)
	}
	if strings.ContainsAny(d.ID, `/\`) {
		return fmt.Errorf("service id %q contains a path separator: %w", d.ID, ErrBadParameter)
	}
	if d.Timeout < 0 {
		return fmt.Errorf("negative timeout %s: %w", d.Timeout, ErrBadParameter)
	}
	return nil
}

// ExecutableOrID returns Executable, falling back to ID.
func (d ServiceDescriptor) ExecutableOrID() string {
	if d.Executable != "" {
		return d.Executable
	}
	return d.ID
}

// DependencyList splits Dependencies, dropping empty entries.
func (d ServiceDescriptor) DependencyList() []string {
	var deps []string
	for dep := range strings.SplitSeq(d.Dependencies, ";") {
		dep = strings.TrimSpace(dep)
		if dep != "" {
			deps = append(deps, dep)
		}
	}
	return deps
}
