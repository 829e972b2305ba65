// Package command turns a logical run request into the concrete program,
// arguments and command line handed to the process invoker.
package command

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/CZERTAINLY/osal/internal/model"
	"github.com/CZERTAINLY/osal/internal/reexec"
)

// Invocation is a composed request, ready to be spawned.
type Invocation struct {
	Path string
	// Args excludes argv[0].
	Args []string
	// CmdLine is the raw Windows command line, used instead of Args when set.
	CmdLine string
	// Env is appended to the environment of the parent.
	Env []string
}

// Composer holds the platform settings of command composition.
type Composer struct {
	Shell           string
	Comspec         string
	PrivilegePrefix string
	// GOOS selects the composition rules, runtime.GOOS when empty.
	GOOS string
}

// New returns a composer from configuration for the running platform.
func New(run model.Run) Composer {
	return NewFor(runtime.GOOS, run)
}

// NewFor returns a composer for goos. Settings missing from run get the
// platform defaults: sudo as the privilege prefix on Linux and COMSPEC on
// Windows. The privilege prefix is dropped when the process already runs
// as root.
func NewFor(goos string, run model.Run) Composer {
	c := Composer{
		Shell:           model.Get(run.Shell),
		Comspec:         model.Get(run.Comspec),
		PrivilegePrefix: model.Get(run.PrivilegePrefix),
		GOOS:            goos,
	}
	if c.Shell == "" {
		c.Shell = "/bin/sh"
		if goos == "android" {
			c.Shell = "/system/bin/sh"
		}
	}
	switch goos {
	case "linux":
		if run.PrivilegePrefix == nil {
			c.PrivilegePrefix = "sudo "
		}
	case "windows":
		if run.Comspec == nil {
			c.Comspec = os.Getenv("COMSPEC")
		}
	}
	if goos != "windows" && os.Geteuid() == 0 {
		c.PrivilegePrefix = ""
	}
	return c
}

func (c Composer) goos() string {
	if c.GOOS != "" {
		return c.GOOS
	}
	return runtime.GOOS
}

// Line returns the command line with the privilege prefix applied.
func (c Composer) Line(req model.RunRequest) string {
	if !req.Privileged || c.PrivilegePrefix == "" {
		return req.Command
	}
	prefix := c.PrivilegePrefix
	if !strings.HasSuffix(prefix, " ") {
		prefix += " "
	}
	return prefix + req.Command
}

// Compose builds the invocation of req.
func (c Composer) Compose(req model.RunRequest) (Invocation, error) {
	if err := req.Validate(); err != nil {
		return Invocation{}, err
	}
	if req.Func != "" {
		return c.function(req)
	}

	line := c.Line(req)
	if c.goos() == "windows" {
		return c.windows(line)
	}
	if req.StackSize > 0 {
		// a limit the shell cannot apply leaves the command running with the inherited one
		line = fmt.Sprintf("ulimit -s %d 2>/dev/null; %s", (req.StackSize+1023)/1024, line)
	}
	return Invocation{
		Path: c.Shell,
		Args: []string{"-c", line},
	}, nil
}

func (c Composer) function(req model.RunRequest) (Invocation, error) {
	if !reexec.Registered(req.Func) {
		return Invocation{}, fmt.Errorf("entry point %q is not registered: %w", req.Func, model.ErrBadParameter)
	}
	if req.Privileged && c.PrivilegePrefix != "" {
		return Invocation{}, fmt.Errorf("entry point %q: privilege escalation needs a shell command: %w", req.Func, model.ErrBadParameter)
	}
	self, err := reexec.Self()
	if err != nil {
		return Invocation{}, fmt.Errorf("locating own executable: %w: %w", err, model.ErrNotExecutable)
	}
	return Invocation{
		Path: self,
		Args: append([]string(nil), req.Args...),
		Env:  reexec.Env(req.Func, req.StackSize),
	}, nil
}

// windows wraps line as "<comspec>" /C "<line>". Without a comspec the
// line is handed to CreateProcess as is and its first token names the
// program.
func (c Composer) windows(line string) (Invocation, error) {
	if c.Comspec != "" {
		return Invocation{
			Path:    c.Comspec,
			Args:    []string{"/C", line},
			CmdLine: fmt.Sprintf(`"%s" /C "%s"`, c.Comspec, line),
		}, nil
	}
	program := firstToken(line)
	if program == "" {
		return Invocation{}, fmt.Errorf("empty command line: %w", model.ErrBadParameter)
	}
	return Invocation{
		Path:    program,
		CmdLine: line,
	}, nil
}

func firstToken(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, `"`) {
		if end := strings.IndexByte(line[1:], '"'); end >= 0 {
			return line[1 : end+1]
		}
		return strings.Trim(line, `"`)
	}
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i]
	}
	return line
}

// Quote returns word ready for sh -c. Words made of safe characters are
// left as they are, anything else is single-quoted.
func Quote(word string) string {
	if word != "" && strings.IndexFunc(word, unsafeRune) < 0 {
		return word
	}
	return "'" + strings.ReplaceAll(word, "'", `'\''`) + "'"
}

func unsafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("@%_+=:,./-", r):
		return false
	}
	return true
}
