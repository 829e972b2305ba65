package model

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
	"github.com/drone/envsubst"

	_ "embed"
)

const (
	BackendAuto      = "auto"
	BackendSystemctl = "systemctl"
	BackendDBus      = "dbus"
	BackendAndroid   = "android"
	BackendSCM       = "scm"
	BackendNone      = "none"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"
)

// Backends lists the accepted service.backend values, auto first.
var Backends = []string{BackendAuto, BackendSystemctl, BackendDBus, BackendAndroid, BackendSCM, BackendNone}

const (
	DefaultKillGrace      = 2 * time.Second
	DefaultDrainDelay     = 500 * time.Millisecond
	DefaultServiceTimeout = 30 * time.Second
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}
	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

type Config struct {
	Version int     `json:"version" yaml:"version"`
	Log     Log     `json:"log" yaml:"log"`
	Run     Run     `json:"run" yaml:"run"`
	Service Service `json:"service" yaml:"service"`
	Watch   *Watch  `json:"watch,omitempty" yaml:"watch,omitempty"`
}

type Log struct {
	Verbose *bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Output  *string `json:"output,omitempty" yaml:"output,omitempty"` // stderr|stdout|discard|path
}

// Run configures the command composer and the process supervisor.
type Run struct {
	Shell           *string      `json:"shell,omitempty" yaml:"shell,omitempty"`
	Comspec         *string      `json:"comspec,omitempty" yaml:"comspec,omitempty"`
	PrivilegePrefix *string      `json:"privilege_prefix,omitempty" yaml:"privilege_prefix,omitempty"`
	KillGrace       *string      `json:"kill_grace,omitempty" yaml:"kill_grace,omitempty"`
	DrainDelay      *string      `json:"drain_delay,omitempty" yaml:"drain_delay,omitempty"`
	Allowlist       []AllowEntry `json:"allowlist,omitempty" yaml:"allowlist,omitempty"`
}

// AllowEntry maps a command name to the only binary it may start.
type AllowEntry struct {
	Name string   `json:"name" yaml:"name"`
	Path string   `json:"path" yaml:"path"`
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
}

type Service struct {
	Backend string  `json:"backend" yaml:"backend"`
	Timeout *string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type Watch struct {
	Schedule TimerSchedule `json:"schedule" yaml:"schedule"`
	Services []Watched     `json:"services" yaml:"services"`
}

// TimerSchedule is either a cron expression or a duration (Go or ISO-8601).
type TimerSchedule struct {
	Cron     string `json:"cron,omitempty" yaml:"cron,omitempty"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

type Watched struct {
	ID         string `json:"id" yaml:"id"`
	Executable string `json:"executable,omitempty" yaml:"executable,omitempty"`
}

// Descriptor converts a watched entry into a service descriptor.
func (w Watched) Descriptor(timeout time.Duration) ServiceDescriptor {
	return ServiceDescriptor{ID: w.ID, Executable: w.Executable, Timeout: timeout}
}

// LoadConfig validates YAML from r against CUE schema, decodes it to
// Config and expands ${VAR} references in the path-like fields.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),
		cue.Concrete(true),
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}
	if err := out.Expand(); err != nil {
		return Config{}, err
	}
	return out, nil
}

// Expand resolves ${VAR} references in shell, comspec, prefix, log
// output and allowlist paths.
func (c *Config) Expand() error {
	for _, field := range []*string{c.Run.Shell, c.Run.Comspec, c.Run.PrivilegePrefix, c.Log.Output} {
		if field == nil {
			continue
		}
		v, err := envsubst.EvalEnv(*field)
		if err != nil {
			return fmt.Errorf("expanding %q: %w", *field, err)
		}
		*field = v
	}
	for i, e := range c.Run.Allowlist {
		v, err := envsubst.EvalEnv(e.Path)
		if err != nil {
			return fmt.Errorf("expanding allowlist %s: %w", e.Name, err)
		}
		c.Run.Allowlist[i].Path = v
	}
	return nil
}

// DefaultConfig returns the configuration stored when no file exists.
func DefaultConfig(_ context.Context) Config {
	run := Run{
		Shell:           ptr("/bin/sh"),
		PrivilegePrefix: ptr("sudo "),
		KillGrace:       ptr(DefaultKillGrace.String()),
		DrainDelay:      ptr(DefaultDrainDelay.String()),
	}
	switch runtime.GOOS {
	case "android":
		run.Shell = ptr("/system/bin/sh")
		run.PrivilegePrefix = ptr("")
	case "windows":
		run.Shell = nil
		run.Comspec = ptr("${COMSPEC}")
		run.PrivilegePrefix = ptr("")
	}
	return Config{
		Version: 0,
		Log: Log{
			Verbose: ptr(false),
			Output:  ptr(LogStderr),
		},
		Run: run,
		Service: Service{
			Backend: BackendAuto,
			Timeout: ptr(DefaultServiceTimeout.String()),
		},
	}
}

// Durations returns kill grace, drain delay and service timeout with defaults applied.
func (c Config) Durations() (killGrace, drainDelay, serviceTimeout time.Duration, err error) {
	killGrace, err = durationOr(c.Run.KillGrace, DefaultKillGrace)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("run.kill_grace: %w", err)
	}
	drainDelay, err = durationOr(c.Run.DrainDelay, DefaultDrainDelay)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("run.drain_delay: %w", err)
	}
	serviceTimeout, err = durationOr(c.Service.Timeout, DefaultServiceTimeout)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("service.timeout: %w", err)
	}
	return killGrace, drainDelay, serviceTimeout, nil
}

func durationOr(s *string, dflt time.Duration) (time.Duration, error) {
	if s == nil || *s == "" {
		return dflt, nil
	}
	return time.ParseDuration(*s)
}

func ptr[T any](v T) *T {
	return &v
}

// Get dereferences p, returning the zero value for nil.
func Get[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
