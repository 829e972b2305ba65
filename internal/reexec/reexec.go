// Package reexec runs registered Go functions as separate processes.
//
// A function cannot be forked into a child the way a C program does it,
// so the current binary is executed again with an environment marker
// naming the entry point. Init must be the first call in main (and in
// TestMain of packages spawning functions): in a re-executed child it
// runs the entry point and exits, in the parent it returns false.
package reexec

import (
	"fmt"
	"os"
	"strconv"
	"sync"
)

const (
	envName  = "OSAL_REEXEC"
	envStack = "OSAL_REEXEC_STACK"
)

// Entry is a function run as a process. The returned int is the exit code.
type Entry func(args []string) int

var (
	mx       sync.RWMutex
	registry = make(map[string]Entry)
)

// Register adds an entry point. It panics on a duplicate name, so it is
// meant for init functions.
func Register(name string, fn Entry) {
	mx.Lock()
	defer mx.Unlock()
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("reexec: entry point %q already registered", name))
	}
	registry[name] = fn
}

// Registered reports whether name can be spawned.
func Registered(name string) bool {
	mx.RLock()
	defer mx.RUnlock()
	_, ok := registry[name]
	return ok
}

// Env returns the environment marking a child as the entry point name.
func Env(name string, stackSize uint64) []string {
	env := []string{envName + "=" + name}
	if stackSize > 0 {
		env = append(env, envStack+"="+strconv.FormatUint(stackSize, 10))
	}
	return env
}

// Self returns the path of the running binary.
func Self() (string, error) {
	return os.Executable()
}

// Init runs the entry point named in the environment and exits. It
// returns false when the process is not a re-executed child.
func Init() bool {
	name, ok := os.LookupEnv(envName)
	if !ok {
		return false
	}
	mx.RLock()
	fn, found := registry[name]
	mx.RUnlock()
	if !found {
		fmt.Fprintf(os.Stderr, "reexec: unknown entry point %q\n", name)
		os.Exit(127)
	}
	_ = os.Unsetenv(envName)
	if v, ok := os.LookupEnv(envStack); ok {
		_ = os.Unsetenv(envStack)
		if size, err := strconv.ParseUint(v, 10, 64); err == nil {
			if err := setStackLimit(size); err != nil {
				fmt.Fprintf(os.Stderr, "reexec: stack limit %d: %v\n", size, err)
			}
		}
	}
	os.Exit(fn(os.Args[1:]))
	return true
}
