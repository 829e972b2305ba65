package reexec_test

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CZERTAINLY/osal/internal/reexec"
)

func init() {
	reexec.Register("greet", func(args []string) int {
		fmt.Println("hello " + strings.Join(args, " "))
		return 0
	})
	reexec.Register("fail", func([]string) int {
		return 7
	})
}

func TestMain(m *testing.M) {
	if reexec.Init() {
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func TestRegister(t *testing.T) {
	require.True(t, reexec.Registered("greet"))
	require.False(t, reexec.Registered("nope"))
	require.Panics(t, func() {
		reexec.Register("greet", func([]string) int { return 0 })
	})
}

func TestEnv(t *testing.T) {
	require.Equal(t, []string{"OSAL_REEXEC=greet"}, reexec.Env("greet", 0))
	require.Equal(t, []string{"OSAL_REEXEC=greet", "OSAL_REEXEC_STACK=1048576"}, reexec.Env("greet", 1<<20))
}

func spawn(t *testing.T, name string, args ...string) (string, int) {
	t.Helper()
	self, err := reexec.Self()
	require.NoError(t, err)
	cmd := exec.CommandContext(t.Context(), self, args...)
	cmd.Env = append(os.Environ(), reexec.Env(name, 8<<20)...)
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(out), exitErr.ExitCode()
	}
	require.NoError(t, err)
	return string(out), 0
}

func TestInit(t *testing.T) {
	var testCases = []struct {
		scenario string
		given    string
		then     int
	}{
		{"greet", "greet", 0},
		{"exit code", "fail", 7},
		{"unknown", "nope", 127},
	}
	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			out, code := spawn(t, tt.given, "world")
			require.Equal(t, tt.then, code)
			if tt.given == "greet" {
				require.Equal(t, "hello world\n", out)
			}
		})
	}
}

func TestInitParent(t *testing.T) {
	require.False(t, reexec.Init())
}
