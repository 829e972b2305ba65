package osal_test

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	osalctlPath string

	// tmpDir is a function used to create a tempdir
	// -test.keepdir flag says test to use os.MkdirTemp
	// default is t.TempDir, which will be cleaned up
	tmpDir func(t *testing.T) string
)

const config = `
version: 0
log:
    verbose: true
    output: discard
run:
    kill_grace: 1s
    drain_delay: 100ms
service:
    backend: none
    timeout: 5s
`

func TestMain(m *testing.M) {
	var keepTestDir bool
	flag.BoolVar(&keepTestDir, "test.keepdir", false, "use os.TempDir instead of t.TempDir to keep test artifacts")

	flag.Parse()

	if testing.Short() {
		slog.Warn("integration tests with -short are ignored")
		os.Exit(0)
	}

	if !keepTestDir {
		tmpDir = func(t *testing.T) string {
			t.Helper()
			return t.TempDir()
		}
	} else {
		tmpDir = func(t *testing.T) string {
			t.Helper()
			dir, err := os.MkdirTemp("", t.Name()+"*")
			require.NoError(t, err)
			_, err = fmt.Fprintf(t.Output(), "TEMPDIR %s: -test.keepdir used, so it won't be automatically deleted", dir)
			require.NoError(t, err)
			return dir
		}
	}

	bin := "osalctl-ci"
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}
	if !isExecutable(bin) {
		slog.Error("cannot locate osalctl-ci binary: run go build -race -cover -covermode=atomic -o osalctl-ci ./cmd/osalctl/ first")
		os.Exit(1)
	}

	var err error
	osalctlPath, err = filepath.Abs(bin)
	if err != nil {
		slog.Error("can't get abspath for osalctl-ci", "error", err)
		os.Exit(1)
	}
	coverDir, err := filepath.Abs("coverage")
	if err != nil {
		slog.Error("can't get value for GOCOVERDIR for osalctl-ci", "error", err)
		os.Exit(1)
	}
	err = rmRfMkdirp(coverDir)
	if err != nil {
		slog.Error("can't reset GOCOVERDIR for osalctl-ci", "error", err, "coverdir", coverDir)
		os.Exit(1)
	}

	err = os.Setenv("GOCOVERDIR", coverDir)
	if err != nil {
		slog.Error("can't set GOCOVERDIR env variable", "error", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

type result struct {
	stdout string
	stderr string
	err    error
}

func osalctl(t *testing.T, args ...string) result {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 60*time.Second)
	t.Cleanup(cancel)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, osalctlPath, append([]string{"--config", "osal.yaml"}, args...)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestRunFunction(t *testing.T) {
	_ = chDir(t)
	creat(t, "osal.yaml", []byte(config))

	res := osalctl(t, "run", "--wait", "--func", "echo", "--", "hello", "world")
	require.NoError(t, res.err, res.stderr)
	require.Equal(t, "hello world\nSUCCESS return_code=0\n", normalize(res.stdout))
}

func TestRunShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell command lines")
	}
	_ = chDir(t)
	creat(t, "osal.yaml", []byte(config))

	t.Run("wait", func(t *testing.T) {
		res := osalctl(t, "run", "--wait", "--", "echo", "hello")
		require.NoError(t, res.err, res.stderr)
		require.Equal(t, "hello\nSUCCESS return_code=0\n", res.stdout)
	})

	t.Run("return code", func(t *testing.T) {
		res := osalctl(t, "run", "--wait", "--", "exit", "3")
		require.NoError(t, res.err, res.stderr)
		require.Equal(t, "SUCCESS return_code=3\n", res.stdout)
	})

	t.Run("capture cap", func(t *testing.T) {
		res := osalctl(t, "run", "--wait", "--stdout-cap", "4", "--", "echo", "truncated")
		require.NoError(t, res.err, res.stderr)
		require.Equal(t, "trunSUCCESS return_code=0\n", res.stdout)
	})

	t.Run("negative cap", func(t *testing.T) {
		res := osalctl(t, "run", "--wait", "--stderr-cap=-5", "--", "echo", "x")
		require.Error(t, res.err)
		require.Equal(t, "BAD_PARAMETER\n", res.stdout)
	})

	t.Run("timeout", func(t *testing.T) {
		start := time.Now()
		res := osalctl(t, "run", "--wait", "--timeout", "200ms", "--", "sleep", "30")
		require.Error(t, res.err)
		require.Equal(t, "TIMED_OUT\n", res.stdout)
		require.Less(t, time.Since(start), 20*time.Second)
	})

	t.Run("detached", func(t *testing.T) {
		res := osalctl(t, "run", "--", "true")
		require.NoError(t, res.err, res.stderr)
		require.True(t, strings.HasPrefix(res.stdout, "INVOKED pid="), res.stdout)
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("OSAL_TIMEOUT", "200ms")
		res := osalctl(t, "run", "--wait", "--", "sleep", "30")
		require.Error(t, res.err)
		require.Equal(t, "TIMED_OUT\n", res.stdout)
	})
}

func TestAllowlist(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell command lines")
	}
	_ = chDir(t)
	creat(t, "osal.yaml", []byte(strings.Replace(config, "run:\n", `run:
    allowlist:
        - name: greet
          path: echo
          args: ["hi there"]
`, 1)))

	res := osalctl(t, "run", "--wait", "--", "greet")
	require.NoError(t, res.err, res.stderr)
	require.Equal(t, "hi there\nSUCCESS return_code=0\n", res.stdout)

	res = osalctl(t, "run", "--wait", "--", "reboot")
	require.Error(t, res.err)
	require.Equal(t, "NOT_EXECUTABLE\n", res.stdout)
}

func TestService(t *testing.T) {
	_ = chDir(t)
	creat(t, "osal.yaml", []byte(config))

	res := osalctl(t, "service", "query", "foo")
	require.Error(t, res.err)
	require.Equal(t, "NOT_SUPPORTED\n", res.stdout)

	res = osalctl(t, "service", "start", "../etc/passwd")
	require.Error(t, res.err)
	require.Equal(t, "BAD_PARAMETER\n", res.stdout)
}

func TestBadConfig(t *testing.T) {
	_ = chDir(t)
	creat(t, "osal.yaml", []byte("version: 0\nservice:\n    backend: launchd\n"))

	res := osalctl(t, "version")
	require.Error(t, res.err)
	require.Contains(t, res.stderr, "service.backend")
}

func normalize(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if runtime.GOOS == "windows" {
		return info.Mode().IsRegular()
	}
	return info.Mode().Perm()&0111 != 0
}

func rmRfMkdirp(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func chDir(t *testing.T) string {
	t.Helper()
	tempdir := tmpDir(t)
	t.Chdir(tempdir)
	return tempdir
}

func creat(t *testing.T, path string, content []byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	_, err = f.Write(content)
	require.NoError(t, err)
	err = f.Sync()
	require.NoError(t, err)
}
