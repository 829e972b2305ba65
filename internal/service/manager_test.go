package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/CZERTAINLY/osal/internal/model"
)

func TestNewManager(t *testing.T) {
	t.Parallel()
	exec := newFakeExecutor(nil)

	var testCases = []struct {
		given string
		then  Manager
	}{
		{model.BackendSystemctl, &Systemctl{}},
		{model.BackendDBus, &SystemdDBus{}},
		{model.BackendAndroid, &Android{}},
		{model.BackendSCM, &SCM{}},
		{model.BackendNone, Unsupported{}},
	}
	for _, tt := range testCases {
		t.Run(tt.given, func(t *testing.T) {
			m, err := NewManager(tt.given, exec, clock.Real{})
			require.NoError(t, err)
			require.IsType(t, tt.then, m)
		})
	}

	t.Run("auto", func(t *testing.T) {
		auto, err := NewManager(model.BackendAuto, exec, clock.Real{})
		require.NoError(t, err)
		native, err := NewManager(defaultBackend, exec, clock.Real{})
		require.NoError(t, err)
		require.IsType(t, native, auto)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewManager("launchd", exec, clock.Real{})
		require.ErrorIs(t, err, model.ErrBadParameter)
	})
}

func TestManagersRejectBadIDs(t *testing.T) {
	t.Parallel()

	exec := newFakeExecutor(nil)
	managers := map[string]Manager{
		"systemctl":   NewSystemctl(exec, clock.Real{}),
		"dbus":        newTestDBus(clock.Real{}, &fakeUnitConn{result: "done"}),
		"android":     NewAndroid(exec, clock.Real{}),
		"scm":         func() Manager { s, _ := newTestSCM(clock.Real{}, map[string]*fakeSCMService{}); return s }(),
		"unsupported": Unsupported{},
	}
	ids := []string{"", "a/b", `a\b`, "/etc/passwd"}

	for name, m := range managers {
		ops := map[string]opFunc{
			"install":   m.Install,
			"uninstall": m.Uninstall,
			"start":     m.Start,
			"stop":      m.Stop,
			"restart":   m.Restart,
			"query":     m.Query,
		}
		for op, fn := range ops {
			for _, id := range ids {
				t.Run(fmt.Sprintf("%s/%s/%q", name, op, id), func(t *testing.T) {
					err := fn(t.Context(), model.ServiceDescriptor{ID: id, Timeout: time.Second})
					require.ErrorIs(t, err, model.ErrBadParameter)
				})
			}
		}
	}
	require.Empty(t, exec.lines())
}

func TestUnsupported(t *testing.T) {
	t.Parallel()
	d := model.ServiceDescriptor{ID: "foo"}
	var m Manager = Unsupported{}
	require.ErrorIs(t, m.Start(t.Context(), d), model.ErrNotSupported)
	require.ErrorIs(t, m.Query(t.Context(), d), model.ErrNotSupported)
	require.Equal(t, model.StatusNotSupported, model.StatusOf(m.Install(t.Context(), d)))
}
