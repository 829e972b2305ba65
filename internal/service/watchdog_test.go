package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CZERTAINLY/osal/internal/model"
)

// fakeManager answers Query from a map of ids to errors and records
// restarts.
type fakeManager struct {
	Unsupported
	mx        sync.Mutex
	query     map[string]error
	restarted []string
}

func (f *fakeManager) Query(_ context.Context, d model.ServiceDescriptor) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.query[d.ID]
}

func (f *fakeManager) Restart(_ context.Context, d model.ServiceDescriptor) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.restarted = append(f.restarted, d.ID)
	return nil
}

func watchConfig(schedule model.TimerSchedule, ids ...string) model.Watch {
	w := model.Watch{Schedule: schedule}
	for _, id := range ids {
		w.Services = append(w.Services, model.Watched{ID: id})
	}
	return w
}

func TestWatchdogCheck(t *testing.T) {
	t.Parallel()
	m := &fakeManager{query: map[string]error{
		"up":      nil,
		"down":    model.ErrNotInitialized,
		"broken":  model.ErrFailure,
		"missing": model.ErrNotFound,
	}}
	w, err := NewWatchdog(t.Context(), watchConfig(model.TimerSchedule{Duration: "1h"}, "up", "down", "broken", "missing"), time.Second, m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.scheduler.Shutdown() })

	checks := w.Check(t.Context())
	require.Len(t, checks, 4)
	byID := map[string]Check{}
	for _, c := range checks {
		byID[c.ID] = c
	}
	require.Equal(t, model.StatusSuccess, byID["up"].Status)
	require.False(t, byID["up"].Restarted)
	require.True(t, byID["down"].Restarted)
	require.Equal(t, model.StatusNotInitialized, byID["down"].Status)
	require.True(t, byID["broken"].Restarted)
	require.False(t, byID["missing"].Restarted)
	require.ErrorIs(t, byID["missing"].Err, model.ErrNotFound)
	require.ElementsMatch(t, []string{"down", "broken"}, m.restarted)
}

func TestWatchdogDo(t *testing.T) {
	t.Parallel()
	m := &fakeManager{query: map[string]error{"down": model.ErrNotInitialized}}
	w, err := NewWatchdog(t.Context(), watchConfig(model.TimerSchedule{Cron: "0 * * * *"}, "down"), time.Second, m)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- w.Do(ctx)
	}()

	select {
	case checks := <-w.Checks():
		require.Len(t, checks, 1)
		require.True(t, checks[0].Restarted)
	case <-time.After(10 * time.Second):
		t.Fatal("watchdog did not run on start")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestNewWatchdogFails(t *testing.T) {
	t.Parallel()
	m := &fakeManager{}

	var testCases = []struct {
		scenario string
		given    model.Watch
	}{
		{"no services", watchConfig(model.TimerSchedule{Duration: "1h"})},
		{"bad id", watchConfig(model.TimerSchedule{Duration: "1h"}, "a/b")},
		{"no schedule", watchConfig(model.TimerSchedule{}, "foo")},
		{"bad cron", watchConfig(model.TimerSchedule{Cron: "61 * * * *"}, "foo")},
		{"bad duration", watchConfig(model.TimerSchedule{Duration: "-1h"}, "foo")},
	}
	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			_, err := NewWatchdog(t.Context(), tt.given, time.Second, m)
			require.Error(t, err)
		})
	}
}
