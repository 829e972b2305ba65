package model_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/CZERTAINLY/osal/internal/model"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    error
		then     model.Status
	}{
		{"nil", nil, model.StatusSuccess},
		{"timed out", fmt.Errorf("sleep 30: %w", model.ErrTimedOut), model.StatusTimedOut},
		{"joined with ctx", fmt.Errorf("wait: %w: %w", model.ErrTimedOut, context.Canceled), model.StatusTimedOut},
		{"not executable", fmt.Errorf("start: %w", model.ErrNotExecutable), model.StatusNotExecutable},
		{"io", model.ErrIO, model.StatusIOError},
		{"bad parameter wins", errors.Join(model.ErrFailure, model.ErrBadParameter), model.StatusBadParameter},
		{"exists", model.ErrExists, model.StatusExists},
		{"not found", model.ErrNotFound, model.StatusNotFound},
		{"not initialized", model.ErrNotInitialized, model.StatusNotInitialized},
		{"not supported", model.ErrNotSupported, model.StatusNotSupported},
		{"unknown", errors.New("boom"), model.StatusFailure},
	}
	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			require.Equal(t, tt.then, model.StatusOf(tt.given))
		})
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "SUCCESS", model.StatusRunning.String())
	require.Equal(t, "TIMED_OUT", model.StatusTimedOut.String())
	require.Equal(t, "NOT_INITIALIZED", model.StatusNotInitialized.String())
	require.Equal(t, "UNKNOWN", model.Status(-1).String())
	require.Equal(t, "UNKNOWN", model.Status(99).String())
}

func TestStatusErr(t *testing.T) {
	t.Parallel()
	require.NoError(t, model.StatusSuccess.Err())
	require.NoError(t, model.StatusInvoked.Err())
	for s := model.StatusTimedOut; s <= model.StatusFailure; s++ {
		require.Equal(t, s, model.StatusOf(s.Err()), s.String())
	}
}
