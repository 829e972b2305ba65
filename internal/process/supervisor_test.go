package process

import (
	"context"
	"testing"
	"time"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/stretchr/testify/require"
)

func TestAwaitExitBeatsDeadline(t *testing.T) {
	i := &Invoker{clock: clock.Real{}, killGrace: time.Second}
	for range 100 {
		done := make(chan error, 1)
		done <- nil
		deadline := make(chan time.Time, 1)
		deadline <- time.Now()

		timedOut, cause := i.await(t.Context(), nil, done, deadline)
		require.False(t, timedOut)
		require.NoError(t, cause)
	}
}

func TestAwaitCanceledExitWins(t *testing.T) {
	i := &Invoker{clock: clock.Real{}, killGrace: time.Second}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	for range 100 {
		done := make(chan error, 1)
		done <- nil
		timedOut, cause := i.await(ctx, nil, done, nil)
		require.False(t, timedOut)
		require.NoError(t, cause)
	}
}
