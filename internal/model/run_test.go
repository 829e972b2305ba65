package model_test

import (
	"os"
	"testing"
	"time"

	"github.com/CZERTAINLY/osal/internal/model"
	"github.com/stretchr/testify/require"
)

func TestRunRequestValidate(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    model.RunRequest
		fails    bool
	}{
		{"command", model.RunRequest{Command: "true"}, false},
		{"function", model.RunRequest{Func: "print"}, false},
		{"neither", model.RunRequest{}, true},
		{"both", model.RunRequest{Command: "true", Func: "print"}, true},
		{"negative wait", model.RunRequest{Command: "true", MaxWait: -time.Second}, true},
	}
	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			err := tt.given.Validate()
			if tt.fails {
				require.ErrorIs(t, err, model.ErrBadParameter)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSink(t *testing.T) {
	t.Parallel()

	var nilSink *model.Sink
	require.False(t, nilSink.Captures())
	require.Empty(t, nilSink.String())

	buf := model.NewBuffer(8)
	require.True(t, buf.Captures())
	copy(buf.Buf, "abc\x00zzz")
	require.Equal(t, "abc", buf.String())

	require.False(t, model.NewBuffer(0).Captures())
	require.False(t, model.NewFile(os.Stderr).Captures())
}
