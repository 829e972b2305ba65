package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/CZERTAINLY/osal/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type reply struct {
	code int
	out  string
	err  error
}

// fakeExecutor answers command lines from a script and records them.
// Unknown lines exit 0 with no output.
type fakeExecutor struct {
	mx      sync.Mutex
	replies map[string]reply
	reqs    []model.RunRequest
}

func newFakeExecutor(replies map[string]reply) *fakeExecutor {
	if replies == nil {
		replies = map[string]reply{}
	}
	return &fakeExecutor{replies: replies}
}

func (f *fakeExecutor) Run(_ context.Context, req model.RunRequest) (model.RunResult, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.reqs = append(f.reqs, req)
	r := f.replies[req.Command]
	if r.err != nil {
		return model.RunResult{Status: model.StatusOf(r.err), ReturnCode: -1}, r.err
	}
	if req.Stdout.Captures() {
		n := copy(req.Stdout.Buf[:len(req.Stdout.Buf)-1], r.out)
		req.Stdout.Buf[n] = 0
	}
	return model.RunResult{Status: model.StatusSuccess, ReturnCode: r.code}, nil
}

func (f *fakeExecutor) lines() []string {
	f.mx.Lock()
	defer f.mx.Unlock()
	ret := make([]string, len(f.reqs))
	for i, r := range f.reqs {
		ret[i] = r.Command
	}
	return ret
}

type opFunc func(context.Context, model.ServiceDescriptor) error

// advancingExecutor moves a fake clock forward on every command.
type advancingExecutor struct {
	*fakeExecutor
	clock *clock.Fake
	step  time.Duration
}

func (a *advancingExecutor) Run(ctx context.Context, req model.RunRequest) (model.RunResult, error) {
	res, err := a.fakeExecutor.Run(ctx, req)
	a.clock.Advance(a.step)
	return res, err
}
