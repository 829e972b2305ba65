package clock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Fake is a manually driven Clock. Timers fire when Advance moves the
// current time past their deadline.
type Fake struct {
	mx      sync.Mutex
	now     time.Time
	waiters []waiter
	// Slept accumulates every duration passed to Sleep.
	Slept []time.Duration
	// OnSleep, when set, is called instead of blocking in Sleep; the
	// clock is advanced by d first.
	OnSleep func(d time.Duration)
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.now
}

func (f *Fake) Since(start time.Time) time.Duration {
	return f.Now().Sub(start)
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mx.Lock()
	defer f.mx.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.now
		return ch
	}
	f.waiters = append(f.waiters, waiter{at: f.now.Add(d), ch: ch})
	sort.Slice(f.waiters, func(i, j int) bool { return f.waiters[i].at.Before(f.waiters[j].at) })
	return ch
}

// Sleep never blocks: it records d and advances the clock.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mx.Lock()
	f.Slept = append(f.Slept, d)
	hook := f.OnSleep
	f.mx.Unlock()
	f.Advance(d)
	if hook != nil {
		hook(d)
	}
	return nil
}

// Advance moves the clock forward and fires due timers.
func (f *Fake) Advance(d time.Duration) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.now = f.now.Add(d)
	keep := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.at.After(f.now) {
			w.ch <- f.now
			continue
		}
		keep = append(keep, w)
	}
	f.waiters = keep
}
