package process

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/CZERTAINLY/osal/internal/clock"
	"github.com/CZERTAINLY/osal/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	stdout = iota
	stderr
)

// boundedWriter keeps the first len(buf)-1 bytes written and silently
// discards the rest, so the child is never blocked on a full pipe.
type boundedWriter struct {
	mx     sync.Mutex
	buf    []byte
	n      int
	sealed bool
}

func newBoundedWriter(buf []byte) *boundedWriter {
	buf[0] = 0
	return &boundedWriter{buf: buf}
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	w.mx.Lock()
	defer w.mx.Unlock()
	if w.sealed {
		return len(p), nil
	}
	room := len(w.buf) - 1 - w.n
	if room > 0 {
		w.n += copy(w.buf[w.n:w.n+min(room, len(p))], p)
	}
	return len(p), nil
}

// seal NUL-terminates the buffer and returns the count of kept bytes.
// Later writes are dropped.
func (w *boundedWriter) seal() int {
	w.mx.Lock()
	defer w.mx.Unlock()
	w.sealed = true
	w.buf[w.n] = 0
	return w.n
}

// channel is the output capture channel of one invocation. It owns the
// pipe ends it creates and Close releases all of them.
type channel struct {
	child   [2]*os.File
	readers [2]*os.File
	writers [2]*os.File
	bounded [2]*boundedWriter
	done    chan struct{}
	err     error
}

// openChannel creates a pipe for every buffer sink of a blocking request.
// File sinks are handed to the child as they are. Buffers of a
// fire-and-forget request are never read, so no pipe is created for them.
func openChannel(req model.RunRequest) (*channel, error) {
	c := &channel{}
	for idx, sink := range [2]*model.Sink{req.Stdout, req.Stderr} {
		switch {
		case sink == nil:
			continue
		case sink.File != nil:
			c.child[idx] = sink.File
		case req.Block && sink.Captures():
			r, w, err := os.Pipe()
			if err != nil {
				c.Close()
				return nil, err
			}
			c.readers[idx], c.writers[idx] = r, w
			c.child[idx] = w
			c.bounded[idx] = newBoundedWriter(sink.Buf)
		}
	}
	return c, nil
}

// attach points the child's stdout and stderr at the channel. A stream
// without a sink goes to the null device.
func (c *channel) attach(cmd *exec.Cmd) {
	if c.child[stdout] != nil {
		cmd.Stdout = c.child[stdout]
	}
	if c.child[stderr] != nil {
		cmd.Stderr = c.child[stderr]
	}
}

// closeWriteEnds drops the parent's copies of the write ends once the
// child owns them, so readers see EOF when the child exits.
func (c *channel) closeWriteEnds() {
	for i, w := range c.writers {
		if w != nil {
			_ = w.Close()
			c.writers[i] = nil
		}
	}
}

// drain copies every read end into its bounded buffer in the background.
func (c *channel) drain(ctx context.Context) {
	var g errgroup.Group
	for idx, r := range c.readers {
		if r == nil {
			continue
		}
		w := c.bounded[idx]
		g.Go(func() error {
			_, err := io.Copy(w, r)
			if errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		})
	}
	c.done = make(chan struct{})
	go func() {
		c.err = g.Wait()
		if c.err != nil {
			slog.DebugContext(ctx, "reading child output", "error", c.err)
		}
		close(c.done)
	}()
}

// finish waits up to delay for the readers to reach EOF. Descendants of
// the child may keep a write end open after it exited; the read ends
// are closed then and whatever was captured so far is kept.
// It returns the byte counts of stdout and stderr.
func (c *channel) finish(ctx context.Context, clk clock.Clock, delay time.Duration) (int, int) {
	if c.done != nil {
		select {
		case <-c.done:
		case <-clk.After(delay):
			slog.DebugContext(ctx, "output still open after exit: closing read ends")
			c.closeReaders()
			select {
			case <-c.done:
			case <-clk.After(delay):
				slog.WarnContext(ctx, "output readers did not stop: abandoning them")
			}
		}
	}
	var counts [2]int
	for idx, w := range c.bounded {
		if w != nil {
			counts[idx] = w.seal()
		}
	}
	return counts[stdout], counts[stderr]
}

func (c *channel) closeReaders() {
	for i, r := range c.readers {
		if r != nil {
			_ = r.Close()
			c.readers[i] = nil
		}
	}
}

// Close releases every pipe end still held, it is safe to call twice.
func (c *channel) Close() {
	c.closeWriteEnds()
	c.closeReaders()
	for _, w := range c.bounded {
		if w != nil {
			w.seal()
		}
	}
}
