package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CZERTAINLY/osal/internal/command"
	"github.com/CZERTAINLY/osal/internal/model"
)

// Allowlist restricts command strings to a fixed set of names, each
// bound to one binary and its arguments. Anything else is rejected with
// NOT_EXECUTABLE before a process is created. Registered functions pass
// through unchanged.
type Allowlist struct {
	next    Executor
	entries map[string]model.AllowEntry
}

func NewAllowlist(next Executor, entries []model.AllowEntry) *Allowlist {
	m := make(map[string]model.AllowEntry, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return &Allowlist{next: next, entries: m}
}

func (a *Allowlist) Run(ctx context.Context, req model.RunRequest) (model.RunResult, error) {
	if err := req.Validate(); err != nil {
		return model.RunResult{Status: model.StatusBadParameter}, err
	}
	if req.Func != "" {
		return a.next.Run(ctx, req)
	}
	name := strings.TrimSpace(req.Command)
	entry, ok := a.entries[name]
	if !ok {
		slog.WarnContext(ctx, "command rejected by allowlist", "command", name)
		return model.RunResult{Status: model.StatusNotExecutable},
			fmt.Errorf("command %q is not on the allowlist: %w", name, model.ErrNotExecutable)
	}
	words := make([]string, 0, len(entry.Args)+1)
	for _, w := range append([]string{entry.Path}, entry.Args...) {
		words = append(words, command.Quote(w))
	}
	req.Command = strings.Join(words, " ")
	return a.next.Run(ctx, req)
}
