// Package process implements external command execution.
//
// Overview
// The Invoker composes a model.RunRequest into a program and arguments
// (package command), creates the output capture channel, spawns the
// child and, for blocking requests, supervises it until it exits or its
// time budget runs out.
//
// Data flow:
//
//	caller         Invoker.Run                 child
//	  |  request ----> Compose                    |
//	  |                openChannel (os.Pipe) ---->| stdout/stderr write ends
//	  |                Start ------------------->| new session / process group
//	  |                drain (errgroup) <--------| output
//	  |                supervise: exit | MaxWait | ctx.Done
//	  |                  timeout: SIGTERM group, SIGKILL after KillGrace, reap
//	  |                finish: NUL-terminate, close every pipe end
//	  |<--- RunResult
//
// Invariants:
//   - Pipes are created before the spawn, the wait precedes the final
//     drain, and every pipe end is closed on every return path.
//   - Output is read while the child runs and anything beyond the
//     buffer capacity is discarded, a verbose child cannot block on a
//     full pipe.
//   - A blocking call returns only after the child has been reaped.
//   - MaxWait == 0 never yields TIMED_OUT.
//   - A fire-and-forget call returns INVOKED and the child is reaped in
//     the background.
//
// Functions are run as processes with package reexec; the binary must
// call reexec.Init first thing in main.
package process
