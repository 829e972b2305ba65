// Package service is the service control facade.
//
// Overview
// Manager exposes install, uninstall, start, stop, restart and query of
// an OS service identified by a ServiceDescriptor. Each platform gets
// its own strategy, NewManager picks one from the configured backend or,
// for "auto", from the platform the binary was built for:
//
//	linux     Systemctl    systemctl <verb> <id> through process.Executor
//	linux     SystemdDBus  go-systemd dbus jobs (backend "dbus")
//	android   Android      start/stop, `ps | grep` and kill -9
//	windows   SCM          golang.org/x/sys/windows/svc/mgr
//	other     Unsupported  NOT_SUPPORTED after validation
//
// Data flow of a command-driven strategy:
//
//	Manager.Stop(d)        shell                  process.Executor
//	     |                    |                          |
//	     | Validate(d)        |                          |
//	     | status <id> ------>| Run(Block, Privileged) ->| sudo systemctl status id
//	     |<----- exit code ---|<------ RunResult --------|
//	     | stop <id> -------->| ...                      |
//
// Invariants:
//   - A descriptor whose id is empty or contains / or \ is rejected with
//     BAD_PARAMETER before anything is executed.
//   - Nothing is cached, every call resolves the service again.
//   - Commands of one operation share the descriptor timeout.
//   - Executor errors surface as FAILURE, a timeout as TIMED_OUT.
//
// Watchdog runs Query on a gocron schedule and Restart for services that
// are not running.
package service
