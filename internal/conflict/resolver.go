// Package conflict decides what happens when a server's port is already
// taken before spawn.
package conflict

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/devserver/internal/netprobe"
	"github.com/loykin/devserver/internal/prompt"
)

// Action is the resolver's verdict for one occupied port.
type Action uint8

const (
	// ActionSpawn means the port is (or has been made) free; launch the server.
	ActionSpawn Action = iota
	// ActionSkipSpawn means an existing occupant is adopted; do not launch,
	// but still wait for readiness.
	ActionSkipSpawn
	// ActionAbort means setup for this server must fail.
	ActionAbort
)

// PortInUseError is returned under the error policy.
type PortInUseError struct {
	Name string
	Port int
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("port %d required by %q is already in use", e.Port, e.Name)
}

// DefaultKillWait bounds how long Resolve waits for an evicted occupant to die.
const DefaultKillWait = 5 * time.Second

// Resolver applies a Policy to an occupied port. The collaborators default to
// the real prompt, lsof lookup, and kill implementations; tests swap them.
type Resolver struct {
	Logger   *slog.Logger
	Confirm  func(question string) (bool, error)
	Find     func(port int) ([]netprobe.ProcInfo, error)
	Kill     func(port int, wait time.Duration) error
	Fatal    func(code int) // invoked when the operator declines under ask
	KillWait time.Duration
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Resolve is called only when the port probe found an occupant. It returns
// the action setup should take; ActionAbort carries a non-nil error.
func (r *Resolver) Resolve(policy Policy, name string, port int) (Action, error) {
	log := r.logger().With("server", name, "port", port)
	switch policy {
	case PolicyError:
		return ActionAbort, &PortInUseError{Name: name, Port: port}
	case PolicyIgnore:
		log.Info("port already in use, adopting existing process")
		return ActionSkipSpawn, nil
	case PolicyKill:
		return r.evict(log, name, port)
	case PolicyAsk:
		return r.ask(log, name, port)
	}
	return ActionAbort, fmt.Errorf("unhandled conflict policy %q", policy)
}

func (r *Resolver) ask(log *slog.Logger, name string, port int) (Action, error) {
	confirm := r.Confirm
	if confirm == nil {
		confirm = prompt.Confirm
	}
	occupants := r.describe(port)
	q := fmt.Sprintf("Port %d needed by %q is in use%s. Kill the process using it?", port, name, occupants)
	yes, err := confirm(q)
	if err != nil {
		return ActionAbort, fmt.Errorf("prompt for port %d: %w", port, err)
	}
	if !yes {
		// Declining is terminal for the whole run, not just this server.
		log.Error("port conflict unresolved, operator declined to kill occupant")
		fatal := r.Fatal
		if fatal == nil {
			fatal = os.Exit
		}
		fatal(1)
		return ActionAbort, &PortInUseError{Name: name, Port: port}
	}
	return r.evict(log, name, port)
}

func (r *Resolver) evict(log *slog.Logger, name string, port int) (Action, error) {
	find := r.Find
	if find == nil {
		find = netprobe.FindByPort
	}
	kill := r.Kill
	if kill == nil {
		kill = netprobe.KillByPort
	}
	wait := r.KillWait
	if wait <= 0 {
		wait = DefaultKillWait
	}
	if procs, err := find(port); err == nil {
		for _, p := range procs {
			log.Info("killing process holding port", "pid", p.PID, "process", p.Name)
		}
	}
	if err := kill(port, wait); err != nil {
		return ActionAbort, fmt.Errorf("evict occupant of port %d for %q: %w", port, name, err)
	}
	return ActionSpawn, nil
}

// describe renders the port's occupants for the prompt text, best effort.
func (r *Resolver) describe(port int) string {
	find := r.Find
	if find == nil {
		find = netprobe.FindByPort
	}
	procs, err := find(port)
	if err != nil || len(procs) == 0 {
		return ""
	}
	s := " by"
	for i, p := range procs {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf(" %s (pid %d)", p.Name, p.PID)
	}
	return s
}
