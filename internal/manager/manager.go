// Package manager orchestrates server lifecycles around one test session:
// conflict check, spawn, readiness wait, and guaranteed teardown.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loykin/devserver/internal/conflict"
	"github.com/loykin/devserver/internal/env"
	"github.com/loykin/devserver/internal/history"
	"github.com/loykin/devserver/internal/metrics"
	"github.com/loykin/devserver/internal/netprobe"
	"github.com/loykin/devserver/internal/process"
	"github.com/loykin/devserver/internal/readiness"
)

// DefaultStopWait is the SIGTERM grace period before escalating to SIGKILL.
const DefaultStopWait = 5 * time.Second

// historySendTimeout bounds one best-effort sink write.
const historySendTimeout = 2 * time.Second

// Managed is one registry entry: a process this session spawned and owns.
// Only actually spawned processes are tracked; an occupant adopted under the
// ignore policy never enters the registry.
type Managed struct {
	Index    int
	Name     string
	Port     int
	Resource string
	Handle   *process.Handle
}

// Status is a read-only snapshot row of the registry.
type Status struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	PID      int    `json:"pid"`
	Port     int    `json:"port,omitempty"`
	Resource string `json:"resource,omitempty"`
	Alive    bool   `json:"alive"`
}

// Options configures a Manager. Every field is optional.
type Options struct {
	Logger   *slog.Logger
	Env      *env.Env
	Sink     history.Sink        // lifecycle event export, best-effort
	Resolver *conflict.Resolver  // port conflict handling
	Probe    readiness.ProbeFunc // readiness probe override, mainly for tests
	StopWait time.Duration       // SIGTERM grace before SIGKILL; DefaultStopWait when zero

	// Occupied reports whether host:port currently accepts connections.
	// Swapped in tests.
	Occupied func(host string, port int, timeout time.Duration) bool
}

// Manager owns the registry of managed processes for one session. Create one
// per test session; there is no process-global registry.
type Manager struct {
	log      *slog.Logger
	env      *env.Env
	sink     history.Sink
	resolver *conflict.Resolver
	probe    readiness.ProbeFunc
	stopWait time.Duration
	occupied func(host string, port int, timeout time.Duration) bool

	mu      sync.Mutex
	entries map[int]*Managed
	next    int
}

func New(opts Options) *Manager {
	m := &Manager{
		log:      opts.Logger,
		env:      opts.Env,
		sink:     opts.Sink,
		resolver: opts.Resolver,
		probe:    opts.Probe,
		stopWait: opts.StopWait,
		occupied: opts.Occupied,
		entries:  make(map[int]*Managed),
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.env == nil {
		m.env = env.New()
	}
	if m.resolver == nil {
		m.resolver = &conflict.Resolver{Logger: m.log}
	}
	if m.stopWait <= 0 {
		m.stopWait = DefaultStopWait
	}
	if m.occupied == nil {
		m.occupied = netprobe.Occupied
	}
	return m
}

// Env exposes the session environment for global overrides before Setup.
func (m *Manager) Env() *env.Env { return m.env }

// Setup drives every spec through the per-entry state machine concurrently:
// conflict check, spawn or skip, readiness wait. Entries run independently to
// their own completion; the first error observed is returned after all entries
// have finished. Indices continue across calls.
func (m *Manager) Setup(ctx context.Context, specs ...Spec) error {
	m.mu.Lock()
	base := m.next
	m.next += len(specs)
	m.mu.Unlock()

	var g errgroup.Group
	for i, s := range specs {
		index := base + i
		spec := s
		g.Go(func() error {
			return m.setupOne(ctx, index, spec)
		})
	}
	return g.Wait()
}

func (m *Manager) setupOne(ctx context.Context, index int, spec Spec) error {
	r, err := spec.resolve(index)
	if err != nil {
		m.fail(index, r.Name, spec.Port, "", err)
		return err
	}
	log := m.log.With("server", r.Name, "index", index)

	spawn := true
	if r.Port > 0 && m.occupied(r.Host, r.Port, netprobe.DefaultProbeTimeout) {
		metrics.IncConflict(r.policy.String())
		action, rerr := m.resolver.Resolve(r.policy, r.Name, r.Port)
		switch {
		case rerr != nil:
			err = fmt.Errorf("entry %d (%s): %w", index, r.Name, rerr)
			m.fail(index, r.Name, r.Port, "", err)
			return err
		case action == conflict.ActionSkipSpawn:
			spawn = false
		}
	}

	var h *process.Handle
	if spawn {
		h, err = process.Spawn(process.Spec{
			Name:    r.Name,
			Command: r.Command,
			WorkDir: r.WorkDir,
			Env:     m.env.Merge(r.Env),
			Debug:   r.Debug,
			Log:     r.Log,
		})
		if err != nil {
			err = fmt.Errorf("entry %d (%s): %w", index, r.Name, err)
			m.fail(index, r.Name, r.Port, "", err)
			return err
		}
		entry := &Managed{Index: index, Name: r.Name, Port: r.Port, Handle: h}
		if r.Port > 0 {
			entry.Resource = r.proto.Resource(r.Host, r.Port, r.BasePath)
		}
		m.track(entry)
		log.Debug("spawned", "pid", h.PID(), "command", r.Command)
		m.emit(history.Event{Type: history.EventSpawned, Server: r.Name, Index: index, PID: h.PID(), Port: r.Port})
	}

	// No port means no reachability expectation: ready at spawn.
	if r.Port == 0 {
		log.Info("server ready", "probe", "none")
		metrics.IncLaunch(r.Name, "ready")
		m.emit(history.Event{Type: history.EventReady, Server: r.Name, Index: index, PID: h.PID()})
		return nil
	}

	resource := r.proto.Resource(r.Host, r.Port, r.BasePath)
	waiter := &readiness.Waiter{
		Logger: log,
		Probe:  m.probe,
		KillOnTimeout: func(port int) {
			if kerr := netprobe.KillByPort(port, m.stopWait); kerr != nil {
				log.Warn("kill after readiness timeout failed", "port", port, "error", kerr)
			}
		},
	}
	start := time.Now()
	err = waiter.Wait(ctx, r.proto, r.Host, r.Port, r.BasePath, r.opts)
	metrics.ObserveReadinessWait(r.Name, time.Since(start).Seconds())
	if err != nil {
		if h != nil {
			h.Stop(m.stopWait)
			m.untrack(index)
		}
		err = fmt.Errorf("entry %d (%s): %w", index, r.Name, err)
		m.fail(index, r.Name, r.Port, resource, err)
		return err
	}

	log.Info("server ready", "resource", resource)
	if spawn {
		metrics.IncLaunch(r.Name, "ready")
		m.emit(history.Event{Type: history.EventReady, Server: r.Name, Index: index, PID: h.PID(), Port: r.Port, Resource: resource})
	} else {
		metrics.IncLaunch(r.Name, "skipped")
		m.emit(history.Event{Type: history.EventAdopted, Server: r.Name, Index: index, Port: r.Port, Resource: resource})
	}
	return nil
}

// fail records one entry-level setup failure in metrics and history.
func (m *Manager) fail(index int, name string, port int, resource string, err error) {
	metrics.IncLaunch(name, "failed")
	m.emit(history.Event{Type: history.EventFailed, Server: name, Index: index, Port: port, Resource: resource, Detail: err.Error()})
}

// Snapshot returns the registry contents ordered by index.
func (m *Manager) Snapshot() []Status {
	m.mu.Lock()
	entries := make([]*Managed, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		out = append(out, Status{
			Index:    e.Index,
			Name:     e.Name,
			PID:      e.Handle.PID(),
			Port:     e.Port,
			Resource: e.Resource,
			Alive:    e.Handle.Alive(),
		})
	}
	return out
}

// Teardown stops every registered process in parallel, best-effort: kill
// failures are logged, never propagated. It is idempotent; a second call finds
// an empty registry and does nothing. When postCmd is non-empty it runs after
// the stops; its failure is logged only.
func (m *Manager) Teardown(ctx context.Context, postCmd string) {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[int]*Managed)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *Managed) {
			defer wg.Done()
			pid := e.Handle.PID()
			e.Handle.Stop(m.stopWait)
			metrics.IncTeardownKill(e.Name)
			m.log.Debug("stopped", "server", e.Name, "pid", pid)
			m.emit(history.Event{Type: history.EventStopped, Server: e.Name, Index: e.Index, PID: pid, Port: e.Port})
		}(e)
	}
	wg.Wait()
	metrics.SetManagedProcesses(0)

	if postCmd != "" {
		m.runPostCommand(ctx, postCmd)
	}
}

// runPostCommand executes the optional cleanup command synchronously and logs
// a failure without surfacing it.
func (m *Manager) runPostCommand(ctx context.Context, command string) {
	spec := process.Spec{Name: "post-teardown", Command: command, Env: m.env.Merge(nil)}
	cmd := spec.BuildCommand()
	if err := cmd.Start(); err != nil {
		m.log.Warn("post-teardown command failed to start", "command", command, "error", err)
		return
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			m.log.Warn("post-teardown command failed", "command", command, "error", err)
		}
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		m.log.Warn("post-teardown command cancelled", "command", command)
	}
}

func (m *Manager) track(e *Managed) {
	m.mu.Lock()
	m.entries[e.Index] = e
	n := len(m.entries)
	m.mu.Unlock()
	metrics.SetManagedProcesses(n)
}

func (m *Manager) untrack(index int) {
	m.mu.Lock()
	delete(m.entries, index)
	n := len(m.entries)
	m.mu.Unlock()
	metrics.SetManagedProcesses(n)
}

// emit sends one lifecycle event to the configured sink, best-effort.
func (m *Manager) emit(e history.Event) {
	if m.sink == nil {
		return
	}
	e.OccurredAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), historySendTimeout)
	defer cancel()
	if err := m.sink.Send(ctx, e); err != nil {
		m.log.Debug("history sink send failed", "event", string(e.Type), "error", err)
	}
}
