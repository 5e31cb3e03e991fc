package process

import (
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"
)

// killDrainTimeout bounds the wait for cmd.Wait to return after SIGKILL.
// SIGKILL cannot be caught, so this should never fire; it is a safety net
// against stuck I/O.
const killDrainTimeout = 200 * time.Millisecond

// stdoutPrefix labels mirrored server output in the controller's stream.
func stdoutPrefix(name string) string {
	if name == "" {
		return "[devserver] "
	}
	return fmt.Sprintf("[devserver:%s] ", name)
}

// Handle wraps one spawned server process and owns termination of the whole
// process tree it rooted. Two independent triggers tear the tree down: the
// child's own exit (observed by the monitor goroutine) and the controller's
// signal-induced exit (observed by the shared reaper). Stop removes both
// before killing so a self-triggered kill cannot re-enter cleanup.
type Handle struct {
	name string

	mu       sync.Mutex
	cmd      *child
	waitDone chan struct{}
	exitErr  error
	exited   bool
	closers  []io.Closer
	prefix   *prefixWriter
	stopOnce sync.Once
}

// child is a minimal view of *exec.Cmd kept behind the mutex.
type child struct {
	pid  int
	wait func() error
}

// Spawn starts the command described by spec. The child's stderr is always
// mirrored to the controller's stderr; stdout is mirrored line-prefixed when
// spec.Debug is set. Optional rotating file capture applies to both streams.
func Spawn(spec Spec) (*Handle, error) {
	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(spec.Env) > 0 {
		cmd.Env = spec.Env
	}
	configureSysProcAttr(cmd)

	h := &Handle{name: spec.Name, waitDone: make(chan struct{})}

	fileOut, fileErr, _ := spec.Log.Writers(spec.Name)
	if fileOut != nil {
		h.closers = append(h.closers, fileOut)
	}
	if fileErr != nil {
		h.closers = append(h.closers, fileErr)
	}

	// stderr: always mirrored to the controller.
	if fileErr != nil {
		cmd.Stderr = io.MultiWriter(os.Stderr, fileErr)
	} else {
		cmd.Stderr = os.Stderr
	}

	// stdout: mirrored through the prefix writer only in debug mode.
	switch {
	case spec.Debug && fileOut != nil:
		h.prefix = newPrefixWriter(os.Stdout, stdoutPrefix(spec.Name))
		cmd.Stdout = io.MultiWriter(h.prefix, fileOut)
	case spec.Debug:
		h.prefix = newPrefixWriter(os.Stdout, stdoutPrefix(spec.Name))
		cmd.Stdout = h.prefix
	case fileOut != nil:
		cmd.Stdout = fileOut
	default:
		null, _ := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		cmd.Stdout = null
		if null != nil {
			h.closers = append(h.closers, null)
		}
	}

	if err := cmd.Start(); err != nil {
		h.closeWriters()
		return nil, fmt.Errorf("spawn %q: %w", spec.Command, err)
	}
	h.cmd = &child{pid: cmd.Process.Pid, wait: cmd.Wait}

	defaultReaper.register(h)
	go h.monitor()
	return h, nil
}

// Name returns the server label the handle was spawned under.
func (h *Handle) Name() string { return h.name }

// PID returns the direct child's process id.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd == nil {
		return 0
	}
	return h.cmd.pid
}

// WaitDone returns a channel closed once the direct child has been reaped.
func (h *Handle) WaitDone() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitDone
}

// ExitErr returns the child's exit error after WaitDone is closed.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Alive probes liveness avoiding races with os/exec internals.
func (h *Handle) Alive() bool {
	h.mu.Lock()
	cmd := h.cmd
	exited := h.exited
	h.mu.Unlock()
	if cmd == nil || exited {
		return false
	}
	if isZombie(cmd.pid) {
		return false
	}
	return pidAlive(cmd.pid)
}

// monitor owns the single cmd.Wait call. When the child exits on its own it
// also sweeps any descendants it left behind, so the tree never outlives the
// direct child.
func (h *Handle) monitor() {
	h.mu.Lock()
	cmd := h.cmd
	h.mu.Unlock()

	err := cmd.wait()

	h.mu.Lock()
	h.exitErr = err
	h.exited = true
	close(h.waitDone)
	h.mu.Unlock()

	_ = killGroup(cmd.pid, syscall.SIGKILL)
	defaultReaper.unregister(h)
	h.closeWriters()
}

// Stop terminates the process group rooted at the child: SIGTERM, then
// SIGKILL after wait. It is idempotent and best-effort; kill errors (process
// already gone) are swallowed. Both teardown triggers are unregistered before
// the kill.
func (h *Handle) Stop(wait time.Duration) {
	h.stopOnce.Do(func() {
		defaultReaper.unregister(h)

		h.mu.Lock()
		cmd := h.cmd
		exited := h.exited
		done := h.waitDone
		h.mu.Unlock()
		if cmd == nil || exited {
			return
		}

		_ = killGroup(cmd.pid, syscall.SIGTERM)
		select {
		case <-done:
			return
		case <-time.After(wait):
		}
		_ = killGroup(cmd.pid, syscall.SIGKILL)
		select {
		case <-done:
		case <-time.After(killDrainTimeout):
			// best-effort
		}
	})
}

func (h *Handle) closeWriters() {
	h.mu.Lock()
	closers := h.closers
	prefix := h.prefix
	h.closers = nil
	h.mu.Unlock()
	if prefix != nil {
		_ = prefix.Flush()
	}
	for _, c := range closers {
		_ = c.Close()
	}
}
