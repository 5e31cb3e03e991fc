package process

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// reaper is the controller-exit trigger shared by all handles. The first
// registration installs a signal handler; if the controlling process is
// interrupted (Ctrl-C, TERM, HUP) every registered process tree is killed
// before the controller exits with the conventional 128+signal code, so an
// interrupted test run never leaves a detached server behind.
//
// A graceful shutdown function may be installed with RegisterShutdown; it
// runs before the kill sweep so an orderly teardown (SIGTERM grace, post
// command) gets its turn. The sweep afterwards only finds whatever the
// teardown missed.
type reaper struct {
	mu       sync.Mutex
	handles  map[*Handle]struct{}
	shutdown func(sig os.Signal)
	once     sync.Once

	// exit is swappable for tests; defaults to os.Exit.
	exit func(code int)
}

var defaultReaper = &reaper{
	handles: make(map[*Handle]struct{}),
	exit:    os.Exit,
}

// RegisterShutdown installs fn to run once when the controller receives a
// termination signal, before the registered process groups are killed and
// the controller exits. Arming is immediate, so a signal arriving before the
// first spawn still runs fn.
func RegisterShutdown(fn func(sig os.Signal)) {
	defaultReaper.setShutdown(fn)
}

func (r *reaper) register(h *Handle) {
	r.once.Do(r.start)
	r.mu.Lock()
	r.handles[h] = struct{}{}
	r.mu.Unlock()
}

func (r *reaper) unregister(h *Handle) {
	r.mu.Lock()
	delete(r.handles, h)
	r.mu.Unlock()
}

func (r *reaper) setShutdown(fn func(sig os.Signal)) {
	r.once.Do(r.start)
	r.mu.Lock()
	r.shutdown = fn
	r.mu.Unlock()
}

func (r *reaper) start() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-ch
		signal.Stop(ch)
		r.handleSignal(sig)
	}()
}

// handleSignal runs the shutdown function when one is installed, sweeps any
// process group still registered, and exits 128+signal.
func (r *reaper) handleSignal(sig os.Signal) {
	r.mu.Lock()
	shutdown := r.shutdown
	r.mu.Unlock()
	if shutdown != nil {
		shutdown(sig)
	}
	r.killAll()
	code := 1
	if s, ok := sig.(syscall.Signal); ok {
		code = 128 + int(s)
	}
	r.exit(code)
}

// killAll SIGKILLs every registered process group. There is no grace period:
// the controller is going down now.
func (r *reaper) killAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for h := range r.handles {
		handles = append(handles, h)
	}
	r.handles = make(map[*Handle]struct{})
	r.mu.Unlock()
	for _, h := range handles {
		if pid := h.PID(); pid > 0 {
			_ = killGroup(pid, syscall.SIGKILL)
		}
	}
}
