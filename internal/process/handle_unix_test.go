//go:build !windows

package process

import (
	"testing"
	"time"
)

func TestSpawnAndStop(t *testing.T) {
	h, err := Spawn(Spec{Name: "sleeper", Command: "sleep 30"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if h.PID() <= 0 {
		t.Fatalf("expected positive pid, got %d", h.PID())
	}
	if !h.Alive() {
		t.Fatalf("process should be alive right after spawn")
	}

	h.Stop(2 * time.Second)
	select {
	case <-h.WaitDone():
	case <-time.After(3 * time.Second):
		t.Fatalf("process not reaped after Stop")
	}
	if h.Alive() {
		t.Fatalf("process still alive after Stop")
	}
}

func TestStopKillsDescendants(t *testing.T) {
	// The shell forks a grandchild; killing the group must reach it too.
	h, err := Spawn(Spec{Name: "tree", Command: "sh -c 'sleep 30 & wait'"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	pid := h.PID()
	time.Sleep(100 * time.Millisecond)

	h.Stop(2 * time.Second)
	select {
	case <-h.WaitDone():
	case <-time.After(3 * time.Second):
		t.Fatalf("shell not reaped after Stop")
	}
	// The whole group was signaled; nothing should answer on the group id.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if killGroup(pid, 0) != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("process group %d still alive after Stop", pid)
}

func TestStopIdempotent(t *testing.T) {
	h, err := Spawn(Spec{Name: "idem", Command: "sleep 30"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	h.Stop(time.Second)
	h.Stop(time.Second) // second call is a no-op
	if h.Alive() {
		t.Fatalf("process alive after double Stop")
	}
}

func TestSelfExit(t *testing.T) {
	h, err := Spawn(Spec{Name: "quick", Command: "true"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	select {
	case <-h.WaitDone():
	case <-time.After(3 * time.Second):
		t.Fatalf("quick-exit process never reaped")
	}
	if h.Alive() {
		t.Fatalf("exited process reported alive")
	}
	if h.ExitErr() != nil {
		t.Fatalf("true should exit cleanly, got %v", h.ExitErr())
	}
	// Stop after self-exit must be a harmless no-op.
	h.Stop(time.Second)
}

func TestSpawnBadWorkDir(t *testing.T) {
	_, err := Spawn(Spec{Name: "bad", Command: "sleep 1", WorkDir: "/nonexistent-dir-devserver"})
	if err == nil {
		t.Fatalf("expected spawn failure for bad workdir")
	}
}
