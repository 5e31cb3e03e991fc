//go:build !windows

package netprobe

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ProcInfo identifies one process bound to a port.
type ProcInfo struct {
	PID  int
	Name string
}

// FindByPort returns the processes currently listening on the TCP port.
// An empty slice with nil error means nothing was found.
func FindByPort(port int) ([]ProcInfo, error) {
	// lsof exits non-zero when nothing matches; treat that as empty.
	// #nosec G204 -- port is a validated integer
	out, err := exec.Command("lsof", "-ti", fmt.Sprintf("tcp:%d", port), "-sTCP:LISTEN").Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("lsof on port %d: %w", port, err)
	}
	var procs []ProcInfo
	for _, line := range strings.Fields(strings.TrimSpace(string(out))) {
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		procs = append(procs, ProcInfo{PID: pid, Name: processName(pid)})
	}
	return procs, nil
}

// processName resolves a best-effort command name for pid.
func processName(pid int) string {
	if b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/comm"); err == nil {
		return strings.TrimSpace(string(b))
	}
	// #nosec G204 -- pid is a validated integer
	if out, err := exec.Command("ps", "-o", "comm=", "-p", strconv.Itoa(pid)).Output(); err == nil {
		return strings.TrimSpace(string(out))
	}
	return ""
}

// KillByPort terminates every process listening on the TCP port: SIGTERM
// first, escalating to SIGKILL for any process still alive after wait.
// Processes that disappear on their own are not an error.
func KillByPort(port int, wait time.Duration) error {
	procs, err := FindByPort(port)
	if err != nil {
		return err
	}
	if len(procs) == 0 {
		return nil
	}
	for _, p := range procs {
		_ = syscall.Kill(p.PID, syscall.SIGTERM)
	}
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if !anyAlive(procs) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	for _, p := range procs {
		if pidAlive(p.PID) {
			_ = syscall.Kill(p.PID, syscall.SIGKILL)
		}
	}
	return nil
}

func anyAlive(procs []ProcInfo) bool {
	for _, p := range procs {
		if pidAlive(p.PID) {
			return true
		}
	}
	return false
}

// pidAlive treats EPERM as alive: the process exists but belongs to another user.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
