//go:build windows

package netprobe

import (
	"errors"
	"time"
)

type ProcInfo struct {
	PID  int
	Name string
}

var errUnsupported = errors.New("process-by-port lookup is not supported on windows")

func FindByPort(port int) ([]ProcInfo, error) { return nil, errUnsupported }

func KillByPort(port int, wait time.Duration) error { return errUnsupported }
