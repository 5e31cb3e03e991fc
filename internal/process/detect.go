package process

import (
	"bytes"
	"os"
	"runtime"
	"strconv"
)

// isZombie reports whether /proc/<pid>/status shows a zombie state on Linux.
// A quickly-exiting child that has not been reaped yet must not count as
// alive. Non-Linux platforms have no /proc; they report false.
func isZombie(pid int) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
