// Package netprobe answers point-in-time questions about TCP ports:
// whether host:port is currently occupied, and which processes hold it.
package netprobe

import (
	"net"
	"strconv"
	"time"
)

// DefaultProbeTimeout bounds a single occupancy probe. The probe is a
// point-in-time check, not a wait, so one short attempt is enough.
const DefaultProbeTimeout = time.Second

// Occupied reports whether something is actively accepting connections on
// host:port at the instant of the probe. Connect failure or timeout counts
// as free.
func Occupied(host string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
