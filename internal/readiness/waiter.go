// Package readiness polls a server's network resource until it is reachable
// or a deadline elapses.
package readiness

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Poll defaults. LaunchTimeout is the overall default used when a server
// entry does not override it.
const (
	DefaultInterval = 250 * time.Millisecond
	DefaultWindow   = 750 * time.Millisecond
	DefaultTimeout  = 5000 * time.Millisecond
)

// ErrTimeout is the sentinel matched by errors.Is for readiness timeouts.
var ErrTimeout = errors.New("server not reachable within launch timeout")

// TimeoutError carries the resource and the deadline that was exceeded.
type TimeoutError struct {
	Resource string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s not reachable within %s", e.Resource, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Options tunes one readiness wait. Zero values select the defaults above;
// a negative Window disables stabilization.
type Options struct {
	Delay    time.Duration `json:"delay" mapstructure:"delay"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
	Window   time.Duration `json:"window" mapstructure:"window"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Window == 0 {
		o.Window = DefaultWindow
	}
	if o.Window < 0 {
		o.Window = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// ProbeFunc is one point-in-time reachability check.
type ProbeFunc func(ctx context.Context, proto Protocol, host string, port int, basePath string) bool

// Waiter polls a resource until it stays reachable for the stabilization
// window or the timeout elapses. On timeout it invokes KillOnTimeout (when
// set) so a half-started server does not survive its failed launch.
type Waiter struct {
	Logger        *slog.Logger
	Probe         ProbeFunc     // nil selects the built-in prober
	KillOnTimeout func(port int) // best-effort cleanup before surfacing the timeout
}

// Wait blocks until the resource is ready or the deadline passes.
// A nil return means ready; a timeout returns *TimeoutError. A cancelled
// caller context is returned as-is, without the kill-on-timeout cleanup:
// cancellation is the caller giving up, not the server failing to launch.
func (w *Waiter) Wait(ctx context.Context, proto Protocol, host string, port int, basePath string, opts Options) error {
	opts = opts.withDefaults()
	resource := proto.Resource(host, port, basePath)
	log := w.Logger
	if log == nil {
		log = slog.Default()
	}
	probe := w.Probe
	if probe == nil {
		probe = defaultProbe
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(parent, opts.Timeout)
	defer cancel()

	if opts.Delay > 0 {
		select {
		case <-time.After(opts.Delay):
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return err
			}
			return w.timedOut(resource, port, opts)
		}
	}

	var stableSince time.Time
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	attempt := 0
	for {
		attempt++
		if probe(ctx, proto, host, port, basePath) {
			now := time.Now()
			if stableSince.IsZero() {
				stableSince = now
			}
			if now.Sub(stableSince) >= opts.Window {
				log.Debug("server ready", "resource", resource, "attempt", attempt)
				return nil
			}
		} else {
			stableSince = time.Time{}
		}
		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return err
			}
			return w.timedOut(resource, port, opts)
		case <-ticker.C:
		}
	}
}

func (w *Waiter) timedOut(resource string, port int, opts Options) error {
	if w.KillOnTimeout != nil {
		w.KillOnTimeout(port)
	}
	return &TimeoutError{Resource: resource, Timeout: opts.Timeout}
}

// defaultProbe dials raw TCP or issues an HTTP request depending on protocol.
func defaultProbe(ctx context.Context, proto Protocol, host string, port int, basePath string) bool {
	if proto.httpFamily() {
		return probeHTTP(ctx, proto, host, port, basePath)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// probeHTTP considers any response below 500 as reachable: the server is up
// even if the probed path 404s. http/https use HEAD; the -get variants use GET.
func probeHTTP(ctx context.Context, proto Protocol, host string, port int, basePath string) bool {
	method := http.MethodHead
	if proto == ProtocolHTTPGet || proto == ProtocolHTTPSGet {
		method = http.MethodGet
	}
	url := proto.Resource(host, port, basePath)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return false
	}
	client := &http.Client{
		Transport: &http.Transport{
			// Local dev servers routinely run with self-signed certs.
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
