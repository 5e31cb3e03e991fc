// Package devserver starts externally defined server processes around a test
// session, waits until each is network-reachable, and tears them all down
// afterward, guaranteeing no orphaned process tree survives.
package devserver

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/devserver/internal/conflict"
	cfg "github.com/loykin/devserver/internal/config"
	"github.com/loykin/devserver/internal/history"
	"github.com/loykin/devserver/internal/history/factory"
	"github.com/loykin/devserver/internal/httpapi"
	"github.com/loykin/devserver/internal/manager"
	"github.com/loykin/devserver/internal/metrics"
	"github.com/loykin/devserver/internal/process"
	"github.com/loykin/devserver/internal/readiness"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = manager.Spec

type Status = manager.Status

type Options = manager.Options

type ReadinessOptions = readiness.Options

type HistorySink = history.Sink

type HistoryEvent = history.Event

// Exported error kinds, matched with errors.Is / errors.As.
var (
	ErrNoCommand     = manager.ErrNoCommand
	ErrInvalidPolicy = conflict.ErrInvalidPolicy
	ErrLaunchTimeout = readiness.ErrTimeout
)

type PortInUseError = conflict.PortInUseError

type LaunchTimeoutError = readiness.TimeoutError

// Manager is a thin facade over internal/manager.Manager. Create one per test
// session; the registry it owns is not shared with any other instance.
type Manager struct{ inner *manager.Manager }

func New() *Manager { return &Manager{inner: manager.New(manager.Options{})} }

func NewWithOptions(opts Options) *Manager { return &Manager{inner: manager.New(opts)} }

// SetGlobalEnv applies session-wide K=V overrides used by every spawn.
func (m *Manager) SetGlobalEnv(kvs []string) {
	for _, kv := range kvs {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				m.inner.Env().Set(kv[:i], kv[i+1:])
				break
			}
		}
	}
}

// Setup brings up all given servers concurrently and returns the first error
// observed once every entry has finished.
func (m *Manager) Setup(ctx context.Context, specs ...Spec) error {
	return m.inner.Setup(ctx, specs...)
}

// GetManagedProcesses returns a read-only snapshot of the registry.
func (m *Manager) GetManagedProcesses() []Status { return m.inner.Snapshot() }

// Teardown stops every managed process, best-effort, then optionally runs
// postCommand. Safe to call repeatedly.
func (m *Manager) Teardown(ctx context.Context, postCommand string) {
	m.inner.Teardown(ctx, postCommand)
}

// OnShutdown installs fn to run once when the controlling process receives a
// termination signal (Ctrl-C, TERM, HUP), before any still-tracked process
// group is force-killed and the process exits with 128+signal. Use it to run
// a graceful Teardown; the process never returns from the signal.
func OnShutdown(fn func(sig os.Signal)) { process.RegisterShutdown(fn) }

// NewSinkFromDSN builds a history sink from a DSN (sqlite path/DSN, postgres,
// clickhouse, opensearch).
func NewSinkFromDSN(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

type FileConfig = cfg.FileConfig

// LoadConfig parses a TOML session definition.
func LoadConfig(path string) (*FileConfig, error) { return cfg.Load(path) }

// NewHTTPServer starts an HTTP server exposing the status API using the given
// manager.
func NewHTTPServer(addr, basePath string, m *Manager) (*http.Server, error) {
	return httpapi.NewServer(addr, basePath, m.inner)
}

// NewHTTPHandler returns the status API as an embeddable http.Handler.
func NewHTTPHandler(basePath string, m *Manager) http.Handler {
	return httpapi.NewRouter(m.inner, basePath).Handler()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It blocks in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
