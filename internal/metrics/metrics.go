// Package metrics exposes Prometheus counters and histograms for
// session lifecycle, authentication outcome, per-opcode operations,
// upload-ceiling violations, and idle-timeout teardown.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth outcome labels (low cardinality).
const (
	AuthOK           = "ok"
	AuthFailUnknown  = "fail_unknown_user"
	AuthFailDisabled = "fail_disabled"
	AuthFailKey      = "fail_key"
)

// Config controls the metrics HTTP endpoint.
type Config struct {
	Addr      string
	Path      string
	Namespace string
	Subsystem string
}

// DefaultConfig returns the endpoint defaults. cmd/sftp-server does not
// call it; its env-var defaults for Addr and Path are the same values.
func DefaultConfig() Config {
	return Config{Addr: "0.0.0.0:9090", Path: "/metrics", Namespace: "sftp", Subsystem: "server"}
}

// Registry bundles every metric this server emits.
type Registry struct {
	sessionsActive prometheus.Gauge
	sessionsTotal  *prometheus.CounterVec

	authAttempts *prometheus.CounterVec
	authDuration *prometheus.HistogramVec

	opTotal    *prometheus.CounterVec
	opDuration *prometheus.HistogramVec

	bytesIn  prometheus.Counter
	bytesOut prometheus.Counter

	quotaExceeded prometheus.Counter
	idleTeardown  prometheus.Counter

	vaultRequests *prometheus.CounterVec
}

// New builds and registers the metric set, then starts the /metrics
// and /healthz HTTP endpoint. The server shuts down when ctx is
// cancelled.
func New(ctx context.Context, cfg Config) *Registry {
	ns, sub := cfg.Namespace, cfg.Subsystem
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	r := &Registry{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "sessions_active",
			Help: "Current number of accepted connections being served.",
		}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "sessions_total",
			Help: "Total connections accepted under the connection cap, by result.",
		}, []string{"result"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "auth_attempts_total",
			Help: "Total authentication attempts, by result.",
		}, []string{"result"}),
		authDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub, Name: "auth_duration_seconds",
			Help:    "Authentication decision latency.",
			Buckets: []float64{0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"result"}),
		opTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "ops_total",
			Help: "Total SFTP requests dispatched, by opcode and status.",
		}, []string{"opcode", "status"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub, Name: "op_duration_seconds",
			Help:    "SFTP request handling latency, by opcode.",
			Buckets: []float64{0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"opcode"}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "bytes_in_total",
			Help: "Total bytes written via WRITE requests.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "bytes_out_total",
			Help: "Total bytes returned via READ requests.",
		}),
		quotaExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "upload_ceiling_exceeded_total",
			Help: "Total WRITE requests rejected for exceeding the upload ceiling.",
		}),
		idleTeardown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "idle_teardown_total",
			Help: "Total subsystem sessions torn down for idle timeout.",
		}),
		vaultRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "vault_requests_total",
			Help: "Total Vault user-store lookups, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		r.sessionsActive, r.sessionsTotal,
		r.authAttempts, r.authDuration,
		r.opTotal, r.opDuration,
		r.bytesIn, r.bytesOut,
		r.quotaExceeded, r.idleTeardown,
		r.vaultRequests,
	)

	r.serve(ctx, cfg, reg)
	return r
}

func (r *Registry) serve(ctx context.Context, cfg Config, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() { _ = srv.ListenAndServe() }()
}

func (r *Registry) IncSessionActive(delta float64) { r.sessionsActive.Add(delta) }
func (r *Registry) IncSessionTotal(result string)  { r.sessionsTotal.WithLabelValues(result).Inc() }

func (r *Registry) ObserveAuth(result string, dur time.Duration) {
	r.authAttempts.WithLabelValues(result).Inc()
	r.authDuration.WithLabelValues(result).Observe(dur.Seconds())
}

func (r *Registry) ObserveOp(opcode, status string, dur time.Duration) {
	r.opTotal.WithLabelValues(opcode, status).Inc()
	r.opDuration.WithLabelValues(opcode).Observe(dur.Seconds())
}

func (r *Registry) AddBytesIn(n int64) {
	if n > 0 {
		r.bytesIn.Add(float64(n))
	}
}

func (r *Registry) AddBytesOut(n int64) {
	if n > 0 {
		r.bytesOut.Add(float64(n))
	}
}

func (r *Registry) IncQuotaExceeded()          { r.quotaExceeded.Inc() }
func (r *Registry) IncIdleTeardown()           { r.idleTeardown.Inc() }
func (r *Registry) ObserveVault(result string) { r.vaultRequests.WithLabelValues(result).Inc() }
