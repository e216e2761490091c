//go:build !noprom

package metrics

import (
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/logging"
)

type promRecorder struct {
	dbTotal     *prom.CounterVec
	dbSeconds   *prom.HistogramVec
	toolTotal   *prom.CounterVec
	toolSeconds *prom.HistogramVec
	callTotal   *prom.CounterVec
	callSeconds *prom.HistogramVec
	stmtCache   *prom.CounterVec
}

func (p *promRecorder) IncDBOpTotal(op string, success bool) {
	p.dbTotal.WithLabelValues(op, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveDBOpSeconds(op string, success bool, seconds float64) {
	p.dbSeconds.WithLabelValues(op, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncToolTotal(tool string, success bool) {
	p.toolTotal.WithLabelValues(tool, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveToolSeconds(tool string, success bool, seconds float64) {
	p.toolSeconds.WithLabelValues(tool, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncCallTotal(call string, success bool) {
	p.callTotal.WithLabelValues(call, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveCallSeconds(call string, success bool, seconds float64) {
	p.callSeconds.WithLabelValues(call, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncStmtCacheHit()  { p.stmtCache.WithLabelValues("hit").Inc() }
func (p *promRecorder) IncStmtCacheMiss() { p.stmtCache.WithLabelValues("miss").Inc() }

func newPromRecorder() *promRecorder {
	return &promRecorder{
		dbTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "db_ops_total",
			Help: "Total number of DB operations",
		}, []string{"op", "success"}),
		dbSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "db_op_seconds",
			Help:    "DB operation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
		toolTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "tool_calls_total",
			Help: "Total number of tool handler calls",
		}, []string{"tool", "success"}),
		toolSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "tool_call_seconds",
			Help:    "Tool handler duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"tool", "success"}),
		callTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "external_calls_total",
			Help: "Total number of concept service calls",
		}, []string{"call", "success"}),
		callSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "external_call_seconds",
			Help:    "Concept service call duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"call", "success"}),
		stmtCache: prom.NewCounterVec(prom.CounterOpts{
			Name: "stmt_cache_total",
			Help: "Prepared statement cache lookups",
		}, []string{"result"}),
	}
}

func (p *promRecorder) register(registry *prom.Registry) {
	registry.MustRegister(p.dbTotal, p.dbSeconds, p.toolTotal, p.toolSeconds, p.callTotal, p.callSeconds, p.stmtCache)
}

func enablePrometheus(addr string) error {
	registry := prom.NewRegistry()
	p := newPromRecorder()
	p.register(registry)
	SetRecorder(p)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logging.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	logging.Info().Str("addr", addr).Msg("prometheus metrics enabled")
	return nil
}
