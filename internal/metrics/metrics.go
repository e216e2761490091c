package metrics

import (
	"sync"
	"time"
)

// Package metrics provides a minimal instrumentation interface with a no-op
// default and optional Prometheus-backed implementation enabled via config.

// Recorder defines the metrics surface used across the codebase.
type Recorder interface {
	IncDBOpTotal(op string, success bool)
	ObserveDBOpSeconds(op string, success bool, seconds float64)
	IncToolTotal(tool string, success bool)
	ObserveToolSeconds(tool string, success bool, seconds float64)
	// external collaborator calls (annotate, related concepts, pageviews)
	IncCallTotal(call string, success bool)
	ObserveCallSeconds(call string, success bool, seconds float64)
	IncStmtCacheHit()
	IncStmtCacheMiss()
}

// Config controls the Prometheus exporter.
type Config struct {
	Prometheus bool   `koanf:"prometheus"`
	Addr       string `koanf:"addr" validate:"required_if=Prometheus true"`
}

// noopRecorder implements Recorder with no-ops.
type noopRecorder struct{}

func (n *noopRecorder) IncDBOpTotal(string, bool)                {}
func (n *noopRecorder) ObserveDBOpSeconds(string, bool, float64) {}
func (n *noopRecorder) IncToolTotal(string, bool)                {}
func (n *noopRecorder) ObserveToolSeconds(string, bool, float64) {}
func (n *noopRecorder) IncCallTotal(string, bool)                {}
func (n *noopRecorder) ObserveCallSeconds(string, bool, float64) {}
func (n *noopRecorder) IncStmtCacheHit()                         {}
func (n *noopRecorder) IncStmtCacheMiss()                        {}

var (
	recMu    sync.RWMutex
	recorder Recorder = &noopRecorder{}
)

// Default returns the current recorder.
func Default() Recorder {
	recMu.RLock()
	defer recMu.RUnlock()
	return recorder
}

// SetRecorder swaps the global recorder implementation.
func SetRecorder(r Recorder) {
	recMu.Lock()
	defer recMu.Unlock()
	recorder = r
}

// TimeOp is a helper to time DB operations.
func TimeOp(op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncDBOpTotal(op, success)
		Default().ObserveDBOpSeconds(op, success, dur)
	}
}

// TimeTool is a helper to time tool handler operations.
func TimeTool(tool string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncToolTotal(tool, success)
		Default().ObserveToolSeconds(tool, success, dur)
	}
}

// TimeCall is a helper to time outbound collaborator calls.
func TimeCall(call string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncCallTotal(call, success)
		Default().ObserveCallSeconds(call, success, dur)
	}
}

// Init enables the Prometheus exporter when cfg.Prometheus is set. It
// starts a small HTTP server on cfg.Addr (default :9090) with endpoints
// /metrics and /healthz.
func Init(cfg Config) error {
	if !cfg.Prometheus {
		return nil
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":9090"
	}
	return enablePrometheus(addr)
}

// enablePrometheus is provided by build-tagged files.
