//go:build noprom

package metrics

// Built with -tags noprom: metrics stay on the no-op recorder.
func enablePrometheus(addr string) error { return nil }
