// Invariants are conditions in code that must hold; a violation means there
// is a bug in guava, not in the caller's input. Think of what you'd `panic()`
// on, except a violation should not take the whole process down: it records
// an error log and bumps a monitoring counter that can page. The caller is
// still in charge of handling the erroneous case, e.g. with an early return.
//
// Do not raise invariants for conditions driven by external input; a missing
// key or a malformed client command is normal operation. A forward chain out
// of order, on the other hand, is exactly what this is for.

package utils

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	promclient "github.com/prometheus/client_model/go"
)

var invariantsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "invariants_total",
	Help: "The total number of invariant violations",
}, []string{
	"module", // The module in which this invariant occurred.
	"type",   // The type of the invariant that occurred.
})

func RaiseInvariant(module, invariantType, msg string, args ...any) {
	invariantsMetric.WithLabelValues(module, invariantType).Inc()
	slog.With("invariant", invariantType, "module", module).Error(msg, args...)
	if IsTestMode {
		panic("invariant violated: " + invariantType)
	}
}

// GetMetricValue returns the current value of the invariant metric with the given labels.
func GetMetricValue(module, invariantType string) int {
	var metric = &promclient.Metric{}
	if err := invariantsMetric.WithLabelValues(module, invariantType).Write(metric); err != nil {
		slog.Error(err.Error())
		return 0
	}
	return int(metric.Counter.GetValue())
}
