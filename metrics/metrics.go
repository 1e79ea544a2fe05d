// Package metrics exposes Prometheus metrics for integration runs.
package metrics

import (
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsNamespace = "integ_acceptor"

var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of integration runs",
	}, []string{
		"integration",
		"status",
	})

	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "attempts_total",
		Help:      "Count of test attempts",
	}, []string{
		"integration",
		"result",
	})

	envFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "env_failures_total",
		Help:      "Count of environment start/stop failures",
	}, []string{
		"integration",
		"phase",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the most recent run per integration",
	}, []string{
		"integration",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	RecordError(label + "." + errToLabel(err))
}

// RecordRun records the terminal status and duration of one integration run.
func RecordRun(integration, status string, duration time.Duration) {
	runsTotal.WithLabelValues(integration, status).Inc()
	runDuration.WithLabelValues(integration).Set(duration.Seconds())
}

// RecordAttempt records a single test attempt's outcome.
func RecordAttempt(integration string, passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	attemptsTotal.WithLabelValues(integration, result).Inc()
}

// RecordEnvFailure records a failed environment start or stop.
func RecordEnvFailure(integration, phase string) {
	envFailuresTotal.WithLabelValues(integration, phase).Inc()
}
