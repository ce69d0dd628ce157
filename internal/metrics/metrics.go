package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthmate_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthmate_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// result: success | validation | conflict | error
	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthmate_registrations_total",
			Help: "Signup attempts by outcome",
		},
		[]string{"result"},
	)

	// result: success | invalid_credentials | role_mismatch | error
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthmate_logins_total",
			Help: "Login attempts by outcome",
		},
		[]string{"result"},
	)

	UIDConflictRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "healthmate_uid_conflict_retries_total",
			Help: "Registrations retried after a uid unique violation",
		},
	)

	// status: ok | cached | error | unavailable
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthmate_prescription_analyses_total",
			Help: "Prescription image analyses by outcome",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RegistrationsTotal,
		LoginsTotal,
		UIDConflictRetries,
		AnalysesTotal,
	)
}

func RecordRequest(method, route, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware records every request against its matched route pattern so
// query strings and ids do not explode label cardinality.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := c.Route().Path
		RecordRequest(c.Method(), route, strconv.Itoa(status), time.Since(start))
		return err
	}
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
