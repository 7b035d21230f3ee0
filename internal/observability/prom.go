package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "authhub"

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// OTP lifecycle
	OtpIssued       prometheus.Counter
	OtpRateLimited  prometheus.Counter
	OtpVerification *prometheus.CounterVec

	// Auth outcomes (login, refresh, register...)
	AuthOutcomes *prometheus.CounterVec

	// Email jobs (worker)
	JobDuration  *prometheus.HistogramVec
	JobResults   *prometheus.CounterVec
	JobsInFlight prometheus.Gauge
	QueueDepth   prometheus.Gauge
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				// scrypt makes login/register slower than a typical CRUD call
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		OtpIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "otp",
				Name:      "issued_total",
				Help:      "One-time passcodes issued.",
			},
		),
		OtpRateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "otp",
				Name:      "rate_limited_total",
				Help:      "OTP requests rejected by the per-user window.",
			},
		),
		OtpVerification: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "otp",
				Name:      "verifications_total",
				Help:      "OTP verification attempts by result.",
			},
			[]string{"result"}, // result=ok|invalid|error
		),
		AuthOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "outcomes_total",
				Help:      "Auth workflow outcomes by operation and result.",
			},
			[]string{"op", "result"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "duration_seconds",
				Help:      "Email job execution duration by type and result",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"job_type", "result"}, // result=done|retry|failed
		),
		JobResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "results_total",
				Help:      "Email job outcomes by type and result.",
			},
			[]string{"job_type", "result"},
		),
		JobsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "in_flight",
				Help:      "Current number of executing jobs (per process)",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "queue_depth",
				Help:      "Ready plus delayed email jobs, sampled by the worker.",
			},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.OtpIssued, p.OtpRateLimited, p.OtpVerification,
		p.AuthOutcomes,
		p.JobDuration, p.JobResults, p.JobsInFlight, p.QueueDepth,
	)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

// The helpers below accept a nil receiver so that packages can hold an
// optional *Prom without guarding every call.

func (p *Prom) IncOtpIssued() {
	if p == nil {
		return
	}
	p.OtpIssued.Inc()
}

func (p *Prom) IncOtpRateLimited() {
	if p == nil {
		return
	}
	p.OtpRateLimited.Inc()
}

func (p *Prom) ObserveOtpVerification(result string) {
	if p == nil {
		return
	}
	p.OtpVerification.WithLabelValues(result).Inc()
}

func (p *Prom) ObserveAuth(op, result string) {
	if p == nil {
		return
	}
	p.AuthOutcomes.WithLabelValues(op, result).Inc()
}

func (p *Prom) ObserveJob(jobType, result string, d time.Duration) {
	if p == nil {
		return
	}
	p.JobResults.WithLabelValues(jobType, result).Inc()
	p.JobDuration.WithLabelValues(jobType, result).Observe(d.Seconds())
}
