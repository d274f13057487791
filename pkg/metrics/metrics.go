package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Business metrics
	StudentsRegistered prometheus.Counter
	StudentsConfirmed  prometheus.Counter
	CheckpointsCreated prometheus.Counter
	CheckpointAmount   prometheus.Counter
	PaymentsCreated    prometheus.Counter
	PaymentTransitions *prometheus.CounterVec
	ReceiptsUploaded   prometheus.Counter
	LoginAttempts      *prometheus.CounterVec
	LoginLockouts      *prometheus.CounterVec
	NotificationsSent  *prometheus.CounterVec
	PartnersOnboarded  prometheus.Counter

	// Database metrics
	DBConnections prometheus.Gauge
}

// New creates a Metrics instance registered on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Business metrics
		StudentsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "students_registered_total",
			Help: "Total number of students registered through a referral code",
		}),
		StudentsConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "students_confirmed_total",
			Help: "Total number of student confirmations",
		}),
		CheckpointsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_checkpoints_created_total",
			Help: "Total number of payment checkpoints recorded",
		}),
		CheckpointAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_checkpoints_amount_total",
			Help: "Sum of amounts recorded in payment checkpoints",
		}),
		PaymentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Total number of payments created",
		}),
		PaymentTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_transitions_total",
				Help: "Total number of payment status changes",
			},
			[]string{"status"}, // pending, partial, completed, cancelled
		),
		ReceiptsUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_receipts_uploaded_total",
			Help: "Total number of payment receipts uploaded",
		}),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"role", "status"}, // admin|partner, success|failed|locked
		),
		LoginLockouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_lockouts_total",
				Help: "Total number of login lockouts started",
			},
			[]string{"role"},
		),
		NotificationsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_sent_total",
				Help: "Total number of notifications sent",
			},
			[]string{"kind", "status"},
		),
		PartnersOnboarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "partners_onboarded_total",
			Help: "Total number of partners created",
		}),

		// Database metrics
		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of open database connections",
		}),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			start := time.Now()
			req := c.Request()

			err := next(c)

			// Route pattern, not the raw path, keeps label cardinality bounded
			path := c.Path()
			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordStudentRegistered increments the registrations counter
func (m *Metrics) RecordStudentRegistered() {
	if m == nil {
		return
	}
	m.StudentsRegistered.Inc()
}

// RecordStudentConfirmed increments the confirmations counter
func (m *Metrics) RecordStudentConfirmed() {
	if m == nil {
		return
	}
	m.StudentsConfirmed.Inc()
}

// RecordCheckpoint counts a checkpoint and the amount it records
func (m *Metrics) RecordCheckpoint(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.CheckpointsCreated.Inc()
	m.CheckpointAmount.Add(amount.InexactFloat64())
}

// RecordPaymentCreated increments the payments counter
func (m *Metrics) RecordPaymentCreated() {
	if m == nil {
		return
	}
	m.PaymentsCreated.Inc()
}

// RecordPaymentTransition counts a payment reaching status
func (m *Metrics) RecordPaymentTransition(status string) {
	if m == nil {
		return
	}
	m.PaymentTransitions.WithLabelValues(status).Inc()
}

// RecordReceiptUploaded increments the receipts counter
func (m *Metrics) RecordReceiptUploaded() {
	if m == nil {
		return
	}
	m.ReceiptsUploaded.Inc()
}

// RecordLoginAttempt counts a login by outcome
func (m *Metrics) RecordLoginAttempt(role, status string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(role, status).Inc()
}

// RecordLockout counts a lockout started for role
func (m *Metrics) RecordLockout(role string) {
	if m == nil {
		return
	}
	m.LoginLockouts.WithLabelValues(role).Inc()
}

// RecordNotification counts a notification by kind and outcome
func (m *Metrics) RecordNotification(kind string, success bool) {
	if m == nil {
		return
	}
	status := "failed"
	if success {
		status = "sent"
	}
	m.NotificationsSent.WithLabelValues(kind, status).Inc()
}

// RecordPartnerOnboarded increments the partners counter
func (m *Metrics) RecordPartnerOnboarded() {
	if m == nil {
		return
	}
	m.PartnersOnboarded.Inc()
}

// UpdateDBConnections sets the open database connections gauge
func (m *Metrics) UpdateDBConnections(count int) {
	if m == nil {
		return
	}
	m.DBConnections.Set(float64(count))
}
