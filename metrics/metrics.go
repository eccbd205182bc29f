// Package metrics records engine activity. The engine talks to the Recorder
// interface; Prometheus backs it in the server and NoOp everywhere else.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Close outcomes reported to CloseCompleted.
const (
	CloseSaved   = "saved"
	CloseSkipped = "skipped"
	CloseFailed  = "failed"
)

// Recorder receives engine events.
type Recorder interface {
	TurnCompleted(intent string, dur time.Duration)
	HandlerFailed(intent string)
	CloseCompleted(outcome string)
	Busy()
}

// NoOp discards everything.
type NoOp struct{}

func (NoOp) TurnCompleted(string, time.Duration) {}
func (NoOp) HandlerFailed(string)                 {}
func (NoOp) CloseCompleted(string)                {}
func (NoOp) Busy()                                {}

// Prometheus is a Recorder backed by client_golang collectors registered on
// its own registry, so several instances can coexist in one process.
type Prometheus struct {
	registry *prometheus.Registry

	TurnsTotal     *prometheus.CounterVec
	TurnDuration   *prometheus.HistogramVec
	HandlerErrors  *prometheus.CounterVec
	ClosesTotal    *prometheus.CounterVec
	BusyRejections prometheus.Counter
}

// NewPrometheus creates and registers all collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trekka",
				Subsystem: "engine",
				Name:      "turns_total",
				Help:      "Total number of completed turns",
			},
			[]string{"intent"},
		),
		TurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "trekka",
				Subsystem: "engine",
				Name:      "turn_duration_seconds",
				Help:      "Turn handling duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"intent"},
		),
		HandlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trekka",
				Subsystem: "engine",
				Name:      "handler_failures_total",
				Help:      "Handler calls that fell back to an apology",
			},
			[]string{"intent"},
		),
		ClosesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "trekka",
				Subsystem: "engine",
				Name:      "closes_total",
				Help:      "Conversation close events by outcome",
			},
			[]string{"outcome"},
		),
		BusyRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "trekka",
				Subsystem: "engine",
				Name:      "busy_rejections_total",
				Help:      "Requests rejected because the thread lock timed out",
			},
		),
	}
	p.registry.MustRegister(p.TurnsTotal, p.TurnDuration, p.HandlerErrors, p.ClosesTotal, p.BusyRejections)
	return p
}

// Registry exposes the registry for the /metrics handler.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

func (p *Prometheus) TurnCompleted(intent string, dur time.Duration) {
	p.TurnsTotal.WithLabelValues(intent).Inc()
	p.TurnDuration.WithLabelValues(intent).Observe(dur.Seconds())
}

func (p *Prometheus) HandlerFailed(intent string) {
	p.HandlerErrors.WithLabelValues(intent).Inc()
}

func (p *Prometheus) CloseCompleted(outcome string) {
	p.ClosesTotal.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) Busy() { p.BusyRejections.Inc() }

var (
	_ Recorder = NoOp{}
	_ Recorder = (*Prometheus)(nil)
)
