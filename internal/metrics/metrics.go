// Package metrics exposes Prometheus counters for model turns and workflow
// progress.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"specarch/internal/conversation"
	"specarch/internal/document"
	"specarch/internal/phase"
	"specarch/internal/transport"
)

const namespace = "specarch"

// Collector records conversation statistics. It satisfies
// conversation.Recorder and is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	turnsStarted  *prometheus.CounterVec
	turnsFinished *prometheus.CounterVec
	fragments     *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	documents     *prometheus.CounterVec
	tokens        *prometheus.CounterVec
	connections   prometheus.Gauge
}

var _ conversation.Recorder = (*Collector)(nil)

// New creates a Collector with its own registry, including Go runtime and
// process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		turnsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_started_total",
			Help:      "Model turns started, by phase.",
		}, []string{"phase"}),
		turnsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_finished_total",
			Help:      "Model turns finished, by phase and outcome.",
		}, []string{"phase", "outcome"}),
		fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_fragments_total",
			Help:      "Streamed response fragments received, by phase.",
		}, []string{"phase"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of model turns.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"phase", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Phase changes, by source and target phase.",
		}, []string{"from", "to"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_extracted_total",
			Help:      "Documents extracted from model responses.",
		}, []string{"document"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Model tokens consumed by completed turns, by phase and kind (input, output).",
		}, []string{"phase", "kind"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open websocket sessions.",
		}),
	}
	c.registry.MustRegister(
		c.turnsStarted,
		c.turnsFinished,
		c.fragments,
		c.turnDuration,
		c.transitions,
		c.documents,
		c.tokens,
		c.connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) TurnStarted(p phase.Phase) {
	c.turnsStarted.WithLabelValues(p.String()).Inc()
}

func (c *Collector) TurnFinished(p phase.Phase, outcome conversation.Outcome, fragments int, elapsed time.Duration) {
	c.turnsFinished.WithLabelValues(p.String(), string(outcome)).Inc()
	c.fragments.WithLabelValues(p.String()).Add(float64(fragments))
	c.turnDuration.WithLabelValues(p.String(), string(outcome)).Observe(elapsed.Seconds())
}

func (c *Collector) PhaseChanged(from, to phase.Phase) {
	c.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (c *Collector) DocumentExtracted(name document.Name) {
	c.documents.WithLabelValues(name.String()).Inc()
}

func (c *Collector) TokensUsed(p phase.Phase, u transport.Usage) {
	c.tokens.WithLabelValues(p.String(), "input").Add(float64(u.InputTokens))
	c.tokens.WithLabelValues(p.String(), "output").Add(float64(u.OutputTokens))
}

// ConnectionOpened and ConnectionClosed track websocket sessions.
func (c *Collector) ConnectionOpened() { c.connections.Inc() }
func (c *Collector) ConnectionClosed() { c.connections.Dec() }

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
