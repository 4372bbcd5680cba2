package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineCollector exposes game-loop, scheduler, registry and broadcast
// metrics. It implements the recorder interfaces of timectrl, action, kb
// and channel.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	TickDuration prometheus.Histogram
	TickOverruns prometheus.Counter

	ActionsQueued   prometheus.Gauge
	ActionsDropped  prometheus.Counter
	ActionsExecuted prometheus.Counter

	Objects prometheus.Gauge
	Ships   prometheus.Gauge
	Players prometheus.Gauge

	MessagesPushed  *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec
}

// NewEngineCollector registers engine metrics against the provided registerer.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_tick_duration_seconds",
		Help:    "Wall time spent running one game loop tick.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "bridge_tick_duration_seconds")
	if err != nil {
		return nil, err
	}
	overruns, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_tick_overruns_total",
		Help: "Ticks whose processing took longer than the loop interval.",
	}), "bridge_tick_overruns_total")
	if err != nil {
		return nil, err
	}

	queued, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_actions_queued",
		Help: "Actions currently waiting in the scheduler queue.",
	}), "bridge_actions_queued")
	if err != nil {
		return nil, err
	}
	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_actions_dropped_total",
		Help: "Actions rejected because the scheduler queue was full.",
	}), "bridge_actions_dropped_total")
	if err != nil {
		return nil, err
	}
	executed, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bridge_actions_executed_total",
		Help: "Action update steps executed by the scheduler.",
	}), "bridge_actions_executed_total")
	if err != nil {
		return nil, err
	}

	objects, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_objects",
		Help: "Current number of objects in the play field.",
	}), "bridge_objects")
	if err != nil {
		return nil, err
	}
	ships, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_ships",
		Help: "Current number of registered ships.",
	}), "bridge_ships")
	if err != nil {
		return nil, err
	}
	players, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_players",
		Help: "Current number of logged-in players.",
	}), "bridge_players")
	if err != nil {
		return nil, err
	}

	pushed, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_messages_pushed_total",
		Help: "Broadcast pushes, labeled by event name.",
	}, []string{"event"}), "bridge_messages_pushed_total")
	if err != nil {
		return nil, err
	}
	msgDropped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_messages_dropped_total",
		Help: "Per-subscriber deliveries dropped because the subscriber buffer was full.",
	}, []string{"event"}), "bridge_messages_dropped_total")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:        gatherer,
		TickDuration:    tickHistogram,
		TickOverruns:    overruns,
		ActionsQueued:   queued,
		ActionsDropped:  dropped,
		ActionsExecuted: executed,
		Objects:         objects,
		Ships:           ships,
		Players:         players,
		MessagesPushed:  pushed,
		MessagesDropped: msgDropped,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *EngineCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	if c == nil {
		return handlerFor(nil)
	}
	return handlerFor(c.gatherer)
}

// ObserveTick records the duration of one tick.
func (c *EngineCollector) ObserveTick(d time.Duration) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

// IncTickOverruns counts a tick that overran its interval.
func (c *EngineCollector) IncTickOverruns() {
	if c == nil || c.TickOverruns == nil {
		return
	}
	c.TickOverruns.Inc()
}

// SetActionsQueued updates the queue depth gauge.
func (c *EngineCollector) SetActionsQueued(n int) {
	if c == nil || c.ActionsQueued == nil {
		return
	}
	c.ActionsQueued.Set(float64(n))
}

// IncActionsDropped counts an action rejected at capacity.
func (c *EngineCollector) IncActionsDropped() {
	if c == nil || c.ActionsDropped == nil {
		return
	}
	c.ActionsDropped.Inc()
}

// AddActionsExecuted counts action update steps.
func (c *EngineCollector) AddActionsExecuted(n int) {
	if c == nil || c.ActionsExecuted == nil || n <= 0 {
		return
	}
	c.ActionsExecuted.Add(float64(n))
}

// SetObjectCount updates the object gauge.
func (c *EngineCollector) SetObjectCount(n int) {
	if c == nil || c.Objects == nil {
		return
	}
	c.Objects.Set(float64(n))
}

// SetRegistryCounts updates the ship and player gauges.
func (c *EngineCollector) SetRegistryCounts(ships, players int) {
	if c == nil {
		return
	}
	if c.Ships != nil {
		c.Ships.Set(float64(ships))
	}
	if c.Players != nil {
		c.Players.Set(float64(players))
	}
}

// IncMessagesPushed counts one broadcast push.
func (c *EngineCollector) IncMessagesPushed(event string) {
	if c == nil || c.MessagesPushed == nil {
		return
	}
	c.MessagesPushed.WithLabelValues(event).Inc()
}

// IncMessagesDropped counts one dropped delivery.
func (c *EngineCollector) IncMessagesDropped(event string) {
	if c == nil || c.MessagesDropped == nil {
		return
	}
	c.MessagesDropped.WithLabelValues(event).Inc()
}
