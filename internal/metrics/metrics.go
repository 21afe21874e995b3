// Package metrics exposes Prometheus metrics for the comment pipeline.
// Counters are driven from the pipeline EventBus so components never
// import this package directly.
package metrics

import (
	"net/http"
	"time"

	"commentflow/internal/bus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	CommentsForwarded prometheus.Counter
	CommentsStored    prometheus.Counter
	CommentsInjected  prometheus.Counter
	CommentsRendered  prometheus.Counter
	RenderFailures    prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	CycleErrors       prometheus.Counter
	UnknownRequests   prometheus.Counter
	ExtractorStops    prometheus.Counter
	RenderDuration    prometheus.Histogram
	Streaming         prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry:          prometheus.NewRegistry(),
		CommentsForwarded: prometheus.NewCounter(prometheus.CounterOpts{Name: "commentflow_comments_forwarded_total", Help: "New comments forwarded by the extractor"}),
		CommentsStored:    prometheus.NewCounter(prometheus.CounterOpts{Name: "commentflow_comments_stored_total", Help: "Comments written to the pending slot"}),
		CommentsInjected:  prometheus.NewCounter(prometheus.CounterOpts{Name: "commentflow_comments_injected_total", Help: "Renderer injections into the focused tab"}),
		CommentsRendered:  prometheus.NewCounter(prometheus.CounterOpts{Name: "commentflow_comments_rendered_total", Help: "Overlay animations that finished"}),
		RenderFailures:    prometheus.NewCounter(prometheus.CounterOpts{Name: "commentflow_render_failures_total", Help: "Injections that never reached a running animation"}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{Name: "commentflow_duplicates_skipped_total", Help: "Message nodes skipped because they were already seen"}),
		CycleErrors:       prometheus.NewCounter(prometheus.CounterOpts{Name: "commentflow_extractor_cycle_errors_total", Help: "Observation cycles that failed and were skipped"}),
		UnknownRequests:   prometheus.NewCounter(prometheus.CounterOpts{Name: "commentflow_unknown_requests_total", Help: "Requests with an unrecognized method"}),
		ExtractorStops:    prometheus.NewCounter(prometheus.CounterOpts{Name: "commentflow_extractor_stops_total", Help: "Observers shut down because the coordinator went away"}),
		RenderDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Name: "commentflow_render_duration_seconds", Help: "Overlay animation duration", Buckets: []float64{5, 10, 15, 20}}),
		Streaming:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "commentflow_streaming_enabled", Help: "Streaming enabled=1 disabled=0"}),
	}
	m.registry.MustRegister(
		m.CommentsForwarded, m.CommentsStored, m.CommentsInjected, m.CommentsRendered, m.RenderFailures,
		m.DuplicatesSkipped, m.CycleErrors, m.UnknownRequests, m.ExtractorStops,
		m.RenderDuration, m.Streaming,
		collectors.NewGoCollector(),
	)
	return m
}

// Attach subscribes the collectors to pipeline events.
func (m *Metrics) Attach(events *bus.EventBus) {
	events.On(bus.EventCommentForwarded, func(bus.Event) { m.CommentsForwarded.Inc() })
	events.On(bus.EventCommentStored, func(bus.Event) { m.CommentsStored.Inc() })
	events.On(bus.EventCommentInjected, func(bus.Event) { m.CommentsInjected.Inc() })
	events.On(bus.EventDuplicateSkipped, func(e bus.Event) {
		if n, ok := e.Payload["count"].(int); ok {
			m.DuplicatesSkipped.Add(float64(n))
		}
	})
	events.On(bus.EventCycleFailed, func(bus.Event) { m.CycleErrors.Inc() })
	events.On(bus.EventRequestUnknown, func(bus.Event) { m.UnknownRequests.Inc() })
	events.On(bus.EventExtractorStopped, func(bus.Event) { m.ExtractorStops.Inc() })
	events.On(bus.EventRenderFinished, func(e bus.Event) {
		m.CommentsRendered.Inc()
		if d, ok := e.Payload["duration"].(time.Duration); ok {
			m.RenderDuration.Observe(d.Seconds())
		}
	})
	events.On(bus.EventRenderFailed, func(bus.Event) { m.RenderFailures.Inc() })
	events.On(bus.EventStreamingToggled, func(e bus.Event) {
		if on, ok := e.Payload["enabled"].(bool); ok {
			m.SetStreaming(on)
		}
	})
}

// SetStreaming sets the gauge to 1 if enabled else 0.
func (m *Metrics) SetStreaming(enabled bool) {
	if enabled {
		m.Streaming.Set(1)
	} else {
		m.Streaming.Set(0)
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
