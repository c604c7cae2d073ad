package service

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forge3d/assetsync/internal/protocol"
)

// PrometheusCollector implements Collector on a private registry.
type PrometheusCollector struct {
	registry *prometheus.Registry

	commandsSent   *prometheus.CounterVec
	retransmits    *prometheus.CounterVec
	ackTimeouts    prometheus.Counter
	corruptFrames  prometheus.Counter
	jobsFinished   *prometheus.CounterVec
	batchesDone    prometheus.Counter
	batchesDropped prometheus.Counter
	droppedCmds    prometheus.Counter
	workerStarts   prometheus.Counter
	workerLosses   prometheus.Counter
}

// NewPrometheusCollector builds a collector under the given namespace
// (default "assetsync").
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = "assetsync"
	}

	c := &PrometheusCollector{registry: prometheus.NewRegistry()}

	c.commandsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_sent_total",
		Help:      "Commands transmitted to the worker, retransmissions included",
	}, []string{"code"})

	c.retransmits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retransmissions_total",
		Help:      "CMD_ERROR driven retransmissions",
	}, []string{"code"})

	c.ackTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ack_timeouts_total",
		Help:      "Exhausted acknowledgment waits",
	})

	c.corruptFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "corrupt_frames_total",
		Help:      "Discarded frames and undecodable payloads",
	})

	c.jobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_finished_total",
		Help:      "Finished asset jobs by outcome",
	}, []string{"outcome"})

	c.batchesDone = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_completed_total",
		Help:      "Batches drained to completion",
	})

	c.batchesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batches_cancelled_total",
		Help:      "Batches cancelled before draining",
	})

	c.droppedCmds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cancelled_commands_total",
		Help:      "Queued commands dropped by batch cancellation",
	})

	c.workerStarts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_launches_total",
		Help:      "Worker process launches",
	})

	c.workerLosses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_losses_total",
		Help:      "Unexpected worker deaths",
	})

	c.registry.MustRegister(
		c.commandsSent, c.retransmits, c.ackTimeouts, c.corruptFrames,
		c.jobsFinished, c.batchesDone, c.batchesDropped, c.droppedCmds,
		c.workerStarts, c.workerLosses,
	)
	return c
}

func (c *PrometheusCollector) CommandSent(code protocol.Code) {
	c.commandsSent.WithLabelValues(string(code)).Inc()
}

func (c *PrometheusCollector) Retransmitted(code protocol.Code) {
	c.retransmits.WithLabelValues(string(code)).Inc()
}

func (c *PrometheusCollector) AckTimeout()     { c.ackTimeouts.Inc() }
func (c *PrometheusCollector) FrameCorrupted() { c.corruptFrames.Inc() }

func (c *PrometheusCollector) JobFinished(ok bool) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	c.jobsFinished.WithLabelValues(outcome).Inc()
}

func (c *PrometheusCollector) BatchCompleted(Counters) { c.batchesDone.Inc() }

func (c *PrometheusCollector) BatchCancelled(dropped int) {
	c.batchesDropped.Inc()
	c.droppedCmds.Add(float64(dropped))
}

func (c *PrometheusCollector) WorkerLaunched() { c.workerStarts.Inc() }
func (c *PrometheusCollector) WorkerLost()     { c.workerLosses.Inc() }

// Handler exposes the private registry for an HTTP metrics endpoint.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
