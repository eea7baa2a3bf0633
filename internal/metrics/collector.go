// Package metrics exposes Prometheus counters and histograms for the assistant.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "partsagent"

// Collector owns its registry so several instances can coexist in tests.
// All methods are safe on a nil receiver.
type Collector struct {
	registry *prometheus.Registry

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmCost            *prometheus.CounterVec

	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	agentRunsTotal   *prometheus.CounterVec
	agentRunDuration *prometheus.HistogramVec
	routingTotal     *prometheus.CounterVec

	guardrailActions *prometheus.CounterVec
	chatRequests     *prometheus.CounterVec
}

// NewCollector registers every metric plus the Go and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		llmRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM provider attempts by outcome",
		}, []string{"provider", "outcome"}),
		llmRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM provider attempt latency",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"provider"}),
		llmCost: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_usd_total",
			Help:      "Estimated LLM spend in USD",
		}, []string{"model"}),
		toolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by outcome",
		}, []string{"tool", "outcome"}),
		toolCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool invocation latency",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"tool"}),
		agentRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Agent runs by terminal phase",
		}, []string{"agent", "phase"}),
		agentRunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_run_duration_seconds",
			Help:      "Agent run latency",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30},
		}, []string{"agent"}),
		routingTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_total",
			Help:      "Triage routing targets",
		}, []string{"agent"}),
		guardrailActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_actions_total",
			Help:      "Guardrail decisions by action",
		}, []string{"action"}),
		chatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by channel and outcome",
		}, []string{"channel", "outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) RecordLLMRequest(provider, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.llmRequestsTotal.WithLabelValues(provider, outcome).Inc()
	c.llmRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (c *Collector) RecordLLMCost(model string, usd float64) {
	if c == nil || usd <= 0 {
		return
	}
	c.llmCost.WithLabelValues(model).Add(usd)
}

func (c *Collector) RecordToolCall(tool, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (c *Collector) RecordAgentRun(agent, phase string, d time.Duration) {
	if c == nil {
		return
	}
	c.agentRunsTotal.WithLabelValues(agent, phase).Inc()
	c.agentRunDuration.WithLabelValues(agent).Observe(d.Seconds())
}

func (c *Collector) RecordRouting(agent string) {
	if c == nil {
		return
	}
	c.routingTotal.WithLabelValues(agent).Inc()
}

func (c *Collector) RecordGuardrailAction(action string) {
	if c == nil {
		return
	}
	c.guardrailActions.WithLabelValues(action).Inc()
}

func (c *Collector) RecordChatRequest(channel, outcome string) {
	if c == nil {
		return
	}
	c.chatRequests.WithLabelValues(channel, outcome).Inc()
}
