// Package metrics holds the Prometheus collectors for the escalation engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// DeliveryTarget is how soon after becoming available a follow-up attempt
// should begin.
const DeliveryTarget = 5 * time.Second

// Metrics groups every collector on a private registry so tests can build
// as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	EscalationsCreated  prometheus.Counter
	EscalationsResolved prometheus.Counter
	EscalationsExpired  prometheus.Counter
	ResolveRejected     *prometheus.CounterVec
	FollowUpsDelivered  prometheus.Counter
	DeliveryFailures    prometheus.Counter
	DeadLetters         prometheus.Counter
	DeliveryLatency     prometheus.Histogram
	RecordsQuarantined  *prometheus.CounterVec
	KnowledgeLookups    *prometheus.CounterVec
	AgentReplies        *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		EscalationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_escalations_created_total",
			Help: "Total number of questions escalated to a supervisor",
		}),
		EscalationsResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_escalations_resolved_total",
			Help: "Total number of escalations answered by a supervisor",
		}),
		EscalationsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_escalations_expired_total",
			Help: "Total number of escalations that timed out or were dismissed",
		}),
		ResolveRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_resolve_rejected_total",
			Help: "Supervisor answers rejected because the escalation was terminal",
		}, []string{"reason"}),
		FollowUpsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_followups_delivered_total",
			Help: "Total number of follow-ups spoken to callers",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_followup_delivery_failures_total",
			Help: "Total number of failed follow-up delivery attempts",
		}),
		DeadLetters: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_followups_dead_lettered_total",
			Help: "Total number of follow-ups that exhausted their retries",
		}),
		DeliveryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "frontdesk_followup_delivery_latency_seconds",
			Help:    "Time from a follow-up becoming available to its delivery attempt",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		RecordsQuarantined: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_records_quarantined_total",
			Help: "Persisted records skipped because they failed validation",
		}, []string{"collection"}),
		KnowledgeLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_knowledge_lookups_total",
			Help: "Knowledge base lookups by result",
		}, []string{"result"}),
		AgentReplies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_agent_replies_total",
			Help: "Agent replies by source",
		}, []string{"source"}),
	}
}

// Quarantined implements the sqlite quarantine counter.
func (m *Metrics) Quarantined(collection string) {
	m.RecordsQuarantined.WithLabelValues(collection).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
