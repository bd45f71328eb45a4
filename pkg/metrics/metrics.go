package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"tradeprobe/pkg/models"
	"tradeprobe/pkg/session"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "tradeprobe"

// Metrics mirrors session statistics into a prometheus registry. It
// implements stats.Sink.
type Metrics struct {
	Registry *prometheus.Registry

	orders      *prometheus.CounterVec
	productions *prometheus.CounterVec
	inbound     *prometheus.CounterVec
	fills       *prometheus.CounterVec
	latency     prometheus.Histogram
	sessions    *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders by team and outcome",
		}, []string{"team", "outcome"}),
		productions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "productions_total",
			Help:      "Production updates by team and outcome",
		}, []string{"team", "outcome"}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound messages by team and kind",
		}, []string{"team", "kind"}),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Fills by team",
		}, []string{"team"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_latency_seconds",
			Help:      "Time from request to its conclusive reply",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Sessions by lifecycle state",
		}, []string{"state"}),
	}

	m.Registry.MustRegister(m.orders, m.productions, m.inbound, m.fills, m.latency, m.sessions)
	return m
}

func (m *Metrics) OrderOutcome(team string, o models.Outcome) {
	m.orders.WithLabelValues(team, o.String()).Inc()
}

func (m *Metrics) ProductionOutcome(team string, o models.Outcome) {
	m.productions.WithLabelValues(team, o.String()).Inc()
}

func (m *Metrics) Inbound(team string, k models.Kind) {
	m.inbound.WithLabelValues(team, k.String()).Inc()
}

func (m *Metrics) Fill(team string) {
	m.fills.WithLabelValues(team).Inc()
}

func (m *Metrics) Latency(_ string, d time.Duration) {
	m.latency.Observe(d.Seconds())
}

// SessionState tracks a lifecycle transition; pass it as session.Options.OnState.
func (m *Metrics) SessionState(from, to session.State) {
	if from != session.StateNew {
		m.sessions.WithLabelValues(from.String()).Dec()
	}
	m.sessions.WithLabelValues(to.String()).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", l.Addr().String()))
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return nil
}
