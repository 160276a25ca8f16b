// Package metrics exposes Prometheus counters for settlement activity and RPC
// latency.
package metrics

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/fairshare/internal/models"
	"github.com/mmynk/fairshare/internal/settlement"
)

const namespace = "fairshare"

// Ensure Metrics implements settlement.Observer
var _ settlement.Observer = (*Metrics)(nil)

// Metrics holds the service's collectors.
type Metrics struct {
	GroupsFinalized    prometheus.Counter
	SettlementsCreated prometheus.Counter
	ModesSelected      *prometheus.CounterVec
	ReceiptsConfirmed  *prometheus.CounterVec
	PartialCommits     *prometheus.CounterVec
	RPCDuration        *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GroupsFinalized: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_finalized_total",
			Help:      "Groups finalized.",
		}),
		SettlementsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_created_total",
			Help:      "Settlement rows created by finalization.",
		}),
		ModesSelected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_modes_selected_total",
			Help:      "Payment modes chosen by debtors.",
		}, []string{"mode"}),
		ReceiptsConfirmed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_confirmed_total",
			Help:      "Settlements confirmed received, by points earned.",
		}, []string{"points"}),
		PartialCommits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_commits_total",
			Help:      "Operations that left one of two required writes applied.",
		}, []string{"op"}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "Connect RPC latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
		gatherer: reg,
	}
}

func (m *Metrics) GroupFinalized(settlements int) {
	m.GroupsFinalized.Inc()
	m.SettlementsCreated.Add(float64(settlements))
}

func (m *Metrics) PaymentModeSelected(mode models.PaymentMode) {
	m.ModesSelected.WithLabelValues(string(mode)).Inc()
}

func (m *Metrics) ReceiptConfirmed(points int) {
	m.ReceiptsConfirmed.WithLabelValues(pointsLabel(points)).Inc()
}

func (m *Metrics) PartialCommit(op string) {
	m.PartialCommits.WithLabelValues(op).Inc()
}

func pointsLabel(points int) string {
	switch points {
	case 10:
		return "10"
	case 5:
		return "5"
	case 2:
		return "2"
	default:
		return "other"
	}
}

// Interceptor records the duration and result code of every unary RPC.
func (m *Metrics) Interceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			m.RPCDuration.WithLabelValues(req.Spec().Procedure, code).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
