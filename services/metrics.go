package services

import (
	"instant-win-system/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the draw engine. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	draws          *prometheus.CounterVec
	allocations    *prometheus.CounterVec
	allocationRace *prometheus.CounterVec
	claims         *prometheus.CounterVec
	couponUses     *prometheus.CounterVec
	txConflicts    *prometheus.CounterVec
	txTransient    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "instant_win",
			Subsystem: "draw",
			Name:      "results_total",
			Help:      "Draw results by outcome (win, consolation, loss).",
		}, []string{"campaign_id", "outcome"}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "instant_win",
			Subsystem: "inventory",
			Name:      "allocations_total",
			Help:      "Prize units allocated to winners.",
		}, []string{"campaign_id", "prize_id"}),
		allocationRace: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "instant_win",
			Subsystem: "inventory",
			Name:      "lost_races_total",
			Help:      "Selections that found the prize sold out at allocation time.",
		}, []string{"campaign_id"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "instant_win",
			Subsystem: "claim",
			Name:      "results_total",
			Help:      "Claim attempts by result.",
		}, []string{"kind", "result"}),
		couponUses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "instant_win",
			Subsystem: "coupon",
			Name:      "uses_total",
			Help:      "Coupon use attempts by result.",
		}, []string{"result"}),
		txConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "instant_win",
			Subsystem: "store",
			Name:      "tx_conflicts_total",
			Help:      "Transactions that hit a write conflict and were retried.",
		}, []string{"op"}),
		txTransient: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "instant_win",
			Subsystem: "store",
			Name:      "tx_transient_failures_total",
			Help:      "Transactions that exhausted their retry budget.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.draws, m.allocations, m.allocationRace, m.claims, m.couponUses, m.txConflicts, m.txTransient)
	return m
}

func (m *Metrics) recordDraw(rec *models.ParticipationRecord) {
	if m == nil {
		return
	}
	outcome := "loss"
	switch {
	case rec.IsConsolationPrize:
		outcome = "consolation"
	case rec.IsWin:
		outcome = "win"
	}
	m.draws.WithLabelValues(rec.CampaignID, outcome).Inc()
	if !rec.IsLoss() {
		m.allocations.WithLabelValues(rec.CampaignID, rec.PrizeID).Inc()
	}
}

func (m *Metrics) lostRaces(campaignID string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.allocationRace.WithLabelValues(campaignID).Add(float64(n))
}

func (m *Metrics) recordClaim(kind GrantSourceKind, err error) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(string(kind), resultLabel(err)).Inc()
}

func (m *Metrics) recordCouponUse(err error) {
	if m == nil {
		return
	}
	m.couponUses.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) txConflict(op string) {
	if m == nil {
		return
	}
	m.txConflicts.WithLabelValues(op).Inc()
}

func (m *Metrics) txExhausted(op string) {
	if m == nil {
		return
	}
	m.txTransient.WithLabelValues(op).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	switch KindOf(err) {
	case KindAlreadyDone:
		return "already_done"
	case KindValidation:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindBusinessRule:
		return "rejected"
	case KindTransient:
		return "transient"
	}
	return "error"
}
