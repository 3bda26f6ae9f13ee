package metrics

import (
	"math"
	"net/http"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elys-network/treasury-sim/internal/logger"
	"github.com/elys-network/treasury-sim/internal/types"
	"github.com/elys-network/treasury-sim/internal/utils"
)

var metricsLogger = logger.GetForComponent("metrics")

// Recorder exposes the latest simulated month as gauges. A nil Recorder is a no-op.
type Recorder struct {
	registry *prometheus.Registry

	month              prometheus.Gauge
	price              prometheus.Gauge
	deepPool           *prometheus.GaugeVec
	positionDepth      *prometheus.GaugeVec
	remainingSupply    prometheus.Gauge
	redeemed           prometheus.Gauge
	redeemedCumulative prometheus.Gauge
	redemptions        prometheus.Counter
	skippedTrades      prometheus.Counter
	tvl                *prometheus.GaugeVec
	revenue            prometheus.Gauge
	expectedIRR        prometheus.Gauge
}

// NewRecorder registers the simulator gauges on a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		month: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_sim_month",
			Help: "Last simulated month.",
		}),
		price: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_sim_token_price",
			Help: "Finalized month-end token price in numeraire.",
		}),
		deepPool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "treasury_sim_deep_pool_balance",
			Help: "Deep pool balance by asset side.",
		}, []string{"side"}),
		positionDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "treasury_sim_liquidity_depth",
			Help: "Tradable depth within the configured band by source and side.",
		}, []string{"source", "side"}),
		remainingSupply: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_sim_bond_remaining_supply",
			Help: "Bond supply not yet redeemed.",
		}),
		redeemedCumulative: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_sim_bond_redeemed_cumulative",
			Help: "Bond units redeemed since the run started.",
		}),
		redeemed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_sim_bond_redeemed_month",
			Help: "Bond units redeemed in the last month.",
		}),
		redemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treasury_sim_bond_redemptions_total",
			Help: "Count of allocations redeemed.",
		}),
		skippedTrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "treasury_sim_skipped_trades_total",
			Help: "Trades dropped after exhausting resizes.",
		}),
		tvl: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "treasury_sim_tvl",
			Help: "TVL by type.",
		}, []string{"type"}),
		revenue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_sim_cumulative_revenue",
			Help: "Revenue accumulated since month 0.",
		}),
		expectedIRR: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treasury_sim_expected_irr_percent",
			Help: "Expected IRR of holding bonds to the end of the redemption window.",
		}),
	}
	r.registry.MustRegister(
		r.month, r.price, r.deepPool, r.positionDepth, r.remainingSupply,
		r.redeemed, r.redeemedCumulative, r.redemptions, r.skippedTrades, r.tvl, r.revenue, r.expectedIRR,
	)
	return r
}

// ObserveMonth updates every gauge from a snapshot.
func (r *Recorder) ObserveMonth(s types.MonthSnapshot) {
	if r == nil {
		return
	}
	r.month.Set(float64(s.Month))
	r.price.Set(s.Price)
	r.deepPool.WithLabelValues("token").Set(s.DeepPool.Token)
	r.deepPool.WithLabelValues("numeraire").Set(s.DeepPool.Numeraire)
	r.positionDepth.WithLabelValues("deep_pool", "token").Set(s.DeepPoolDepth.Token)
	r.positionDepth.WithLabelValues("deep_pool", "numeraire").Set(s.DeepPoolDepth.Numeraire)
	r.positionDepth.WithLabelValues("positions", "token").Set(s.PositionDepth.Token)
	r.positionDepth.WithLabelValues("positions", "numeraire").Set(s.PositionDepth.Numeraire)
	setDec(r.remainingSupply, "remaining_supply", s.RemainingSupply)
	setDec(r.redeemedCumulative, "redeemed_total", s.RedeemedTotal)
	monthRedeemed := sdkmath.LegacyZeroDec()
	for _, amount := range s.Redeemed {
		if !amount.IsNil() {
			monthRedeemed = monthRedeemed.Add(amount)
		}
	}
	setDec(r.redeemed, "redeemed_month", monthRedeemed)
	r.redemptions.Add(float64(len(s.Redeemed)))
	r.skippedTrades.Add(float64(s.SkippedTrades))
	for tvlType, amount := range s.TVLByType {
		r.tvl.WithLabelValues(tvlType).Set(amount)
	}
	r.revenue.Set(s.CumulativeRevenue)
	// the redeem-now sentinel is not exported
	if !s.RedeemNow && !math.IsInf(s.ExpectedIRR, 0) && !math.IsNaN(s.ExpectedIRR) {
		r.expectedIRR.Set(s.ExpectedIRR)
	}
}

// setDec leaves the gauge unchanged when the value cannot be represented as a float.
func setDec(g prometheus.Gauge, name string, value sdkmath.LegacyDec) {
	if value.IsNil() {
		return
	}
	f, err := utils.DecToFloat64(value)
	if err != nil {
		metricsLogger.Warn().Err(err).Str("gauge", name).Msg("Skipping gauge update")
		return
	}
	g.Set(f)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
