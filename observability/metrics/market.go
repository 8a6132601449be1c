package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	operations   *prometheus.CounterVec
	tickets      *prometheus.CounterVec
	accrued      *prometheus.CounterVec
	claimed      *prometheus.CounterVec
	sequence     prometheus.Gauge
	feePercent   prometheus.Gauge
	shippingAuth prometheus.Counter
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_operations_total",
				Help: "Count of ledger operations by name and outcome.",
			}, []string{"op", "result"}),
			tickets: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_tickets_total",
				Help: "Count of ticket transitions by resulting status.",
			}, []string{"status"}),
			accrued: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_claimable_accrued_total",
				Help: "Protocol balances accrued at release by bucket and token, in base units.",
			}, []string{"bucket", "token"}),
			claimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_claimable_claimed_total",
				Help: "Protocol balances claimed by the admin by bucket and token, in base units.",
			}, []string{"bucket", "token"}),
			sequence: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_sequence",
				Help: "Last committed ledger sequence number.",
			}),
			feePercent: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "market_fee_percent",
				Help: "Fee currently charged on new tickets, in percent.",
			}),
			shippingAuth: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_shipping_authorizations_total",
				Help: "Count of shipping authorizations consumed.",
			}),
		}
		prometheus.MustRegister(
			marketRegistry.operations,
			marketRegistry.tickets,
			marketRegistry.accrued,
			marketRegistry.claimed,
			marketRegistry.sequence,
			marketRegistry.feePercent,
			marketRegistry.shippingAuth,
		)
	})
	return marketRegistry
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func (m *MarketMetrics) ObserveOperation(op, result string) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = "ok"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *MarketMetrics) ObserveTicket(status string) {
	if m == nil {
		return
	}
	m.tickets.WithLabelValues(status).Inc()
}

func (m *MarketMetrics) ObserveAccrued(bucket, token string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.accrued.WithLabelValues(bucket, token).Add(bigToFloat(amount))
}

func (m *MarketMetrics) ObserveClaimed(bucket, token string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.claimed.WithLabelValues(bucket, token).Add(bigToFloat(amount))
}

func (m *MarketMetrics) SetSequence(seq uint64) {
	if m == nil {
		return
	}
	m.sequence.Set(float64(seq))
}

// SetFee records the current fee given in 18 decimal fixed point percent.
func (m *MarketMetrics) SetFee(fee *big.Int) {
	if m == nil {
		return
	}
	f := new(big.Float).SetInt(fee)
	f.Quo(f, big.NewFloat(1e18))
	v, _ := f.Float64()
	m.feePercent.Set(v)
}

func (m *MarketMetrics) IncShippingAuthorization() {
	if m == nil {
		return
	}
	m.shippingAuth.Inc()
}
