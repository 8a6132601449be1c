package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMarketCounters(t *testing.T) {
	m := Market()
	if Market() != m {
		t.Fatalf("expected a singleton")
	}

	ops := m.operations.WithLabelValues("pay_product", "ok")
	before := testutil.ToFloat64(ops)
	m.ObserveOperation("pay_product", "")
	m.ObserveOperation("pay_product", "ok")
	if got := testutil.ToFloat64(ops) - before; got != 2 {
		t.Fatalf("expected 2 operations, got %v", got)
	}
	unknown := m.operations.WithLabelValues("unknown", "state")
	before = testutil.ToFloat64(unknown)
	m.ObserveOperation("", "state")
	if got := testutil.ToFloat64(unknown) - before; got != 1 {
		t.Fatalf("expected the unnamed operation under unknown, got %v", got)
	}

	sold := m.tickets.WithLabelValues("SOLD")
	before = testutil.ToFloat64(sold)
	m.ObserveTicket("SOLD")
	if got := testutil.ToFloat64(sold) - before; got != 1 {
		t.Fatalf("expected 1 sold ticket, got %v", got)
	}

	accrued := m.accrued.WithLabelValues("fee", "native")
	before = testutil.ToFloat64(accrued)
	m.ObserveAccrued("fee", "native", big.NewInt(18))
	m.ObserveAccrued("fee", "native", big.NewInt(0))
	if got := testutil.ToFloat64(accrued) - before; got != 18 {
		t.Fatalf("expected 18 accrued, got %v", got)
	}
}

func TestMarketGauges(t *testing.T) {
	m := Market()
	m.SetSequence(42)
	if got := testutil.ToFloat64(m.sequence); got != 42 {
		t.Fatalf("expected sequence 42, got %v", got)
	}

	fee, _ := new(big.Int).SetString("10000000000000000000", 10)
	m.SetFee(fee)
	var out dto.Metric
	if err := m.feePercent.Write(&out); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := out.GetGauge().GetValue(); got != 10 {
		t.Fatalf("expected fee 10%%, got %v", got)
	}

	var nilMetrics *MarketMetrics
	nilMetrics.ObserveOperation("x", "ok")
	nilMetrics.SetFee(fee)
}
