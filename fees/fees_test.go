package fees

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"exchange-sim-go/market"
	"exchange-sim-go/order"
)

var btc = market.Market{Symbol: "BTC.USD", PriceBasis: 100, VolumeBasis: 1}

func fillOf(t *testing.T, mkt market.Market, price, volume int64) *order.Fill {
	t.Helper()
	o := order.NewSpecificOrder("o1", time.Now(), mkt, volume)
	return order.NewFill(o, time.Now(), mkt, price, volume)
}

func TestCommissionUsesMarketRate(t *testing.T) {
	s := NewBpsSchedule(-1, map[string]float64{"BTC.USD": 10})

	// 价格计数 10100 / 基数 100 = 101.00，名义 101×5，10bps
	c, err := s.Commission(fillOf(t, btc, 10100, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := decimal.RequireFromString("0.505")
	if !c.Equal(want) {
		t.Fatalf("expected %s, got %s", want, c)
	}
}

func TestCommissionAbsoluteOnAskSide(t *testing.T) {
	s := NewBpsSchedule(10, nil)
	c, err := s.Commission(fillOf(t, btc, 10100, -5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsPositive() {
		t.Fatalf("commission must be positive for sells, got %s", c)
	}
}

func TestCommissionFallsBackToDefault(t *testing.T) {
	s := NewBpsSchedule(5, map[string]float64{"ETH.USD": 10})
	c, err := s.Commission(fillOf(t, btc, 10000, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 100 × 2 × 5bps = 0.1
	want := decimal.RequireFromString("0.1")
	if !c.Equal(want) {
		t.Fatalf("expected %s, got %s", want, c)
	}
}

func TestCommissionErrorsWithoutRate(t *testing.T) {
	s := NewBpsSchedule(-1, nil)
	if _, err := s.Commission(fillOf(t, btc, 10000, 2)); err == nil {
		t.Fatalf("expected error for unconfigured market")
	}
}

func TestSetRateHotUpdate(t *testing.T) {
	s := NewBpsSchedule(-1, nil)
	if _, ok := s.Rate("BTC.USD"); ok {
		t.Fatalf("rate must be absent before SetRate")
	}
	s.SetRate("BTC.USD", 20)
	bps, ok := s.Rate("BTC.USD")
	if !ok || !bps.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected 20 bps after SetRate, got %s (ok=%v)", bps, ok)
	}
}
