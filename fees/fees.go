package fees

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"exchange-sim-go/order"
)

// Service 费率服务：输入一笔成交，输出应计佣金（报价币种，十进制）。
// 由撮合核心在成交生成后逐笔调用。
type Service interface {
	Commission(f *order.Fill) (decimal.Decimal, error)
}

var tenThousand = decimal.NewFromInt(10000)

// BpsSchedule 按市场的基点费率表。未配置的市场使用默认费率；
// 默认费率为负（未设置）时返回错误，由调用方决定丢弃该笔成交。
type BpsSchedule struct {
	mu         sync.RWMutex
	defaultBps decimal.Decimal
	hasDefault bool
	markets    map[string]decimal.Decimal
}

// NewBpsSchedule 创建费率表；defaultBps < 0 表示没有默认费率。
func NewBpsSchedule(defaultBps float64, markets map[string]float64) *BpsSchedule {
	s := &BpsSchedule{markets: make(map[string]decimal.Decimal, len(markets))}
	if defaultBps >= 0 {
		s.defaultBps = decimal.NewFromFloat(defaultBps)
		s.hasDefault = true
	}
	for sym, bps := range markets {
		s.markets[sym] = decimal.NewFromFloat(bps)
	}
	return s
}

// SetRate 更新单个市场费率（配置热更新入口）。
func (s *BpsSchedule) SetRate(symbol string, bps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[symbol] = decimal.NewFromFloat(bps)
}

// Rate 返回市场适用的费率。
func (s *BpsSchedule) Rate(symbol string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if bps, ok := s.markets[symbol]; ok {
		return bps, true
	}
	if s.hasDefault {
		return s.defaultBps, true
	}
	return decimal.Zero, false
}

// Commission 名义金额 × 费率。名义金额 = |价格 × 数量|，按市场基数
// 投影为十进制后计算。
func (s *BpsSchedule) Commission(f *order.Fill) (decimal.Decimal, error) {
	mkt := f.Market()
	bps, ok := s.Rate(mkt.Symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("no fee rate for market %s", mkt.Symbol)
	}
	price := mkt.PriceDecimal(f.Price())
	volume := mkt.VolumeDecimal(f.Volume()).Abs()
	notional := price.Mul(volume)
	return notional.Mul(bps).Div(tenThousand), nil
}
