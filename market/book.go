package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Market 标识一个可交易市场，并携带计数到十进制的换算基数。
// PriceBasis/VolumeBasis 表示一个报价单位/数量单位对应多少个计数。
type Market struct {
	Symbol      string
	PriceBasis  int64
	VolumeBasis int64
}

// Key 返回市场的唯一键（事件流按此分片）。
func (m Market) Key() string { return m.Symbol }

// Equals 仅按 Symbol 判等；基数是元数据，不参与路由。
func (m Market) Equals(other Market) bool { return m.Symbol == other.Symbol }

// PriceDecimal 将价格计数投影为十进制，仅用于上报/展示。
func (m Market) PriceDecimal(count int64) decimal.Decimal {
	if m.PriceBasis <= 0 {
		return decimal.NewFromInt(count)
	}
	return decimal.NewFromInt(count).Div(decimal.NewFromInt(m.PriceBasis))
}

// VolumeDecimal 将数量计数投影为十进制。
func (m Market) VolumeDecimal(count int64) decimal.Decimal {
	if m.VolumeBasis <= 0 {
		return decimal.NewFromInt(count)
	}
	return decimal.NewFromInt(count).Div(decimal.NewFromInt(m.VolumeBasis))
}

// Offer 订单簿中的一个价格档：价格/数量均为整数计数。
// Volume 的绝对值为该档可用数量。
type Offer struct {
	Market Market
	Price  int64
	Volume int64
	Time   time.Time
}

// Book 单一市场的订单簿快照。
// Asks 按价格升序，Bids 按价格降序；排序由行情源保证，Validate 仅做校验。
type Book struct {
	Market Market
	Time   time.Time
	Bids   []Offer
	Asks   []Offer
}

// Validate 校验两侧排序约定；价格优先扫描依赖该约定。
func (b Book) Validate() error {
	for i := 1; i < len(b.Asks); i++ {
		if b.Asks[i].Price < b.Asks[i-1].Price {
			return fmt.Errorf("book %s: asks not ascending at index %d", b.Market.Symbol, i)
		}
	}
	for i := 1; i < len(b.Bids); i++ {
		if b.Bids[i].Price > b.Bids[i-1].Price {
			return fmt.Errorf("book %s: bids not descending at index %d", b.Market.Symbol, i)
		}
	}
	return nil
}

// BestBid 返回最优买档；不存在时第二个返回值为 false。
func (b Book) BestBid() (Offer, bool) {
	if len(b.Bids) == 0 {
		return Offer{}, false
	}
	return b.Bids[0], true
}

// BestAsk 返回最优卖档；不存在时第二个返回值为 false。
func (b Book) BestAsk() (Offer, bool) {
	if len(b.Asks) == 0 {
		return Offer{}, false
	}
	return b.Asks[0], true
}

// MidPrice 返回中间价计数；若缺失任一侧返回 0。
func (b Book) MidPrice() int64 {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0
	}
	return (bid.Price + ask.Price) / 2
}
