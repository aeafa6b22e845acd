package order

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"exchange-sim-go/market"
)

var (
	// ErrNoFills 订单尚无成交，均价不存在。
	ErrNoFills = errors.New("order has no fills")
	// ErrZeroNetVolume 成交净数量为零（完全对冲），均价无定义。
	ErrZeroNetVolume = errors.New("net fill volume is zero")
)

// avgPriceScale 均价除法保留的小数位；DivRound 四舍五入（远离零）。
const avgPriceScale = 16

// Base 订单公共字段，被 SpecificOrder / GeneralOrder 共享。
// 状态由生命周期管理器通过状态机推进，成交集合只增不减。
type Base struct {
	ID         string
	Created    time.Time
	Portfolio  string
	FillType   FillType
	MarginType MarginType
	Comment    string
	Expiration time.Time // 零值表示无过期时间
	Force      bool      // 允许越过各类熔断/panic 限制
	Emulation  bool      // 允许用模拟方式实现交易所不原生支持的订单类型
	ParentID   string    // 父 GeneralOrder 的 ID，空表示无；经 Registry 回查
	StopPrice  *int64
	LimitPrice *int64
	Status     Status

	mu    sync.Mutex
	fills []*Fill
}

// AddFill 追加一笔成交。集合只增不减。
func (b *Base) AddFill(f *Fill) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fills = append(b.fills, f)
}

// Fills 返回成交集合的只读副本。
func (b *Base) Fills() []*Fill {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Fill, len(b.fills))
	copy(out, b.fills)
	return out
}

// HasFills 是否已有成交。
func (b *Base) HasFills() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fills) > 0
}

// FilledVolume 已成交净数量（带符号计数）。
func (b *Base) FilledVolume() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sum int64
	for _, f := range b.fills {
		sum += f.Volume()
	}
	return sum
}

// AverageFillPrice 成交量加权均价，定点十进制计算。
// 无成交返回 ErrNoFills（“不存在”而非零值）；净数量为零返回
// ErrZeroNetVolume 而不是产出未定义的数值。
func (b *Base) AverageFillPrice() (decimal.Decimal, error) {
	b.mu.Lock()
	fills := make([]*Fill, len(b.fills))
	copy(fills, b.fills)
	b.mu.Unlock()

	if len(fills) == 0 {
		return decimal.Zero, ErrNoFills
	}
	sumProduct := decimal.Zero
	volume := decimal.Zero
	for _, f := range fills {
		price := decimal.NewFromInt(f.Price())
		vol := decimal.NewFromInt(f.Volume())
		sumProduct = sumProduct.Add(price.Mul(vol))
		volume = volume.Add(vol)
	}
	if volume.IsZero() {
		return decimal.Zero, ErrZeroNetVolume
	}
	return sumProduct.DivRound(volume, avgPriceScale), nil
}

// SpecificOrder 绑定到单一市场、可进入撮合的具体订单。
// Volume 带符号：正数为买（bid），负数为卖（ask）。
type SpecificOrder struct {
	Base
	Market market.Market
	Volume int64
}

// NewSpecificOrder 构造具体订单；方向由 volume 符号决定。
func NewSpecificOrder(id string, created time.Time, mkt market.Market, volume int64) *SpecificOrder {
	return &SpecificOrder{
		Base: Base{
			ID:         id,
			Created:    created,
			FillType:   FillTypeGoodTilCancelled,
			MarginType: MarginTypeCashOnly,
			Status:     StatusNew,
		},
		Market: mkt,
		Volume: volume,
	}
}

// IsBid 方向由请求数量的符号固定。
func (o *SpecificOrder) IsBid() bool { return o.Volume > 0 }

// IsAsk 恒等于 !IsBid。
func (o *SpecificOrder) IsAsk() bool { return !o.IsBid() }

// UnfilledVolume 剩余未成交数量（带符号）：请求数量减去成交合计。
func (o *SpecificOrder) UnfilledVolume() int64 {
	return o.Volume - o.FilledVolume()
}

// IsFilled 剩余数量为零即视为完全成交。
func (o *SpecificOrder) IsFilled() bool { return o.UnfilledVolume() == 0 }

// GeneralOrder 策略层父订单；拆解为 SpecificOrder 在核心之外完成。
// 数量用十进制表达，符号约定与 SpecificOrder 一致。
type GeneralOrder struct {
	Base
	Symbol string
	Volume decimal.Decimal
}

// IsBid 方向由数量符号决定。
func (g *GeneralOrder) IsBid() bool { return g.Volume.IsPositive() }

// IsAsk 恒等于 !IsBid。
func (g *GeneralOrder) IsAsk() bool { return !g.IsBid() }
