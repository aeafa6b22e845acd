package order

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"exchange-sim-go/market"
)

// ErrCommissionAssigned 佣金只能赋值一次。
var ErrCommissionAssigned = errors.New("commission already assigned")

// Fill 一笔成交的不可变记录。价格/数量为整数计数，数量符号与
// 成交方向一致（买为正，卖为负）。佣金在成交生成后由费率服务
// 赋值一次，此后不再变更。
type Fill struct {
	order  *SpecificOrder
	time   time.Time
	market market.Market
	price  int64
	volume int64

	mu            sync.Mutex
	commission    decimal.Decimal
	commissionSet bool
}

// NewFill 构造成交记录。
func NewFill(o *SpecificOrder, t time.Time, mkt market.Market, price, volume int64) *Fill {
	return &Fill{order: o, time: t, market: mkt, price: price, volume: volume}
}

// Order 所属订单。
func (f *Fill) Order() *SpecificOrder { return f.order }

// Time 成交时间（取自被吃档位的时间戳）。
func (f *Fill) Time() time.Time { return f.time }

// Market 成交市场。
func (f *Fill) Market() market.Market { return f.market }

// Price 成交价格计数。
func (f *Fill) Price() int64 { return f.price }

// Volume 成交数量计数（带符号）。
func (f *Fill) Volume() int64 { return f.volume }

// SetCommission 赋值佣金；重复赋值返回 ErrCommissionAssigned。
func (f *Fill) SetCommission(c decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commissionSet {
		return ErrCommissionAssigned
	}
	f.commission = c
	f.commissionSet = true
	return nil
}

// Commission 返回佣金；未赋值时第二个返回值为 false。
func (f *Fill) Commission() (decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commission, f.commissionSet
}

// String 便于日志输出。
func (f *Fill) String() string {
	return fmt.Sprintf("fill{order=%s market=%s price=%d volume=%d}",
		f.order.ID, f.market.Symbol, f.price, f.volume)
}
