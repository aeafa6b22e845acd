package order

import "time"

// FillType 订单成交方式。
type FillType string

const (
	// FillTypeGoodTilCancelled 挂单直到显式撤销或过期
	FillTypeGoodTilCancelled FillType = "GOOD_TIL_CANCELLED"
	// FillTypeGTCOrMarginCap 挂单直到撤销、过期或达到可用保证金上限
	FillTypeGTCOrMarginCap FillType = "GTC_OR_MARGIN_CAP"
	// FillTypeCancelRemainder 部分成交后撤销剩余数量
	FillTypeCancelRemainder FillType = "CANCEL_REMAINDER"
	// FillTypeLimit 以限价或更优价格成交
	FillTypeLimit FillType = "LIMIT"
	// FillTypeStopLimit 触发价触发限价单（模拟撮合不支持，下单即拒绝）
	FillTypeStopLimit FillType = "STOP_LIMIT"
	// FillTypeTrailingStopLimit 追踪止损限价单（模拟撮合不支持，下单即拒绝）
	FillTypeTrailingStopLimit FillType = "TRAILING_STOP_LIMIT"
)

// RequiresTrigger 该成交方式是否依赖止损触发逻辑。
func (ft FillType) RequiresTrigger() bool {
	return ft == FillTypeStopLimit || ft == FillTypeTrailingStopLimit
}

// MarginType 保证金模式。
type MarginType string

const (
	// MarginTypeUseMargin 可用信用额度内交易
	MarginTypeUseMargin MarginType = "USE_MARGIN"
	// MarginTypeCashOnly 仅用现货余额交易
	MarginTypeCashOnly MarginType = "CASH_ONLY"
)

// Status 订单生命周期状态。
type Status string

const (
	StatusNew       Status = "NEW"
	StatusPlaced    Status = "PLACED"
	StatusPartial   Status = "PARTIALLY_FILLED"
	StatusFilled    Status = "FILLED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
	StatusRejected  Status = "REJECTED"
)

// State 订单状态快照；Open=false 表示订单已关闭，不再可撮合。
type State struct {
	Status Status
	Open   bool
}

// StateOf 根据状态推导 Open 标志。
func StateOf(status Status) State {
	return State{Status: status, Open: !IsFinal(status)}
}

// IsFinal 终态判断（终态订单从挂单集合移除）。
func IsFinal(status Status) bool {
	switch status {
	case StatusFilled, StatusCancelled, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// Update 订单状态变更事件。撮合核心只消费 Open=false 的事件，
// 用于从挂单集合移除订单；OrderID 为弱引用，按需回查仓储。
type Update struct {
	OrderID string
	State   State
	Time    time.Time
}
