package engine

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"exchange-sim-go/metrics"
	"exchange-sim-go/order"
)

// RejectedOrder 准入阶段拒绝；订单不会进入挂单集合，也不会持久化。
type RejectedOrder struct {
	OrderID string
	Reason  string
}

func (r *RejectedOrder) Error() string {
	return fmt.Sprintf("order %s rejected: %s", r.OrderID, r.Reason)
}

// handlePlace 准入检查。止损价或止损触发类订单一律拒绝：触发逻辑
// 不在模拟撮合范围内。通过准入的订单先持久化（失败不重试），再进入
// 挂单集合并转为 PLACED。
func (e *Engine) handlePlace(o *order.SpecificOrder) error {
	reason := ""
	switch {
	case o.StopPrice != nil:
		reason = "stop prices unsupported"
	case o.FillType.RequiresTrigger():
		reason = "fill type " + string(o.FillType) + " unsupported"
	}
	if reason != "" {
		e.transition(o, order.StatusRejected)
		e.stats.mu.Lock()
		e.stats.TotalReject++
		e.stats.mu.Unlock()
		metrics.OrdersRejected.WithLabelValues(o.Market.Symbol, "unsupported").Inc()
		e.log.LogOrder("order_rejected", o.ID, map[string]interface{}{
			"market": o.Market.Symbol,
			"reason": reason,
		})
		return &RejectedOrder{OrderID: o.ID, Reason: reason}
	}

	if err := e.repo.Save(o); err != nil {
		// 持久化是 fire-and-forget：失败记日志，不阻塞下单
		e.stats.mu.Lock()
		e.stats.TotalErrors++
		e.stats.mu.Unlock()
		e.log.LogError(err, map[string]interface{}{"order_id": o.ID})
	}

	e.mu.Lock()
	e.pending = append(e.pending, o)
	pendingCount := len(e.pending)
	e.mu.Unlock()
	e.transition(o, order.StatusPlaced)

	e.stats.mu.Lock()
	e.stats.TotalPlaced++
	e.stats.mu.Unlock()
	metrics.PendingOrders.WithLabelValues(e.cfg.Market.Symbol).Set(float64(pendingCount))
	e.log.LogOrder("order_placed", o.ID, map[string]interface{}{
		"market": o.Market.Symbol,
		"volume": strconv.FormatInt(o.Volume, 10),
		"bid":    o.IsBid(),
	})
	return nil
}

// handleUpdate 只消费 Open=false 的事件：把订单移出挂单集合。
// 订单不在集合中时为空操作，重复的关单通知无害。
func (e *Engine) handleUpdate(u order.Update) {
	if u.State.Open {
		return
	}
	removed := e.removeFromPending(u.OrderID)
	if !removed {
		return
	}
	// 同步外部关单原因到订单状态（仓储可查时）
	if o, ok := e.repo.FindByID(u.OrderID); ok && !order.IsFinal(o.Status) {
		if err := e.sm.ValidateTransition(o.Status, u.State.Status); err == nil {
			o.Status = u.State.Status
		}
	}
	e.log.LogOrder("order_closed", u.OrderID, map[string]interface{}{
		"status": string(u.State.Status),
	})
}

// removeFromPending 按 ID 从挂单集合移除；返回是否发生移除。
func (e *Engine) removeFromPending(orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, o := range e.pending {
		if o.ID == orderID {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			metrics.PendingOrders.WithLabelValues(e.cfg.Market.Symbol).Set(float64(len(e.pending)))
			return true
		}
	}
	return false
}

// transition 推进订单状态并广播 Update；非法转换只记日志。
func (e *Engine) transition(o *order.SpecificOrder, to order.Status) {
	if err := e.sm.ValidateTransition(o.Status, to); err != nil {
		e.log.Warn("Illegal order state transition",
			zap.String("order_id", o.ID),
			zap.String("from", string(o.Status)),
			zap.String("to", string(to)))
		return
	}
	o.Status = to
	e.pub.PublishUpdate(order.Update{
		OrderID: o.ID,
		State:   order.StateOf(to),
		Time:    time.Now(),
	})
}
