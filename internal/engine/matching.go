package engine

import (
	"strconv"
	"time"

	"exchange-sim-go/market"
	"exchange-sim-go/metrics"
	"exchange-sim-go/order"
)

// handleBook 对一份快照撮合所有挂单。先按价格优先扫描生成全部
// 成交，再按生成顺序逐笔：取佣金、赋值、挂到订单、广播。
//
// 费率服务失败按逐笔隔离：该笔成交被丢弃（不挂到订单、不广播），
// 同批其余成交不受影响。
//
// DepleteOffers 关闭时为近似模拟：同一档位数量不随撮合消耗，
// 同一快照内多个订单可能吃到同一份流动性。
func (e *Engine) handleBook(b market.Book) {
	if !b.Market.Equals(e.cfg.Market) {
		return
	}
	if err := b.Validate(); err != nil {
		e.stats.mu.Lock()
		e.stats.TotalErrors++
		e.stats.mu.Unlock()
		e.log.LogError(err, map[string]interface{}{"market": b.Market.Symbol})
		return
	}
	started := time.Now()

	e.mu.RLock()
	pending := make([]*order.SpecificOrder, len(e.pending))
	copy(pending, e.pending)
	e.mu.RUnlock()

	var askUsed, bidUsed []int64
	if e.cfg.DepleteOffers {
		askUsed = make([]int64, len(b.Asks))
		bidUsed = make([]int64, len(b.Bids))
	}

	var fills []*order.Fill
	for _, o := range pending {
		if !e.sm.IsMatchable(o.Status) {
			continue
		}
		if o.IsBid() {
			fills = append(fills, e.matchBid(o, b, askUsed)...)
		} else {
			fills = append(fills, e.matchAsk(o, b, bidUsed)...)
		}
	}

	for _, f := range fills {
		e.applyFill(f)
	}

	e.stats.mu.Lock()
	e.stats.TotalBooks++
	e.stats.mu.Unlock()
	metrics.BooksProcessed.WithLabelValues(b.Market.Symbol).Inc()
	metrics.MatchLatency.WithLabelValues(b.Market.Symbol).Observe(time.Since(started).Seconds())
}

// matchBid 买单沿卖盘升序扫描。限价低于档位价时停止：后续档只会
// 更差。每档成交量取档位可用量与剩余量的较小者。
func (e *Engine) matchBid(o *order.SpecificOrder, b market.Book, askUsed []int64) []*order.Fill {
	remaining := o.UnfilledVolume()
	if remaining <= 0 {
		return nil
	}
	var fills []*order.Fill
	for i := range b.Asks {
		ask := b.Asks[i]
		if o.LimitPrice != nil && *o.LimitPrice < ask.Price {
			break
		}
		avail := abs64(ask.Volume)
		if askUsed != nil {
			avail -= askUsed[i]
			if avail <= 0 {
				continue
			}
		}
		fillVolume := min64(avail, remaining)
		fills = append(fills, order.NewFill(o, ask.Time, ask.Market, ask.Price, fillVolume))
		remaining -= fillVolume
		if askUsed != nil {
			askUsed[i] += fillVolume
		}
		if remaining == 0 {
			break
		}
	}
	return fills
}

// matchAsk 卖单沿买盘降序扫描，成交量保持负号。限价高于档位价时
// 停止。
func (e *Engine) matchAsk(o *order.SpecificOrder, b market.Book, bidUsed []int64) []*order.Fill {
	remaining := o.UnfilledVolume() // 负数
	if remaining >= 0 {
		return nil
	}
	var fills []*order.Fill
	for i := range b.Bids {
		bid := b.Bids[i]
		if o.LimitPrice != nil && *o.LimitPrice > bid.Price {
			break
		}
		avail := abs64(bid.Volume)
		if bidUsed != nil {
			avail -= bidUsed[i]
			if avail <= 0 {
				continue
			}
		}
		fillVolume := -min64(avail, -remaining)
		fills = append(fills, order.NewFill(o, bid.Time, bid.Market, bid.Price, fillVolume))
		remaining -= fillVolume
		if bidUsed != nil {
			bidUsed[i] += -fillVolume
		}
		if remaining == 0 {
			break
		}
	}
	return fills
}

// applyFill 佣金 -> 挂单 -> 状态推进 -> 广播，按生成顺序逐笔执行。
func (e *Engine) applyFill(f *order.Fill) {
	o := f.Order()
	commission, err := e.fees.Commission(f)
	if err != nil {
		e.stats.mu.Lock()
		e.stats.TotalErrors++
		e.stats.mu.Unlock()
		metrics.CommissionErrors.WithLabelValues(f.Market().Symbol).Inc()
		e.log.LogError(err, map[string]interface{}{
			"order_id": o.ID,
			"market":   f.Market().Symbol,
		})
		return
	}
	if err := f.SetCommission(commission); err != nil {
		e.log.LogError(err, map[string]interface{}{"order_id": o.ID})
		return
	}
	o.AddFill(f)

	if o.IsFilled() {
		e.transition(o, order.StatusFilled)
		e.removeFromPending(o.ID)
	} else {
		e.transition(o, order.StatusPartial)
	}

	e.stats.mu.Lock()
	e.stats.TotalFills++
	e.stats.mu.Unlock()
	side := "ask"
	if o.IsBid() {
		side = "bid"
	}
	commissionF, _ := commission.Float64()
	metrics.RecordFill(f.Market().Symbol, side, float64(abs64(f.Volume())), commissionF)
	e.log.LogFill("mock_fill", map[string]interface{}{
		"order_id":   o.ID,
		"market":     f.Market().Symbol,
		"price":      strconv.FormatInt(f.Price(), 10),
		"volume":     strconv.FormatInt(f.Volume(), 10),
		"commission": commission.String(),
	})
	e.pub.PublishFill(f)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
