package store

import (
	"fmt"
	"sync"

	"exchange-sim-go/order"
)

// EventSink 可选的结构化日志回调。
type EventSink func(string, map[string]interface{})

// OrderStore 内存订单仓储。撮合核心对每个通过准入的订单调用一次
// Save，之后不再依赖仓储内容；查询接口供上层/回查使用。
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*order.SpecificOrder
	sink   EventSink
}

// New 创建仓储。
func New(sink EventSink) *OrderStore {
	return &OrderStore{
		orders: make(map[string]*order.SpecificOrder),
		sink:   sink,
	}
}

// Save 持久化订单；重复保存同一 ID 视为覆盖。
func (s *OrderStore) Save(o *order.SpecificOrder) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("store: order without id")
	}
	s.mu.Lock()
	s.orders[o.ID] = o
	count := len(s.orders)
	s.mu.Unlock()
	s.logEvent("order_saved", map[string]interface{}{
		"order_id": o.ID,
		"market":   o.Market.Symbol,
		"volume":   o.Volume,
		"count":    count,
	})
	return nil
}

// FindByID 按 ID 查询。
func (s *OrderStore) FindByID(id string) (*order.SpecificOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

// Count 当前已持久化订单数。
func (s *OrderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *OrderStore) logEvent(event string, fields map[string]interface{}) {
	if s == nil || s.sink == nil {
		return
	}
	s.sink(event, fields)
}
