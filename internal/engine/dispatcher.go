package engine

import (
	"context"
	"fmt"

	"exchange-sim-go/market"
	"exchange-sim-go/order"
)

// Dispatcher 按市场键把事件路由到对应引擎。每个市场的事件流与
// 挂单子集由且仅由一个引擎（一个工作协程）持有，跨市场可以并行，
// 单市场内保持全序。
type Dispatcher struct {
	engines map[string]*Engine
}

// NewDispatcher 创建路由器。
func NewDispatcher() *Dispatcher {
	return &Dispatcher{engines: make(map[string]*Engine)}
}

// Register 登记一个市场引擎；重复登记同一市场报错。
func (d *Dispatcher) Register(e *Engine) error {
	key := e.Market().Key()
	if _, ok := d.engines[key]; ok {
		return fmt.Errorf("dispatcher: market %s already registered", key)
	}
	d.engines[key] = e
	return nil
}

// Engine 返回市场对应的引擎。
func (d *Dispatcher) Engine(key string) (*Engine, bool) {
	e, ok := d.engines[key]
	return e, ok
}

// Start 启动全部引擎。
func (d *Dispatcher) Start(ctx context.Context) error {
	for _, e := range d.engines {
		if err := e.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop 停止全部引擎。
func (d *Dispatcher) Stop() {
	for _, e := range d.engines {
		_ = e.Stop()
	}
}

// Place 把下单请求路由到订单所属市场的引擎。
func (d *Dispatcher) Place(o *order.SpecificOrder) error {
	e, ok := d.engines[o.Market.Key()]
	if !ok {
		return fmt.Errorf("dispatcher: no engine for market %s", o.Market.Key())
	}
	return e.Place(o)
}

// OnBook 按快照市场路由；未知市场丢弃。
func (d *Dispatcher) OnBook(b market.Book) {
	if e, ok := d.engines[b.Market.Key()]; ok {
		e.OnBook(b)
	}
}

// OnOrderUpdate 状态变更只带订单 ID，不带市场，广播给全部引擎；
// 不持有该订单的引擎移除时是空操作。
func (d *Dispatcher) OnOrderUpdate(u order.Update) {
	for _, e := range d.engines {
		e.OnOrderUpdate(u)
	}
}
