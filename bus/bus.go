package bus

import (
	"sync"

	"exchange-sim-go/market"
	"exchange-sim-go/order"
)

// Bus 一个轻量事件分发器：撮合核心向外广播成交与订单状态变更，
// 行情源向内广播订单簿快照。投递为非阻塞，慢消费者丢弃而不是拖慢
// 撮合循环。
type Bus struct {
	mu         sync.RWMutex
	bookSubs   []chan market.Book
	fillSubs   []chan *order.Fill
	updateSubs []chan order.Update
}

// New 创建事件分发器。
func New() *Bus {
	return &Bus{
		bookSubs:   make([]chan market.Book, 0),
		fillSubs:   make([]chan *order.Fill, 0),
		updateSubs: make([]chan order.Update, 0),
	}
}

// SubscribeBook 订阅订单簿快照。
func (b *Bus) SubscribeBook(buffer int) <-chan market.Book {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan market.Book, buffer)
	b.mu.Lock()
	b.bookSubs = append(b.bookSubs, ch)
	b.mu.Unlock()
	return ch
}

// SubscribeFill 订阅成交事件。
func (b *Bus) SubscribeFill(buffer int) <-chan *order.Fill {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan *order.Fill, buffer)
	b.mu.Lock()
	b.fillSubs = append(b.fillSubs, ch)
	b.mu.Unlock()
	return ch
}

// SubscribeUpdate 订阅订单状态变更。
func (b *Bus) SubscribeUpdate(buffer int) <-chan order.Update {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan order.Update, buffer)
	b.mu.Lock()
	b.updateSubs = append(b.updateSubs, ch)
	b.mu.Unlock()
	return ch
}

// PublishBook 广播快照。
func (b *Bus) PublishBook(bk market.Book) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.bookSubs {
		select {
		case ch <- bk:
		default:
		}
	}
}

// PublishFill 广播成交。
func (b *Bus) PublishFill(f *order.Fill) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.fillSubs {
		select {
		case ch <- f:
		default:
		}
	}
}

// PublishUpdate 广播状态变更。
func (b *Bus) PublishUpdate(u order.Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.updateSubs {
		select {
		case ch <- u:
		default:
		}
	}
}
