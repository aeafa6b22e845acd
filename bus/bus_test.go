package bus

import (
	"testing"
	"time"

	"exchange-sim-go/market"
	"exchange-sim-go/order"
)

var testMarket = market.Market{Symbol: "BTC.USD", PriceBasis: 100, VolumeBasis: 1}

func TestPublishFillReachesAllSubscribers(t *testing.T) {
	b := New()
	ch1 := b.SubscribeFill(4)
	ch2 := b.SubscribeFill(4)

	o := order.NewSpecificOrder("o1", time.Now(), testMarket, 5)
	f := order.NewFill(o, time.Now(), testMarket, 10100, 5)
	b.PublishFill(f)

	for i, ch := range []<-chan *order.Fill{ch1, ch2} {
		select {
		case got := <-ch:
			if got != f {
				t.Fatalf("subscriber %d got wrong fill", i)
			}
		default:
			t.Fatalf("subscriber %d got nothing", i)
		}
	}
}

func TestPublishUpdate(t *testing.T) {
	b := New()
	ch := b.SubscribeUpdate(1)
	b.PublishUpdate(order.Update{OrderID: "o1", State: order.StateOf(order.StatusFilled), Time: time.Now()})

	select {
	case u := <-ch:
		if u.OrderID != "o1" || u.State.Open {
			t.Fatalf("unexpected update: %+v", u)
		}
	default:
		t.Fatalf("no update delivered")
	}
}

func TestPublishBook(t *testing.T) {
	b := New()
	ch := b.SubscribeBook(1)
	b.PublishBook(market.Book{Market: testMarket, Time: time.Now()})

	select {
	case bk := <-ch:
		if bk.Market.Symbol != "BTC.USD" {
			t.Fatalf("unexpected book market %s", bk.Market.Symbol)
		}
	default:
		t.Fatalf("no book delivered")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	ch := b.SubscribeUpdate(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			b.PublishUpdate(order.Update{OrderID: "o1", State: order.StateOf(order.StatusPlaced), Time: time.Now()})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on full subscriber channel")
	}
	// 缓冲 1：最多收到一条，其余被丢弃
	if len(ch) != 1 {
		t.Fatalf("expected exactly one buffered update, got %d", len(ch))
	}
}
