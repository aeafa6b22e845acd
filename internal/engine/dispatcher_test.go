package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-sim-go/fees"
	"exchange-sim-go/internal/store"
	"exchange-sim-go/market"
	"exchange-sim-go/order"
)

var ethMarket = market.Market{Symbol: "ETH.USD", PriceBasis: 1, VolumeBasis: 1}

func newMarketEngine(t *testing.T, mkt market.Market, pub *capturingPublisher) *Engine {
	t.Helper()
	eng, err := New(Config{Market: mkt}, Components{
		Fees:      fees.NewBpsSchedule(10, nil),
		Repo:      store.New(nil),
		Publisher: pub,
		Logger:    quietLogger(t),
	})
	require.NoError(t, err)
	return eng
}

func TestDispatcherRejectsDuplicateMarket(t *testing.T) {
	d := NewDispatcher()
	pub := &capturingPublisher{}
	require.NoError(t, d.Register(newMarketEngine(t, testMarket, pub)))
	assert.Error(t, d.Register(newMarketEngine(t, testMarket, pub)))
}

func TestDispatcherRoutesByMarket(t *testing.T) {
	d := NewDispatcher()
	btcPub := &capturingPublisher{}
	ethPub := &capturingPublisher{}
	require.NoError(t, d.Register(newMarketEngine(t, testMarket, btcPub)))
	require.NoError(t, d.Register(newMarketEngine(t, ethMarket, ethPub)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	defer d.Stop()

	o := order.NewSpecificOrder("o1", time.Now(), testMarket, 5)
	require.NoError(t, d.Place(o))

	now := time.Now()
	d.OnBook(market.Book{
		Market: testMarket,
		Time:   now,
		Asks:   []market.Offer{{Market: testMarket, Price: 101, Volume: 5, Time: now}},
	})

	deadline := time.After(2 * time.Second)
	for btcPub.fillCount() < 1 {
		select {
		case <-deadline:
			t.Fatalf("no fill on BTC engine")
		case <-time.After(5 * time.Millisecond):
		}
	}
	assert.Equal(t, 0, ethPub.fillCount(), "ETH engine must not see BTC fills")
}

func TestDispatcherPlaceUnknownMarket(t *testing.T) {
	d := NewDispatcher()
	o := order.NewSpecificOrder("o1", time.Now(), ethMarket, 5)
	assert.Error(t, d.Place(o))
}

func TestDispatcherBroadcastsOrderUpdates(t *testing.T) {
	d := NewDispatcher()
	pub := &capturingPublisher{}
	btc := newMarketEngine(t, testMarket, pub)
	eth := newMarketEngine(t, ethMarket, pub)
	require.NoError(t, d.Register(btc))
	require.NoError(t, d.Register(eth))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	defer d.Stop()

	o := order.NewSpecificOrder("o1", time.Now(), testMarket, 5)
	require.NoError(t, d.Place(o))
	require.Equal(t, 1, btc.PendingCount())

	// 关单通知不带市场，广播给全部引擎；不持有者为空操作
	d.OnOrderUpdate(order.Update{
		OrderID: "o1",
		State:   order.StateOf(order.StatusCancelled),
		Time:    time.Now(),
	})

	deadline := time.After(2 * time.Second)
	for btc.PendingCount() > 0 {
		select {
		case <-deadline:
			t.Fatalf("order not removed from pending set")
		case <-time.After(5 * time.Millisecond):
		}
	}
	assert.Equal(t, 0, eth.PendingCount())
}
