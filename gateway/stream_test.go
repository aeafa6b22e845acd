package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-sim-go/bus"
	"exchange-sim-go/infrastructure/logger"
	"exchange-sim-go/market"
	"exchange-sim-go/order"
)

var testMarket = market.Market{Symbol: "BTC.USD", PriceBasis: 100, VolumeBasis: 1}

func dialStream(t *testing.T, s *StreamServer) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	// 等 handler 完成注册再开始广播
	deadline := time.After(2 * time.Second)
	for {
		s.mu.Lock()
		n := len(s.conns)
		s.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("connection never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}
	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func TestStreamBroadcastsFills(t *testing.T) {
	zl, err := logger.New(logger.Config{Level: "error", Format: "json"})
	require.NoError(t, err)
	b := bus.New()
	s := NewStreamServer(b, zl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	conn, cleanup := dialStream(t, s)
	defer cleanup()

	o := order.NewSpecificOrder("o1", time.Now(), testMarket, 5)
	f := order.NewFill(o, time.Now(), testMarket, 10150, 5)
	require.NoError(t, f.SetCommission(decimal.RequireFromString("0.05")))
	b.PublishFill(f)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg FillMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "fill", msg.Type)
	assert.Equal(t, "o1", msg.OrderID)
	assert.Equal(t, "BTC.USD", msg.Market)
	assert.Equal(t, int64(10150), msg.PriceCount)
	assert.Equal(t, "101.5", msg.Price)
	assert.Equal(t, int64(5), msg.Volume)
	assert.Equal(t, "0.05", msg.Commission)
}

func TestStreamBroadcastsUpdates(t *testing.T) {
	zl, err := logger.New(logger.Config{Level: "error", Format: "json"})
	require.NoError(t, err)
	b := bus.New()
	s := NewStreamServer(b, zl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	conn, cleanup := dialStream(t, s)
	defer cleanup()

	b.PublishUpdate(order.Update{
		OrderID: "o1",
		State:   order.StateOf(order.StatusFilled),
		Time:    time.Now(),
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "order_update", msg.Type)
	assert.Equal(t, "o1", msg.OrderID)
	assert.Equal(t, "FILLED", msg.Status)
	assert.False(t, msg.Open)
}

func TestEncodeFillOmitsMissingCommission(t *testing.T) {
	o := order.NewSpecificOrder("o1", time.Now(), testMarket, 5)
	f := order.NewFill(o, time.Now(), testMarket, 10150, 5)

	var msg FillMessage
	require.NoError(t, json.Unmarshal(encodeFill(f), &msg))
	assert.Empty(t, msg.Commission)
}
