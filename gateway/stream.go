package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"exchange-sim-go/bus"
	"exchange-sim-go/infrastructure/logger"
	"exchange-sim-go/order"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// FillMessage 成交事件的线格式。价格/数量同时给出计数与十进制投影。
type FillMessage struct {
	Type       string `json:"type"` // "fill"
	OrderID    string `json:"order_id"`
	Market     string `json:"market"`
	PriceCount int64  `json:"price_count"`
	Price      string `json:"price"`
	Volume     int64  `json:"volume_count"`
	Commission string `json:"commission,omitempty"`
	Time       string `json:"time"`
}

// UpdateMessage 订单状态变更的线格式。
type UpdateMessage struct {
	Type    string `json:"type"` // "order_update"
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Open    bool   `json:"open"`
	Time    string `json:"time"`
}

// StreamServer 通过 websocket 向策略客户端广播成交与订单状态变更。
// 只写不读：客户端消息被忽略，写失败即断开。
type StreamServer struct {
	bus *bus.Bus
	log *logger.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]chan []byte
}

// NewStreamServer 创建推送服务。
func NewStreamServer(b *bus.Bus, log *logger.Logger) *StreamServer {
	return &StreamServer{
		bus: b,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]chan []byte),
	}
}

// Handler 返回 /ws 处理函数，便于测试与复用。
func (s *StreamServer) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("WebSocket upgrade failed", zap.Error(err))
			return
		}
		send := make(chan []byte, sendBufferSize)
		s.mu.Lock()
		s.conns[conn] = send
		s.mu.Unlock()
		go s.writePump(conn, send)
	}
}

// Run 订阅总线并广播，阻塞直到 ctx 结束。
func (s *StreamServer) Run(ctx context.Context) {
	fills := s.bus.SubscribeFill(sendBufferSize)
	updates := s.bus.SubscribeUpdate(sendBufferSize)
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case f := <-fills:
			s.broadcast(encodeFill(f))
		case u := <-updates:
			s.broadcast(encodeUpdate(u))
		}
	}
}

// Serve 在 addr 上启动 HTTP 服务（/ws），阻塞运行。
func (s *StreamServer) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go s.Run(ctx)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func encodeFill(f *order.Fill) []byte {
	mkt := f.Market()
	msg := FillMessage{
		Type:       "fill",
		OrderID:    f.Order().ID,
		Market:     mkt.Symbol,
		PriceCount: f.Price(),
		Price:      mkt.PriceDecimal(f.Price()).String(),
		Volume:     f.Volume(),
		Time:       f.Time().UTC().Format(time.RFC3339Nano),
	}
	if c, ok := f.Commission(); ok {
		msg.Commission = c.String()
	}
	raw, _ := json.Marshal(msg)
	return raw
}

func encodeUpdate(u order.Update) []byte {
	raw, _ := json.Marshal(UpdateMessage{
		Type:    "order_update",
		OrderID: u.OrderID,
		Status:  string(u.State.Status),
		Open:    u.State.Open,
		Time:    u.Time.UTC().Format(time.RFC3339Nano),
	})
	return raw
}

// broadcast 非阻塞投递；慢客户端丢消息而不是拖慢广播。
func (s *StreamServer) broadcast(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, send := range s.conns {
		select {
		case send <- raw:
		default:
		}
	}
}

func (s *StreamServer) writePump(conn *websocket.Conn, send chan []byte) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()
	for raw := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *StreamServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, send := range s.conns {
		close(send)
		delete(s.conns, conn)
	}
}
