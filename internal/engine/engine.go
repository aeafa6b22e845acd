package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"exchange-sim-go/fees"
	"exchange-sim-go/infrastructure/logger"
	"exchange-sim-go/market"
	"exchange-sim-go/order"
)

// EngineState 引擎状态
type EngineState int

const (
	// StateIdle 空闲状态
	StateIdle EngineState = iota
	// StateRunning 运行状态
	StateRunning
	// StateStopped 停止状态
	StateStopped
)

// String 返回状态名称
func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Repository 订单持久化协作方。引擎对每个通过准入的订单调用一次
// Save，失败只记日志，不重试。
type Repository interface {
	Save(o *order.SpecificOrder) error
	FindByID(id string) (*order.SpecificOrder, bool)
}

// Publisher 对外事件出口（总线）。
type Publisher interface {
	PublishFill(f *order.Fill)
	PublishUpdate(u order.Update)
}

// Config 引擎配置
type Config struct {
	Market market.Market // 本引擎独占的市场
	// DepleteOffers 为 true 时，同一快照内先到的订单会消耗档位数量，
	// 后续订单只能吃到剩余；为 false 时为近似模拟：同一档
	// 可能被多个订单重复吃到（幽灵成交）。
	DepleteOffers bool
	EventBuffer   int // 事件通道缓冲
}

// Components 引擎依赖组件
type Components struct {
	Fees      fees.Service
	Repo      Repository
	Publisher Publisher
	Logger    *logger.Logger
}

// Engine 单一市场的模拟撮合引擎：消费订单簿快照、下单请求与订单
// 状态变更，产出成交。所有事件由唯一的工作协程按到达顺序逐个处理
// 完毕后再取下一个，挂单集合只被该协程修改；这一全序保证了
// 「先关单后快照」的订单不会再被成交。
type Engine struct {
	cfg  Config
	fees fees.Service
	repo Repository
	pub  Publisher
	log  *logger.Logger

	sm      *order.StateMachine
	pending []*order.SpecificOrder // 挂单集合，按下单顺序

	events   chan event
	stopChan chan struct{}
	doneChan chan struct{}

	state EngineState
	mu    sync.RWMutex

	stats Statistics
}

type event struct {
	book   *market.Book
	update *order.Update
	place  *placeRequest
}

type placeRequest struct {
	order *order.SpecificOrder
	reply chan error
}

// Statistics 引擎统计信息
type Statistics struct {
	StartTime   time.Time
	TotalBooks  int64
	TotalFills  int64
	TotalPlaced int64
	TotalReject int64
	TotalErrors int64
	mu          sync.RWMutex
}

func (s *Statistics) snapshot() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Statistics{
		StartTime:   s.StartTime,
		TotalBooks:  s.TotalBooks,
		TotalFills:  s.TotalFills,
		TotalPlaced: s.TotalPlaced,
		TotalReject: s.TotalReject,
		TotalErrors: s.TotalErrors,
	}
}

// New 创建撮合引擎
func New(cfg Config, components Components) (*Engine, error) {
	if cfg.Market.Symbol == "" {
		return nil, errors.New("engine: market is required")
	}
	if components.Fees == nil {
		return nil, errors.New("engine: fee service is required")
	}
	if components.Repo == nil {
		return nil, errors.New("engine: repository is required")
	}
	if components.Publisher == nil {
		return nil, errors.New("engine: publisher is required")
	}
	if components.Logger == nil {
		return nil, errors.New("engine: logger is required")
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}

	return &Engine{
		cfg:      cfg,
		fees:     components.Fees,
		repo:     components.Repo,
		pub:      components.Publisher,
		log:      components.Logger,
		sm:       order.NewStateMachine(),
		pending:  make([]*order.SpecificOrder, 0),
		events:   make(chan event, cfg.EventBuffer),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		state:    StateIdle,
	}, nil
}

// Start 启动引擎事件循环
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine already started (state: %s)", e.state)
	}
	if e.state == StateStopped {
		e.stopChan = make(chan struct{})
		e.doneChan = make(chan struct{})
	}
	e.state = StateRunning
	e.stats.mu.Lock()
	e.stats.StartTime = time.Now()
	e.stats.mu.Unlock()
	e.mu.Unlock()

	e.log.Info("Matching engine starting",
		zap.String("market", e.cfg.Market.Symbol),
		zap.Bool("deplete_offers", e.cfg.DepleteOffers))

	go e.run(ctx)
	return nil
}

// Stop 停止引擎，等待事件循环退出。
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("engine not running (state: %s)", e.state)
	}
	e.mu.Unlock()

	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}

	select {
	case <-e.doneChan:
	case <-time.After(10 * time.Second):
		e.log.Warn("Timeout waiting for engine to stop")
	}

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()

	e.log.Info("Matching engine stopped", zap.String("market", e.cfg.Market.Symbol))
	return nil
}

// State 当前引擎状态。
func (e *Engine) State() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Stats 统计信息快照。
func (e *Engine) Stats() Statistics {
	return e.stats.snapshot()
}

// Market 本引擎负责的市场。
func (e *Engine) Market() market.Market { return e.cfg.Market }

// PendingCount 当前挂单数；仅用于观测。
func (e *Engine) PendingCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pending)
}

// Place 提交下单请求并同步等待准入结果。请求经事件循环处理，
// 与快照/状态变更共享同一全序。
func (e *Engine) Place(o *order.SpecificOrder) error {
	if o == nil {
		return errors.New("engine: nil order")
	}
	req := &placeRequest{order: o, reply: make(chan error, 1)}
	select {
	case e.events <- event{place: req}:
	case <-e.doneChan:
		return errors.New("engine: not running")
	}
	select {
	case err := <-req.reply:
		return err
	case <-e.doneChan:
		return errors.New("engine: stopped before placement completed")
	}
}

// OnBook 投递一份订单簿快照。
func (e *Engine) OnBook(b market.Book) {
	select {
	case e.events <- event{book: &b}:
	case <-e.doneChan:
	}
}

// OnOrderUpdate 投递一条订单状态变更。
func (e *Engine) OnOrderUpdate(u order.Update) {
	select {
	case e.events <- event{update: &u}:
	case <-e.doneChan:
	}
}

// run 唯一的工作协程：逐事件处理，无内部并行。
func (e *Engine) run(ctx context.Context) {
	defer close(e.doneChan)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopChan:
			return
		case ev := <-e.events:
			switch {
			case ev.place != nil:
				ev.place.reply <- e.handlePlace(ev.place.order)
			case ev.update != nil:
				e.handleUpdate(*ev.update)
			case ev.book != nil:
				e.handleBook(*ev.book)
			}
		}
	}
}
