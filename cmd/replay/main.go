package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"exchange-sim-go/bus"
	"exchange-sim-go/config"
	"exchange-sim-go/fees"
	"exchange-sim-go/infrastructure/logger"
	"exchange-sim-go/internal/engine"
	"exchange-sim-go/internal/store"
	"exchange-sim-go/market"
	"exchange-sim-go/order"
)

// replay 离线回放工具：读取 JSONL 格式的订单簿快照，对一个虚拟
// 订单做模拟撮合，输出成交明细与成交均价。
//
// 快照行格式：
//
//	{"time":"2026-08-28T10:00:00Z","bids":[[10099,5]],"asks":[[10101,5],[10102,10]]}
type snapshotLine struct {
	Time time.Time  `json:"time"`
	Bids [][2]int64 `json:"bids"` // [price, volume]
	Asks [][2]int64 `json:"asks"`
}

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	feedPath := flag.String("feed", "", "快照 JSONL 文件")
	symbol := flag.String("symbol", "", "市场（须在配置中定义）")
	volume := flag.Int64("volume", 0, "请求数量计数，正买负卖")
	limit := flag.Int64("limit", 0, "限价计数，0 表示无限价")
	flag.Parse()

	if *feedPath == "" || *symbol == "" || *volume == 0 {
		log.Fatal("usage: replay -feed snapshots.jsonl -symbol SYM -volume N [-limit P]")
	}

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	mc, ok := cfg.Markets[*symbol]
	if !ok {
		log.Fatalf("market %s not in config", *symbol)
	}
	mkt := market.Market{Symbol: *symbol, PriceBasis: mc.PriceBasis, VolumeBasis: mc.VolumeBasis}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Close() }()

	eventBus := bus.New()
	fillCh := eventBus.SubscribeFill(1024)
	eng, err := engine.New(engine.Config{
		Market:        mkt,
		DepleteOffers: cfg.Engine.DepleteOffers,
	}, engine.Components{
		Fees:      fees.NewBpsSchedule(cfg.Fees.DefaultBps, cfg.Fees.Markets),
		Repo:      store.New(nil),
		Publisher: eventBus,
		Logger:    zl,
	})
	if err != nil {
		log.Fatalf("init engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		log.Fatalf("start engine: %v", err)
	}
	defer func() { _ = eng.Stop() }()

	o := order.NewSpecificOrder("replay-1", time.Now(), mkt, *volume)
	if *limit != 0 {
		o.LimitPrice = limit
	}
	if err := eng.Place(o); err != nil {
		log.Fatalf("place order: %v", err)
	}

	f, err := os.Open(*feedPath)
	if err != nil {
		log.Fatalf("open feed: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lines := 0
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line snapshotLine
		if err := json.Unmarshal(raw, &line); err != nil {
			log.Fatalf("feed line %d: %v", lines+1, err)
		}
		book := market.Book{Market: mkt, Time: line.Time}
		for _, bid := range line.Bids {
			book.Bids = append(book.Bids, market.Offer{Market: mkt, Price: bid[0], Volume: bid[1], Time: line.Time})
		}
		for _, ask := range line.Asks {
			book.Asks = append(book.Asks, market.Offer{Market: mkt, Price: ask[0], Volume: ask[1], Time: line.Time})
		}
		eng.OnBook(book)
		lines++
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read feed: %v", err)
	}

	// 等引擎消化所有快照后再读结果
	for eng.PendingCount() > 0 && !order.IsFinal(o.Status) {
		stats := eng.Stats()
		if stats.TotalBooks >= int64(lines) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	fmt.Printf("snapshots: %d\n", lines)
	count := 0
drain:
	for {
		select {
		case fl := <-fillCh:
			count++
			commission := "-"
			if c, ok := fl.Commission(); ok {
				commission = c.String()
			}
			fmt.Printf("fill %d: price=%s volume=%d commission=%s\n",
				count, mkt.PriceDecimal(fl.Price()), fl.Volume(), commission)
		default:
			break drain
		}
	}
	fmt.Printf("status: %s, unfilled: %d\n", o.Status, o.UnfilledVolume())
	if avg, err := o.AverageFillPrice(); err == nil {
		fmt.Printf("average fill price (counts): %s\n", avg)
	}
}
