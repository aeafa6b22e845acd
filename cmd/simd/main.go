package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"exchange-sim-go/bus"
	"exchange-sim-go/config"
	"exchange-sim-go/fees"
	"exchange-sim-go/gateway"
	"exchange-sim-go/infrastructure/logger"
	"exchange-sim-go/internal/engine"
	"exchange-sim-go/internal/store"
	"exchange-sim-go/market"
	"exchange-sim-go/metrics"
)

// simd 模拟撮合守护进程：加载配置，按市场启动撮合引擎，
// 对外提供 Prometheus 指标与 websocket 成交推送。
// -demo 模式下内置一个随机游走行情源，便于本地联调。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	demo := flag.Bool("demo", false, "内置随机行情源（仅联调用）")
	demoInterval := flag.Duration("demoInterval", time.Second, "demo 模式快照间隔")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Close() }()

	if cfg.MetricsAddr != "" {
		metrics.StartMetricsServer(cfg.MetricsAddr)
	}

	eventBus := bus.New()
	orderStore := store.New(func(event string, fields map[string]interface{}) {
		zl.LogOrder(event, "", fields)
	})
	schedule := fees.NewBpsSchedule(cfg.Fees.DefaultBps, cfg.Fees.Markets)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := engine.NewDispatcher()
	var markets []market.Market
	for sym, mc := range cfg.Markets {
		mkt := market.Market{Symbol: sym, PriceBasis: mc.PriceBasis, VolumeBasis: mc.VolumeBasis}
		markets = append(markets, mkt)
		eng, err := engine.New(engine.Config{
			Market:        mkt,
			DepleteOffers: cfg.Engine.DepleteOffers,
			EventBuffer:   cfg.Engine.EventBuffer,
		}, engine.Components{
			Fees:      schedule,
			Repo:      orderStore,
			Publisher: eventBus,
			Logger:    zl,
		})
		if err != nil {
			log.Fatalf("init engine %s: %v", sym, err)
		}
		if err := dispatcher.Register(eng); err != nil {
			log.Fatalf("register engine %s: %v", sym, err)
		}
	}
	if err := dispatcher.Start(ctx); err != nil {
		log.Fatalf("start engines: %v", err)
	}
	defer dispatcher.Stop()

	if cfg.StreamAddr != "" {
		stream := gateway.NewStreamServer(eventBus, zl)
		go func() {
			if err := stream.Serve(ctx, cfg.StreamAddr); err != nil {
				zl.Error("Stream server exited", zap.Error(err))
			}
		}()
	}

	// 配置热更新：费率表可在运行中调整
	go func() {
		watcher := config.Watcher{Path: *cfgPath}
		err := watcher.Start(ctx, func(newCfg config.AppConfig) {
			for sym, bps := range newCfg.Fees.Markets {
				schedule.SetRate(sym, bps)
			}
			zl.Info("Fee schedule reloaded", zap.Int("markets", len(newCfg.Fees.Markets)))
		})
		if err != nil && ctx.Err() == nil {
			zl.Warn("Config watcher stopped", zap.Error(err))
		}
	}()

	if *demo {
		for _, mkt := range markets {
			go demoFeed(ctx, dispatcher, mkt, *demoInterval)
		}
	}

	// systemd 就绪通知与看门狗
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go func() {
			ticker := time.NewTicker(interval / 2)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		}()
	}

	zl.Info("simd started",
		zap.Int("markets", len(markets)),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.String("stream_addr", cfg.StreamAddr),
		zap.Bool("demo", *demo))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	zl.Info("simd shutting down")
}

// demoFeed 随机游走生成订单簿快照，驱动撮合链路。
func demoFeed(ctx context.Context, d *engine.Dispatcher, mkt market.Market, interval time.Duration) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	mid := int64(100 * mkt.PriceBasis)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			mid += int64(rng.NormFloat64() * float64(mkt.PriceBasis) / 10)
			if mid < mkt.PriceBasis {
				mid = mkt.PriceBasis
			}
			now := time.Now()
			book := market.Book{Market: mkt, Time: now}
			for i := int64(1); i <= 5; i++ {
				vol := int64(rng.Intn(10)+1) * mkt.VolumeBasis
				book.Asks = append(book.Asks, market.Offer{
					Market: mkt, Price: mid + i, Volume: vol, Time: now,
				})
				book.Bids = append(book.Bids, market.Offer{
					Market: mkt, Price: mid - i, Volume: vol, Time: now,
				})
			}
			d.OnBook(book)
		}
	}
}
