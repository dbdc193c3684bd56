package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hyper-mirror-go/config"
	"hyper-mirror-go/exchange"
	"hyper-mirror-go/exchange/binance"
	"hyper-mirror-go/exchange/faker"
	"hyper-mirror-go/hyperliquid"
	"hyper-mirror-go/infrastructure/alert"
	"hyper-mirror-go/infrastructure/logger"
	"hyper-mirror-go/infrastructure/monitor"
	"hyper-mirror-go/mirror"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	dryRun := flag.Bool("dryRun", false, "强制干跑：目标侧用模拟撮合引擎，不碰真实资金")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *dryRun {
		cfg.DryRun = true
	}

	lg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Sync()
	zlog := lg.Logger

	metrics := monitor.New(monitor.DefaultConfig())
	metrics.Serve(cfg.MetricsAddr)

	channels := []alert.Channel{alert.NewLogChannel(zlog)}
	if cfg.Alert.WebhookURL != "" {
		channels = append(channels, alert.NewFeishuChannel(cfg.Alert.WebhookURL))
	}
	alerts := alert.NewManager(channels, time.Duration(cfg.Alert.ThrottleSeconds)*time.Second)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 目标交易所：真实币安合约或本地模拟撮合引擎
	var venue exchange.Venue
	var sim *faker.Engine
	if cfg.DryRun {
		fc := faker.DefaultConfig()
		if cfg.Faker.MakerFeeBps > 0 {
			fc.MakerFeeBps = cfg.Faker.MakerFeeBps
		}
		if cfg.Faker.TakerFeeBps > 0 {
			fc.TakerFeeBps = cfg.Faker.TakerFeeBps
		}
		sim = faker.New(fc, zlog)
		sim.SetFillHook(func(string, float64, float64) {
			metrics.SimFills.Inc()
		})
		venue = sim
		zlog.Info("dry run: orders go to simulated matching engine")
	} else {
		adapter, err := binance.NewAdapter(cfg.Gateway.APIKey, cfg.Gateway.APISecret, zlog)
		if err != nil {
			zlog.Fatal("init binance adapter failed", zap.Error(err))
		}
		venue = adapter
	}

	// 源交易所：订单事件流 + 对账查询
	info := hyperliquid.NewInfoClient()
	if cfg.Source.InfoURL != "" {
		info.BaseURL = cfg.Source.InfoURL
	}
	source := hyperliquid.NewUserClient(info, cfg.Source.UserAddress)

	stream := hyperliquid.NewStreamClient(zlog)
	if cfg.Source.WSURL != "" {
		stream.URL = cfg.Source.WSURL
	}
	stream.SubscribeOrderUpdates(cfg.Source.UserAddress)
	stream.OnConnect(func() { metrics.StreamConnects.Inc() })
	stream.OnDisconnect(func(error) { metrics.StreamDisconnects.Inc() })

	coins := make([]string, 0, len(cfg.Symbols))
	for coin := range cfg.Symbols {
		coins = append(coins, coin)
	}
	if cfg.DryRun {
		// 模拟撮合需要行情驱动，订阅源交易所的成交流喂价
		stream.SubscribeTrades(coins)
	}

	engine := mirror.NewEngine(mirror.Config{
		Symbols:           cfg.Symbols,
		Leverage:          cfg.Leverage,
		ReconcileInterval: time.Duration(cfg.Reconcile.IntervalSeconds) * time.Second,
	}, venue, source, alerts, metrics, zlog)

	if err := engine.Init(ctx); err != nil {
		zlog.Fatal("engine init failed", zap.Error(err))
	}

	go stream.Run(ctx)
	go engine.Run(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-stream.Events():
				engine.OnEvent(ev)
			case t := <-stream.Trades():
				if sim == nil {
					continue
				}
				if sm, ok := cfg.Symbols[t.Coin]; ok {
					sim.OnTick(sm.Symbol, t.Price, t.Qty)
				}
			}
		}
	}()

	// 配置热更新：只接受交易对映射（容忍度/缩放系数）的变化
	watcher := config.NewWatcher(*cfgPath, zlog)
	go func() {
		err := watcher.Start(ctx, func(next config.AppConfig) {
			engine.UpdateSymbols(next.Symbols)
		})
		if err != nil {
			zlog.Warn("config watcher stopped", zap.Error(err))
		}
	}()

	alerts.Notify(alert.LevelInfo, "MirrorBot",
		"order mirror engine started",
		map[string]interface{}{"env": cfg.Env, "dryRun": cfg.DryRun, "symbols": len(cfg.Symbols)})
	zlog.Info("mirror engine running",
		zap.String("env", cfg.Env),
		zap.Bool("dryRun", cfg.DryRun),
		zap.String("user", cfg.Source.UserAddress))

	<-ctx.Done()
	zlog.Info("shutting down")
	// 留一点时间给在途的撤单/日志落盘
	time.Sleep(500 * time.Millisecond)
	os.Exit(0)
}
