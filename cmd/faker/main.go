// 独立模拟盘：订阅币安合约逐笔成交喂给模拟撮合引擎，跑一个简单的
// 双边挂单循环，周期性输出账户快照。用于验证撮合与盈亏核算。
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hyper-mirror-go/exchange"
	"hyper-mirror-go/exchange/binance"
	"hyper-mirror-go/exchange/faker"
	"hyper-mirror-go/infrastructure/logger"
)

func main() {
	symbolsArg := flag.String("symbols", "BTCUSDC", "逗号分隔的交易对")
	offsetBps := flag.Float64("offsetBps", 10, "挂单价偏离最新价的基点数")
	qty := flag.Float64("qty", 0.002, "每边挂单数量")
	quoteInterval := flag.Duration("quoteInterval", 3*time.Second, "重新挂单间隔")
	flag.Parse()

	lg, err := logger.New(logger.DefaultConfig())
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Sync()
	zlog := lg.Logger

	symbols := strings.Split(strings.ToUpper(*symbolsArg), ",")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sim := faker.New(faker.DefaultConfig(), zlog)

	stream := binance.NewTradeStream(symbols, zlog)
	go func() {
		if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error("trade stream exited", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-stream.Ticks():
				sim.OnTick(t.Symbol, t.Price, t.Qty)
			}
		}
	}()

	go quoteLoop(ctx, sim, symbols, *offsetBps, *qty, *quoteInterval, zlog)

	snapshot := time.NewTicker(5 * time.Second)
	defer snapshot.Stop()
	for {
		select {
		case <-ctx.Done():
			zlog.Info("shutting down")
			return
		case <-snapshot.C:
			s := sim.AccountSnapshot()
			zlog.Info("account snapshot",
				zap.Float64("balance", s.Balance),
				zap.Float64("realized", s.Realized),
				zap.Float64("unrealized", s.Unrealized),
				zap.Float64("totalPnl", s.TotalPnL),
				zap.Int64("trades", s.TradeCount),
				zap.Int("positions", len(s.Positions)))
		}
	}
}

// quoteLoop 每轮撤掉上轮挂单，在最新价两侧各挂一单。被 post-only
// 拒绝的一侧本轮跳过。
func quoteLoop(ctx context.Context, sim *faker.Engine, symbols []string, offsetBps, qty float64, interval time.Duration, zlog *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	open := make(map[string][]int64, len(symbols))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, sym := range symbols {
			for _, oid := range open[sym] {
				err := sim.CancelOrder(ctx, sym, oid)
				if err != nil && !errors.Is(err, exchange.ErrOrderTerminal) && !errors.Is(err, exchange.ErrOrderNotFound) {
					zlog.Warn("cancel quote failed", zap.Int64("orderId", oid), zap.Error(err))
				}
			}
			open[sym] = open[sym][:0]

			bt, err := sim.BestBidAsk(ctx, sym)
			if err != nil {
				// 还没收到第一笔行情
				continue
			}
			mid := bt.Bid
			offset := mid * offsetBps / 10000

			for _, q := range []struct {
				side  exchange.Side
				price float64
			}{
				{exchange.SideBuy, mid - offset},
				{exchange.SideSell, mid + offset},
			} {
				o, err := sim.SubmitOrder(ctx, &exchange.OrderRequest{
					Symbol:      sym,
					Side:        q.side,
					Type:        exchange.OrderTypeLimit,
					TimeInForce: exchange.TimeInForceGTX,
					Quantity:    qty,
					Price:       q.price,
				})
				if err != nil {
					if !errors.Is(err, exchange.ErrPostOnlyReject) {
						zlog.Warn("quote rejected", zap.String("symbol", sym), zap.Error(err))
					}
					continue
				}
				open[sym] = append(open[sym], o.OrderID)
			}
		}
	}
}
