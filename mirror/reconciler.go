package mirror

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"hyper-mirror-go/exchange"
	"hyper-mirror-go/infrastructure/alert"
)

// runReconcile 执行一轮对账。事件路径漏掉的状态（竞态、丢事件、
// 适配器错误）都在这里收敛；所有子步骤尽力而为，单个交易对出错
// 只记日志，下轮重试。
func (e *Engine) runReconcile(ctx context.Context) {
	// 事件风暴触发的多次请求合并：两轮之间至少间隔一个周期
	if time.Since(e.lastCycle) < e.cfg.ReconcileInterval {
		return
	}
	e.lastCycle = time.Now()
	e.metrics.ReconcileCycles.Inc()

	e.sweepSourceGone(ctx)
	e.sweepDestGone(ctx)
	e.reconcilePositions(ctx)
}

// sweepSourceGone 清理源侧已消失的订单：源挂单列表里不再出现的
// oid，其目标单要么撤掉要么已成交，映射一律删除。
func (e *Engine) sweepSourceGone(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	srcIDs, err := e.source.OpenOrderIDs(callCtx)
	cancel()
	if err != nil {
		e.metrics.ReconcileErrors.Inc()
		e.log.Warn("fetch source open orders failed", zap.Error(err))
		return
	}

	for oid, m := range e.mappings {
		if srcIDs[oid] {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		err := e.venue.CancelOrder(callCtx, m.Symbol, m.DestOrderID)
		cancel()
		if err != nil && !isCancelResolved(err) {
			e.log.Warn("cancel orphan mirror order failed",
				zap.Int64("oid", oid),
				zap.Int64("destOrderId", m.DestOrderID),
				zap.Error(err))
		} else {
			e.log.Info("orphan mirror order cleaned",
				zap.Int64("oid", oid),
				zap.Int64("destOrderId", m.DestOrderID))
		}
		e.dropMapping(oid)
	}
}

// sweepDestGone 清理目标侧已消失的订单：目标挂单列表里不再出现的
// 映射说明目标单已成交（或被外部撤掉），仅删映射，不做动作。
func (e *Engine) sweepDestGone(ctx context.Context) {
	for _, sm := range e.cfg.Symbols {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		open, err := e.venue.ListOpenOrders(callCtx, sm.Symbol)
		cancel()
		if err != nil {
			e.metrics.ReconcileErrors.Inc()
			e.log.Warn("fetch dest open orders failed",
				zap.String("symbol", sm.Symbol), zap.Error(err))
			continue
		}
		openIDs := make(map[int64]bool, len(open))
		for _, o := range open {
			openIDs[o.OrderID] = true
		}

		for oid, m := range e.mappings {
			if m.Symbol != sm.Symbol || openIDs[m.DestOrderID] {
				continue
			}
			e.log.Info("mapping dropped, dest order left open list",
				zap.Int64("oid", oid),
				zap.Int64("destOrderId", m.DestOrderID),
				zap.String("symbol", sm.Symbol))
			e.dropMapping(oid)
		}

		// 上轮的纠偏单已不在挂单列表，说明已成交或被撤，记录作废
		if cid, ok := e.corrective[sm.Symbol]; ok && !openIDs[cid] {
			delete(e.corrective, sm.Symbol)
		}
	}
}

// reconcilePositions 比较两侧净持仓，偏差达到容忍度时下一笔纠偏单。
func (e *Engine) reconcilePositions(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	srcSizes, err := e.source.PositionSizes(callCtx)
	cancel()
	if err != nil {
		e.metrics.ReconcileErrors.Inc()
		e.log.Warn("fetch source positions failed", zap.Error(err))
		return
	}

	callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
	destPositions, err := e.venue.PositionRisk(callCtx, "")
	cancel()
	if err != nil {
		e.metrics.ReconcileErrors.Inc()
		e.log.Warn("fetch dest positions failed", zap.Error(err))
		return
	}
	destSizes := make(map[string]float64, len(destPositions))
	for _, p := range destPositions {
		destSizes[p.Symbol] = p.PositionAmt
	}

	for coin, sm := range e.cfg.Symbols {
		srcSz := srcSizes[coin]
		destSz := destSizes[sm.Symbol]
		diff := srcSz - destSz*sm.ScaleFactor
		e.metrics.PositionDrift.WithLabelValues(sm.Symbol).Set(diff)
		e.log.Debug("position check",
			zap.String("coin", coin),
			zap.Float64("source", srcSz),
			zap.Float64("dest", destSz*sm.ScaleFactor),
			zap.Float64("diff", diff))

		if math.Abs(diff) < sm.Tolerance {
			continue
		}
		e.correctDrift(ctx, coin, sm.Symbol, sm.ScaleFactor, diff)
	}
}

// correctDrift 为单个交易对下一笔纠偏单。同一交易对任何时刻最多
// 一笔在途纠偏单：上轮的单子还挂着就先撤掉，绝不叠加。
func (e *Engine) correctDrift(ctx context.Context, coin, symbol string, scaleFactor, diff float64) {
	if cid, ok := e.corrective[symbol]; ok {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		err := e.venue.CancelOrder(callCtx, symbol, cid)
		cancel()
		if err != nil && !isCancelResolved(err) {
			e.metrics.ReconcileErrors.Inc()
			e.log.Warn("cancel stale corrective order failed, retry next cycle",
				zap.String("symbol", symbol),
				zap.Int64("destOrderId", cid),
				zap.Error(err))
			return
		}
		delete(e.corrective, symbol)
	}

	side := exchange.SideBuy
	if diff < 0 {
		side = exchange.SideSell
	}
	qty := ScaleQty(math.Abs(diff), scaleFactor, e.filters[symbol])

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	ticker, err := e.venue.BestBidAsk(callCtx, symbol)
	cancel()
	if err != nil {
		e.metrics.ReconcileErrors.Inc()
		e.log.Warn("fetch best bid/ask failed",
			zap.String("symbol", symbol), zap.Error(err))
		return
	}
	price := ticker.Bid
	if side == exchange.SideSell {
		price = ticker.Ask
	}

	callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
	order, err := e.venue.SubmitOrder(callCtx, &exchange.OrderRequest{
		Symbol:      symbol,
		Side:        side,
		Type:        exchange.OrderTypeLimit,
		TimeInForce: exchange.TimeInForceGTX,
		Quantity:    qty,
		Price:       price,
	})
	cancel()
	if err != nil {
		e.metrics.ReconcileErrors.Inc()
		e.log.Warn("submit corrective order failed",
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.Float64("qty", qty),
			zap.Error(err))
		return
	}

	e.corrective[symbol] = order.OrderID
	e.metrics.CorrectiveOrders.WithLabelValues(symbol).Inc()
	e.log.Warn("corrective order placed",
		zap.String("coin", coin),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("qty", qty),
		zap.Float64("price", price),
		zap.Float64("diff", diff))
	e.alerts.Notify(alert.LevelWarning, "PositionDrift",
		fmt.Sprintf("%s drift %.4f beyond tolerance, corrective %s %.4f @ %.4f",
			coin, diff, side, qty, price),
		map[string]interface{}{"symbol": symbol, "diff": diff})
}
