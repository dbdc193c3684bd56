package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hyper-mirror-go/config"
	"hyper-mirror-go/exchange"
	"hyper-mirror-go/hyperliquid"
	"hyper-mirror-go/infrastructure/alert"
	"hyper-mirror-go/infrastructure/monitor"
)

// command 串行命令循环的输入：要么是一条源事件，要么是一次对账请求。
// 映射表和纠偏订单记录只在循环内被修改。
type command struct {
	event     *hyperliquid.OrderEvent
	reconcile bool
	symbols   map[string]config.SymbolMapping
}

// Engine 订单镜像引擎。
type Engine struct {
	cfg     Config
	venue   exchange.Venue
	source  SourceQuery
	alerts  Alerter
	metrics *monitor.Monitor
	log     *zap.Logger

	commands chan command

	// 以下状态只允许 Run 循环这一个 goroutine 触碰
	mappings   map[int64]*MirroredOrder // 源 oid -> 映射
	byDest     map[int64]int64          // 目标订单 id -> 源 oid
	corrective map[string]int64         // 交易对 -> 在途纠偏订单 id
	filters    map[string]exchange.SymbolFilters
	lastCycle  time.Time
}

// NewEngine 创建镜像引擎。alerts 可为 nil。
func NewEngine(cfg Config, venue exchange.Venue, source SourceQuery, alerts Alerter, metrics *monitor.Monitor, log *zap.Logger) *Engine {
	cfg.applyDefaults()
	if alerts == nil {
		alerts = nopAlerter{}
	}
	if metrics == nil {
		metrics = monitor.New(monitor.DefaultConfig())
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		venue:      venue,
		source:     source,
		alerts:     alerts,
		metrics:    metrics,
		log:        log,
		commands:   make(chan command, 512),
		mappings:   make(map[int64]*MirroredOrder),
		byDest:     make(map[int64]int64),
		corrective: make(map[string]int64),
		filters:    make(map[string]exchange.SymbolFilters),
	}
}

// Init 启动前的准备：拉取每个目标交易对的 LOT_SIZE 过滤器并设置杠杆。
// 过滤器拉不到视为致命（后续所有下单数量都依赖它）；杠杆失败只告警。
func (e *Engine) Init(ctx context.Context) error {
	for coin, sm := range e.cfg.Symbols {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		f, err := e.venue.SymbolFilters(callCtx, sm.Symbol)
		cancel()
		if err != nil {
			return fmt.Errorf("fetch filters for %s: %w", sm.Symbol, err)
		}
		e.filters[sm.Symbol] = *f

		callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
		err = e.venue.SetLeverage(callCtx, sm.Symbol, e.cfg.Leverage)
		cancel()
		if err != nil {
			e.log.Warn("set leverage failed",
				zap.String("coin", coin),
				zap.String("symbol", sm.Symbol),
				zap.Error(err))
			e.alerts.Notify(alert.LevelWarning, "SetLeverageFailed", err.Error(),
				map[string]interface{}{"symbol": sm.Symbol})
		}
	}
	return nil
}

// OnEvent 由流消费侧调用，把一条源事件排入命令队列。
func (e *Engine) OnEvent(ev hyperliquid.OrderEvent) {
	e.commands <- command{event: &ev}
}

// TriggerReconcile 请求一次对账。非阻塞：队列满时丢弃，下个定时
// 周期会补上；两次对账之间的最小间隔在循环内兜底。
func (e *Engine) TriggerReconcile() {
	select {
	case e.commands <- command{reconcile: true}:
	default:
	}
}

// UpdateSymbols 热更新交易对映射（容忍度、缩放系数）。通过命令队列
// 进入串行循环生效，新增交易对缺少过滤器时在下次 Init 前不会生效。
func (e *Engine) UpdateSymbols(symbols map[string]config.SymbolMapping) {
	e.commands <- command{symbols: symbols}
}

// Run 串行消费命令直到 ctx 取消。事件按到达顺序逐条处理，
// 不存在两个动作并发竞争同一条映射。
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.TriggerReconcile()
		case cmd := <-e.commands:
			if cmd.reconcile {
				e.runReconcile(ctx)
				continue
			}
			if cmd.symbols != nil {
				e.applySymbols(cmd.symbols)
				continue
			}
			e.handleEvent(ctx, *cmd.event)
			// 每条事件后也请求一次漂移检查，由最小间隔保证不会过频
			e.TriggerReconcile()
		}
	}
}

func (e *Engine) applySymbols(symbols map[string]config.SymbolMapping) {
	for coin, sm := range symbols {
		if _, ok := e.filters[sm.Symbol]; !ok {
			e.log.Warn("skip new symbol without filters, restart to trade it",
				zap.String("coin", coin),
				zap.String("symbol", sm.Symbol))
			delete(symbols, coin)
		}
	}
	e.cfg.Symbols = symbols
	e.log.Info("symbol mappings reloaded", zap.Int("count", len(symbols)))
}

// MappedOrders 返回当前映射数量（测试与监控用）。
func (e *Engine) MappedOrders() int {
	return len(e.mappings)
}

func (e *Engine) handleEvent(ctx context.Context, ev hyperliquid.OrderEvent) {
	e.metrics.EventsProcessed.WithLabelValues(ev.Status).Inc()

	switch ev.Status {
	case hyperliquid.StatusOpen:
		e.handleOpen(ctx, ev)
	case hyperliquid.StatusCanceled:
		e.handleCanceled(ctx, ev)
	case hyperliquid.StatusFilled:
		e.handleFilled(ctx, ev)
	case hyperliquid.StatusTriggered, hyperliquid.StatusRejected, hyperliquid.StatusMarginCanceled:
		// 预留：当前不在目标侧做任何动作
		e.log.Info("source event without mirror action",
			zap.String("status", ev.Status),
			zap.String("coin", ev.Coin),
			zap.Int64("oid", ev.OID))
	default:
		e.log.Warn("unknown source event status",
			zap.String("status", ev.Status),
			zap.Int64("oid", ev.OID))
	}
}

// handleOpen 在目标交易所挂出等比例缩小的 post-only 限价单并登记映射。
func (e *Engine) handleOpen(ctx context.Context, ev hyperliquid.OrderEvent) {
	sm, ok := e.cfg.Symbols[ev.Coin]
	if !ok {
		e.metrics.EventsDropped.Inc()
		e.log.Info("drop event for unmapped coin", zap.String("coin", ev.Coin), zap.Int64("oid", ev.OID))
		return
	}
	if ev.Sz <= 0 || ev.LimitPx <= 0 {
		e.metrics.EventsDropped.Inc()
		e.log.Warn("drop invalid open event",
			zap.String("coin", ev.Coin),
			zap.Int64("oid", ev.OID),
			zap.Float64("sz", ev.Sz),
			zap.Float64("px", ev.LimitPx))
		return
	}

	qty := ScaleQty(ev.Sz, sm.ScaleFactor, e.filters[sm.Symbol])
	side := exchange.SideBuy
	if ev.Side == hyperliquid.SideAsk {
		side = exchange.SideSell
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	order, err := e.venue.SubmitOrder(callCtx, &exchange.OrderRequest{
		Symbol:      sm.Symbol,
		Side:        side,
		Type:        exchange.OrderTypeLimit,
		TimeInForce: exchange.TimeInForceGTX,
		Quantity:    qty,
		Price:       ev.LimitPx,
	})
	if err != nil {
		// 不在这里重试，漂移留给下个对账周期纠正
		e.metrics.SubmitFailures.Inc()
		e.log.Error("mirror submit failed",
			zap.Int64("oid", ev.OID),
			zap.String("symbol", sm.Symbol),
			zap.Error(err))
		e.alerts.Notify(alert.LevelError, "OrderSubmitFailed", err.Error(),
			map[string]interface{}{"symbol": sm.Symbol, "oid": ev.OID})
		return
	}

	if old, exists := e.mappings[ev.OID]; exists {
		// 同一源 oid 不应出现两次 open；保留新单，丢掉旧映射
		e.log.Warn("duplicate open for tracked oid, replacing mapping",
			zap.Int64("oid", ev.OID),
			zap.Int64("oldDest", old.DestOrderID))
		delete(e.byDest, old.DestOrderID)
	}
	e.mappings[ev.OID] = &MirroredOrder{
		SourceOID:   ev.OID,
		Symbol:      sm.Symbol,
		DestOrderID: order.OrderID,
		CreatedAt:   time.Now(),
	}
	e.byDest[order.OrderID] = ev.OID
	e.metrics.OrdersMirrored.Inc()
	e.metrics.MappedOrders.Set(float64(len(e.mappings)))
	e.log.Info("order mirrored",
		zap.Int64("oid", ev.OID),
		zap.Int64("destOrderId", order.OrderID),
		zap.String("symbol", sm.Symbol),
		zap.String("side", string(side)),
		zap.Float64("qty", qty),
		zap.Float64("price", ev.LimitPx))
}

// handleCanceled 跟随源撤单。映射无论撤单结果如何都删除：撤不掉
// 多半是目标单已成交，经济上已结清，剩余漂移由对账处理。
func (e *Engine) handleCanceled(ctx context.Context, ev hyperliquid.OrderEvent) {
	m, ok := e.mappings[ev.OID]
	if !ok {
		// 启动前挂的单或干跑期间的事件，视为已解决
		e.log.Info("cancel for untracked oid, no-op", zap.Int64("oid", ev.OID))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	if err := e.venue.CancelOrder(callCtx, m.Symbol, m.DestOrderID); err != nil {
		e.log.Warn("cancel mirror order failed, maybe already filled",
			zap.Int64("oid", ev.OID),
			zap.Int64("destOrderId", m.DestOrderID),
			zap.Error(err))
	} else {
		e.log.Info("mirror order canceled",
			zap.Int64("oid", ev.OID),
			zap.Int64("destOrderId", m.DestOrderID))
	}
	e.dropMapping(ev.OID)
	e.metrics.OrdersCanceled.Inc()
}

// handleFilled 核对目标订单是否也成交。成交则镜像完成并删除映射；
// 未成交说明跟单失败，发告警但不在这条路径上纠偏——纠偏是对账循环
// 的职责，映射保留给它清理。
func (e *Engine) handleFilled(ctx context.Context, ev hyperliquid.OrderEvent) {
	m, ok := e.mappings[ev.OID]
	if !ok {
		e.log.Info("fill for untracked oid", zap.Int64("oid", ev.OID))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	status, err := e.venue.QueryOrderStatus(callCtx, m.Symbol, m.DestOrderID)
	if err != nil {
		e.log.Warn("query mirror order failed",
			zap.Int64("oid", ev.OID),
			zap.Int64("destOrderId", m.DestOrderID),
			zap.Error(err))
		return
	}

	if status == exchange.OrderStatusFilled {
		e.log.Info("mirror fill confirmed",
			zap.Int64("oid", ev.OID),
			zap.Int64("destOrderId", m.DestOrderID),
			zap.String("symbol", m.Symbol))
		e.dropMapping(ev.OID)
		return
	}

	e.metrics.MirrorFailures.Inc()
	e.log.Warn("mirror fill missed",
		zap.Int64("oid", ev.OID),
		zap.Int64("destOrderId", m.DestOrderID),
		zap.String("destStatus", string(status)))
	e.alerts.Notify(alert.LevelWarning, "MirrorFillMissed",
		fmt.Sprintf("source order %d filled but %s order %d is %s",
			ev.OID, m.Symbol, m.DestOrderID, status),
		map[string]interface{}{"symbol": m.Symbol, "oid": ev.OID})
}

func (e *Engine) dropMapping(sourceOID int64) {
	if m, ok := e.mappings[sourceOID]; ok {
		delete(e.byDest, m.DestOrderID)
		delete(e.mappings, sourceOID)
		e.metrics.MappedOrders.Set(float64(len(e.mappings)))
	}
}

// isCancelResolved 判断撤单错误是否等价于“订单已结清”。
func isCancelResolved(err error) bool {
	return errors.Is(err, exchange.ErrOrderNotFound) || errors.Is(err, exchange.ErrOrderTerminal)
}
