// Package faker 提供一个内存撮合引擎，按真实行情 tick 对挂单做
// 全量成交模拟。它实现 exchange.Venue，可作为干跑模式下的目标交易所。
package faker

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"hyper-mirror-go/exchange"
)

// Config 模拟交易所参数。费率单位为基点（bp）。
type Config struct {
	MakerFeeBps float64 // 挂单费率，默认 0
	TakerFeeBps float64 // 吃单费率，默认 5
	MinQty      float64 // LOT_SIZE 最小下单量
	StepSize    float64 // LOT_SIZE 数量步长
}

// DefaultConfig 与币安 USDC 合约常见精度保持一致。
func DefaultConfig() Config {
	return Config{
		MakerFeeBps: 0,
		TakerFeeBps: 5,
		MinQty:      0.001,
		StepSize:    0.001,
	}
}

// Engine 模拟撮合引擎。订单只在 tick 到来时全量成交（post-only 语义，
// 按挂单自身价格成交而非 tick 价格），持仓按加权平均入场价记账。
type Engine struct {
	mu sync.RWMutex

	cfg       Config
	makerFee  decimal.Decimal // 费率（小数，已从 bp 换算）
	takerFee  decimal.Decimal
	orders    map[int64]*exchange.Order
	positions map[string]*bookPosition
	lastPrice map[string]decimal.Decimal
	leverage  map[string]int
	acct      account
	nextOID   int64
	fillHook  func(symbol string, price, qty float64)

	log *zap.Logger
}

var bps = decimal.New(1, 4) // 1e4

// New 创建模拟交易所。
func New(cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.StepSize <= 0 {
		cfg.StepSize = DefaultConfig().StepSize
	}
	if cfg.MinQty <= 0 {
		cfg.MinQty = DefaultConfig().MinQty
	}
	return &Engine{
		cfg:       cfg,
		makerFee:  decimal.NewFromFloat(cfg.MakerFeeBps).Div(bps),
		takerFee:  decimal.NewFromFloat(cfg.TakerFeeBps).Div(bps),
		orders:    make(map[int64]*exchange.Order),
		positions: make(map[string]*bookPosition),
		lastPrice: make(map[string]decimal.Decimal),
		leverage:  make(map[string]int),
		nextOID:   10000,
		log:       log,
	}
}

// SetFillHook 注册成交回调（用于指标计数），在启动喂价前调用。
func (e *Engine) SetFillHook(fn func(symbol string, price, qty float64)) {
	e.fillHook = fn
}

// OnTick 接收一笔行情成交 (symbol, price, qty)，更新最新价、
// 撮合该交易对的挂单并重算所有持仓的未实现盈亏。
func (e *Engine) OnTick(symbol string, price, qty float64) {
	_ = qty // 全量成交模型不消耗 tick 数量

	e.mu.Lock()
	defer e.mu.Unlock()

	px := decimal.NewFromFloat(price)
	e.lastPrice[symbol] = px
	e.matchOrders(symbol, px)
	for _, pos := range e.positions {
		if last, ok := e.lastPrice[pos.symbol]; ok {
			pos.markPrice(last)
		}
	}
}

// matchOrders 用最新 tick 价尝试成交挂单。买单在 tick 低于挂单价时
// 成交，卖单在高于时成交；成交价取挂单自身价格。调用方持锁。
func (e *Engine) matchOrders(symbol string, tick decimal.Decimal) {
	for _, o := range e.orders {
		if o.Symbol != symbol || o.Status != exchange.OrderStatusNew || o.Type != exchange.OrderTypeLimit {
			continue
		}
		limit := decimal.NewFromFloat(o.Price)
		crossed := (o.Side == exchange.SideBuy && tick.LessThan(limit)) ||
			(o.Side == exchange.SideSell && tick.GreaterThan(limit))
		if !crossed {
			continue
		}

		o.Status = exchange.OrderStatusFilled
		o.ExecutedQty = o.Quantity
		o.AvgPrice = o.Price
		o.UpdateTime = time.Now()
		e.applyFill(symbol, o.Side, decimal.NewFromFloat(o.Quantity), limit, e.makerFee)
		e.log.Info("sim order filled",
			zap.Int64("orderId", o.OrderID),
			zap.String("symbol", symbol),
			zap.String("side", string(o.Side)),
			zap.Float64("price", o.Price),
			zap.Float64("qty", o.Quantity))
	}
}

// applyFill 更新持仓并扣除手续费。调用方持锁。
func (e *Engine) applyFill(symbol string, side exchange.Side, qty, price, feeRate decimal.Decimal) {
	signed := qty
	if side == exchange.SideSell {
		signed = signed.Neg()
	}

	pos, ok := e.positions[symbol]
	if !ok {
		pos = &bookPosition{symbol: symbol}
		e.positions[symbol] = pos
	}
	realized := pos.applyFill(signed, price, &e.acct)
	if pos.amount.IsZero() {
		// 持仓归零即删除，不保留零值条目
		delete(e.positions, symbol)
	} else if last, ok := e.lastPrice[symbol]; ok {
		pos.markPrice(last)
	}

	fee := qty.Mul(price).Mul(feeRate)
	e.acct.balance = e.acct.balance.Sub(fee)
	if e.fillHook != nil {
		qf, _ := qty.Float64()
		pf, _ := price.Float64()
		e.fillHook(symbol, pf, qf)
	}
	if !realized.IsZero() {
		e.log.Info("sim pnl realized",
			zap.String("symbol", symbol),
			zap.String("realized", realized.String()),
			zap.String("fee", fee.String()))
	}
}

// SubmitOrder 下单。市价单立即按最新价成交并收吃单费；限价单先做
// post-only 校验（买单必须低于最新价、卖单必须高于），否则拒绝。
func (e *Engine) SubmitOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	last, ok := e.lastPrice[req.Symbol]
	if !ok {
		return nil, exchange.ErrNoMarketPrice
	}

	o := &exchange.Order{
		OrderID:    e.nextOID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Price:      req.Price,
		Quantity:   req.Quantity,
		Status:     exchange.OrderStatusNew,
		UpdateTime: time.Now(),
	}
	e.nextOID++

	if req.Type == exchange.OrderTypeMarket {
		lastF, _ := last.Float64()
		o.Price = lastF
		o.Status = exchange.OrderStatusFilled
		o.ExecutedQty = req.Quantity
		o.AvgPrice = lastF
		e.orders[o.OrderID] = o
		e.applyFill(req.Symbol, req.Side, decimal.NewFromFloat(req.Quantity), last, e.takerFee)
		return o, nil
	}

	limit := decimal.NewFromFloat(req.Price)
	if req.Side == exchange.SideBuy && limit.GreaterThanOrEqual(last) {
		return nil, exchange.ErrPostOnlyReject
	}
	if req.Side == exchange.SideSell && limit.LessThanOrEqual(last) {
		return nil, exchange.ErrPostOnlyReject
	}

	e.orders[o.OrderID] = o
	e.log.Info("sim order placed",
		zap.Int64("orderId", o.OrderID),
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.Float64("price", o.Price),
		zap.Float64("qty", o.Quantity))
	return o, nil
}

// CancelOrder 撤单。只有 NEW 状态可撤；已成交/已撤销的订单返回
// ErrOrderTerminal，由调用方按非致命处理。
func (e *Engine) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return exchange.ErrOrderNotFound
	}
	if o.Status != exchange.OrderStatusNew {
		return exchange.ErrOrderTerminal
	}
	o.Status = exchange.OrderStatusCanceled
	o.UpdateTime = time.Now()
	return nil
}

// ListOpenOrders 返回仍在挂的订单；终态订单保留在内部供查询，
// 但不会出现在这里。
func (e *Engine) ListOpenOrders(ctx context.Context, symbol string) ([]*exchange.Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*exchange.Order, 0)
	for _, o := range e.orders {
		if o.Status != exchange.OrderStatusNew {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

// QueryOrderStatus 查询订单状态。
func (e *Engine) QueryOrderStatus(ctx context.Context, symbol string, orderID int64) (exchange.OrderStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	o, ok := e.orders[orderID]
	if !ok {
		return "", exchange.ErrOrderNotFound
	}
	return o.Status, nil
}

// PositionRisk 返回当前持仓快照。未实现盈亏在每个 tick 上重算，
// 查询时直接读取。
func (e *Engine) PositionRisk(ctx context.Context, symbol string) ([]*exchange.Position, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*exchange.Position, 0, len(e.positions))
	for _, pos := range e.positions {
		if symbol != "" && pos.symbol != symbol {
			continue
		}
		amt, _ := pos.amount.Float64()
		entry, _ := pos.entryPrice.Float64()
		upnl, _ := pos.unrealized.Float64()
		out = append(out, &exchange.Position{
			Symbol:           pos.symbol,
			PositionAmt:      amt,
			EntryPrice:       entry,
			UnrealizedProfit: upnl,
		})
	}
	return out, nil
}

// BestBidAsk 模拟盘只有最新成交价，买一卖一都按它返回。
func (e *Engine) BestBidAsk(ctx context.Context, symbol string) (*exchange.BookTicker, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	last, ok := e.lastPrice[symbol]
	if !ok {
		return nil, exchange.ErrNoMarketPrice
	}
	px, _ := last.Float64()
	return &exchange.BookTicker{Symbol: symbol, Bid: px, Ask: px}, nil
}

// SetLeverage 记录杠杆设置，模拟盘不做保证金计算。
func (e *Engine) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leverage[symbol] = leverage
	return nil
}

// SymbolFilters 返回配置的 LOT_SIZE 过滤器。
func (e *Engine) SymbolFilters(ctx context.Context, symbol string) (*exchange.SymbolFilters, error) {
	return &exchange.SymbolFilters{MinQty: e.cfg.MinQty, StepSize: e.cfg.StepSize}, nil
}

// Snapshot 账户快照，供 cmd/faker 周期输出。
type Snapshot struct {
	Balance    float64
	Realized   float64
	Unrealized float64
	TotalPnL   float64
	TradeCount int64
	Positions  []*exchange.Position
}

// AccountSnapshot 汇总余额与盈亏。
func (e *Engine) AccountSnapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	unrealized := decimal.Zero
	positions := make([]*exchange.Position, 0, len(e.positions))
	for _, pos := range e.positions {
		unrealized = unrealized.Add(pos.unrealized)
		amt, _ := pos.amount.Float64()
		entry, _ := pos.entryPrice.Float64()
		upnl, _ := pos.unrealized.Float64()
		positions = append(positions, &exchange.Position{
			Symbol:           pos.symbol,
			PositionAmt:      amt,
			EntryPrice:       entry,
			UnrealizedProfit: upnl,
		})
	}

	balance, _ := e.acct.balance.Float64()
	realized, _ := e.acct.realized.Float64()
	upnl, _ := unrealized.Float64()
	return Snapshot{
		Balance:    balance,
		Realized:   realized,
		Unrealized: upnl,
		TotalPnL:   realized + upnl,
		TradeCount: e.acct.tradeCount,
		Positions:  positions,
	}
}

var _ exchange.Venue = (*Engine)(nil)
