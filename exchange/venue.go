package exchange

import (
	"context"
	"errors"
)

var (
	// ErrOrderNotFound 订单不存在。
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderTerminal 订单已到终态，无法撤销。
	ErrOrderTerminal = errors.New("order already terminal")

	// ErrPostOnlyReject 限价单会立即成交，被 post-only 规则拒绝。
	ErrPostOnlyReject = errors.New("post-only order would cross")

	// ErrNoMarketPrice 尚无该交易对的市场价格。
	ErrNoMarketPrice = errors.New("no market price available")
)

// Venue 目标交易所抽象。真实币安适配器与模拟撮合引擎都实现它，
// 镜像引擎和对账循环只依赖该接口。
type Venue interface {
	// SubmitOrder 下单，成功返回交易所订单 ID。
	SubmitOrder(ctx context.Context, req *OrderRequest) (*Order, error)

	// CancelOrder 撤单。订单不存在返回 ErrOrderNotFound，
	// 已到终态返回 ErrOrderTerminal。
	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	// ListOpenOrders 查询未完成订单；symbol 为空时返回全部。
	ListOpenOrders(ctx context.Context, symbol string) ([]*Order, error)

	// QueryOrderStatus 查询订单当前状态。
	QueryOrderStatus(ctx context.Context, symbol string, orderID int64) (OrderStatus, error)

	// PositionRisk 查询持仓；symbol 为空时返回全部非零持仓。
	PositionRisk(ctx context.Context, symbol string) ([]*Position, error)

	// BestBidAsk 查询最优买一/卖一。
	BestBidAsk(ctx context.Context, symbol string) (*BookTicker, error)

	// SetLeverage 设置杠杆倍数。
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// SymbolFilters 查询 LOT_SIZE 过滤器（启动时调用一次并缓存）。
	SymbolFilters(ctx context.Context, symbol string) (*SymbolFilters, error)
}
