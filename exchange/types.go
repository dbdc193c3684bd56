package exchange

import "time"

// Side 交易方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite 返回相反方向。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType 订单类型
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusExpired  OrderStatus = "EXPIRED"
)

// IsTerminal 判断订单是否已到终态。
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// TimeInForce 订单有效期
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good Till Cancel
	TimeInForceIOC TimeInForce = "IOC" // Immediate or Cancel
	TimeInForceGTX TimeInForce = "GTX" // Good Till Crossing（Post Only，吃单即撤）
)

// OrderRequest 下单请求（通用）
type OrderRequest struct {
	Symbol      string
	Side        Side
	Type        OrderType
	TimeInForce TimeInForce
	Quantity    float64
	Price       float64 // 市价单为 0
}

// Order 订单信息（通用视图）
type Order struct {
	OrderID     int64
	Symbol      string
	Side        Side
	Type        OrderType
	Price       float64
	Quantity    float64
	ExecutedQty float64
	AvgPrice    float64
	Status      OrderStatus
	UpdateTime  time.Time
}

// Position 持仓信息（通用视图）
type Position struct {
	Symbol           string
	PositionAmt      float64 // 带符号：正数多头，负数空头
	EntryPrice       float64
	UnrealizedProfit float64
}

// BookTicker 最优买一/卖一。
type BookTicker struct {
	Symbol string
	Bid    float64
	Ask    float64
}

// SymbolFilters 交易对的最小下单量与数量步长（LOT_SIZE）。
type SymbolFilters struct {
	MinQty   float64
	StepSize float64
}
