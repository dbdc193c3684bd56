// Package binance 用 adshao/go-binance 的 USD-M 合约客户端实现
// exchange.Venue，作为真实目标交易所适配器。
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"hyper-mirror-go/exchange"
)

// Adapter 币安合约适配器。REST 调用统一过限流器，避免触发 -1003。
type Adapter struct {
	client  *futures.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewAdapter 创建适配器并同步服务器时间。
func NewAdapter(apiKey, secretKey string, log *zap.Logger) (*Adapter, error) {
	if apiKey == "" || secretKey == "" {
		return nil, fmt.Errorf("binance credentials are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	client := futures.NewClient(apiKey, secretKey)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.NewSetServerTimeService().Do(ctx); err != nil {
		log.Warn("sync binance server time failed", zap.Error(err))
	}

	return &Adapter{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(8), 16),
		log:     log,
	}, nil
}

// SubmitOrder 下单。限价单按请求的 TimeInForce 提交（镜像引擎固定
// 使用 GTX 做 post-only）。
func (a *Adapter) SubmitOrder(ctx context.Context, req *exchange.OrderRequest) (*exchange.Order, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	svc := a.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(futures.SideType(req.Side)).
		Quantity(formatQty(req.Quantity))

	if req.Type == exchange.OrderTypeMarket {
		svc = svc.Type(futures.OrderTypeMarket)
	} else {
		tif := futures.TimeInForceTypeGTC
		if req.TimeInForce == exchange.TimeInForceGTX {
			tif = futures.TimeInForceTypeGTX
		} else if req.TimeInForce == exchange.TimeInForceIOC {
			tif = futures.TimeInForceTypeIOC
		}
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(tif).
			Price(strconv.FormatFloat(req.Price, 'f', -1, 64))
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance create order: %w", err)
	}
	return &exchange.Order{
		OrderID:    resp.OrderID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Price:      req.Price,
		Quantity:   req.Quantity,
		Status:     exchange.OrderStatus(resp.Status),
		UpdateTime: time.UnixMilli(resp.UpdateTime),
	}, nil
}

// CancelOrder 撤单。-2011（Unknown order）说明订单已结清，
// 翻译成 ErrOrderNotFound 让上层按非致命处理。
func (a *Adapter) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := a.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "-2011") || strings.Contains(err.Error(), "Unknown order") {
			return exchange.ErrOrderNotFound
		}
		return fmt.Errorf("binance cancel order: %w", err)
	}
	return nil
}

// ListOpenOrders 查询未完成订单。
func (a *Adapter) ListOpenOrders(ctx context.Context, symbol string) ([]*exchange.Order, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	svc := a.client.NewListOpenOrdersService()
	if symbol != "" {
		svc = svc.Symbol(symbol)
	}
	orders, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance open orders: %w", err)
	}

	out := make([]*exchange.Order, 0, len(orders))
	for _, o := range orders {
		price, _ := strconv.ParseFloat(o.Price, 64)
		qty, _ := strconv.ParseFloat(o.OrigQuantity, 64)
		executed, _ := strconv.ParseFloat(o.ExecutedQuantity, 64)
		avg, _ := strconv.ParseFloat(o.AvgPrice, 64)
		out = append(out, &exchange.Order{
			OrderID:     o.OrderID,
			Symbol:      o.Symbol,
			Side:        exchange.Side(o.Side),
			Type:        exchange.OrderType(o.Type),
			Price:       price,
			Quantity:    qty,
			ExecutedQty: executed,
			AvgPrice:    avg,
			Status:      exchange.OrderStatus(o.Status),
			UpdateTime:  time.UnixMilli(o.UpdateTime),
		})
	}
	return out, nil
}

// QueryOrderStatus 查询订单状态。
func (a *Adapter) QueryOrderStatus(ctx context.Context, symbol string, orderID int64) (exchange.OrderStatus, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}
	order, err := a.client.NewGetOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "-2013") {
			return "", exchange.ErrOrderNotFound
		}
		return "", fmt.Errorf("binance get order: %w", err)
	}
	return exchange.OrderStatus(order.Status), nil
}

// PositionRisk 查询持仓，过滤数量为零的条目。
func (a *Adapter) PositionRisk(ctx context.Context, symbol string) ([]*exchange.Position, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	svc := a.client.NewGetPositionRiskService()
	if symbol != "" {
		svc = svc.Symbol(symbol)
	}
	risks, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance position risk: %w", err)
	}

	out := make([]*exchange.Position, 0, len(risks))
	for _, r := range risks {
		amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		upnl, _ := strconv.ParseFloat(r.UnRealizedProfit, 64)
		out = append(out, &exchange.Position{
			Symbol:           r.Symbol,
			PositionAmt:      amt,
			EntryPrice:       entry,
			UnrealizedProfit: upnl,
		})
	}
	return out, nil
}

// BestBidAsk 查询最优买一卖一。
func (a *Adapter) BestBidAsk(ctx context.Context, symbol string) (*exchange.BookTicker, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	tickers, err := a.client.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance book ticker: %w", err)
	}
	if len(tickers) == 0 {
		return nil, exchange.ErrNoMarketPrice
	}
	bid, _ := strconv.ParseFloat(tickers[0].BidPrice, 64)
	ask, _ := strconv.ParseFloat(tickers[0].AskPrice, 64)
	return &exchange.BookTicker{Symbol: symbol, Bid: bid, Ask: ask}, nil
}

// SetLeverage 设置杠杆。
func (a *Adapter) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := a.client.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("binance change leverage: %w", err)
	}
	return nil
}

// SymbolFilters 从 exchangeInfo 提取 LOT_SIZE 过滤器。
func (a *Adapter) SymbolFilters(ctx context.Context, symbol string) (*exchange.SymbolFilters, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance exchange info: %w", err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		lot := s.LotSizeFilter()
		if lot == nil {
			return nil, fmt.Errorf("no LOT_SIZE filter for %s", symbol)
		}
		minQty, _ := strconv.ParseFloat(lot.MinQuantity, 64)
		step, _ := strconv.ParseFloat(lot.StepSize, 64)
		return &exchange.SymbolFilters{MinQty: minQty, StepSize: step}, nil
	}
	return nil, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

// formatQty 数量固定保留 3 位小数，与目标交易对精度一致。
func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', 3, 64)
}

var _ exchange.Venue = (*Adapter)(nil)
