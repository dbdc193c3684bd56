package faker

import (
	"context"
	"errors"
	"testing"

	"hyper-mirror-go/exchange"
)

// 测试统一用零费率，让盈亏数字不掺手续费。
func newTestEngine() *Engine {
	return New(Config{MakerFeeBps: 0, TakerFeeBps: 0}, nil)
}

func marketOrder(symbol string, side exchange.Side, qty float64) *exchange.OrderRequest {
	return &exchange.OrderRequest{
		Symbol: symbol, Side: side,
		Type: exchange.OrderTypeMarket, Quantity: qty,
	}
}

func limitOrder(symbol string, side exchange.Side, price, qty float64) *exchange.OrderRequest {
	return &exchange.OrderRequest{
		Symbol: symbol, Side: side,
		Type: exchange.OrderTypeLimit, TimeInForce: exchange.TimeInForceGTX,
		Price: price, Quantity: qty,
	}
}

func TestSubmitWithoutMarketPrice(t *testing.T) {
	e := newTestEngine()
	_, err := e.SubmitOrder(context.Background(), limitOrder("BTCUSDC", exchange.SideBuy, 99, 1))
	if !errors.Is(err, exchange.ErrNoMarketPrice) {
		t.Fatalf("expected ErrNoMarketPrice, got %v", err)
	}
}

func TestPostOnlyValidation(t *testing.T) {
	cases := []struct {
		name   string
		side   exchange.Side
		price  float64
		reject bool
	}{
		{"buy below last accepted", exchange.SideBuy, 99, false},
		{"buy at last rejected", exchange.SideBuy, 100, true},
		{"buy above last rejected", exchange.SideBuy, 101, true},
		{"sell above last accepted", exchange.SideSell, 101, false},
		{"sell at last rejected", exchange.SideSell, 100, true},
		{"sell below last rejected", exchange.SideSell, 99, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine()
			e.OnTick("BTCUSDC", 100, 1)
			_, err := e.SubmitOrder(context.Background(), limitOrder("BTCUSDC", tc.side, tc.price, 1))
			if tc.reject && !errors.Is(err, exchange.ErrPostOnlyReject) {
				t.Fatalf("expected post-only reject, got %v", err)
			}
			if !tc.reject && err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
		})
	}
}

// 买单只在 tick 跌破挂单价时成交，且按挂单自身价格成交。
func TestLimitBuyFillsOnCross(t *testing.T) {
	e := newTestEngine()
	e.OnTick("BTCUSDC", 100, 1)
	o, err := e.SubmitOrder(context.Background(), limitOrder("BTCUSDC", exchange.SideBuy, 99, 2))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	e.OnTick("BTCUSDC", 99.5, 1) // 未穿越
	if st, _ := e.QueryOrderStatus(context.Background(), "BTCUSDC", o.OrderID); st != exchange.OrderStatusNew {
		t.Fatalf("tick above limit must not fill, status=%s", st)
	}
	e.OnTick("BTCUSDC", 99, 1) // 等于挂单价仍不成交
	if st, _ := e.QueryOrderStatus(context.Background(), "BTCUSDC", o.OrderID); st != exchange.OrderStatusNew {
		t.Fatalf("tick at limit must not fill, status=%s", st)
	}

	e.OnTick("BTCUSDC", 98.9, 1)
	st, _ := e.QueryOrderStatus(context.Background(), "BTCUSDC", o.OrderID)
	if st != exchange.OrderStatusFilled {
		t.Fatalf("tick below limit must fill, status=%s", st)
	}

	positions, _ := e.PositionRisk(context.Background(), "BTCUSDC")
	if len(positions) != 1 {
		t.Fatalf("expected one position, got %d", len(positions))
	}
	// 成交价取挂单价 99，不是 tick 价 98.9
	if positions[0].EntryPrice != 99 || positions[0].PositionAmt != 2 {
		t.Fatalf("position = %+v, want amt 2 entry 99", positions[0])
	}
}

func TestLimitSellFillsOnCross(t *testing.T) {
	e := newTestEngine()
	e.OnTick("ETHUSDC", 100, 1)
	o, err := e.SubmitOrder(context.Background(), limitOrder("ETHUSDC", exchange.SideSell, 101, 1))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	e.OnTick("ETHUSDC", 101.5, 1)
	st, _ := e.QueryOrderStatus(context.Background(), "ETHUSDC", o.OrderID)
	if st != exchange.OrderStatusFilled {
		t.Fatalf("tick above sell limit must fill, status=%s", st)
	}
	positions, _ := e.PositionRisk(context.Background(), "ETHUSDC")
	if positions[0].PositionAmt != -1 || positions[0].EntryPrice != 101 {
		t.Fatalf("position = %+v, want amt -1 entry 101", positions[0])
	}
}

func TestCancelLifecycle(t *testing.T) {
	e := newTestEngine()
	e.OnTick("BTCUSDC", 100, 1)

	if err := e.CancelOrder(context.Background(), "BTCUSDC", 42); !errors.Is(err, exchange.ErrOrderNotFound) {
		t.Fatalf("unknown order: expected ErrOrderNotFound, got %v", err)
	}

	o, _ := e.SubmitOrder(context.Background(), limitOrder("BTCUSDC", exchange.SideBuy, 99, 1))
	if err := e.CancelOrder(context.Background(), "BTCUSDC", o.OrderID); err != nil {
		t.Fatalf("cancel new order: %v", err)
	}
	open, _ := e.ListOpenOrders(context.Background(), "BTCUSDC")
	if len(open) != 0 {
		t.Fatalf("canceled order must leave the open list")
	}

	o2, _ := e.SubmitOrder(context.Background(), limitOrder("BTCUSDC", exchange.SideBuy, 99, 1))
	e.OnTick("BTCUSDC", 98, 1)
	if err := e.CancelOrder(context.Background(), "BTCUSDC", o2.OrderID); !errors.Is(err, exchange.ErrOrderTerminal) {
		t.Fatalf("filled order: expected ErrOrderTerminal, got %v", err)
	}
}

// 多 2 @100，平 1 @110：实现 +10，剩余 1 @100。
func TestRealizedPnLPartialClose(t *testing.T) {
	e := newTestEngine()
	e.OnTick("BTCUSDC", 100, 1)
	if _, err := e.SubmitOrder(context.Background(), marketOrder("BTCUSDC", exchange.SideBuy, 2)); err != nil {
		t.Fatalf("open: %v", err)
	}
	e.OnTick("BTCUSDC", 110, 1)
	if _, err := e.SubmitOrder(context.Background(), marketOrder("BTCUSDC", exchange.SideSell, 1)); err != nil {
		t.Fatalf("close: %v", err)
	}

	s := e.AccountSnapshot()
	if s.Realized != 10 {
		t.Fatalf("realized = %v, want 10", s.Realized)
	}
	positions, _ := e.PositionRisk(context.Background(), "BTCUSDC")
	if positions[0].PositionAmt != 1 || positions[0].EntryPrice != 100 {
		t.Fatalf("position = %+v, want amt 1 entry 100", positions[0])
	}
}

// 空头盈亏符号相反：空 1 @100，买回 @90 实现 +10，仓位删除。
func TestShortPnLAndZeroPositionRemoval(t *testing.T) {
	e := newTestEngine()
	e.OnTick("BTCUSDC", 100, 1)
	e.SubmitOrder(context.Background(), marketOrder("BTCUSDC", exchange.SideSell, 1))
	e.OnTick("BTCUSDC", 90, 1)
	e.SubmitOrder(context.Background(), marketOrder("BTCUSDC", exchange.SideBuy, 1))

	s := e.AccountSnapshot()
	if s.Realized != 10 {
		t.Fatalf("short realized = %v, want 10", s.Realized)
	}
	positions, _ := e.PositionRisk(context.Background(), "BTCUSDC")
	if len(positions) != 0 {
		t.Fatalf("zero position must be deleted, got %+v", positions)
	}
}

// 反手：多 1 @100，卖 3 @120 → 实现 +20，转为空 2 @120。
func TestReversal(t *testing.T) {
	e := newTestEngine()
	e.OnTick("BTCUSDC", 100, 1)
	e.SubmitOrder(context.Background(), marketOrder("BTCUSDC", exchange.SideBuy, 1))
	e.OnTick("BTCUSDC", 120, 1)
	e.SubmitOrder(context.Background(), marketOrder("BTCUSDC", exchange.SideSell, 3))

	s := e.AccountSnapshot()
	if s.Realized != 20 {
		t.Fatalf("realized = %v, want 20", s.Realized)
	}
	positions, _ := e.PositionRisk(context.Background(), "BTCUSDC")
	if positions[0].PositionAmt != -2 || positions[0].EntryPrice != 120 {
		t.Fatalf("position = %+v, want amt -2 entry 120", positions[0])
	}
}

// 同向加仓按名义金额加权入场价。
func TestWeightedAverageEntry(t *testing.T) {
	e := newTestEngine()
	e.OnTick("BTCUSDC", 100, 1)
	e.SubmitOrder(context.Background(), marketOrder("BTCUSDC", exchange.SideBuy, 1))
	e.OnTick("BTCUSDC", 300, 1)
	e.SubmitOrder(context.Background(), marketOrder("BTCUSDC", exchange.SideBuy, 1))

	positions, _ := e.PositionRisk(context.Background(), "BTCUSDC")
	if positions[0].EntryPrice != 200 || positions[0].PositionAmt != 2 {
		t.Fatalf("position = %+v, want amt 2 entry 200", positions[0])
	}
}

func TestUnrealizedMarkToMarket(t *testing.T) {
	e := newTestEngine()
	e.OnTick("BTCUSDC", 100, 1)
	e.SubmitOrder(context.Background(), marketOrder("BTCUSDC", exchange.SideBuy, 1))
	e.OnTick("BTCUSDC", 110, 1)

	positions, _ := e.PositionRisk(context.Background(), "BTCUSDC")
	if positions[0].UnrealizedProfit != 10 {
		t.Fatalf("unrealized = %v, want 10", positions[0].UnrealizedProfit)
	}
}

func TestTakerFeeDebitsBalance(t *testing.T) {
	e := New(Config{TakerFeeBps: 5}, nil)
	e.OnTick("BTCUSDC", 10000, 1)
	e.SubmitOrder(context.Background(), marketOrder("BTCUSDC", exchange.SideBuy, 1))

	s := e.AccountSnapshot()
	// 买入占用 10000，外加 5bp 手续费 5
	if s.Balance != -10005 {
		t.Fatalf("balance = %v, want -10005", s.Balance)
	}
}

func TestBestBidAskUsesLastTick(t *testing.T) {
	e := newTestEngine()
	e.OnTick("BTCUSDC", 12345, 1)
	bt, err := e.BestBidAsk(context.Background(), "BTCUSDC")
	if err != nil {
		t.Fatalf("bestBidAsk: %v", err)
	}
	if bt.Bid != 12345 || bt.Ask != 12345 {
		t.Fatalf("bid/ask = %v/%v, want last tick both sides", bt.Bid, bt.Ask)
	}
}
