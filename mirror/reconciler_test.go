package mirror

import (
	"context"
	"testing"
	"time"

	"hyper-mirror-go/exchange"
	"hyper-mirror-go/hyperliquid"
)

func TestReconcileSpacingGuard(t *testing.T) {
	venue := newMockVenue()
	source := &mockSource{sizes: map[string]float64{"BTC": 1.0}}
	e := newTestEngine(t, venue, source)

	e.runReconcile(context.Background())
	first := len(venue.submitted)
	e.runReconcile(context.Background()) // 与上轮间隔不足，应被跳过
	if len(venue.submitted) != first {
		t.Fatalf("second cycle within interval must be skipped")
	}
}

func TestSweepSourceGoneCancelsOrphan(t *testing.T) {
	venue := newMockVenue()
	source := &mockSource{}
	e := newTestEngine(t, venue, source)

	e.handleEvent(context.Background(), openEvent(1, hyperliquid.SideBid, 100, 1.0))
	destID := venue.nextOrderID

	// 源侧挂单列表为空：该映射是孤儿
	e.runReconcile(context.Background())

	found := false
	for _, id := range venue.canceled {
		if id == destID {
			found = true
		}
	}
	if !found {
		t.Fatalf("orphan dest order %d must be canceled, got %v", destID, venue.canceled)
	}
	if e.MappedOrders() != 0 {
		t.Fatalf("orphan mapping must be dropped")
	}
}

func TestSweepSourceGoneKeepsLiveMapping(t *testing.T) {
	venue := newMockVenue()
	source := &mockSource{openIDs: map[int64]bool{2: true}}
	e := newTestEngine(t, venue, source)

	e.handleEvent(context.Background(), openEvent(2, hyperliquid.SideBid, 100, 1.0))
	destID := venue.nextOrderID
	// 目标侧挂单列表里也有它，避免被 dest 清扫误删
	venue.openOrders["BTCUSDC"] = []*exchange.Order{{OrderID: destID}}

	e.runReconcile(context.Background())

	if e.MappedOrders() != 1 {
		t.Fatalf("live mapping must survive reconcile")
	}
	if len(venue.canceled) != 0 {
		t.Fatalf("live dest order must not be canceled")
	}
}

func TestSweepDestGoneDropsMapping(t *testing.T) {
	venue := newMockVenue()
	source := &mockSource{openIDs: map[int64]bool{3: true}}
	e := newTestEngine(t, venue, source)

	e.handleEvent(context.Background(), openEvent(3, hyperliquid.SideBid, 100, 1.0))
	// 目标侧挂单列表为空：目标单已成交或被外部撤掉

	e.runReconcile(context.Background())

	if e.MappedOrders() != 0 {
		t.Fatalf("mapping must be dropped when dest order left the open list")
	}
	if len(venue.canceled) != 0 {
		t.Fatalf("dest-gone sweep must not cancel anything")
	}
}

func TestDriftBelowToleranceNoCorrective(t *testing.T) {
	venue := newMockVenue()
	source := &mockSource{sizes: map[string]float64{"BTC": 0.5}} // 0.5 < 0.55
	e := newTestEngine(t, venue, source)

	e.runReconcile(context.Background())

	if len(venue.submitted) != 0 {
		t.Fatalf("drift below tolerance must not trigger a corrective order")
	}
}

func TestDriftAtTolerancePlacesCorrective(t *testing.T) {
	venue := newMockVenue()
	source := &mockSource{sizes: map[string]float64{"BTC": 0.6}}
	e := newTestEngine(t, venue, source)

	e.runReconcile(context.Background())

	if len(venue.submitted) != 1 {
		t.Fatalf("drift >= tolerance must place exactly one corrective, got %d", len(venue.submitted))
	}
	req := venue.submitted[0]
	if req.Side != exchange.SideBuy {
		t.Fatalf("positive drift must buy, got %s", req.Side)
	}
	if req.TimeInForce != exchange.TimeInForceGTX {
		t.Fatalf("corrective must be post-only")
	}
	// 0.6/500 = 0.0012，按步长 0.001 向下取整
	if req.Quantity != 0.001 {
		t.Fatalf("qty = %v, want 0.001", req.Quantity)
	}
	if req.Price != venue.ticker.Bid {
		t.Fatalf("buy corrective must price at best bid, got %v", req.Price)
	}
}

func TestNegativeDriftSellsAtAsk(t *testing.T) {
	venue := newMockVenue()
	venue.positions = []*exchange.Position{{Symbol: "BTCUSDC", PositionAmt: 0.002}}
	source := &mockSource{sizes: map[string]float64{"BTC": 0}} // dest 折算 1.0，diff = -1.0
	e := newTestEngine(t, venue, source)

	e.runReconcile(context.Background())

	if len(venue.submitted) != 1 {
		t.Fatalf("expected one corrective, got %d", len(venue.submitted))
	}
	req := venue.submitted[0]
	if req.Side != exchange.SideSell {
		t.Fatalf("negative drift must sell, got %s", req.Side)
	}
	if req.Price != venue.ticker.Ask {
		t.Fatalf("sell corrective must price at best ask, got %v", req.Price)
	}
}

// 上轮纠偏单还挂着时，先撤旧单再下新单，同一交易对绝不叠加。
func TestStaleCorrectiveSuperseded(t *testing.T) {
	venue := newMockVenue()
	source := &mockSource{sizes: map[string]float64{"BTC": 0.6}}
	e := newTestEngine(t, venue, source)

	e.runReconcile(context.Background())
	staleID := e.corrective["BTCUSDC"]
	if staleID == 0 {
		t.Fatalf("first cycle must record the corrective order")
	}

	// 纠偏单仍在挂单列表，漂移未消除
	venue.openOrders["BTCUSDC"] = []*exchange.Order{{OrderID: staleID}}
	e.lastCycle = time.Time{}
	e.runReconcile(context.Background())

	if len(venue.canceled) != 1 || venue.canceled[0] != staleID {
		t.Fatalf("stale corrective %d must be canceled first, got %v", staleID, venue.canceled)
	}
	if len(venue.submitted) != 2 {
		t.Fatalf("expected a fresh corrective after cancel, submitted=%d", len(venue.submitted))
	}
	if e.corrective["BTCUSDC"] == staleID {
		t.Fatalf("corrective record must point at the new order")
	}
}

// 纠偏单已成交（不在挂单列表）且漂移消除：记录作废，不再下单。
func TestCorrectiveFilledClearsRecord(t *testing.T) {
	venue := newMockVenue()
	source := &mockSource{sizes: map[string]float64{"BTC": 0.6}}
	e := newTestEngine(t, venue, source)

	e.runReconcile(context.Background())

	// 漂移已被纠偏单成交抹平
	source.sizes["BTC"] = 0.6
	venue.positions = []*exchange.Position{{Symbol: "BTCUSDC", PositionAmt: 0.0012}}
	e.lastCycle = time.Time{}
	e.runReconcile(context.Background())

	if _, ok := e.corrective["BTCUSDC"]; ok {
		t.Fatalf("filled corrective must be forgotten")
	}
	if len(venue.submitted) != 1 {
		t.Fatalf("no drift left, no new corrective expected")
	}
}
