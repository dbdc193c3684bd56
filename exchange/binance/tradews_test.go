package binance

import "testing"

func TestParseCombinedTrade(t *testing.T) {
	raw := []byte(`{"stream":"btcusdc@trade","data":{"e":"trade","s":"BTCUSDC","p":"65000.50","q":"0.012","T":1700000000000}}`)
	tick, err := ParseCombinedTrade(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tick == nil {
		t.Fatalf("trade stream must yield a tick")
	}
	if tick.Symbol != "BTCUSDC" || tick.Price != 65000.50 || tick.Qty != 0.012 {
		t.Fatalf("unexpected tick %+v", tick)
	}
}

// 非 @trade 流的消息跳过，不报错。
func TestParseCombinedTradeOtherStream(t *testing.T) {
	raw := []byte(`{"stream":"btcusdc@depth20@100ms","data":{"s":"BTCUSDC"}}`)
	tick, err := ParseCombinedTrade(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tick != nil {
		t.Fatalf("non-trade stream must yield nil, got %+v", tick)
	}
}

func TestParseCombinedTradeMalformed(t *testing.T) {
	if _, err := ParseCombinedTrade([]byte(`garbage`)); err == nil {
		t.Fatalf("malformed payload must error")
	}
}

func TestStreamURL(t *testing.T) {
	s := NewTradeStream([]string{"BTCUSDC", "ETHUSDC"}, nil)
	addr, err := s.streamURL()
	if err != nil {
		t.Fatalf("streamURL: %v", err)
	}
	want := "wss://fstream.binance.com/stream?streams=btcusdc%40trade%2Fethusdc%40trade"
	if addr != want {
		t.Fatalf("url = %s, want %s", addr, want)
	}

	empty := NewTradeStream(nil, nil)
	if _, err := empty.streamURL(); err == nil {
		t.Fatalf("no symbols must error")
	}
}
