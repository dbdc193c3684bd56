package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FuturesWSEndpoint 币安 USD-M 合约行情流地址。
const FuturesWSEndpoint = "wss://fstream.binance.com"

const (
	tradeReadTimeout     = 60 * time.Second
	tradeReconnectDelay  = 5 * time.Second
	tradeChannelCapacity = 1024
)

// TradeTick 一笔逐笔成交。
type TradeTick struct {
	Symbol string
	Price  float64
	Qty    float64
}

// combinedMessage 对应 binance combined stream 包装。
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type tradeEvent struct {
	Symbol string      `json:"s"`
	Price  json.Number `json:"p"`
	Qty    json.Number `json:"q"`
}

// ParseCombinedTrade 解析 combined stream 的 @trade 消息。
func ParseCombinedTrade(raw []byte) (*TradeTick, error) {
	var msg combinedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(msg.Stream, "@trade") {
		return nil, nil
	}
	var ev tradeEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return nil, err
	}
	price, _ := ev.Price.Float64()
	qty, _ := ev.Qty.Float64()
	return &TradeTick{Symbol: ev.Symbol, Price: price, Qty: qty}, nil
}

// TradeStream 订阅若干交易对的 @trade combined stream，给模拟撮合
// 引擎喂价。断线固定延迟后重连。
type TradeStream struct {
	BaseEndpoint string
	Dialer       *websocket.Dialer

	symbols []string
	ticks   chan TradeTick
	log     *zap.Logger
}

// NewTradeStream 创建行情流客户端。
func NewTradeStream(symbols []string, log *zap.Logger) *TradeStream {
	if log == nil {
		log = zap.NewNop()
	}
	return &TradeStream{
		BaseEndpoint: FuturesWSEndpoint,
		Dialer:       websocket.DefaultDialer,
		symbols:      symbols,
		ticks:        make(chan TradeTick, tradeChannelCapacity),
		log:          log,
	}
}

// Ticks 返回成交推送通道。
func (s *TradeStream) Ticks() <-chan TradeTick {
	return s.ticks
}

func (s *TradeStream) streamURL() (string, error) {
	if len(s.symbols) == 0 {
		return "", fmt.Errorf("no symbols subscribed")
	}
	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, strings.ToLower(sym)+"@trade")
	}
	u := url.URL{
		Scheme: "wss",
		Host:   strings.TrimPrefix(s.BaseEndpoint, "wss://"),
		Path:   "/stream",
	}
	q := u.Query()
	q.Set("streams", strings.Join(streams, "/"))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run 维持连接直到 ctx 取消。
func (s *TradeStream) Run(ctx context.Context) error {
	addr, err := s.streamURL()
	if err != nil {
		return err
	}
	for {
		if err := s.runOnce(ctx, addr); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("trade stream disconnected, reconnecting",
				zap.Error(err),
				zap.Duration("delay", tradeReconnectDelay))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tradeReconnectDelay):
		}
	}
}

func (s *TradeStream) runOnce(ctx context.Context, addr string) error {
	conn, _, err := s.Dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	s.log.Info("trade stream connected", zap.Strings("symbols", s.symbols))

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(tradeReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		tick, err := ParseCombinedTrade(message)
		if err != nil {
			s.log.Warn("bad trade message", zap.Error(err))
			continue
		}
		if tick == nil {
			continue
		}
		select {
		case s.ticks <- *tick:
		default:
			// 消费侧落后时丢最新一笔，行情流允许有损
		}
	}
}
