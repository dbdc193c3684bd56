package hyperliquid

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// MainnetWSURL 主网 WebSocket 地址。
	MainnetWSURL = "wss://api.hyperliquid.xyz/ws"

	pingInterval   = 30 * time.Second
	readTimeout    = 60 * time.Second
	reconnectDelay = 5 * time.Second
)

// StreamClient 订阅 hyperliquid 推送流。解码后的事件写入带缓冲的
// channel，由单一消费者取走，网络层不直接回调业务逻辑。
type StreamClient struct {
	URL    string
	Dialer *websocket.Dialer

	user  string   // orderUpdates 订阅的用户地址，空则不订阅
	coins []string // trades 订阅的币种列表

	events chan OrderEvent
	trades chan Trade

	onConnect    func()
	onDisconnect func(err error)

	log *zap.Logger
}

// NewStreamClient 创建流客户端。
func NewStreamClient(log *zap.Logger) *StreamClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamClient{
		URL:    MainnetWSURL,
		Dialer: websocket.DefaultDialer,
		events: make(chan OrderEvent, 256),
		trades: make(chan Trade, 1024),
		log:    log,
	}
}

// SubscribeOrderUpdates 订阅指定用户的订单事件。
func (c *StreamClient) SubscribeOrderUpdates(user string) {
	c.user = user
}

// SubscribeTrades 订阅币种成交流。
func (c *StreamClient) SubscribeTrades(coins []string) {
	c.coins = append(c.coins, coins...)
}

// Events 返回订单事件通道。
func (c *StreamClient) Events() <-chan OrderEvent { return c.events }

// Trades 返回成交 tick 通道。
func (c *StreamClient) Trades() <-chan Trade { return c.trades }

// OnConnect 设置连接成功回调（用于指标计数）。
func (c *StreamClient) OnConnect(fn func()) { c.onConnect = fn }

// OnDisconnect 设置断开回调。
func (c *StreamClient) OnDisconnect(fn func(err error)) { c.onDisconnect = fn }

// Run 维持连接直到 ctx 取消。断开后等待固定 5s 重连，事件顺序由
// 单连接单读循环保证。
func (c *StreamClient) Run(ctx context.Context) {
	for {
		err := c.runOnce(ctx)
		if c.onDisconnect != nil && err != nil {
			c.onDisconnect(err)
		}
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("stream disconnected, will reconnect",
			zap.Error(err),
			zap.Duration("delay", reconnectDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

type subscribeMsg struct {
	Method       string         `json:"method"`
	Subscription map[string]any `json:"subscription"`
}

func (c *StreamClient) runOnce(ctx context.Context) error {
	conn, _, err := c.Dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if c.user != "" {
		sub := subscribeMsg{Method: "subscribe", Subscription: map[string]any{
			"type": "orderUpdates",
			"user": c.user,
		}}
		if err := conn.WriteJSON(sub); err != nil {
			return err
		}
	}
	for _, coin := range c.coins {
		sub := subscribeMsg{Method: "subscribe", Subscription: map[string]any{
			"type": "trades",
			"coin": coin,
		}}
		if err := conn.WriteJSON(sub); err != nil {
			return err
		}
	}

	if c.onConnect != nil {
		c.onConnect()
	}
	c.log.Info("stream connected", zap.String("url", c.URL),
		zap.Strings("coins", c.coins), zap.String("user", c.user))

	// 写协程负责心跳；读失败时由 defer 关闭连接把它带下来
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go c.pingLoop(pingCtx, conn)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		events, trades, err := ParseMessage(raw)
		if err != nil {
			c.log.Warn("drop undecodable message", zap.Error(err))
			continue
		}
		for _, ev := range events {
			select {
			case c.events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for _, t := range trades {
			select {
			case c.trades <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (c *StreamClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	ping, _ := json.Marshal(map[string]string{"method": "ping"})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
		}
	}
}
