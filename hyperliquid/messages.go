// Package hyperliquid 实现源交易所客户端：WebSocket 订阅用户订单流与
// 成交流，REST /info 查询挂单与持仓。
package hyperliquid

import (
	"encoding/json"
	"fmt"
)

// 订单事件状态（与 hyperliquid orderUpdates 频道一致）。
const (
	StatusOpen           = "open"
	StatusFilled         = "filled"
	StatusCanceled       = "canceled"
	StatusTriggered      = "triggered"
	StatusRejected       = "rejected"
	StatusMarginCanceled = "marginCanceled"
)

// 方向编码：B 买 / A 卖。
const (
	SideBid = "B"
	SideAsk = "A"
)

// OrderEvent 一条源订单生命周期事件。
type OrderEvent struct {
	Coin    string
	Side    string // "B" / "A"
	LimitPx float64
	Sz      float64
	OID     int64
	Status  string
}

// Trade 一笔源成交 tick。
type Trade struct {
	Coin  string
	Price float64
	Qty   float64
}

// envelope 所有推送消息的外层包装。
type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type wireOrderUpdate struct {
	Order struct {
		Coin    string      `json:"coin"`
		Side    string      `json:"side"`
		LimitPx json.Number `json:"limitPx"`
		Sz      json.Number `json:"sz"`
		OID     int64       `json:"oid"`
	} `json:"order"`
	Status string `json:"status"`
}

type wireTrade struct {
	Coin string      `json:"coin"`
	Px   json.Number `json:"px"`
	Sz   json.Number `json:"sz"`
}

// ParseMessage 解析一条推送消息。非订阅数据（订阅确认、pong 等）
// 返回两个空切片。
func ParseMessage(raw []byte) ([]OrderEvent, []Trade, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Channel {
	case "orderUpdates":
		events, err := parseOrderUpdates(env.Data)
		return events, nil, err
	case "trades":
		trades, err := parseTrades(env.Data)
		return nil, trades, err
	default:
		return nil, nil, nil
	}
}

func parseOrderUpdates(data json.RawMessage) ([]OrderEvent, error) {
	var updates []wireOrderUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, fmt.Errorf("decode orderUpdates: %w", err)
	}
	events := make([]OrderEvent, 0, len(updates))
	for _, u := range updates {
		px, _ := u.Order.LimitPx.Float64()
		sz, _ := u.Order.Sz.Float64()
		events = append(events, OrderEvent{
			Coin:    u.Order.Coin,
			Side:    u.Order.Side,
			LimitPx: px,
			Sz:      sz,
			OID:     u.Order.OID,
			Status:  u.Status,
		})
	}
	return events, nil
}

func parseTrades(data json.RawMessage) ([]Trade, error) {
	var trades []wireTrade
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	out := make([]Trade, 0, len(trades))
	for _, t := range trades {
		px, _ := t.Px.Float64()
		sz, _ := t.Sz.Float64()
		out = append(out, Trade{Coin: t.Coin, Price: px, Qty: sz})
	}
	return out, nil
}
