// Package mirror 实现订单镜像引擎与对账循环：消费源交易所的订单
// 生命周期事件，在目标交易所复刻动作，并周期性核对两边的挂单与
// 净持仓。
package mirror

import (
	"context"
	"time"

	"hyper-mirror-go/config"
)

// MirroredOrder 一条源订单到目标订单的映射。只在源订单未到终态时
// 存在，由引擎的串行命令循环独占修改。
type MirroredOrder struct {
	SourceOID   int64
	Symbol      string
	DestOrderID int64
	CreatedAt   time.Time
}

// SourceQuery 对账所需的源交易所状态查询。
type SourceQuery interface {
	// OpenOrderIDs 返回源侧当前挂单的 oid 集合。
	OpenOrderIDs(ctx context.Context) (map[int64]bool, error)
	// PositionSizes 返回源侧各币种的带符号净持仓。
	PositionSizes(ctx context.Context) (map[string]float64, error)
}

// Alerter 告警发送抽象，由 alert.Manager 实现。
type Alerter interface {
	Notify(level, title, message string, fields map[string]interface{})
}

// nopAlerter 在未配置告警时使用。
type nopAlerter struct{}

func (nopAlerter) Notify(string, string, string, map[string]interface{}) {}

// Config 引擎配置。
type Config struct {
	// Symbols 源币种到目标交易对的映射。
	Symbols map[string]config.SymbolMapping
	// Leverage 启动时为每个目标交易对设置的杠杆。
	Leverage int
	// ReconcileInterval 对账周期，同时也是两次对账之间的最小间隔。
	ReconcileInterval time.Duration
	// CallTimeout 单次目标交易所调用的超时。
	CallTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = 5 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.Leverage <= 0 {
		c.Leverage = 20
	}
}
