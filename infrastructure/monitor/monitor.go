// Package monitor 提供跟单引擎的 Prometheus 指标。
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 源事件指标
	EventsProcessed *prometheus.CounterVec
	EventsDropped   prometheus.Counter

	// 镜像指标
	OrdersMirrored  prometheus.Counter
	OrdersCanceled  prometheus.Counter
	MirrorFailures  prometheus.Counter
	SubmitFailures  prometheus.Counter
	MappedOrders    prometheus.Gauge

	// 对账指标
	ReconcileCycles   prometheus.Counter
	ReconcileErrors   prometheus.Counter
	CorrectiveOrders  *prometheus.CounterVec
	PositionDrift     *prometheus.GaugeVec

	// 连接指标
	StreamConnects    prometheus.Counter
	StreamDisconnects prometheus.Counter

	// 模拟盘指标
	SimFills prometheus.Counter
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "mirror",
		Subsystem: "engine",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "source_events_total",
			Help:      "按状态统计的源订单事件数",
		}, []string{"status"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "source_events_dropped_total",
			Help:      "校验失败被丢弃的源事件数",
		}),

		OrdersMirrored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_mirrored_total",
			Help:      "成功镜像到目标交易所的订单数",
		}),
		OrdersCanceled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_canceled_total",
			Help:      "跟随源撤销的目标订单数",
		}),
		MirrorFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "mirror_failures_total",
			Help:      "源已成交但目标未成交的跟单失败数",
		}),
		SubmitFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "submit_failures_total",
			Help:      "目标交易所下单失败数",
		}),
		MappedOrders: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "mapped_orders",
			Help:      "当前跟踪中的订单映射数量",
		}),

		ReconcileCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "reconcile_cycles_total",
			Help:      "对账循环执行次数",
		}),
		ReconcileErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "reconcile_errors_total",
			Help:      "对账过程中的适配器错误数",
		}),
		CorrectiveOrders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "corrective_orders_total",
			Help:      "按交易对统计的纠偏订单数",
		}, []string{"symbol"}),
		PositionDrift: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "position_drift",
			Help:      "源与目标净持仓差（源侧单位）",
		}, []string{"symbol"}),

		StreamConnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_connects_total",
			Help:      "源 WebSocket 连接成功次数",
		}),
		StreamDisconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_disconnects_total",
			Help:      "源 WebSocket 断开次数",
		}),

		SimFills: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "sim_fills_total",
			Help:      "模拟撮合引擎成交次数",
		}),
	}
	return m
}

// Handler 返回 /metrics 的 HTTP handler。
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve 在 addr 上暴露 /metrics；addr 为空时不启动。
func (m *Monitor) Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
