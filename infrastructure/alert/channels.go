package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LogChannel 把告警写进结构化日志，永远可用，作为兜底通道。
type LogChannel struct {
	log *zap.Logger
}

// NewLogChannel 创建日志告警通道
func NewLogChannel(log *zap.Logger) *LogChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogChannel{log: log}
}

// Send 发送告警到日志
func (c *LogChannel) Send(a Alert) error {
	fields := []zap.Field{
		zap.String("level", a.Level),
		zap.String("title", a.Title),
	}
	for k, v := range a.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch a.Level {
	case LevelError, LevelCritical:
		c.log.Error(a.Title+": "+a.Message, fields...)
	case LevelWarning:
		c.log.Warn(a.Title+": "+a.Message, fields...)
	default:
		c.log.Info(a.Title+": "+a.Message, fields...)
	}
	return nil
}

// Name 返回通道名称
func (c *LogChannel) Name() string { return "log" }

// FeishuChannel 飞书 webhook 通道，payload 为 {msg_type, title, content}。
type FeishuChannel struct {
	WebhookURL string
	HTTPClient *http.Client
}

// NewFeishuChannel 创建飞书告警通道
func NewFeishuChannel(webhookURL string) *FeishuChannel {
	return &FeishuChannel{
		WebhookURL: webhookURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type feishuPayload struct {
	MsgType string `json:"msg_type"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Send 发送告警到飞书
func (c *FeishuChannel) Send(a Alert) error {
	if c.WebhookURL == "" {
		return nil
	}
	body, err := json.Marshal(feishuPayload{
		MsgType: "text",
		Title:   a.Title,
		Content: fmt.Sprintf("[%s] %s", a.Level, a.Message),
	})
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Post(c.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("feishu webhook status %d", resp.StatusCode)
	}
	return nil
}

// Name 返回通道名称
func (c *FeishuChannel) Name() string { return "feishu" }

// MockChannel 模拟告警通道（用于测试）
type MockChannel struct {
	mu        sync.Mutex
	alerts    []Alert
	shouldErr bool
}

// NewMockChannel 创建模拟告警通道
func NewMockChannel() *MockChannel {
	return &MockChannel{alerts: make([]Alert, 0)}
}

// Send 记录告警（用于测试验证）
func (c *MockChannel) Send(a Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.alerts = append(c.alerts, a)
	return nil
}

// Name 返回通道名称
func (c *MockChannel) Name() string { return "mock" }

// Alerts 获取所有接收到的告警
func (c *MockChannel) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// Count 返回接收到的告警数量
func (c *MockChannel) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

// SetShouldError 设置是否返回错误
func (c *MockChannel) SetShouldError(shouldErr bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldErr = shouldErr
}
