package alert

import (
	"testing"
	"time"
)

func TestThrottlerAllowsAfterInterval(t *testing.T) {
	th := NewThrottler(50 * time.Millisecond)
	if !th.Allow("k") {
		t.Fatalf("first send must pass")
	}
	if th.Allow("k") {
		t.Fatalf("second send within interval must be throttled")
	}
	time.Sleep(60 * time.Millisecond)
	if !th.Allow("k") {
		t.Fatalf("send after interval must pass")
	}
}

func TestThrottlerKeysIndependent(t *testing.T) {
	th := NewThrottler(time.Minute)
	if !th.Allow("a") || !th.Allow("b") {
		t.Fatalf("different keys must not throttle each other")
	}
}

func TestThrottlerReset(t *testing.T) {
	th := NewThrottler(time.Minute)
	th.Allow("k")
	th.Reset("k")
	if !th.Allow("k") {
		t.Fatalf("reset must clear the throttle record")
	}
}

func TestNotifyThrottledByTitle(t *testing.T) {
	mock := NewMockChannel()
	m := NewManager([]Channel{mock}, time.Minute)

	m.Notify(LevelWarning, "PositionDrift", "first", nil)
	m.Notify(LevelWarning, "PositionDrift", "duplicate", nil)
	m.Notify(LevelError, "OrderSubmitFailed", "other title", nil)

	if mock.Count() != 2 {
		t.Fatalf("sent = %d, want 2 (duplicate title throttled)", mock.Count())
	}
	alerts := mock.Alerts()
	if alerts[0].Message != "first" || alerts[1].Title != "OrderSubmitFailed" {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
}

// 单个通道失败不影响其它通道。
func TestNotifyBestEffortAcrossChannels(t *testing.T) {
	failing := NewMockChannel()
	failing.SetShouldError(true)
	healthy := NewMockChannel()
	m := NewManager([]Channel{failing, healthy}, time.Minute)

	m.Notify(LevelCritical, "MirrorFillMissed", "msg", map[string]interface{}{"oid": int64(7)})

	if healthy.Count() != 1 {
		t.Fatalf("healthy channel must still receive the alert")
	}
}

func TestAddChannel(t *testing.T) {
	m := NewManager(nil, time.Minute)
	mock := NewMockChannel()
	m.AddChannel(mock)
	m.Notify(LevelInfo, "MirrorBot", "started", nil)
	if mock.Count() != 1 {
		t.Fatalf("added channel must receive alerts")
	}
}
