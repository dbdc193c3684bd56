package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 基于 fsnotify 监听配置文件变更，变更后重新加载并回调。
// 编辑器保存往往触发多个事件，用冷却时间合并。
type Watcher struct {
	Path     string
	Cooldown time.Duration // 默认 5s

	log *zap.Logger
}

// NewWatcher 创建配置监听器。
func NewWatcher(path string, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{Path: path, Cooldown: 5 * time.Second, log: log}
}

// Start 阻塞监听直到 ctx 取消；每次成功重载调用 onUpdate。
// 加载失败只记日志，继续使用旧配置。
func (w *Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// 监听目录而不是文件本身：多数编辑器用 rename+create 保存
	if err := watcher.Add(filepath.Dir(w.Path)); err != nil {
		return err
	}

	var lastReload time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.Path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if time.Since(lastReload) < w.Cooldown {
				continue
			}
			lastReload = time.Now()

			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				w.log.Warn("config reload failed, keeping previous", zap.Error(err))
				continue
			}
			w.log.Info("config reloaded", zap.String("path", w.Path))
			if onUpdate != nil {
				onUpdate(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", zap.Error(err))
		}
	}
}
