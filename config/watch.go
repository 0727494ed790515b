package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 监听配置文件变化。参数在启动时固定，变化只通知调用方（提示需要重启）。
type Watcher struct {
	path     string
	cooldown time.Duration
	watcher  *fsnotify.Watcher
	logger   *zap.Logger

	mu         sync.Mutex
	lastNotify time.Time
}

// NewWatcher 监听 path 所在目录，兼容编辑器的 rename 保存方式。
func NewWatcher(path string, cooldown time.Duration, log *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{path: abs, cooldown: cooldown, watcher: fw, logger: log}, nil
}

// Run 阻塞直到 ctx 结束；每次文件变化重新加载并回调（加载失败时 err 非空）。
func (w *Watcher) Run(ctx context.Context, onChange func(AppConfig, error)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			// 只处理写入、创建和重命名事件
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.allow(time.Now()) {
				continue
			}
			cfg, err := LoadWithEnvOverrides(w.path)
			if onChange != nil {
				onChange(cfg, err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			// 记录错误但继续监听
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// allow 冷却期内的重复事件被合并
func (w *Watcher) allow(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.lastNotify.IsZero() && now.Sub(w.lastNotify) < w.cooldown {
		return false
	}
	w.lastNotify = now
	return true
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
