package gatewayhttp

import (
	"context"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/goclaw/router/internal/gwconfig"
)

// WatchConfigFile re-parses path on every write event and atomically swaps
// the server's active config, using an explicit background goroutine tied
// to a context. A parse failure is logged and the previous config keeps
// serving; no partial config is ever installed.
func (s *Server) WatchConfigFile(ctx context.Context, path string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.reloadFrom(path, logger)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (s *Server) reloadFrom(path string, logger *slog.Logger) {
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Error("config reload: read failed", "path", path, "error", err)
		return
	}
	cfg, err := gwconfig.Parse(string(raw))
	if err != nil {
		logger.Error("config reload: parse failed, keeping previous config", "path", path, "error", err)
		return
	}
	s.SetConfig(cfg)
	logger.Info("config reloaded", "path", path, "providers", len(cfg.Providers))
}
