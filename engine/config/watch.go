package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads path whenever it is written or replaced and calls onChange with the new
// configuration. Reload failures are logged and the previous configuration stays in effect.
// The parent directory is watched so editors that save by rename are seen.
//
// Watch blocks until ctx is done.
//
// Parameters:
//   - ctx: stops the watcher
//   - path: the configuration file
//   - onChange: receives every successfully reloaded configuration
//
// Returns:
//   - error: error if the watcher cannot be started
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch config %s: %w", path, err)
	}
	common.Logger().Info("watching config", "path", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			c, err := Load(abs)
			if err != nil {
				common.Logger().Warn("config reload failed", "path", abs, "err", err)
				continue
			}
			common.Logger().Info("config reloaded", "path", abs)
			onChange(c)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			common.Logger().Warn("config watcher error", "err", err)
		}
	}
}
