package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/psxexport/internal/logger"
)

// settle is how long the scene file must stay quiet before a re-export.
const settle = 300 * time.Millisecond

// cmdWatch exports once, then again after every change of the scene file.
// Runs never overlap: events arriving during a run are folded into the next.
func cmdWatch(ctx context.Context, args []string) error {
	cfg, path, err := setup("watch", args)
	if err != nil {
		return err
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Editors often replace the file, so watch its folder.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	logger.Info("watching", zap.String("scene", path))

	logRun(run(ctx, cfg, path))

	timer := time.NewTimer(settle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug("scene changed", zap.String("op", ev.Op.String()))
			timer.Reset(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			logRun(run(ctx, cfg, path))
		}
	}
}
