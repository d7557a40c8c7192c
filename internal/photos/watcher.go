package photos

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback receives photo-library changes observed on disk.
// kind is "added" or "removed"; name is the bare filename.
type EventCallback func(kind, name string)

// Watch starts an fsnotify watcher on the managed photo directory and
// processes events until ctx is cancelled. Temporary files from atomic writes
// are ignored. After a burst of changes it emits a single debounced
// "library" refresh through cb with an empty name.
func (s *Service) Watch(ctx context.Context, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(s.dir); err != nil {
		return err
	}
	s.logger.Info("photo watcher started", slog.String("dir", s.dir))

	var refreshTimer *time.Timer
	var refreshCh <-chan time.Time
	scheduleRefresh := func() {
		if refreshTimer == nil {
			refreshTimer = time.NewTimer(200 * time.Millisecond)
			refreshCh = refreshTimer.C
		} else {
			refreshTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if refreshTimer != nil {
				refreshTimer.Stop()
			}
			s.logger.Info("photo watcher stopped")
			return nil

		case <-refreshCh:
			if cb != nil {
				cb("library", "")
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".dagaz-tmp-") {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				s.logger.Debug("photo added", slog.String("file", name))
				if cb != nil {
					cb("added", name)
				}
				scheduleRefresh()

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				s.logger.Debug("photo removed", slog.String("file", name))
				if cb != nil {
					cb("removed", name)
				}
				scheduleRefresh()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("photo watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
