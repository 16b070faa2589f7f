package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watcher on the directory containing path and
// returns a channel that receives a value whenever path is written or
// renamed. It is a companion to the Supervisor's periodic polling
// reload (spec.md §4.H): a signal on this channel only hints that a
// reload is worth attempting sooner, it never changes reload semantics.
//
// The returned channel is closed, and the watcher released, when ctx is
// done. Callers that do not want this behavior can simply ignore it and
// rely on polling alone.
func Watch(ctx context.Context, path string, logger *slog.Logger) (<-chan struct{}, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: starting watcher: %w", ErrNotFound, err)
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()

		return nil, fmt.Errorf("%w: watching %s: %w", ErrNotFound, dir, err)
	}

	changes := make(chan struct{}, 1)

	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if filepath.Base(event.Name) != base {
					continue
				}

				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				select {
				case changes <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.WarnContext(ctx, "config watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	return changes, nil
}
