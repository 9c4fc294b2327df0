package blueprint

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads the blueprint at path whenever it changes and passes the
// result to fn. A failed reload is passed as a non-nil error with a nil
// blueprint. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, logger zerolog.Logger, fn func(*Blueprint, error)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory (more reliable for editors that do atomic saves)
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	logger.Info().Str("path", absPath).Msg("watching blueprint for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("blueprint changed")

			bp, err := Load(absPath)
			if err != nil {
				logger.Error().Err(err).Msg("blueprint reload failed")
			}
			fn(bp, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("blueprint watcher error")
		}
	}
}
