package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// WatchKnowledgeFile reloads kb whenever path changes, until ctx is done.
// The parent directory is watched because editors replace files by rename.
// A file that fails to parse or validate is logged and the previous snapshot
// stays in place.
func WatchKnowledgeFile(ctx context.Context, path string, kb *KnowledgeBase) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				reloadKnowledge(abs, kb)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("knowledge base watcher error", "error", err)
			}
		}
	}()

	slog.Info("watching knowledge base", "path", abs)
	return nil
}

func reloadKnowledge(path string, kb *KnowledgeBase) {
	data, err := LoadKnowledgeFile(path)
	if err != nil {
		slog.Warn("knowledge base reload rejected, keeping previous snapshot", "path", path, "error", err)
		return
	}
	if err := kb.Replace(data); err != nil {
		slog.Warn("knowledge base reload rejected, keeping previous snapshot", "path", path, "error", err)
		return
	}
	slog.Info("knowledge base reloaded",
		"path", path,
		"schema_version", data.SchemaVersion,
		"templates", len(data.Templates),
		"rules", len(data.Rules),
	)
}
