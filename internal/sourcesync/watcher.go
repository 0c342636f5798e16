package sourcesync

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/atelier/internal/blob"
)

// Dir is a blob store backed by a local directory.
type Dir interface {
	Lister
	Root() string
	KeyFor(path string) (string, bool)
}

// DefaultSettle is how long a file must stay quiet before it is registered.
const DefaultSettle = 300 * time.Millisecond

// Watch follows changes under dir until ctx is cancelled. New files are
// registered once they stop changing for settle; removed files are forgotten
// right away. Renames trigger a full Sync.
func Watch(ctx context.Context, reg Registry, dir Dir, settle time.Duration, logger *slog.Logger) error {
	if settle <= 0 {
		settle = DefaultSettle
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := dir.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("sourcesync: watching", slog.String("root", root))

	pending := make(map[string]struct{})
	needSync := false
	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	schedule := func() { timer.Reset(settle) }

	for {
		select {
		case <-ctx.Done():
			logger.Info("sourcesync: watcher stopped")
			return nil

		case <-timer.C:
			if needSync {
				needSync = false
				if rep, err := Sync(ctx, reg, dir, logger); err != nil {
					logger.Warn("sourcesync: reconcile failed", slog.String("error", err.Error()))
				} else if rep.Added+rep.Removed > 0 {
					logger.Info("sourcesync: reconciled", slog.Int("added", rep.Added), slog.Int("removed", rep.Removed))
				}
			}
			for key := range pending {
				delete(pending, key)
				register(ctx, reg, root, key, logger)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if blob.Hidden(filepath.Base(ev.Name)) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("sourcesync: watch dir failed", slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
					needSync = true
					schedule()
					continue
				}
			}

			key, ok := dir.KeyFor(ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[key] = struct{}{}
				schedule()

			case ev.Op&fsnotify.Remove != 0:
				delete(pending, key)
				forget(ctx, reg, key, logger)

			case ev.Op&fsnotify.Rename != 0:
				// Rename fires on the old name only; the new name shows up
				// as a Create if it stays under root.
				delete(pending, key)
				forget(ctx, reg, key, logger)
				needSync = true
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("sourcesync: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func register(ctx context.Context, reg Registry, root, key string, logger *slog.Logger) {
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(key)))
	if err != nil || info.IsDir() {
		return
	}
	_, created, err := reg.RegisterBlob(ctx, blob.Object{Key: key, Size: info.Size(), ModTime: info.ModTime()})
	if err != nil {
		logger.Warn("sourcesync: register failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if created {
		logger.Debug("sourcesync: registered", slog.String("key", key))
	}
}

func forget(ctx context.Context, reg Registry, key string, logger *slog.Logger) {
	gone, err := reg.ForgetBlob(ctx, key)
	if err != nil {
		logger.Warn("sourcesync: forget failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if gone {
		logger.Debug("sourcesync: forgot", slog.String("key", key))
	}
}

// addDirsRecursive watches root and every directory below it.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && blob.Hidden(d.Name()) {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		return nil
	})
}
