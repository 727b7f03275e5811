// internal/watch/watcher.go
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"grove/internal/repo"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher mirrors filesystem changes under a root directory into the
// repository: writes become puts (auto-staged), removals become tombstones.
type Watcher struct {
	repo       *repo.Repository
	root       string
	watcher    *fsnotify.Watcher
	ignoreDirs map[string]bool
	mu         sync.Mutex
	logger     *zap.Logger
}

func New(r *repo.Repository, root string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		repo:    r,
		root:    root,
		watcher: fsw,
		ignoreDirs: map[string]bool{
			".git":         true,
			".grove":       true,
			"node_modules": true,
			"vendor":       true,
			"dist":         true,
			"build":        true,
		},
		logger: logger,
	}

	if err := w.addDirectories(); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching directories: %w", err)
	}
	return w, nil
}

func (w *Watcher) addDirectories() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if relPath != "." && w.shouldIgnore(relPath) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		w.logger.Error("getting relative path", zap.Error(err))
		return
	}
	if w.shouldIgnore(relPath) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Error("adding new directory to watcher", zap.Error(err))
			}
			return
		}
		w.ingest(relPath, event.Name)

	case event.Op&fsnotify.Write == fsnotify.Write:
		w.ingest(relPath, event.Name)

	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		if _, err := w.repo.Remove(relPath); err != nil {
			w.logger.Debug("removing untracked path", zap.String("path", relPath), zap.Error(err))
		}
	}
}

// ingest puts the file's current content into the repository and stages it.
func (w *Watcher) ingest(relPath, absPath string) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		w.logger.Error("reading changed file", zap.String("path", relPath), zap.Error(err))
		return
	}

	info, err := w.repo.Put(relPath, content)
	if err != nil {
		w.logger.Error("recording change", zap.String("path", relPath), zap.Error(err))
		return
	}
	w.repo.Stage([]string{relPath})

	w.logger.Info("tracked change",
		zap.String("path", relPath),
		zap.String("version", info.ID))
}

func (w *Watcher) shouldIgnore(path string) bool {
	if path == "" || path == "." {
		return false
	}

	parts := strings.Split(path, string(filepath.Separator))
	for _, part := range parts {
		if w.ignoreDirs[part] || strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
