// Package watch triggers folder refreshes when indexed files change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/codesage/sage/internal/index"
)

// DefaultDebounce is how long a folder must stay quiet before it is refreshed.
const DefaultDebounce = 2 * time.Second

// RefreshFunc is called once per quiet period for a changed folder.
type RefreshFunc func(ctx context.Context, folder string)

// Watcher watches folders recursively and calls a RefreshFunc for each
// folder after its files stop changing.
type Watcher struct {
	fs       *fsnotify.Watcher
	filter   index.Filter
	debounce time.Duration
	refresh  RefreshFunc
	logger   *zap.Logger

	roots   []string
	mu      sync.Mutex
	pending map[string]time.Time
}

// New watches folders. Directories ignored by filter are not watched.
func New(folders []string, filter index.Filter, debounce time.Duration, refresh RefreshFunc, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		fs:       fw,
		filter:   filter,
		debounce: debounce,
		refresh:  refresh,
		logger:   logger,
		pending:  make(map[string]time.Time),
	}
	for _, folder := range folders {
		folder = filepath.Clean(folder)
		w.roots = append(w.roots, folder)
		if err := w.addTree(folder); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// addTree adds dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.ignoredDir(d.Name()) {
			return fs.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("dir", p), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) ignoredDir(name string) bool {
	for _, d := range w.filter.IgnoreFolders {
		if d == name {
			return true
		}
	}
	return false
}

// root returns the watched folder containing path.
func (w *Watcher) root(path string) (string, bool) {
	best := ""
	for _, r := range w.roots {
		if path == r || strings.HasPrefix(path, r+string(filepath.Separator)) {
			if len(r) > len(best) {
				best = r
			}
		}
	}
	return best, best != ""
}

// relevant reports whether an event on path can change a folder's store.
func (w *Watcher) relevant(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return w.filter.Accepts(filepath.ToSlash(rel))
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	root, ok := w.root(filepath.Clean(ev.Name))
	if !ok {
		return
	}

	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.ignoredDir(info.Name()) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("cannot watch new directory", zap.String("dir", ev.Name), zap.Error(err))
				}
				w.mark(root)
			}
			return
		}
	}
	if !w.relevant(root, ev.Name) {
		return
	}
	w.logger.Debug("file changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
	w.mark(root)
}

func (w *Watcher) mark(root string) {
	w.mu.Lock()
	w.pending[root] = time.Now()
	w.mu.Unlock()
}

// due returns and clears folders that have been quiet for the debounce period.
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for root, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			out = append(out, root)
			delete(w.pending, root)
		}
	}
	return out
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	tick := w.debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case now := <-ticker.C:
			for _, root := range w.due(now) {
				w.logger.Info("refreshing changed folder", zap.String("folder", root))
				w.refresh(ctx, root)
			}
		}
	}
}
