package config

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"lspmux/logger"
)

// watcherDebounce coalesces the burst of write events an editor's
// save-as-rename produces into a single reload.
const watcherDebounce = 250 * time.Millisecond

// Watcher reloads Config from path whenever it changes on disk and
// delivers the reloaded value to OnReload. This is SPEC_FULL.md's one
// genuinely new ambient piece beyond what spec.md asks for: the
// teacher's config is loaded once at process start, but fsnotify is a
// direct dependency of the broader example pack's config layers and
// earns its keep here as hot-reload for a long-lived daemon.
type Watcher struct {
	path     string
	fw       *fsnotify.Watcher
	onReload func(Config)
	done     chan struct{}
}

// NewWatcher starts watching path's parent directory (fsnotify cannot
// reliably watch a single file across editor save-as-rename) and
// invokes onReload with freshly parsed config after each settled burst
// of changes.
func NewWatcher(path string, onReload func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := dirOf(path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, fw: fw, onReload: onReload, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			logger.Warn("config: reload failed", err)
			return
		}
		w.onReload(cfg)
	}

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watcherDebounce, reload)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logger.Warn("config: watcher error", err)

		case <-w.done:
			return
		}
	}
}

// Close stops the watcher and releases its inotify/kqueue handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
