// Package watcher notices external changes under an open workspace root
// and coalesces bursts into single change notifications.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/pslog"
)

// Watcher watches a workspace root recursively. Change bursts inside the
// debounce window collapse into one signal on Changes. Hidden and noise
// directories are not watched.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration
	skipDirs []string
	log      pslog.Logger

	notify  chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New starts watching root and every non-ignored directory below it.
func New(root string, debounce time.Duration, skipDirs []string, logger pslog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		root:     root,
		debounce: debounce,
		skipDirs: skipDirs,
		log:      logger,
		notify:   make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
	}
	w.addTree(root)
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Changes signals that something under the root changed. The channel has
// capacity one; pending signals coalesce.
func (w *Watcher) Changes() <-chan struct{} {
	return w.notify
}

// Close stops watching. Changes is closed once the loop drains.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	close(w.notify)
	return err
}

// addTree watches dir and its non-ignored subdirectories.
func (w *Watcher) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.ignoredName(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.log.Debug("watch add failed", "path", p, "error", err)
		}
		return nil
	})
}

func (w *Watcher) run() {
	defer w.wg.Done()
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			if w.ignoredName(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addTree(ev.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			select {
			case w.notify <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			w.log.Debug("watch error", "error", err)
		}
	}
}

func (w *Watcher) ignoredName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, skip := range w.skipDirs {
		if name == skip {
			return true
		}
	}
	return false
}
