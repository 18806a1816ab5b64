// Package watch reloads a source file when it changes on disk.
package watch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher calls a function with the new contents of a file whenever it is written.
type Watcher struct {
	log      *zap.SugaredLogger
	path     string
	onChange func(contents string)
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
}

type Option func(w *Watcher)

func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		w.log = l.Sugar().Named("watch")
	}
}

// New starts watching path. The parent directory is watched, since editors
// often replace a file rather than write to it.
func New(path string, onChange func(contents string), opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		log:      zap.NewNop().Sugar(),
		path:     path,
		onChange: onChange,
		watcher:  fsWatcher,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	err = fsWatcher.Add(filepath.Dir(path))
	if err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watching %q: %w", filepath.Dir(path), err)
	}
	go w.watch()
	return w, nil
}

func (w *Watcher) watch() {
	defer close(w.stopped)
	name := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Debugf("watcher error: %s", err)
		}
	}
}

func (w *Watcher) reload() {
	b, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Debugf("error reading %q: %s", w.path, err)
		return
	}
	w.log.Debugw("file changed", "Path", w.path, "Bytes", len(b))
	w.onChange(string(b))
}

// Close stops watching. onChange is not called after Close returns.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	<-w.stopped
	return err
}
