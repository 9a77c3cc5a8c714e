package tui

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StateWatcher reloads the tracker state whenever its file is rewritten and
// sends the result to the program. It watches the parent directory because
// saves replace the file by rename.
type StateWatcher struct {
	program  Sender
	path     string
	load     Loader
	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewStateWatcher creates a watcher for the state file at path.
func NewStateWatcher(p Sender, path string, load Loader) *StateWatcher {
	return &StateWatcher{
		program: p,
		path:    path,
		load:    load,
		done:    make(chan struct{}),
	}
}

// Start begins watching in a background goroutine.
func (sw *StateWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("state watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(sw.path)); err != nil {
		w.Close()
		return fmt.Errorf("state watcher: watch %s: %w", filepath.Dir(sw.path), err)
	}
	sw.watcher = w
	go sw.loop()
	return nil
}

// Stop ends the watch. It is safe to call multiple times.
func (sw *StateWatcher) Stop() {
	sw.stopOnce.Do(func() {
		close(sw.done)
		if sw.watcher != nil {
			sw.watcher.Close()
		}
	})
}

func (sw *StateWatcher) loop() {
	name := filepath.Clean(sw.path)
	for {
		select {
		case <-sw.done:
			return
		case evt, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != name || !evt.Has(fsnotify.Create|fsnotify.Write) {
				continue
			}
			items, err := sw.load()
			if err != nil {
				sw.program.Send(MsgError{Err: err})
				continue
			}
			sw.program.Send(MsgState{Items: items, At: time.Now()})
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.program.Send(MsgError{Err: err})
		}
	}
}
