// Package watch collects the repository files modified between turns.
package watch

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce is how long a path must stay quiet before it counts as modified.
const debounce = 100 * time.Millisecond

// Collector watches a repository tree with fsnotify and accumulates the
// relative paths written, created, renamed or removed since the last Drain.
// Dot directories (.git, .cache) are not watched.
type Collector struct {
	Root    string
	Changes <-chan string // debounced paths, dropped when nobody reads

	changes  chan string
	done     chan struct{}
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	mu       sync.Mutex
	modified map[string]struct{}
}

// New creates a Collector for root. A nil logger discards.
func New(root string, logger *slog.Logger) (*Collector, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ch := make(chan string, 64)
	return &Collector{
		Root:     abs,
		Changes:  ch,
		changes:  ch,
		done:     make(chan struct{}),
		watcher:  fw,
		logger:   logger,
		modified: make(map[string]struct{}),
	}, nil
}

// Start registers every directory under Root and begins collecting.
func (c *Collector) Start() error {
	if err := c.addTree(c.Root); err != nil {
		c.watcher.Close()
		return err
	}
	go c.loop()
	return nil
}

// Stop closes the watcher, flushes pending paths and closes Changes.
func (c *Collector) Stop() {
	c.watcher.Close()
	<-c.done
	close(c.changes)
}

// Drain returns the modified paths collected so far, sorted, and resets
// the set.
func (c *Collector) Drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.modified))
	for p := range c.modified {
		out = append(out, p)
	}
	c.modified = make(map[string]struct{})
	sort.Strings(out)
	return out
}

func (c *Collector) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := c.watcher.Add(path); err != nil {
			c.logger.Warn("watch: cannot watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (c *Collector) loop() {
	defer close(c.done)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				for path := range pending {
					c.record(path)
				}
				return
			}
			rel, ok := c.relative(event.Name)
			if !ok {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := c.addTree(event.Name); err != nil {
						c.logger.Warn("watch: cannot watch new directory", "path", rel, "error", err)
					}
					continue
				}
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[rel] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for path, t := range pending {
				if now.Sub(t) >= debounce {
					c.record(path)
					delete(pending, path)
				}
			}

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				c.logger.Debug("watch: error", "error", err)
				continue
			}
			c.logger.Warn("watch: event queue overflowed; some modifications were missed")
		}
	}
}

// relative maps an event path to a slash-separated repository path and
// rejects anything inside a dot directory.
func (c *Collector) relative(name string) (string, bool) {
	rel, err := filepath.Rel(c.Root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	return rel, true
}

func (c *Collector) record(path string) {
	c.mu.Lock()
	c.modified[path] = struct{}{}
	c.mu.Unlock()
	select {
	case c.changes <- path:
	default:
	}
}
