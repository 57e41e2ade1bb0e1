// Package watcher observes the vault directory for file changes. Events
// are purely advisory: they feed a dirty indicator in the watch command
// and never start a sync run, so rapid edit bursts cannot trigger a storm
// of overlapping attempts.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces rapid bursts of events into one hint.
const DefaultDebounce = 500 * time.Millisecond

// Watcher emits at most one change hint per debounce window.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration

	events chan string
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New creates a watcher for the given vault root. The watcher must be
// started with Start() before it will emit events.
func New(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsw:      fsw,
		root:     root,
		debounce: DefaultDebounce,
		events:   make(chan string, 16),
		errors:   make(chan error, 4),
		done:     make(chan struct{}),
	}, nil
}

// Events delivers the path of a changed file, at most one per debounce
// window. The channel is closed when the watcher stops.
func (w *Watcher) Events() <-chan string { return w.events }

// Errors delivers watch errors.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Start walks the vault tree and begins watching every directory except
// the repository metadata. Calling Start on a running watcher is an error.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if ignoredDir(d.Name()) && path != w.root {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch vault tree: %w", err)
	}

	w.running = true
	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	var lastEmit time.Time

	for {
		select {
		case <-w.done:
			close(w.events)
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				close(w.events)
				return
			}
			if w.ignored(event.Name) {
				continue
			}
			// New directories need their own watch to see files below them.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.fsw.Add(event.Name)
				}
			}
			if time.Since(lastEmit) < w.debounce {
				continue
			}
			lastEmit = time.Now()
			select {
			case w.events <- event.Name:
			default:
				// A full buffer means the consumer is behind; hints are
				// advisory and safe to drop.
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				close(w.events)
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// Stop halts watching and closes the event channel. Idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if ignoredDir(part) {
			return true
		}
	}
	return false
}

func ignoredDir(name string) bool {
	return name == ".git"
}
