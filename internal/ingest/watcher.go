package ingest

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches one saves directory and forwards matching file changes to
// a notify callback, normally Coordinator.NotifyFileChanged. It reports
// creations and writes; deletions are not candidates and are ignored.
type Watcher struct {
	watcher *fsnotify.Watcher
	notify  func(path string)
	exts    map[string]bool
	logger  *log.Logger
	dir     string

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for dir. Extensions are matched
// case-insensitively, with or without the leading dot; an empty list
// matches every file.
func NewWatcher(dir string, exts []string, notify func(path string), logger *log.Logger) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir cannot be empty")
	}
	if notify == nil {
		return nil, fmt.Errorf("notify cannot be nil")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		extSet[e] = true
	}

	return &Watcher{
		watcher: fsw,
		notify:  notify,
		exts:    extSet,
		logger:  logger,
		dir:     dir,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. The watcher must not already be running.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	w.logger.Printf("Watching: %s", w.dir)
	return nil
}

// Stop stops watching and blocks until the event loop has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.wantEvent(event) {
				continue
			}
			w.logger.Printf("File event: %s %s", event.Op, event.Name)
			w.notify(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) wantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(event.Name))]
}
