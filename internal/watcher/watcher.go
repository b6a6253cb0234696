// Package watcher reports changes to a single file, such as the settings or
// presets file, so the server can reload it.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces the burst of events editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls onChange after the target file is written, created, removed
// or renamed. It watches the parent directory because editors often replace
// files instead of writing them in place, and fsnotify cannot watch a path
// that does not exist yet.
type Watcher struct {
	fsw      *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	onChange func(exists bool)
	target   string
	parent   string
	debounce time.Duration
	mu       sync.Mutex
	running  bool
}

// New creates a Watcher for path. onChange receives whether the file exists
// once the debounce interval has passed.
func New(path string, onChange func(exists bool)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	target := filepath.Clean(path)
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		fsw:      fsw,
		ctx:      ctx,
		cancel:   cancel,
		onChange: onChange,
		target:   target,
		parent:   filepath.Dir(target),
		debounce: DefaultDebounce,
	}, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.target
}

// Start begins watching. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatch(); err != nil {
		// keep the loop alive; the directory may appear later
		log.Warn().Err(err).Str("path", w.parent).Msg("Failed to add initial watch")
	}

	go w.loop()
	return nil
}

// Stop stops watching and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	w.cancel()
	return w.fsw.Close()
}

func (w *Watcher) addWatch() error {
	if _, err := os.Stat(w.parent); err != nil {
		return err
	}
	return w.fsw.Add(w.parent)
}

func (w *Watcher) loop() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.target || !relevant(event.Op) {
				continue
			}
			log.Debug().Str("path", w.target).Str("op", event.Op.String()).Msg("Watched file changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.fire)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("path", w.target).Msg("Watcher error")
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) ||
		op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}

func (w *Watcher) fire() {
	if w.ctx.Err() != nil {
		return
	}
	_, err := os.Stat(w.target)
	if w.onChange != nil {
		w.onChange(err == nil)
	}
}
