// Package signals turns a kill file under the state directory into context
// cancellation, so another process can stop a running decomposition or
// execution between batches and cycles.
package signals

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrKilled is the cancellation cause when the kill file appears.
var ErrKilled = errors.New("kill signal received")

// KillFile is the signal file name inside the signals directory.
const KillFile = "kill"

// pollInterval is used when no file watcher is available.
const pollInterval = 500 * time.Millisecond

// Dir returns the signals directory under a state directory.
func Dir(stateDir string) string {
	return filepath.Join(stateDir, "signals")
}

// Watcher cancels a context when the kill file is created.
type Watcher struct {
	dir     string
	cancel  context.CancelCauseFunc
	watcher *fsnotify.Watcher

	mu     sync.RWMutex
	killed bool

	done      chan struct{}
	closeOnce sync.Once
}

// Watch starts watching stateDir for a kill signal. A stale kill file left
// by a previous run is removed first. The returned context is cancelled with
// cause ErrKilled when the signal arrives, or when parent is done.
func Watch(parent context.Context, stateDir string) (context.Context, *Watcher, error) {
	dir := Dir(stateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, err
	}
	os.Remove(filepath.Join(dir, KillFile))

	ctx, cancel := context.WithCancelCause(parent)
	w := &Watcher{
		dir:    dir,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err := watcher.Add(dir); err == nil {
			w.watcher = watcher
			go w.watch()
			return ctx, w, nil
		}
		watcher.Close()
	}

	// Continue without watcher - poll the signal file instead.
	go w.poll()
	return ctx, w, nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == KillFile && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.trigger()
			}
		case <-w.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if w.fileExists() {
				w.trigger()
			}
		}
	}
}

func (w *Watcher) fileExists() bool {
	_, err := os.Stat(filepath.Join(w.dir, KillFile))
	return err == nil
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	w.killed = true
	w.mu.Unlock()
	w.cancel(ErrKilled)
}

// Killed returns true if the kill signal has been received.
func (w *Watcher) Killed() bool {
	if w.fileExists() {
		w.trigger()
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.killed
}

// Close stops watching and releases the context.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
		w.cancel(context.Canceled)
	})
}

// SendKill creates the kill file under stateDir.
func SendKill(stateDir string) error {
	dir := Dir(stateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, KillFile), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes the kill file under stateDir.
func Clear(stateDir string) error {
	err := os.Remove(filepath.Join(Dir(stateDir), KillFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
