package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const fileExt = ".kv"

// FilePort stores each key as a file in a directory and watches the
// directory for writes made by other processes.
type FilePort struct {
	dir       string
	watcher   *fsnotify.Watcher
	echo      *echoFilter
	listeners listeners
	verbose   bool

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewFile opens (creating if needed) a file-backed port rooted at dir.
func NewFile(dir string, verbose bool) (*FilePort, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	p := &FilePort{
		dir:     dir,
		watcher: watcher,
		echo:    newEchoFilter(),
		verbose: verbose,
		done:    make(chan struct{}),
	}
	go p.watch()
	return p, nil
}

func (p *FilePort) path(key string) string {
	return filepath.Join(p.dir, url.PathEscape(key)+fileExt)
}

func (p *FilePort) keyFor(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, fileExt) || strings.HasPrefix(base, ".") {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(base, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}

func (p *FilePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Get reads a key.
func (p *FilePort) Get(_ context.Context, key string) (string, bool, error) {
	if p.isClosed() {
		return "", false, ErrClosed
	}
	data, err := os.ReadFile(p.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, &ReadError{Key: key, Cause: err}
	}
	return string(data), true, nil
}

// Set writes a key atomically (temp file + rename).
func (p *FilePort) Set(_ context.Context, key, value string) error {
	if p.isClosed() {
		return &WriteError{Key: key, Message: "port closed", Cause: ErrClosed}
	}

	tmp, err := os.CreateTemp(p.dir, ".tmp-*")
	if err != nil {
		return &WriteError{Key: key, Message: "failed to create temp file", Cause: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &WriteError{Key: key, Message: "failed to write temp file", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Key: key, Message: "failed to close temp file", Cause: err}
	}

	// Record before the rename so the watcher can recognise its own write.
	p.echo.recordSet(key, value)
	if err := os.Rename(tmpName, p.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Key: key, Message: "failed to replace value", Cause: err}
	}
	return nil
}

// Remove deletes a key. Removing a missing key is not an error.
func (p *FilePort) Remove(_ context.Context, key string) error {
	if p.isClosed() {
		return &WriteError{Key: key, Message: "port closed", Cause: ErrClosed}
	}
	p.echo.recordRemove(key)
	if err := os.Remove(p.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &WriteError{Key: key, Message: "failed to remove value", Cause: err}
	}
	return nil
}

// OnExternalChange registers fn for writes made by other processes or ports.
func (p *FilePort) OnExternalChange(fn func(Change)) func() {
	return p.listeners.add(fn)
}

// Close stops the watcher.
func (p *FilePort) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.watcher.Close()
	<-p.done
	return err
}

func (p *FilePort) watch() {
	defer close(p.done)
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			p.handleEvent(event)

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[STORAGE] file watcher error: %v", err)
		}
	}
}

func (p *FilePort) handleEvent(event fsnotify.Event) {
	key, ok := p.keyFor(event.Name)
	if !ok {
		return
	}

	var change Change
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		data, err := os.ReadFile(event.Name)
		if err != nil {
			// Replaced again before we could read it; the next event carries the value.
			return
		}
		change = Change{Key: key, Value: string(data)}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if _, err := os.Stat(event.Name); err == nil {
			return
		}
		change = Change{Key: key, Removed: true}
	default:
		return
	}

	if p.echo.isEcho(change) {
		return
	}
	// Create and Write often both fire for one foreign write; remember the
	// value so the duplicate is dropped.
	if change.Removed {
		p.echo.recordRemove(key)
	} else {
		p.echo.recordSet(key, change.Value)
	}
	if p.verbose {
		log.Printf("[STORAGE] external change: key=%s removed=%v", change.Key, change.Removed)
	}
	p.listeners.notify(change)
}
