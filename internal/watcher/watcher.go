// Package watcher turns filesystem notifications into index updates. A
// FileWatcher watches directory trees with fsnotify, debounces bursts of
// events per path and hands the settled batch to its handlers.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	ierrors "github.com/conneroisu/soyidx/internal/errors"
	"github.com/conneroisu/soyidx/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches for file changes with debouncing
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	skipDir   DirFilter
	handlers  []ChangeHandler
	dirs      map[string]struct{}
	logger    logging.Logger
	mutex     sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
	// EventTypeTreeRemoved reports a watched directory that was deleted or
	// moved away, with everything below it.
	EventTypeTreeRemoved
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	case EventTypeTreeRemoved:
		return "removed tree"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file event should be handled
type FileFilter func(path string) bool

// DirFilter reports whether a directory should be left unwatched
type DirFilter func(path string) bool

// ChangeHandler handles a debounced batch of file change events
type ChangeHandler func(events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ierrors.NewIOError(ierrors.CodeWatchFailed, "cannot create file watcher", err)
	}

	fw := &FileWatcher{
		watcher:   watcher,
		debouncer: newDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		handlers:  make([]ChangeHandler, 0),
		dirs:      make(map[string]struct{}),
		logger:    logging.OrNop(logger).WithComponent("watcher"),
	}

	return fw, nil
}

func newDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan ChangeEvent, 100),
		output:  make(chan []ChangeEvent, 10),
		pending: make([]ChangeEvent, 0),
	}
}

// AddFilter adds a file filter. An event is handled only when every filter
// accepts its path.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// SkipDirs sets the filter for directories that must not be watched
func (fw *FileWatcher) SkipDirs(filter DirFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.skipDir = filter
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath adds a single directory to watch
func (fw *FileWatcher) AddPath(path string) error {
	cleanPath, err := cleanPath(path)
	if err != nil {
		return err
	}
	if err := fw.watcher.Add(cleanPath); err != nil {
		return ierrors.NewIOError(ierrors.CodeWatchFailed, "cannot watch path", err).WithFile(cleanPath)
	}
	fw.trackDir(cleanPath)
	return nil
}

// AddRecursive adds a directory and all subdirectories to watch
func (fw *FileWatcher) AddRecursive(root string) error {
	cleanRoot, err := cleanPath(root)
	if err != nil {
		return err
	}

	return filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == cleanRoot {
				return ierrors.NewIOError(ierrors.CodeWatchFailed, "cannot watch path", err).WithFile(path)
			}
			fw.logger.Warn(context.Background(), err, "Skipping unreadable directory", "path", path)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != cleanRoot && fw.skipped(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return ierrors.NewIOError(ierrors.CodeWatchFailed, "cannot watch path", err).WithFile(path)
		}
		fw.trackDir(path)
		return nil
	})
}

func (fw *FileWatcher) trackDir(dir string) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.dirs[dir] = struct{}{}
}

// forgetTree stops watching dir and every directory below it, and reports
// whether dir was watched.
func (fw *FileWatcher) forgetTree(dir string) bool {
	fw.mutex.Lock()
	_, watched := fw.dirs[dir]
	var gone []string
	for d := range fw.dirs {
		if d == dir || strings.HasPrefix(d, dir+string(filepath.Separator)) {
			gone = append(gone, d)
			delete(fw.dirs, d)
		}
	}
	fw.mutex.Unlock()

	for _, d := range gone {
		// The kernel may already have dropped the watch.
		_ = fw.watcher.Remove(d)
	}
	return watched
}

// WatchList returns the directories currently watched
func (fw *FileWatcher) WatchList() []string {
	list := fw.watcher.WatchList()
	slices.Sort(list)
	return list
}

// cleanPath resolves path to a clean absolute path
func cleanPath(path string) (string, error) {
	if path == "" {
		return "", ierrors.NewValidationError(ierrors.CodeWatchFailed, "empty watch path")
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", ierrors.NewIOError(ierrors.CodeWatchFailed, "cannot resolve watch path", err).WithFile(path)
	}
	return absPath, nil
}

func (fw *FileWatcher) skipped(dir string) bool {
	fw.mutex.RLock()
	skip := fw.skipDir
	fw.mutex.RUnlock()
	return skip != nil && skip(dir)
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.start(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)

	// A watched directory that vanished takes its files along. fsnotify
	// reports it once, so the filters never see the files below it.
	if statErr != nil && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && fw.forgetTree(event.Name) {
		fw.send(ctx, ChangeEvent{Type: EventTypeTreeRemoved, Path: event.Name})
		return
	}

	// New directories join the watch set. Files written into them before the
	// watch was added are reported as created.
	if statErr == nil && info.IsDir() {
		if event.Has(fsnotify.Create) && !fw.skipped(event.Name) {
			if err := fw.AddRecursive(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "Cannot watch new directory", "path", event.Name)
			}
			fw.enqueueTree(ctx, event.Name)
		}
		return
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventTypeCreated
	case event.Has(fsnotify.Write):
		eventType = EventTypeModified
	case event.Has(fsnotify.Remove):
		eventType = EventTypeDeleted
	case event.Has(fsnotify.Rename):
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	fw.enqueue(ctx, eventType, event.Name, info)
}

func (fw *FileWatcher) enqueueTree(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && fw.skipped(path) {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fw.enqueue(ctx, EventTypeCreated, path, info)
		return nil
	})
}

// enqueue passes a file event through the filters to the debouncer.
func (fw *FileWatcher) enqueue(ctx context.Context, eventType EventType, path string, info fs.FileInfo) {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(path) {
			return
		}
	}

	changeEvent := ChangeEvent{Type: eventType, Path: path}
	if info != nil {
		changeEvent.ModTime = info.ModTime()
		changeEvent.Size = info.Size()
	}
	fw.send(ctx, changeEvent)
}

func (fw *FileWatcher) send(ctx context.Context, event ChangeEvent) {
	select {
	case fw.debouncer.events <- event:
	default:
		fw.logger.Warn(ctx, nil, "Dropping file event, debouncer is full", "path", event.Path)
	}
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					fw.logger.Error(ctx, err, "File watcher handler failed", "events", len(events))
				}
			}
		}
	}
}

func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.stop()
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

// flush emits the pending events, keeping the last event per path, sorted
// by path.
func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	latest := make(map[string]ChangeEvent, len(d.pending))
	for _, event := range d.pending {
		latest[event.Path] = event
	}
	events := make([]ChangeEvent, 0, len(latest))
	for _, event := range latest {
		events = append(events, event)
	}
	slices.SortFunc(events, func(a, b ChangeEvent) int { return strings.Compare(a.Path, b.Path) })

	select {
	case d.output <- events:
		d.pending = d.pending[:0]
	default:
		// Output is full; keep the events and retry after another delay.
		d.timer = time.AfterFunc(d.delay, d.flush)
	}
}

// ExtensionFilter accepts files with extension ext (without the dot).
func ExtensionFilter(ext string) FileFilter {
	suffix := "." + ext
	return func(path string) bool {
		return filepath.Ext(path) == suffix
	}
}

// ExcludeFilter rejects paths for which excluded returns true.
func ExcludeFilter(excluded func(path string) bool) FileFilter {
	return func(path string) bool {
		return !excluded(path)
	}
}

func (e ChangeEvent) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.Path)
}
