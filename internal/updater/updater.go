// Package updater keeps the template index in step with the workspace. It
// turns file events into cache mutations: every update drops what a file
// contributed before and registers what it declares now.
package updater

import (
	"context"
	"io"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
	"weak"

	"github.com/conneroisu/soyidx/internal/cache"
	"github.com/conneroisu/soyidx/internal/changelog"
	"github.com/conneroisu/soyidx/internal/directive"
	ierrors "github.com/conneroisu/soyidx/internal/errors"
	"github.com/conneroisu/soyidx/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Options configure an Updater. Zero values select the defaults.
type Options struct {
	// Extension is the registered file extension without the dot.
	Extension string
	// MaxFileSize is the length at or above which files are ignored.
	MaxFileSize int64
	// Memo caches extraction results. Nil extracts every time.
	Memo *directive.Memo
	// Logger receives diagnostics. Nil discards them.
	Logger logging.Logger
	// Workers bounds the parallelism of IndexAll.
	Workers int

	// Debug starts a change watcher that writes a diff of the index to
	// ChangeLog after every settled burst of updates.
	Debug     bool
	ChangeLog io.Writer
	Tick      time.Duration
	Settle    time.Duration
}

// Updater applies file events to a Store.
type Updater struct {
	host    Host
	store   *cache.Store
	ext     string
	maxSize int64
	memo    *directive.Memo
	logger  logging.Logger
	workers int
	now     func() time.Time

	disposed   atomic.Bool
	lastUpdate atomic.Int64
	stop       context.CancelFunc
	changes    *changelog.Watcher
}

// New creates an updater for host that records into store.
func New(host Host, store *cache.Store, opts Options) *Updater {
	if opts.Extension == "" {
		opts.Extension = directive.Extension
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = directive.MaxFileSize
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	u := &Updater{
		host:    host,
		store:   store,
		ext:     opts.Extension,
		maxSize: opts.MaxFileSize,
		memo:    opts.Memo,
		logger:  logging.OrNop(opts.Logger).WithComponent("updater"),
		workers: opts.Workers,
		now:     time.Now,
		stop:    func() {},
	}

	if opts.Debug {
		u.startChangeLog(opts)
	}
	return u
}

// startChangeLog runs the change watcher in the background. The watcher
// holds the updater weakly and stops once it is disposed or collected.
func (u *Updater) startChangeLog(opts Options) {
	ref := weak.Make(u)
	resolve := func() (changelog.Source, bool) {
		u := ref.Value()
		if u == nil || u.Disposed() {
			return nil, false
		}
		return u, true
	}

	ctx, cancel := context.WithCancel(context.Background())
	u.stop = cancel
	u.changes = changelog.NewWatcher(resolve, changelog.Options{
		Tick:   opts.Tick,
		Settle: opts.Settle,
		Output: opts.ChangeLog,
		Logger: opts.Logger,
	})
	go u.changes.Run(ctx)
}

// ChangeWatcher returns the running change watcher, or nil when debug is off.
func (u *Updater) ChangeWatcher() *changelog.Watcher {
	return u.changes
}

// Store returns the store the updater records into.
func (u *Updater) Store() *cache.Store {
	return u.store
}

// QueryNeededFiles lists every file of the workspace with the registered
// extension.
func (u *Updater) QueryNeededFiles() ([]File, error) {
	if u.Disposed() {
		return nil, nil
	}
	files, err := u.host.FilesByExtension(u.ext)
	if err != nil {
		return nil, ierrors.NewIOError(ierrors.CodeWalkFailed, "cannot list template files", err)
	}
	return files, nil
}

// ProcessFile is the host's indexing hook.
func (u *Updater) ProcessFile(content FileContent) {
	if u.Disposed() || content.File == nil {
		return
	}
	u.UpdateCache(content.File)
}

// UpdateCache applies the current state of file to both caches of its
// module. Ineligible files and files outside every module are ignored.
func (u *Updater) UpdateCache(file File) {
	u.update(file)
}

func (u *Updater) update(file File) bool {
	if u.Disposed() || !u.isCacheable(file) {
		return false
	}

	module, ok := u.host.ModuleForFile(file)
	if !ok {
		return false
	}
	ns := u.store.NamespaceCache(module)
	dp := u.store.DelegatePackageCache(module)

	d := directive.Empty()
	if content, ok := u.host.Contents(file); ok {
		d = u.memo.Extract(content)
	} else {
		u.logger.Debug(context.Background(), "Document unavailable, clearing file",
			"file", file.Path(), "module", module)
	}

	path := file.Path()
	added := ns.Replace(path, d.Namespace, d.Templates)
	added = append(added, dp.Replace(path, d.DelPackage, d.DelTemplates)...)
	u.touch()

	u.logger.Debug(context.Background(), "Updated file",
		"file", path,
		"module", module,
		"namespace", d.Namespace,
		"delpackage", d.DelPackage,
		"entries", len(added))
	return true
}

// RemoveFromCache drops every entry declared in file. When no module owns
// file any more, or its module has no caches, every module's caches are
// tried.
func (u *Updater) RemoveFromCache(file File) {
	if u.Disposed() || file == nil {
		return
	}

	path := file.Path()
	modules := u.store.Modules()
	if module, ok := u.host.ModuleForFile(file); ok {
		if _, _, ok := u.store.Existing(module); ok {
			modules = []string{module}
		}
	}

	removed := false
	for _, module := range modules {
		ns, dp, ok := u.store.Existing(module)
		if !ok {
			continue
		}
		if ns.RemoveFile(path) {
			removed = true
		}
		if dp.RemoveFile(path) {
			removed = true
		}
	}

	if removed {
		u.touch()
		u.logger.Debug(context.Background(), "Removed file", "file", path)
	}
}

// RemoveTree drops every entry declared in a file below dir, for a
// directory that was deleted or moved away as a whole.
func (u *Updater) RemoveTree(dir File) {
	if u.Disposed() || dir == nil {
		return
	}

	prefix := strings.TrimSuffix(dir.Path(), "/") + "/"
	removed := make(map[string]struct{})
	for _, module := range u.store.Modules() {
		ns, dp, ok := u.store.Existing(module)
		if !ok {
			continue
		}
		for _, c := range []*cache.Cache{ns, dp} {
			for _, path := range c.Files() {
				if strings.HasPrefix(path, prefix) && c.RemoveFile(path) {
					removed[path] = struct{}{}
				}
			}
		}
	}

	if len(removed) > 0 {
		u.touch()
		u.logger.Debug(context.Background(), "Removed directory", "dir", dir.Path(), "files", len(removed))
	}
}

// IndexAll runs UpdateCache over every needed file with bounded parallelism
// and returns how many files were indexed. It stops early when ctx is done
// or the updater is disposed.
func (u *Updater) IndexAll(ctx context.Context) (int, error) {
	if u.Disposed() {
		return 0, nil
	}

	perf := logging.StartOperation(u.logger, "index_all")
	files, err := u.QueryNeededFiles()
	if err != nil {
		perf.EndWithError(ctx, err)
		return 0, err
	}

	var indexed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)
	for _, file := range files {
		if u.Disposed() || gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if u.Disposed() || gctx.Err() != nil {
				return nil
			}
			if u.update(file) {
				indexed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		perf.EndWithError(ctx, err)
		return int(indexed.Load()), err
	}

	n := int(indexed.Load())
	if err := ctx.Err(); err != nil {
		err = ierrors.NewInternalError(ierrors.CodeIndexCancelled, "indexing cancelled", err)
		perf.EndWithError(ctx, err)
		return n, err
	}

	perf.End(ctx, "files", len(files), "indexed", n)
	return n, nil
}

// Dispose makes every later call a no-op and stops the change watcher.
func (u *Updater) Dispose() {
	if u.disposed.Swap(true) {
		return
	}
	u.stop()
	u.logger.Debug(context.Background(), "Updater disposed")
}

// Disposed reports whether Dispose was called.
func (u *Updater) Disposed() bool {
	return u.disposed.Load()
}

// LastUpdate is the time of the last applied update. It never goes
// backwards.
func (u *Updater) LastUpdate() time.Time {
	return time.UnixMilli(u.lastUpdate.Load())
}

// LastUpdateMillis is LastUpdate as Unix milliseconds.
func (u *Updater) LastUpdateMillis() int64 {
	return u.lastUpdate.Load()
}

// Modules lists the workspace modules.
func (u *Updater) Modules() []string {
	return u.host.Modules()
}

// Caches returns the namespace and delegate package caches of module, or
// nil when the module has none yet.
func (u *Updater) Caches(module string) []*cache.Cache {
	ns, dp, ok := u.store.Existing(module)
	if !ok {
		return nil
	}
	return []*cache.Cache{ns, dp}
}

// touch advances the last update time, by at least one millisecond so that
// two updates within the same millisecond still read as distinct.
func (u *Updater) touch() {
	now := u.now().UnixMilli()
	for {
		prev := u.lastUpdate.Load()
		next := max(now, prev+1)
		if u.lastUpdate.CompareAndSwap(prev, next) {
			return
		}
	}
}

func (u *Updater) isCacheable(file File) bool {
	return file != nil &&
		file.Valid() &&
		file.Len() < u.maxSize &&
		file.Ext() == u.ext
}
