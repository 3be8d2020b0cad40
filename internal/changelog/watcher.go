package changelog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"github.com/conneroisu/soyidx/internal/cache"
	ierrors "github.com/conneroisu/soyidx/internal/errors"
	"github.com/conneroisu/soyidx/internal/logging"
)

const (
	// DefaultTick is the interval between checks.
	DefaultTick = 250 * time.Millisecond
	// DefaultSettle is how long the index must be quiet before a report.
	DefaultSettle = 1000 * time.Millisecond
)

// ErrProjectGone stops the watcher loop. It is returned once the project
// handle no longer resolves.
var ErrProjectGone = errors.New("changelog: project is gone")

// Source is the view of a project the watcher needs.
type Source interface {
	// LastUpdateMillis is the Unix time in milliseconds of the last index update.
	LastUpdateMillis() int64
	// Modules lists the current modules.
	Modules() []string
	// Caches returns the live caches of module.
	Caches(module string) []*cache.Cache
}

// Resolver is a non-owning handle on a project. It returns false once the
// project is gone.
type Resolver func() (Source, bool)

// Options configure a Watcher. Zero values select the defaults.
type Options struct {
	Tick   time.Duration
	Settle time.Duration
	Output io.Writer
	Logger logging.Logger
}

// Watcher prints a diff of the index after every settled burst of updates.
// It only ever reads clones of the live caches.
type Watcher struct {
	resolve  Resolver
	out      io.Writer
	logger   logging.Logger
	tick     time.Duration
	settle   time.Duration
	offset   time.Duration
	now      func() time.Time
	lastSeen int64
	previous map[string][]*cache.Cache
	reports  atomic.Int64
	done     chan struct{}
}

// NewWatcher creates a watcher over the project behind resolve.
func NewWatcher(resolve Resolver, opts Options) *Watcher {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Watcher{
		resolve:  resolve,
		out:      opts.Output,
		logger:   logging.OrNop(opts.Logger).WithComponent("changelog"),
		tick:     opts.Tick,
		settle:   opts.Settle,
		offset:   rand.N(opts.Tick),
		now:      time.Now,
		previous: make(map[string][]*cache.Cache),
		done:     make(chan struct{}),
	}
}

// Reports returns how many change reports have been written.
func (w *Watcher) Reports() int64 {
	return w.reports.Load()
}

// Done is closed when Run returns.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Run checks for settled updates on every tick until ctx is done or the
// project is gone. Errors and panics inside a check are logged and the loop
// goes on. Run must be called at most once.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	w.logger.Debug(ctx, "Change watcher started", "tick", w.tick, "settle", w.settle)
	defer w.logger.Debug(ctx, "Change watcher stopped")

	for {
		err := w.safeCheck(ctx)
		if errors.Is(err, ErrProjectGone) {
			return
		}
		if err != nil {
			w.logger.Error(ctx, err, "Change watcher check failed")
		}

		timer := time.NewTimer(w.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// nextDelay aligns the next check to the tick grid shifted by this
// watcher's offset.
func (w *Watcher) nextDelay() time.Duration {
	elapsed := time.Duration(w.now().UnixNano()) + w.offset
	return w.tick - elapsed%w.tick
}

func (w *Watcher) safeCheck(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ierrors.NewInternalError(ierrors.CodeWatcherPanic, "change watcher panicked", fmt.Errorf("%v", r))
		}
	}()
	return w.check(ctx)
}

// check writes a report when the last update differs from the last one
// reported and is at least one settle period old.
func (w *Watcher) check(ctx context.Context) error {
	src, ok := w.resolve()
	if !ok {
		return ErrProjectGone
	}

	last := src.LastUpdateMillis()
	if last == w.lastSeen || last+w.settle.Milliseconds() > w.now().UnixMilli() {
		return nil
	}
	w.lastSeen = last

	var buf bytes.Buffer
	changes := w.logChanges(src, &buf)
	if changes == 0 {
		w.logger.Debug(ctx, "Settled update without index changes")
		return nil
	}

	w.reports.Add(1)
	_, err := w.out.Write(buf.Bytes())
	return err
}

// logChanges diffs every module's caches against the previous snapshots and
// replaces the snapshots.
func (w *Watcher) logChanges(src Source, buf *bytes.Buffer) int {
	modules := src.Modules()
	for module := range w.previous {
		if !slices.Contains(modules, module) {
			delete(w.previous, module)
		}
	}

	slices.Sort(modules)
	changes := 0
	for _, module := range modules {
		live := src.Caches(module)
		previous, ok := w.previous[module]
		if !ok {
			previous = make([]*cache.Cache, len(live))
			for i, c := range live {
				previous[i] = cache.New(module, c.Kind())
			}
		}

		current := make([]*cache.Cache, len(live))
		for i, c := range live {
			current[i] = c.Clone()
			var prev *cache.Cache
			if i < len(previous) {
				prev = previous[i]
			}
			changes += Diff(buf, current[i], current[i], prev, "")
		}
		w.previous[module] = current
	}
	return changes
}
