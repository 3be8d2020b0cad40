// Package cache holds the template index: per-module namespace and delegate
// package caches mapping every declared template name back to the file that
// declares it.
//
// A Cache is an ordered map from owner (namespace or delegate package) to a
// Bucket, and a Bucket is an ordered map from template name to the set of
// entries declaring it. Both orders are lexicographic so that snapshots can
// be diffed with a merge walk. Each Cache carries its own lock, so updates to
// different modules, or to the two caches of one module, proceed in parallel.
package cache

import (
	"slices"
	"sync"

	"github.com/conneroisu/soyidx/internal/directive"
)

// Cache maps owners to buckets for one module and one Kind.
type Cache struct {
	module   string
	kind     Kind
	buckets  orderedMap[*Bucket]
	links    *backlinks
	watchers []chan []Entry
	mutex    sync.RWMutex
}

// New creates an empty cache for module.
func New(module string, kind Kind) *Cache {
	return &Cache{
		module:  module,
		kind:    kind,
		buckets: newOrderedMap[*Bucket](),
		links:   newBacklinks(),
	}
}

func (c *Cache) Module() string { return c.module }

func (c *Cache) Kind() Kind { return c.kind }

// Replace applies the current declarations of file: it drops whatever file
// contributed before and then registers names under owner. Both steps run
// under one write lock. The new entries are returned and published to
// watchers.
func (c *Cache) Replace(file, owner string, names []string) []Entry {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.removeFileLocked(file)

	bucket := c.getOrCreateLocked(owner)
	bucket.AddFile(file)

	added := make([]Entry, 0, len(names))
	for _, name := range names {
		e := Entry{Owner: owner, Name: name, Delegate: c.kind == KindDelegate, File: file}
		if bucket.entrySet(name).Add(e) {
			added = append(added, e)
		}
	}

	c.notifyLocked(added)
	return added
}

// RemoveFile drops every entry declared in file and reports whether file
// contributed to this cache.
func (c *Cache) RemoveFile(file string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.removeFileLocked(file)
}

func (c *Cache) removeFileLocked(file string) bool {
	previous := c.links.get(file)
	c.links.remove(file)
	if previous == nil {
		return false
	}

	current, ok := c.buckets.get(previous.owner)
	if !ok || current != previous {
		return false
	}
	if current.RemoveFile(file) {
		c.buckets.delete(current.owner)
	}
	return true
}

func (c *Cache) getOrCreateLocked(owner string) *Bucket {
	return c.buckets.getOrCreate(owner, func() *Bucket {
		b := NewBucket(owner, c.kind)
		b.links = c.links
		return b
	})
}

// Get returns a copy of the bucket for owner.
func (c *Cache) Get(owner string) (*Bucket, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	b, ok := c.buckets.get(owner)
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// Child returns the bucket stored under key. Used on detached clones by the
// change log walk.
func (c *Cache) Child(key string) (any, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.buckets.get(key)
}

// Remove drops the bucket for owner with all its entries.
func (c *Cache) Remove(owner string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	b, ok := c.buckets.get(owner)
	if !ok {
		return false
	}
	for _, file := range b.Files() {
		if c.links.get(file) == b {
			c.links.remove(file)
		}
	}
	return c.buckets.delete(owner)
}

// BucketForFile returns a copy of the bucket file last contributed to.
func (c *Cache) BucketForFile(file string) (*Bucket, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	b := c.links.get(file)
	if b == nil {
		return nil, false
	}
	return b.Clone(), true
}

// Lookup returns the entries declaring owner.name.
func (c *Cache) Lookup(owner, name string) []Entry {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	b, ok := c.buckets.get(owner)
	if !ok {
		return nil
	}
	set, ok := b.Get(name)
	if !ok {
		return nil
	}
	return set.Entries()
}

// Keys returns the owners in lexicographic order.
func (c *Cache) Keys() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.buckets.sortedKeys()
}

func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.buckets.len()
}

func (c *Cache) IsEmpty() bool {
	return c.Len() == 0
}

// Entries returns every entry in owner then name order.
func (c *Cache) Entries() []Entry {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var out []Entry
	for _, b := range c.buckets.all() {
		out = append(out, b.Entries()...)
	}
	return out
}

// Files returns every file linked to a bucket in this cache.
func (c *Cache) Files() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	files := make([]string, 0, c.links.len())
	for file := range c.links.byFile {
		files = append(files, file)
	}
	slices.Sort(files)
	return files
}

// Clone deep-copies the buckets and entry sets. The clone has no watchers
// and no file links; entries are shared by value.
func (c *Cache) Clone() *Cache {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return &Cache{
		module:  c.module,
		kind:    c.kind,
		buckets: c.buckets.clone((*Bucket).Clone),
		links:   newBacklinks(),
	}
}

// Equal reports whether other is a cache with equal buckets.
func (c *Cache) Equal(other any) bool {
	o, ok := other.(*Cache)
	if !ok || o == nil {
		return false
	}
	if c == o {
		return true
	}

	// Never hold both locks at once.
	o = o.Clone()

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.kind != o.kind || !c.buckets.sameKeys(&o.buckets) {
		return false
	}
	for owner, b := range c.buckets.all() {
		theirs, _ := o.buckets.get(owner)
		if !b.Equal(theirs) {
			return false
		}
	}
	return true
}

// Label names the cache in change logs.
func (c *Cache) Label() string {
	if c.kind == KindDelegate {
		return "DelegatePackageCache for module '" + c.module + "'"
	}
	return "NamespaceCache for module '" + c.module + "'"
}

func (c *Cache) String() string {
	return c.Label()
}

// Default returns the sentinel owner used by files without a declaration.
func (c *Cache) Default() string {
	if c.kind == KindDelegate {
		return directive.DefaultDelegate
	}
	return directive.DefaultNamespace
}

// Watch returns a channel receiving the entries added by each update.
func (c *Cache) Watch() <-chan []Entry {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ch := make(chan []Entry, 100)
	c.watchers = append(c.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it.
func (c *Cache) UnWatch(ch <-chan []Entry) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for i, watcher := range c.watchers {
		if watcher == ch {
			close(watcher)
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			break
		}
	}
}

func (c *Cache) notifyLocked(added []Entry) {
	for _, watcher := range c.watchers {
		select {
		case watcher <- slices.Clone(added):
		default:
			// Skip if channel is full
		}
	}
}
