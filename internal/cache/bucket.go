package cache

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"weak"

	"github.com/conneroisu/soyidx/internal/directive"
)

// Kind selects what a bucket or cache holds.
type Kind int

const (
	// KindNamespace holds ordinary templates grouped by namespace.
	KindNamespace Kind = iota
	// KindDelegate holds delegate templates grouped by delegate package.
	KindDelegate
)

func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindDelegate:
		return "delegate"
	default:
		return "unknown"
	}
}

// Bucket groups the declarations of one owner (namespace or delegate
// package) by local template name, and tracks the files contributing to it.
//
// A bucket is not safe for concurrent use on its own. Buckets reachable from
// a Cache are guarded by that cache's lock; buckets returned to callers are
// detached clones.
type Bucket struct {
	owner string
	kind  Kind
	names orderedMap[*EntrySet]
	files map[string]struct{}
	links *backlinks
}

// NewBucket creates an empty, detached bucket.
func NewBucket(owner string, kind Kind) *Bucket {
	return &Bucket{
		owner: owner,
		kind:  kind,
		names: newOrderedMap[*EntrySet](),
		files: make(map[string]struct{}),
	}
}

func (b *Bucket) Owner() string { return b.owner }

func (b *Bucket) Kind() Kind { return b.kind }

// entrySet returns the entry set for name, creating an empty one.
func (b *Bucket) entrySet(name string) *EntrySet {
	return b.names.getOrCreate(name, func() *EntrySet { return &EntrySet{} })
}

// Get returns the entry set for name.
func (b *Bucket) Get(name string) (*EntrySet, bool) {
	return b.names.get(name)
}

// AddFile records file as a contributor and, for buckets owned by a cache,
// links file back to this bucket.
func (b *Bucket) AddFile(file string) {
	b.files[file] = struct{}{}
	if b.links != nil {
		b.links.set(file, b)
	}
}

// RemoveFile drops every entry declared in file along with file itself, and
// reports whether the bucket has no contributors left.
func (b *Bucket) RemoveFile(file string) bool {
	for _, name := range b.names.sortedKeys() {
		set, _ := b.names.get(name)
		if set.RemoveFile(file) > 0 && set.Len() == 0 {
			b.names.delete(name)
		}
	}
	delete(b.files, file)
	return len(b.files) == 0
}

// Remove drops a template name and all its entries.
func (b *Bucket) Remove(name string) bool {
	return b.names.delete(name)
}

// IsEmpty reports whether the bucket holds no template names. A bucket can be
// empty and still have contributing files.
func (b *Bucket) IsEmpty() bool {
	return b.names.len() == 0
}

// HasFile reports whether file contributes to the bucket.
func (b *Bucket) HasFile(file string) bool {
	_, ok := b.files[file]
	return ok
}

// Files returns the contributing files in lexicographic order.
func (b *Bucket) Files() []string {
	return slices.Sorted(maps.Keys(b.files))
}

// Keys returns the template names in lexicographic order.
func (b *Bucket) Keys() []string {
	return b.names.sortedKeys()
}

// Child returns the entry set stored under key.
func (b *Bucket) Child(key string) (any, bool) {
	return b.names.get(key)
}

// Entries returns every entry in name order.
func (b *Bucket) Entries() []Entry {
	var out []Entry
	for _, set := range b.names.all() {
		out = append(out, set.entries...)
	}
	return out
}

// Clone deep-copies the bucket. The clone is detached from any cache.
func (b *Bucket) Clone() *Bucket {
	return &Bucket{
		owner: b.owner,
		kind:  b.kind,
		names: b.names.clone((*EntrySet).Clone),
		files: maps.Clone(b.files),
	}
}

// Equal reports whether other is a bucket with the same owner, names,
// entries and contributing files.
func (b *Bucket) Equal(other any) bool {
	o, ok := other.(*Bucket)
	if !ok || o == nil {
		return false
	}
	if b.owner != o.owner || b.kind != o.kind || !maps.Equal(b.files, o.files) {
		return false
	}
	if !b.names.sameKeys(&o.names) {
		return false
	}
	for name, set := range b.names.all() {
		theirs, _ := o.names.get(name)
		if !set.Equal(theirs) {
			return false
		}
	}
	return true
}

// Label names the bucket in change logs.
func (b *Bucket) Label() string {
	if b.kind == KindDelegate {
		if b.owner == directive.DefaultDelegate {
			return "DelegateTemplateCache for default delegate package"
		}
		return "DelegateTemplateCache for {delpackage " + b.owner + "}"
	}
	if b.owner == directive.DefaultNamespace {
		return "TemplateCache for default namespace"
	}
	return "TemplateCache for {namespace " + b.owner + "}"
}

func (b *Bucket) String() string {
	return fmt.Sprintf("%s {%s} from [%s]", b.Label(), strings.Join(b.Keys(), ", "), strings.Join(b.Files(), ", "))
}

// backlinks maps a file to the bucket it last contributed to. Buckets are
// held weakly so a link never keeps a dropped bucket alive.
type backlinks struct {
	byFile map[string]weak.Pointer[Bucket]
}

func newBacklinks() *backlinks {
	return &backlinks{byFile: make(map[string]weak.Pointer[Bucket])}
}

func (l *backlinks) set(file string, b *Bucket) {
	l.byFile[file] = weak.Make(b)
}

func (l *backlinks) get(file string) *Bucket {
	p, ok := l.byFile[file]
	if !ok {
		return nil
	}
	return p.Value()
}

func (l *backlinks) remove(file string) {
	delete(l.byFile, file)
}

func (l *backlinks) len() int {
	return len(l.byFile)
}
