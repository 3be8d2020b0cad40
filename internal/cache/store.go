package cache

import (
	"slices"
	"sync"
)

// Store owns one namespace cache and one delegate package cache per module.
// Caches are created on first access and live as long as the store.
type Store struct {
	modules map[string]*modulePair
	mutex   sync.RWMutex
}

type modulePair struct {
	namespaces *Cache
	delegates  *Cache
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{modules: make(map[string]*modulePair)}
}

func (s *Store) pair(module string) *modulePair {
	s.mutex.RLock()
	p, ok := s.modules[module]
	s.mutex.RUnlock()
	if ok {
		return p
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if p, ok := s.modules[module]; ok {
		return p
	}
	p = &modulePair{
		namespaces: New(module, KindNamespace),
		delegates:  New(module, KindDelegate),
	}
	s.modules[module] = p
	return p
}

// NamespaceCache returns the namespace cache of module, creating it.
func (s *Store) NamespaceCache(module string) *Cache {
	return s.pair(module).namespaces
}

// DelegatePackageCache returns the delegate package cache of module, creating it.
func (s *Store) DelegatePackageCache(module string) *Cache {
	return s.pair(module).delegates
}

// Existing returns the caches of module without creating them.
func (s *Store) Existing(module string) (namespaces, delegates *Cache, ok bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	p, ok := s.modules[module]
	if !ok {
		return nil, nil, false
	}
	return p.namespaces, p.delegates, true
}

// Modules returns the modules with caches, sorted.
func (s *Store) Modules() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]string, 0, len(s.modules))
	for m := range s.modules {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Lookup resolves namespace.name within module.
func (s *Store) Lookup(module, namespace, name string) []Entry {
	ns, _, ok := s.Existing(module)
	if !ok {
		return nil
	}
	return ns.Lookup(namespace, name)
}

// LookupDelegate resolves a delegate template within module.
func (s *Store) LookupDelegate(module, delpackage, name string) []Entry {
	_, dp, ok := s.Existing(module)
	if !ok {
		return nil
	}
	return dp.Lookup(delpackage, name)
}

// BucketView is a serialisable view of one bucket.
type BucketView struct {
	Owner     string              `json:"owner" yaml:"owner"`
	Files     []string            `json:"files" yaml:"files"`
	Templates map[string][]string `json:"templates,omitempty" yaml:"templates,omitempty"`
}

// Snapshot is a serialisable view of one module's caches.
type Snapshot struct {
	Module     string       `json:"module" yaml:"module"`
	Namespaces []BucketView `json:"namespaces" yaml:"namespaces"`
	Delegates  []BucketView `json:"delegates" yaml:"delegates"`
}

// Dump captures a consistent view of module's caches.
func (s *Store) Dump(module string) Snapshot {
	snap := Snapshot{Module: module}
	ns, dp, ok := s.Existing(module)
	if !ok {
		return snap
	}
	snap.Namespaces = views(ns.Clone())
	snap.Delegates = views(dp.Clone())
	return snap
}

func views(c *Cache) []BucketView {
	out := make([]BucketView, 0, c.buckets.len())
	for owner, b := range c.buckets.all() {
		v := BucketView{Owner: owner, Files: b.Files()}
		for name, set := range b.names.all() {
			if v.Templates == nil {
				v.Templates = make(map[string][]string)
			}
			for _, e := range set.entries {
				v.Templates[name] = append(v.Templates[name], e.File)
			}
		}
		out = append(out, v)
	}
	return out
}
