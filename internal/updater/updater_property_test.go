//go:build property
// +build property

package updater

import (
	"fmt"
	"strings"
	"testing"

	"github.com/conneroisu/soyidx/internal/cache"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// event writes a file with generated declarations or deletes it.
type event struct {
	Path    string
	Content string
	Delete  bool
}

func genEvent() gopter.Gen {
	owners := []string{"a", "b.c", "d"}
	names := []string{"x", "y", "z"}
	return gopter.CombineGens(
		gen.IntRange(0, 3),
		gen.IntRange(-1, len(owners)-1),
		gen.IntRange(-1, len(owners)-1),
		gen.SliceOfN(3, gen.IntRange(0, 2*len(names)-1)),
		gen.Bool(),
	).Map(func(values []interface{}) event {
		ev := event{
			Path:   fmt.Sprintf("app/f%d.soy", values[0].(int)),
			Delete: values[4].(bool),
		}

		var b strings.Builder
		if i := values[1].(int); i >= 0 {
			fmt.Fprintf(&b, "{namespace %s}\n", owners[i])
		}
		if i := values[2].(int); i >= 0 {
			fmt.Fprintf(&b, "{delpackage %s}\n", owners[i])
		}
		for _, i := range values[3].([]int) {
			if i < len(names) {
				fmt.Fprintf(&b, "{template .%s}\n", names[i])
			} else {
				fmt.Fprintf(&b, "{deltemplate .%s}\n", names[i-len(names)])
			}
		}
		ev.Content = b.String()
		return ev
	})
}

func replay(u *Updater, host *fakeHost, events []event) {
	for _, ev := range events {
		if ev.Delete {
			u.RemoveFromCache(host.delete(ev.Path))
		} else {
			u.UpdateCache(host.write(ev.Path, ev.Content))
		}
	}
}

func consistent(c *cache.Cache, delegate bool) bool {
	for _, owner := range c.Keys() {
		b, _ := c.Get(owner)
		for _, name := range b.Keys() {
			set, _ := b.Get(name)
			for _, e := range set.Entries() {
				if e.Owner != owner || e.Name != name || e.Delegate != delegate || !b.HasFile(e.File) {
					return false
				}
			}
		}
	}
	return true
}

// TestUpdaterProperties checks index invariants under random file events.
func TestUpdaterProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("entries are consistent with their keys", prop.ForAll(
		func(events []event) bool {
			host := newFakeHost("app")
			u := New(host, cache.NewStore(), Options{})
			replay(u, host, events)

			return consistent(u.Store().NamespaceCache("app"), false) &&
				consistent(u.Store().DelegatePackageCache("app"), true)
		},
		gen.SliceOf(genEvent()),
	))

	properties.Property("update is idempotent", prop.ForAll(
		func(events []event, last event) bool {
			host := newFakeHost("app")
			u := New(host, cache.NewStore(), Options{})
			replay(u, host, events)

			file := host.write(last.Path, last.Content)
			u.UpdateCache(file)
			ns := u.Store().NamespaceCache("app").Clone()
			dp := u.Store().DelegatePackageCache("app").Clone()

			u.UpdateCache(file)
			return ns.Equal(u.Store().NamespaceCache("app")) &&
				dp.Equal(u.Store().DelegatePackageCache("app"))
		},
		gen.SliceOf(genEvent()),
		genEvent(),
	))

	properties.Property("update then remove restores the index", prop.ForAll(
		func(events []event, last event) bool {
			host := newFakeHost("app")
			u := New(host, cache.NewStore(), Options{})
			replay(u, host, events)
			u.RemoveFromCache(host.delete(last.Path))

			ns := u.Store().NamespaceCache("app").Clone()
			dp := u.Store().DelegatePackageCache("app").Clone()

			u.UpdateCache(host.write(last.Path, last.Content))
			u.RemoveFromCache(host.delete(last.Path))

			for _, c := range u.Caches("app") {
				if _, ok := c.BucketForFile(last.Path); ok {
					return false
				}
				for _, f := range c.Files() {
					if f == last.Path {
						return false
					}
				}
			}
			return ns.Equal(u.Store().NamespaceCache("app")) &&
				dp.Equal(u.Store().DelegatePackageCache("app"))
		},
		gen.SliceOf(genEvent()),
		genEvent(),
	))

	properties.TestingRun(t)
}
