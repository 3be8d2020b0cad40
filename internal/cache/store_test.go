package cache

import (
	"testing"

	"github.com/conneroisu/soyidx/internal/directive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreatesCachesOnFirstAccess(t *testing.T) {
	s := NewStore()

	_, _, ok := s.Existing("app")
	assert.False(t, ok)

	ns := s.NamespaceCache("app")
	assert.Same(t, ns, s.NamespaceCache("app"))
	assert.Equal(t, KindNamespace, ns.Kind())
	assert.Equal(t, KindDelegate, s.DelegatePackageCache("app").Kind())

	gotNS, gotDP, ok := s.Existing("app")
	require.True(t, ok)
	assert.Same(t, ns, gotNS)
	assert.Same(t, s.DelegatePackageCache("app"), gotDP)
}

func TestStoreLookup(t *testing.T) {
	s := NewStore()
	s.NamespaceCache("app").Replace("a.soy", "foo.bar", []string{"hello"})
	s.DelegatePackageCache("app").Replace("a.soy", "pkg", []string{"x"})

	assert.Len(t, s.Lookup("app", "foo.bar", "hello"), 1)
	assert.Len(t, s.LookupDelegate("app", "pkg", "x"), 1)
	assert.Empty(t, s.Lookup("other", "foo.bar", "hello"))
	assert.Empty(t, s.LookupDelegate("other", "pkg", "x"))
}

func TestStoreDump(t *testing.T) {
	s := NewStore()
	s.NamespaceCache("app").Replace("a.soy", "foo.bar", []string{"hello", "world"})
	s.NamespaceCache("app").Replace("b.soy", "foo.bar", []string{"hello"})
	s.DelegatePackageCache("app").Replace("a.soy", directive.DefaultDelegate, nil)

	snap := s.Dump("app")

	assert.Equal(t, "app", snap.Module)
	require.Len(t, snap.Namespaces, 1)
	assert.Equal(t, BucketView{
		Owner: "foo.bar",
		Files: []string{"a.soy", "b.soy"},
		Templates: map[string][]string{
			"hello": {"a.soy", "b.soy"},
			"world": {"a.soy"},
		},
	}, snap.Namespaces[0])
	require.Len(t, snap.Delegates, 1)
	assert.Equal(t, BucketView{Owner: directive.DefaultDelegate, Files: []string{"a.soy"}}, snap.Delegates[0])

	assert.Equal(t, Snapshot{Module: "missing"}, s.Dump("missing"))
}
