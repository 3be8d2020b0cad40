//go:build property
// +build property

package cache

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// operation is one Replace or RemoveFile call against a cache.
type operation struct {
	File   string
	Owner  string
	Names  []string
	Remove bool
}

func genOperation() gopter.Gen {
	owners := []string{"a", "b", "c"}
	names := []string{"x", "y", "z"}
	return gopter.CombineGens(
		gen.IntRange(0, 4),
		gen.IntRange(0, len(owners)-1),
		gen.SliceOfN(3, gen.IntRange(0, len(names)-1)),
		gen.Bool(),
	).Map(func(values []interface{}) operation {
		op := operation{
			File:   fmt.Sprintf("f%d.soy", values[0].(int)),
			Owner:  owners[values[1].(int)],
			Remove: values[3].(bool),
		}
		for _, i := range values[2].([]int) {
			op.Names = append(op.Names, names[i])
		}
		return op
	})
}

func apply(c *Cache, ops []operation) {
	for _, op := range ops {
		if op.Remove {
			c.RemoveFile(op.File)
		} else {
			c.Replace(op.File, op.Owner, op.Names)
		}
	}
}

// TestCacheProperties checks cache invariants under random update sequences.
func TestCacheProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("entries live under their own owner and name", prop.ForAll(
		func(ops []operation) bool {
			c := New("m", KindNamespace)
			apply(c, ops)

			snapshot := c.Clone()
			for owner, b := range snapshot.buckets.all() {
				for name, set := range b.names.all() {
					for _, e := range set.entries {
						if e.Owner != owner || e.Name != name || e.Delegate || !b.HasFile(e.File) {
							return false
						}
					}
				}
			}
			return true
		},
		gen.SliceOf(genOperation()),
	))

	properties.Property("replace is idempotent", prop.ForAll(
		func(ops []operation, last operation) bool {
			once := New("m", KindNamespace)
			apply(once, ops)
			once.Replace(last.File, last.Owner, last.Names)

			twice := New("m", KindNamespace)
			apply(twice, ops)
			twice.Replace(last.File, last.Owner, last.Names)
			twice.Replace(last.File, last.Owner, last.Names)

			return once.Equal(twice)
		},
		gen.SliceOf(genOperation()),
		genOperation(),
	))

	properties.Property("replace then remove leaves no trace of the file", prop.ForAll(
		func(ops []operation, last operation) bool {
			c := New("m", KindNamespace)
			apply(c, ops)
			c.RemoveFile(last.File)
			before := c.Clone()

			c.Replace(last.File, last.Owner, last.Names)
			c.RemoveFile(last.File)

			for _, b := range c.Clone().buckets.all() {
				if b.HasFile(last.File) {
					return false
				}
			}
			return c.Equal(before)
		},
		gen.SliceOf(genOperation()),
		genOperation(),
	))

	properties.TestingRun(t)
}
