// Package changelog reports how the template index changes over time. When
// the cache debug switch is on, a background Watcher snapshots every
// module's caches after each settled burst of updates and prints a
// human-readable diff against the previous snapshot.
package changelog

import (
	"fmt"
	"io"
	"reflect"
	"strings"
)

// Tree is an ordered, string-keyed map whose values are leaves or Trees.
// Keys must be returned in lexicographic order.
type Tree interface {
	Keys() []string
	Child(key string) (any, bool)
}

// Labeler names a Tree in the trailer line of a diff.
type Labeler interface {
	Label() string
}

type equaler interface {
	Equal(other any) bool
}

const indentStep = "    "

// Diff walks current and previous in key order and writes one line per
// difference to w:
//
//	+ value            key only in current
//	- value            key only in previous
//	- old / + new      values differ and are not both Trees
//
// Keys whose values are both Trees are diffed recursively one level deeper.
// Either side may be nil. When parent is non-nil and something changed, a
// trailer naming parent is written at indent. Diff returns the number of
// changes found.
func Diff(w io.Writer, parent any, current, previous Tree, indent string) int {
	changes := 0
	next := indent + indentStep

	ck, pk := keysOf(current), keysOf(previous)
	i, j := 0, 0
	for i < len(ck) && j < len(pk) {
		switch cmp := strings.Compare(ck[i], pk[j]); {
		case cmp < 0:
			changes++
			writeLine(w, next, "+", childOf(current, ck[i]))
			i++
		case cmp > 0:
			changes++
			writeLine(w, next, "-", childOf(previous, pk[j]))
			j++
		default:
			cv, pv := childOf(current, ck[i]), childOf(previous, pk[j])
			if !equal(cv, pv) {
				ct, cIsTree := cv.(Tree)
				pt, pIsTree := pv.(Tree)
				if cIsTree && pIsTree {
					changes += Diff(w, cv, ct, pt, next)
				} else {
					changes++
					writeLine(w, next, "-", pv)
					writeLine(w, next, "+", cv)
				}
			}
			i++
			j++
		}
	}
	for ; i < len(ck); i++ {
		changes++
		writeLine(w, next, "+", childOf(current, ck[i]))
	}
	for ; j < len(pk); j++ {
		changes++
		writeLine(w, next, "-", childOf(previous, pk[j]))
	}

	if changes > 0 && parent != nil {
		noun := "changes"
		if changes == 1 {
			noun = "change"
		}
		fmt.Fprintf(w, "%srecorded %d %s to %s\n", indent, changes, noun, labelOf(parent))
	}
	return changes
}

func keysOf(t Tree) []string {
	if isNil(t) {
		return nil
	}
	return t.Keys()
}

func childOf(t Tree, key string) any {
	v, _ := t.Child(key)
	return v
}

func equal(a, b any) bool {
	if e, ok := a.(equaler); ok {
		return e.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}

func labelOf(v any) string {
	if l, ok := v.(Labeler); ok {
		return l.Label()
	}
	return fmt.Sprint(v)
}

func writeLine(w io.Writer, indent, sign string, v any) {
	fmt.Fprintf(w, "%s%s %v\n", indent, sign, v)
}

// isNil catches typed nil pointers stored in a Tree interface.
func isNil(t Tree) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
